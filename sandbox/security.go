package sandbox

import (
	"regexp"
	"strings"
)

// ScopeAll marks a rule that applies to every language
const ScopeAll = ""

// SecurityRule rejects code whose text matches Pattern
type SecurityRule struct {
	Pattern *regexp.Regexp
	Reason  string
	// Scope is ScopeAll or a substring of the language key the rule applies to.
	Scope string
}

// SecurityCheck is the outcome of a security scan
type SecurityCheck struct {
	Safe   bool
	Reason string
}

func rule(scope, pattern, reason string) SecurityRule {
	return SecurityRule{Pattern: regexp.MustCompile(`(?i)` + pattern), Reason: reason, Scope: scope}
}

// DefaultSecurityRules is evaluated in order; the first match wins.
// This is text matching, not analysis: it filters the obvious cases and
// nothing more.
var DefaultSecurityRules = []SecurityRule{
	rule(ScopeAll, `process\.exit`, "Process termination not allowed"),
	rule(ScopeAll, `child_process`, "Child process spawning not allowed"),
	rule(ScopeAll, `require\s*\(\s*['"]fs['"]\s*\)`, "File system access not allowed"),
	rule(ScopeAll, `import\s+.*\s+from\s+['"]fs['"]`, "File system access not allowed"),
	rule(ScopeAll, `require\s*\(\s*['"]net['"]\s*\)`, "Network access not allowed"),
	rule(ScopeAll, `require\s*\(\s*['"]http['"]\s*\)`, "HTTP module not allowed"),
	rule(ScopeAll, `require\s*\(\s*['"]https['"]\s*\)`, "HTTPS module not allowed"),
	rule(ScopeAll, `eval\s*\(`, "Eval not allowed"),
	rule(ScopeAll, `Function\s*\(`, "Dynamic function creation not allowed"),
	rule(ScopeAll, `import\s*\(\s*['"]`, "Dynamic imports not allowed"),

	rule("python", `os\.system`, "System commands not allowed"),
	rule("python", `subprocess`, "Subprocess not allowed"),
	rule("python", `import\s+os`, "OS module not allowed"),
	rule("python", `__import__`, "Dynamic imports not allowed"),
	rule("python", `exec\s*\(`, "Exec not allowed"),
	rule("python", `open\s*\(`, "File operations not allowed"),
}

// PerformSecurityCheck scans code with DefaultSecurityRules
func PerformSecurityCheck(code, language string) SecurityCheck {
	return CheckRules(DefaultSecurityRules, code, language)
}

// CheckRules scans code against rules in order and reports the first match
func CheckRules(rules []SecurityRule, code, language string) SecurityCheck {
	lang := strings.ToLower(language)
	for _, r := range rules {
		if r.Scope != ScopeAll && !strings.Contains(lang, r.Scope) {
			continue
		}
		if r.Pattern.MatchString(code) {
			return SecurityCheck{Safe: false, Reason: r.Reason}
		}
	}
	return SecurityCheck{Safe: true}
}
