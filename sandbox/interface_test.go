package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	registry := DefaultRegistry()
	assert.Equal(t, []string{"javascript", "typescript", "python", "python3"}, registry.Keys())

	tests := []struct {
		language  string
		extension string
		command   []string
	}{
		{"javascript", ".js", []string{"node", "/w/main.js"}},
		{"typescript", ".ts", []string{"npx", "ts-node", "/w/main.ts"}},
		{"python", ".py", []string{"python", "/w/main.py"}},
		{"PYTHON3", ".py", []string{"python3", "/w/main.py"}},
	}

	for _, tt := range tests {
		t.Run(tt.language, func(t *testing.T) {
			profile, ok := registry.Lookup(tt.language)
			require.True(t, ok)
			assert.Equal(t, tt.extension, profile.Extension)
			assert.False(t, profile.NeedsCompile)

			args, err := profile.Command("/w/" + profile.CodeFileName())
			require.NoError(t, err)
			assert.Equal(t, tt.command, args)
		})
	}

	_, ok := registry.Lookup("ruby")
	assert.False(t, ok)
}

func TestRegistryKeysAreCopies(t *testing.T) {
	registry := DefaultRegistry()
	keys := registry.Keys()
	keys[0] = "mutated"
	assert.Equal(t, "javascript", registry.Keys()[0])
}

func TestLanguageProfileCommand(t *testing.T) {
	t.Run("PathWithSpacesStaysOneArgument", func(t *testing.T) {
		profile := LanguageProfile{Key: "python", CommandTemplate: `python3 -u "{file}"`}
		args, err := profile.Command("/tmp/my dir/main.py")
		require.NoError(t, err)
		assert.Equal(t, []string{"python3", "-u", "/tmp/my dir/main.py"}, args)
	})

	t.Run("EmptyTemplate", func(t *testing.T) {
		_, err := LanguageProfile{Key: "x"}.Command("/f")
		require.Error(t, err)
	})

	t.Run("UnbalancedQuotes", func(t *testing.T) {
		_, err := LanguageProfile{Key: "x", CommandTemplate: `node "{file}`}.Command("/f")
		require.Error(t, err)
	})
}

func TestRegistryOverride(t *testing.T) {
	t.Run("KnownKey", func(t *testing.T) {
		registry := DefaultRegistry()
		require.NoError(t, registry.Override("python", "python3 -I {file}", ""))

		profile, ok := registry.Lookup("python")
		require.True(t, ok)
		args, err := profile.Command("/w/main.py")
		require.NoError(t, err)
		assert.Equal(t, []string{"python3", "-I", "/w/main.py"}, args)
		assert.Equal(t, ".py", profile.Extension)
	})

	t.Run("ExtensionGetsDot", func(t *testing.T) {
		registry := DefaultRegistry()
		require.NoError(t, registry.Override("javascript", "", "mjs"))

		profile, _ := registry.Lookup("javascript")
		assert.Equal(t, "main.mjs", profile.CodeFileName())
	})

	t.Run("UnknownKeyRejected", func(t *testing.T) {
		registry := DefaultRegistry()
		err := registry.Override("ruby", "ruby {file}", ".rb")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown language")
		assert.Len(t, registry.Keys(), 4)
	})

	t.Run("InvalidTemplateRejected", func(t *testing.T) {
		registry := DefaultRegistry()
		require.Error(t, registry.Override("python", `python "{file}`, ""))
	})
}

func TestSecurityCheckFirstMatchWins(t *testing.T) {
	check := PerformSecurityCheck(`eval(require("child_process"))`, "javascript")
	assert.False(t, check.Safe)
	assert.Equal(t, "Child process spawning not allowed", check.Reason)
}

func TestSecurityCheckBenignCode(t *testing.T) {
	benign := map[string]string{
		"javascript": `const add = (a, b) => a + b; console.log(add(1, 2));`,
		"python":     "def greet(name):\n    return f'hi {name}'\nprint(greet('x'))",
		"typescript": `function greet(name: string): string { return "hi " + name }`,
	}
	for lang, code := range benign {
		t.Run(lang, func(t *testing.T) {
			assert.True(t, PerformSecurityCheck(code, lang).Safe)
		})
	}
}

func TestCheckRulesCustomScope(t *testing.T) {
	rules := []SecurityRule{rule("ruby", `system\s*\(`, "no system")}
	assert.False(t, CheckRules(rules, "system('ls')", "ruby").Safe)
	assert.True(t, CheckRules(rules, "system('ls')", "python").Safe)
}
