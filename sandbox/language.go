package sandbox

import (
	"fmt"
	"strings"

	"github.com/google/shlex"
)

// FilePlaceholder is replaced by the absolute code file path in command templates
const FilePlaceholder = "{file}"

// LanguageProfile describes how to materialize and run code for one language
type LanguageProfile struct {
	Key             string
	Extension       string
	CommandTemplate string
	NeedsCompile    bool
	Env             []string
}

// Command expands the profile's command template for the given code file.
// The template is tokenized before substitution so paths containing spaces
// stay a single argument.
func (p LanguageProfile) Command(file string) ([]string, error) {
	if strings.TrimSpace(p.CommandTemplate) == "" {
		return nil, fmt.Errorf("command template is required for language %s", p.Key)
	}
	fields, err := shlex.Split(p.CommandTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse command template for language %s: %w", p.Key, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("command template for language %s is empty", p.Key)
	}
	for i, field := range fields {
		fields[i] = strings.ReplaceAll(field, FilePlaceholder, file)
	}
	return fields, nil
}

// CodeFileName returns the name of the code file inside a workspace
func (p LanguageProfile) CodeFileName() string {
	return CodeFileBase + p.Extension
}

// Registry is the fixed set of supported languages
type Registry struct {
	keys     []string
	profiles map[string]LanguageProfile
}

// NewRegistry builds a registry; keys keep the order given
func NewRegistry(profiles ...LanguageProfile) *Registry {
	r := &Registry{profiles: make(map[string]LanguageProfile, len(profiles))}
	for _, p := range profiles {
		key := strings.ToLower(p.Key)
		p.Key = key
		if _, exists := r.profiles[key]; !exists {
			r.keys = append(r.keys, key)
		}
		r.profiles[key] = p
	}
	return r
}

// DefaultRegistry returns the built-in language profiles
func DefaultRegistry() *Registry {
	return NewRegistry(
		LanguageProfile{
			Key:             "javascript",
			Extension:       ".js",
			CommandTemplate: "node {file}",
		},
		LanguageProfile{
			Key:             "typescript",
			Extension:       ".ts",
			CommandTemplate: "npx ts-node {file}",
		},
		LanguageProfile{
			Key:             "python",
			Extension:       ".py",
			CommandTemplate: "python {file}",
			Env:             []string{"PYTHONDONTWRITEBYTECODE=1", "PYTHONUNBUFFERED=1"},
		},
		LanguageProfile{
			Key:             "python3",
			Extension:       ".py",
			CommandTemplate: "python3 {file}",
			Env:             []string{"PYTHONDONTWRITEBYTECODE=1", "PYTHONUNBUFFERED=1"},
		},
	)
}

// Lookup finds a profile by key, ignoring case
func (r *Registry) Lookup(language string) (LanguageProfile, bool) {
	p, ok := r.profiles[strings.ToLower(strings.TrimSpace(language))]
	return p, ok
}

// Keys returns the supported language keys in registration order
func (r *Registry) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Override replaces the command template and/or extension of an existing
// profile. Unknown keys are rejected; the key set never grows.
func (r *Registry) Override(key, commandTemplate, extension string) error {
	key = strings.ToLower(key)
	p, ok := r.profiles[key]
	if !ok {
		return fmt.Errorf("cannot override unknown language %q, supported: %s", key, strings.Join(r.keys, ", "))
	}
	if commandTemplate != "" {
		p.CommandTemplate = commandTemplate
		if _, err := p.Command("main"); err != nil {
			return err
		}
	}
	if extension != "" {
		if !strings.HasPrefix(extension, ".") {
			extension = "." + extension
		}
		p.Extension = extension
	}
	r.profiles[key] = p
	return nil
}
