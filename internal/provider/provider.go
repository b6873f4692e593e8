// Package provider maps provider names to external CLI invocations.
//
// The provider set is an open enum: two presets ship by default and new
// ones arrive via Register (config overrides) or fall back to a bare
// preset whose command is the provider name itself.
package provider

import (
	"fmt"
	"sort"
	"sync"
)

// Provider describes how to invoke one external CLI family.
type Provider struct {
	// Name is the provider identifier used in job keys and CLI flags.
	Name string

	// Command is the executable to run.
	Command string

	// Args are the base arguments placed before the prompt.
	Args []string

	// PromptViaStdin delivers the prompt on stdin instead of as the
	// final argument. Some CLIs choke on very long argv prompts.
	PromptViaStdin bool
}

// CommandLine returns the argv (after the command itself) and stdin
// content for invoking this provider with the given prompt.
func (p Provider) CommandLine(prompt string) (args []string, stdin string) {
	args = append(args, p.Args...)
	if p.PromptViaStdin {
		return args, prompt
	}
	return append(args, prompt), ""
}

// Registry holds the known provider presets.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// Defaults returns a registry seeded with the built-in presets.
func Defaults() *Registry {
	r := &Registry{providers: make(map[string]Provider)}
	r.Register(Provider{
		Name:    "claude",
		Command: "claude",
		Args:    []string{"-p", "--dangerously-skip-permissions"},
	})
	r.Register(Provider{
		Name:    "gemini",
		Command: "gemini",
		Args:    []string{"-p", "--yolo"},
	})
	return r
}

// Register adds or replaces a preset.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name] = p
}

// Lookup returns the preset for name, if registered.
func (r *Registry) Lookup(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// Resolve returns the preset for name, falling back to a bare preset
// that runs the provider name as the command. This keeps the provider
// enum open without a hardcoded switch.
func (r *Registry) Resolve(name string) (Provider, error) {
	if err := ValidateName(name); err != nil {
		return Provider{}, err
	}
	if p, ok := r.Lookup(name); ok {
		return p, nil
	}
	return Provider{Name: name, Command: name}, nil
}

// Names returns the registered provider names in lexical order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateName checks a provider identifier. Provider names become path
// segments under jobs/, so the charset matches mode-key segments.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("provider must not be empty")
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return fmt.Errorf("invalid provider name %q: character %q not allowed", name, r)
		}
	}
	return nil
}
