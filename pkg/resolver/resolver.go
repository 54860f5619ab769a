// Package resolver drives pkg/prompt's loader across the Builtin -> User ->
// Local layering described for the prompt resolution pipeline, recording
// each prompt's origin the way original_source/swissarmyhammer/src/prompt_resolver.rs
// tracks a source per prompt for later filtering and display.
package resolver

import (
	"os"
	"path/filepath"

	"github.com/swissarmyhammer/swissarmyhammer/internal/logger"
	"github.com/swissarmyhammer/swissarmyhammer/pkg/prompt"
)

var log = logger.New("resolver:prompts")

// Source names attached to a resolved prompt, recording which layer most
// recently supplied it.
const (
	SourceBuiltin = "builtin"
	SourceUser    = "user"
	SourceLocal   = "local"
)

// BuiltinPrompt is one embedded (name, content) pair compiled into the
// binary. Embedding is wired via go:embed in builtin.go.
type BuiltinPrompt struct {
	Name    string
	Content string
}

// Resolver loads prompts from every layer into a single Library and tracks
// each prompt's most recent source layer.
type Resolver struct {
	Library *prompt.Library
	sources map[string]string
}

// New constructs an empty Resolver.
func New() *Resolver {
	return &Resolver{
		Library: prompt.NewLibrary(),
		sources: make(map[string]string),
	}
}

// Load runs the full Builtin -> User -> Local pipeline. home is the user's
// home directory (empty disables the User layer); cwd is the starting
// directory for the Local layer's walk-to-root search.
func (r *Resolver) Load(builtins []BuiltinPrompt, home, cwd string) error {
	r.loadBuiltins(builtins)
	if home != "" {
		r.loadDirectory(filepath.Join(home, ".swissarmyhammer", "prompts"), SourceUser)
	}
	r.loadLocal(cwd)
	return nil
}

func (r *Resolver) loadBuiltins(builtins []BuiltinPrompt) {
	for _, b := range builtins {
		name := b.Name
		p, err := prompt.ParseFile(name, b.Content)
		if err != nil {
			log.Printf("skipping malformed builtin prompt %s: %v", name, err)
			continue
		}
		p.Source = SourceBuiltin
		r.Library.Add(p)
		r.sources[p.Name] = SourceBuiltin
	}
}

// loadDirectory loads every recognised prompt file under dir into a scratch
// library, tags each with source, then merges the results into r.Library. A
// missing directory is not an error.
func (r *Resolver) loadDirectory(dir, source string) {
	if _, err := os.Stat(dir); err != nil {
		return
	}
	scratch := prompt.NewLibrary()
	_, errs := prompt.AddDirectory(scratch, dir)
	for _, e := range errs {
		log.Printf("skipping %s: %v", e.Path, e.Err)
	}
	for _, p := range scratch.List() {
		p.Source = source
		r.Library.Add(p)
		r.sources[p.Name] = source
	}
}

// loadLocal walks from cwd toward the filesystem root collecting every
// .swissarmyhammer/prompts directory, then loads them root-most first so the
// innermost (closest to cwd) directory wins.
func (r *Resolver) loadLocal(cwd string) {
	if cwd == "" {
		return
	}
	abs, err := filepath.Abs(cwd)
	if err != nil {
		return
	}

	var dirs []string
	dir := abs
	for {
		candidate := filepath.Join(dir, ".swissarmyhammer", "prompts")
		if _, err := os.Stat(candidate); err == nil {
			dirs = append(dirs, candidate)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	for i := len(dirs) - 1; i >= 0; i-- {
		r.loadDirectory(dirs[i], SourceLocal)
	}
}

// SourceOf returns the layer that most recently supplied name, or "" if
// unknown.
func (r *Resolver) SourceOf(name string) string {
	return r.sources[name]
}
