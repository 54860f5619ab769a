// Package prompt implements the prompt data model and the read-mostly
// library that holds a loaded set of prompts, following the storage-trait
// shape of original_source/swissarmyhammer/src/storage.rs (StorageBackend,
// MemoryStorage) adapted to a single in-process map guarded by a
// sync.RWMutex instead of a DashMap, since the Go module has no concurrent
// map dependency in its pack and RWMutex is the teacher's own concurrency
// idiom (pkg/ratelimit.Limiter, pkg/logger.Logger).
package prompt

import (
	"sort"
	"strings"
	"sync"

	"github.com/swissarmyhammer/swissarmyhammer/internal/logger"
	"github.com/swissarmyhammer/swissarmyhammer/internal/swerr"
)

var log = logger.New("prompt:library")

// recognisedExtensions is checked longest-suffix-first so compound forms
// (".md.liquid") win over their simple counterpart (".md").
var recognisedExtensions = []string{
	".md.liquid",
	".markdown.liquid",
	".yaml.liquid",
	".yml.liquid",
	".md",
	".markdown",
	".yaml",
	".yml",
}

// Argument describes one declared prompt parameter.
type Argument struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Required    bool   `yaml:"required,omitempty"`
	Default     string `yaml:"default,omitempty"`
	HasDefault  bool   `yaml:"-"`
}

// Prompt is a named template plus its declared metadata.
type Prompt struct {
	Name        string
	Description string
	Category    string
	Tags        []string
	Arguments   []Argument
	Template    string

	// Source records which load layer (builtin/user/local) most recently
	// supplied this prompt; the resolver (pkg/resolver) sets it.
	Source string

	seq int // insertion order, for List()'s stable tie-break
}

// RecognisedExtension reports whether path carries one of the recognised
// prompt-file extensions, and returns the stem with that extension removed.
func RecognisedExtension(path string) (stem string, ok bool) {
	for _, ext := range recognisedExtensions {
		if strings.HasSuffix(path, ext) {
			return path[:len(path)-len(ext)], true
		}
	}
	return "", false
}

// Library is a read-mostly, insertion-ordered map of prompts. The zero value
// is not usable; construct with NewLibrary.
type Library struct {
	mu      sync.RWMutex
	prompts map[string]Prompt
	nextSeq int
}

// NewLibrary constructs an empty Library.
func NewLibrary() *Library {
	return &Library{prompts: make(map[string]Prompt)}
}

// Add inserts or replaces a prompt by name. A replaced prompt keeps the
// insertion order of the name's first appearance, matching the loader's
// "later sources replace earlier ones by name" semantics without reordering
// List() output on every reload.
func (l *Library) Add(p Prompt) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if existing, ok := l.prompts[p.Name]; ok {
		p.seq = existing.seq
	} else {
		p.seq = l.nextSeq
		l.nextSeq++
	}
	l.prompts[p.Name] = p
}

// Get returns the prompt registered under name.
func (l *Library) Get(name string) (Prompt, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.prompts[name]
	if !ok {
		return Prompt{}, swerr.Newf(swerr.KindPromptNotFound, "prompt not found: %s", name)
	}
	return p, nil
}

// List returns every prompt in stable insertion order, ties (replacements
// keep their original seq) broken by name.
func (l *Library) List() []Prompt {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Prompt, 0, len(l.prompts))
	for _, p := range l.prompts {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].seq != out[j].seq {
			return out[i].seq < out[j].seq
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Search scans name/description/category/tags/template for a case-insensitive
// substring match.
func (l *Library) Search(query string) []Prompt {
	needle := strings.ToLower(query)
	var out []Prompt
	for _, p := range l.List() {
		if strings.Contains(strings.ToLower(p.Name), needle) ||
			strings.Contains(strings.ToLower(p.Description), needle) ||
			strings.Contains(strings.ToLower(p.Category), needle) ||
			strings.Contains(strings.ToLower(p.Template), needle) ||
			tagsContain(p.Tags, needle) {
			out = append(out, p)
		}
	}
	return out
}

func tagsContain(tags []string, needle string) bool {
	for _, t := range tags {
		if strings.Contains(strings.ToLower(t), needle) {
			return true
		}
	}
	return false
}

// Replace atomically swaps the entire prompt set, used by directory reloads
// so readers never observe a partially-rebuilt map.
func (l *Library) Replace(prompts []Prompt) {
	next := make(map[string]Prompt, len(prompts))
	for i, p := range prompts {
		p.seq = i
		next[p.Name] = p
	}
	l.mu.Lock()
	l.prompts = next
	l.nextSeq = len(prompts)
	l.mu.Unlock()
	log.Printf("replaced prompt set with %d entries", len(prompts))
}

// PartialTemplate implements template.PartialResolver, letting the template
// engine resolve {% render "name" %} / {% include "name" %} tags against
// this library.
func (l *Library) PartialTemplate(name string) (string, bool) {
	p, err := l.Get(name)
	if err != nil {
		return "", false
	}
	return p.Template, true
}
