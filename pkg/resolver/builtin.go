package resolver

import (
	"embed"
	"path"
	"strings"

	"github.com/swissarmyhammer/swissarmyhammer/pkg/prompt"
)

//go:embed builtin/*
var builtinFS embed.FS

// Builtins reads the embedded builtin prompt set, computing each prompt's
// name from its recognised-extension stem the same way a loaded directory
// would.
func Builtins() []BuiltinPrompt {
	entries, err := builtinFS.ReadDir("builtin")
	if err != nil {
		return nil
	}
	var out []BuiltinPrompt
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		full := path.Join("builtin", entry.Name())
		stem, ok := prompt.RecognisedExtension(entry.Name())
		if !ok {
			continue
		}
		data, err := builtinFS.ReadFile(full)
		if err != nil {
			continue
		}
		out = append(out, BuiltinPrompt{
			Name:    strings.TrimSuffix(stem, "/"),
			Content: string(data),
		})
	}
	return out
}
