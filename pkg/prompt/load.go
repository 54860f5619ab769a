package prompt

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// frontmatter mirrors the recognised YAML keys in a prompt file's header.
type frontmatter struct {
	Description string     `yaml:"description"`
	Category    string     `yaml:"category"`
	Tags        []string   `yaml:"tags"`
	Arguments   []Argument `yaml:"arguments"`
}

// ParseFile parses the content of a single prompt file into a Prompt. name
// is the already-computed stem (see RecognisedExtension).
func ParseFile(name, content string) (Prompt, error) {
	body := content
	fm := frontmatter{}

	if rest, header, ok := splitFrontmatter(content); ok {
		if err := yaml.Unmarshal([]byte(header), &fm); err != nil {
			return Prompt{}, fmt.Errorf("parsing frontmatter: %w", err)
		}
		body = rest
	}

	for i := range fm.Arguments {
		fm.Arguments[i].HasDefault = fm.Arguments[i].Default != ""
	}

	return Prompt{
		Name:        name,
		Description: fm.Description,
		Category:    fm.Category,
		Tags:        fm.Tags,
		Arguments:   fm.Arguments,
		Template:    body,
	}, nil
}

// splitFrontmatter extracts a "---\n...\n---\n" header block from the start
// of content, returning the remaining body, the header's YAML text, and
// whether a frontmatter block was present at all.
func splitFrontmatter(content string) (body, header string, ok bool) {
	const delim = "---"
	trimmed := strings.TrimPrefix(content, "\ufeff")
	lines := strings.SplitAfter(trimmed, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != delim {
		return content, "", false
	}

	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == delim {
			header = strings.Join(lines[1:i], "")
			body = strings.Join(lines[i+1:], "")
			return body, header, true
		}
	}
	// Unterminated frontmatter block: treat the whole file as body, matching
	// the loader's tolerance for malformed individual files.
	return content, "", false
}

// FileLoadError records a single file's parse failure during AddDirectory,
// which reports failures per-file instead of aborting the whole walk.
type FileLoadError struct {
	Path string
	Err  error
}

func (e FileLoadError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

// AddDirectory recursively walks dir, parsing every recognised prompt file
// and adding it to l. It returns the count of prompts successfully added and
// any per-file parse errors encountered; a parse failure on one file never
// aborts the walk.
func AddDirectory(l *Library, dir string) (int, []FileLoadError) {
	var errs []FileLoadError
	count := 0

	_ = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			errs = append(errs, FileLoadError{Path: path, Err: err})
			return nil
		}
		if d.IsDir() {
			return nil
		}
		stem, ok := RecognisedExtension(path)
		if !ok {
			return nil
		}
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			errs = append(errs, FileLoadError{Path: path, Err: readErr})
			return nil
		}
		name := filepath.Base(stem)
		p, parseErr := ParseFile(name, string(data))
		if parseErr != nil {
			errs = append(errs, FileLoadError{Path: path, Err: parseErr})
			return nil
		}
		l.Add(p)
		count++
		return nil
	})

	return count, errs
}
