// Package issues implements numbered markdown issue storage under an
// issues/ root, grounded on the behaviour exercised by
// original_source/swissarmyhammer/tests/issue_completion_fix_verification.rs
// and original_source/swissarmyhammer/tests/mcp_issue_integration_tests.rs.
package issues

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/swissarmyhammer/swissarmyhammer/internal/logger"
	"github.com/swissarmyhammer/swissarmyhammer/internal/swerr"
)

var log = logger.New("issues:store")

// numberWidth is the zero-padded width of the numeric filename prefix.
const numberWidth = 6

// completeDirName is the single directory name that marks completion, and
// only when it is a direct child of the issues root.
const completeDirName = "complete"

var numberedFilePattern = regexp.MustCompile(`^(\d+)_(.*)\.md$`)

// Issue is one stored issue.
type Issue struct {
	Number    uint32
	Name      string
	Content   string
	Completed bool
	FilePath  string
}

// Store is file-system-backed numbered issue storage rooted at Dir.
// Number allocation and file creation are serialised by numberMu, matching
// the spec's "process-wide serialisation guard, one writer assumed" design.
type Store struct {
	Dir string

	numberMu sync.Mutex
}

// New constructs a Store rooted at dir, creating dir and its complete/
// subdirectory if absent.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(dir, completeDirName), 0o755); err != nil {
		return nil, swerr.Wrapf(swerr.KindIO, err, "creating issues directory %s", dir)
	}
	return &Store{Dir: dir}, nil
}

// sanitizeName rejects path-traversal attempts, rewriting any name
// containing ".." components or an absolute path to the literal sentinel
// "path_traversal_attempted".
func sanitizeName(name string) string {
	if filepath.IsAbs(name) {
		return "path_traversal_attempted"
	}
	for _, part := range strings.Split(filepath.ToSlash(name), "/") {
		if part == ".." {
			return "path_traversal_attempted"
		}
	}
	return name
}

// CreateIssue allocates the next issue number and atomically writes
// NNNNNN_name.md under the issues root.
func (s *Store) CreateIssue(name, content string) (Issue, error) {
	name = sanitizeName(name)

	s.numberMu.Lock()
	defer s.numberMu.Unlock()

	next, err := s.nextNumberLocked()
	if err != nil {
		return Issue{}, err
	}

	filename := fmt.Sprintf("%0*d_%s.md", numberWidth, next, name)
	path := filepath.Join(s.Dir, filename)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return Issue{}, swerr.Wrapf(swerr.KindIO, err, "creating issue file %s", path)
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		return Issue{}, swerr.Wrapf(swerr.KindIO, err, "writing issue file %s", path)
	}

	log.Printf("created issue %d (%s)", next, name)
	return Issue{Number: next, Name: name, Content: content, FilePath: path}, nil
}

// CreateIssuesBatch creates every (name, content) pair, semantically
// equivalent to sequential CreateIssue calls.
func (s *Store) CreateIssuesBatch(pairs [][2]string) ([]Issue, error) {
	out := make([]Issue, 0, len(pairs))
	for _, pair := range pairs {
		issue, err := s.CreateIssue(pair[0], pair[1])
		if err != nil {
			return out, err
		}
		out = append(out, issue)
	}
	return out, nil
}

// nextNumberLocked scans both the active and complete directories
// (including virtually-numbered non-conforming files) and returns
// max+1, starting at 1. Callers must hold numberMu.
func (s *Store) nextNumberLocked() (uint32, error) {
	all, err := s.scanAll()
	if err != nil {
		return 0, err
	}
	var max uint32
	for _, issue := range all {
		if issue.Number > max {
			max = issue.Number
		}
	}
	return max + 1, nil
}

// GetIssue looks up an issue by name or by its numeric string form.
func (s *Store) GetIssue(nameOrNumber string) (Issue, error) {
	all, err := s.scanAll()
	if err != nil {
		return Issue{}, err
	}
	if n, err := strconv.ParseUint(nameOrNumber, 10, 32); err == nil {
		for _, issue := range all {
			if issue.Number == uint32(n) {
				return issue, nil
			}
		}
	}
	for _, issue := range all {
		if issue.Name == nameOrNumber {
			return issue, nil
		}
	}
	return Issue{}, swerr.Newf(swerr.KindOther, "issue not found: %s", nameOrNumber)
}

// GetIssuesBatch looks up every name, semantically equivalent to sequential
// GetIssue calls.
func (s *Store) GetIssuesBatch(names []string) ([]Issue, error) {
	out := make([]Issue, 0, len(names))
	for _, name := range names {
		issue, err := s.GetIssue(name)
		if err != nil {
			return out, err
		}
		out = append(out, issue)
	}
	return out, nil
}

// UpdateIssue rewrites an issue's body in place, preserving its file position
// (active vs. complete).
func (s *Store) UpdateIssue(nameOrNumber, newContent string) (Issue, error) {
	issue, err := s.GetIssue(nameOrNumber)
	if err != nil {
		return Issue{}, err
	}
	if err := os.WriteFile(issue.FilePath, []byte(newContent), 0o644); err != nil {
		return Issue{}, swerr.Wrapf(swerr.KindIO, err, "updating issue file %s", issue.FilePath)
	}
	issue.Content = newContent
	return issue, nil
}

// MarkComplete moves an active issue's file into the complete/ directory via
// a single rename. It fails if the destination already exists.
func (s *Store) MarkComplete(nameOrNumber string) (Issue, error) {
	issue, err := s.GetIssue(nameOrNumber)
	if err != nil {
		return Issue{}, err
	}
	if issue.Completed {
		return issue, nil
	}

	dest := filepath.Join(s.Dir, completeDirName, filepath.Base(issue.FilePath))
	if _, err := os.Stat(dest); err == nil {
		return Issue{}, swerr.Newf(swerr.KindIO, "completion destination already exists: %s", dest)
	}
	if err := os.Rename(issue.FilePath, dest); err != nil {
		return Issue{}, swerr.Wrapf(swerr.KindIO, err, "marking issue %s complete", issue.Name)
	}

	issue.FilePath = dest
	issue.Completed = true
	return issue, nil
}

// ListIssues returns every issue in deterministic (completed asc, number asc)
// order.
func (s *Store) ListIssues() ([]Issue, error) {
	all, err := s.scanAll()
	if err != nil {
		return nil, err
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Completed != all[j].Completed {
			return !all[i].Completed // active (false) before completed (true)
		}
		return all[i].Number < all[j].Number
	})
	return all, nil
}

// scanAll recursively walks the issues root, parsing every .md file into an
// Issue with its completion status computed per isCompletedPath.
func (s *Store) scanAll() ([]Issue, error) {
	var out []Issue
	virtualNumbers := make(map[string]uint32)
	var maxReal uint32

	// First pass: collect real numbers so virtual numbers can be assigned
	// above the highest real number without colliding.
	err := filepath.WalkDir(s.Dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".md") {
			return nil
		}
		if m := numberedFilePattern.FindStringSubmatch(filepath.Base(path)); m != nil {
			if n, convErr := strconv.ParseUint(m[1], 10, 32); convErr == nil && uint32(n) > maxReal {
				maxReal = uint32(n)
			}
		}
		return nil
	})
	if err != nil {
		return nil, swerr.Wrapf(swerr.KindIO, err, "scanning issues directory")
	}

	nextVirtual := maxReal + 1
	err = filepath.WalkDir(s.Dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".md") {
			return nil
		}
		base := filepath.Base(path)
		var number uint32
		var name string
		if m := numberedFilePattern.FindStringSubmatch(base); m != nil {
			n, _ := strconv.ParseUint(m[1], 10, 32)
			number = uint32(n)
			name = m[2]
		} else {
			if existing, ok := virtualNumbers[path]; ok {
				number = existing
			} else {
				number = nextVirtual
				virtualNumbers[path] = number
				nextVirtual++
			}
			name = strings.TrimSuffix(base, ".md")
		}

		content, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil
		}

		out = append(out, Issue{
			Number:    number,
			Name:      name,
			Content:   string(content),
			Completed: isCompletedPath(s.Dir, path),
			FilePath:  path,
		})
		return nil
	})
	if err != nil {
		return nil, swerr.Wrapf(swerr.KindIO, err, "scanning issues directory")
	}
	return out, nil
}

// isCompletedPath reports whether path's immediate parent directory is
// literally named "complete" AND that directory is a direct child of root.
// Nested directories that merely contain "complete" somewhere in their
// ancestry (e.g. issues/archive/complete/old/) do not count — this is the
// precise bug fix the original implementation's completion-detection tests
// verify.
func isCompletedPath(root, path string) bool {
	parent := filepath.Dir(path)
	if filepath.Base(parent) != completeDirName {
		return false
	}
	return filepath.Dir(parent) == filepath.Clean(root)
}
