package issues

import (
	"os"
	"path/filepath"
	"testing"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "issues"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return s
}

func TestCreateIssueAssignsSequentialNumbers(t *testing.T) {
	s := newStore(t)
	i1, err := s.CreateIssue("first", "content one")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	i2, err := s.CreateIssue("second", "content two")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if i1.Number != 1 || i2.Number != 2 {
		t.Fatalf("got numbers %d, %d", i1.Number, i2.Number)
	}
}

func TestCreateIssuePathTraversalRejected(t *testing.T) {
	s := newStore(t)
	issue, err := s.CreateIssue("../../etc/passwd", "malicious")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if issue.Name != "path_traversal_attempted" {
		t.Fatalf("expected sentinel name, got %q", issue.Name)
	}
}

func TestMarkCompleteMovesFile(t *testing.T) {
	s := newStore(t)
	issue, err := s.CreateIssue("todo", "do the thing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	completed, err := s.MarkComplete(issue.Name)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !completed.Completed {
		t.Fatal("expected issue to be completed")
	}
	if filepath.Dir(completed.FilePath) != filepath.Join(s.Dir, "complete") {
		t.Fatalf("expected file under complete/, got %s", completed.FilePath)
	}
}

func TestListIssuesOrderActiveBeforeCompletedByNumber(t *testing.T) {
	s := newStore(t)
	i1, _ := s.CreateIssue("one", "a")
	_, _ = s.CreateIssue("two", "b")
	if _, err := s.MarkComplete(i1.Name); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	list, err := s.ListIssues()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("got %d issues", len(list))
	}
	if list[0].Completed {
		t.Fatalf("expected active issue first, got %+v", list[0])
	}
	if !list[1].Completed {
		t.Fatalf("expected completed issue last, got %+v", list[1])
	}
}

// TestNestedCompleteDirectoryDoesNotCount replicates
// test_completion_detection_fix / test_path_ancestor_bug_fix: a "complete"
// directory that is NOT a direct child of the issues root must never cause
// an issue to be reported as completed.
func TestNestedCompleteDirectoryDoesNotCount(t *testing.T) {
	s := newStore(t)
	i1, _ := s.CreateIssue("active_issue_1", "active")
	_, _ = s.CreateIssue("active_issue_2", "active")
	if _, err := s.MarkComplete(i1.Name); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	nestedDir := filepath.Join(s.Dir, "archive", "complete", "old")
	if err := os.MkdirAll(nestedDir, 0o755); err != nil {
		t.Fatal(err)
	}
	nestedFile := filepath.Join(nestedDir, "000099_nested_issue.md")
	if err := os.WriteFile(nestedFile, []byte("should not be completed"), 0o644); err != nil {
		t.Fatal(err)
	}

	all, err := s.ListIssues()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var completedCount, activeCount int
	var nested Issue
	for _, issue := range all {
		if issue.Completed {
			completedCount++
		} else {
			activeCount++
		}
		if issue.Name == "nested_issue" {
			nested = issue
		}
	}

	if completedCount != 1 {
		t.Fatalf("expected exactly 1 completed issue, got %d", completedCount)
	}
	if activeCount != 2 {
		t.Fatalf("expected exactly 2 active issues, got %d", activeCount)
	}
	if nested.Completed {
		t.Fatal("nested issue under archive/complete/old must not be reported as completed")
	}
}

// TestDeeplyNestedCompleteDirectoriesDoNotCount mirrors
// test_path_ancestor_bug_fix's deeper nesting (issues/project/complete/archive/backup),
// alongside a legitimately completed issue directly under issues/complete.
func TestDeeplyNestedCompleteDirectoriesDoNotCount(t *testing.T) {
	s := newStore(t)

	legitimateDir := filepath.Join(s.Dir, "complete")
	if err := os.MkdirAll(legitimateDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(legitimateDir, "000001_legitimate.md"), []byte("done"), 0o644); err != nil {
		t.Fatal(err)
	}

	deepNested := filepath.Join(s.Dir, "project", "complete", "archive", "backup")
	if err := os.MkdirAll(deepNested, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(deepNested, "000002_buried.md"), []byte("buried"), 0o644); err != nil {
		t.Fatal(err)
	}

	all, err := s.ListIssues()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, issue := range all {
		switch issue.Name {
		case "legitimate":
			if !issue.Completed {
				t.Fatal("expected the direct-child complete/ issue to be completed")
			}
		case "buried":
			if issue.Completed {
				t.Fatal("expected the deeply nested complete/ issue to NOT be completed")
			}
		}
	}
}

func TestCreateIssuesBatchMatchesSequentialCreate(t *testing.T) {
	s := newStore(t)
	issues, err := s.CreateIssuesBatch([][2]string{{"a", "content a"}, {"b", "content b"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(issues) != 2 || issues[0].Number != 1 || issues[1].Number != 2 {
		t.Fatalf("got %+v", issues)
	}
}
