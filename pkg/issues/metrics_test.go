package issues

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestInstrumentedStoreDelegatesAndRecords(t *testing.T) {
	s := newStore(t)
	reg := prometheus.NewRegistry()
	wrapped := NewInstrumentedStore(s, reg)

	issue, err := wrapped.CreateIssue("one", "content")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if issue.Number != 1 {
		t.Fatalf("got number %d", issue.Number)
	}

	if _, err := wrapped.GetIssue("one"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	found := false
	for _, fam := range families {
		if fam.GetName() == "swissarmyhammer_issue_store_operation_duration_seconds" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected the operation duration histogram to be registered")
	}
}
