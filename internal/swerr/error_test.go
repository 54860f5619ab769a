package swerr

import (
	"errors"
	"testing"
)

func TestWrapUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(KindIO, cause, "writing issue file")

	if !errors.Is(err, cause) {
		t.Fatal("expected Unwrap chain to reach cause")
	}
	if err.Error() != "writing issue file: disk full" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}

func TestKindOfAndIs(t *testing.T) {
	err := New(KindPromptNotFound, "prompt not found: foo")
	k, ok := KindOf(err)
	if !ok || k != KindPromptNotFound {
		t.Fatalf("KindOf = %v, %v", k, ok)
	}
	if !Is(err, KindPromptNotFound) {
		t.Fatal("expected Is to match")
	}
	if Is(err, KindStorage) {
		t.Fatal("expected Is to not match a different kind")
	}
}

func TestIsMatchesByKindNotMessage(t *testing.T) {
	a := New(KindWorkflowCircular, "cycle in A")
	b := New(KindWorkflowCircular, "cycle in B")
	if !errors.Is(a, b) {
		t.Fatal("expected errors with the same Kind to satisfy errors.Is")
	}
}

func TestKindOfNonSwerr(t *testing.T) {
	_, ok := KindOf(errors.New("plain"))
	if ok {
		t.Fatal("expected KindOf to fail for a non-swerr error")
	}
}
