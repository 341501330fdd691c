package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsMatchesByCode(t *testing.T) {
	err := NotFound("widget %q not found", "w1")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found match")
	}
	if errors.Is(err, ErrValidation) {
		t.Fatalf("not found should not match validation")
	}

	wrapped := fmt.Errorf("load: %w", err)
	if !errors.Is(wrapped, ErrNotFound) {
		t.Fatalf("expected match through fmt wrapping")
	}
	if CodeOf(wrapped) != CodeNotFound {
		t.Fatalf("CodeOf = %q, want %q", CodeOf(wrapped), CodeNotFound)
	}
}

func TestPersistenceKeepsExistingKind(t *testing.T) {
	nf := NotFound("gone")
	if got := Persistence("update widget", nf); !errors.Is(got, ErrNotFound) {
		t.Fatalf("expected kind to be preserved, got %v", got)
	}

	cause := errors.New("disk full")
	got := Persistence("update widget", cause)
	if !errors.Is(got, ErrPersistence) {
		t.Fatalf("expected persistence kind, got %v", got)
	}
	if !errors.Is(got, cause) {
		t.Fatalf("expected cause to be reachable")
	}
	if Message(got) != "update widget" {
		t.Fatalf("Message = %q", Message(got))
	}
}

func TestCodeOfPlainError(t *testing.T) {
	if CodeOf(errors.New("boom")) != "" {
		t.Fatalf("plain error should have no code")
	}
}
