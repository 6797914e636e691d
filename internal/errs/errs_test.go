package errs

import (
	"database/sql"
	"errors"
	"testing"
)

func TestWrapDBConvertsNoRowsToNotFound(t *testing.T) {
	err := WrapDB("find issue", sql.ErrNoRows)
	if !IsNotFound(err) {
		t.Fatalf("expected IsNotFound, got %v", err)
	}
	if KindOf(err) != NotFound {
		t.Fatalf("expected Kind NotFound, got %v", KindOf(err))
	}
}

func TestWrapDBPassesThroughOtherErrors(t *testing.T) {
	cause := errors.New("disk full")
	err := WrapDB("upsert issue", cause)
	if KindOf(err) != Repository {
		t.Fatalf("expected Kind Repository, got %v", KindOf(err))
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected Unwrap chain to reach cause")
	}
}

func TestWrapNilIsNil(t *testing.T) {
	if WrapDB("op", nil) != nil {
		t.Fatalf("expected nil")
	}
	if Wrap(Validation, "op", nil) != nil {
		t.Fatalf("expected nil")
	}
}

func TestIsChecksKind(t *testing.T) {
	err := Wrap(Timeout, "fetch page", errors.New("context deadline exceeded"))
	if !Is(err, Timeout) {
		t.Fatalf("expected Is(err, Timeout)")
	}
	if Is(err, Validation) {
		t.Fatalf("expected not Is(err, Validation)")
	}
}
