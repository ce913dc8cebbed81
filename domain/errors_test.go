package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestCodeOf(t *testing.T) {
	err := NewError(CodeConflict, "item_id already exists")
	if CodeOf(err) != CodeConflict {
		t.Fatalf("got %v, want CodeConflict", CodeOf(err))
	}

	wrapped := fmt.Errorf("ingest failed: %w", err)
	if CodeOf(wrapped) != CodeConflict {
		t.Fatal("code lost through wrapping")
	}

	if CodeOf(errors.New("plain")) != CodeUnknown {
		t.Fatal("plain errors must map to CodeUnknown")
	}
	if CodeOf(nil) != CodeUnknown {
		t.Fatal("nil must map to CodeUnknown")
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := WrapError(CodeIndexFailed, "failed to upsert", cause)
	if !errors.Is(err, cause) {
		t.Fatal("cause not reachable via errors.Is")
	}
	if err.Error() != "failed to upsert: connection reset" {
		t.Fatalf("unexpected message: %s", err.Error())
	}
}
