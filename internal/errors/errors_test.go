package errors

import (
	"fmt"
	"testing"
)

func TestError(t *testing.T) {
	err := New(ErrCodeTagNotFound, "tag not found")
	if err.Code != ErrCodeTagNotFound {
		t.Errorf("expected code %s, got %s", ErrCodeTagNotFound, err.Code)
	}

	cause := fmt.Errorf("permission denied")
	wrapped := Wrap(cause, ErrCodeSourceInaccessible, "cannot read")
	if wrapped.Unwrap() != cause {
		t.Error("Unwrap should return the cause")
	}
	if !Is(wrapped, ErrCodeSourceInaccessible) {
		t.Error("Is should return true for matching code")
	}
	if Is(wrapped, ErrCodeInvalidQuery) {
		t.Error("Is should return false for non-matching code")
	}

	detailed := err.WithDetail("tag", "x")
	if detailed.Details["tag"] != "x" {
		t.Error("WithDetail should add details")
	}
}

func TestIsThroughFmtWrap(t *testing.T) {
	inner := InvalidQuery("regex", "(", "missing closing )")
	outer := fmt.Errorf("filter: %w", inner)
	if !Is(outer, ErrCodeInvalidQuery) {
		t.Fatalf("expected INVALID_QUERY through fmt wrap")
	}
	if GetCode(outer) != ErrCodeInvalidQuery {
		t.Fatalf("GetCode=%q", GetCode(outer))
	}
	if GetCode(fmt.Errorf("plain")) != "" {
		t.Fatalf("expected empty code for plain error")
	}
	if GetCode(nil) != "" {
		t.Fatalf("expected empty code for nil")
	}
}

func TestConstructors(t *testing.T) {
	err := SourceInaccessible("claude", "/root/.claude/projects", fmt.Errorf("eacces"))
	if err.Details["source"] != "claude" || err.Details["root"] != "/root/.claude/projects" {
		t.Fatalf("unexpected details: %#v", err.Details)
	}
	if TagExists("x").Code != ErrCodeTagExists {
		t.Fatalf("TagExists code")
	}
	if InvalidTag("x", "self parent").Code != ErrCodeInvalidTag {
		t.Fatalf("InvalidTag code")
	}
}
