package errs

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Kind
	}{
		{"tagged", E(InvalidInput, "request/new", errors.New("bad trim")), InvalidInput},
		{"wrapped tagged", fmt.Errorf("outer: %w", E(ProcessStalled, "lifecycle", errors.New("x"))), ProcessStalled},
		{"deadline", fmt.Errorf("probe: %w", context.DeadlineExceeded), TransientToolFailure},
		{"exit error", &exec.ExitError{}, TransientToolFailure},
		{"not found", &exec.Error{Name: "yt-dlp", Err: exec.ErrNotFound}, DependencyMissing},
		{"other", errors.New("boom"), UnexpectedFailure},
	}
	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.expected {
			t.Errorf("%s: KindOf = %v, expected %v", tt.name, got, tt.expected)
		}
	}
}

func TestErrorFormatting(t *testing.T) {
	err := Errorf(DependencyMissing, "tools/find", "%s not found", "ffmpeg")
	if got := err.Error(); got != "tools/find: dependency missing: ffmpeg not found" {
		t.Errorf("Error() = %q", got)
	}
	if !Is(err, DependencyMissing) {
		t.Error("expected Is(err, DependencyMissing)")
	}
	if E(InvalidInput, "op", nil) != nil {
		t.Error("E with nil error should return nil")
	}
}
