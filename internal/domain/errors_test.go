package domain

import (
	"fmt"
	"testing"
)

func TestCodeForMapsSentinels(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{ErrInvalidJSON, CodeInvalidJSON},
		{ErrInvalidPayload, CodeInvalidPayload},
		{ErrInvalidSubject, CodeInvalidSubject},
		{ErrInvalidSubjects, CodeInvalidSubjects},
		{ErrUnknownAction, CodeUnknownAction},
		{ErrUpstreamSubscribeFailed, CodeNATSSubscribeFailed},
	}
	for _, c := range cases {
		if got := CodeFor(c.err); got != c.want {
			t.Errorf("CodeFor(%v) = %q, want %q", c.err, got, c.want)
		}
	}
}

func TestCodeForMatchesWrappedSentinel(t *testing.T) {
	wrapped := fmt.Errorf("bus: subscribe s: %w: %w", ErrUpstreamSubscribeFailed, fmt.Errorf("dial timeout"))
	if got := CodeFor(wrapped); got != CodeNATSSubscribeFailed {
		t.Errorf("expected wrapped upstream error to map to %s, got %s", CodeNATSSubscribeFailed, got)
	}
}

func TestCodeForUnknownErrorDefaultsToInvalidPayload(t *testing.T) {
	if got := CodeFor(fmt.Errorf("something unrelated")); got != CodeInvalidPayload {
		t.Errorf("expected unmapped error to default to %s, got %s", CodeInvalidPayload, got)
	}
}
