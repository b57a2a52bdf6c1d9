package upstream

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		want   Kind
	}{
		{401, KindAuthError},
		{403, KindAuthError},
		{429, KindRateLimited},
		{408, KindTimeout},
		{504, KindTimeout},
		{500, KindServerError},
		{502, KindServerError},
		{503, KindServerError},
		{400, KindMalformedResponse},
		{404, KindMalformedResponse},
		{422, KindMalformedResponse},
	}
	for _, tt := range tests {
		e := classifyStatus(tt.status, "msg")
		if e.Kind != tt.want {
			t.Errorf("status %d: expected %s, got %s", tt.status, tt.want, e.Kind)
		}
		if e.Status != tt.status {
			t.Errorf("status %d: not preserved on error", tt.status)
		}
	}
}

func TestClassifyTransport(t *testing.T) {
	if e := classifyTransport(context.DeadlineExceeded); e.Kind != KindTimeout {
		t.Errorf("deadline exceeded should be timeout, got %s", e.Kind)
	}
	if e := classifyTransport(context.Canceled); e.Kind != KindTimeout {
		t.Errorf("cancellation should be timeout, got %s", e.Kind)
	}
	if e := classifyTransport(errors.New("connection refused")); e.Kind != KindServerError {
		t.Errorf("generic transport failure should be server_error, got %s", e.Kind)
	}
}

func TestKindOf(t *testing.T) {
	e := newError(KindRateLimited, 429, "slow down", nil)
	wrapped := fmt.Errorf("complete: %w", e)

	kind, ok := KindOf(wrapped)
	if !ok {
		t.Fatal("expected to find a kind in the chain")
	}
	if kind != KindRateLimited {
		t.Errorf("expected rate_limited, got %s", kind)
	}

	if _, ok := KindOf(errors.New("plain")); ok {
		t.Error("plain errors should have no kind")
	}
}

func TestRetryable(t *testing.T) {
	retryable := map[Kind]bool{
		KindTimeout:           true,
		KindServerError:       true,
		KindRateLimited:       false,
		KindAuthError:         false,
		KindMalformedResponse: false,
	}
	for kind, want := range retryable {
		if got := Retryable(kind); got != want {
			t.Errorf("Retryable(%s) = %v, want %v", kind, got, want)
		}
	}
}
