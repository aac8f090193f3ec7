package resilience

import (
	"errors"
	"fmt"
	"syscall"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/rotisserie/eris"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"explicit", NewTransientError(errors.New("busy"), 503), true},
		{"wrapped explicit", fmt.Errorf("memo: %w", NewTransientError(errors.New("busy"), 429)), true},
		{"eris wrapped", eris.Wrap(NewTransientError(errors.New("busy"), 429), "narrative: memo"), true},
		{"api overloaded", &sdk.Error{StatusCode: 529}, true},
		{"api rate limit", eris.Wrap(&sdk.Error{StatusCode: 429}, "anthropic: create message"), true},
		{"api bad request", &sdk.Error{StatusCode: 400}, false},
		{"connection reset", fmt.Errorf("read: %w", syscall.ECONNRESET), true},
		{"message pattern", errors.New("POST: i/o timeout"), true},
		{"permanent", errors.New("invalid input"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504, 529} {
		if !IsTransientHTTPStatus(code) {
			t.Errorf("%d should be transient", code)
		}
	}
	for _, code := range []int{200, 400, 401, 404, 422} {
		if IsTransientHTTPStatus(code) {
			t.Errorf("%d should not be transient", code)
		}
	}
}

func TestTransientError_Unwrap(t *testing.T) {
	inner := errors.New("inner")
	te := NewTransientError(inner, 503)
	if !errors.Is(te, inner) {
		t.Error("expected Unwrap to expose inner error")
	}
	if te.Error() != "inner" {
		t.Errorf("unexpected message %q", te.Error())
	}
}
