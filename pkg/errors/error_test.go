package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestWrapfKeepsCause(t *testing.T) {
	cause := stderrors.New("connection refused")
	got := Wrapf(cause, ProbeFailed, "probe exec: %v", cause)
	if got.Error() != "probe exec: connection refused" {
		t.Fatalf("unexpected message: %s", got.Error())
	}
	if !stderrors.Is(got, cause) {
		t.Fatalf("cause must stay reachable")
	}
	if Wrapf(nil, ProbeFailed, "x") != nil {
		t.Fatalf("nil cause must yield nil")
	}
}

func TestGetErrorWrapsForeign(t *testing.T) {
	base := New(GameNotFound).WithMessage("unknown game: chess")
	if got := GetError(fmt.Errorf("lookup: %w", base)); got != base {
		t.Fatalf("expected chained *Error to be returned")
	}
	foreign := GetError(stderrors.New("boom"))
	if foreign.Code != InternalServerError || foreign.Error() != "boom" {
		t.Fatalf("unexpected foreign wrap: %+v", foreign)
	}
	if !Is(fmt.Errorf("x: %w", base), GameNotFound) || Is(nil, GameNotFound) {
		t.Fatalf("Is mismatch")
	}
}

func TestGetCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{name: "nil", err: nil, want: Success},
		{name: "foreign", err: stderrors.New("boom"), want: InternalServerError},
		{name: "direct", err: Rejected("unauthorized import: os"), want: UnsafeCode},
		{name: "chained", err: fmt.Errorf("ctx: %w", New(TrialFailed)), want: TrialFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCode(tt.err); got != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{Success, 200},
		{UnsafeCode, 200},
		{GameNotFound, 200},
		{CodeTooLarge, 400},
		{ValidationFailed, 400},
		{TooManyRequests, 429},
		{ProbeFailed, 503},
		{ScratchIOError, 500},
	}
	for _, tt := range tests {
		if got := tt.code.HTTPStatus(); got != tt.want {
			t.Fatalf("code %d: expected %d, got %d", tt.code, tt.want, got)
		}
	}
}

func TestTerminal(t *testing.T) {
	if !UnsafeCode.Terminal() || !StrategyLoadFailed.Terminal() {
		t.Fatalf("admission errors must be terminal")
	}
	if TrialFailed.Terminal() {
		t.Fatalf("trial failures are contained, not terminal")
	}
}
