package errors

import (
	"fmt"
	"testing"
)

func TestErrorToCode(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{nil, CodeOK},
		{fmt.Errorf("limit: %w", ErrInvalidLimit), CodeInvalidArgument},
		{NewValidation("engine", "unknown"), CodeInvalidArgument},
		{fmt.Errorf("bad flag: %w", ErrInvalidArgument), CodeInvalidArgument},
		{Wrap(ErrTimeout, "insert"), CodeTimeout},
		{NewSerialization("payload", New("NaN")), CodeSerialization},
		{Unavailable("open", New("permission denied")), CodeStoreUnavailable},
		{Wrapf(ErrNoData, "analyze %s", "cpu"), CodeNoData},
		{New("boom"), CodeUnknown},
	}

	for _, tt := range tests {
		if got := ErrorToCode(tt.err); got != tt.code {
			t.Errorf("ErrorToCode(%v) = %s, want %s", tt.err, CodeName(got), CodeName(tt.code))
		}
	}
}

func TestCodeName(t *testing.T) {
	if CodeName(CodeInvalidArgument) != "InvalidArgument" {
		t.Errorf("unexpected name %q", CodeName(CodeInvalidArgument))
	}
	if CodeName(42) != "Code(42)" {
		t.Errorf("unexpected name %q", CodeName(42))
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "op") != nil || Wrapf(nil, "op %d", 1) != nil {
		t.Error("wrapping nil should return nil")
	}

	err := Wrapf(ErrStoreClosed, "read archive %s", "a.parquet")
	if err.Error() != "read archive a.parquet: store is closed" {
		t.Errorf("unexpected message %q", err)
	}
	if !Is(err, ErrStoreClosed) {
		t.Error("wrapped error should match its cause")
	}
}
