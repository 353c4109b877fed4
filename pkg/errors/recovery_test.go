package errors

import (
	"strings"
	"testing"
)

func panicking() (err error) {
	defer Recover(&err, "panicking")
	panic("index out of range")
}

func panickingWithPriorError() (err error) {
	defer Recover(&err, "panickingWithPriorError")
	err = New("prior failure")
	panic("boom")
}

func calm() (err error) {
	defer Recover(&err, "calm")
	return nil
}

func TestRecoverConvertsPanic(t *testing.T) {
	err := panicking()
	if err == nil {
		t.Fatal("expected an error from the recovered panic")
	}

	var pe *PanicError
	if !As(err, &pe) {
		t.Fatalf("expected PanicError, got %T", err)
	}
	if pe.Operation != "panicking" {
		t.Errorf("unexpected operation %q", pe.Operation)
	}
	if pe.StackTrace == "" {
		t.Error("stack trace not captured")
	}
}

func TestRecoverKeepsOriginalError(t *testing.T) {
	err := panickingWithPriorError()
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(err.Error(), "prior failure") {
		t.Errorf("original error lost: %s", err.Error())
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("panic value lost: %s", err.Error())
	}
}

func TestRecoverNoPanic(t *testing.T) {
	if err := calm(); err != nil {
		t.Errorf("unexpected error without a panic: %v", err)
	}
}
