package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestRecover_WithPanic(t *testing.T) {
	testFunc := func() (err error) {
		defer Recover(&err, "TestOperation")
		panic("test panic message")
	}

	err := testFunc()
	if err == nil {
		t.Fatal("Expected error from recovered panic, got nil")
	}

	var panicErr *PanicError
	if !errors.As(err, &panicErr) {
		t.Fatalf("Expected PanicError, got %T", err)
	}

	if panicErr.Operation != "TestOperation" {
		t.Errorf("Expected operation 'TestOperation', got '%s'", panicErr.Operation)
	}
	if panicErr.StackTrace == "" {
		t.Error("Expected non-empty stack trace")
	}

	expectedMsg := "panic in TestOperation: test panic message"
	if panicErr.Error() != expectedMsg {
		t.Errorf("Expected error message '%s', got '%s'", expectedMsg, panicErr.Error())
	}
}

func TestRecover_WithoutPanic(t *testing.T) {
	testFunc := func() (err error) {
		defer Recover(&err, "TestOperation")
		return nil
	}

	if err := testFunc(); err != nil {
		t.Fatalf("Expected no error when no panic occurs, got: %v", err)
	}
}

func TestRecover_WithExistingError(t *testing.T) {
	originalErr := fmt.Errorf("original error")

	testFunc := func() (err error) {
		defer Recover(&err, "TestOperation")
		err = originalErr
		panic("panic after error")
	}

	err := testFunc()
	if err == nil {
		t.Fatal("Expected error from recovered panic with existing error, got nil")
	}

	if !strings.Contains(err.Error(), "panic in TestOperation") {
		t.Errorf("Error message should contain panic info: %s", err.Error())
	}
	if !errors.Is(err, originalErr) {
		t.Error("Should be able to identify original error with errors.Is")
	}
}

func TestSafeExecute(t *testing.T) {
	tests := []struct {
		name      string
		fn        func() error
		wantPanic bool
		wantErr   bool
	}{
		{name: "success", fn: func() error { return nil }},
		{name: "function error", fn: func() error { return fmt.Errorf("boom") }, wantErr: true},
		{name: "panic", fn: func() error { panic("index out of range") }, wantErr: true, wantPanic: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := SafeExecute("predict", tt.fn)
			if (err != nil) != tt.wantErr {
				t.Fatalf("SafeExecute() error = %v, wantErr %v", err, tt.wantErr)
			}
			var panicErr *PanicError
			if got := errors.As(err, &panicErr); got != tt.wantPanic {
				t.Errorf("errors.As(PanicError) = %v, want %v", got, tt.wantPanic)
			}
		})
	}
}

func TestPanicError_UnwrapsErrorValue(t *testing.T) {
	inner := fmt.Errorf("matrix dimension error")
	panicErr := NewPanicError("Network.Fit", inner)

	if !errors.Is(panicErr, inner) {
		t.Error("PanicError should unwrap an error panic value")
	}
	if !strings.Contains(panicErr.String(), "Stack trace:") {
		t.Error("String() should include stack trace information")
	}
	if NewPanicError("op", "text").Unwrap() != nil {
		t.Error("non-error panic value should unwrap to nil")
	}
}
