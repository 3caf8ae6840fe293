package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestCommonErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"ErrClosed", ErrClosed, "resource is closed"},
		{"ErrTimeout", ErrTimeout, "operation timed out"},
		{"ErrCapacityExceeded", ErrCapacityExceeded, "capacity exceeded"},
		{"ErrInvalidConfiguration", ErrInvalidConfiguration, "invalid configuration"},
		{"ErrInvalidFormat", ErrInvalidFormat, "invalid format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err == nil {
				t.Fatal("error should not be nil")
			}
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidationError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *ValidationError
		want string
	}{
		{
			name: "without hint",
			err: &ValidationError{
				Module: "workerpool",
				Field:  "workers",
				Value:  -1,
				Reason: "must be positive",
			},
			want: "workerpool: invalid workers=-1 (must be positive)",
		},
		{
			name: "with hint",
			err: &ValidationError{
				Module: "scheduler",
				Field:  "interval",
				Value:  0,
				Reason: "must be positive",
				Hint:   "use a duration greater than 0",
			},
			want: "scheduler: invalid interval=0 (must be positive) - use a duration greater than 0",
		},
		{
			name: "string value",
			err: &ValidationError{
				Module: "scheduler",
				Field:  "cron",
				Value:  "",
				Reason: "cannot be empty",
			},
			want: "scheduler: invalid cron= (cannot be empty)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidationError_Unwrap(t *testing.T) {
	verr := NewValidationError("test", "field", 0, "test")

	if verr.Unwrap() != ErrInvalidConfiguration {
		t.Errorf("Unwrap() = %v, want ErrInvalidConfiguration", verr.Unwrap())
	}
	if !errors.Is(verr, ErrInvalidConfiguration) {
		t.Error("ValidationError should wrap ErrInvalidConfiguration")
	}
}

func TestValidationError_WithHint(t *testing.T) {
	err := NewValidationError("test", "field", 0, "invalid").
		WithHint("try using a positive value")

	if err.Hint != "try using a positive value" {
		t.Errorf("Hint = %q, want %q", err.Hint, "try using a positive value")
	}

	if result := err.WithHint("new hint"); result != err {
		t.Error("WithHint should return the same instance")
	}
}

func TestOperationError(t *testing.T) {
	cause := errors.New("pool closed")

	t.Run("without context", func(t *testing.T) {
		err := NewOperationError("scheduler", "dispatch", cause)
		if got, want := err.Error(), "scheduler.dispatch failed: pool closed"; got != want {
			t.Errorf("Error() = %q, want %q", got, want)
		}
	})

	t.Run("with context", func(t *testing.T) {
		err := NewOperationError("scheduler", "dispatch", cause).WithContext("task 7")
		if got, want := err.Error(), "scheduler.dispatch failed: pool closed (task 7)"; got != want {
			t.Errorf("Error() = %q, want %q", got, want)
		}
	})

	t.Run("unwrap", func(t *testing.T) {
		err := NewOperationError("scheduler", "dispatch", cause)
		if !errors.Is(err, cause) {
			t.Error("OperationError should wrap the cause error")
		}
	})
}

func TestIsValidationError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"validation error", NewValidationError("test", "field", 0, "test"), true},
		{"wrapped validation error", &OperationError{Cause: NewValidationError("test", "field", 0, "test")}, true},
		{"fmt wrapped", fmt.Errorf("config: %w", NewValidationError("test", "field", 0, "test")), true},
		{"operation error", &OperationError{Cause: errors.New("test")}, false},
		{"format error", ErrInvalidFormat, false},
		{"nil error", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidationError(tt.err); got != tt.want {
				t.Errorf("IsValidationError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	err := NewValidationError("mymodule", "myfield", 42, "must be less than 10").
		WithHint("use a value between 0 and 10")

	msg := err.Error()
	for _, part := range []string{"mymodule", "myfield", "42", "must be less than 10", "use a value between 0 and 10"} {
		if !strings.Contains(msg, part) {
			t.Errorf("error message should contain %q, got %q", part, msg)
		}
	}
}
