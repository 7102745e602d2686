package errcode

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOfWrapped(t *testing.T) {
	base := Conflict("Job match already exists")
	wrapped := fmt.Errorf("create match: %w", base)

	if !IsConflict(wrapped) {
		t.Fatalf("expected wrapped error to be a conflict")
	}
	if IsNotFound(wrapped) {
		t.Fatalf("conflict must not report not found")
	}
	if KindOf(errors.New("plain")) != KindUnknown {
		t.Fatalf("plain errors must be unknown")
	}
}

func TestUpstreamUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := Upstream("tavily search failed", cause)

	if !errors.Is(err, cause) {
		t.Fatalf("expected errors.Is to reach the cause")
	}
	if err.Error() != "tavily search failed: connection reset" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if err.Kind.Code() != UpstreamFailure {
		t.Fatalf("expected upstream code, got %d", err.Kind.Code())
	}
}

func TestFieldErrors(t *testing.T) {
	fields := FieldErrors{}
	if fields.Err() != nil {
		t.Fatalf("empty field errors must produce nil")
	}

	fields.Add("max_salary", "The max salary must be greater than min salary.")
	fields.Add("days_posted", "The days posted must be between 1 and 90.")

	err := fields.Err()
	if !IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}

	var appErr *Error
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *Error")
	}
	if len(appErr.Fields) != 2 || !fields.Has("max_salary") {
		t.Fatalf("unexpected fields %+v", appErr.Fields)
	}
	want := "The given data was invalid.: days_posted: The days posted must be between 1 and 90., max_salary: The max salary must be greater than min salary."
	if err.Error() != want {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
