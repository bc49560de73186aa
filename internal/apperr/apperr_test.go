package apperr

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestClassifiersSeeThroughWrapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		is   func(error) bool
	}{
		{"auth", &AuthError{Backend: "hosted", Message: "bad token"}, IsAuth},
		{"not found", &NotFoundError{Entity: "client", ID: "c1"}, IsNotFound},
		{"network", &NetworkError{Backend: "sheet", Op: "fetch", Err: context.DeadlineExceeded}, IsNetwork},
		{"conflict", &ConflictError{Entity: "binding", Key: "c1/google_ads"}, IsConflict},
		{"validation", &ValidationError{Field: "name", Message: "required"}, IsValidation},
		{"validation list", ValidationErrors{{Field: "client_id", Message: "required"}}, IsValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("loading clients: %w", tt.err)
			if !tt.is(wrapped) {
				t.Fatalf("expected classifier to match wrapped %T", tt.err)
			}
		})
	}
}

func TestClassifiersRejectOtherClasses(t *testing.T) {
	err := &AuthError{Backend: "hosted", Message: "expired"}
	if IsNetwork(err) || IsNotFound(err) || IsValidation(err) || IsConflict(err) {
		t.Fatal("auth error matched a different class")
	}
}

func TestNetworkErrorUnwraps(t *testing.T) {
	err := &NetworkError{Backend: "hosted", Op: "ping", Err: context.DeadlineExceeded}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatal("expected NetworkError to unwrap to the transport error")
	}
}

func TestValidationErrorsErrAndFields(t *testing.T) {
	var errs ValidationErrors
	if errs.Err() != nil {
		t.Fatal("expected nil error for empty list")
	}
	errs.Add("name", "required")
	errs.Add("platform", "must be google_ads or meta_ads")

	err := fmt.Errorf("ingest: %w", errs.Err())
	fields := Fields(err)
	if len(fields) != 2 || fields[1].Field != "platform" {
		t.Fatalf("unexpected fields: %+v", fields)
	}
	if Fields(errors.New("boom")) != nil {
		t.Fatal("expected nil fields for non-validation error")
	}
}
