package errs

import (
	"errors"
	"net/http"
	"testing"
)

func TestTypedErrorsReportExpectedStatus(t *testing.T) {
	cases := []struct {
		name   string
		err    HTTPError
		status int
		code   string
	}{
		{"validation", &ValidationError{Code: "bad_schema"}, http.StatusUnprocessableEntity, "bad_schema"},
		{"conflict", &ConflictError{}, http.StatusConflict, "conflict"},
		{"not_found", &NotFoundError{}, http.StatusNotFound, "not_found"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.err.HTTPStatus(); got != c.status {
				t.Fatalf("expected status %d, got %d", c.status, got)
			}
			if got := c.err.ErrorCode(); got != c.code {
				t.Fatalf("expected code %q, got %q", c.code, got)
			}
		})
	}
}

func TestNotFoundErrorUnwrapsUnderlyingError(t *testing.T) {
	underlying := errors.New("agent xyz not found")
	err := &NotFoundError{Err: underlying}

	if err.Error() != underlying.Error() {
		t.Fatalf("expected message to fall back to underlying error, got %q", err.Error())
	}
	if !errors.Is(err, underlying) {
		t.Fatal("expected errors.Is to see through Unwrap to the underlying error")
	}
}

func TestValidationErrorPrefersExplicitMessage(t *testing.T) {
	err := &ValidationError{Message: "rent_price is required", Err: errors.New("field missing")}
	if err.Error() != "rent_price is required" {
		t.Fatalf("expected explicit message to win, got %q", err.Error())
	}
}
