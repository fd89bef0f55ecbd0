package errors

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name:     "without underlying error",
			appErr:   New(CodeNotFound, "room not found", http.StatusNotFound),
			expected: "NOT_FOUND: room not found",
		},
		{
			name:     "with underlying error",
			appErr:   Internal("internal error", errors.New("mongo unreachable")),
			expected: "INTERNAL_ERROR: internal error (caused by: mongo unreachable)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.appErr.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	originalErr := errors.New("original error")
	appErr := Wrap(originalErr, CodeInternal, "wrapped", http.StatusInternalServerError)

	if !errors.Is(appErr, originalErr) {
		t.Errorf("errors.Is should see the original error through Unwrap")
	}
}

func TestDomainConstructors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		wantCode   string
		wantStatus int
	}{
		{"capacity exceeded", CapacityExceeded("no units left", nil), CodeCapacityExceeded, http.StatusConflict},
		{"lock expired", LockExpired("lock-1"), CodeLockExpired, http.StatusGone},
		{"reservation expired", ReservationExpired("res-1"), CodeReservationExpired, http.StatusGone},
		{"invalid date range", InvalidDateRange("check_out must be after check_in"), CodeInvalidDateRange, http.StatusBadRequest},
		{"rule conflict", RuleConflict("same priority", nil), CodeRuleConflict, http.StatusConflict},
		{"concurrent modification", ConcurrentModification("Room", "room-1"), CodeConcurrentModification, http.StatusConflict},
		{"policy not found", PolicyNotFound("acc-1"), CodePolicyNotFound, http.StatusNotFound},
		{"invalid transition", InvalidTransition("Reservation", "confirmed", "cancelled"), CodeInvalidTransition, http.StatusConflict},
		{"not found with id", NotFoundWithID("Booking", "b-1"), CodeNotFound, http.StatusNotFound},
		{"validation", Validation("bad input", map[string]any{"field": "quantity"}), CodeValidation, http.StatusUnprocessableEntity},
		{"invalid input", InvalidInput("bad id"), CodeInvalidInput, http.StatusBadRequest},
		{"timeout", Timeout("slow"), CodeTimeout, http.StatusGatewayTimeout},
		{"unavailable", Unavailable("Kafka"), CodeUnavailable, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.wantCode {
				t.Errorf("expected code %s, got %s", tt.wantCode, tt.err.Code)
			}
			if tt.err.StatusCode() != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, tt.err.StatusCode())
			}
		})
	}
}

func TestLockExpired_Details(t *testing.T) {
	err := LockExpired("lock-42")
	if err.Details["lock_id"] != "lock-42" {
		t.Errorf("expected lock_id detail, got %v", err.Details["lock_id"])
	}
}

func TestIsAppError_Wrapped(t *testing.T) {
	appErr := NotFound("Room")
	wrapped := fmt.Errorf("loading room: %w", appErr)

	if !IsAppError(wrapped) {
		t.Errorf("IsAppError() should see through fmt.Errorf wrapping")
	}
	if IsAppError(errors.New("plain")) {
		t.Errorf("IsAppError() should return false for regular error")
	}
	if AsAppError(wrapped) != appErr {
		t.Errorf("AsAppError() should return the wrapped AppError")
	}
}

func TestAsAppError_Regular(t *testing.T) {
	regularErr := errors.New("regular error")

	result := AsAppError(regularErr)
	if result.Code != CodeInternal {
		t.Errorf("AsAppError() should wrap regular error as internal error")
	}
	if result.Err != regularErr {
		t.Errorf("AsAppError() should wrap the original error")
	}
}

func TestHasCode(t *testing.T) {
	err := fmt.Errorf("acquire: %w", CapacityExceeded("full", nil))
	if !HasCode(err, CodeCapacityExceeded) {
		t.Errorf("HasCode() should match CAPACITY_EXCEEDED")
	}
	if HasCode(err, CodeLockExpired) {
		t.Errorf("HasCode() should not match LOCK_EXPIRED")
	}
	if HasCode(errors.New("plain"), CodeInternal) {
		t.Errorf("HasCode() should be false for non AppError")
	}
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	if err := WriteError(rec, CapacityExceeded("no units left", map[string]any{"date": "2026-01-01"})); err != nil {
		t.Fatalf("WriteError() returned %v", err)
	}

	if rec.Code != http.StatusConflict {
		t.Errorf("expected status %d, got %d", http.StatusConflict, rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, CodeCapacityExceeded) || !strings.Contains(body, "2026-01-01") {
		t.Errorf("unexpected body %s", body)
	}
}

func TestAppError_ToJSON(t *testing.T) {
	jsonStr := string(NotFoundWithID("Room", "12345").ToJSON())

	if !strings.Contains(jsonStr, "NOT_FOUND") {
		t.Errorf("ToJSON() should contain error code")
	}
	if !strings.Contains(jsonStr, "12345") {
		t.Errorf("ToJSON() should contain details")
	}
}
