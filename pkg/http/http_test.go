package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	apperrors "staybook/pkg/errors"
)

func TestExtractLimitOffset(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?limit=500&offset=-3", nil)
	limit, offset, err := ExtractLimitOffset(r)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if limit != 100 || offset != 0 {
		t.Errorf("got limit=%d offset=%d", limit, offset)
	}

	r = httptest.NewRequest(http.MethodGet, "/?limit=abc", nil)
	if _, _, err := ExtractLimitOffset(r); !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
		t.Errorf("expected invalid input, got %v", err)
	}
}

func TestExtractDateRange(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?check_in=2026-06-01&check_out=2026-06-04", nil)
	rng, err := ExtractDateRange(r)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if rng.Nights() != 3 {
		t.Errorf("expected 3 nights, got %d", rng.Nights())
	}

	r = httptest.NewRequest(http.MethodGet, "/?check_in=2026-06-04&check_out=2026-06-04", nil)
	if _, err := ExtractDateRange(r); !apperrors.HasCode(err, apperrors.CodeInvalidDateRange) {
		t.Errorf("expected invalid date range, got %v", err)
	}
}

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		Name string `json:"name"`
	}

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Deluxe"}`))
	if err := DecodeJSON(r, &dst); err != nil || dst.Name != "Deluxe" {
		t.Fatalf("DecodeJSON() = %v, %+v", err, dst)
	}

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"unknown":1}`))
	if err := DecodeJSON(r, &dst); !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
		t.Errorf("expected invalid input for unknown field, got %v", err)
	}

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(``))
	if err := DecodeJSON(r, &dst); err == nil {
		t.Error("expected error for empty body")
	}
}

func TestWriteCreated(t *testing.T) {
	rec := httptest.NewRecorder()
	if err := WriteCreated(rec, map[string]string{"id": "r-1"}); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if rec.Code != http.StatusCreated || !strings.Contains(rec.Body.String(), `"data":{"id":"r-1"}`) {
		t.Errorf("unexpected response %d %s", rec.Code, rec.Body.String())
	}
}
