package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"staybook/pkg/model"
)

func TestReservationClient_SendsJSONAndDecodes(t *testing.T) {
	var gotContentType, gotKey, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotKey = r.Header.Get("Idempotency-Key")
		gotPath = r.URL.Path
		var body model.ReservationConfirmation
		_ = json.NewDecoder(r.Body).Decode(&body)
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{
			"id":                "res-1",
			"status":            "confirmed",
			"payment_reference": body.PaymentReference,
			"total_amount":      "240.00",
		}})
	}))
	defer server.Close()

	c := NewReservationClient(server.URL)
	resp, err := c.Confirm("res-1", &model.ReservationConfirmation{PaymentReference: "pay-1"}, "key-1")
	if err != nil {
		t.Fatalf("Confirm() error = %v", err)
	}
	reservation, err := c.DecodeReservation(resp)
	if err != nil {
		t.Fatalf("DecodeReservation() error = %v", err)
	}

	if gotPath != "/api/v1/reservations/res-1/confirm" {
		t.Errorf("path = %s", gotPath)
	}
	if gotContentType != "application/json" || gotKey != "key-1" {
		t.Errorf("headers: content-type %q, idempotency key %q", gotContentType, gotKey)
	}
	if reservation.PaymentReference != "pay-1" || reservation.TotalAmount.String() != "240.00" {
		t.Errorf("reservation = %+v", reservation)
	}
}

func TestDecodePage(t *testing.T) {
	resp := &Response{
		Response: &http.Response{StatusCode: http.StatusOK},
		Body:     []byte(`{"data":[{"id":"b-1"},{"id":"b-2"}],"total_count":5,"limit":2,"offset":2}`),
	}

	bookings, meta, err := NewBookingClient("http://unused").DecodeBookings(resp)
	if err != nil {
		t.Fatalf("DecodeBookings() error = %v", err)
	}
	if len(bookings) != 2 || bookings[1].ID != "b-2" {
		t.Errorf("bookings = %+v", bookings)
	}
	if meta.TotalCount != 5 || meta.Limit != 2 || meta.Offset != 2 {
		t.Errorf("meta = %+v", meta)
	}
}

func TestGetErrorMessage(t *testing.T) {
	resp := &Response{
		Response: &http.Response{StatusCode: http.StatusConflict},
		Body:     []byte(`{"code":"CAPACITY_EXCEEDED","message":"Room is fully booked"}`),
	}
	if got := GetErrorMessage(resp); got != "Room is fully booked" {
		t.Errorf("GetErrorMessage() = %q", got)
	}
}

func TestWaitForHealthy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	if err := NewHttpClient(server.URL).WaitForHealthy(time.Second); err != nil {
		t.Errorf("WaitForHealthy() error = %v", err)
	}
}
