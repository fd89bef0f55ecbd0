package model

import (
	"time"

	"staybook/pkg/money"
)

type ReservationStatus string

const (
	ReservationPending         ReservationStatus = "pending"
	ReservationAwaitingPayment ReservationStatus = "awaiting_payment"
	ReservationConfirmed       ReservationStatus = "confirmed"
	ReservationExpired         ReservationStatus = "expired"
	ReservationCancelled       ReservationStatus = "cancelled"
)

var reservationTransitions = map[ReservationStatus][]ReservationStatus{
	ReservationPending:         {ReservationAwaitingPayment, ReservationConfirmed, ReservationExpired, ReservationCancelled},
	ReservationAwaitingPayment: {ReservationConfirmed, ReservationExpired, ReservationCancelled},
}

func (s ReservationStatus) CanTransitionTo(next ReservationStatus) bool {
	for _, allowed := range reservationTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsOpen reports whether the reservation still holds capacity.
func (s ReservationStatus) IsOpen() bool {
	return s == ReservationPending || s == ReservationAwaitingPayment
}

type NightlyPrice struct {
	Date  time.Time   `json:"date" bson:"date"`
	Price money.Money `json:"price" bson:"price"`
	// Source is "override", "rule:<id>" or "default".
	Source string `json:"source" bson:"source"`
}

type Reservation struct {
	ID                  string            `json:"id" bson:"_id"`
	RoomID              string            `json:"room_id" bson:"room_id" validate:"required"`
	UserID              string            `json:"user_id" bson:"user_id" validate:"required,max=64"`
	CheckIn             time.Time         `json:"check_in" bson:"check_in" validate:"required"`
	CheckOut            time.Time         `json:"check_out" bson:"check_out" validate:"required,gtfield=CheckIn"`
	Quantity            int               `json:"quantity" bson:"quantity" validate:"required,min=1,max=100"`
	NightlyPrices       []NightlyPrice    `json:"nightly_prices" bson:"nightly_prices"`
	TotalAmount         money.Money       `json:"total_amount" bson:"total_amount"`
	Status              ReservationStatus `json:"status" bson:"status"`
	LockID              string            `json:"lock_id" bson:"lock_id"`
	HoldToken           string            `json:"hold_token,omitempty" bson:"-"`
	ExpiresAt           time.Time         `json:"expires_at" bson:"expires_at"`
	ExtensionCount      int               `json:"extension_count" bson:"extension_count"`
	PaymentURL          string            `json:"payment_url,omitempty" bson:"payment_url,omitempty"`
	PaymentURLExpiresAt *time.Time        `json:"payment_url_expires_at,omitempty" bson:"payment_url_expires_at,omitempty"`
	PaymentReference    string            `json:"payment_reference,omitempty" bson:"payment_reference,omitempty"`
	BookingID           string            `json:"booking_id,omitempty" bson:"booking_id,omitempty"`
	CancelReason        string            `json:"cancel_reason,omitempty" bson:"cancel_reason,omitempty"`
	ClosedAt            *time.Time        `json:"closed_at,omitempty" bson:"closed_at,omitempty"`
	Version             int64             `json:"version" bson:"version"`
	CreatedAt           time.Time         `json:"created_at" bson:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at" bson:"updated_at"`
}

// IsPastDeadline uses the same predicate as lock expiry.
func (r *Reservation) IsPastDeadline(now time.Time) bool {
	return r.Status.IsOpen() && !r.ExpiresAt.IsZero() && r.ExpiresAt.Before(now)
}

type ReservationRequest struct {
	RoomID   string    `json:"room_id" validate:"required,max=64"`
	UserID   string    `json:"user_id" validate:"required,max=64"`
	CheckIn  time.Time `json:"check_in" validate:"required"`
	CheckOut time.Time `json:"check_out" validate:"required"`
	Quantity int       `json:"quantity" validate:"required,min=1,max=100"`
}

type PaymentAttachment struct {
	PaymentURL string `json:"payment_url" validate:"required,url,max=2048"`
	// TTLSeconds of zero uses the configured payment URL lifetime.
	TTLSeconds int `json:"ttl_seconds,omitempty" validate:"min=0,max=86400"`
}

type ReservationConfirmation struct {
	PaymentReference string `json:"payment_reference" validate:"required,max=128"`
}

type ReservationCancellation struct {
	Reason string `json:"reason" validate:"max=500"`
}
