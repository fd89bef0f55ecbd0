package model

import (
	"time"

	"staybook/pkg/money"
)

type BookingStatus string

const (
	BookingPending    BookingStatus = "pending"
	BookingConfirmed  BookingStatus = "confirmed"
	BookingCheckedIn  BookingStatus = "checked_in"
	BookingCheckedOut BookingStatus = "checked_out"
	BookingCancelled  BookingStatus = "cancelled"
)

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingPending:   {BookingConfirmed, BookingCancelled},
	BookingConfirmed: {BookingCheckedIn, BookingCancelled},
	BookingCheckedIn: {BookingCheckedOut},
}

func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, allowed := range bookingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ConsumesCapacity lists the statuses that count against room capacity.
func (s BookingStatus) ConsumesCapacity() bool {
	return s == BookingPending || s == BookingConfirmed || s == BookingCheckedIn
}

// CapacityStatuses is ConsumesCapacity as a list, for store queries.
var CapacityStatuses = []BookingStatus{BookingPending, BookingConfirmed, BookingCheckedIn}

type PaymentStatus string

const (
	PaymentPending           PaymentStatus = "pending"
	PaymentPaid              PaymentStatus = "paid"
	PaymentRefundPending     PaymentStatus = "refund_pending"
	PaymentRefunded          PaymentStatus = "refunded"
	PaymentPartiallyRefunded PaymentStatus = "partially_refunded"
)

type Booking struct {
	ID               string        `json:"id" bson:"_id"`
	ReservationID    string        `json:"reservation_id" bson:"reservation_id"`
	RoomID           string        `json:"room_id" bson:"room_id"`
	AccommodationID  string        `json:"accommodation_id,omitempty" bson:"accommodation_id,omitempty"`
	UserID           string        `json:"user_id" bson:"user_id"`
	CheckIn          time.Time     `json:"check_in" bson:"check_in"`
	CheckOut         time.Time     `json:"check_out" bson:"check_out"`
	Quantity         int           `json:"quantity" bson:"quantity"`
	BaseAmount       money.Money   `json:"base_amount" bson:"base_amount"`
	TaxAmount        money.Money   `json:"tax_amount" bson:"tax_amount"`
	ServiceFee       money.Money   `json:"service_fee" bson:"service_fee"`
	TotalAmount      money.Money   `json:"total_amount" bson:"total_amount"`
	Status           BookingStatus `json:"status" bson:"status"`
	PaymentStatus    PaymentStatus `json:"payment_status" bson:"payment_status"`
	PaymentReference string        `json:"payment_reference,omitempty" bson:"payment_reference,omitempty"`
	CheckedInAt      *time.Time    `json:"checked_in_at,omitempty" bson:"checked_in_at,omitempty"`
	CheckedOutAt     *time.Time    `json:"checked_out_at,omitempty" bson:"checked_out_at,omitempty"`
	CancelledAt      *time.Time    `json:"cancelled_at,omitempty" bson:"cancelled_at,omitempty"`
	CancelReason     string        `json:"cancel_reason,omitempty" bson:"cancel_reason,omitempty"`
	Version          int64         `json:"version" bson:"version"`
	CreatedAt        time.Time     `json:"created_at" bson:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at" bson:"updated_at"`
}

type BookingCancellation struct {
	Reason string `json:"reason" validate:"max=500"`
}
