package model

import "time"

type LockType string

const (
	// LockTypeSoft is a shopper session hold with a short TTL.
	LockTypeSoft LockType = "soft"
	// LockTypeHard is held while a payment is in flight.
	LockTypeHard LockType = "hard"
)

func (t LockType) Valid() bool {
	return t == LockTypeSoft || t == LockTypeHard
}

type LockStatus string

const (
	LockStatusActive   LockStatus = "active"
	LockStatusReleased LockStatus = "released"
	LockStatusExpired  LockStatus = "expired"
	LockStatusPromoted LockStatus = "promoted"
)

const (
	ReleaseReasonExpired   = "expired"
	ReleaseReasonCancelled = "cancelled"
	ReleaseReasonPromoted  = "promoted"
	ReleaseReasonFailed    = "reservation_failed"
)

// AvailabilityLock is a claim on Quantity units of a room for [CheckIn, CheckOut).
type AvailabilityLock struct {
	ID            string     `json:"id" bson:"_id"`
	RoomID        string     `json:"room_id" bson:"room_id"`
	CheckIn       time.Time  `json:"check_in" bson:"check_in"`
	CheckOut      time.Time  `json:"check_out" bson:"check_out"`
	Quantity      int        `json:"quantity" bson:"quantity"`
	LockType      LockType   `json:"lock_type" bson:"lock_type"`
	Status        LockStatus `json:"status" bson:"status"`
	ExpiresAt     time.Time  `json:"expires_at,omitempty" bson:"expires_at,omitempty"`
	ReservationID string     `json:"reservation_id,omitempty" bson:"reservation_id,omitempty"`
	BookingID     string     `json:"booking_id,omitempty" bson:"booking_id,omitempty"`
	ReleasedAt    *time.Time `json:"released_at,omitempty" bson:"released_at,omitempty"`
	ReleaseReason string     `json:"release_reason,omitempty" bson:"release_reason,omitempty"`
	CreatedAt     time.Time  `json:"created_at" bson:"created_at"`
}

func (l *AvailabilityLock) IsActive() bool {
	return l.Status == LockStatusActive
}

// IsExpired is the one expiry predicate shared by the sweeper and the lazy
// check on acquisition. A zero ExpiresAt never expires.
func (l *AvailabilityLock) IsExpired(now time.Time) bool {
	return l.IsActive() && !l.ExpiresAt.IsZero() && l.ExpiresAt.Before(now)
}

// LockHandle is returned to callers after a successful acquisition.
type LockHandle struct {
	Lock  *AvailabilityLock `json:"lock"`
	Token string            `json:"token"`
}
