package model

import (
	"time"

	"staybook/pkg/money"
)

type Room struct {
	ID              string      `json:"id" bson:"_id"`
	AccommodationID string      `json:"accommodation_id,omitempty" bson:"accommodation_id,omitempty" validate:"omitempty,max=64"`
	Name            string      `json:"name" bson:"name" validate:"required,min=2,max=100"`
	Category        string      `json:"category,omitempty" bson:"category,omitempty" validate:"omitempty,max=50"`
	DefaultPrice    money.Money `json:"default_price" bson:"default_price"`
	TotalUnits      int         `json:"total_units" bson:"total_units" validate:"min=0,max=10000"`
	IsActive        bool        `json:"is_active" bson:"is_active"`
	// Version guards the capacity ledger, CacheVersion guards pricing inputs.
	// Both are compared-and-swapped on every write that touches them.
	Version      int64     `json:"version" bson:"version"`
	CacheVersion int64     `json:"cache_version" bson:"cache_version"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" bson:"updated_at"`
}

type RoomUpdate struct {
	Name         string       `json:"name,omitempty" validate:"omitempty,min=2,max=100"`
	Category     *string      `json:"category,omitempty" validate:"omitempty,max=50"`
	DefaultPrice *money.Money `json:"default_price,omitempty"`
	TotalUnits   *int         `json:"total_units,omitempty" validate:"omitempty,min=0,max=10000"`
}

// AvailabilityOverride adjusts a single date of a room. Unique per (RoomID, Date).
type AvailabilityOverride struct {
	ID             string       `json:"id" bson:"_id"`
	RoomID         string       `json:"room_id" bson:"room_id" validate:"required"`
	Date           time.Time    `json:"date" bson:"date" validate:"required"`
	IsAvailable    *bool        `json:"is_available,omitempty" bson:"is_available,omitempty"`
	AvailableCount *int         `json:"available_count,omitempty" bson:"available_count,omitempty" validate:"omitempty,min=0"`
	OverridePrice  *money.Money `json:"override_price,omitempty" bson:"override_price,omitempty"`
	Note           string       `json:"note,omitempty" bson:"note,omitempty" validate:"omitempty,max=200"`
	UpdatedAt      time.Time    `json:"updated_at" bson:"updated_at"`
}

// EffectiveCapacity resolves the sellable units for one date.
func EffectiveCapacity(room *Room, override *AvailabilityOverride) int {
	if !room.IsActive {
		return 0
	}
	if override == nil {
		return room.TotalUnits
	}
	if override.IsAvailable != nil && !*override.IsAvailable {
		return 0
	}
	if override.AvailableCount != nil {
		return *override.AvailableCount
	}
	return room.TotalUnits
}

type NightAvailability struct {
	Date      time.Time `json:"date"`
	Capacity  int       `json:"capacity"`
	Used      int       `json:"used"`
	Remaining int       `json:"remaining"`
}
