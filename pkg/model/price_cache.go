package model

import (
	"time"

	"staybook/pkg/money"
)

// PriceBand is an ordinal bucket over a room's 30 day average price.
type PriceBand int

const (
	PriceBandBudget PriceBand = iota
	PriceBandEconomy
	PriceBandStandard
	PriceBandPremium
	PriceBandLuxury
)

var priceBandNames = [...]string{"budget", "economy", "standard", "premium", "luxury"}

func (b PriceBand) String() string {
	if b < 0 || int(b) >= len(priceBandNames) {
		return "unknown"
	}
	return priceBandNames[b]
}

type PriceStats struct {
	Min money.Money `json:"min" bson:"min"`
	Max money.Money `json:"max" bson:"max"`
	Avg money.Money `json:"avg" bson:"avg"`
}

type PriceCacheEntry struct {
	RoomID                string      `json:"room_id" bson:"_id"`
	Window30              PriceStats  `json:"window_30" bson:"window_30"`
	Window90              PriceStats  `json:"window_90" bson:"window_90"`
	WeekendMultiplier     money.Rate  `json:"weekend_multiplier" bson:"weekend_multiplier"`
	HolidayMultiplier     money.Rate  `json:"holiday_multiplier" bson:"holiday_multiplier"`
	PeakMultiplier        money.Rate  `json:"peak_multiplier" bson:"peak_multiplier"`
	PriceBand             PriceBand   `json:"price_band" bson:"price_band"`
	PriceBandName         string      `json:"price_band_name" bson:"price_band_name"`
	RoomCacheVersion      int64       `json:"room_cache_version" bson:"room_cache_version"`
	DataValidUntil        time.Time   `json:"data_valid_until" bson:"data_valid_until"`
	LastPricingRuleChange time.Time   `json:"last_pricing_rule_change" bson:"last_pricing_rule_change"`
	RefreshedAt           time.Time   `json:"refreshed_at" bson:"refreshed_at"`
	WindowStart           time.Time   `json:"window_start" bson:"window_start"`
	DefaultPrice          money.Money `json:"default_price" bson:"default_price"`
}

// IsStale applies the single staleness predicate used by readers and the sweeper.
func (e *PriceCacheEntry) IsStale(room *Room, now time.Time) bool {
	if e.DataValidUntil.Before(now) {
		return true
	}
	return room != nil && e.RoomCacheVersion < room.CacheVersion
}
