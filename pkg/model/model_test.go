package model

import (
	"testing"
	"time"

	"staybook/pkg/money"
)

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestEffectiveCapacity(t *testing.T) {
	no := false
	three := 3
	room := &Room{TotalUnits: 5, IsActive: true}

	tests := []struct {
		name     string
		room     *Room
		override *AvailabilityOverride
		want     int
	}{
		{"no override", room, nil, 5},
		{"closed date", room, &AvailabilityOverride{IsAvailable: &no, AvailableCount: &three}, 0},
		{"reduced count", room, &AvailabilityOverride{AvailableCount: &three}, 3},
		{"price only override", room, &AvailabilityOverride{OverridePrice: ptrMoney(money.FromUnits(10))}, 5},
		{"inactive room", &Room{TotalUnits: 5}, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EffectiveCapacity(tt.room, tt.override); got != tt.want {
				t.Errorf("EffectiveCapacity() = %d, want %d", got, tt.want)
			}
		})
	}
}

func ptrMoney(m money.Money) *money.Money { return &m }

func TestPricingRule_AppliesOn(t *testing.T) {
	friday := time.Friday
	start, end := date("2026-07-01"), date("2026-07-10")

	tests := []struct {
		name   string
		rule   PricingRule
		date   time.Time
		nights int
		want   bool
	}{
		{"day of week match", PricingRule{RuleType: RuleTypeDayOfWeek, DayOfWeek: &friday, IsActive: true}, date("2026-03-13"), 1, true},
		{"day of week miss", PricingRule{RuleType: RuleTypeDayOfWeek, DayOfWeek: &friday, IsActive: true}, date("2026-03-14"), 1, false},
		{"range start inclusive", PricingRule{RuleType: RuleTypeDateRange, StartDate: &start, EndDate: &end, IsActive: true}, start, 1, true},
		{"range end exclusive", PricingRule{RuleType: RuleTypeDateRange, StartDate: &start, EndDate: &end, IsActive: true}, end, 1, false},
		{"minimum nights not met", PricingRule{RuleType: RuleTypeFixed, MinimumNights: 3, IsActive: true}, start, 2, false},
		{"minimum nights met", PricingRule{RuleType: RuleTypeFixed, MinimumNights: 3, IsActive: true}, start, 3, true},
		{"inactive", PricingRule{RuleType: RuleTypeFixed}, start, 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rule.AppliesOn(tt.date, tt.nights); got != tt.want {
				t.Errorf("AppliesOn() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPricingRule_Outranks(t *testing.T) {
	rangeRule := &PricingRule{RuleType: RuleTypeDateRange, Priority: 10}
	weekday := &PricingRule{RuleType: RuleTypeDayOfWeek, Priority: 10}
	fixedHigh := &PricingRule{RuleType: RuleTypeFixed, Priority: 20}

	if !rangeRule.Outranks(weekday) {
		t.Error("date range should beat day of week on equal priority")
	}
	if weekday.Outranks(rangeRule) {
		t.Error("day of week should not beat date range on equal priority")
	}
	if !fixedHigh.Outranks(rangeRule) {
		t.Error("higher priority should win regardless of type")
	}
}

func TestAvailabilityLock_IsExpired(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		lock AvailabilityLock
		want bool
	}{
		{"active past expiry", AvailabilityLock{Status: LockStatusActive, ExpiresAt: now.Add(-time.Second)}, true},
		{"active before expiry", AvailabilityLock{Status: LockStatusActive, ExpiresAt: now.Add(time.Minute)}, false},
		{"active at expiry instant", AvailabilityLock{Status: LockStatusActive, ExpiresAt: now}, false},
		{"no expiry", AvailabilityLock{Status: LockStatusActive}, false},
		{"released", AvailabilityLock{Status: LockStatusReleased, ExpiresAt: now.Add(-time.Hour)}, false},
		{"promoted", AvailabilityLock{Status: LockStatusPromoted}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.lock.IsExpired(now); got != tt.want {
				t.Errorf("IsExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReservationStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from ReservationStatus
		to   ReservationStatus
		want bool
	}{
		{ReservationPending, ReservationAwaitingPayment, true},
		{ReservationPending, ReservationConfirmed, true},
		{ReservationPending, ReservationExpired, true},
		{ReservationAwaitingPayment, ReservationCancelled, true},
		{ReservationAwaitingPayment, ReservationPending, false},
		{ReservationConfirmed, ReservationCancelled, false},
		{ReservationExpired, ReservationConfirmed, false},
		{ReservationCancelled, ReservationPending, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
				t.Errorf("CanTransitionTo() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBookingStatus_ConsumesCapacity(t *testing.T) {
	for _, s := range CapacityStatuses {
		if !s.ConsumesCapacity() {
			t.Errorf("%s should consume capacity", s)
		}
	}
	for _, s := range []BookingStatus{BookingCheckedOut, BookingCancelled} {
		if s.ConsumesCapacity() {
			t.Errorf("%s should not consume capacity", s)
		}
	}
	if BookingCheckedOut.CanTransitionTo(BookingCancelled) {
		t.Error("checked out booking must be immutable")
	}
}

func TestRefundPolicy_SelectTier(t *testing.T) {
	policy := &RefundPolicy{Tiers: []RefundPolicyTier{
		{MinDaysBeforeCheckIn: 7, RefundPercentage: money.PercentFromInt(100)},
		{MinDaysBeforeCheckIn: 3, RefundPercentage: money.PercentFromInt(50)},
		{MinDaysBeforeCheckIn: 0, RefundPercentage: money.PercentFromInt(0)},
	}}

	tests := []struct {
		days  int
		want  money.Percent
		found bool
	}{
		{10, money.PercentFromInt(100), true},
		{7, money.PercentFromInt(100), true},
		{6, money.PercentFromInt(50), true},
		{3, money.PercentFromInt(50), true},
		{0, money.PercentFromInt(0), true},
		{-1, 0, false},
	}

	for _, tt := range tests {
		tier, found := policy.SelectTier(tt.days)
		if found != tt.found {
			t.Errorf("days=%d: found = %v, want %v", tt.days, found, tt.found)
			continue
		}
		if found && tier.RefundPercentage != tt.want {
			t.Errorf("days=%d: percentage = %s, want %s", tt.days, tier.RefundPercentage, tt.want)
		}
	}
}

func TestPriceCacheEntry_IsStale(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	entry := &PriceCacheEntry{DataValidUntil: now.Add(time.Hour), RoomCacheVersion: 3}

	if entry.IsStale(&Room{CacheVersion: 3}, now) {
		t.Error("fresh entry reported stale")
	}
	if !entry.IsStale(&Room{CacheVersion: 4}, now) {
		t.Error("entry behind room cache version should be stale")
	}
	if !entry.IsStale(nil, now.Add(2*time.Hour)) {
		t.Error("expired entry should be stale")
	}
	if PriceBandLuxury.String() != "luxury" || PriceBand(9).String() != "unknown" {
		t.Error("unexpected band names")
	}
}
