package service

import (
	"testing"
	"time"

	"staybook/pkg/calendar"
	"staybook/pkg/model"
	"staybook/pkg/money"
)

func june(d int) time.Time {
	return time.Date(2030, time.June, d, 0, 0, 0, 0, time.UTC)
}

func weekday(d time.Weekday) *time.Weekday {
	return &d
}

func datePtr(t time.Time) *time.Time {
	return &t
}

func testPricing() *RoomPricing {
	room := &model.Room{ID: "room-1", DefaultPrice: money.FromUnits(100)}
	rules := []*model.PricingRule{
		{ID: "sat", RoomID: "room-1", RuleType: model.RuleTypeDayOfWeek, DayOfWeek: weekday(time.Saturday), FixedPrice: money.FromUnits(150), Priority: 10, IsActive: true},
		{ID: "festival", RoomID: "room-1", RuleType: model.RuleTypeDateRange, StartDate: datePtr(june(8)), EndDate: datePtr(june(10)), FixedPrice: money.FromUnits(200), Priority: 10, IsActive: true},
		{ID: "long-stay", RoomID: "room-1", RuleType: model.RuleTypeFixed, FixedPrice: money.FromUnits(90), Priority: 5, MinimumNights: 3, IsActive: true},
		{ID: "retired", RoomID: "room-1", RuleType: model.RuleTypeFixed, FixedPrice: money.FromUnits(1), Priority: 999, IsActive: false},
	}
	price := money.FromUnits(300)
	overrides := []*model.AvailabilityOverride{{RoomID: "room-1", Date: june(9), OverridePrice: &price}}
	return NewRoomPricing(room, rules, overrides)
}

func TestRoomPricing_Price(t *testing.T) {
	pricing := testPricing()

	tests := []struct {
		name       string
		date       time.Time
		nights     int
		wantPrice  money.Money
		wantSource string
	}{
		{"default on a plain night", june(7), 1, money.FromUnits(100), SourceDefault},
		{"day of week rule", june(1), 1, money.FromUnits(150), "rule:sat"},
		{"range beats day of week at equal priority", june(8), 1, money.FromUnits(200), "rule:festival"},
		{"override short circuits rules", june(9), 1, money.FromUnits(300), SourceOverride},
		{"minimum nights met", june(7), 3, money.FromUnits(90), "rule:long-stay"},
		{"higher priority beats minimum nights rule", june(1), 3, money.FromUnits(150), "rule:sat"},
		{"range end is exclusive", june(10), 1, money.FromUnits(100), SourceDefault},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := pricing.Price(tt.date, tt.nights)
			if got.Price != tt.wantPrice || got.Source != tt.wantSource {
				t.Errorf("Price(%s, %d) = %s from %q, want %s from %q",
					calendar.Format(tt.date), tt.nights, got.Price, got.Source, tt.wantPrice, tt.wantSource)
			}
		})
	}
}

func TestRoomPricing_QuoteUsesStayLength(t *testing.T) {
	pricing := testPricing()

	nightly := pricing.Quote(calendar.Range{CheckIn: june(7), CheckOut: june(10)})
	if len(nightly) != 3 {
		t.Fatalf("len(nightly) = %d, want 3", len(nightly))
	}
	want := []money.Money{money.FromUnits(90), money.FromUnits(200), money.FromUnits(300)}
	for i, n := range nightly {
		if n.Price != want[i] {
			t.Errorf("night %d = %s, want %s", i, n.Price, want[i])
		}
	}

	if got := Total(nightly, 2); got != money.FromUnits(1180) {
		t.Errorf("Total() = %s, want 1180.00", got)
	}

	short := pricing.Quote(calendar.Range{CheckIn: june(7), CheckOut: june(9)})
	if got := Total(short, 1); got != money.FromUnits(300) {
		t.Errorf("two night Total() = %s, want 300.00", got)
	}
}

func TestRulesConflict(t *testing.T) {
	base := model.PricingRule{ID: "a", RoomID: "room-1", RuleType: model.RuleTypeDayOfWeek, DayOfWeek: weekday(time.Friday), Priority: 10, IsActive: true}

	tests := []struct {
		name   string
		modify func(r *model.PricingRule)
		want   bool
	}{
		{"same weekday and priority", func(r *model.PricingRule) {}, true},
		{"different weekday", func(r *model.PricingRule) { r.DayOfWeek = weekday(time.Saturday) }, false},
		{"different priority", func(r *model.PricingRule) { r.Priority = 11 }, false},
		{"inactive", func(r *model.PricingRule) { r.IsActive = false }, false},
		{"other room", func(r *model.PricingRule) { r.RoomID = "room-2" }, false},
		{"different type", func(r *model.PricingRule) { r.RuleType = model.RuleTypeFixed }, false},
		{"same rule", func(r *model.PricingRule) { r.ID = "a" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			other := base
			other.ID = "b"
			tt.modify(&other)
			if got := rulesConflict(&base, &other); got != tt.want {
				t.Errorf("rulesConflict() = %v, want %v", got, tt.want)
			}
		})
	}

	r1 := &model.PricingRule{ID: "r1", RoomID: "room-1", RuleType: model.RuleTypeDateRange, StartDate: datePtr(june(1)), EndDate: datePtr(june(5)), Priority: 1, IsActive: true}
	r2 := &model.PricingRule{ID: "r2", RoomID: "room-1", RuleType: model.RuleTypeDateRange, StartDate: datePtr(june(5)), EndDate: datePtr(june(9)), Priority: 1, IsActive: true}
	if rulesConflict(r1, r2) {
		t.Error("adjacent ranges must not conflict")
	}
	r2.StartDate = datePtr(june(4))
	if !rulesConflict(r1, r2) {
		t.Error("overlapping ranges must conflict")
	}
}
