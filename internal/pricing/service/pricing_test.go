package service

import (
	"context"
	"testing"
	"time"

	inventoryrepo "staybook/internal/inventory/repository"
	inventoryservice "staybook/internal/inventory/service"
	inventoryvalidator "staybook/internal/inventory/validator"
	"staybook/internal/pricing/repository"
	"staybook/internal/pricing/validator"
	"staybook/pkg/calendar"
	"staybook/pkg/config"
	"staybook/pkg/db/memory"
	apperrors "staybook/pkg/errors"
	"staybook/pkg/events"
	"staybook/pkg/logger"
	"staybook/pkg/model"
	"staybook/pkg/money"
)

type pricingFixture struct {
	rooms    inventoryservice.RoomService
	pricing  PricingService
	recorder *events.Recorder
	room     *model.Room
}

func newPricingFixture(t *testing.T) *pricingFixture {
	t.Helper()

	cfg := config.Default(nil)
	store := memory.New()
	recorder := &events.Recorder{}
	rooms := inventoryservice.NewRoomService(
		inventoryrepo.NewMemoryRoomRepository(store),
		inventoryrepo.NewMemoryOverrideRepository(store),
		inventoryvalidator.NewInventoryValidator(logger.Discard()),
		recorder,
		cfg,
	)
	pricing := NewPricingService(
		repository.NewMemoryRuleRepository(store),
		rooms,
		validator.NewRuleValidator(logger.Discard()),
		recorder,
		cfg,
	)

	room := &model.Room{Name: "Garden Suite", DefaultPrice: money.FromUnits(100), TotalUnits: 2}
	if err := rooms.CreateRoom(context.Background(), room); err != nil {
		t.Fatalf("CreateRoom() error = %v", err)
	}
	return &pricingFixture{rooms: rooms, pricing: pricing, recorder: recorder, room: room}
}

func TestCreateRule_BumpsCacheVersion(t *testing.T) {
	f := newPricingFixture(t)
	ctx := context.Background()

	rule := &model.PricingRule{
		RoomID:     f.room.ID,
		RuleType:   model.RuleTypeDayOfWeek,
		DayOfWeek:  weekday(time.Saturday),
		FixedPrice: money.FromUnits(150),
		Priority:   10,
		IsActive:   true,
	}
	if err := f.pricing.CreateRule(ctx, rule); err != nil {
		t.Fatalf("CreateRule() error = %v", err)
	}

	room, err := f.rooms.GetRoom(ctx, f.room.ID)
	if err != nil {
		t.Fatalf("GetRoom() error = %v", err)
	}
	if room.CacheVersion != f.room.CacheVersion+1 {
		t.Errorf("CacheVersion = %d, want %d", room.CacheVersion, f.room.CacheVersion+1)
	}

	changed := f.recorder.OfType(events.TypeRoomPricingChanged)
	if len(changed) != 1 || changed[0].Data["cause"] != "rule_created" {
		t.Errorf("pricing changed events = %+v", changed)
	}

	price, err := f.pricing.PriceFor(ctx, f.room.ID, june(1), 1)
	if err != nil {
		t.Fatalf("PriceFor() error = %v", err)
	}
	if price != money.FromUnits(150) {
		t.Errorf("PriceFor(Saturday) = %s, want 150.00", price)
	}
}

func TestCreateRule_Conflict(t *testing.T) {
	f := newPricingFixture(t)
	ctx := context.Background()

	first := &model.PricingRule{RoomID: f.room.ID, RuleType: model.RuleTypeDayOfWeek, DayOfWeek: weekday(time.Friday), FixedPrice: money.FromUnits(120), Priority: 10, IsActive: true}
	if err := f.pricing.CreateRule(ctx, first); err != nil {
		t.Fatalf("CreateRule() error = %v", err)
	}

	clash := &model.PricingRule{RoomID: f.room.ID, RuleType: model.RuleTypeDayOfWeek, DayOfWeek: weekday(time.Friday), FixedPrice: money.FromUnits(130), Priority: 10, IsActive: true}
	err := f.pricing.CreateRule(ctx, clash)
	if !apperrors.HasCode(err, apperrors.CodeRuleConflict) {
		t.Fatalf("expected RULE_CONFLICT, got %v", err)
	}
	if details := apperrors.AsAppError(err).Details; details["conflicting_rule_id"] != first.ID {
		t.Errorf("conflicting_rule_id = %v, want %s", details["conflicting_rule_id"], first.ID)
	}

	rules, err := f.pricing.ListRules(ctx, f.room.ID)
	if err != nil || len(rules) != 1 {
		t.Fatalf("ListRules() = %d rules, err %v", len(rules), err)
	}

	room, _ := f.rooms.GetRoom(ctx, f.room.ID)
	if room.CacheVersion != f.room.CacheVersion+1 {
		t.Errorf("rejected rule must not bump CacheVersion, got %d", room.CacheVersion)
	}

	clash.Priority = 11
	if err := f.pricing.CreateRule(ctx, clash); err != nil {
		t.Errorf("different priority should be accepted, got %v", err)
	}
}

func TestCreateRule_Validation(t *testing.T) {
	f := newPricingFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		rule model.PricingRule
		code string
	}{
		{"day of week without day", model.PricingRule{RoomID: f.room.ID, RuleType: model.RuleTypeDayOfWeek, IsActive: true}, apperrors.CodeValidation},
		{"inverted range", model.PricingRule{RoomID: f.room.ID, RuleType: model.RuleTypeDateRange, StartDate: datePtr(june(5)), EndDate: datePtr(june(5)), IsActive: true}, apperrors.CodeValidation},
		{"negative price", model.PricingRule{RoomID: f.room.ID, RuleType: model.RuleTypeFixed, FixedPrice: money.FromCents(-100), IsActive: true}, apperrors.CodeValidation},
		{"unknown type", model.PricingRule{RoomID: f.room.ID, RuleType: "seasonal", IsActive: true}, apperrors.CodeValidation},
		{"unknown room", model.PricingRule{RoomID: "missing", RuleType: model.RuleTypeFixed, IsActive: true}, apperrors.CodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := tt.rule
			if err := f.pricing.CreateRule(ctx, &rule); !apperrors.HasCode(err, tt.code) {
				t.Errorf("expected %s, got %v", tt.code, err)
			}
		})
	}
}

func TestQuote_OverrideAndRules(t *testing.T) {
	f := newPricingFixture(t)
	ctx := context.Background()

	festival := &model.PricingRule{RoomID: f.room.ID, RuleType: model.RuleTypeDateRange, StartDate: datePtr(june(8)), EndDate: datePtr(june(10)), FixedPrice: money.FromUnits(200), Priority: 10, IsActive: true}
	if err := f.pricing.CreateRule(ctx, festival); err != nil {
		t.Fatalf("CreateRule() error = %v", err)
	}
	price := money.FromUnits(300)
	if _, err := f.rooms.SetOverride(ctx, &model.AvailabilityOverride{RoomID: f.room.ID, Date: june(9), OverridePrice: &price}); err != nil {
		t.Fatalf("SetOverride() error = %v", err)
	}

	quote, err := f.pricing.Quote(ctx, f.room.ID, calendar.Range{CheckIn: june(7), CheckOut: june(10)}, 2)
	if err != nil {
		t.Fatalf("Quote() error = %v", err)
	}
	// 100 + 200 + 300 per unit
	if quote.TotalAmount != money.FromUnits(1200) {
		t.Errorf("TotalAmount = %s, want 1200.00", quote.TotalAmount)
	}
	if quote.Nightly[2].Source != SourceOverride {
		t.Errorf("night 3 source = %q, want override", quote.Nightly[2].Source)
	}

	if _, err := f.pricing.QuoteTotal(ctx, f.room.ID, calendar.Range{CheckIn: june(7), CheckOut: june(7)}, 1); !apperrors.HasCode(err, apperrors.CodeInvalidDateRange) {
		t.Errorf("expected INVALID_DATE_RANGE, got %v", err)
	}
	if _, err := f.pricing.QuoteTotal(ctx, f.room.ID, calendar.Range{CheckIn: june(7), CheckOut: june(8)}, 0); !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT for zero quantity, got %v", err)
	}
}

func TestDeactivateRule(t *testing.T) {
	f := newPricingFixture(t)
	ctx := context.Background()

	rule := &model.PricingRule{RoomID: f.room.ID, RuleType: model.RuleTypeFixed, FixedPrice: money.FromUnits(80), Priority: 1, IsActive: true}
	if err := f.pricing.CreateRule(ctx, rule); err != nil {
		t.Fatalf("CreateRule() error = %v", err)
	}
	if err := f.pricing.DeactivateRule(ctx, rule.ID); err != nil {
		t.Fatalf("DeactivateRule() error = %v", err)
	}

	price, err := f.pricing.PriceFor(ctx, f.room.ID, june(3), 1)
	if err != nil {
		t.Fatalf("PriceFor() error = %v", err)
	}
	if price != money.FromUnits(100) {
		t.Errorf("PriceFor() = %s, want default 100.00", price)
	}

	stored, err := f.pricing.GetRule(ctx, rule.ID)
	if err != nil || stored.IsActive {
		t.Errorf("GetRule() = %+v, %v", stored, err)
	}

	if err := f.pricing.DeactivateRule(ctx, "missing"); !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestUpdateRule_KeepsRoomAndIdentity(t *testing.T) {
	f := newPricingFixture(t)
	ctx := context.Background()

	rule := &model.PricingRule{RoomID: f.room.ID, RuleType: model.RuleTypeFixed, FixedPrice: money.FromUnits(80), Priority: 1, IsActive: true}
	if err := f.pricing.CreateRule(ctx, rule); err != nil {
		t.Fatalf("CreateRule() error = %v", err)
	}

	updated, err := f.pricing.UpdateRule(ctx, rule.ID, &model.PricingRule{
		RoomID:     "ignored",
		RuleType:   model.RuleTypeFixed,
		FixedPrice: money.FromUnits(95),
		Priority:   2,
		IsActive:   true,
	})
	if err != nil {
		t.Fatalf("UpdateRule() error = %v", err)
	}
	if updated.ID != rule.ID || updated.RoomID != f.room.ID || !updated.CreatedAt.Equal(rule.CreatedAt) {
		t.Errorf("identity changed: %+v", updated)
	}

	price, _ := f.pricing.PriceFor(ctx, f.room.ID, june(3), 1)
	if price != money.FromUnits(95) {
		t.Errorf("PriceFor() = %s, want 95.00", price)
	}
}
