package service

import (
	"context"
	"testing"
	"time"

	"staybook/internal/inventory/repository"
	"staybook/internal/inventory/validator"
	"staybook/pkg/calendar"
	"staybook/pkg/config"
	"staybook/pkg/db/memory"
	apperrors "staybook/pkg/errors"
	"staybook/pkg/events"
	"staybook/pkg/logger"
	"staybook/pkg/model"
	"staybook/pkg/money"
)

func newRoomService(t *testing.T) (RoomService, *events.Recorder) {
	t.Helper()

	store := memory.New()
	recorder := &events.Recorder{}
	svc := NewRoomService(
		repository.NewMemoryRoomRepository(store),
		repository.NewMemoryOverrideRepository(store),
		validator.NewInventoryValidator(logger.Discard()),
		recorder,
		config.Default(nil),
	)
	return svc, recorder
}

func TestCreateRoom(t *testing.T) {
	svc, _ := newRoomService(t)
	ctx := context.Background()

	room := &model.Room{Name: "Deluxe King", DefaultPrice: money.MustParse("120.00"), TotalUnits: 4}
	if err := svc.CreateRoom(ctx, room); err != nil {
		t.Fatalf("CreateRoom() error = %v", err)
	}
	if room.ID == "" || !room.IsActive {
		t.Errorf("room not initialized: %+v", room)
	}

	stored, err := svc.GetRoom(ctx, room.ID)
	if err != nil {
		t.Fatalf("GetRoom() error = %v", err)
	}
	if stored.DefaultPrice != money.MustParse("120.00") {
		t.Errorf("DefaultPrice = %s", stored.DefaultPrice)
	}

	bad := &model.Room{Name: "X", TotalUnits: 1}
	if err := svc.CreateRoom(ctx, bad); !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Errorf("expected VALIDATION_ERROR for short name, got %v", err)
	}
	negative := &model.Room{Name: "Suite", DefaultPrice: money.FromCents(-1), TotalUnits: 1}
	if err := svc.CreateRoom(ctx, negative); !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Errorf("expected VALIDATION_ERROR for negative price, got %v", err)
	}

	rooms, total, err := svc.ListRooms(ctx, 10, 0)
	if err != nil || total != 1 || len(rooms) != 1 {
		t.Errorf("ListRooms() = %d rooms, total %d, err %v", len(rooms), total, err)
	}
}

func TestUpdateRoom_BumpsCacheVersionOnPriceChange(t *testing.T) {
	svc, recorder := newRoomService(t)
	ctx := context.Background()

	room := &model.Room{Name: "Twin", DefaultPrice: money.FromUnits(80), TotalUnits: 2}
	if err := svc.CreateRoom(ctx, room); err != nil {
		t.Fatalf("CreateRoom() error = %v", err)
	}

	units := 3
	updated, err := svc.UpdateRoom(ctx, room.ID, &model.RoomUpdate{TotalUnits: &units})
	if err != nil {
		t.Fatalf("UpdateRoom() error = %v", err)
	}
	if updated.CacheVersion != 0 || updated.Version != 1 || updated.TotalUnits != 3 {
		t.Errorf("unexpected room after unit change %+v", updated)
	}

	price := money.FromUnits(95)
	updated, err = svc.UpdateRoom(ctx, room.ID, &model.RoomUpdate{DefaultPrice: &price})
	if err != nil {
		t.Fatalf("UpdateRoom() error = %v", err)
	}
	if updated.CacheVersion != 1 || updated.Version != 2 {
		t.Errorf("price change should bump both tokens, got version %d cache %d", updated.Version, updated.CacheVersion)
	}
	if n := len(recorder.OfType(events.TypeRoomPricingChanged)); n != 1 {
		t.Errorf("expected one room.pricing_changed event, got %d", n)
	}

	if _, err := svc.UpdateRoom(ctx, "missing", &model.RoomUpdate{TotalUnits: &units}); !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestSetOverride_UpsertsAndBumpsCacheVersion(t *testing.T) {
	svc, recorder := newRoomService(t)
	ctx := context.Background()

	room := &model.Room{Name: "Loft", DefaultPrice: money.FromUnits(150), TotalUnits: 1}
	if err := svc.CreateRoom(ctx, room); err != nil {
		t.Fatalf("CreateRoom() error = %v", err)
	}

	price := money.FromUnits(200)
	first, err := svc.SetOverride(ctx, &model.AvailabilityOverride{RoomID: room.ID, Date: day(14).Add(15 * time.Minute), OverridePrice: &price})
	if err != nil {
		t.Fatalf("SetOverride() error = %v", err)
	}
	if !first.Date.Equal(day(14)) {
		t.Errorf("override date not normalized: %v", first.Date)
	}

	count := 0
	second, err := svc.SetOverride(ctx, &model.AvailabilityOverride{RoomID: room.ID, Date: day(14), AvailableCount: &count})
	if err != nil {
		t.Fatalf("SetOverride() error = %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("override for the same date must keep its ID: %s != %s", second.ID, first.ID)
	}

	overrides, err := svc.ListOverrides(ctx, room.ID, calendar.Range{CheckIn: day(1), CheckOut: day(30)})
	if err != nil || len(overrides) != 1 {
		t.Fatalf("ListOverrides() = %d, %v; want one row", len(overrides), err)
	}
	if overrides[0].OverridePrice != nil {
		t.Errorf("upsert should replace the previous price")
	}

	stored, _ := svc.GetRoom(ctx, room.ID)
	if stored.CacheVersion != 2 {
		t.Errorf("CacheVersion = %d, want 2", stored.CacheVersion)
	}
	if n := len(recorder.OfType(events.TypeRoomPricingChanged)); n != 2 {
		t.Errorf("expected two room.pricing_changed events, got %d", n)
	}

	if err := svc.DeleteOverride(ctx, room.ID, day(14)); err != nil {
		t.Fatalf("DeleteOverride() error = %v", err)
	}
	if err := svc.DeleteOverride(ctx, room.ID, day(14)); !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Errorf("expected NOT_FOUND on second delete, got %v", err)
	}

	if _, err := svc.SetOverride(ctx, &model.AvailabilityOverride{RoomID: room.ID, Date: day(15)}); !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Errorf("empty override should fail validation, got %v", err)
	}
	if _, err := svc.SetOverride(ctx, &model.AvailabilityOverride{RoomID: "missing", Date: day(15), OverridePrice: &price}); !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Errorf("override for unknown room should be NOT_FOUND, got %v", err)
	}
}

func TestDeactivateRoom(t *testing.T) {
	svc, _ := newRoomService(t)
	ctx := context.Background()

	room := &model.Room{Name: "Garden", DefaultPrice: money.FromUnits(70), TotalUnits: 2}
	if err := svc.CreateRoom(ctx, room); err != nil {
		t.Fatalf("CreateRoom() error = %v", err)
	}
	if err := svc.DeactivateRoom(ctx, room.ID); err != nil {
		t.Fatalf("DeactivateRoom() error = %v", err)
	}
	if err := svc.DeactivateRoom(ctx, room.ID); err != nil {
		t.Errorf("second deactivate should be a no-op, got %v", err)
	}

	stored, _ := svc.GetRoom(ctx, room.ID)
	if stored.IsActive {
		t.Error("room should be inactive")
	}
	if model.EffectiveCapacity(stored, nil) != 0 {
		t.Error("inactive room must have zero capacity")
	}
}
