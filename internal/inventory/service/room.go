package service

import (
	"context"
	"errors"
	"sync"
	"time"

	inventoryerrors "staybook/internal/inventory/errors"
	"staybook/internal/inventory/repository"
	"staybook/internal/inventory/validator"
	"staybook/pkg/calendar"
	"staybook/pkg/config"
	apperrors "staybook/pkg/errors"
	"staybook/pkg/events"
	"staybook/pkg/model"
	"staybook/pkg/sanitizer"

	"github.com/google/uuid"
)

type RoomService interface {
	CreateRoom(ctx context.Context, room *model.Room) error
	GetRoom(ctx context.Context, id string) (*model.Room, error)
	ListRooms(ctx context.Context, limit int, offset int64) ([]*model.Room, int64, error)
	UpdateRoom(ctx context.Context, id string, updates *model.RoomUpdate) (*model.Room, error)
	DeactivateRoom(ctx context.Context, id string) error

	SetOverride(ctx context.Context, override *model.AvailabilityOverride) (*model.AvailabilityOverride, error)
	DeleteOverride(ctx context.Context, roomID string, date time.Time) error
	ListOverrides(ctx context.Context, roomID string, rng calendar.Range) ([]*model.AvailabilityOverride, error)

	// BumpCacheVersion advances the room's pricing token. Called with a
	// transaction ctx it joins that transaction.
	BumpCacheVersion(ctx context.Context, roomID string) (int64, error)
}

type roomService struct {
	roomRepo     repository.RoomRepository
	overrideRepo repository.OverrideRepository
	validator    *validator.InventoryValidator
	publisher    events.Publisher
	cfg          *config.Config
}

func NewRoomService(
	roomRepo repository.RoomRepository,
	overrideRepo repository.OverrideRepository,
	validator *validator.InventoryValidator,
	publisher events.Publisher,
	cfg *config.Config,
) RoomService {
	return &roomService{
		roomRepo:     roomRepo,
		overrideRepo: overrideRepo,
		validator:    validator,
		publisher:    publisher,
		cfg:          cfg,
	}
}

func (s *roomService) CreateRoom(ctx context.Context, room *model.Room) error {
	now := time.Now().UTC().Truncate(time.Millisecond)
	if room.ID == "" {
		room.ID = uuid.New().String()
	}
	room.Name = sanitizer.NormalizeName(room.Name)
	room.Category = sanitizer.NormalizeLabel(room.Category)
	room.IsActive = true
	room.Version = 0
	room.CacheVersion = 0
	room.CreatedAt = now
	room.UpdatedAt = now

	if err := s.validator.ValidateRoom(room); err != nil {
		s.cfg.Log.Warn("Room validation failed", "name", room.Name, "error", err)
		return apperrors.Validation("Invalid room", map[string]any{"error": err.Error()})
	}

	if err := s.roomRepo.Create(ctx, room); err != nil {
		if errors.Is(err, inventoryerrors.ErrDuplicateRoom) {
			return apperrors.Conflict("Room with this ID already exists")
		}
		s.cfg.Log.Error("Failed to create room", "error", err)
		return apperrors.Internal("Failed to create room", err)
	}

	s.cfg.Log.Info("Room created",
		"room_id", room.ID,
		"accommodation_id", room.AccommodationID,
		"total_units", room.TotalUnits,
		"default_price", room.DefaultPrice,
	)
	return nil
}

func (s *roomService) GetRoom(ctx context.Context, id string) (*model.Room, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Room ID cannot be empty")
	}
	room, err := s.roomRepo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapRoomError(err, id)
	}
	return room, nil
}

func (s *roomService) ListRooms(ctx context.Context, limit int, offset int64) ([]*model.Room, int64, error) {
	var (
		rooms    []*model.Room
		count    int64
		errFind  error
		errCount error
		wg       sync.WaitGroup
	)
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.roomRepo.Count(ctx)
	}()
	go func() {
		defer wg.Done()
		rooms, errFind = s.roomRepo.FindAll(ctx, limit, offset)
	}()
	wg.Wait()

	if errCount != nil {
		s.cfg.Log.Error("Failed to count rooms", "error", errCount)
		return nil, 0, apperrors.Internal("Failed to count rooms", errCount)
	}
	if errFind != nil {
		s.cfg.Log.Error("Failed to list rooms", "error", errFind)
		return nil, 0, apperrors.Internal("Failed to retrieve rooms", errFind)
	}
	return rooms, count, nil
}

func (s *roomService) UpdateRoom(ctx context.Context, id string, updates *model.RoomUpdate) (*model.Room, error) {
	if err := s.validator.ValidateRoomUpdate(updates); err != nil {
		return nil, apperrors.Validation("Invalid room update", map[string]any{"error": err.Error()})
	}

	var updated *model.Room
	for attempt := 0; ; attempt++ {
		current, err := s.GetRoom(ctx, id)
		if err != nil {
			return nil, err
		}

		merged, pricingChanged := mergeRoomUpdates(current, updates)
		var cacheDelta int64
		if pricingChanged {
			cacheDelta = 1
		}

		err = s.roomRepo.Update(ctx, merged, current.Version, cacheDelta)
		if err == nil {
			merged.Version = current.Version + 1
			merged.CacheVersion = current.CacheVersion + cacheDelta
			updated = merged
			if pricingChanged {
				s.emitPricingChanged(ctx, id, "room_updated", merged.CacheVersion)
			}
			break
		}
		if !errors.Is(err, inventoryerrors.ErrVersionConflict) || attempt >= s.cfg.LockMaxRetries {
			s.cfg.Log.Error("Failed to update room", "room_id", id, "error", err)
			return nil, s.mapRoomError(err, id)
		}
	}

	s.cfg.Log.Info("Room updated", "room_id", id, "version", updated.Version, "cache_version", updated.CacheVersion)
	return updated, nil
}

func mergeRoomUpdates(current *model.Room, updates *model.RoomUpdate) (*model.Room, bool) {
	merged := *current
	pricingChanged := false

	if name := sanitizer.NormalizeName(updates.Name); name != "" {
		merged.Name = name
	}
	if updates.Category != nil {
		merged.Category = sanitizer.NormalizeLabel(*updates.Category)
	}
	if updates.DefaultPrice != nil && *updates.DefaultPrice != current.DefaultPrice {
		merged.DefaultPrice = *updates.DefaultPrice
		pricingChanged = true
	}
	if updates.TotalUnits != nil {
		merged.TotalUnits = *updates.TotalUnits
	}
	merged.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)
	return &merged, pricingChanged
}

func (s *roomService) DeactivateRoom(ctx context.Context, id string) error {
	for attempt := 0; ; attempt++ {
		current, err := s.GetRoom(ctx, id)
		if err != nil {
			return err
		}
		if !current.IsActive {
			return nil
		}

		merged := *current
		merged.IsActive = false
		merged.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)

		err = s.roomRepo.Update(ctx, &merged, current.Version, 0)
		if err == nil {
			break
		}
		if !errors.Is(err, inventoryerrors.ErrVersionConflict) || attempt >= s.cfg.LockMaxRetries {
			return s.mapRoomError(err, id)
		}
	}

	s.cfg.Log.Info("Room deactivated", "room_id", id)
	return nil
}

func (s *roomService) SetOverride(ctx context.Context, override *model.AvailabilityOverride) (*model.AvailabilityOverride, error) {
	override.Date = calendar.Date(override.Date)
	override.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)
	if override.ID == "" {
		override.ID = uuid.New().String()
	}
	if err := s.validator.ValidateOverride(override); err != nil {
		return nil, apperrors.Validation("Invalid availability override", map[string]any{"error": err.Error()})
	}

	var (
		stored       *model.AvailabilityOverride
		cacheVersion int64
	)
	err := s.roomRepo.ExecuteTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.roomRepo.FindByID(ctx, override.RoomID); err != nil {
			return s.mapRoomError(err, override.RoomID)
		}
		var err error
		stored, err = s.overrideRepo.Upsert(ctx, override)
		if err != nil {
			return apperrors.Internal("Failed to store availability override", err)
		}
		cacheVersion, err = s.BumpCacheVersion(ctx, override.RoomID)
		return err
	})
	if err != nil {
		s.cfg.Log.Error("Failed to set availability override", "room_id", override.RoomID, "error", err)
		return nil, err
	}

	s.cfg.Log.Info("Availability override set",
		"room_id", stored.RoomID,
		"date", calendar.Format(stored.Date),
	)
	s.emitPricingChanged(ctx, stored.RoomID, "override_set", cacheVersion)
	return stored, nil
}

func (s *roomService) DeleteOverride(ctx context.Context, roomID string, date time.Time) error {
	date = calendar.Date(date)

	var cacheVersion int64
	err := s.roomRepo.ExecuteTransaction(ctx, func(ctx context.Context) error {
		if err := s.overrideRepo.Delete(ctx, roomID, date); err != nil {
			if errors.Is(err, inventoryerrors.ErrOverrideNotFound) {
				return apperrors.NotFoundWithID("AvailabilityOverride", roomID+"/"+calendar.Format(date))
			}
			return apperrors.Internal("Failed to delete availability override", err)
		}
		var err error
		cacheVersion, err = s.BumpCacheVersion(ctx, roomID)
		return err
	})
	if err != nil {
		return err
	}

	s.cfg.Log.Info("Availability override deleted", "room_id", roomID, "date", calendar.Format(date))
	s.emitPricingChanged(ctx, roomID, "override_deleted", cacheVersion)
	return nil
}

func (s *roomService) ListOverrides(ctx context.Context, roomID string, rng calendar.Range) ([]*model.AvailabilityOverride, error) {
	overrides, err := s.overrideRepo.FindByRoomRange(ctx, roomID, rng.CheckIn, rng.CheckOut)
	if err != nil {
		return nil, apperrors.Internal("Failed to retrieve availability overrides", err)
	}
	return overrides, nil
}

func (s *roomService) BumpCacheVersion(ctx context.Context, roomID string) (int64, error) {
	for attempt := 0; ; attempt++ {
		room, err := s.roomRepo.FindByID(ctx, roomID)
		if err != nil {
			return 0, s.mapRoomError(err, roomID)
		}
		err = s.roomRepo.BumpCacheVersion(ctx, roomID, room.CacheVersion)
		if err == nil {
			return room.CacheVersion + 1, nil
		}
		if !errors.Is(err, inventoryerrors.ErrVersionConflict) {
			return 0, s.mapRoomError(err, roomID)
		}
		if attempt >= s.cfg.LockMaxRetries {
			return 0, apperrors.ConcurrentModification("Room", roomID)
		}
	}
}

func (s *roomService) emitPricingChanged(ctx context.Context, roomID, cause string, cacheVersion int64) {
	events.Emit(ctx, s.publisher, s.cfg.Log, events.New(events.TypeRoomPricingChanged, roomID, roomID, map[string]any{
		"cause":         cause,
		"cache_version": cacheVersion,
	}))
}

func (s *roomService) mapRoomError(err error, roomID string) error {
	switch {
	case apperrors.IsAppError(err):
		return err
	case errors.Is(err, inventoryerrors.ErrRoomNotFound):
		return apperrors.NotFoundWithID("Room", roomID)
	case errors.Is(err, inventoryerrors.ErrVersionConflict):
		return apperrors.ConcurrentModification("Room", roomID)
	default:
		return apperrors.Internal("Failed to access room", err)
	}
}
