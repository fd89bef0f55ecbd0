package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	cacheerrors "staybook/internal/pricecache/errors"
	"staybook/internal/pricecache/repository"
	pricingservice "staybook/internal/pricing/service"
	"staybook/pkg/calendar"
	"staybook/pkg/config"
	apperrors "staybook/pkg/errors"
	"staybook/pkg/model"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

type ReadMode int

const (
	// ReadStrict refreshes a stale entry before returning it.
	ReadStrict ReadMode = iota
	// ReadTolerant returns a stale entry and refreshes in the background.
	ReadTolerant
)

const sweepConcurrency = 4

type Pricer interface {
	Snapshot(ctx context.Context, roomID string, rng calendar.Range) (*pricingservice.RoomPricing, error)
}

type RoomReader interface {
	GetRoom(ctx context.Context, id string) (*model.Room, error)
}

type PriceCacheService interface {
	Refresh(ctx context.Context, roomID string) (*model.PriceCacheEntry, error)
	Get(ctx context.Context, roomID string, mode ReadMode) (*model.PriceCacheEntry, error)
	Invalidate(ctx context.Context, roomID string) error
	SweepStale(ctx context.Context, now time.Time) (int64, error)
	// Wait blocks until background refreshes have finished.
	Wait()
}

type priceCacheService struct {
	repo       repository.CacheRepository
	pricer     Pricer
	rooms      RoomReader
	group      singleflight.Group
	background sync.WaitGroup
	cfg        *config.Config
	now        func() time.Time
}

func NewPriceCacheService(repo repository.CacheRepository, pricer Pricer, rooms RoomReader, cfg *config.Config) PriceCacheService {
	return &priceCacheService{
		repo:   repo,
		pricer: pricer,
		rooms:  rooms,
		cfg:    cfg,
		now:    time.Now,
	}
}

// Refresh recomputes the room's entry. Concurrent calls for one room share
// a single computation.
func (s *priceCacheService) Refresh(ctx context.Context, roomID string) (*model.PriceCacheEntry, error) {
	if roomID == "" {
		return nil, apperrors.InvalidInput("Room ID cannot be empty")
	}
	// The shared computation is detached from any one caller, so a caller
	// that gives up does not fail the others waiting on it.
	ch := s.group.DoChan(roomID, func() (any, error) {
		ctx, cancel := s.detached(ctx)
		defer cancel()
		return s.refresh(ctx, roomID)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			s.cfg.Log.Debug("Price cache refresh shared", "room_id", roomID)
		}
		entry := *res.Val.(*model.PriceCacheEntry)
		return &entry, nil
	}
}

func (s *priceCacheService) detached(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = context.WithoutCancel(ctx)
	if s.cfg.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.RequestTimeout)
}

func (s *priceCacheService) refresh(ctx context.Context, roomID string) (*model.PriceCacheEntry, error) {
	now := s.now().UTC().Truncate(time.Millisecond)
	start := calendar.Date(now)
	window := calendar.Range{CheckIn: start, CheckOut: start.AddDate(0, 0, LongWindowDays)}

	// The snapshot reads the room before its rules, so a concurrent rule
	// change leaves the entry at an older CacheVersion and it reads as stale.
	pricing, err := s.pricer.Snapshot(ctx, roomID, window)
	if err != nil {
		return nil, err
	}

	sum := summarize(pricing, start)
	band := ClassifyBand(sum.window30.Avg, s.cfg.PriceBandCutoffs)
	entry := &model.PriceCacheEntry{
		RoomID:                roomID,
		Window30:              sum.window30,
		Window90:              sum.window90,
		WeekendMultiplier:     sum.weekendMultiplier,
		HolidayMultiplier:     sum.holidayMultiplier,
		PeakMultiplier:        sum.peakMultiplier,
		PriceBand:             band,
		PriceBandName:         band.String(),
		RoomCacheVersion:      pricing.Room.CacheVersion,
		DataValidUntil:        now.Add(s.cfg.PriceCacheTTL),
		LastPricingRuleChange: now,
		RefreshedAt:           now,
		WindowStart:           start,
		DefaultPrice:          pricing.Room.DefaultPrice,
	}

	if err := s.repo.Upsert(ctx, entry); err != nil {
		s.cfg.Log.Error("Failed to store price cache entry", "room_id", roomID, "error", err)
		return nil, apperrors.Internal("Failed to store price cache entry", err)
	}

	s.cfg.Log.Info("Price cache refreshed",
		"room_id", roomID,
		"avg_30", entry.Window30.Avg,
		"price_band", entry.PriceBandName,
		"room_cache_version", entry.RoomCacheVersion,
	)
	return entry, nil
}

func (s *priceCacheService) Get(ctx context.Context, roomID string, mode ReadMode) (*model.PriceCacheEntry, error) {
	if roomID == "" {
		return nil, apperrors.InvalidInput("Room ID cannot be empty")
	}

	entry, err := s.repo.FindByRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, cacheerrors.ErrEntryNotFound) {
			return s.Refresh(ctx, roomID)
		}
		return nil, apperrors.Internal("Failed to read price cache entry", err)
	}

	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !entry.IsStale(room, s.now()) {
		return entry, nil
	}

	if mode == ReadStrict {
		return s.Refresh(ctx, roomID)
	}
	s.refreshAsync(ctx, roomID)
	return entry, nil
}

func (s *priceCacheService) refreshAsync(ctx context.Context, roomID string) {
	s.background.Add(1)
	go func() {
		defer s.background.Done()

		ctx, cancel := s.detached(ctx)
		defer cancel()

		if _, err := s.Refresh(ctx, roomID); err != nil {
			s.cfg.Log.Warn("Background price cache refresh failed", "room_id", roomID, "error", err)
		}
	}()
}

func (s *priceCacheService) Invalidate(ctx context.Context, roomID string) error {
	if err := s.repo.Invalidate(ctx, roomID, s.now().UTC().Truncate(time.Millisecond)); err != nil {
		return apperrors.Internal("Failed to invalidate price cache entry", err)
	}
	s.cfg.Log.Debug("Price cache invalidated", "room_id", roomID)
	return nil
}

// SweepStale refreshes every entry that expired before now. A failed room
// does not stop the others; the first failure is returned.
func (s *priceCacheService) SweepStale(ctx context.Context, now time.Time) (int64, error) {
	entries, err := s.repo.FindExpired(ctx, now)
	if err != nil {
		return 0, apperrors.Internal("Failed to find stale price cache entries", err)
	}

	var (
		refreshed atomic.Int64
		g         errgroup.Group
	)
	g.SetLimit(sweepConcurrency)
	for _, entry := range entries {
		roomID := entry.RoomID
		g.Go(func() error {
			if _, err := s.Refresh(ctx, roomID); err != nil {
				s.cfg.Log.Warn("Stale price cache refresh failed", "room_id", roomID, "error", err)
				return err
			}
			refreshed.Add(1)
			return nil
		})
	}
	err = g.Wait()
	return refreshed.Load(), err
}

func (s *priceCacheService) Wait() {
	s.background.Wait()
}
