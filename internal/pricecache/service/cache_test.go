package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	inventoryrepo "staybook/internal/inventory/repository"
	inventoryservice "staybook/internal/inventory/service"
	inventoryvalidator "staybook/internal/inventory/validator"
	"staybook/internal/pricecache/repository"
	pricingrepo "staybook/internal/pricing/repository"
	pricingservice "staybook/internal/pricing/service"
	pricingvalidator "staybook/internal/pricing/validator"
	"staybook/pkg/calendar"
	"staybook/pkg/config"
	"staybook/pkg/db/memory"
	apperrors "staybook/pkg/errors"
	"staybook/pkg/events"
	"staybook/pkg/logger"
	"staybook/pkg/model"
	"staybook/pkg/money"
)

type cacheFixture struct {
	rooms   inventoryservice.RoomService
	pricing pricingservice.PricingService
	cache   *priceCacheService
	repo    repository.CacheRepository
	room    *model.Room
	mu      sync.Mutex
	clock   time.Time
}

func newCacheFixture(t *testing.T) *cacheFixture {
	t.Helper()

	cfg := config.Default(nil)
	store := memory.New()
	publisher := &events.Recorder{}
	rooms := inventoryservice.NewRoomService(
		inventoryrepo.NewMemoryRoomRepository(store),
		inventoryrepo.NewMemoryOverrideRepository(store),
		inventoryvalidator.NewInventoryValidator(logger.Discard()),
		publisher,
		cfg,
	)
	pricing := pricingservice.NewPricingService(
		pricingrepo.NewMemoryRuleRepository(store),
		rooms,
		pricingvalidator.NewRuleValidator(logger.Discard()),
		publisher,
		cfg,
	)
	repo := repository.NewMemoryCacheRepository(store)

	f := &cacheFixture{
		rooms:   rooms,
		pricing: pricing,
		repo:    repo,
		clock:   time.Date(2030, time.June, 3, 10, 0, 0, 0, time.UTC),
	}
	f.cache = NewPriceCacheService(repo, pricing, rooms, cfg).(*priceCacheService)
	f.cache.now = f.now

	f.room = &model.Room{Name: "Courtyard Double", DefaultPrice: money.FromUnits(100), TotalUnits: 3}
	if err := rooms.CreateRoom(context.Background(), f.room); err != nil {
		t.Fatalf("CreateRoom() error = %v", err)
	}
	return f
}

func (f *cacheFixture) now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clock
}

func (f *cacheFixture) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clock = f.clock.Add(d)
}

func saturday() *time.Weekday {
	d := time.Saturday
	return &d
}

func (f *cacheFixture) seedPricing(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	rule := &model.PricingRule{RoomID: f.room.ID, RuleType: model.RuleTypeDayOfWeek, DayOfWeek: saturday(), FixedPrice: money.FromUnits(200), Priority: 1, IsActive: true}
	if err := f.pricing.CreateRule(ctx, rule); err != nil {
		t.Fatalf("CreateRule() error = %v", err)
	}
	price := money.FromUnits(500)
	date := time.Date(2030, time.June, 5, 0, 0, 0, 0, time.UTC)
	if _, err := f.rooms.SetOverride(ctx, &model.AvailabilityOverride{RoomID: f.room.ID, Date: date, OverridePrice: &price}); err != nil {
		t.Fatalf("SetOverride() error = %v", err)
	}
}

func TestRefresh_Aggregates(t *testing.T) {
	f := newCacheFixture(t)
	f.seedPricing(t)

	entry, err := f.cache.Refresh(context.Background(), f.room.ID)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	if entry.Window30.Min > entry.Window30.Avg || entry.Window30.Avg > entry.Window30.Max {
		t.Errorf("window 30 out of order: %+v", entry.Window30)
	}
	want30 := model.PriceStats{Min: money.FromUnits(100), Max: money.FromUnits(500), Avg: money.MustParse("126.67")}
	if entry.Window30 != want30 {
		t.Errorf("Window30 = %+v, want %+v", entry.Window30, want30)
	}
	if entry.Window90.Avg != money.MustParse("118.89") {
		t.Errorf("Window90.Avg = %s, want 118.89", entry.Window90.Avg)
	}
	if entry.WeekendMultiplier.String() != "1.4118" {
		t.Errorf("WeekendMultiplier = %s, want 1.4118", entry.WeekendMultiplier)
	}
	if entry.HolidayMultiplier.String() != "4.2056" || entry.PeakMultiplier.String() != "4.2056" {
		t.Errorf("holiday = %s, peak = %s, want 4.2056", entry.HolidayMultiplier, entry.PeakMultiplier)
	}
	if entry.PriceBand != model.PriceBandStandard || entry.PriceBandName != "standard" {
		t.Errorf("PriceBand = %v (%s)", entry.PriceBand, entry.PriceBandName)
	}

	room, _ := f.rooms.GetRoom(context.Background(), f.room.ID)
	if entry.RoomCacheVersion != room.CacheVersion {
		t.Errorf("RoomCacheVersion = %d, want %d", entry.RoomCacheVersion, room.CacheVersion)
	}
	if !entry.DataValidUntil.Equal(f.now().Add(time.Hour)) {
		t.Errorf("DataValidUntil = %v", entry.DataValidUntil)
	}
}

func TestRefresh_FlatPricing(t *testing.T) {
	f := newCacheFixture(t)

	entry, err := f.cache.Refresh(context.Background(), f.room.ID)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	for name, rate := range map[string]money.Rate{
		"weekend": entry.WeekendMultiplier,
		"holiday": entry.HolidayMultiplier,
		"peak":    entry.PeakMultiplier,
	} {
		if rate != money.RateOne {
			t.Errorf("%s multiplier = %s, want 1.0000", name, rate)
		}
	}
	if entry.PriceBand != model.PriceBandStandard {
		t.Errorf("PriceBand = %s, want standard for an average of 100.00", entry.PriceBand)
	}

	if _, err := f.cache.Refresh(context.Background(), "missing"); !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestClassifyBand(t *testing.T) {
	cutoffs := []money.Money{money.FromUnits(50), money.FromUnits(100), money.FromUnits(200), money.FromUnits(400)}

	tests := []struct {
		avg  string
		want model.PriceBand
	}{
		{"0.00", model.PriceBandBudget},
		{"49.99", model.PriceBandBudget},
		{"50.00", model.PriceBandEconomy},
		{"150.00", model.PriceBandStandard},
		{"399.99", model.PriceBandPremium},
		{"400.00", model.PriceBandLuxury},
		{"9999.00", model.PriceBandLuxury},
	}
	for _, tt := range tests {
		if got := ClassifyBand(money.MustParse(tt.avg), cutoffs); got != tt.want {
			t.Errorf("ClassifyBand(%s) = %s, want %s", tt.avg, got, tt.want)
		}
	}

	prev := model.PriceBandBudget
	for cents := int64(0); cents <= 50000; cents += 137 {
		band := ClassifyBand(money.FromCents(cents), cutoffs)
		if band < prev {
			t.Fatalf("band decreased at %s", money.FromCents(cents))
		}
		prev = band
	}
}

func TestGet_StrictRefreshesOnCacheVersion(t *testing.T) {
	f := newCacheFixture(t)
	ctx := context.Background()

	first, err := f.cache.Get(ctx, f.room.ID, ReadStrict)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if first.Window30.Max != money.FromUnits(100) {
		t.Fatalf("Window30.Max = %s", first.Window30.Max)
	}

	f.seedPricing(t)

	second, err := f.cache.Get(ctx, f.room.ID, ReadStrict)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if second.Window30.Max != money.FromUnits(500) {
		t.Errorf("strict read returned stale entry: %+v", second.Window30)
	}
	if second.RoomCacheVersion <= first.RoomCacheVersion {
		t.Errorf("RoomCacheVersion did not move: %d -> %d", first.RoomCacheVersion, second.RoomCacheVersion)
	}
}

func TestGet_TolerantServesStaleAndRefreshes(t *testing.T) {
	f := newCacheFixture(t)
	ctx := context.Background()

	if _, err := f.cache.Refresh(ctx, f.room.ID); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	f.advance(2 * time.Hour)

	stale, err := f.cache.Get(ctx, f.room.ID, ReadTolerant)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !stale.DataValidUntil.Before(f.now()) {
		t.Errorf("expected the stale entry back, DataValidUntil = %v", stale.DataValidUntil)
	}

	f.cache.Wait()

	fresh, err := f.repo.FindByRoom(ctx, f.room.ID)
	if err != nil {
		t.Fatalf("FindByRoom() error = %v", err)
	}
	if !fresh.DataValidUntil.After(f.now()) {
		t.Errorf("background refresh did not run, DataValidUntil = %v", fresh.DataValidUntil)
	}
}

func TestInvalidateAndSweepStale(t *testing.T) {
	f := newCacheFixture(t)
	ctx := context.Background()

	if _, err := f.cache.Refresh(ctx, f.room.ID); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if err := f.cache.Invalidate(ctx, f.room.ID); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}
	if err := f.cache.Invalidate(ctx, "missing"); err != nil {
		t.Errorf("Invalidate(missing) error = %v", err)
	}

	f.advance(time.Second)
	n, err := f.cache.SweepStale(ctx, f.now())
	if err != nil || n != 1 {
		t.Fatalf("SweepStale() = %d, %v, want 1", n, err)
	}

	n, err = f.cache.SweepStale(ctx, f.now())
	if err != nil || n != 0 {
		t.Errorf("second SweepStale() = %d, %v, want 0", n, err)
	}

	expired, _ := f.repo.FindExpired(ctx, f.now().Add(2*time.Hour))
	if len(expired) != 1 {
		t.Errorf("expected one entry per room, got %d", len(expired))
	}
}

func TestRefresh_Concurrent(t *testing.T) {
	f := newCacheFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.cache.Refresh(ctx, f.room.ID); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("Refresh() error = %v", err)
	}

	entry, err := f.repo.FindByRoom(ctx, f.room.ID)
	if err != nil || entry.RoomID != f.room.ID {
		t.Errorf("FindByRoom() = %+v, %v", entry, err)
	}
}

type gatedPricer struct {
	Pricer
	entered chan struct{}
	release chan struct{}
}

func (g *gatedPricer) Snapshot(ctx context.Context, roomID string, rng calendar.Range) (*pricingservice.RoomPricing, error) {
	g.entered <- struct{}{}
	<-g.release
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return g.Pricer.Snapshot(ctx, roomID, rng)
}

func TestRefresh_CancelledCallerDoesNotFailWaiters(t *testing.T) {
	f := newCacheFixture(t)
	gate := &gatedPricer{Pricer: f.cache.pricer, entered: make(chan struct{}, 2), release: make(chan struct{})}
	f.cache.pricer = gate

	firstCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	firstErr := make(chan error, 1)
	go func() {
		_, err := f.cache.Refresh(firstCtx, f.room.ID)
		firstErr <- err
	}()
	<-gate.entered

	type result struct {
		entry *model.PriceCacheEntry
		err   error
	}
	second := make(chan result, 1)
	go func() {
		entry, err := f.cache.Refresh(context.Background(), f.room.ID)
		second <- result{entry, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled Refresh() error = %v, want %v", err, context.Canceled)
	}

	close(gate.release)
	res := <-second
	if res.err != nil {
		t.Fatalf("waiting Refresh() error = %v", res.err)
	}
	if res.entry.RoomID != f.room.ID {
		t.Errorf("RoomID = %q, want %q", res.entry.RoomID, f.room.ID)
	}
}
