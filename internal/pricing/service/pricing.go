package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	pricingerrors "staybook/internal/pricing/errors"
	"staybook/internal/pricing/repository"
	"staybook/internal/pricing/validator"
	"staybook/pkg/calendar"
	"staybook/pkg/config"
	apperrors "staybook/pkg/errors"
	"staybook/pkg/events"
	"staybook/pkg/model"
	"staybook/pkg/money"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// RoomCatalog is the slice of the inventory room service pricing needs.
type RoomCatalog interface {
	GetRoom(ctx context.Context, id string) (*model.Room, error)
	ListOverrides(ctx context.Context, roomID string, rng calendar.Range) ([]*model.AvailabilityOverride, error)
	BumpCacheVersion(ctx context.Context, roomID string) (int64, error)
}

type Quote struct {
	RoomID      string               `json:"room_id"`
	CheckIn     time.Time            `json:"check_in"`
	CheckOut    time.Time            `json:"check_out"`
	Quantity    int                  `json:"quantity"`
	Nightly     []model.NightlyPrice `json:"nightly"`
	TotalAmount money.Money          `json:"total_amount"`
}

type PricingService interface {
	PriceFor(ctx context.Context, roomID string, date time.Time, nights int) (money.Money, error)
	QuoteNightly(ctx context.Context, roomID string, rng calendar.Range) ([]model.NightlyPrice, error)
	QuoteTotal(ctx context.Context, roomID string, rng calendar.Range, quantity int) (money.Money, error)
	Quote(ctx context.Context, roomID string, rng calendar.Range, quantity int) (*Quote, error)
	// Snapshot loads the room, its active rules and the overrides in rng.
	Snapshot(ctx context.Context, roomID string, rng calendar.Range) (*RoomPricing, error)

	CreateRule(ctx context.Context, rule *model.PricingRule) error
	GetRule(ctx context.Context, id string) (*model.PricingRule, error)
	UpdateRule(ctx context.Context, id string, rule *model.PricingRule) (*model.PricingRule, error)
	DeactivateRule(ctx context.Context, id string) error
	ListRules(ctx context.Context, roomID string) ([]*model.PricingRule, error)
}

type pricingService struct {
	repo      repository.RuleRepository
	rooms     RoomCatalog
	validator *validator.RuleValidator
	publisher events.Publisher
	tracer    trace.Tracer
	cfg       *config.Config
}

func NewPricingService(
	repo repository.RuleRepository,
	rooms RoomCatalog,
	validator *validator.RuleValidator,
	publisher events.Publisher,
	cfg *config.Config,
) PricingService {
	return &pricingService{
		repo:      repo,
		rooms:     rooms,
		validator: validator,
		publisher: publisher,
		tracer:    otel.Tracer("staybook/pricing"),
		cfg:       cfg,
	}
}

func (s *pricingService) Snapshot(ctx context.Context, roomID string, rng calendar.Range) (*RoomPricing, error) {
	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	rules, err := s.repo.FindByRoom(ctx, roomID, true)
	if err != nil {
		return nil, apperrors.Internal("Failed to load pricing rules", err)
	}
	overrides, err := s.rooms.ListOverrides(ctx, roomID, rng)
	if err != nil {
		return nil, err
	}
	return NewRoomPricing(room, rules, overrides), nil
}

func (s *pricingService) PriceFor(ctx context.Context, roomID string, date time.Time, nights int) (money.Money, error) {
	if nights <= 0 {
		return 0, apperrors.InvalidInput("Nights must be greater than zero")
	}
	date = calendar.Date(date)
	snapshot, err := s.Snapshot(ctx, roomID, calendar.Range{CheckIn: date, CheckOut: date.AddDate(0, 0, 1)})
	if err != nil {
		return 0, err
	}
	return snapshot.Price(date, nights).Price, nil
}

func (s *pricingService) QuoteNightly(ctx context.Context, roomID string, rng calendar.Range) ([]model.NightlyPrice, error) {
	ctx, span := s.tracer.Start(ctx, "Pricing.QuoteNightly", trace.WithAttributes(
		attribute.String("room_id", roomID),
		attribute.Int("nights", rng.Nights()),
	))
	defer span.End()

	if rng.Nights() <= 0 {
		return nil, apperrors.InvalidDateRange("check_out must be after check_in")
	}
	snapshot, err := s.Snapshot(ctx, roomID, rng)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return snapshot.Quote(rng), nil
}

func (s *pricingService) QuoteTotal(ctx context.Context, roomID string, rng calendar.Range, quantity int) (money.Money, error) {
	quote, err := s.Quote(ctx, roomID, rng, quantity)
	if err != nil {
		return 0, err
	}
	return quote.TotalAmount, nil
}

func (s *pricingService) Quote(ctx context.Context, roomID string, rng calendar.Range, quantity int) (*Quote, error) {
	if quantity <= 0 {
		return nil, apperrors.InvalidInput("Quantity must be greater than zero")
	}
	nightly, err := s.QuoteNightly(ctx, roomID, rng)
	if err != nil {
		return nil, err
	}
	return &Quote{
		RoomID:      roomID,
		CheckIn:     rng.CheckIn,
		CheckOut:    rng.CheckOut,
		Quantity:    quantity,
		Nightly:     nightly,
		TotalAmount: Total(nightly, quantity),
	}, nil
}

func (s *pricingService) CreateRule(ctx context.Context, rule *model.PricingRule) error {
	now := time.Now().UTC().Truncate(time.Millisecond)
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	rule.CreatedAt = now
	rule.UpdatedAt = now
	normalizeRule(rule)

	if err := s.validator.Validate(rule); err != nil {
		s.cfg.Log.Warn("Pricing rule validation failed", "room_id", rule.RoomID, "error", err)
		return apperrors.Validation("Invalid pricing rule", map[string]any{"error": err.Error()})
	}

	cacheVersion, err := s.writeRule(ctx, rule, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, rule); err != nil {
			if errors.Is(err, pricingerrors.ErrDuplicateRule) {
				return apperrors.Conflict("Pricing rule with this ID already exists")
			}
			return apperrors.Internal("Failed to create pricing rule", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.cfg.Log.Info("Pricing rule created",
		"rule_id", rule.ID,
		"room_id", rule.RoomID,
		"rule_type", rule.RuleType,
		"priority", rule.Priority,
	)
	s.emitPricingChanged(ctx, rule, "rule_created", cacheVersion)
	return nil
}

func (s *pricingService) GetRule(ctx context.Context, id string) (*model.PricingRule, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Rule ID cannot be empty")
	}
	rule, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapRuleError(err, id)
	}
	return rule, nil
}

func (s *pricingService) UpdateRule(ctx context.Context, id string, rule *model.PricingRule) (*model.PricingRule, error) {
	existing, err := s.GetRule(ctx, id)
	if err != nil {
		return nil, err
	}

	rule.ID = existing.ID
	rule.RoomID = existing.RoomID
	rule.CreatedAt = existing.CreatedAt
	rule.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)
	normalizeRule(rule)

	if err := s.validator.Validate(rule); err != nil {
		return nil, apperrors.Validation("Invalid pricing rule", map[string]any{"error": err.Error()})
	}

	cacheVersion, err := s.writeRule(ctx, rule, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, rule); err != nil {
			return mapRuleError(err, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cfg.Log.Info("Pricing rule updated", "rule_id", id, "room_id", rule.RoomID)
	s.emitPricingChanged(ctx, rule, "rule_updated", cacheVersion)
	return rule, nil
}

func (s *pricingService) DeactivateRule(ctx context.Context, id string) error {
	rule, err := s.GetRule(ctx, id)
	if err != nil {
		return err
	}
	if !rule.IsActive {
		return nil
	}

	rule.IsActive = false
	rule.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)

	cacheVersion, err := s.writeRule(ctx, rule, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, rule); err != nil {
			return mapRuleError(err, id)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.cfg.Log.Info("Pricing rule deactivated", "rule_id", id, "room_id", rule.RoomID)
	s.emitPricingChanged(ctx, rule, "rule_deactivated", cacheVersion)
	return nil
}

func (s *pricingService) ListRules(ctx context.Context, roomID string) ([]*model.PricingRule, error) {
	if _, err := s.rooms.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}
	rules, err := s.repo.FindByRoom(ctx, roomID, false)
	if err != nil {
		return nil, apperrors.Internal("Failed to retrieve pricing rules", err)
	}
	return rules, nil
}

// writeRule runs write together with the conflict check and the room
// CacheVersion bump in one transaction. The bump writes the room document,
// so two concurrent rule writes on one room cannot both pass the check.
func (s *pricingService) writeRule(ctx context.Context, rule *model.PricingRule, write func(ctx context.Context) error) (int64, error) {
	var cacheVersion int64

	err := s.repo.ExecuteTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.rooms.GetRoom(ctx, rule.RoomID); err != nil {
			return err
		}
		if rule.IsActive {
			if err := s.checkConflicts(ctx, rule); err != nil {
				return err
			}
		}
		if err := write(ctx); err != nil {
			return err
		}
		var err error
		cacheVersion, err = s.rooms.BumpCacheVersion(ctx, rule.RoomID)
		return err
	})
	if err != nil {
		if !apperrors.HasCode(err, apperrors.CodeRuleConflict) {
			s.cfg.Log.Error("Failed to write pricing rule", "rule_id", rule.ID, "room_id", rule.RoomID, "error", err)
		}
		return 0, err
	}
	return cacheVersion, nil
}

func (s *pricingService) checkConflicts(ctx context.Context, rule *model.PricingRule) error {
	existing, err := s.repo.FindByRoom(ctx, rule.RoomID, true)
	if err != nil {
		return apperrors.Internal("Failed to load pricing rules", err)
	}
	for _, other := range existing {
		if rulesConflict(rule, other) {
			s.cfg.Log.Warn("Pricing rule conflicts with an existing rule",
				"rule_id", rule.ID,
				"conflicting_rule_id", other.ID,
				"priority", rule.Priority,
			)
			return apperrors.RuleConflict(
				fmt.Sprintf("Rule overlaps rule %s with the same priority and type", other.ID),
				map[string]any{
					"conflicting_rule_id": other.ID,
					"priority":            other.Priority,
					"rule_type":           other.RuleType,
				},
			)
		}
	}
	return nil
}

func (s *pricingService) emitPricingChanged(ctx context.Context, rule *model.PricingRule, cause string, cacheVersion int64) {
	events.Emit(ctx, s.publisher, s.cfg.Log, events.New(events.TypeRoomPricingChanged, rule.RoomID, rule.ID, map[string]any{
		"cause":         cause,
		"cache_version": cacheVersion,
	}))
}

// normalizeRule truncates range bounds to calendar dates.
func normalizeRule(rule *model.PricingRule) {
	if rule.StartDate != nil {
		d := calendar.Date(*rule.StartDate)
		rule.StartDate = &d
	}
	if rule.EndDate != nil {
		d := calendar.Date(*rule.EndDate)
		rule.EndDate = &d
	}
}

func mapRuleError(err error, id string) error {
	switch {
	case apperrors.IsAppError(err):
		return err
	case errors.Is(err, pricingerrors.ErrRuleNotFound):
		return apperrors.NotFoundWithID("PricingRule", id)
	default:
		return apperrors.Internal("Failed to access pricing rule", err)
	}
}
