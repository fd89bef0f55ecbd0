package service

import (
	"time"

	"staybook/pkg/calendar"
	"staybook/pkg/model"
	"staybook/pkg/money"
)

const (
	SourceOverride = "override"
	SourceDefault  = "default"
	sourceRule     = "rule:"
)

// RoomPricing is the pricing input of one room over a date window. A
// multi-night quote loads it once and resolves every night against it.
type RoomPricing struct {
	Room      *model.Room
	Rules     []*model.PricingRule
	overrides map[int64]*model.AvailabilityOverride
}

func NewRoomPricing(room *model.Room, rules []*model.PricingRule, overrides []*model.AvailabilityOverride) *RoomPricing {
	byDate := make(map[int64]*model.AvailabilityOverride, len(overrides))
	for _, o := range overrides {
		byDate[calendar.Date(o.Date).Unix()] = o
	}
	return &RoomPricing{
		Room:      room,
		Rules:     rules,
		overrides: byDate,
	}
}

// HasOverridePrice reports whether date is priced by an override.
func (p *RoomPricing) HasOverridePrice(date time.Time) bool {
	o := p.overrides[calendar.Date(date).Unix()]
	return o != nil && o.OverridePrice != nil
}

// Price resolves one night. An override price wins outright. Otherwise the
// highest priority applicable rule wins, ties going to the more specific
// rule type, and the room default applies when no rule matches.
func (p *RoomPricing) Price(date time.Time, nights int) model.NightlyPrice {
	date = calendar.Date(date)

	if o := p.overrides[date.Unix()]; o != nil && o.OverridePrice != nil {
		return model.NightlyPrice{Date: date, Price: *o.OverridePrice, Source: SourceOverride}
	}

	var best *model.PricingRule
	for _, rule := range p.Rules {
		if !rule.AppliesOn(date, nights) {
			continue
		}
		if best == nil || rule.Outranks(best) {
			best = rule
		}
	}
	if best != nil {
		return model.NightlyPrice{Date: date, Price: best.FixedPrice, Source: sourceRule + best.ID}
	}

	return model.NightlyPrice{Date: date, Price: p.Room.DefaultPrice, Source: SourceDefault}
}

// Quote prices every night of rng with the stay length of rng.
func (p *RoomPricing) Quote(rng calendar.Range) []model.NightlyPrice {
	nights := rng.Nights()
	prices := make([]model.NightlyPrice, 0, nights)
	for _, d := range rng.Dates() {
		prices = append(prices, p.Price(d, nights))
	}
	return prices
}

// Total sums the nightly prices and multiplies by quantity.
func Total(nightly []model.NightlyPrice, quantity int) money.Money {
	var sum money.Money
	for _, n := range nightly {
		sum = sum.Add(n.Price)
	}
	return sum.Mul(quantity)
}

// rulesConflict reports two active rules that could both be selected for
// one night with neither outranking the other.
func rulesConflict(a, b *model.PricingRule) bool {
	if a.ID == b.ID || a.RoomID != b.RoomID || !a.IsActive || !b.IsActive {
		return false
	}
	if a.Priority != b.Priority || a.RuleType != b.RuleType {
		return false
	}
	switch a.RuleType {
	case model.RuleTypeDayOfWeek:
		return a.DayOfWeek != nil && b.DayOfWeek != nil && *a.DayOfWeek == *b.DayOfWeek
	case model.RuleTypeDateRange:
		return a.StartDate != nil && a.EndDate != nil && b.StartDate != nil && b.EndDate != nil &&
			calendar.Overlaps(*a.StartDate, *a.EndDate, *b.StartDate, *b.EndDate)
	default:
		return true
	}
}
