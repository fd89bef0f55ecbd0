package model

import (
	"time"

	"staybook/pkg/money"
)

type RuleType string

const (
	RuleTypeDayOfWeek RuleType = "day_of_week"
	RuleTypeDateRange RuleType = "date_range"
	RuleTypeFixed     RuleType = "fixed"
)

// Specificity orders rule types when priorities tie. Higher is more specific.
func (t RuleType) Specificity() int {
	switch t {
	case RuleTypeDateRange:
		return 2
	case RuleTypeDayOfWeek:
		return 1
	default:
		return 0
	}
}

type PricingRule struct {
	ID            string        `json:"id" bson:"_id"`
	RoomID        string        `json:"room_id" bson:"room_id" validate:"required"`
	Name          string        `json:"name,omitempty" bson:"name,omitempty" validate:"omitempty,max=100"`
	RuleType      RuleType      `json:"rule_type" bson:"rule_type" validate:"required,oneof=day_of_week date_range fixed"`
	DayOfWeek     *time.Weekday `json:"day_of_week,omitempty" bson:"day_of_week,omitempty" validate:"omitempty,min=0,max=6"`
	StartDate     *time.Time    `json:"start_date,omitempty" bson:"start_date,omitempty"`
	EndDate       *time.Time    `json:"end_date,omitempty" bson:"end_date,omitempty"`
	FixedPrice    money.Money   `json:"fixed_price" bson:"fixed_price"`
	Priority      int           `json:"priority" bson:"priority" validate:"min=0,max=1000"`
	MinimumNights int           `json:"minimum_nights" bson:"minimum_nights" validate:"min=0,max=365"`
	IsActive      bool          `json:"is_active" bson:"is_active"`
	CreatedAt     time.Time     `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at" bson:"updated_at"`
}

// AppliesOn reports whether the rule matches date for a stay of nights nights.
func (r *PricingRule) AppliesOn(date time.Time, nights int) bool {
	if !r.IsActive || r.MinimumNights > nights {
		return false
	}
	switch r.RuleType {
	case RuleTypeDayOfWeek:
		return r.DayOfWeek != nil && date.Weekday() == *r.DayOfWeek
	case RuleTypeDateRange:
		return r.StartDate != nil && r.EndDate != nil &&
			!date.Before(*r.StartDate) && date.Before(*r.EndDate)
	case RuleTypeFixed:
		return true
	default:
		return false
	}
}

// Outranks reports whether r wins over o when both apply.
func (r *PricingRule) Outranks(o *PricingRule) bool {
	if r.Priority != o.Priority {
		return r.Priority > o.Priority
	}
	return r.RuleType.Specificity() > o.RuleType.Specificity()
}
