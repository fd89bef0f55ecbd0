package model

import (
	"time"

	"staybook/pkg/money"
)

type RefundPolicyTier struct {
	MinDaysBeforeCheckIn int           `json:"min_days_before_check_in" bson:"min_days_before_check_in" validate:"min=0,max=3650"`
	RefundPercentage     money.Percent `json:"refund_percentage" bson:"refund_percentage"`
}

type RefundPolicy struct {
	ID              string             `json:"id" bson:"_id"`
	AccommodationID string             `json:"accommodation_id" bson:"accommodation_id" validate:"required,max=64"`
	Name            string             `json:"name" bson:"name" validate:"required,min=2,max=100"`
	IsActive        bool               `json:"is_active" bson:"is_active"`
	Tiers           []RefundPolicyTier `json:"tiers" bson:"tiers" validate:"required,min=1,max=20,dive"`
	CreatedAt       time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at" bson:"updated_at"`
}

// SelectTier returns the tier with the greatest threshold not above days.
func (p *RefundPolicy) SelectTier(days int) (RefundPolicyTier, bool) {
	var (
		best  RefundPolicyTier
		found bool
	)
	for _, tier := range p.Tiers {
		if tier.MinDaysBeforeCheckIn > days {
			continue
		}
		if !found || tier.MinDaysBeforeCheckIn > best.MinDaysBeforeCheckIn {
			best = tier
			found = true
		}
	}
	return best, found
}

type RefundStatus string

const (
	RefundRequested RefundStatus = "requested"
	RefundEvaluated RefundStatus = "evaluated"
	RefundProcessed RefundStatus = "processed"
	RefundRejected  RefundStatus = "rejected"
)

var refundTransitions = map[RefundStatus][]RefundStatus{
	RefundRequested: {RefundEvaluated},
	RefundEvaluated: {RefundProcessed, RefundRejected},
}

func (s RefundStatus) CanTransitionTo(next RefundStatus) bool {
	for _, allowed := range refundTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type RefundRequest struct {
	ID                 string        `json:"id" bson:"_id"`
	BookingID          string        `json:"booking_id" bson:"booking_id"`
	PolicyID           string        `json:"policy_id,omitempty" bson:"policy_id,omitempty"`
	PolicySnapshotJSON string        `json:"policy_snapshot_json" bson:"policy_snapshot_json"`
	OriginalAmount     money.Money   `json:"original_amount" bson:"original_amount"`
	RefundAmount       money.Money   `json:"refund_amount" bson:"refund_amount"`
	RefundPercentage   money.Percent `json:"refund_percentage" bson:"refund_percentage"`
	DaysBeforeCheckIn  int           `json:"days_before_check_in" bson:"days_before_check_in"`
	IsEligible         bool          `json:"is_eligible" bson:"is_eligible"`
	EligibilityReason  string        `json:"eligibility_reason" bson:"eligibility_reason"`
	Status             RefundStatus  `json:"status" bson:"status"`
	ProcessedBy        string        `json:"processed_by,omitempty" bson:"processed_by,omitempty"`
	ProcessedAt        *time.Time    `json:"processed_at,omitempty" bson:"processed_at,omitempty"`
	RejectionReason    string        `json:"rejection_reason,omitempty" bson:"rejection_reason,omitempty"`
	EvaluatedAt        *time.Time    `json:"evaluated_at,omitempty" bson:"evaluated_at,omitempty"`
	CreatedAt          time.Time     `json:"created_at" bson:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at" bson:"updated_at"`
}

type RefundAction string

const (
	RefundApprove RefundAction = "approve"
	RefundReject  RefundAction = "reject"
)

// RefundDecision is an admin's verdict on an evaluated refund request.
type RefundDecision struct {
	AdminID string       `json:"admin_id" validate:"required,max=64"`
	Action  RefundAction `json:"action" validate:"required,oneof=approve reject"`
	Reason  string       `json:"reason,omitempty" validate:"max=500"`
}
