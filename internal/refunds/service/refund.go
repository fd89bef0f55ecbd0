package service

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	bookingserrors "staybook/internal/bookings/errors"
	refundserrors "staybook/internal/refunds/errors"
	"staybook/internal/refunds/repository"
	"staybook/internal/refunds/validator"
	"staybook/pkg/calendar"
	"staybook/pkg/config"
	apperrors "staybook/pkg/errors"
	"staybook/pkg/events"
	"staybook/pkg/model"
	"staybook/pkg/money"
	"staybook/pkg/sanitizer"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const noPolicyReason = "no active refund policy"

// BookingStore is the part of the booking repository refunds read and settle.
type BookingStore interface {
	FindByID(ctx context.Context, id string) (*model.Booking, error)
	Update(ctx context.Context, booking *model.Booking, expectedVersion int64) error
}

type RefundService interface {
	// Evaluate opens an evaluated refund request for a cancelled booking.
	// A booking with an open request gets that request back.
	Evaluate(ctx context.Context, bookingID string) (*model.RefundRequest, error)
	Process(ctx context.Context, requestID string, decision *model.RefundDecision) (*model.RefundRequest, error)
	GetRequest(ctx context.Context, id string) (*model.RefundRequest, error)

	CreatePolicy(ctx context.Context, policy *model.RefundPolicy) (*model.RefundPolicy, error)
	GetPolicy(ctx context.Context, id string) (*model.RefundPolicy, error)
	GetActivePolicy(ctx context.Context, accommodationID string) (*model.RefundPolicy, error)
}

type refundService struct {
	policies  repository.PolicyRepository
	requests  repository.RequestRepository
	bookings  BookingStore
	validator *validator.RefundValidator
	publisher events.Publisher
	cfg       *config.Config
	tracer    trace.Tracer
	now       func() time.Time
}

func NewRefundService(
	policies repository.PolicyRepository,
	requests repository.RequestRepository,
	bookings BookingStore,
	validator *validator.RefundValidator,
	publisher events.Publisher,
	cfg *config.Config,
) RefundService {
	return &refundService{
		policies:  policies,
		requests:  requests,
		bookings:  bookings,
		validator: validator,
		publisher: publisher,
		cfg:       cfg,
		tracer:    otel.Tracer("staybook/refunds"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// policySnapshot is the policy as it stood when a request was evaluated.
type policySnapshot struct {
	PolicyID        string                   `json:"policy_id,omitempty"`
	AccommodationID string                   `json:"accommodation_id"`
	Name            string                   `json:"name,omitempty"`
	Tiers           []model.RefundPolicyTier `json:"tiers"`
	CheckIn         string                   `json:"check_in"`
	DaysBefore      int                      `json:"days_before_check_in"`
	OriginalAmount  money.Money              `json:"original_amount"`
	EvaluatedAt     time.Time                `json:"evaluated_at"`
}

func (s *refundService) Evaluate(ctx context.Context, bookingID string) (*model.RefundRequest, error) {
	ctx, span := s.tracer.Start(ctx, "Refunds.Evaluate", trace.WithAttributes(attribute.String("booking.id", bookingID)))
	defer span.End()

	if bookingID == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	var request *model.RefundRequest
	err := s.requests.ExecuteTransaction(ctx, func(ctx context.Context) error {
		booking, err := s.bookings.FindByID(ctx, bookingID)
		if err != nil {
			if errors.Is(err, bookingserrors.ErrNotFound) {
				return apperrors.NotFoundWithID("Booking", bookingID)
			}
			return apperrors.Internal("Failed to load booking", err)
		}
		if booking.Status != model.BookingCancelled {
			return apperrors.InvalidInput("Only cancelled bookings can be refunded")
		}

		existing, err := s.requests.FindOpenByBooking(ctx, bookingID)
		switch {
		case err == nil:
			request = existing
			return nil
		case !errors.Is(err, refundserrors.ErrRequestNotFound):
			return apperrors.Internal("Failed to look up refund requests", err)
		}

		request, err = s.evaluate(ctx, booking)
		if err != nil {
			return err
		}
		if err := s.requests.Create(ctx, request); err != nil {
			return apperrors.Internal("Failed to create refund request", err)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "evaluation failed")
		if !apperrors.IsAppError(err) || apperrors.HasCode(err, apperrors.CodeInternal) {
			s.cfg.Log.Error("Failed to evaluate refund", "booking_id", bookingID, "error", err)
		}
		return nil, err
	}

	span.SetAttributes(
		attribute.Bool("refund.eligible", request.IsEligible),
		attribute.String("refund.amount", request.RefundAmount.String()),
	)
	s.cfg.Log.Info("Refund evaluated",
		"refund_id", request.ID,
		"booking_id", bookingID,
		"eligible", request.IsEligible,
		"refund_amount", request.RefundAmount,
		"reason", request.EligibilityReason,
	)
	events.Emit(ctx, s.publisher, s.cfg.Log, events.New(events.TypeRefundEvaluated, "", request.ID, map[string]any{
		"booking_id":    bookingID,
		"is_eligible":   request.IsEligible,
		"refund_amount": request.RefundAmount.String(),
		"percentage":    request.RefundPercentage.String(),
	}))
	return request, nil
}

// evaluate prices the refund for a cancelled booking against the
// accommodation's active policy at the current time.
func (s *refundService) evaluate(ctx context.Context, booking *model.Booking) (*model.RefundRequest, error) {
	now := s.now().Truncate(time.Millisecond)
	accommodationID := cmp.Or(booking.AccommodationID, booking.RoomID)
	days := calendar.DaysUntil(booking.CheckIn, now)

	request := &model.RefundRequest{
		ID:                uuid.New().String(),
		BookingID:         booking.ID,
		OriginalAmount:    booking.TotalAmount,
		DaysBeforeCheckIn: days,
		Status:            model.RefundRequested,
		CreatedAt:         now,
	}
	snapshot := policySnapshot{
		AccommodationID: accommodationID,
		CheckIn:         calendar.Format(booking.CheckIn),
		DaysBefore:      days,
		OriginalAmount:  booking.TotalAmount,
		EvaluatedAt:     now,
	}

	policy, err := s.policies.FindActiveByAccommodation(ctx, accommodationID)
	switch {
	case errors.Is(err, refundserrors.ErrPolicyNotFound):
		request.EligibilityReason = noPolicyReason
	case err != nil:
		return nil, apperrors.Internal("Failed to load refund policy", err)
	default:
		request.PolicyID = policy.ID
		snapshot.PolicyID = policy.ID
		snapshot.Name = policy.Name
		snapshot.Tiers = policy.Tiers

		tier, ok := policy.SelectTier(days)
		if !ok {
			request.EligibilityReason = fmt.Sprintf("cancelled %d days before check-in, no refund tier applies", days)
			break
		}
		request.RefundPercentage = tier.RefundPercentage
		request.RefundAmount = booking.TotalAmount.ApplyPercent(tier.RefundPercentage)
		request.IsEligible = tier.RefundPercentage > 0
		request.EligibilityReason = fmt.Sprintf("cancelled %d days before check-in, %s%% tier from %d days applies",
			days, tier.RefundPercentage, tier.MinDaysBeforeCheckIn)
	}

	raw, err := json.Marshal(snapshot)
	if err != nil {
		return nil, apperrors.Internal("Failed to snapshot refund policy", err)
	}
	request.PolicySnapshotJSON = string(raw)

	request.Status = model.RefundEvaluated
	request.EvaluatedAt = &now
	request.UpdatedAt = now
	return request, nil
}

func (s *refundService) Process(ctx context.Context, requestID string, decision *model.RefundDecision) (*model.RefundRequest, error) {
	ctx, span := s.tracer.Start(ctx, "Refunds.Process", trace.WithAttributes(
		attribute.String("refund.id", requestID),
		attribute.String("refund.action", string(decision.Action)),
	))
	defer span.End()

	if requestID == "" {
		return nil, apperrors.InvalidInput("Refund request ID cannot be empty")
	}
	decision.Reason = sanitizer.TrimAndNormalize(decision.Reason)
	if err := s.validator.ValidateDecision(decision); err != nil {
		return nil, apperrors.Validation("Invalid refund decision", map[string]any{"error": err.Error()})
	}

	next := model.RefundProcessed
	if decision.Action == model.RefundReject {
		next = model.RefundRejected
	}

	var (
		request *model.RefundRequest
		settled bool
	)
	err := s.requests.ExecuteTransaction(ctx, func(ctx context.Context) error {
		var err error
		request, err = s.requests.FindByID(ctx, requestID)
		if err != nil {
			return mapRequestError(err, requestID)
		}
		if request.Status == next {
			return nil
		}
		if !request.Status.CanTransitionTo(next) {
			return apperrors.InvalidTransition("RefundRequest", string(request.Status), string(next))
		}
		if next == model.RefundProcessed && !request.IsEligible {
			return apperrors.InvalidInput("Refund request is not eligible: " + request.EligibilityReason)
		}

		now := s.now().Truncate(time.Millisecond)
		expected := request.Status
		request.Status = next
		request.ProcessedBy = decision.AdminID
		request.ProcessedAt = &now
		request.UpdatedAt = now
		if next == model.RefundRejected {
			request.RejectionReason = decision.Reason
		}
		if err := s.requests.Update(ctx, request, expected); err != nil {
			return mapRequestError(err, requestID)
		}
		settled = true
		return s.settleBooking(ctx, request, now)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "processing failed")
		s.cfg.Log.Warn("Refund processing failed", "refund_id", requestID, "action", decision.Action, "error", err)
		return nil, err
	}
	if !settled {
		return request, nil
	}

	s.cfg.Log.Info("Refund processed",
		"refund_id", request.ID,
		"booking_id", request.BookingID,
		"status", request.Status,
		"admin_id", decision.AdminID,
	)
	events.Emit(ctx, s.publisher, s.cfg.Log, events.New(events.TypeRefundProcessed, "", request.ID, map[string]any{
		"booking_id":    request.BookingID,
		"status":        string(request.Status),
		"refund_amount": request.RefundAmount.String(),
		"processed_by":  decision.AdminID,
	}))
	return request, nil
}

// settleBooking writes the refund outcome into the booking's payment status.
func (s *refundService) settleBooking(ctx context.Context, request *model.RefundRequest, now time.Time) error {
	booking, err := s.bookings.FindByID(ctx, request.BookingID)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Booking", request.BookingID)
		}
		return apperrors.Internal("Failed to load booking", err)
	}

	switch {
	case request.Status == model.RefundRejected:
		booking.PaymentStatus = model.PaymentPaid
	case request.RefundPercentage == money.PercentFromInt(100):
		booking.PaymentStatus = model.PaymentRefunded
	default:
		booking.PaymentStatus = model.PaymentPartiallyRefunded
	}
	booking.UpdatedAt = now

	if err := s.bookings.Update(ctx, booking, booking.Version); err != nil {
		if errors.Is(err, bookingserrors.ErrVersionConflict) {
			return apperrors.ConcurrentModification("Booking", booking.ID)
		}
		return apperrors.Internal("Failed to update booking payment status", err)
	}
	return nil
}

func (s *refundService) GetRequest(ctx context.Context, id string) (*model.RefundRequest, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Refund request ID cannot be empty")
	}
	request, err := s.requests.FindByID(ctx, id)
	if err != nil {
		return nil, mapRequestError(err, id)
	}
	return request, nil
}

// CreatePolicy stores the policy with tiers ordered by threshold, highest
// first. An active policy replaces the accommodation's previous one.
func (s *refundService) CreatePolicy(ctx context.Context, policy *model.RefundPolicy) (*model.RefundPolicy, error) {
	policy.Name = sanitizer.NormalizeName(policy.Name)
	policy.AccommodationID = sanitizer.TrimAndNormalize(policy.AccommodationID)
	slices.SortStableFunc(policy.Tiers, func(a, b model.RefundPolicyTier) int {
		return cmp.Compare(b.MinDaysBeforeCheckIn, a.MinDaysBeforeCheckIn)
	})
	if err := s.validator.ValidatePolicy(policy); err != nil {
		return nil, apperrors.Validation("Invalid refund policy", map[string]any{"error": err.Error()})
	}

	now := s.now().Truncate(time.Millisecond)
	policy.ID = uuid.New().String()
	policy.CreatedAt = now
	policy.UpdatedAt = now

	err := s.requests.ExecuteTransaction(ctx, func(ctx context.Context) error {
		if err := s.policies.Create(ctx, policy); err != nil {
			if errors.Is(err, refundserrors.ErrDuplicatePolicy) {
				return apperrors.Conflict("Refund policy already exists")
			}
			return apperrors.Internal("Failed to create refund policy", err)
		}
		if !policy.IsActive {
			return nil
		}
		replaced, err := s.policies.DeactivateOthers(ctx, policy.AccommodationID, policy.ID, now)
		if err != nil {
			return apperrors.Internal("Failed to deactivate previous refund policies", err)
		}
		if replaced > 0 {
			s.cfg.Log.Info("Previous refund policies deactivated", "accommodation_id", policy.AccommodationID, "count", replaced)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to create refund policy", "accommodation_id", policy.AccommodationID, "error", err)
		return nil, err
	}

	s.cfg.Log.Info("Refund policy created",
		"policy_id", policy.ID,
		"accommodation_id", policy.AccommodationID,
		"tiers", len(policy.Tiers),
		"active", policy.IsActive,
	)
	return policy, nil
}

func (s *refundService) GetPolicy(ctx context.Context, id string) (*model.RefundPolicy, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Refund policy ID cannot be empty")
	}
	policy, err := s.policies.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, refundserrors.ErrPolicyNotFound) {
			return nil, apperrors.NotFoundWithID("RefundPolicy", id)
		}
		return nil, apperrors.Internal("Failed to retrieve refund policy", err)
	}
	return policy, nil
}

func (s *refundService) GetActivePolicy(ctx context.Context, accommodationID string) (*model.RefundPolicy, error) {
	if accommodationID == "" {
		return nil, apperrors.InvalidInput("Accommodation ID cannot be empty")
	}
	policy, err := s.policies.FindActiveByAccommodation(ctx, accommodationID)
	if err != nil {
		if errors.Is(err, refundserrors.ErrPolicyNotFound) {
			return nil, apperrors.PolicyNotFound(accommodationID)
		}
		return nil, apperrors.Internal("Failed to retrieve refund policy", err)
	}
	return policy, nil
}

func mapRequestError(err error, id string) error {
	switch {
	case apperrors.IsAppError(err):
		return err
	case errors.Is(err, refundserrors.ErrRequestNotFound):
		return apperrors.NotFoundWithID("RefundRequest", id)
	case errors.Is(err, refundserrors.ErrStatusConflict):
		return apperrors.ConcurrentModification("RefundRequest", id)
	default:
		return apperrors.Internal("Failed to access refund request", err)
	}
}
