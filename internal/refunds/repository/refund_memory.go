package repository

import (
	"context"
	"fmt"
	"slices"
	"time"

	refundserrors "staybook/internal/refunds/errors"
	"staybook/pkg/db"
	"staybook/pkg/db/memory"
	"staybook/pkg/model"
)

type memoryPolicyRepository struct {
	policies *memory.Collection[model.RefundPolicy]
}

func NewMemoryPolicyRepository(store *memory.DB) PolicyRepository {
	return &memoryPolicyRepository{
		policies: memory.NewCollection[model.RefundPolicy](store),
	}
}

func (r *memoryPolicyRepository) Create(ctx context.Context, policy *model.RefundPolicy) error {
	stored := *policy
	stored.Tiers = slices.Clone(policy.Tiers)
	if err := r.policies.Insert(ctx, policy.ID, stored); err != nil {
		return fmt.Errorf("%w: %s", refundserrors.ErrDuplicatePolicy, policy.ID)
	}
	return nil
}

func (r *memoryPolicyRepository) FindByID(ctx context.Context, id string) (*model.RefundPolicy, error) {
	policy, ok := r.policies.Get(ctx, id)
	if !ok {
		return nil, refundserrors.ErrPolicyNotFound
	}
	return &policy, nil
}

func (r *memoryPolicyRepository) FindActiveByAccommodation(ctx context.Context, accommodationID string) (*model.RefundPolicy, error) {
	matches := r.policies.Find(ctx, func(p model.RefundPolicy) bool {
		return p.AccommodationID == accommodationID && p.IsActive
	})
	if len(matches) == 0 {
		return nil, refundserrors.ErrPolicyNotFound
	}
	latest := matches[0]
	for _, p := range matches[1:] {
		if p.UpdatedAt.After(latest.UpdatedAt) {
			latest = p
		}
	}
	return &latest, nil
}

func (r *memoryPolicyRepository) DeactivateOthers(ctx context.Context, accommodationID, keepID string, at time.Time) (int64, error) {
	n := r.policies.UpdateMany(ctx, func(p model.RefundPolicy) bool {
		return p.AccommodationID == accommodationID && p.IsActive && p.ID != keepID
	}, func(p *model.RefundPolicy) {
		p.IsActive = false
		p.UpdatedAt = at
	})
	return int64(n), nil
}

type memoryRequestRepository struct {
	store    *memory.DB
	requests *memory.Collection[model.RefundRequest]
}

func NewMemoryRequestRepository(store *memory.DB) RequestRepository {
	return &memoryRequestRepository{
		store:    store,
		requests: memory.NewCollection[model.RefundRequest](store),
	}
}

func (r *memoryRequestRepository) Create(ctx context.Context, request *model.RefundRequest) error {
	if err := r.requests.Insert(ctx, request.ID, *request); err != nil {
		return fmt.Errorf("failed to create refund request: %w", err)
	}
	return nil
}

func (r *memoryRequestRepository) FindByID(ctx context.Context, id string) (*model.RefundRequest, error) {
	request, ok := r.requests.Get(ctx, id)
	if !ok {
		return nil, refundserrors.ErrRequestNotFound
	}
	return &request, nil
}

func (r *memoryRequestRepository) FindOpenByBooking(ctx context.Context, bookingID string) (*model.RefundRequest, error) {
	matches := r.requests.Find(ctx, func(req model.RefundRequest) bool {
		return req.BookingID == bookingID && slices.Contains(openStatuses, req.Status)
	})
	if len(matches) == 0 {
		return nil, refundserrors.ErrRequestNotFound
	}
	latest := matches[0]
	for _, req := range matches[1:] {
		if req.CreatedAt.After(latest.CreatedAt) {
			latest = req
		}
	}
	return &latest, nil
}

func (r *memoryRequestRepository) Update(ctx context.Context, request *model.RefundRequest, expected model.RefundStatus) error {
	found, written := r.requests.Update(ctx, request.ID, func(stored *model.RefundRequest) bool {
		if stored.Status != expected {
			return false
		}
		*stored = *request
		return true
	})
	switch {
	case !found:
		return refundserrors.ErrRequestNotFound
	case !written:
		return refundserrors.ErrStatusConflict
	}
	return nil
}

func (r *memoryRequestRepository) ExecuteTransaction(ctx context.Context, fn db.TransactionFunc) error {
	return r.store.ExecuteTransaction(ctx, fn)
}
