package repository

import (
	"context"
	"fmt"
	"sort"

	pricingerrors "staybook/internal/pricing/errors"
	"staybook/pkg/db"
	"staybook/pkg/db/memory"
	"staybook/pkg/model"
)

type memoryRuleRepository struct {
	store *memory.DB
	rules *memory.Collection[model.PricingRule]
}

func NewMemoryRuleRepository(store *memory.DB) RuleRepository {
	return &memoryRuleRepository{
		store: store,
		rules: memory.NewCollection[model.PricingRule](store),
	}
}

func (r *memoryRuleRepository) Create(ctx context.Context, rule *model.PricingRule) error {
	if err := r.rules.Insert(ctx, rule.ID, *rule); err != nil {
		return fmt.Errorf("%w: %s", pricingerrors.ErrDuplicateRule, rule.ID)
	}
	return nil
}

func (r *memoryRuleRepository) FindByID(ctx context.Context, id string) (*model.PricingRule, error) {
	rule, ok := r.rules.Get(ctx, id)
	if !ok {
		return nil, pricingerrors.ErrRuleNotFound
	}
	return &rule, nil
}

func (r *memoryRuleRepository) FindByRoom(ctx context.Context, roomID string, activeOnly bool) ([]*model.PricingRule, error) {
	matches := r.rules.Find(ctx, func(rule model.PricingRule) bool {
		return rule.RoomID == roomID && (!activeOnly || rule.IsActive)
	})
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Priority != matches[j].Priority {
			return matches[i].Priority > matches[j].Priority
		}
		return matches[i].ID < matches[j].ID
	})

	rules := make([]*model.PricingRule, len(matches))
	for i := range matches {
		rules[i] = &matches[i]
	}
	return rules, nil
}

func (r *memoryRuleRepository) Update(ctx context.Context, rule *model.PricingRule) error {
	found, _ := r.rules.Update(ctx, rule.ID, func(stored *model.PricingRule) bool {
		*stored = *rule
		return true
	})
	if !found {
		return pricingerrors.ErrRuleNotFound
	}
	return nil
}

func (r *memoryRuleRepository) ExecuteTransaction(ctx context.Context, fn db.TransactionFunc) error {
	return r.store.ExecuteTransaction(ctx, fn)
}
