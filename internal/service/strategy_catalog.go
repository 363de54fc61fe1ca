package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/keeper-api/internal/domain"
	"github.com/phrazzld/keeper-api/internal/platform/logger"
	"github.com/phrazzld/keeper-api/internal/store"
	"github.com/shopspring/decimal"
)

// StrategyInput carries the caller-supplied fields of a strategy. Nil fields
// are filled from defaults on create and left unchanged on update.
type StrategyInput struct {
	Name        string
	Description *string
	IntervalMin *int
	IntervalMax *int
	TimeStart   *domain.TimeOfDay
	TimeEnd     *domain.TimeOfDay
	SkipWeekend *bool
	AmountMin   *decimal.Decimal
	AmountMax   *decimal.Decimal
	DailyLimit  *int
}

// applyTo overlays the non-nil fields of in on p.
func (in StrategyInput) applyTo(p domain.Policy) domain.Policy {
	if in.IntervalMin != nil {
		p.IntervalMin = *in.IntervalMin
	}
	if in.IntervalMax != nil {
		p.IntervalMax = *in.IntervalMax
	}
	if in.TimeStart != nil {
		p.TimeStart = *in.TimeStart
	}
	if in.TimeEnd != nil {
		p.TimeEnd = *in.TimeEnd
	}
	if in.SkipWeekend != nil {
		p.SkipWeekend = *in.SkipWeekend
	}
	if in.AmountMin != nil {
		p.AmountMin = *in.AmountMin
	}
	if in.AmountMax != nil {
		p.AmountMax = *in.AmountMax
	}
	if in.DailyLimit != nil {
		p.DailyLimit = *in.DailyLimit
	}
	return p
}

// StrategyCatalog manages the strategies a user can generate tasks with.
type StrategyCatalog struct {
	strategies store.StrategyStore
	logger     *slog.Logger
	now        func() time.Time
}

// NewStrategyCatalog creates a StrategyCatalog.
// It returns an error if the store is nil.
func NewStrategyCatalog(strategies store.StrategyStore, logger *slog.Logger) (*StrategyCatalog, error) {
	if strategies == nil {
		return nil, domain.NewValidationError("strategies", "cannot be nil", domain.ErrValidation)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StrategyCatalog{
		strategies: strategies,
		logger:     logger.With(slog.String("component", "strategy_catalog")),
		now:        time.Now,
	}, nil
}

// Validate checks that a strategy's ranges are consistent.
func (c *StrategyCatalog) Validate(strategy *domain.Strategy) error {
	return strategy.Validate()
}

// SeedSystemStrategies inserts the built-in strategies when missing.
func (c *StrategyCatalog) SeedSystemStrategies(ctx context.Context) error {
	if err := c.strategies.EnsureSystem(ctx, domain.SystemStrategies()); err != nil {
		return NewServiceError("seed_strategies", "failed to seed system strategies", err)
	}
	return nil
}

// List returns the system strategies followed by the user's own.
func (c *StrategyCatalog) List(ctx context.Context, userID uuid.UUID) ([]*domain.Strategy, error) {
	strategies, err := c.strategies.List(ctx, userID)
	if err != nil {
		return nil, NewServiceError("list_strategies", "failed to list strategies", err)
	}
	return strategies, nil
}

// Count returns the number of strategies the user can see.
func (c *StrategyCatalog) Count(ctx context.Context, userID uuid.UUID) (int, error) {
	n, err := c.strategies.Count(ctx, userID)
	if err != nil {
		return 0, NewServiceError("count_strategies", "failed to count strategies", err)
	}
	return n, nil
}

// Get returns a strategy visible to userID, or store.ErrStrategyNotFound.
func (c *StrategyCatalog) Get(ctx context.Context, userID, id uuid.UUID) (*domain.Strategy, error) {
	strategy, err := c.strategies.GetByID(ctx, id)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, store.ErrStrategyNotFound
		}
		return nil, NewServiceError("get_strategy", "failed to retrieve strategy", err)
	}
	if !strategy.VisibleTo(userID) {
		return nil, store.ErrStrategyNotFound
	}
	return strategy, nil
}

// Create validates and stores a new strategy owned by userID.
func (c *StrategyCatalog) Create(ctx context.Context, userID uuid.UUID, in StrategyInput) (*domain.Strategy, error) {
	log := logger.FromContextOrDefault(ctx, c.logger)

	description := ""
	if in.Description != nil {
		description = *in.Description
	}
	strategy, err := domain.NewStrategy(
		userID,
		strings.TrimSpace(in.Name),
		description,
		in.applyTo(domain.DefaultPolicy()),
	)
	if err != nil {
		return nil, err
	}

	if err := c.strategies.Create(ctx, strategy); err != nil {
		if errors.Is(err, domain.ErrValidation) {
			return nil, err
		}
		return nil, NewServiceError("create_strategy", "failed to save strategy", err)
	}

	log.Info("strategy created",
		slog.String("strategy_id", strategy.ID.String()),
		slog.String("user_id", userID.String()))
	return strategy, nil
}

// Update applies in to a user strategy. System strategies are read-only.
func (c *StrategyCatalog) Update(
	ctx context.Context,
	userID, id uuid.UUID,
	in StrategyInput,
) (*domain.Strategy, error) {
	strategy, err := c.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if strategy.IsSystem {
		return nil, domain.ErrImmutablePolicy
	}

	if name := strings.TrimSpace(in.Name); name != "" {
		strategy.Name = name
	}
	if in.Description != nil {
		strategy.Description = *in.Description
	}
	strategy.Policy = in.applyTo(strategy.Policy)
	strategy.UpdatedAt = c.now().UTC()

	if err := c.Validate(strategy); err != nil {
		return nil, err
	}
	if err := c.strategies.Update(ctx, strategy); err != nil {
		if store.IsNotFoundError(err) {
			return nil, store.ErrStrategyNotFound
		}
		return nil, NewServiceError("update_strategy", "failed to save strategy", err)
	}
	return strategy, nil
}

// Delete removes a user strategy. System strategies are read-only.
func (c *StrategyCatalog) Delete(ctx context.Context, userID, id uuid.UUID) error {
	strategy, err := c.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	if strategy.IsSystem {
		return domain.ErrImmutablePolicy
	}
	if err := c.strategies.Delete(ctx, id); err != nil {
		if store.IsNotFoundError(err) {
			return store.ErrStrategyNotFound
		}
		return NewServiceError("delete_strategy", "failed to delete strategy", err)
	}
	return nil
}
