package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/keeper-api/internal/domain"
)

// StrategyStore persists strategies. System strategies have a nil owner and
// are visible to every user.
type StrategyStore interface {
	// Create validates and inserts a user strategy.
	Create(ctx context.Context, strategy *domain.Strategy) error

	// GetByID returns ErrStrategyNotFound if no strategy has the id.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Strategy, error)

	// List returns the system strategies followed by the user's own, each
	// group ordered by name.
	List(ctx context.Context, userID uuid.UUID) ([]*domain.Strategy, error)

	// Update replaces the name, description and policy of a strategy.
	Update(ctx context.Context, strategy *domain.Strategy) error

	// Delete removes a strategy by id.
	Delete(ctx context.Context, id uuid.UUID) error

	// Count returns the number of strategies visible to the user.
	Count(ctx context.Context, userID uuid.UUID) (int, error)

	// EnsureSystem inserts the given system strategies when absent and leaves
	// existing rows untouched.
	EnsureSystem(ctx context.Context, strategies []domain.Strategy) error
}
