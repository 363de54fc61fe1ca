package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/keeper-api/internal/domain"
)

// AccountCounts summarizes a user's accounts.
type AccountCounts struct {
	Total  int
	Active int
}

// AccountDirectory is the read side of the account registry the engine
// consumes. Create exists for provisioning and tests.
type AccountDirectory interface {
	Create(ctx context.Context, account *domain.Account) error

	// ListActive returns active accounts ordered by created_at then id. An
	// empty group selects every active account.
	ListActive(ctx context.Context, userID uuid.UUID, group string) ([]*domain.Account, error)

	// ListGroups returns the distinct non-empty groups of active accounts.
	ListGroups(ctx context.Context, userID uuid.UUID) ([]string, error)

	Counts(ctx context.Context, userID uuid.UUID) (AccountCounts, error)
}
