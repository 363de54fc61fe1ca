package memory

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/keeper-api/internal/domain"
	"github.com/phrazzld/keeper-api/internal/store"
)

// AccountDirectory keeps accounts in a map keyed by id.
type AccountDirectory struct {
	mu       sync.RWMutex
	accounts map[uuid.UUID]*domain.Account
}

var _ store.AccountDirectory = (*AccountDirectory)(nil)

// NewAccountDirectory creates an empty AccountDirectory.
func NewAccountDirectory() *AccountDirectory {
	return &AccountDirectory{accounts: make(map[uuid.UUID]*domain.Account)}
}

func (d *AccountDirectory) Create(ctx context.Context, account *domain.Account) error {
	if err := account.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.accounts[account.ID]; exists {
		return fmt.Errorf("%w: account %s", store.ErrDuplicate, account.ID)
	}
	d.accounts[account.ID] = cloneAccount(account)
	return nil
}

func (d *AccountDirectory) ListActive(ctx context.Context, userID uuid.UUID, group string) ([]*domain.Account, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]*domain.Account, 0)
	for _, a := range d.accounts {
		if a.UserID == userID && a.IsActive && a.InGroup(group) {
			out = append(out, cloneAccount(a))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return bytes.Compare(out[i].ID[:], out[j].ID[:]) < 0
	})
	return out, nil
}

func (d *AccountDirectory) ListGroups(ctx context.Context, userID uuid.UUID) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	set := make(map[string]struct{})
	for _, a := range d.accounts {
		if a.UserID == userID && a.IsActive && a.GroupName != "" {
			set[a.GroupName] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for g := range set {
		out = append(out, g)
	}
	sort.Strings(out)
	return out, nil
}

func (d *AccountDirectory) Counts(ctx context.Context, userID uuid.UUID) (store.AccountCounts, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var counts store.AccountCounts
	for _, a := range d.accounts {
		if a.UserID != userID {
			continue
		}
		counts.Total++
		if a.IsActive {
			counts.Active++
		}
	}
	return counts, nil
}
