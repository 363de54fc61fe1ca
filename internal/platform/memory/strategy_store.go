package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/keeper-api/internal/domain"
	"github.com/phrazzld/keeper-api/internal/store"
)

// StrategyStore keeps strategies in a map keyed by id.
type StrategyStore struct {
	mu         sync.RWMutex
	strategies map[uuid.UUID]*domain.Strategy
}

var _ store.StrategyStore = (*StrategyStore)(nil)

// NewStrategyStore creates an empty StrategyStore.
func NewStrategyStore() *StrategyStore {
	return &StrategyStore{strategies: make(map[uuid.UUID]*domain.Strategy)}
}

func (s *StrategyStore) Create(ctx context.Context, strategy *domain.Strategy) error {
	if err := strategy.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.strategies[strategy.ID]; exists {
		return fmt.Errorf("%w: strategy %s", store.ErrDuplicate, strategy.ID)
	}
	s.strategies[strategy.ID] = cloneStrategy(strategy)
	return nil
}

func (s *StrategyStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Strategy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	strategy, ok := s.strategies[id]
	if !ok {
		return nil, store.ErrStrategyNotFound
	}
	return cloneStrategy(strategy), nil
}

func (s *StrategyStore) List(ctx context.Context, userID uuid.UUID) ([]*domain.Strategy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Strategy, 0, len(s.strategies))
	for _, strategy := range s.strategies {
		if strategy.VisibleTo(userID) {
			out = append(out, cloneStrategy(strategy))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsSystem != out[j].IsSystem {
			return out[i].IsSystem
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (s *StrategyStore) Update(ctx context.Context, strategy *domain.Strategy) error {
	if err := strategy.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.strategies[strategy.ID]
	if !ok {
		return store.ErrStrategyNotFound
	}
	existing.Name = strategy.Name
	existing.Description = strategy.Description
	existing.Policy = strategy.Policy
	existing.UpdatedAt = strategy.UpdatedAt
	return nil
}

func (s *StrategyStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.strategies[id]; !ok {
		return store.ErrStrategyNotFound
	}
	delete(s.strategies, id)
	return nil
}

func (s *StrategyStore) Count(ctx context.Context, userID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, strategy := range s.strategies {
		if strategy.VisibleTo(userID) {
			n++
		}
	}
	return n, nil
}

func (s *StrategyStore) EnsureSystem(ctx context.Context, strategies []domain.Strategy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range strategies {
		if _, exists := s.strategies[strategies[i].ID]; exists {
			continue
		}
		s.strategies[strategies[i].ID] = cloneStrategy(&strategies[i])
	}
	return nil
}
