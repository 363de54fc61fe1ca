package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/keeper-api/internal/domain"
	"github.com/phrazzld/keeper-api/internal/events"
	"github.com/phrazzld/keeper-api/internal/store"
	"github.com/stretchr/testify/mock"
)

// MockEventEmitter mocks the EventEmitter interface
type MockEventEmitter struct {
	mock.Mock
}

func (m *MockEventEmitter) EmitEvent(ctx context.Context, event *events.TaskEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// MockAccountDirectory mocks the AccountDirectory interface
type MockAccountDirectory struct {
	mock.Mock
}

func (m *MockAccountDirectory) Create(ctx context.Context, account *domain.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockAccountDirectory) ListActive(
	ctx context.Context,
	userID uuid.UUID,
	group string,
) ([]*domain.Account, error) {
	args := m.Called(ctx, userID, group)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Account), args.Error(1)
}

func (m *MockAccountDirectory) ListGroups(ctx context.Context, userID uuid.UUID) ([]string, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockAccountDirectory) Counts(ctx context.Context, userID uuid.UUID) (store.AccountCounts, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(store.AccountCounts), args.Error(1)
}

// failingTaskStore wraps a TaskStore and fails selected calls.
type failingTaskStore struct {
	store.TaskStore
	deleteErr    map[uuid.UUID]error
	createErr    error
	dailyCountsN int
	// onDailyCounts runs before the wrapped DailyCounts on each call.
	onDailyCounts func(call int)
}

func (s *failingTaskStore) Delete(ctx context.Context, userID, id uuid.UUID) error {
	if err, ok := s.deleteErr[id]; ok {
		return err
	}
	return s.TaskStore.Delete(ctx, userID, id)
}

func (s *failingTaskStore) CreateBatch(ctx context.Context, tasks []*domain.Task) error {
	if s.createErr != nil {
		return s.createErr
	}
	return s.TaskStore.CreateBatch(ctx, tasks)
}

func (s *failingTaskStore) DailyCounts(ctx context.Context, userID uuid.UUID, from time.Time) (store.DayCounts, error) {
	s.dailyCountsN++
	if s.onDailyCounts != nil {
		s.onDailyCounts(s.dailyCountsN)
	}
	return s.TaskStore.DailyCounts(ctx, userID, from)
}
