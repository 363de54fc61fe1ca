package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/keeper-api/internal/domain"
	"github.com/phrazzld/keeper-api/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := domain.ParseDate(s)
	require.NoError(t, err)
	return d
}

func newTask(t *testing.T, userID uuid.UUID, group string, cycle int, execDate string) *domain.Task {
	t.Helper()
	return &domain.Task{
		ID:            uuid.New(),
		UserID:        userID,
		StrategyID:    domain.SystemDefaultStrategyID,
		GroupName:     group,
		Cycle:         cycle,
		AnchorDate:    date(t, "2025-01-01"),
		ExecDate:      date(t, execDate),
		ExecTime:      domain.NewTimeOfDay(10, 0),
		FromAccountID: uuid.New(),
		ToAccountID:   uuid.New(),
		Amount:        decimal.RequireFromString("12.50"),
		Memo:          "A -> B",
		Status:        domain.TaskStatusPending,
		CreatedAt:     time.Now().UTC(),
	}
}

func TestTaskStore_CreateBatchIsAtomic(t *testing.T) {
	ctx := context.Background()
	s := NewTaskStore()
	userID := uuid.New()

	good := newTask(t, userID, "", 1, "2025-02-01")
	bad := newTask(t, userID, "", 1, "2025-02-02")
	bad.Cycle = 0

	err := s.CreateBatch(ctx, []*domain.Task{good, bad})
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrInvalidEntity)

	_, err = s.GetByID(ctx, userID, good.ID)
	assert.ErrorIs(t, err, store.ErrTaskNotFound)

	require.NoError(t, s.CreateBatch(ctx, []*domain.Task{good}))
	err = s.CreateBatch(ctx, []*domain.Task{newTask(t, userID, "", 1, "2025-02-03"), good})
	assert.ErrorIs(t, err, store.ErrDuplicate)

	all, err := s.ListAll(ctx, userID, store.TaskFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestTaskStore_ScopedToUser(t *testing.T) {
	ctx := context.Background()
	s := NewTaskStore()
	owner := uuid.New()
	task := newTask(t, owner, "", 1, "2025-02-01")
	require.NoError(t, s.CreateBatch(ctx, []*domain.Task{task}))

	other := uuid.New()
	_, err := s.GetByID(ctx, other, task.ID)
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
	assert.ErrorIs(t, s.Delete(ctx, other, task.ID), store.ErrTaskNotFound)

	got, err := s.GetByID(ctx, owner, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.ID, got.ID)

	// returned values are copies
	got.Memo = "changed"
	again, err := s.GetByID(ctx, owner, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "A -> B", again.Memo)
}

func TestTaskStore_UpdateLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewTaskStore()
	userID := uuid.New()
	task := newTask(t, userID, "", 1, "2025-02-01")
	require.NoError(t, s.CreateBatch(ctx, []*domain.Task{task}))

	require.NoError(t, task.Complete("done", time.Date(2025, 2, 1, 11, 0, 0, 0, time.UTC)))
	require.NoError(t, s.UpdateLifecycle(ctx, task))

	got, err := s.GetByID(ctx, userID, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, got.Status)
	assert.Equal(t, "done", got.Notes)
	require.NotNil(t, got.CompletedAt)

	missing := newTask(t, userID, "", 1, "2025-02-01")
	assert.ErrorIs(t, s.UpdateLifecycle(ctx, missing), store.ErrTaskNotFound)
}

func TestTaskStore_DeleteUpdatesIndices(t *testing.T) {
	ctx := context.Background()
	s := NewTaskStore()
	userID := uuid.New()
	a := newTask(t, userID, "g1", 1, "2025-02-01")
	b := newTask(t, userID, "g1", 2, "2025-03-01")
	require.NoError(t, s.CreateBatch(ctx, []*domain.Task{a, b}))

	require.NoError(t, s.Delete(ctx, userID, b.ID))
	assert.ErrorIs(t, s.Delete(ctx, userID, b.ID), store.ErrTaskNotFound)

	state, err := s.ChainState(ctx, userID, "g1")
	require.NoError(t, err)
	assert.True(t, state.Found)
	assert.Equal(t, 1, state.MaxCycle)
	assert.Equal(t, date(t, "2025-02-01"), state.LastExecDate)

	counts, err := s.DailyCounts(ctx, userID, date(t, "2025-01-01"))
	require.NoError(t, err)
	assert.Equal(t, store.DayCounts{"2025-02-01": 1}, counts)

	cycles, err := s.ListCycles(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, cycles)

	require.NoError(t, s.Delete(ctx, userID, a.ID))
	state, err = s.ChainState(ctx, userID, "g1")
	require.NoError(t, err)
	assert.False(t, state.Found)
	assert.Zero(t, state.MaxCycle)
}

func TestTaskStore_ListFiltersAndPaging(t *testing.T) {
	ctx := context.Background()
	s := NewTaskStore()
	userID := uuid.New()

	t1 := newTask(t, userID, "", 1, "2025-02-03")
	t2 := newTask(t, userID, "g1", 1, "2025-02-01")
	t2.Memo = "Savings -> Checking"
	t3 := newTask(t, userID, "g1", 2, "2025-02-01")
	t3.ExecTime = domain.NewTimeOfDay(9, 0)
	t3.Status = domain.TaskStatusSkipped
	require.NoError(t, s.CreateBatch(ctx, []*domain.Task{t1, t2, t3}))
	require.NoError(t, s.CreateBatch(ctx, []*domain.Task{newTask(t, uuid.New(), "", 1, "2025-02-01")}))

	one := 1
	empty := ""
	g1 := "g1"
	from := date(t, "2025-02-02")

	tests := []struct {
		name   string
		filter store.TaskFilter
		want   []uuid.UUID
	}{
		{"all ordered by date then time", store.TaskFilter{}, []uuid.UUID{t3.ID, t2.ID, t1.ID}},
		{"status", store.TaskFilter{Status: domain.TaskStatusSkipped}, []uuid.UUID{t3.ID}},
		{"cycle", store.TaskFilter{Cycle: &one}, []uuid.UUID{t2.ID, t1.ID}},
		{"ungrouped", store.TaskFilter{Group: &empty}, []uuid.UUID{t1.ID}},
		{"group", store.TaskFilter{Group: &g1}, []uuid.UUID{t3.ID, t2.ID}},
		{"query is case insensitive", store.TaskFilter{Query: "savings"}, []uuid.UUID{t2.ID}},
		{"date range", store.TaskFilter{From: &from}, []uuid.UUID{t1.ID}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListAll(ctx, userID, tt.filter)
			require.NoError(t, err)
			ids := make([]uuid.UUID, len(got))
			for i, task := range got {
				ids[i] = task.ID
			}
			assert.Equal(t, tt.want, ids)
		})
	}

	page, total, err := s.List(ctx, userID, store.TaskFilter{}, store.Page{Number: 2, Size: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 1)
	assert.Equal(t, t1.ID, page[0].ID)

	page, total, err = s.List(ctx, userID, store.TaskFilter{}, store.Page{Number: 5, Size: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Empty(t, page)
}

func TestTaskStore_CountsAndNextPending(t *testing.T) {
	ctx := context.Background()
	s := NewTaskStore()
	userID := uuid.New()

	done := newTask(t, userID, "", 1, "2025-02-01")
	require.NoError(t, done.Complete("", time.Now()))
	skipped := newTask(t, userID, "", 1, "2025-02-05")
	skipped.Status = domain.TaskStatusSkipped
	later := newTask(t, userID, "", 1, "2025-02-09")
	require.NoError(t, s.CreateBatch(ctx, []*domain.Task{done, skipped, later}))

	counts, err := s.CountByStatus(ctx, userID, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, store.StatusCounts{Total: 3, Pending: 1, Completed: 1, Skipped: 1}, counts)

	to := date(t, "2025-02-05")
	counts, err = s.CountByStatus(ctx, userID, nil, &to)
	require.NoError(t, err)
	assert.Equal(t, 2, counts.Total)

	next, ok, err := s.NextPendingDate(ctx, userID, date(t, "2025-02-01"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, date(t, "2025-02-09"), next)

	_, ok, err = s.NextPendingDate(ctx, userID, date(t, "2025-02-09"))
	require.NoError(t, err)
	assert.False(t, ok)
}
