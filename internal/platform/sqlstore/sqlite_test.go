package sqlstore_test

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/keeper-api/internal/domain"
	"github.com/phrazzld/keeper-api/internal/platform/sqlstore"
	"github.com/phrazzld/keeper-api/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// openSQLite returns a migrated database in a temporary file.
func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	db, err := sqlstore.Open(ctx, sqlstore.SQLite, filepath.Join(t.TempDir(), "keeper.db"), 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, sqlstore.Migrate(ctx, db, sqlstore.SQLite, "up", discardLogger()))
	return db
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := domain.ParseDate(s)
	require.NoError(t, err)
	return d
}

func sampleTask(t *testing.T, userID uuid.UUID, group string, cycle int, execDate string) *domain.Task {
	t.Helper()
	return &domain.Task{
		ID:            uuid.New(),
		UserID:        userID,
		StrategyID:    domain.SystemDefaultStrategyID,
		GroupName:     group,
		Cycle:         cycle,
		AnchorDate:    mustDate(t, "2025-01-01"),
		ExecDate:      mustDate(t, execDate),
		ExecTime:      domain.NewTimeOfDay(14, 30),
		FromAccountID: uuid.New(),
		ToAccountID:   uuid.New(),
		Amount:        decimal.RequireFromString("17.25"),
		Memo:          "Main -> Savings",
		Status:        domain.TaskStatusPending,
		CreatedAt:     time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC),
	}
}

func TestMigrations(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)

	version, err := sqlstore.CurrentVersion(ctx, db, sqlstore.SQLite)
	require.NoError(t, err)
	assert.Equal(t, int64(3), version)

	require.NoError(t, sqlstore.Migrate(ctx, db, sqlstore.SQLite, "down", discardLogger()))
	version, err = sqlstore.CurrentVersion(ctx, db, sqlstore.SQLite)
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)

	require.NoError(t, sqlstore.Migrate(ctx, db, sqlstore.SQLite, "up", discardLogger()))
	err = sqlstore.Migrate(ctx, db, sqlstore.SQLite, "sideways", discardLogger())
	assert.Error(t, err)
}

func TestTaskStore_SQLite(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	s := sqlstore.NewTaskStore(db, sqlstore.SQLite, discardLogger())
	userID := uuid.New()

	first := sampleTask(t, userID, "family", 1, "2025-02-03")
	second := sampleTask(t, userID, "family", 1, "2025-02-01")
	third := sampleTask(t, userID, "family", 2, "2025-03-10")
	third.ExecTime = domain.NewTimeOfDay(9, 5)
	require.NoError(t, s.CreateBatch(ctx, []*domain.Task{first, second, third}))

	t.Run("round trip", func(t *testing.T) {
		got, err := s.GetByID(ctx, userID, first.ID)
		require.NoError(t, err)
		assert.Equal(t, first.ID, got.ID)
		assert.Equal(t, "family", got.GroupName)
		assert.Equal(t, first.ExecDate, got.ExecDate)
		assert.Equal(t, first.AnchorDate, got.AnchorDate)
		assert.Equal(t, first.ExecTime, got.ExecTime)
		assert.True(t, first.Amount.Equal(got.Amount))
		assert.Equal(t, first.FromAccountID, got.FromAccountID)
		assert.Equal(t, domain.TaskStatusPending, got.Status)
		assert.Nil(t, got.CompletedAt)
		assert.True(t, first.CreatedAt.Equal(got.CreatedAt))
	})

	t.Run("other users see nothing", func(t *testing.T) {
		_, err := s.GetByID(ctx, uuid.New(), first.ID)
		assert.ErrorIs(t, err, store.ErrTaskNotFound)
	})

	t.Run("duplicate batch rolls back", func(t *testing.T) {
		fresh := sampleTask(t, userID, "family", 3, "2025-04-01")
		err := s.CreateBatch(ctx, []*domain.Task{fresh, first})
		assert.ErrorIs(t, err, store.ErrDuplicate)

		_, err = s.GetByID(ctx, userID, fresh.ID)
		assert.ErrorIs(t, err, store.ErrTaskNotFound)
	})

	t.Run("chain state and cycles", func(t *testing.T) {
		state, err := s.ChainState(ctx, userID, "family")
		require.NoError(t, err)
		assert.True(t, state.Found)
		assert.Equal(t, 2, state.MaxCycle)
		assert.Equal(t, mustDate(t, "2025-03-10"), state.LastExecDate)

		empty, err := s.ChainState(ctx, userID, "")
		require.NoError(t, err)
		assert.False(t, empty.Found)

		cycles, err := s.ListCycles(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2}, cycles)
	})

	t.Run("daily counts", func(t *testing.T) {
		counts, err := s.DailyCounts(ctx, userID, mustDate(t, "2025-02-02"))
		require.NoError(t, err)
		assert.Equal(t, store.DayCounts{"2025-02-03": 1, "2025-03-10": 1}, counts)
	})

	t.Run("list ordering filters and paging", func(t *testing.T) {
		all, err := s.ListAll(ctx, userID, store.TaskFilter{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, second.ID, all[0].ID)
		assert.Equal(t, first.ID, all[1].ID)
		assert.Equal(t, third.ID, all[2].ID)

		cycle := 2
		byCycle, err := s.ListAll(ctx, userID, store.TaskFilter{Cycle: &cycle})
		require.NoError(t, err)
		require.Len(t, byCycle, 1)
		assert.Equal(t, third.ID, byCycle[0].ID)

		byQuery, err := s.ListAll(ctx, userID, store.TaskFilter{Query: "SAVINGS"})
		require.NoError(t, err)
		assert.Len(t, byQuery, 3)

		noMatch, err := s.ListAll(ctx, userID, store.TaskFilter{Query: "100%"})
		require.NoError(t, err)
		assert.Empty(t, noMatch)

		page, total, err := s.List(ctx, userID, store.TaskFilter{}, store.Page{Number: 2, Size: 2})
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		require.Len(t, page, 1)
		assert.Equal(t, third.ID, page[0].ID)
	})

	t.Run("lifecycle update and counts", func(t *testing.T) {
		task, err := s.GetByID(ctx, userID, second.ID)
		require.NoError(t, err)
		require.NoError(t, task.Complete("sent", time.Date(2025, 2, 1, 15, 0, 0, 0, time.UTC)))
		require.NoError(t, s.UpdateLifecycle(ctx, task))

		got, err := s.GetByID(ctx, userID, second.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusCompleted, got.Status)
		assert.Equal(t, "sent", got.Notes)
		require.NotNil(t, got.CompletedAt)
		assert.True(t, task.CompletedAt.Equal(*got.CompletedAt))

		counts, err := s.CountByStatus(ctx, userID, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, store.StatusCounts{Total: 3, Pending: 2, Completed: 1}, counts)

		next, ok, err := s.NextPendingDate(ctx, userID, mustDate(t, "2025-02-01"))
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, mustDate(t, "2025-02-03"), next)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, s.Delete(ctx, userID, third.ID))
		assert.ErrorIs(t, s.Delete(ctx, userID, third.ID), store.ErrTaskNotFound)

		_, ok, err := s.NextPendingDate(ctx, userID, mustDate(t, "2025-02-03"))
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestTaskStore_WithTx(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	s := sqlstore.NewTaskStore(db, sqlstore.SQLite, discardLogger())
	userID := uuid.New()
	task := sampleTask(t, userID, "", 1, "2025-02-03")

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, s.WithTx(tx).CreateBatch(ctx, []*domain.Task{task}))
	require.NoError(t, tx.Rollback())

	_, err = s.GetByID(ctx, userID, task.ID)
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
}

func TestStrategyStore_SQLite(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	s := sqlstore.NewStrategyStore(db, sqlstore.SQLite, discardLogger())

	require.NoError(t, s.EnsureSystem(ctx, domain.SystemStrategies()))
	require.NoError(t, s.EnsureSystem(ctx, domain.SystemStrategies()))

	userID := uuid.New()
	policy := domain.DefaultPolicy()
	policy.SkipWeekend = true
	policy.AmountMax = decimal.RequireFromString("45.50")
	mine, err := domain.NewStrategy(userID, "Weekdays", "no weekends", policy)
	require.NoError(t, err)
	require.NoError(t, s.Create(ctx, mine))
	assert.ErrorIs(t, s.Create(ctx, mine), store.ErrDuplicate)

	got, err := s.GetByID(ctx, mine.ID)
	require.NoError(t, err)
	assert.Equal(t, userID, got.UserID)
	assert.True(t, got.SkipWeekend)
	assert.True(t, got.AmountMax.Equal(decimal.RequireFromString("45.5")))
	assert.Equal(t, domain.DefaultTimeStart, got.TimeStart)

	system, err := s.GetByID(ctx, domain.SystemLongTermStrategyID)
	require.NoError(t, err)
	assert.True(t, system.IsSystem)
	assert.Equal(t, uuid.Nil, system.UserID)
	assert.Equal(t, 90, system.IntervalMin)

	list, err := s.List(ctx, userID)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.True(t, list[0].IsSystem)
	assert.True(t, list[1].IsSystem)
	assert.Equal(t, mine.ID, list[2].ID)

	n, err := s.Count(ctx, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	mine.Name = "Weekdays only"
	mine.DailyLimit = 5
	require.NoError(t, s.Update(ctx, mine))
	got, err = s.GetByID(ctx, mine.ID)
	require.NoError(t, err)
	assert.Equal(t, "Weekdays only", got.Name)
	assert.Equal(t, 5, got.DailyLimit)

	require.NoError(t, s.Delete(ctx, mine.ID))
	_, err = s.GetByID(ctx, mine.ID)
	assert.ErrorIs(t, err, store.ErrStrategyNotFound)
	assert.ErrorIs(t, s.Update(ctx, mine), store.ErrStrategyNotFound)
}

func TestAccountDirectory_SQLite(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	d := sqlstore.NewAccountDirectory(db, sqlstore.SQLite, discardLogger())
	userID := uuid.New()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	var created []*domain.Account
	for i, acct := range []struct {
		name   string
		group  string
		active bool
	}{
		{"Main", "family", true},
		{"Savings", "family", true},
		{"Travel", "", true},
		{"Closed", "work", false},
	} {
		a, err := domain.NewAccount(userID, acct.name, acct.group)
		require.NoError(t, err)
		a.IsActive = acct.active
		a.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		if acct.name == "Savings" {
			a.AmountMin = decimal.NewNullDecimal(decimal.NewFromInt(5))
		}
		require.NoError(t, d.Create(ctx, a))
		created = append(created, a)
	}

	active, err := d.ListActive(ctx, userID, "")
	require.NoError(t, err)
	require.Len(t, active, 3)
	assert.Equal(t, created[0].ID, active[0].ID)
	assert.Equal(t, created[1].ID, active[1].ID)
	assert.Equal(t, created[2].ID, active[2].ID)
	assert.True(t, active[1].AmountMin.Valid)
	assert.False(t, active[0].AmountMin.Valid)

	family, err := d.ListActive(ctx, userID, "family")
	require.NoError(t, err)
	assert.Len(t, family, 2)

	groups, err := d.ListGroups(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, []string{"family"}, groups)

	counts, err := d.Counts(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, store.AccountCounts{Total: 4, Active: 3}, counts)
}
