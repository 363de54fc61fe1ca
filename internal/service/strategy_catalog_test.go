package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/keeper-api/internal/domain"
	"github.com/phrazzld/keeper-api/internal/platform/memory"
	"github.com/phrazzld/keeper-api/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newCatalog(t *testing.T) *StrategyCatalog {
	t.Helper()
	catalog, err := NewStrategyCatalog(memory.NewStrategyStore(), discardLogger())
	require.NoError(t, err)
	require.NoError(t, catalog.SeedSystemStrategies(context.Background()))
	return catalog
}

func intPtr(v int) *int { return &v }

func TestNewStrategyCatalog(t *testing.T) {
	_, err := NewStrategyCatalog(nil, discardLogger())
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestStrategyCatalog_Create(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	tests := []struct {
		name    string
		input   StrategyInput
		wantErr error
		check   func(t *testing.T, s *domain.Strategy)
	}{
		{
			name:  "missing fields use defaults",
			input: StrategyInput{Name: "Monthly"},
			check: func(t *testing.T, s *domain.Strategy) {
				assert.Equal(t, domain.DefaultPolicy(), s.Policy)
				assert.Equal(t, userID, s.UserID)
				assert.False(t, s.IsSystem)
			},
		},
		{
			name: "explicit fields override defaults",
			input: StrategyInput{
				Name:        "  Weekly  ",
				IntervalMin: intPtr(5),
				IntervalMax: intPtr(9),
				DailyLimit:  intPtr(1),
				AmountMax:   func() *decimal.Decimal { d := decimal.NewFromInt(50); return &d }(),
			},
			check: func(t *testing.T, s *domain.Strategy) {
				assert.Equal(t, "Weekly", s.Name)
				assert.Equal(t, 5, s.IntervalMin)
				assert.Equal(t, 9, s.IntervalMax)
				assert.Equal(t, 1, s.DailyLimit)
				assert.True(t, decimal.NewFromInt(50).Equal(s.AmountMax))
			},
		},
		{
			name:    "empty name",
			input:   StrategyInput{Name: "   "},
			wantErr: domain.ErrValidation,
		},
		{
			name:    "inverted interval",
			input:   StrategyInput{Name: "bad", IntervalMin: intPtr(10), IntervalMax: intPtr(2)},
			wantErr: domain.ErrValidation,
		},
		{
			name:    "zero daily limit",
			input:   StrategyInput{Name: "bad", DailyLimit: intPtr(0)},
			wantErr: domain.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			catalog := newCatalog(t)
			s, err := catalog.Create(ctx, userID, tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, s)
				return
			}
			require.NoError(t, err)
			tt.check(t, s)

			stored, err := catalog.Get(ctx, userID, s.ID)
			require.NoError(t, err)
			assert.Equal(t, s.Name, stored.Name)
		})
	}
}

func TestStrategyCatalog_Visibility(t *testing.T) {
	ctx := context.Background()
	catalog := newCatalog(t)
	owner, other := uuid.New(), uuid.New()

	own, err := catalog.Create(ctx, owner, StrategyInput{Name: "Mine"})
	require.NoError(t, err)

	list, err := catalog.List(ctx, owner)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.True(t, list[0].IsSystem)
	assert.True(t, list[1].IsSystem)
	assert.Equal(t, own.ID, list[2].ID)

	otherList, err := catalog.List(ctx, other)
	require.NoError(t, err)
	assert.Len(t, otherList, 2)

	n, err := catalog.Count(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = catalog.Get(ctx, other, own.ID)
	assert.ErrorIs(t, err, store.ErrStrategyNotFound)

	system, err := catalog.Get(ctx, other, domain.SystemDefaultStrategyID)
	require.NoError(t, err)
	assert.True(t, system.IsSystem)

	_, err = catalog.Get(ctx, owner, uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStrategyCatalog_SeedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	catalog := newCatalog(t)
	require.NoError(t, catalog.SeedSystemStrategies(ctx))

	n, err := catalog.Count(ctx, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, len(domain.SystemStrategies()), n)
}

func TestStrategyCatalog_Update(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	t.Run("nil fields stay unchanged", func(t *testing.T) {
		catalog := newCatalog(t)
		s, err := catalog.Create(ctx, userID, StrategyInput{Name: "Mine", IntervalMin: intPtr(3), IntervalMax: intPtr(4)})
		require.NoError(t, err)

		desc := "updated"
		updated, err := catalog.Update(ctx, userID, s.ID, StrategyInput{Description: &desc, DailyLimit: intPtr(7)})
		require.NoError(t, err)
		assert.Equal(t, "Mine", updated.Name)
		assert.Equal(t, "updated", updated.Description)
		assert.Equal(t, 3, updated.IntervalMin)
		assert.Equal(t, 4, updated.IntervalMax)
		assert.Equal(t, 7, updated.DailyLimit)

		stored, err := catalog.Get(ctx, userID, s.ID)
		require.NoError(t, err)
		assert.Equal(t, 7, stored.DailyLimit)
	})

	t.Run("invalid result is rejected", func(t *testing.T) {
		catalog := newCatalog(t)
		s, err := catalog.Create(ctx, userID, StrategyInput{Name: "Mine"})
		require.NoError(t, err)

		_, err = catalog.Update(ctx, userID, s.ID, StrategyInput{IntervalMin: intPtr(500)})
		assert.ErrorIs(t, err, domain.ErrValidation)

		stored, err := catalog.Get(ctx, userID, s.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.DefaultPolicy().IntervalMin, stored.IntervalMin)
	})

	t.Run("system strategy is immutable", func(t *testing.T) {
		catalog := newCatalog(t)
		_, err := catalog.Update(ctx, userID, domain.SystemDefaultStrategyID, StrategyInput{Name: "Hacked"})
		assert.ErrorIs(t, err, domain.ErrImmutablePolicy)
	})

	t.Run("other user's strategy is not found", func(t *testing.T) {
		catalog := newCatalog(t)
		s, err := catalog.Create(ctx, userID, StrategyInput{Name: "Mine"})
		require.NoError(t, err)
		_, err = catalog.Update(ctx, uuid.New(), s.ID, StrategyInput{Name: "Theirs"})
		assert.ErrorIs(t, err, store.ErrStrategyNotFound)
	})
}

func TestStrategyCatalog_Delete(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	catalog := newCatalog(t)

	s, err := catalog.Create(ctx, userID, StrategyInput{Name: "Mine"})
	require.NoError(t, err)

	assert.ErrorIs(t, catalog.Delete(ctx, uuid.New(), s.ID), store.ErrStrategyNotFound)
	assert.True(t, errors.Is(catalog.Delete(ctx, userID, domain.SystemLongTermStrategyID), domain.ErrImmutablePolicy))

	require.NoError(t, catalog.Delete(ctx, userID, s.ID))
	_, err = catalog.Get(ctx, userID, s.ID)
	assert.ErrorIs(t, err, store.ErrStrategyNotFound)
}
