package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/keeper-api/internal/domain"
	"github.com/phrazzld/keeper-api/internal/platform/logger"
	"github.com/phrazzld/keeper-api/internal/store"
)

const strategyColumns = `id, user_id, name, description, interval_min, interval_max, time_start, time_end,
	skip_weekend, amount_min, amount_max, daily_limit, is_system, created_at, updated_at`

const insertStrategySQL = `
	INSERT INTO strategies (` + strategyColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
`

// StrategyStore implements store.StrategyStore over database/sql.
type StrategyStore struct {
	db      store.DBTX
	dialect Dialect
	logger  *slog.Logger
}

var _ store.StrategyStore = (*StrategyStore)(nil)

// NewStrategyStore creates a StrategyStore. If logger is nil, a default
// logger will be used.
func NewStrategyStore(db store.DBTX, dialect Dialect, logger *slog.Logger) *StrategyStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StrategyStore{
		db:      db,
		dialect: dialect,
		logger:  logger.With(slog.String("component", "strategy_store")),
	}
}

func (s *StrategyStore) q(query string) string {
	return s.dialect.Rebind(query)
}

func strategyArgs(st *domain.Strategy) []any {
	return []any{
		st.ID,
		uuid.NullUUID{UUID: st.UserID, Valid: st.UserID != uuid.Nil},
		st.Name,
		st.Description,
		st.IntervalMin,
		st.IntervalMax,
		st.TimeStart,
		st.TimeEnd,
		st.SkipWeekend,
		st.AmountMin,
		st.AmountMax,
		st.DailyLimit,
		st.IsSystem,
		st.CreatedAt.UTC(),
		st.UpdatedAt.UTC(),
	}
}

func scanStrategy(row rowScanner) (*domain.Strategy, error) {
	var st domain.Strategy
	var owner uuid.NullUUID
	err := row.Scan(
		&st.ID,
		&owner,
		&st.Name,
		&st.Description,
		&st.IntervalMin,
		&st.IntervalMax,
		&st.TimeStart,
		&st.TimeEnd,
		&st.SkipWeekend,
		&st.AmountMin,
		&st.AmountMax,
		&st.DailyLimit,
		&st.IsSystem,
		scanTimestamp(&st.CreatedAt),
		scanTimestamp(&st.UpdatedAt),
	)
	if err != nil {
		return nil, err
	}
	if owner.Valid {
		st.UserID = owner.UUID
	}
	return &st, nil
}

func (s *StrategyStore) Create(ctx context.Context, strategy *domain.Strategy) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := strategy.Validate(); err != nil {
		log.Warn("strategy validation failed during create",
			slog.String("error", err.Error()),
			slog.String("strategy_id", strategy.ID.String()))
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	if _, err := s.db.ExecContext(ctx, s.q(insertStrategySQL), strategyArgs(strategy)...); err != nil {
		log.Error("failed to create strategy",
			slog.String("error", err.Error()),
			slog.String("strategy_id", strategy.ID.String()))
		return MapError(err)
	}

	log.Info("strategy created",
		slog.String("strategy_id", strategy.ID.String()),
		slog.String("user_id", strategy.UserID.String()))
	return nil
}

func (s *StrategyStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Strategy, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+strategyColumns+` FROM strategies WHERE id = $1`), id)
	st, err := scanStrategy(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrStrategyNotFound
		}
		return nil, MapError(err)
	}
	return st, nil
}

func (s *StrategyStore) List(ctx context.Context, userID uuid.UUID) ([]*domain.Strategy, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx,
		s.q(`SELECT `+strategyColumns+` FROM strategies
			WHERE is_system OR user_id = $1
			ORDER BY is_system DESC, name ASC, id ASC`),
		userID)
	if err != nil {
		log.Error("failed to list strategies", slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	strategies := []*domain.Strategy{}
	for rows.Next() {
		st, err := scanStrategy(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan strategy row: %w", err)
		}
		strategies = append(strategies, st)
	}
	return strategies, rows.Err()
}

func (s *StrategyStore) Update(ctx context.Context, strategy *domain.Strategy) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := strategy.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	result, err := s.db.ExecContext(ctx,
		s.q(`UPDATE strategies SET
			name = $1, description = $2, interval_min = $3, interval_max = $4,
			time_start = $5, time_end = $6, skip_weekend = $7,
			amount_min = $8, amount_max = $9, daily_limit = $10, updated_at = $11
			WHERE id = $12`),
		strategy.Name,
		strategy.Description,
		strategy.IntervalMin,
		strategy.IntervalMax,
		strategy.TimeStart,
		strategy.TimeEnd,
		strategy.SkipWeekend,
		strategy.AmountMin,
		strategy.AmountMax,
		strategy.DailyLimit,
		strategy.UpdatedAt.UTC(),
		strategy.ID,
	)
	if err != nil {
		log.Error("failed to update strategy",
			slog.String("error", err.Error()),
			slog.String("strategy_id", strategy.ID.String()))
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrStrategyNotFound)
}

func (s *StrategyStore) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, s.q(`DELETE FROM strategies WHERE id = $1`), id)
	if err != nil {
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrStrategyNotFound)
}

func (s *StrategyStore) Count(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		s.q(`SELECT COUNT(*) FROM strategies WHERE is_system OR user_id = $1`), userID).Scan(&n)
	if err != nil {
		return 0, MapError(err)
	}
	return n, nil
}

// EnsureSystem inserts the built-in strategies, skipping ids already present.
func (s *StrategyStore) EnsureSystem(ctx context.Context, strategies []domain.Strategy) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	seed := func(ctx context.Context, db store.DBTX) error {
		for i := range strategies {
			_, err := db.ExecContext(ctx,
				s.q(insertStrategySQL+` ON CONFLICT (id) DO NOTHING`),
				strategyArgs(&strategies[i])...)
			if err != nil {
				return MapError(err)
			}
		}
		return nil
	}

	var err error
	if sqlDB, ok := s.db.(*sql.DB); ok {
		err = store.RunInTransaction(ctx, sqlDB, func(ctx context.Context, tx *sql.Tx) error {
			return seed(ctx, tx)
		})
	} else {
		err = seed(ctx, s.db)
	}
	if err != nil {
		log.Error("failed to seed system strategies", slog.String("error", err.Error()))
		return err
	}

	log.Debug("system strategies ensured", slog.Int("count", len(strategies)))
	return nil
}
