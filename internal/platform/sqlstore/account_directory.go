package sqlstore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/keeper-api/internal/domain"
	"github.com/phrazzld/keeper-api/internal/platform/logger"
	"github.com/phrazzld/keeper-api/internal/store"
)

const accountColumns = `id, user_id, name, group_name, is_active, amount_min, amount_max, strategy_id, created_at`

// AccountDirectory implements store.AccountDirectory over database/sql.
type AccountDirectory struct {
	db      store.DBTX
	dialect Dialect
	logger  *slog.Logger
}

var _ store.AccountDirectory = (*AccountDirectory)(nil)

// NewAccountDirectory creates an AccountDirectory. If logger is nil, a
// default logger will be used.
func NewAccountDirectory(db store.DBTX, dialect Dialect, logger *slog.Logger) *AccountDirectory {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountDirectory{
		db:      db,
		dialect: dialect,
		logger:  logger.With(slog.String("component", "account_directory")),
	}
}

func (d *AccountDirectory) Create(ctx context.Context, account *domain.Account) error {
	log := logger.FromContextOrDefault(ctx, d.logger)

	if err := account.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	_, err := d.db.ExecContext(ctx,
		d.dialect.Rebind(`INSERT INTO accounts (`+accountColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`),
		account.ID,
		account.UserID,
		account.Name,
		account.GroupName,
		account.IsActive,
		account.AmountMin,
		account.AmountMax,
		account.StrategyID,
		account.CreatedAt.UTC(),
	)
	if err != nil {
		log.Error("failed to create account",
			slog.String("error", err.Error()),
			slog.String("account_id", account.ID.String()))
		return MapError(err)
	}
	return nil
}

func (d *AccountDirectory) ListActive(ctx context.Context, userID uuid.UUID, group string) ([]*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = $1 AND is_active`
	args := []any{userID}
	if group != "" {
		query += ` AND group_name = $2`
		args = append(args, group)
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := d.db.QueryContext(ctx, d.dialect.Rebind(query), args...)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	accounts := []*domain.Account{}
	for rows.Next() {
		var a domain.Account
		err := rows.Scan(
			&a.ID,
			&a.UserID,
			&a.Name,
			&a.GroupName,
			&a.IsActive,
			&a.AmountMin,
			&a.AmountMax,
			&a.StrategyID,
			scanTimestamp(&a.CreatedAt),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account row: %w", err)
		}
		accounts = append(accounts, &a)
	}
	return accounts, rows.Err()
}

func (d *AccountDirectory) ListGroups(ctx context.Context, userID uuid.UUID) ([]string, error) {
	rows, err := d.db.QueryContext(ctx,
		d.dialect.Rebind(`SELECT DISTINCT group_name FROM accounts
			WHERE user_id = $1 AND is_active AND group_name <> ''
			ORDER BY group_name`),
		userID)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	groups := []string{}
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func (d *AccountDirectory) Counts(ctx context.Context, userID uuid.UUID) (store.AccountCounts, error) {
	var counts store.AccountCounts
	err := d.db.QueryRowContext(ctx,
		d.dialect.Rebind(`SELECT COUNT(*), COALESCE(SUM(CASE WHEN is_active THEN 1 ELSE 0 END), 0)
			FROM accounts WHERE user_id = $1`),
		userID,
	).Scan(&counts.Total, &counts.Active)
	if err != nil {
		return counts, MapError(err)
	}
	return counts, nil
}
