package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/keeper-api/internal/domain"
	"github.com/phrazzld/keeper-api/internal/platform/logger"
	"github.com/phrazzld/keeper-api/internal/store"
)

const taskColumns = `id, user_id, strategy_id, group_name, cycle, anchor_date, exec_date, exec_time,
	from_account_id, to_account_id, amount, memo, notes, status, completed_at, created_at`

const insertTaskSQL = `
	INSERT INTO tasks (` + taskColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
`

const taskOrder = ` ORDER BY exec_date ASC, exec_time ASC, id ASC`

// TaskStore implements store.TaskStore over database/sql.
type TaskStore struct {
	db      store.DBTX
	dialect Dialect
	logger  *slog.Logger
}

var _ store.TaskStore = (*TaskStore)(nil)

// NewTaskStore creates a TaskStore. db may be a *sql.DB or a *sql.Tx. If
// logger is nil, a default logger will be used.
func NewTaskStore(db store.DBTX, dialect Dialect, logger *slog.Logger) *TaskStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskStore{
		db:      db,
		dialect: dialect,
		logger:  logger.With(slog.String("component", "task_store")),
	}
}

// WithTx returns a TaskStore whose queries run inside tx.
func (s *TaskStore) WithTx(tx *sql.Tx) *TaskStore {
	return &TaskStore{db: tx, dialect: s.dialect, logger: s.logger}
}

func (s *TaskStore) q(query string) string {
	return s.dialect.Rebind(query)
}

// CreateBatch inserts tasks in one transaction. When the store already wraps
// a transaction, the caller owns commit and rollback.
func (s *TaskStore) CreateBatch(ctx context.Context, tasks []*domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	for _, t := range tasks {
		if err := t.Validate(); err != nil {
			log.Warn("task validation failed during batch create",
				slog.String("error", err.Error()),
				slog.String("task_id", t.ID.String()))
			return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
		}
	}
	if len(tasks) == 0 {
		return nil
	}

	insert := func(ctx context.Context, db store.DBTX) error {
		stmt, err := db.PrepareContext(ctx, s.q(insertTaskSQL))
		if err != nil {
			return fmt.Errorf("failed to prepare task insert: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, t := range tasks {
			_, err := stmt.ExecContext(ctx,
				t.ID,
				t.UserID,
				t.StrategyID,
				t.GroupName,
				t.Cycle,
				dateArg(t.AnchorDate),
				dateArg(t.ExecDate),
				t.ExecTime,
				t.FromAccountID,
				t.ToAccountID,
				t.Amount,
				t.Memo,
				t.Notes,
				string(t.Status),
				nullTimeArg(t.CompletedAt),
				t.CreatedAt.UTC(),
			)
			if err != nil {
				log.Error("failed to insert task",
					slog.String("error", err.Error()),
					slog.String("task_id", t.ID.String()))
				return MapError(err)
			}
		}
		return nil
	}

	var err error
	if sqlDB, ok := s.db.(*sql.DB); ok {
		err = store.RunInTransaction(ctx, sqlDB, func(ctx context.Context, tx *sql.Tx) error {
			return insert(ctx, tx)
		})
	} else {
		err = insert(ctx, s.db)
	}
	if err != nil {
		return err
	}

	log.Debug("task batch created", slog.Int("count", len(tasks)))
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var t domain.Task
	var status string
	err := row.Scan(
		&t.ID,
		&t.UserID,
		&t.StrategyID,
		&t.GroupName,
		&t.Cycle,
		scanDate(&t.AnchorDate),
		scanDate(&t.ExecDate),
		&t.ExecTime,
		&t.FromAccountID,
		&t.ToAccountID,
		&t.Amount,
		&t.Memo,
		&t.Notes,
		&status,
		scanNullTimestamp(&t.CompletedAt),
		scanTimestamp(&t.CreatedAt),
	)
	if err != nil {
		return nil, err
	}
	t.Status = domain.TaskStatus(status)
	return &t, nil
}

func (s *TaskStore) GetByID(ctx context.Context, userID, id uuid.UUID) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	row := s.db.QueryRowContext(ctx,
		s.q(`SELECT `+taskColumns+` FROM tasks WHERE id = $1 AND user_id = $2`),
		id, userID)
	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("task not found", slog.String("task_id", id.String()))
			return nil, store.ErrTaskNotFound
		}
		log.Error("failed to get task", slog.String("error", err.Error()), slog.String("task_id", id.String()))
		return nil, MapError(err)
	}
	return t, nil
}

func (s *TaskStore) UpdateLifecycle(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	result, err := s.db.ExecContext(ctx,
		s.q(`UPDATE tasks SET status = $1, notes = $2, completed_at = $3 WHERE id = $4 AND user_id = $5`),
		string(task.Status),
		task.Notes,
		nullTimeArg(task.CompletedAt),
		task.ID,
		task.UserID,
	)
	if err != nil {
		log.Error("failed to update task lifecycle",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrTaskNotFound)
}

func (s *TaskStore) Delete(ctx context.Context, userID, id uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx,
		s.q(`DELETE FROM tasks WHERE id = $1 AND user_id = $2`), id, userID)
	if err != nil {
		log.Error("failed to delete task", slog.String("error", err.Error()), slog.String("task_id", id.String()))
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrTaskNotFound)
}

// whereTasks renders the WHERE clause of a filtered task query. Placeholders
// start at $1.
func whereTasks(userID uuid.UUID, f store.TaskFilter) (string, []any) {
	conds := []string{"user_id = $1"}
	args := []any{userID}
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, strings.ReplaceAll(cond, "?", fmt.Sprintf("$%d", len(args))))
	}

	if f.Status != "" {
		add("status = ?", string(f.Status))
	}
	if f.Cycle != nil {
		add("cycle = ?", *f.Cycle)
	}
	if f.Group != nil {
		add("group_name = ?", *f.Group)
	}
	if f.From != nil {
		add("exec_date >= ?", dateArg(*f.From))
	}
	if f.To != nil {
		add("exec_date <= ?", dateArg(*f.To))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		add(`(LOWER(memo) LIKE ? ESCAPE '\' OR LOWER(notes) LIKE ? ESCAPE '\' OR LOWER(group_name) LIKE ? ESCAPE '\')`,
			"%"+escapeLike(strings.ToLower(q))+"%")
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (s *TaskStore) List(
	ctx context.Context,
	userID uuid.UUID,
	filter store.TaskFilter,
	page store.Page,
) ([]*domain.Task, int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	where, args := whereTasks(userID, filter)

	var total int
	if err := s.db.QueryRowContext(ctx, s.q(`SELECT COUNT(*) FROM tasks`+where), args...).Scan(&total); err != nil {
		log.Error("failed to count tasks", slog.String("error", err.Error()))
		return nil, 0, MapError(err)
	}

	query := `SELECT ` + taskColumns + ` FROM tasks` + where + taskOrder
	if page.Size > 0 {
		args = append(args, page.Size, page.Offset())
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	tasks, err := s.queryTasks(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return tasks, total, nil
}

func (s *TaskStore) ListAll(ctx context.Context, userID uuid.UUID, filter store.TaskFilter) ([]*domain.Task, error) {
	where, args := whereTasks(userID, filter)
	return s.queryTasks(ctx, `SELECT `+taskColumns+` FROM tasks`+where+taskOrder, args...)
}

func (s *TaskStore) queryTasks(ctx context.Context, query string, args ...any) ([]*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		log.Error("failed to query tasks", slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	tasks := []*domain.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			log.Error("failed to scan task row", slog.String("error", err.Error()))
			return nil, fmt.Errorf("failed to scan task row: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task rows: %w", err)
	}
	return tasks, nil
}

func (s *TaskStore) ListCycles(ctx context.Context, userID uuid.UUID) ([]int, error) {
	rows, err := s.db.QueryContext(ctx,
		s.q(`SELECT DISTINCT cycle FROM tasks WHERE user_id = $1 ORDER BY cycle`), userID)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	cycles := []int{}
	for rows.Next() {
		var c int
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("failed to scan cycle: %w", err)
		}
		cycles = append(cycles, c)
	}
	return cycles, rows.Err()
}

func (s *TaskStore) ChainState(ctx context.Context, userID uuid.UUID, group string) (store.ChainState, error) {
	var state store.ChainState

	err := s.db.QueryRowContext(ctx,
		s.q(`SELECT COALESCE(MAX(cycle), 0) FROM tasks WHERE user_id = $1 AND group_name = $2`),
		userID, group,
	).Scan(&state.MaxCycle)
	if err != nil {
		return state, MapError(err)
	}

	err = s.db.QueryRowContext(ctx,
		s.q(`SELECT exec_date FROM tasks WHERE user_id = $1 AND group_name = $2 ORDER BY exec_date DESC LIMIT 1`),
		userID, group,
	).Scan(scanDate(&state.LastExecDate))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return store.ChainState{}, nil
	case err != nil:
		return state, MapError(err)
	}
	state.Found = true
	return state, nil
}

func (s *TaskStore) DailyCounts(ctx context.Context, userID uuid.UUID, from time.Time) (store.DayCounts, error) {
	rows, err := s.db.QueryContext(ctx,
		s.q(`SELECT exec_date, COUNT(*) FROM tasks WHERE user_id = $1 AND exec_date >= $2 GROUP BY exec_date`),
		userID, dateArg(from))
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	counts := store.DayCounts{}
	for rows.Next() {
		var day time.Time
		var n int
		if err := rows.Scan(scanDate(&day), &n); err != nil {
			return nil, fmt.Errorf("failed to scan daily count: %w", err)
		}
		counts[domain.FormatDate(day)] = n
	}
	return counts, rows.Err()
}

func (s *TaskStore) CountByStatus(
	ctx context.Context,
	userID uuid.UUID,
	from, to *time.Time,
) (store.StatusCounts, error) {
	where, args := whereTasks(userID, store.TaskFilter{From: from, To: to})

	var counts store.StatusCounts
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT status, COUNT(*) FROM tasks`+where+` GROUP BY status`), args...)
	if err != nil {
		return counts, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return counts, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts.Add(domain.TaskStatus(status), n)
	}
	return counts, rows.Err()
}

func (s *TaskStore) NextPendingDate(ctx context.Context, userID uuid.UUID, after time.Time) (time.Time, bool, error) {
	var day time.Time
	err := s.db.QueryRowContext(ctx,
		s.q(`SELECT exec_date FROM tasks
			WHERE user_id = $1 AND status = $2 AND exec_date > $3
			ORDER BY exec_date ASC LIMIT 1`),
		userID, string(domain.TaskStatusPending), dateArg(after),
	).Scan(scanDate(&day))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return time.Time{}, false, nil
	case err != nil:
		return time.Time{}, false, MapError(err)
	}
	return day, true, nil
}
