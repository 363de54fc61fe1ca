package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/keeper-api/internal/domain"
)

// TaskFilter narrows task queries. Zero values mean "no restriction".
type TaskFilter struct {
	Status domain.TaskStatus

	// Cycle restricts results to a single cycle number.
	Cycle *int

	// Group restricts results to one continuation chain. A pointer to the
	// empty string selects the chain generated over all accounts.
	Group *string

	// Query is a case-insensitive substring matched against memo, notes and
	// group name.
	Query string

	// From and To bound exec_date inclusively.
	From *time.Time
	To   *time.Time
}

// Page selects a window of an ordered result set. Number starts at 1.
type Page struct {
	Number int
	Size   int
}

// Offset returns the number of rows skipped before the page.
func (p Page) Offset() int {
	if p.Number < 1 {
		return 0
	}
	return (p.Number - 1) * p.Size
}

// ChainState is the continuation point of a (user, group) chain.
type ChainState struct {
	MaxCycle     int
	LastExecDate time.Time
	Found        bool
}

// StatusCounts tallies tasks per status.
type StatusCounts struct {
	Total     int
	Pending   int
	Completed int
	Skipped   int
}

// Add counts one task with the given status.
func (c *StatusCounts) Add(status domain.TaskStatus, n int) {
	c.Total += n
	switch status {
	case domain.TaskStatusPending:
		c.Pending += n
	case domain.TaskStatusCompleted:
		c.Completed += n
	case domain.TaskStatusSkipped:
		c.Skipped += n
	}
}

// DayCounts maps a calendar date (YYYY-MM-DD) to a number of tasks.
type DayCounts map[string]int

// Get returns the count recorded for date.
func (d DayCounts) Get(date time.Time) int {
	return d[domain.FormatDate(date)]
}

// Inc adds one to the count recorded for date.
func (d DayCounts) Inc(date time.Time) {
	d[domain.FormatDate(date)]++
}

// TaskStore is the authoritative collection of generated tasks. All reads and
// writes are scoped to one user; a task owned by someone else is reported as
// ErrTaskNotFound.
type TaskStore interface {
	// CreateBatch inserts every task or none of them.
	CreateBatch(ctx context.Context, tasks []*domain.Task) error

	// GetByID returns ErrTaskNotFound if the task does not exist for userID.
	GetByID(ctx context.Context, userID, id uuid.UUID) (*domain.Task, error)

	// UpdateLifecycle persists status, notes and completed_at of task.
	UpdateLifecycle(ctx context.Context, task *domain.Task) error

	// Delete removes a task regardless of status.
	Delete(ctx context.Context, userID, id uuid.UUID) error

	// List returns one page of tasks ordered by exec_date, exec_time, id
	// together with the total number of matches.
	List(ctx context.Context, userID uuid.UUID, filter TaskFilter, page Page) ([]*domain.Task, int, error)

	// ListAll returns every matching task in List order.
	ListAll(ctx context.Context, userID uuid.UUID, filter TaskFilter) ([]*domain.Task, error)

	// ListCycles returns the distinct cycle numbers in ascending order.
	ListCycles(ctx context.Context, userID uuid.UUID) ([]int, error)

	// ChainState returns the highest cycle and latest exec_date of a chain.
	ChainState(ctx context.Context, userID uuid.UUID, group string) (ChainState, error)

	// DailyCounts counts tasks per exec_date on or after from, across all groups.
	DailyCounts(ctx context.Context, userID uuid.UUID, from time.Time) (DayCounts, error)

	// CountByStatus tallies tasks with exec_date in [from, to]; nil bounds are open.
	CountByStatus(ctx context.Context, userID uuid.UUID, from, to *time.Time) (StatusCounts, error)

	// NextPendingDate returns the earliest exec_date after the given date that
	// holds a pending task.
	NextPendingDate(ctx context.Context, userID uuid.UUID, after time.Time) (time.Time, bool, error)
}
