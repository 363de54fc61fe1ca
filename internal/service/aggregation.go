package service

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/keeper-api/internal/domain"
	"github.com/phrazzld/keeper-api/internal/store"
)

// Dashboard periods.
const (
	PeriodWeek  = "week"
	PeriodMonth = "month"
	PeriodYear  = "year"
	PeriodAll   = "all"
)

const (
	// MaxCalendarDays bounds the number of buckets one calendar call returns.
	MaxCalendarDays = 366

	DefaultRecentLimit = 5
	MaxRecentLimit     = 50
)

// DashboardStats holds task counters for a period and account counters.
type DashboardStats struct {
	Period          string     `json:"period"`
	From            *time.Time `json:"from,omitempty"`
	To              *time.Time `json:"to,omitempty"`
	TotalTasks      int        `json:"total_tasks"`
	PendingTasks    int        `json:"pending_tasks"`
	CompletedTasks  int        `json:"completed_tasks"`
	SkippedTasks    int        `json:"skipped_tasks"`
	TotalAccounts   int        `json:"total_accounts"`
	ActiveAccounts  int        `json:"active_accounts"`
	TotalStrategies int        `json:"total_strategies"`
}

// CalendarDay is one bucket of a calendar range.
type CalendarDay struct {
	Date           time.Time `json:"date"`
	TaskCount      int       `json:"task_count"`
	HasPending     bool      `json:"has_pending"`
	PendingCount   int       `json:"pending_count"`
	CompletedCount int       `json:"completed_count"`
	SkippedCount   int       `json:"skipped_count"`
}

// NextDay previews the next day with pending work.
type NextDay struct {
	Date      time.Time      `json:"date"`
	DaysUntil int            `json:"days_until"`
	Tasks     []*domain.Task `json:"tasks"`
}

// TodayTasks lists the tasks scheduled today.
type TodayTasks struct {
	Date           time.Time      `json:"date"`
	Tasks          []*domain.Task `json:"tasks"`
	PendingCount   int            `json:"pending_count"`
	CompletedCount int            `json:"completed_count"`
}

// AggregationService derives read-only views from the task store. It keeps
// no state of its own.
type AggregationService struct {
	tasks    store.TaskStore
	accounts store.AccountDirectory
	catalog  *StrategyCatalog
	location *time.Location
	now      func() time.Time
	logger   *slog.Logger
}

// NewAggregationService creates an AggregationService.
func NewAggregationService(
	tasks store.TaskStore,
	accounts store.AccountDirectory,
	catalog *StrategyCatalog,
	location *time.Location,
	logger *slog.Logger,
) (*AggregationService, error) {
	if tasks == nil {
		return nil, domain.NewValidationError("tasks", "cannot be nil", domain.ErrValidation)
	}
	if accounts == nil {
		return nil, domain.NewValidationError("accounts", "cannot be nil", domain.ErrValidation)
	}
	if catalog == nil {
		return nil, domain.NewValidationError("catalog", "cannot be nil", domain.ErrValidation)
	}
	if location == nil {
		location = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AggregationService{
		tasks:    tasks,
		accounts: accounts,
		catalog:  catalog,
		location: location,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "aggregation_service")),
	}, nil
}

// SetClock replaces time.Now. Intended for tests.
func (s *AggregationService) SetClock(now func() time.Time) {
	s.now = now
}

func (s *AggregationService) today() time.Time {
	return domain.DateOf(s.now().In(s.location))
}

// PeriodBounds returns the inclusive date range of period around today. Both
// bounds are nil for PeriodAll.
func PeriodBounds(period string, today time.Time) (from, to *time.Time, err error) {
	today = domain.DateOf(today)
	var start, end time.Time
	switch period {
	case PeriodWeek:
		offset := (int(today.Weekday()) + 6) % 7
		start = domain.AddDays(today, -offset)
		end = domain.AddDays(start, 6)
	case PeriodMonth:
		start = time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
		end = start.AddDate(0, 1, -1)
	case PeriodYear:
		start = time.Date(today.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
		end = time.Date(today.Year(), time.December, 31, 0, 0, 0, 0, time.UTC)
	case PeriodAll:
		return nil, nil, nil
	default:
		return nil, nil, domain.NewValidationError("period", "must be week, month, year or all", domain.ErrValidation)
	}
	return &start, &end, nil
}

// Dashboard counts tasks with exec_date in period and the user's accounts
// and visible strategies. An empty period means month.
func (s *AggregationService) Dashboard(ctx context.Context, userID uuid.UUID, period string) (*DashboardStats, error) {
	period = strings.ToLower(strings.TrimSpace(period))
	if period == "" {
		period = PeriodMonth
	}
	from, to, err := PeriodBounds(period, s.today())
	if err != nil {
		return nil, err
	}

	counts, err := s.tasks.CountByStatus(ctx, userID, from, to)
	if err != nil {
		return nil, NewServiceError("dashboard", "failed to count tasks", err)
	}
	accounts, err := s.accounts.Counts(ctx, userID)
	if err != nil {
		return nil, NewServiceError("dashboard", "failed to count accounts", err)
	}
	strategies, err := s.catalog.Count(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &DashboardStats{
		Period:          period,
		From:            from,
		To:              to,
		TotalTasks:      counts.Total,
		PendingTasks:    counts.Pending,
		CompletedTasks:  counts.Completed,
		SkippedTasks:    counts.Skipped,
		TotalAccounts:   accounts.Total,
		ActiveAccounts:  accounts.Active,
		TotalStrategies: strategies,
	}, nil
}

// Calendar returns exactly one bucket per day in [start, end].
func (s *AggregationService) Calendar(ctx context.Context, userID uuid.UUID, start, end time.Time) ([]CalendarDay, error) {
	start, end = domain.DateOf(start), domain.DateOf(end)
	if end.Before(start) {
		return nil, domain.NewValidationError("end_date", "must not be before start_date", domain.ErrValidation)
	}
	days := domain.DaysBetween(start, end) + 1
	if days > MaxCalendarDays {
		return nil, domain.NewValidationError("end_date", "range is too long", domain.ErrValidation)
	}

	tasks, err := s.tasks.ListAll(ctx, userID, store.TaskFilter{From: &start, To: &end})
	if err != nil {
		return nil, NewServiceError("calendar", "failed to list tasks", err)
	}

	buckets := make([]CalendarDay, days)
	for i := range buckets {
		buckets[i].Date = domain.AddDays(start, i)
	}
	for _, t := range tasks {
		i := domain.DaysBetween(start, t.ExecDate)
		if i < 0 || i >= days {
			continue
		}
		b := &buckets[i]
		b.TaskCount++
		switch t.Status {
		case domain.TaskStatusPending:
			b.PendingCount++
			b.HasPending = true
		case domain.TaskStatusCompleted:
			b.CompletedCount++
		case domain.TaskStatusSkipped:
			b.SkippedCount++
		}
	}
	return buckets, nil
}

// NextDay returns the earliest day after today holding a pending task, with
// every task of that day. It returns nil when there is none.
func (s *AggregationService) NextDay(ctx context.Context, userID uuid.UUID) (*NextDay, error) {
	today := s.today()
	date, ok, err := s.tasks.NextPendingDate(ctx, userID, today)
	if err != nil {
		return nil, NewServiceError("next_day", "failed to find next pending day", err)
	}
	if !ok {
		return nil, nil
	}

	tasks, err := s.tasks.ListAll(ctx, userID, store.TaskFilter{From: &date, To: &date})
	if err != nil {
		return nil, NewServiceError("next_day", "failed to list tasks", err)
	}
	return &NextDay{
		Date:      date,
		DaysUntil: domain.DaysBetween(today, date),
		Tasks:     tasks,
	}, nil
}

// Today returns the tasks scheduled today.
func (s *AggregationService) Today(ctx context.Context, userID uuid.UUID) (*TodayTasks, error) {
	today := s.today()
	tasks, err := s.tasks.ListAll(ctx, userID, store.TaskFilter{From: &today, To: &today})
	if err != nil {
		return nil, NewServiceError("today", "failed to list tasks", err)
	}

	out := &TodayTasks{Date: today, Tasks: tasks}
	for _, t := range tasks {
		switch t.Status {
		case domain.TaskStatusPending:
			out.PendingCount++
		case domain.TaskStatusCompleted:
			out.CompletedCount++
		}
	}
	return out, nil
}

// Recent returns up to limit completed or skipped tasks, newest activity
// first. A non-positive limit uses DefaultRecentLimit.
func (s *AggregationService) Recent(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Task, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	if limit > MaxRecentLimit {
		limit = MaxRecentLimit
	}

	var done []*domain.Task
	for _, status := range []domain.TaskStatus{domain.TaskStatusCompleted, domain.TaskStatusSkipped} {
		tasks, err := s.tasks.ListAll(ctx, userID, store.TaskFilter{Status: status})
		if err != nil {
			return nil, NewServiceError("recent_activity", "failed to list tasks", err)
		}
		done = append(done, tasks...)
	}

	SortByActivity(done)
	if len(done) > limit {
		done = done[:limit]
	}
	if done == nil {
		done = []*domain.Task{}
	}
	return done, nil
}

// SortByActivity orders tasks by activity date, then exec time, newest
// first. Ties fall back to id so the order is total.
func SortByActivity(tasks []*domain.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		da, db := a.ActivityDate(), b.ActivityDate()
		if !da.Equal(db) {
			return da.After(db)
		}
		if a.ExecTime != b.ExecTime {
			return a.ExecTime > b.ExecTime
		}
		return a.ID.String() > b.ID.String()
	})
}
