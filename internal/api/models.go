package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/keeper-api/internal/domain"
	"github.com/phrazzld/keeper-api/internal/service"
	"github.com/shopspring/decimal"
)

// GenerateTasksRequest defines the payload for POST /tasks/generate.
type GenerateTasksRequest struct {
	StrategyID string `json:"strategy_id" validate:"required,uuid"`

	// Group selects the accounts and the chain; empty or "all" means every
	// active account.
	Group  string  `json:"group"       validate:"max=100"`
	Cycles int     `json:"cycles"      validate:"gte=0"`
	Seed   *uint64 `json:"seed"`

	// StartDate anchors an empty chain (YYYY-MM-DD).
	StartDate *string `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
}

// CompleteTaskRequest defines the optional payload for POST /tasks/{id}/complete.
type CompleteTaskRequest struct {
	Notes string `json:"notes" validate:"max=2000"`
}

// BatchDeleteRequest selects tasks to delete. Exactly one selector is set.
type BatchDeleteRequest struct {
	IDs       []string `json:"ids"       validate:"omitempty,max=1000,dive,uuid"`
	All       bool     `json:"all"`
	Completed bool     `json:"completed"`
	Cycle     *int     `json:"cycle"`
}

// BatchCompleteRequest selects tasks to complete: explicit ids or every
// pending task scheduled today.
type BatchCompleteRequest struct {
	IDs   []string `json:"ids"   validate:"omitempty,max=1000,dive,uuid"`
	Today bool     `json:"today"`
	Notes string   `json:"notes" validate:"max=2000"`
}

// BatchDeleteResponse reports a batch delete.
type BatchDeleteResponse struct {
	DeletedCount int         `json:"deleted_count"`
	FailedIDs    []uuid.UUID `json:"failed_ids"`
}

// BatchCompleteResponse reports a batch completion.
type BatchCompleteResponse struct {
	CompletedCount int         `json:"completed_count"`
	FailedIDs      []uuid.UUID `json:"failed_ids"`
}

// StrategyRequest defines the payload for creating or updating a strategy.
// Omitted fields take defaults on create and stay unchanged on update.
type StrategyRequest struct {
	Name        string           `json:"name"         validate:"max=100"`
	Description *string          `json:"description"  validate:"omitempty,max=500"`
	IntervalMin *int             `json:"interval_min" validate:"omitempty,gte=1"`
	IntervalMax *int             `json:"interval_max" validate:"omitempty,gte=1"`
	TimeStart   *string          `json:"time_start"`
	TimeEnd     *string          `json:"time_end"`
	SkipWeekend *bool            `json:"skip_weekend"`
	AmountMin   *decimal.Decimal `json:"amount_min"`
	AmountMax   *decimal.Decimal `json:"amount_max"`
	DailyLimit  *int             `json:"daily_limit"  validate:"omitempty,gte=1"`
}

// toInput converts the request, parsing the HH:MM time fields.
func (r StrategyRequest) toInput() (service.StrategyInput, error) {
	in := service.StrategyInput{
		Name:        r.Name,
		Description: r.Description,
		IntervalMin: r.IntervalMin,
		IntervalMax: r.IntervalMax,
		SkipWeekend: r.SkipWeekend,
		AmountMin:   r.AmountMin,
		AmountMax:   r.AmountMax,
		DailyLimit:  r.DailyLimit,
	}
	if r.TimeStart != nil {
		t, err := domain.ParseTimeOfDay(*r.TimeStart)
		if err != nil {
			return in, domain.NewValidationError("time_start", "must use the HH:MM format", domain.ErrValidation)
		}
		in.TimeStart = &t
	}
	if r.TimeEnd != nil {
		t, err := domain.ParseTimeOfDay(*r.TimeEnd)
		if err != nil {
			return in, domain.NewValidationError("time_end", "must use the HH:MM format", domain.ErrValidation)
		}
		in.TimeEnd = &t
	}
	return in, nil
}

// StrategyResponse is the public form of a strategy.
type StrategyResponse struct {
	ID          uuid.UUID        `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	IntervalMin int              `json:"interval_min"`
	IntervalMax int              `json:"interval_max"`
	TimeStart   domain.TimeOfDay `json:"time_start"`
	TimeEnd     domain.TimeOfDay `json:"time_end"`
	SkipWeekend bool             `json:"skip_weekend"`
	AmountMin   decimal.Decimal  `json:"amount_min"`
	AmountMax   decimal.Decimal  `json:"amount_max"`
	DailyLimit  int              `json:"daily_limit"`
	IsSystem    bool             `json:"is_system"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

func strategyToResponse(s *domain.Strategy) StrategyResponse {
	return StrategyResponse{
		ID:          s.ID,
		Name:        s.Name,
		Description: s.Description,
		IntervalMin: s.IntervalMin,
		IntervalMax: s.IntervalMax,
		TimeStart:   s.TimeStart,
		TimeEnd:     s.TimeEnd,
		SkipWeekend: s.SkipWeekend,
		AmountMin:   s.AmountMin,
		AmountMax:   s.AmountMax,
		DailyLimit:  s.DailyLimit,
		IsSystem:    s.IsSystem,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

// TaskResponse is the public form of a task. Calendar dates are rendered as
// YYYY-MM-DD.
type TaskResponse struct {
	ID            uuid.UUID         `json:"id"`
	StrategyID    uuid.UUID         `json:"strategy_id"`
	GroupName     string            `json:"group_name"`
	Cycle         int               `json:"cycle"`
	AnchorDate    string            `json:"anchor_date"`
	ExecDate      string            `json:"exec_date"`
	ExecTime      domain.TimeOfDay  `json:"exec_time"`
	FromAccountID uuid.UUID         `json:"from_account_id"`
	ToAccountID   uuid.UUID         `json:"to_account_id"`
	Amount        decimal.Decimal   `json:"amount"`
	Memo          string            `json:"memo,omitempty"`
	Notes         string            `json:"notes,omitempty"`
	Status        domain.TaskStatus `json:"status"`
	CompletedAt   *time.Time        `json:"completed_at,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

func taskToResponse(t *domain.Task) TaskResponse {
	return TaskResponse{
		ID:            t.ID,
		StrategyID:    t.StrategyID,
		GroupName:     t.GroupName,
		Cycle:         t.Cycle,
		AnchorDate:    domain.FormatDate(t.AnchorDate),
		ExecDate:      domain.FormatDate(t.ExecDate),
		ExecTime:      t.ExecTime,
		FromAccountID: t.FromAccountID,
		ToAccountID:   t.ToAccountID,
		Amount:        t.Amount,
		Memo:          t.Memo,
		Notes:         t.Notes,
		Status:        t.Status,
		CompletedAt:   t.CompletedAt,
		CreatedAt:     t.CreatedAt,
	}
}

func tasksToResponse(tasks []*domain.Task) []TaskResponse {
	out := make([]TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, taskToResponse(t))
	}
	return out
}

// TaskPageResponse is one page of GET /tasks.
type TaskPageResponse struct {
	Items      []TaskResponse `json:"items"`
	Total      int            `json:"total"`
	Page       int            `json:"page"`
	PageSize   int            `json:"page_size"`
	TotalPages int            `json:"total_pages"`
}

// GenerationInfoResponse reports where the next run of a chain continues.
type GenerationInfoResponse struct {
	Group           string  `json:"group"`
	LastCycle       int     `json:"last_cycle"`
	LastExecDate    *string `json:"last_exec_date"`
	NextCycle       int     `json:"next_cycle"`
	SuggestedAnchor string  `json:"suggested_anchor"`
}

func generationInfoToResponse(info *service.GenerationInfo) GenerationInfoResponse {
	resp := GenerationInfoResponse{
		Group:           info.Group,
		LastCycle:       info.LastCycle,
		NextCycle:       info.NextCycle,
		SuggestedAnchor: domain.FormatDate(info.SuggestedAnchor),
	}
	if info.LastExecDate != nil {
		d := domain.FormatDate(*info.LastExecDate)
		resp.LastExecDate = &d
	}
	return resp
}

// CyclesResponse lists the distinct cycle numbers of the user's tasks.
type CyclesResponse struct {
	Cycles []int `json:"cycles"`
}

// GroupsResponse lists the distinct groups of active accounts.
type GroupsResponse struct {
	Groups []string `json:"groups"`
}

// DashboardResponse carries the task and catalog totals of a period.
type DashboardResponse struct {
	Period          string  `json:"period"`
	From            *string `json:"from"`
	To              *string `json:"to"`
	TotalTasks      int     `json:"total_tasks"`
	PendingTasks    int     `json:"pending_tasks"`
	CompletedTasks  int     `json:"completed_tasks"`
	SkippedTasks    int     `json:"skipped_tasks"`
	TotalAccounts   int     `json:"total_accounts"`
	ActiveAccounts  int     `json:"active_accounts"`
	TotalStrategies int     `json:"total_strategies"`
}

func optionalDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	d := domain.FormatDate(*t)
	return &d
}

func dashboardToResponse(s *service.DashboardStats) DashboardResponse {
	return DashboardResponse{
		Period:          s.Period,
		From:            optionalDate(s.From),
		To:              optionalDate(s.To),
		TotalTasks:      s.TotalTasks,
		PendingTasks:    s.PendingTasks,
		CompletedTasks:  s.CompletedTasks,
		SkippedTasks:    s.SkippedTasks,
		TotalAccounts:   s.TotalAccounts,
		ActiveAccounts:  s.ActiveAccounts,
		TotalStrategies: s.TotalStrategies,
	}
}

// CalendarDayResponse is one bucket of GET /stats/calendar.
type CalendarDayResponse struct {
	Date           string `json:"date"`
	TaskCount      int    `json:"task_count"`
	HasPending     bool   `json:"has_pending"`
	PendingCount   int    `json:"pending_count"`
	CompletedCount int    `json:"completed_count"`
	SkippedCount   int    `json:"skipped_count"`
}

func calendarToResponse(days []service.CalendarDay) []CalendarDayResponse {
	out := make([]CalendarDayResponse, 0, len(days))
	for _, d := range days {
		out = append(out, CalendarDayResponse{
			Date:           domain.FormatDate(d.Date),
			TaskCount:      d.TaskCount,
			HasPending:     d.HasPending,
			PendingCount:   d.PendingCount,
			CompletedCount: d.CompletedCount,
			SkippedCount:   d.SkippedCount,
		})
	}
	return out
}

// NextDayResponse lists the tasks of the next day holding pending work.
type NextDayResponse struct {
	Date      string         `json:"date"`
	DaysUntil int            `json:"days_until"`
	Tasks     []TaskResponse `json:"tasks"`
}

// TodayResponse lists the tasks scheduled today.
type TodayResponse struct {
	Date           string         `json:"date"`
	Tasks          []TaskResponse `json:"tasks"`
	PendingCount   int            `json:"pending_count"`
	CompletedCount int            `json:"completed_count"`
}
