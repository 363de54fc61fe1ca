package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/keeper-api/internal/domain"
	"github.com/phrazzld/keeper-api/internal/events"
	"github.com/phrazzld/keeper-api/internal/generation"
	"github.com/phrazzld/keeper-api/internal/platform/logger"
	"github.com/phrazzld/keeper-api/internal/store"
)

// Group selectors accepted by listing. Generation treats GroupAll like the
// empty group: every active account.
const (
	GroupAll       = "all"
	GroupUngrouped = "ungrouped"
)

// Pagination bounds for task listing.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// TaskServiceConfig bounds generation and defines which calendar day is
// "today".
type TaskServiceConfig struct {
	DefaultCycles int
	MaxCycles     int
	Location      *time.Location
}

// TaskService generates tasks and drives their lifecycle.
type TaskService struct {
	tasks     store.TaskStore
	accounts  store.AccountDirectory
	catalog   *StrategyCatalog
	generator generation.Generator
	emitter   events.EventEmitter
	cfg       TaskServiceConfig
	logger    *slog.Logger

	now   func() time.Time
	seeds func() uint64

	// chainLocks serializes generation per (user, group) chain. userLocks
	// serializes writes that affect a user's daily load and task status.
	// A chain lock is always taken before a user lock.
	chainLocks *keyedMutex
	userLocks  *keyedMutex
}

// TaskServiceOption customizes a TaskService.
type TaskServiceOption func(*TaskService)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) TaskServiceOption {
	return func(s *TaskService) { s.now = now }
}

// WithSeedSource replaces the source of seeds for calls that supply none.
func WithSeedSource(seeds func() uint64) TaskServiceOption {
	return func(s *TaskService) { s.seeds = seeds }
}

// NewTaskService creates a TaskService.
// It returns an error if any of the required dependencies are nil.
func NewTaskService(
	tasks store.TaskStore,
	accounts store.AccountDirectory,
	catalog *StrategyCatalog,
	generator generation.Generator,
	emitter events.EventEmitter,
	cfg TaskServiceConfig,
	logger *slog.Logger,
	opts ...TaskServiceOption,
) (*TaskService, error) {
	if tasks == nil {
		return nil, domain.NewValidationError("tasks", "cannot be nil", domain.ErrValidation)
	}
	if accounts == nil {
		return nil, domain.NewValidationError("accounts", "cannot be nil", domain.ErrValidation)
	}
	if catalog == nil {
		return nil, domain.NewValidationError("catalog", "cannot be nil", domain.ErrValidation)
	}
	if generator == nil {
		return nil, domain.NewValidationError("generator", "cannot be nil", domain.ErrValidation)
	}
	if cfg.MaxCycles < 1 {
		return nil, domain.NewValidationError("max_cycles", "must be at least 1", domain.ErrValidation)
	}
	if cfg.DefaultCycles < 1 || cfg.DefaultCycles > cfg.MaxCycles {
		return nil, domain.NewValidationError("default_cycles", "must be between 1 and max_cycles", domain.ErrValidation)
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &TaskService{
		tasks:      tasks,
		accounts:   accounts,
		catalog:    catalog,
		generator:  generator,
		emitter:    emitter,
		cfg:        cfg,
		logger:     logger.With(slog.String("component", "task_service")),
		now:        time.Now,
		seeds:      rand.Uint64,
		chainLocks: newKeyedMutex(),
		userLocks:  newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *TaskService) today() time.Time {
	return domain.DateOf(s.now().In(s.cfg.Location))
}

// generationGroup maps the "all" selector to the all-accounts chain.
func generationGroup(group string) string {
	group = strings.TrimSpace(group)
	if strings.EqualFold(group, GroupAll) {
		return ""
	}
	return group
}

// listGroupFilter maps a listing selector to a store filter. nil means no
// group restriction.
func listGroupFilter(group string) *string {
	group = strings.TrimSpace(group)
	switch {
	case group == "" || strings.EqualFold(group, GroupAll):
		return nil
	case strings.EqualFold(group, GroupUngrouped):
		empty := ""
		return &empty
	default:
		return &group
	}
}

func chainKey(userID uuid.UUID, group string) string {
	return userID.String() + "|" + group
}

// GenerateRequest selects what to generate. Zero Cycles uses the configured
// default; a nil Seed draws a fresh one.
type GenerateRequest struct {
	StrategyID uuid.UUID
	Group      string
	Cycles     int
	Seed       *uint64
	StartDate  *time.Time
}

// GenerateResult summarizes a committed batch.
type GenerateResult struct {
	CreatedCount int    `json:"created_count"`
	FirstCycle   int    `json:"first_cycle"`
	LastCycle    int    `json:"last_cycle"`
	Seed         uint64 `json:"seed"`
}

// Generate plans cycles for the user's (group) chain and commits them as one
// batch. Concurrent calls for the same chain run one after another.
func (s *TaskService) Generate(ctx context.Context, userID uuid.UUID, req GenerateRequest) (*GenerateResult, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	cycles := req.Cycles
	if cycles == 0 {
		cycles = s.cfg.DefaultCycles
	}
	if cycles < 1 || cycles > s.cfg.MaxCycles {
		return nil, domain.NewValidationError("cycles",
			fmt.Sprintf("must be between 1 and %d", s.cfg.MaxCycles), domain.ErrValidation)
	}

	strategy, err := s.catalog.Get(ctx, userID, req.StrategyID)
	if err != nil {
		return nil, err
	}

	today := s.today()
	if req.StartDate != nil && domain.DateOf(*req.StartDate).Before(today) {
		return nil, domain.NewValidationError("start_date", "must not be in the past", domain.ErrValidation)
	}

	seed := s.seeds()
	if req.Seed != nil {
		seed = *req.Seed
	}
	group := generationGroup(req.Group)

	unlockChain := s.chainLocks.Lock(chainKey(userID, group))
	defer unlockChain()

	accounts, err := s.accounts.ListActive(ctx, userID, group)
	if err != nil {
		return nil, NewServiceError("generate_tasks", "failed to list accounts", err)
	}
	chain, err := s.tasks.ChainState(ctx, userID, group)
	if err != nil {
		return nil, NewServiceError("generate_tasks", "failed to read chain state", err)
	}
	anchor := generation.AnchorFor(chain, req.StartDate, today)

	genReq := generation.Request{
		UserID:     userID,
		StrategyID: strategy.ID,
		Group:      group,
		Policy:     strategy.Policy,
		Accounts:   accounts,
		Cycles:     cycles,
		Chain:      chain,
		Today:      today,
		StartDate:  req.StartDate,
		Now:        s.now(),
	}
	plan := func(occupied store.DayCounts) ([]*domain.Task, error) {
		genReq.Occupied = occupied
		return s.generator.Generate(genReq, generation.NewRandom(seed))
	}

	occupied, err := s.tasks.DailyCounts(ctx, userID, anchor)
	if err != nil {
		return nil, NewServiceError("generate_tasks", "failed to read daily load", err)
	}
	tasks, err := plan(occupied)
	if err != nil {
		log.Warn("task generation rejected",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()),
			slog.String("group", group))
		return nil, err
	}

	if err := s.commitPlan(ctx, userID, anchor, occupied, &tasks, plan); err != nil {
		return nil, err
	}

	result := &GenerateResult{
		CreatedCount: len(tasks),
		FirstCycle:   chain.MaxCycle + 1,
		LastCycle:    chain.MaxCycle + cycles,
		Seed:         seed,
	}
	log.Info("tasks generated",
		slog.String("user_id", userID.String()),
		slog.String("strategy_id", strategy.ID.String()),
		slog.String("group", group),
		slog.Int("created", result.CreatedCount),
		slog.Int("first_cycle", result.FirstCycle),
		slog.Int("last_cycle", result.LastCycle))

	s.emit(ctx, events.TaskGenerated, userID, taskIDs(tasks), events.GeneratedPayload{
		StrategyID: strategy.ID,
		Group:      group,
		FirstCycle: result.FirstCycle,
		LastCycle:  result.LastCycle,
		Count:      result.CreatedCount,
	})
	return result, nil
}

// commitPlan stores the planned batch under the user lock. Generation for
// another group of the same user may have committed since the plan was
// drawn; when that added tasks on a planned day the plan is redrawn from the
// fresh load with the same seed.
func (s *TaskService) commitPlan(
	ctx context.Context,
	userID uuid.UUID,
	anchor time.Time,
	occupied store.DayCounts,
	tasks *[]*domain.Task,
	plan func(store.DayCounts) ([]*domain.Task, error),
) error {
	unlockUser := s.userLocks.Lock(userID.String())
	defer unlockUser()

	fresh, err := s.tasks.DailyCounts(ctx, userID, anchor)
	if err != nil {
		return NewServiceError("generate_tasks", "failed to read daily load", err)
	}
	if loadGrew(*tasks, occupied, fresh) {
		logger.FromContextOrDefault(ctx, s.logger).Debug("daily load changed while planning, replanning",
			slog.String("user_id", userID.String()))
		replanned, err := plan(fresh)
		if err != nil {
			return err
		}
		*tasks = replanned
	}

	if err := s.tasks.CreateBatch(ctx, *tasks); err != nil {
		return NewServiceError("generate_tasks", "failed to save tasks", err)
	}
	return nil
}

// loadGrew reports whether any day used by tasks gained load between the two
// snapshots.
func loadGrew(tasks []*domain.Task, before, after store.DayCounts) bool {
	for _, t := range tasks {
		if after.Get(t.ExecDate) > before.Get(t.ExecDate) {
			return true
		}
	}
	return false
}

func taskIDs(tasks []*domain.Task) []uuid.UUID {
	ids := make([]uuid.UUID, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	return ids
}

// emit publishes an event. Failures are logged and never reach the caller.
func (s *TaskService) emit(ctx context.Context, eventType string, userID uuid.UUID, ids []uuid.UUID, payload interface{}) {
	if s.emitter == nil || len(ids) == 0 {
		return
	}
	log := logger.FromContextOrDefault(ctx, s.logger)

	event, err := events.NewTaskEvent(eventType, userID, ids, payload)
	if err != nil {
		log.Error("failed to build task event", slog.String("error", err.Error()), slog.String("type", eventType))
		return
	}
	if err := s.emitter.EmitEvent(ctx, event); err != nil {
		log.Error("failed to emit task event", slog.String("error", err.Error()), slog.String("type", eventType))
	}
}

// TaskListQuery filters and pages listTasks.
type TaskListQuery struct {
	Status   string
	Cycle    *int
	Group    string
	Query    string
	Page     int
	PageSize int
}

// TaskPage is one page of tasks.
type TaskPage struct {
	Items      []*domain.Task
	Total      int
	Page       int
	PageSize   int
	TotalPages int
}

// List returns the user's tasks ordered by exec date, exec time and id.
func (s *TaskService) List(ctx context.Context, userID uuid.UUID, q TaskListQuery) (*TaskPage, error) {
	filter := store.TaskFilter{
		Cycle: q.Cycle,
		Group: listGroupFilter(q.Group),
		Query: strings.TrimSpace(q.Query),
	}
	if q.Status != "" {
		status := domain.TaskStatus(strings.ToLower(q.Status))
		if !status.IsValid() {
			return nil, domain.NewValidationError("status", "must be pending, completed or skipped", domain.ErrValidation)
		}
		filter.Status = status
	}
	if q.Cycle != nil && *q.Cycle < 1 {
		return nil, domain.NewValidationError("cycle", "must be positive", domain.ErrValidation)
	}

	page := store.Page{Number: q.Page, Size: q.PageSize}
	if page.Number < 1 {
		page.Number = 1
	}
	if page.Size < 1 {
		page.Size = DefaultPageSize
	}
	if page.Size > MaxPageSize {
		page.Size = MaxPageSize
	}

	items, total, err := s.tasks.List(ctx, userID, filter, page)
	if err != nil {
		return nil, NewServiceError("list_tasks", "failed to list tasks", err)
	}
	return &TaskPage{
		Items:      items,
		Total:      total,
		Page:       page.Number,
		PageSize:   page.Size,
		TotalPages: (total + page.Size - 1) / page.Size,
	}, nil
}

// ListCycles returns the distinct cycle numbers of the user's tasks.
func (s *TaskService) ListCycles(ctx context.Context, userID uuid.UUID) ([]int, error) {
	cycles, err := s.tasks.ListCycles(ctx, userID)
	if err != nil {
		return nil, NewServiceError("list_cycles", "failed to list cycles", err)
	}
	return cycles, nil
}

// GenerationInfo describes where the next generation of a chain continues.
type GenerationInfo struct {
	Group           string     `json:"group"`
	LastCycle       int        `json:"last_cycle"`
	LastExecDate    *time.Time `json:"last_exec_date,omitempty"`
	NextCycle       int        `json:"next_cycle"`
	SuggestedAnchor time.Time  `json:"suggested_anchor"`
}

// LastGenerationInfo previews the continuation point of a chain.
func (s *TaskService) LastGenerationInfo(ctx context.Context, userID uuid.UUID, group string) (*GenerationInfo, error) {
	group = generationGroup(group)
	chain, err := s.tasks.ChainState(ctx, userID, group)
	if err != nil {
		return nil, NewServiceError("generation_info", "failed to read chain state", err)
	}

	info := &GenerationInfo{
		Group:           group,
		LastCycle:       chain.MaxCycle,
		NextCycle:       chain.MaxCycle + 1,
		SuggestedAnchor: generation.AnchorFor(chain, nil, s.today()),
	}
	if chain.Found {
		last := chain.LastExecDate
		info.LastExecDate = &last
	}
	return info, nil
}

// ListAccountGroups returns the labels of the user's active account groups.
func (s *TaskService) ListAccountGroups(ctx context.Context, userID uuid.UUID) ([]string, error) {
	groups, err := s.accounts.ListGroups(ctx, userID)
	if err != nil {
		return nil, NewServiceError("list_groups", "failed to list account groups", err)
	}
	return groups, nil
}

// Complete marks a pending task completed, replacing its notes when notes is
// non-empty.
func (s *TaskService) Complete(ctx context.Context, userID, id uuid.UUID, notes string) (*domain.Task, error) {
	task, err := s.transition(ctx, userID, id, "complete_task", func(t *domain.Task) error {
		return t.Complete(strings.TrimSpace(notes), s.now())
	})
	if err != nil {
		return nil, err
	}
	s.emit(ctx, events.TaskCompleted, userID, []uuid.UUID{task.ID}, nil)
	return task, nil
}

// Skip marks a pending task skipped.
func (s *TaskService) Skip(ctx context.Context, userID, id uuid.UUID) (*domain.Task, error) {
	task, err := s.transition(ctx, userID, id, "skip_task", func(t *domain.Task) error {
		return t.Skip()
	})
	if err != nil {
		return nil, err
	}
	s.emit(ctx, events.TaskSkipped, userID, []uuid.UUID{task.ID}, nil)
	return task, nil
}

func (s *TaskService) transition(
	ctx context.Context,
	userID, id uuid.UUID,
	operation string,
	apply func(*domain.Task) error,
) (*domain.Task, error) {
	unlock := s.userLocks.Lock(userID.String())
	defer unlock()
	return s.transitionLocked(ctx, userID, id, operation, apply)
}

// transitionLocked expects the caller to hold the user lock.
func (s *TaskService) transitionLocked(
	ctx context.Context,
	userID, id uuid.UUID,
	operation string,
	apply func(*domain.Task) error,
) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	task, err := s.tasks.GetByID(ctx, userID, id)
	if err != nil {
		return nil, storeError(operation, "failed to retrieve task", err, store.ErrTaskNotFound)
	}
	if err := apply(task); err != nil {
		log.Debug("task transition rejected",
			slog.String("task_id", id.String()),
			slog.String("error", err.Error()))
		return nil, err
	}
	if err := s.tasks.UpdateLifecycle(ctx, task); err != nil {
		return nil, storeError(operation, "failed to save task", err, store.ErrTaskNotFound)
	}
	return task, nil
}

// Delete removes a task in any status.
func (s *TaskService) Delete(ctx context.Context, userID, id uuid.UUID) error {
	unlock := s.userLocks.Lock(userID.String())
	err := s.tasks.Delete(ctx, userID, id)
	unlock()
	if err != nil {
		return storeError("delete_task", "failed to delete task", err, store.ErrTaskNotFound)
	}
	s.emit(ctx, events.TaskDeleted, userID, []uuid.UUID{id}, nil)
	return nil
}

// storeError passes not-found through as notFound and wraps anything else.
func storeError(operation, message string, err, notFound error) error {
	if store.IsNotFoundError(err) {
		return notFound
	}
	return NewServiceError(operation, message, err)
}

// BatchDeleteSelector picks the tasks a batch delete applies to. Exactly one
// of the fields must be set.
type BatchDeleteSelector struct {
	IDs       []uuid.UUID
	All       bool
	Completed bool
	Cycle     *int
}

func (sel BatchDeleteSelector) validate() error {
	n := 0
	for _, set := range []bool{len(sel.IDs) > 0, sel.All, sel.Completed, sel.Cycle != nil} {
		if set {
			n++
		}
	}
	if n != 1 {
		return domain.NewValidationError("selector", "exactly one of ids, all, completed or cycle is required", domain.ErrValidation)
	}
	if sel.Cycle != nil && *sel.Cycle < 1 {
		return domain.NewValidationError("cycle", "must be positive", domain.ErrValidation)
	}
	return nil
}

// BatchResult tallies a best-effort batch operation.
type BatchResult struct {
	Count     int
	FailedIDs []uuid.UUID
}

// BatchDelete deletes every selected task it can. Items that fail are
// reported in FailedIDs and do not stop the rest.
func (s *TaskService) BatchDelete(ctx context.Context, userID uuid.UUID, sel BatchDeleteSelector) (*BatchResult, error) {
	if err := sel.validate(); err != nil {
		return nil, err
	}
	log := logger.FromContextOrDefault(ctx, s.logger)

	unlock := s.userLocks.Lock(userID.String())
	ids := sel.IDs
	if len(ids) == 0 {
		filter := store.TaskFilter{Cycle: sel.Cycle}
		if sel.Completed {
			filter.Status = domain.TaskStatusCompleted
		}
		tasks, err := s.tasks.ListAll(ctx, userID, filter)
		if err != nil {
			unlock()
			return nil, NewServiceError("batch_delete", "failed to select tasks", err)
		}
		ids = taskIDs(tasks)
	}

	result := &BatchResult{FailedIDs: []uuid.UUID{}}
	deleted := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if err := s.tasks.Delete(ctx, userID, id); err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				log.Error("failed to delete task in batch",
					slog.String("task_id", id.String()),
					slog.String("error", err.Error()))
			}
			result.FailedIDs = append(result.FailedIDs, id)
			continue
		}
		deleted = append(deleted, id)
	}
	unlock()

	result.Count = len(deleted)
	s.emit(ctx, events.TaskDeleted, userID, deleted, nil)
	return result, nil
}

// BatchCompleteSelector picks the tasks a batch completion applies to:
// either explicit ids or the pending tasks scheduled today.
type BatchCompleteSelector struct {
	IDs   []uuid.UUID
	Today bool
	Notes string
}

// BatchComplete completes every selected pending task it can.
func (s *TaskService) BatchComplete(ctx context.Context, userID uuid.UUID, sel BatchCompleteSelector) (*BatchResult, error) {
	if (len(sel.IDs) > 0) == sel.Today {
		return nil, domain.NewValidationError("selector", "exactly one of ids or today is required", domain.ErrValidation)
	}

	unlock := s.userLocks.Lock(userID.String())
	ids := sel.IDs
	if sel.Today {
		today := s.today()
		tasks, err := s.tasks.ListAll(ctx, userID, store.TaskFilter{
			Status: domain.TaskStatusPending,
			From:   &today,
			To:     &today,
		})
		if err != nil {
			unlock()
			return nil, NewServiceError("batch_complete", "failed to select tasks", err)
		}
		ids = taskIDs(tasks)
	}

	result := &BatchResult{FailedIDs: []uuid.UUID{}}
	completed := make([]uuid.UUID, 0, len(ids))
	notes := strings.TrimSpace(sel.Notes)
	for _, id := range ids {
		_, err := s.transitionLocked(ctx, userID, id, "batch_complete", func(t *domain.Task) error {
			return t.Complete(notes, s.now())
		})
		if err != nil {
			result.FailedIDs = append(result.FailedIDs, id)
			continue
		}
		completed = append(completed, id)
	}
	unlock()

	result.Count = len(completed)
	s.emit(ctx, events.TaskCompleted, userID, completed, nil)
	return result, nil
}
