package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/keeper-api/internal/domain"
	"github.com/phrazzld/keeper-api/internal/store"
)

type chainKey struct {
	userID uuid.UUID
	group  string
}

// TaskStore keeps tasks in an arena slice. Deleted slots are set to nil and
// never reused, so indices stay stable for the lifetime of the store.
type TaskStore struct {
	mu    sync.RWMutex
	arena []*domain.Task
	byID  map[uuid.UUID]int

	// byUserDate: user -> YYYY-MM-DD -> arena indices
	byUserDate map[uuid.UUID]map[string][]int
	// byChain: (user, group) -> cycle -> arena indices
	byChain map[chainKey]map[int][]int
}

var _ store.TaskStore = (*TaskStore)(nil)

// NewTaskStore creates an empty TaskStore.
func NewTaskStore() *TaskStore {
	return &TaskStore{
		byID:       make(map[uuid.UUID]int),
		byUserDate: make(map[uuid.UUID]map[string][]int),
		byChain:    make(map[chainKey]map[int][]int),
	}
}

// CreateBatch validates every task before inserting any of them.
func (s *TaskStore) CreateBatch(ctx context.Context, tasks []*domain.Task) error {
	seen := make(map[uuid.UUID]struct{}, len(tasks))
	for _, t := range tasks {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
		}
		if _, dup := seen[t.ID]; dup {
			return fmt.Errorf("%w: task %s repeated in batch", store.ErrDuplicate, t.ID)
		}
		seen[t.ID] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range tasks {
		if _, exists := s.byID[t.ID]; exists {
			return fmt.Errorf("%w: task %s", store.ErrDuplicate, t.ID)
		}
	}
	for _, t := range tasks {
		s.insert(cloneTask(t))
	}
	return nil
}

func (s *TaskStore) insert(t *domain.Task) {
	idx := len(s.arena)
	s.arena = append(s.arena, t)
	s.byID[t.ID] = idx

	days, ok := s.byUserDate[t.UserID]
	if !ok {
		days = make(map[string][]int)
		s.byUserDate[t.UserID] = days
	}
	day := domain.FormatDate(t.ExecDate)
	days[day] = append(days[day], idx)

	key := chainKey{userID: t.UserID, group: t.GroupName}
	cycles, ok := s.byChain[key]
	if !ok {
		cycles = make(map[int][]int)
		s.byChain[key] = cycles
	}
	cycles[t.Cycle] = append(cycles[t.Cycle], idx)
}

// lookup returns the live task at id owned by userID. Callers hold the lock.
func (s *TaskStore) lookup(userID, id uuid.UUID) (int, *domain.Task, bool) {
	idx, ok := s.byID[id]
	if !ok {
		return 0, nil, false
	}
	t := s.arena[idx]
	if t == nil || t.UserID != userID {
		return 0, nil, false
	}
	return idx, t, true
}

func (s *TaskStore) GetByID(ctx context.Context, userID, id uuid.UUID) (*domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, t, ok := s.lookup(userID, id)
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	return cloneTask(t), nil
}

func (s *TaskStore) UpdateLifecycle(ctx context.Context, task *domain.Task) error {
	if err := task.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, t, ok := s.lookup(task.UserID, task.ID)
	if !ok {
		return store.ErrTaskNotFound
	}
	t.Status = task.Status
	t.Notes = task.Notes
	t.CompletedAt = nil
	if task.CompletedAt != nil {
		at := *task.CompletedAt
		t.CompletedAt = &at
	}
	return nil
}

func (s *TaskStore) Delete(ctx context.Context, userID, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, t, ok := s.lookup(userID, id)
	if !ok {
		return store.ErrTaskNotFound
	}

	day := domain.FormatDate(t.ExecDate)
	days := s.byUserDate[t.UserID]
	days[day] = without(days[day], idx)
	if len(days[day]) == 0 {
		delete(days, day)
	}

	key := chainKey{userID: t.UserID, group: t.GroupName}
	cycles := s.byChain[key]
	cycles[t.Cycle] = without(cycles[t.Cycle], idx)
	if len(cycles[t.Cycle]) == 0 {
		delete(cycles, t.Cycle)
	}
	if len(cycles) == 0 {
		delete(s.byChain, key)
	}

	delete(s.byID, id)
	s.arena[idx] = nil
	return nil
}

func without(indices []int, idx int) []int {
	out := indices[:0]
	for _, i := range indices {
		if i != idx {
			out = append(out, i)
		}
	}
	return out
}

func (s *TaskStore) List(
	ctx context.Context,
	userID uuid.UUID,
	filter store.TaskFilter,
	page store.Page,
) ([]*domain.Task, int, error) {
	all, err := s.ListAll(ctx, userID, filter)
	if err != nil {
		return nil, 0, err
	}
	total := len(all)
	start := page.Offset()
	if start >= total {
		return []*domain.Task{}, total, nil
	}
	end := total
	if page.Size > 0 && start+page.Size < total {
		end = start + page.Size
	}
	return all[start:end], total, nil
}

func (s *TaskStore) ListAll(ctx context.Context, userID uuid.UUID, filter store.TaskFilter) ([]*domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := strings.ToLower(strings.TrimSpace(filter.Query))
	var out []*domain.Task
	for day, indices := range s.byUserDate[userID] {
		if !dayInRange(day, filter.From, filter.To) {
			continue
		}
		for _, idx := range indices {
			t := s.arena[idx]
			if matches(t, filter, query) {
				out = append(out, cloneTask(t))
			}
		}
	}
	sortTasks(out)
	if out == nil {
		out = []*domain.Task{}
	}
	return out, nil
}

func dayInRange(day string, from, to *time.Time) bool {
	if from != nil && day < domain.FormatDate(*from) {
		return false
	}
	if to != nil && day > domain.FormatDate(*to) {
		return false
	}
	return true
}

func matches(t *domain.Task, f store.TaskFilter, query string) bool {
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.Cycle != nil && t.Cycle != *f.Cycle {
		return false
	}
	if f.Group != nil && t.GroupName != *f.Group {
		return false
	}
	if query != "" &&
		!strings.Contains(strings.ToLower(t.Memo), query) &&
		!strings.Contains(strings.ToLower(t.Notes), query) &&
		!strings.Contains(strings.ToLower(t.GroupName), query) {
		return false
	}
	return true
}

// sortTasks orders by exec_date, exec_time, id.
func sortTasks(tasks []*domain.Task) {
	sort.Slice(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if !a.ExecDate.Equal(b.ExecDate) {
			return a.ExecDate.Before(b.ExecDate)
		}
		if a.ExecTime != b.ExecTime {
			return a.ExecTime < b.ExecTime
		}
		return a.ID.String() < b.ID.String()
	})
}

func (s *TaskStore) ListCycles(ctx context.Context, userID uuid.UUID) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set := make(map[int]struct{})
	for key, cycles := range s.byChain {
		if key.userID != userID {
			continue
		}
		for c := range cycles {
			set[c] = struct{}{}
		}
	}
	out := make([]int, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Ints(out)
	return out, nil
}

func (s *TaskStore) ChainState(ctx context.Context, userID uuid.UUID, group string) (store.ChainState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var state store.ChainState
	for cycle, indices := range s.byChain[chainKey{userID: userID, group: group}] {
		if cycle > state.MaxCycle {
			state.MaxCycle = cycle
		}
		for _, idx := range indices {
			t := s.arena[idx]
			if !state.Found || t.ExecDate.After(state.LastExecDate) {
				state.LastExecDate = t.ExecDate
			}
			state.Found = true
		}
	}
	return state, nil
}

func (s *TaskStore) DailyCounts(ctx context.Context, userID uuid.UUID, from time.Time) (store.DayCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := store.DayCounts{}
	fromDay := domain.FormatDate(from)
	for day, indices := range s.byUserDate[userID] {
		if day >= fromDay {
			counts[day] = len(indices)
		}
	}
	return counts, nil
}

func (s *TaskStore) CountByStatus(
	ctx context.Context,
	userID uuid.UUID,
	from, to *time.Time,
) (store.StatusCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var counts store.StatusCounts
	for day, indices := range s.byUserDate[userID] {
		if !dayInRange(day, from, to) {
			continue
		}
		for _, idx := range indices {
			counts.Add(s.arena[idx].Status, 1)
		}
	}
	return counts, nil
}

func (s *TaskStore) NextPendingDate(ctx context.Context, userID uuid.UUID, after time.Time) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	afterDay := domain.FormatDate(after)
	best := ""
	for day, indices := range s.byUserDate[userID] {
		if day <= afterDay || (best != "" && day >= best) {
			continue
		}
		for _, idx := range indices {
			if s.arena[idx].IsPending() {
				best = day
				break
			}
		}
	}
	if best == "" {
		return time.Time{}, false, nil
	}
	d, err := domain.ParseDate(best)
	if err != nil {
		return time.Time{}, false, err
	}
	return d, true, nil
}
