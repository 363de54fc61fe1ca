package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/phrazzld/keeper-api/internal/api/shared"
	"github.com/phrazzld/keeper-api/internal/domain"
	"github.com/phrazzld/keeper-api/internal/platform/logger"
	"github.com/phrazzld/keeper-api/internal/service"
)

// TaskManager is the task surface the handler needs. *service.TaskService
// satisfies it.
type TaskManager interface {
	Generate(ctx context.Context, userID uuid.UUID, req service.GenerateRequest) (*service.GenerateResult, error)
	List(ctx context.Context, userID uuid.UUID, q service.TaskListQuery) (*service.TaskPage, error)
	ListCycles(ctx context.Context, userID uuid.UUID) ([]int, error)
	LastGenerationInfo(ctx context.Context, userID uuid.UUID, group string) (*service.GenerationInfo, error)
	ListAccountGroups(ctx context.Context, userID uuid.UUID) ([]string, error)
	Complete(ctx context.Context, userID, id uuid.UUID, notes string) (*domain.Task, error)
	Skip(ctx context.Context, userID, id uuid.UUID) (*domain.Task, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
	BatchDelete(ctx context.Context, userID uuid.UUID, sel service.BatchDeleteSelector) (*service.BatchResult, error)
	BatchComplete(ctx context.Context, userID uuid.UUID, sel service.BatchCompleteSelector) (*service.BatchResult, error)
}

var _ TaskManager = (*service.TaskService)(nil)

// TaskHandler handles task-related HTTP requests
type TaskHandler struct {
	tasks  TaskManager
	logger *slog.Logger
}

// NewTaskHandler creates a new TaskHandler
func NewTaskHandler(tasks TaskManager, logger *slog.Logger) *TaskHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for TaskHandler")
	}

	return &TaskHandler{
		tasks:  tasks,
		logger: logger.With(slog.String("component", "task_handler")),
	}
}

// Generate handles POST /tasks/generate requests
func (h *TaskHandler) Generate(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := requireUserID(w, r, log)
	if !ok {
		return
	}

	var req GenerateTasksRequest
	if !decodeAndValidate(w, r, &req, false, log) {
		return
	}

	genReq := service.GenerateRequest{
		StrategyID: uuid.MustParse(req.StrategyID),
		Group:      strings.TrimSpace(req.Group),
		Cycles:     req.Cycles,
		Seed:       req.Seed,
	}
	if req.StartDate != nil {
		start, err := domain.ParseDate(*req.StartDate)
		if err != nil {
			HandleAPIError(w, r, domain.NewValidationError("start_date", "must use the YYYY-MM-DD format", domain.ErrValidation), "")
			return
		}
		genReq.StartDate = &start
	}

	result, err := h.tasks.Generate(r.Context(), userID, genReq)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to generate tasks")
		return
	}

	log.Debug("tasks generated",
		slog.String("user_id", userID.String()),
		slog.Int("created_count", result.CreatedCount))
	shared.RespondWithJSON(w, r, http.StatusCreated, result)
}

// List handles GET /tasks requests
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := requireUserID(w, r, log)
	if !ok {
		return
	}

	query := service.TaskListQuery{
		Status: r.URL.Query().Get("status"),
		Group:  strings.TrimSpace(r.URL.Query().Get("group")),
		Query:  r.URL.Query().Get("q"),
	}
	var err error
	if query.Cycle, err = queryInt(r, "cycle"); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	if query.Page, err = queryIntDefault(r, "page", 1); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	if query.PageSize, err = queryIntDefault(r, "page_size", service.DefaultPageSize); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	page, err := h.tasks.List(r.Context(), userID, query)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list tasks")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, TaskPageResponse{
		Items:      tasksToResponse(page.Items),
		Total:      page.Total,
		Page:       page.Page,
		PageSize:   page.PageSize,
		TotalPages: page.TotalPages,
	})
}

// ListCycles handles GET /tasks/cycles requests
func (h *TaskHandler) ListCycles(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := requireUserID(w, r, log)
	if !ok {
		return
	}

	cycles, err := h.tasks.ListCycles(r.Context(), userID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list cycles")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, CyclesResponse{Cycles: cycles})
}

// GenerationInfo handles GET /tasks/generation-info requests
func (h *TaskHandler) GenerationInfo(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := requireUserID(w, r, log)
	if !ok {
		return
	}

	info, err := h.tasks.LastGenerationInfo(r.Context(), userID, strings.TrimSpace(r.URL.Query().Get("group")))
	if err != nil {
		HandleAPIError(w, r, err, "Failed to load generation info")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, generationInfoToResponse(info))
}

// ListAccountGroups handles GET /accounts/groups requests
func (h *TaskHandler) ListAccountGroups(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := requireUserID(w, r, log)
	if !ok {
		return
	}

	groups, err := h.tasks.ListAccountGroups(r.Context(), userID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list account groups")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, GroupsResponse{Groups: groups})
}

// Complete handles POST /tasks/{id}/complete requests. The body is optional.
func (h *TaskHandler) Complete(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, taskID, ok := handleUserIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	var req CompleteTaskRequest
	if !decodeAndValidate(w, r, &req, true, log) {
		return
	}

	task, err := h.tasks.Complete(r.Context(), userID, taskID, req.Notes)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to complete task")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(task))
}

// Skip handles POST /tasks/{id}/skip requests
func (h *TaskHandler) Skip(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, taskID, ok := handleUserIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	task, err := h.tasks.Skip(r.Context(), userID, taskID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to skip task")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(task))
}

// Delete handles DELETE /tasks/{id} requests
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, taskID, ok := handleUserIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	if err := h.tasks.Delete(r.Context(), userID, taskID); err != nil {
		HandleAPIError(w, r, err, "Failed to delete task")
		return
	}

	log.Debug("task deleted", slog.String("task_id", taskID.String()))
	shared.RespondNoContent(w)
}

// BatchDelete handles POST /tasks/batch-delete requests
func (h *TaskHandler) BatchDelete(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := requireUserID(w, r, log)
	if !ok {
		return
	}

	var req BatchDeleteRequest
	if !decodeAndValidate(w, r, &req, false, log) {
		return
	}
	ids, err := parseUUIDs("ids", req.IDs)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	result, err := h.tasks.BatchDelete(r.Context(), userID, service.BatchDeleteSelector{
		IDs:       ids,
		All:       req.All,
		Completed: req.Completed,
		Cycle:     req.Cycle,
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to delete tasks")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, BatchDeleteResponse{
		DeletedCount: result.Count,
		FailedIDs:    result.FailedIDs,
	})
}

// BatchComplete handles POST /tasks/batch-complete requests
func (h *TaskHandler) BatchComplete(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := requireUserID(w, r, log)
	if !ok {
		return
	}

	var req BatchCompleteRequest
	if !decodeAndValidate(w, r, &req, false, log) {
		return
	}
	ids, err := parseUUIDs("ids", req.IDs)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	result, err := h.tasks.BatchComplete(r.Context(), userID, service.BatchCompleteSelector{
		IDs:   ids,
		Today: req.Today,
		Notes: req.Notes,
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to complete tasks")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, BatchCompleteResponse{
		CompletedCount: result.Count,
		FailedIDs:      result.FailedIDs,
	})
}
