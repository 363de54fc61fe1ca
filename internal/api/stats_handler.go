package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/keeper-api/internal/api/shared"
	"github.com/phrazzld/keeper-api/internal/domain"
	"github.com/phrazzld/keeper-api/internal/platform/logger"
	"github.com/phrazzld/keeper-api/internal/service"
)

// StatsProvider is the read-only aggregation surface.
// *service.AggregationService satisfies it.
type StatsProvider interface {
	Dashboard(ctx context.Context, userID uuid.UUID, period string) (*service.DashboardStats, error)
	Calendar(ctx context.Context, userID uuid.UUID, start, end time.Time) ([]service.CalendarDay, error)
	NextDay(ctx context.Context, userID uuid.UUID) (*service.NextDay, error)
	Today(ctx context.Context, userID uuid.UUID) (*service.TodayTasks, error)
	Recent(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Task, error)
}

var _ StatsProvider = (*service.AggregationService)(nil)

// StatsHandler serves dashboard, calendar and activity views
type StatsHandler struct {
	stats  StatsProvider
	logger *slog.Logger
}

// NewStatsHandler creates a new StatsHandler
func NewStatsHandler(stats StatsProvider, logger *slog.Logger) *StatsHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for StatsHandler")
	}

	return &StatsHandler{
		stats:  stats,
		logger: logger.With(slog.String("component", "stats_handler")),
	}
}

// Dashboard handles GET /stats/dashboard?period=week|month|year|all
func (h *StatsHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := requireUserID(w, r, log)
	if !ok {
		return
	}

	stats, err := h.stats.Dashboard(r.Context(), userID, r.URL.Query().Get("period"))
	if err != nil {
		HandleAPIError(w, r, err, "Failed to load dashboard")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, dashboardToResponse(stats))
}

// Calendar handles GET /stats/calendar?start=YYYY-MM-DD&end=YYYY-MM-DD
func (h *StatsHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := requireUserID(w, r, log)
	if !ok {
		return
	}

	start, err := queryDate(r, "start")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	end, err := queryDate(r, "end")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	days, err := h.stats.Calendar(r.Context(), userID, start, end)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to load calendar")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, calendarToResponse(days))
}

// NextDay handles GET /stats/next-day requests. It answers 204 when no
// future day holds pending work.
func (h *StatsHandler) NextDay(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := requireUserID(w, r, log)
	if !ok {
		return
	}

	next, err := h.stats.NextDay(r.Context(), userID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to load next day")
		return
	}
	if next == nil {
		log.Debug("no pending day ahead", slog.String("user_id", userID.String()))
		shared.RespondNoContent(w)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, NextDayResponse{
		Date:      domain.FormatDate(next.Date),
		DaysUntil: next.DaysUntil,
		Tasks:     tasksToResponse(next.Tasks),
	})
}

// Today handles GET /stats/today requests
func (h *StatsHandler) Today(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := requireUserID(w, r, log)
	if !ok {
		return
	}

	today, err := h.stats.Today(r.Context(), userID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to load today's tasks")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, TodayResponse{
		Date:           domain.FormatDate(today.Date),
		Tasks:          tasksToResponse(today.Tasks),
		PendingCount:   today.PendingCount,
		CompletedCount: today.CompletedCount,
	})
}

// Recent handles GET /stats/recent?limit=N
func (h *StatsHandler) Recent(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := requireUserID(w, r, log)
	if !ok {
		return
	}

	limit, err := queryIntDefault(r, "limit", service.DefaultRecentLimit)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	tasks, err := h.stats.Recent(r.Context(), userID, limit)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to load recent activity")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, tasksToResponse(tasks))
}
