package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/phrazzld/keeper-api/internal/api/shared"
	"github.com/phrazzld/keeper-api/internal/domain"
	"github.com/phrazzld/keeper-api/internal/platform/logger"
	"github.com/phrazzld/keeper-api/internal/service"
)

// StrategyManager is the strategy surface the handler needs.
// *service.StrategyCatalog satisfies it.
type StrategyManager interface {
	List(ctx context.Context, userID uuid.UUID) ([]*domain.Strategy, error)
	Get(ctx context.Context, userID, id uuid.UUID) (*domain.Strategy, error)
	Create(ctx context.Context, userID uuid.UUID, in service.StrategyInput) (*domain.Strategy, error)
	Update(ctx context.Context, userID, id uuid.UUID, in service.StrategyInput) (*domain.Strategy, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

var _ StrategyManager = (*service.StrategyCatalog)(nil)

// StrategyHandler handles strategy CRUD requests
type StrategyHandler struct {
	strategies StrategyManager
	logger     *slog.Logger
}

// NewStrategyHandler creates a new StrategyHandler
func NewStrategyHandler(strategies StrategyManager, logger *slog.Logger) *StrategyHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for StrategyHandler")
	}

	return &StrategyHandler{
		strategies: strategies,
		logger:     logger.With(slog.String("component", "strategy_handler")),
	}
}

// List handles GET /strategies requests
func (h *StrategyHandler) List(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := requireUserID(w, r, log)
	if !ok {
		return
	}

	strategies, err := h.strategies.List(r.Context(), userID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list strategies")
		return
	}

	resp := make([]StrategyResponse, 0, len(strategies))
	for _, s := range strategies {
		resp = append(resp, strategyToResponse(s))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// Get handles GET /strategies/{id} requests
func (h *StrategyHandler) Get(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, id, ok := handleUserIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	strategy, err := h.strategies.Get(r.Context(), userID, id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get strategy")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, strategyToResponse(strategy))
}

// Create handles POST /strategies requests
func (h *StrategyHandler) Create(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := requireUserID(w, r, log)
	if !ok {
		return
	}

	var req StrategyRequest
	if !decodeAndValidate(w, r, &req, false, log) {
		return
	}
	in, err := req.toInput()
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	strategy, err := h.strategies.Create(r.Context(), userID, in)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create strategy")
		return
	}

	log.Debug("strategy created", slog.String("strategy_id", strategy.ID.String()))
	shared.RespondWithJSON(w, r, http.StatusCreated, strategyToResponse(strategy))
}

// Update handles PUT /strategies/{id} requests
func (h *StrategyHandler) Update(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, id, ok := handleUserIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	var req StrategyRequest
	if !decodeAndValidate(w, r, &req, false, log) {
		return
	}
	in, err := req.toInput()
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	strategy, err := h.strategies.Update(r.Context(), userID, id, in)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update strategy")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, strategyToResponse(strategy))
}

// Delete handles DELETE /strategies/{id} requests
func (h *StrategyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, id, ok := handleUserIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	if err := h.strategies.Delete(r.Context(), userID, id); err != nil {
		HandleAPIError(w, r, err, "Failed to delete strategy")
		return
	}
	shared.RespondNoContent(w)
}
