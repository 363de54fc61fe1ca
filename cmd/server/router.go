package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/keeper-api/internal/api"
	apiMiddleware "github.com/phrazzld/keeper-api/internal/api/middleware"
)

// setupRouter creates the application router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.Trace(app.logger))

	authMiddleware := apiMiddleware.NewAuthMiddleware(app.jwtService)
	taskHandler := api.NewTaskHandler(app.taskService, app.logger)
	strategyHandler := api.NewStrategyHandler(app.catalog, app.logger)
	statsHandler := api.NewStatsHandler(app.statsService, app.logger)

	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware.Authenticate)

		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", taskHandler.List)
			r.Post("/generate", taskHandler.Generate)
			r.Get("/cycles", taskHandler.ListCycles)
			r.Get("/generation-info", taskHandler.GenerationInfo)
			r.Post("/batch-delete", taskHandler.BatchDelete)
			r.Post("/batch-complete", taskHandler.BatchComplete)
			r.Post("/{id}/complete", taskHandler.Complete)
			r.Post("/{id}/skip", taskHandler.Skip)
			r.Delete("/{id}", taskHandler.Delete)
		})

		r.Route("/strategies", func(r chi.Router) {
			r.Get("/", strategyHandler.List)
			r.Post("/", strategyHandler.Create)
			r.Get("/{id}", strategyHandler.Get)
			r.Put("/{id}", strategyHandler.Update)
			r.Delete("/{id}", strategyHandler.Delete)
		})

		r.Get("/accounts/groups", taskHandler.ListAccountGroups)

		r.Route("/stats", func(r chi.Router) {
			r.Get("/dashboard", statsHandler.Dashboard)
			r.Get("/calendar", statsHandler.Calendar)
			r.Get("/next-day", statsHandler.NextDay)
			r.Get("/today", statsHandler.Today)
			r.Get("/recent", statsHandler.Recent)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("Failed to write health check response", "error", err)
		}
	})

	return r
}
