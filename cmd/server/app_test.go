package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/keeper-api/internal/config"
	"github.com/phrazzld/keeper-api/internal/domain"
	"github.com/phrazzld/keeper-api/internal/service/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-that-is-at-least-32-characters"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(driver, url string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Port: 8080, LogLevel: "error", ShutdownTimeoutSeconds: 1},
		Database: config.DatabaseConfig{
			Driver:       driver,
			URL:          url,
			MaxOpenConns: 1,
		},
		Auth: config.AuthConfig{JWTSecret: testSecret, TokenLifetimeMinutes: 5},
		Generation: config.GenerationConfig{
			DefaultCycles:     1,
			MaxCycles:         12,
			SearchHorizonDays: 365,
			Timezone:          "UTC",
		},
		Events: config.EventsConfig{Workers: 1, QueueSize: 16},
	}
}

func newTestApp(t *testing.T, driver, url string) *application {
	t.Helper()
	app, err := newApplication(context.Background(), testConfig(driver, url), discardLogger())
	require.NoError(t, err)
	t.Cleanup(app.cleanup)
	return app
}

func authedRequest(t *testing.T, app *application, userID uuid.UUID, method, path string, body interface{}) *http.Request {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	token, err := app.jwtService.GenerateToken(context.Background(), userID)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestRouter(t *testing.T) {
	for _, driver := range []string{config.DriverMemory, config.DriverSQLite} {
		t.Run(driver, func(t *testing.T) {
			url := ""
			if driver == config.DriverSQLite {
				url = filepath.Join(t.TempDir(), "keeper.db")
			}
			app := newTestApp(t, driver, url)
			router := app.setupRouter()
			userID := uuid.New()

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "OK", w.Body.String())

			w = httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/tasks", nil))
			assert.Equal(t, http.StatusUnauthorized, w.Code)

			w = httptest.NewRecorder()
			router.ServeHTTP(w, authedRequest(t, app, userID, http.MethodGet, "/api/strategies", nil))
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			assert.NotEmpty(t, w.Header().Get("X-Trace-ID"))
			var strategies []map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &strategies))
			assert.Len(t, strategies, 2)

			for _, name := range []string{"Checking", "Savings"} {
				a, err := domain.NewAccount(userID, name, "")
				require.NoError(t, err)
				require.NoError(t, app.accountStore.Create(context.Background(), a))
			}

			w = httptest.NewRecorder()
			router.ServeHTTP(w, authedRequest(t, app, userID, http.MethodPost, "/api/tasks/generate", map[string]interface{}{
				"strategy_id": domain.SystemDefaultStrategyID.String(),
				"cycles":      3,
				"seed":        1,
			}))
			require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

			w = httptest.NewRecorder()
			router.ServeHTTP(w, authedRequest(t, app, userID, http.MethodGet, "/api/tasks?page_size=100", nil))
			require.Equal(t, http.StatusOK, w.Code)
			var page struct {
				Total int `json:"total"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
			assert.Equal(t, 6, page.Total)

			w = httptest.NewRecorder()
			router.ServeHTTP(w, authedRequest(t, app, uuid.New(), http.MethodGet, "/api/tasks", nil))
			require.Equal(t, http.StatusOK, w.Code)
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
			assert.Equal(t, 0, page.Total, "tasks are scoped to the token's user")
		})
	}
}

func TestNewApplicationErrors(t *testing.T) {
	t.Run("bad secret", func(t *testing.T) {
		cfg := testConfig(config.DriverMemory, "")
		cfg.Auth.JWTSecret = "short"
		_, err := newApplication(context.Background(), cfg, discardLogger())
		assert.Error(t, err)
	})

	t.Run("bad timezone", func(t *testing.T) {
		cfg := testConfig(config.DriverMemory, "")
		cfg.Generation.Timezone = "Mars/Olympus"
		_, err := newApplication(context.Background(), cfg, discardLogger())
		assert.Error(t, err)
	})

	t.Run("unreachable sqlite path", func(t *testing.T) {
		cfg := testConfig(config.DriverSQLite, filepath.Join(t.TempDir(), "missing", "dir", "keeper.db"))
		_, err := newApplication(context.Background(), cfg, discardLogger())
		assert.Error(t, err)
	})
}

func TestMemorySeedAccounts(t *testing.T) {
	userID := uuid.New()
	cfg := testConfig(config.DriverMemory, "")
	cfg.Database.SeedAccounts = []config.AccountSeed{
		{UserID: userID.String(), Name: "Checking"},
		{UserID: userID.String(), Name: "Savings", Group: "family"},
		{UserID: uuid.NewString(), Name: "Someone else"},
	}
	app, err := newApplication(context.Background(), cfg, discardLogger())
	require.NoError(t, err)
	t.Cleanup(app.cleanup)
	router := app.setupRouter()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, authedRequest(t, app, userID, http.MethodPost, "/api/tasks/generate", map[string]interface{}{
		"strategy_id": domain.SystemDefaultStrategyID.String(),
		"cycles":      2,
		"seed":        5,
	}))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	counts, err := app.accountStore.Counts(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 2, counts.Active)

	// a user without seeded accounts still cannot generate
	w = httptest.NewRecorder()
	router.ServeHTTP(w, authedRequest(t, app, uuid.New(), http.MethodPost, "/api/tasks/generate", map[string]interface{}{
		"strategy_id": domain.SystemDefaultStrategyID.String(),
		"cycles":      1,
	}))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
}

func TestMemorySeedAccountsErrors(t *testing.T) {
	tests := []struct {
		name string
		seed config.AccountSeed
	}{
		{"bad user id", config.AccountSeed{UserID: "not-a-uuid", Name: "Checking"}},
		{"missing name", config.AccountSeed{UserID: uuid.NewString()}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig(config.DriverMemory, "")
			cfg.Database.SeedAccounts = []config.AccountSeed{tc.seed}
			_, err := newApplication(context.Background(), cfg, discardLogger())
			require.Error(t, err)
			assert.Contains(t, err.Error(), "seed account 0")
		})
	}
}

func setCommandEnv(t *testing.T, driver, url string) {
	t.Helper()
	t.Setenv("KEEPER_DATABASE_DRIVER", driver)
	t.Setenv("KEEPER_DATABASE_URL", url)
	t.Setenv("KEEPER_AUTH_JWT_SECRET", testSecret)
	t.Setenv("KEEPER_SERVER_LOG_LEVEL", "error")
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand("test")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestMigrateCommand(t *testing.T) {
	setCommandEnv(t, config.DriverSQLite, filepath.Join(t.TempDir(), "keeper.db"))

	out, err := runCommand(t, "migrate", "up")
	require.NoError(t, err)
	assert.Contains(t, out, "schema version:")
	assert.NotContains(t, out, "schema version: 0")

	out, err = runCommand(t, "migrate", "reset")
	require.NoError(t, err)
	assert.Contains(t, out, "schema version: 0")

	_, err = runCommand(t, "migrate", "sideways")
	assert.Error(t, err)

	_, err = runCommand(t, "migrate")
	assert.Error(t, err)
}

func TestMigrateCommandRejectsMemoryDriver(t *testing.T) {
	setCommandEnv(t, config.DriverMemory, "")

	_, err := runCommand(t, "migrate", "up")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SQL database")
}

func TestTokenCommand(t *testing.T) {
	setCommandEnv(t, config.DriverMemory, "")
	userID := uuid.New()

	out, err := runCommand(t, "token", "--user", userID.String())
	require.NoError(t, err)

	svc, err := auth.NewJWTService(config.AuthConfig{JWTSecret: testSecret, TokenLifetimeMinutes: 5})
	require.NoError(t, err)
	claims, err := svc.ValidateToken(context.Background(), strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)

	_, err = runCommand(t, "token", "--user", "not-a-uuid")
	assert.Error(t, err)

	_, err = runCommand(t, "token")
	assert.Error(t, err)
}

func TestRootCommandRequiresConfig(t *testing.T) {
	setCommandEnv(t, config.DriverPostgres, "")

	_, err := runCommand(t, "token", "--user", uuid.NewString())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load configuration")
}
