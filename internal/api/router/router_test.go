package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/api/handlers"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/auth"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/config"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/pkg/logger"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/pkg/validator"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/repository/postgres"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/services"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/testutil"
)

const (
	testSecret = "router-test-secret"
	testAPIKey = "router-test-key"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	db := testutil.NewTestDB(t)
	t.Cleanup(func() { testutil.CleanupDB(db) })

	log := logger.Nop()
	val := validator.New()
	store := postgres.NewAccountRepository(postgres.Wrap(db, "sqlite"), nil, time.UTC, log)
	subs := services.NewSubscriptionService(postgres.NewSubscriptionRepository(postgres.Wrap(db, "sqlite")), store, log)
	ledger := services.NewLedgerService(store, subs, time.UTC, 0, log)
	prompts := services.NewPromptService(store, subs, log)

	cfg := &config.Config{
		Server: config.ServerConfig{FrontendURL: "http://localhost:5173"},
		Auth:   config.AuthConfig{JWTSecret: testSecret, InternalAPIKey: testAPIKey},
	}

	return New(cfg, log, &Handlers{
		Health:       handlers.NewHealthHandler(db, log),
		Account:      handlers.NewAccountHandler(ledger, log, val),
		Stream:       handlers.NewStreamHandler(ledger, log, 0),
		Prompt:       handlers.NewPromptHandler(prompts, log, val),
		Subscription: handlers.NewSubscriptionHandler(subs, log, val),
	})
}

func do(t *testing.T, h http.Handler, method, path string, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func bearer(t *testing.T, userID string) map[string]string {
	t.Helper()
	token, err := auth.MintToken(userID, testSecret, time.Hour)
	require.NoError(t, err)
	return map[string]string{"Authorization": "Bearer " + token}
}

func TestRouter_PublicRoutes(t *testing.T) {
	h := newTestRouter(t)

	for _, path := range []string{"/health", "/healthz", "/readyz", "/metrics"} {
		t.Run(path, func(t *testing.T) {
			rr := do(t, h, http.MethodGet, path, "", nil)
			assert.Equal(t, http.StatusOK, rr.Code)
			assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
		})
	}
}

func TestRouter_Swagger(t *testing.T) {
	h := newTestRouter(t)

	rr := do(t, h, http.MethodGet, "/swagger/index.html", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "swagger-ui")
	assert.Contains(t, rr.Header().Get("Content-Security-Policy"), "script-src 'self'")

	rr = do(t, h, http.MethodGet, "/swagger/doc.json", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"/me/account"`)
	assert.Contains(t, rr.Body.String(), `"basePath": "/api/v1"`)
}

func TestRouter_Authentication(t *testing.T) {
	h := newTestRouter(t)

	rr := do(t, h, http.MethodGet, "/api/v1/me/account", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = do(t, h, http.MethodGet, "/api/v1/me/account", "", map[string]string{"Authorization": "Bearer nonsense"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	other, err := auth.MintToken("u1", "another-secret", time.Hour)
	require.NoError(t, err)
	rr = do(t, h, http.MethodGet, "/api/v1/me/account", "", map[string]string{"Authorization": "Bearer " + other})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = do(t, h, http.MethodPost, "/api/v1/session", "", bearer(t, "u1"))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = do(t, h, http.MethodGet, "/api/v1/me/account", "", bearer(t, "u1"))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"coins":100`)
}

func TestRouter_InternalRoutes(t *testing.T) {
	h := newTestRouter(t)

	rr := do(t, h, http.MethodPost, "/api/v1/session", "", bearer(t, "u1"))
	require.Equal(t, http.StatusOK, rr.Code)

	body := `{"userId":"u1","plan":"plus","orderId":"ord-7"}`
	rr = do(t, h, http.MethodPost, "/api/v1/internal/subscriptions/activate", body, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	// a user token is not an API key
	rr = do(t, h, http.MethodPost, "/api/v1/internal/subscriptions/activate", body, bearer(t, "u1"))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	key := map[string]string{"X-API-Key": testAPIKey}
	rr = do(t, h, http.MethodPost, "/api/v1/internal/subscriptions/activate", body, key)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = do(t, h, http.MethodPost, "/api/v1/internal/accounts/u1/adjust", `{"field":"coins","delta":5,"reason":"goodwill"}`, key)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"coins":105`)

	rr = do(t, h, http.MethodGet, "/api/v1/me/entitlement", "", bearer(t, "u1"))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"plan":"plus"`)
	assert.Contains(t, rr.Body.String(), `"dailyAllowance":5000`)
}
