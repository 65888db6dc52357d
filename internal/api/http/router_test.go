package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	httptransport "github.com/spec-kit/access-control/internal/api/http"
	"github.com/spec-kit/access-control/internal/api/http/handlers"
	"github.com/spec-kit/access-control/internal/auth"
	"github.com/spec-kit/access-control/internal/config"
	"github.com/spec-kit/access-control/internal/domain"
	"github.com/spec-kit/access-control/internal/events"
	"github.com/spec-kit/access-control/internal/observability"
	"github.com/spec-kit/access-control/internal/repository"
	"github.com/spec-kit/access-control/internal/service"
	"github.com/spec-kit/access-control/internal/session"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("down") }

type testServer struct {
	app    *fiber.App
	clock  *testClock
	tokens *auth.TokenIssuer
	users  *service.UserService
}

func newTestServer(t *testing.T, deps map[string]handlers.Pinger) *testServer {
	t.Helper()

	clock := &testClock{now: time.Date(2026, 6, 1, 8, 30, 0, 0, time.UTC)}
	logger := zaptest.NewLogger(t)
	metrics := observability.NewMetrics()

	tokens, err := auth.NewTokenIssuer("access-secret", "refresh-secret", auth.WithClock(clock.Now))
	require.NoError(t, err)

	repo := repository.NewMemoryUserRepository()
	cache := session.NewMemoryCache(clock.Now)
	dispatcher := events.NewInMemoryDispatcher()

	authService := service.NewAuthService(service.AuthDependencies{
		Users:      repo,
		Sessions:   cache,
		Tokens:     tokens,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})
	userService := service.NewUserService(repo, dispatcher, 4, logger)

	app := httptransport.NewApp(config.AppConfig{Name: "test"})
	httptransport.RegisterMiddlewares(app, logger, metrics, 5*time.Second)
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler("test", "v0", deps),
		Auth:           handlers.NewAuthHandler(authService, logger, time.UTC),
		Users:          handlers.NewUsersHandler(userService),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, repo),
		Metrics:        metrics,
	})

	ctx := context.Background()
	_, err = userService.EnsureAdmin(ctx, "admin", "admin@example.com", "admin-password")
	require.NoError(t, err)
	_, err = userService.Create(ctx, service.CreateUserInput{
		Username: "ana",
		Email:    "ana@example.com",
		Password: "ana-password",
		Role:     domain.RoleStandard,
	})
	require.NoError(t, err)

	return &testServer{app: app, clock: clock, tokens: tokens, users: userService}
}

func (s *testServer) do(t *testing.T, method, path string, body any, token string) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	out := map[string]any{}
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

type loginSession struct {
	access  string
	refresh string
	userID  string
}

func (s *testServer) login(t *testing.T, identifier, password string) loginSession {
	t.Helper()
	status, body := s.do(t, nethttp.MethodPost, "/auth/login",
		map[string]string{"identifier": identifier, "password": password}, "")
	require.Equal(t, nethttp.StatusOK, status, body)

	user := body["user"].(map[string]any)
	return loginSession{
		access:  body["accessToken"].(string),
		refresh: body["refreshToken"].(string),
		userID:  user["id"].(string),
	}
}

func errorMessage(body map[string]any) string {
	envelope, _ := body["error"].(map[string]any)
	msg, _ := envelope["message"].(string)
	return msg
}

func TestLogin_IssuesFifteenMinuteAccessToken(t *testing.T) {
	s := newTestServer(t, nil)

	status, body := s.do(t, nethttp.MethodPost, "/auth/login",
		map[string]string{"identifier": "ana", "password": "ana-password"}, "")
	require.Equal(t, nethttp.StatusOK, status)

	user := body["user"].(map[string]any)
	assert.Equal(t, "ana", user["username"])
	assert.Equal(t, "ana@example.com", user["email"])
	assert.Equal(t, "standard", user["role"])
	assert.NotContains(t, user, "passwordHash")
	assert.NotContains(t, user, "PasswordHash")

	access, err := s.tokens.VerifyAccessToken(body["accessToken"].(string))
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, access.ExpiresAt.Sub(access.IssuedAt.Time))

	refresh, err := s.tokens.VerifyRefreshToken(body["refreshToken"].(string))
	require.NoError(t, err)
	assert.True(t, refresh.ExpiresAt.After(access.ExpiresAt.Time))
}

func TestLogin_ByEmail(t *testing.T) {
	s := newTestServer(t, nil)
	sess := s.login(t, "ana@example.com", "ana-password")
	assert.NotEmpty(t, sess.access)
}

func TestLogin_Failures(t *testing.T) {
	s := newTestServer(t, nil)

	status, body := s.do(t, nethttp.MethodPost, "/auth/login",
		map[string]string{"identifier": "ana", "password": "wrong-password"}, "")
	assert.Equal(t, nethttp.StatusUnauthorized, status)
	assert.Contains(t, strings.ToLower(errorMessage(body)), "contraseña")
	assert.NotContains(t, body, "accessToken")

	status, body = s.do(t, nethttp.MethodPost, "/auth/login",
		map[string]string{"identifier": "ghost@example.com", "password": "whatever"}, "")
	assert.Equal(t, nethttp.StatusUnauthorized, status)
	assert.Contains(t, strings.ToLower(errorMessage(body)), "no registrado")

	status, _ = s.do(t, nethttp.MethodPost, "/auth/login", map[string]string{}, "")
	assert.Equal(t, nethttp.StatusBadRequest, status)
}

func TestTokenTTL_ReportsRemainingSeconds(t *testing.T) {
	s := newTestServer(t, nil)
	sess := s.login(t, "ana", "ana-password")

	s.clock.Advance(5 * time.Second)

	status, body := s.do(t, nethttp.MethodGet, "/auth/token-ttl/"+sess.userID, nil, sess.access)
	require.Equal(t, nethttp.StatusOK, status, body)

	seconds := body["timeToLifeSeconds"].(float64)
	assert.GreaterOrEqual(t, seconds, 890.0)
	assert.LessOrEqual(t, seconds, 900.0)
	assert.Equal(t, "08:45:00", body["expTime"])
	assert.Equal(t, "08:45:00", body["tokenExpTime"])
}

func TestRenewTTL_ResetsWindow(t *testing.T) {
	s := newTestServer(t, nil)
	sess := s.login(t, "ana", "ana-password")

	s.clock.Advance(10 * time.Minute)

	_, body := s.do(t, nethttp.MethodGet, "/auth/token-ttl/"+sess.userID, nil, sess.access)
	assert.Equal(t, 300.0, body["timeToLifeSeconds"])

	status, body := s.do(t, nethttp.MethodPut, "/auth/token-ttl",
		map[string]string{"userId": sess.userID}, sess.access)
	require.Equal(t, nethttp.StatusOK, status, body)
	assert.NotEmpty(t, body["message"])

	_, body = s.do(t, nethttp.MethodGet, "/auth/token-ttl/"+sess.userID, nil, sess.access)
	assert.Equal(t, 900.0, body["timeToLifeSeconds"])
	assert.Equal(t, "08:55:00", body["expTime"])
	// The signed expiry does not move.
	assert.Equal(t, "08:45:00", body["tokenExpTime"])
}

func TestRenewTTL_WithoutSession(t *testing.T) {
	s := newTestServer(t, nil)
	admin := s.login(t, "admin", "admin-password")

	ana, err := s.users.FindByUsername(context.Background(), "ana")
	require.NoError(t, err)

	status, _ := s.do(t, nethttp.MethodPut, "/auth/token-ttl",
		map[string]string{"userId": ana.ID}, admin.access)
	assert.Equal(t, nethttp.StatusNotFound, status)

	status, _ = s.do(t, nethttp.MethodGet, "/auth/token-ttl/"+ana.ID, nil, admin.access)
	assert.Equal(t, nethttp.StatusNotFound, status)
}

func TestTokenTTL_Authorization(t *testing.T) {
	s := newTestServer(t, nil)
	admin := s.login(t, "admin", "admin-password")
	ana := s.login(t, "ana", "ana-password")

	status, _ := s.do(t, nethttp.MethodGet, "/auth/token-ttl/"+ana.userID, nil, "")
	assert.Equal(t, nethttp.StatusUnauthorized, status)

	status, _ = s.do(t, nethttp.MethodGet, "/auth/token-ttl/"+admin.userID, nil, ana.access)
	assert.Equal(t, nethttp.StatusForbidden, status)

	status, _ = s.do(t, nethttp.MethodPut, "/auth/token-ttl",
		map[string]string{"userId": admin.userID}, ana.access)
	assert.Equal(t, nethttp.StatusForbidden, status)

	status, _ = s.do(t, nethttp.MethodGet, "/auth/token-ttl/"+ana.userID, nil, admin.access)
	assert.Equal(t, nethttp.StatusOK, status)

	s.clock.Advance(16 * time.Minute)
	status, body := s.do(t, nethttp.MethodGet, "/auth/token-ttl/"+ana.userID, nil, ana.access)
	assert.Equal(t, nethttp.StatusUnauthorized, status)
	assert.Equal(t, "token expired", errorMessage(body))
}

func TestRefresh(t *testing.T) {
	s := newTestServer(t, nil)
	sess := s.login(t, "ana", "ana-password")

	s.clock.Advance(time.Second)

	status, body := s.do(t, nethttp.MethodPost, "/auth/refresh-token",
		map[string]string{"token": sess.refresh}, "")
	require.Equal(t, nethttp.StatusOK, status, body)
	assert.NotEqual(t, sess.refresh, body["refreshToken"])
	assert.NotEqual(t, sess.access, body["accessToken"])

	claims, err := s.tokens.VerifyAccessToken(body["accessToken"].(string))
	require.NoError(t, err)
	assert.Equal(t, sess.userID, claims.UserID)

	// The refreshToken field name is accepted as well.
	status, _ = s.do(t, nethttp.MethodPost, "/auth/refresh-token",
		map[string]string{"refreshToken": body["refreshToken"].(string)}, "")
	assert.Equal(t, nethttp.StatusOK, status)
}

func TestRefresh_RejectsTamperedAndExpired(t *testing.T) {
	s := newTestServer(t, nil)
	sess := s.login(t, "ana", "ana-password")

	tampered := sess.refresh[:len(sess.refresh)-4] + "AAAA"
	if tampered == sess.refresh {
		tampered = sess.refresh[:len(sess.refresh)-4] + "BBBB"
	}
	status, body := s.do(t, nethttp.MethodPost, "/auth/refresh-token",
		map[string]string{"token": tampered}, "")
	assert.Equal(t, nethttp.StatusForbidden, status)
	invalidMsg := errorMessage(body)

	status, _ = s.do(t, nethttp.MethodPost, "/auth/refresh-token",
		map[string]string{"token": sess.access}, "")
	assert.Equal(t, nethttp.StatusForbidden, status)

	s.clock.Advance(8 * 24 * time.Hour)
	status, body = s.do(t, nethttp.MethodPost, "/auth/refresh-token",
		map[string]string{"token": sess.refresh}, "")
	assert.Equal(t, nethttp.StatusForbidden, status)
	assert.Equal(t, invalidMsg, errorMessage(body))
}

func TestLogout(t *testing.T) {
	s := newTestServer(t, nil)
	admin := s.login(t, "admin", "admin-password")
	ana := s.login(t, "ana", "ana-password")

	status, body := s.do(t, nethttp.MethodPost, "/auth/logout",
		map[string]string{"refreshToken": ana.refresh}, ana.access)
	assert.Equal(t, nethttp.StatusOK, status)
	assert.NotEmpty(t, body["message"])

	status, _ = s.do(t, nethttp.MethodGet, "/auth/token-ttl/"+ana.userID, nil, admin.access)
	assert.Equal(t, nethttp.StatusNotFound, status)

	// Logging out without any credentials still succeeds.
	status, _ = s.do(t, nethttp.MethodPost, "/auth/logout", nil, "")
	assert.Equal(t, nethttp.StatusOK, status)
}

func TestUsers(t *testing.T) {
	s := newTestServer(t, nil)
	admin := s.login(t, "admin", "admin-password")
	ana := s.login(t, "ana", "ana-password")

	newUser := map[string]string{
		"username": "bea",
		"email":    "bea@example.com",
		"password": "bea-password",
		"role":     "standard",
	}

	status, _ := s.do(t, nethttp.MethodPost, "/auth/users", newUser, "")
	assert.Equal(t, nethttp.StatusUnauthorized, status)

	status, _ = s.do(t, nethttp.MethodPost, "/auth/users", newUser, ana.access)
	assert.Equal(t, nethttp.StatusForbidden, status)

	status, body := s.do(t, nethttp.MethodPost, "/auth/users", newUser, admin.access)
	require.Equal(t, nethttp.StatusCreated, status, body)
	created := body["user"].(map[string]any)
	assert.Equal(t, "bea", created["username"])

	dup := map[string]string{
		"username": "bea",
		"email":    "bea2@example.com",
		"password": "different-password",
		"role":     "admin",
	}
	status, _ = s.do(t, nethttp.MethodPost, "/auth/users", dup, admin.access)
	assert.Equal(t, nethttp.StatusConflict, status)

	status, body = s.do(t, nethttp.MethodGet, "/auth/users/bea", nil, ana.access)
	require.Equal(t, nethttp.StatusOK, status)
	stored := body["user"].(map[string]any)
	assert.Equal(t, created["id"], stored["id"])
	assert.Equal(t, "standard", stored["role"])
	assert.Equal(t, "bea@example.com", stored["email"])

	// The original password still works.
	s.login(t, "bea", "bea-password")

	status, body = s.do(t, nethttp.MethodGet, "/auth/users?role=standard", nil, admin.access)
	require.Equal(t, nethttp.StatusOK, status)
	assert.Len(t, body["users"], 2)

	status, _ = s.do(t, nethttp.MethodGet, "/auth/users/ghost", nil, ana.access)
	assert.Equal(t, nethttp.StatusNotFound, status)
}

func TestUnknownRouteUsesErrorEnvelope(t *testing.T) {
	s := newTestServer(t, nil)

	status, body := s.do(t, nethttp.MethodGet, "/nope", nil, "")
	assert.Equal(t, nethttp.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", body["error"].(map[string]any)["code"])
}

func TestUnknownRouteIsMeasuredAsNotFound(t *testing.T) {
	s := newTestServer(t, nil)

	status, _ := s.do(t, nethttp.MethodGet, "/nope", nil, "")
	require.Equal(t, nethttp.StatusNotFound, status)

	exposition := s.scrape(t)
	assert.Regexp(t, `http_requests_total\{method="GET",route="[^"]*",status="404"\} 1`, exposition)
	assert.NotContains(t, exposition, `status="500"`)
	assert.Contains(t, exposition, `http_request_errors_total{code="NOT_FOUND"} 1`)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, map[string]handlers.Pinger{"store": failingPinger{}})

	status, body := s.do(t, nethttp.MethodGet, "/health/live", nil, "")
	assert.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, "alive", body["status"])

	status, _ = s.do(t, nethttp.MethodGet, "/health/ready", nil, "")
	assert.Equal(t, nethttp.StatusServiceUnavailable, status)

	s.login(t, "ana", "ana-password")

	exposition := s.scrape(t)
	assert.Contains(t, exposition, `auth_logins_total{outcome="success"} 1`)
	assert.Contains(t, exposition, "http_requests_total")
}

func (s *testServer) scrape(t *testing.T) string {
	t.Helper()
	req := httptest.NewRequest(nethttp.MethodGet, "/metrics", nil)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(raw)
}
