package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tendant/simple-todo/internal/config"
	"github.com/tendant/simple-todo/internal/http/features/common"
	"github.com/tendant/simple-todo/internal/http/features/tasks"
	"github.com/tendant/simple-todo/internal/httputil"
	"github.com/tendant/simple-todo/pkg/auth"
	"github.com/tendant/simple-todo/pkg/profile"
	"github.com/tendant/simple-todo/pkg/repository"
	"github.com/tendant/simple-todo/pkg/task"
)

type capturedMail struct {
	kind string
	to   string
	code string
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []capturedMail
}

func (m *recordingMailer) record(kind, to, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, capturedMail{kind: kind, to: to, code: code})
	return nil
}

func (m *recordingMailer) SendVerificationEmail(_ context.Context, to, _, code string) error {
	return m.record("verification", to, code)
}

func (m *recordingMailer) SendPasswordResetEmail(_ context.Context, to, _, code string) error {
	return m.record("reset", to, code)
}

func (m *recordingMailer) SendWelcomeEmail(_ context.Context, to, _ string) error {
	return m.record("welcome", to, "")
}

func (m *recordingMailer) SendPasswordChangedEmail(_ context.Context, to, _ string) error {
	return m.record("password_changed", to, "")
}

func (m *recordingMailer) SendAccountLockedEmail(_ context.Context, to, _ string, _ time.Duration) error {
	return m.record("locked", to, "")
}

func (m *recordingMailer) lastCode(kind string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].kind == kind {
			return m.sent[i].code
		}
	}
	return ""
}

type testServer struct {
	handler http.Handler
	mailer  *recordingMailer
	users   *repository.MemoryUsers
}

func newTestServer(t *testing.T, opts ...func(*RouterConfig)) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := repository.NewMemoryStore()
	mailer := &recordingMailer{}

	signer, err := auth.NewTokenSigner(auth.TokenConfig{
		Secret:          []byte("0123456789abcdef0123456789abcdef"),
		Issuer:          "simple-todo",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
	})
	require.NoError(t, err)

	authService := auth.NewService(
		auth.ServiceConfig{MaxFailedAttempts: 5, LockoutDuration: 30 * time.Minute},
		store.Users(),
		auth.BcryptHasher{Cost: bcrypt.MinCost},
		&auth.PasswordPolicy{MinLength: 8},
		signer,
		mailer,
		logger,
	)

	cfg := RouterConfig{
		Logger:          logger,
		AuthService:     authService,
		ProfileService:  profile.NewService(store.Users(), store.Tasks(), logger),
		TaskService:     task.NewService(store.Tasks(), logger),
		Identities:      store.Users(),
		RateLimitConfig: config.RateLimitConfig{Enabled: false},
		SecurityHeaders: config.SecurityHeadersConfig{Enabled: true, FrameOptions: "DENY"},
		Validation:      config.ValidationConfig{MaxRequestBodySize: 1 << 20},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &testServer{handler: NewRouter(cfg), mailer: mailer, users: store.Users()}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), rec.Body.String())
	return v
}

func registerAndVerify(t *testing.T, s *testServer, email, username, pw string) {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"email": email, "username": username, "password": pw, "firstName": "A", "lastName": "A",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/auth/verify-email", "", map[string]string{"token": s.mailer.lastCode("verification")})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func login(t *testing.T, s *testServer, email, pw string) common.TokenResponse {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": email, "password": pw})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[common.TokenResponse](t, rec)
}

func TestRouter_RegisterVerifyLoginLockout(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	rec := s.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"email": "a@x.com", "username": "alice", "password": "pw12345678", "firstName": "A", "lastName": "A",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	msg := decode[httputil.MessageResponse](t, rec)
	assert.True(t, msg.Success)
	assert.Contains(t, msg.Message, "24 hours")

	stored, err := s.users.GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.False(t, stored.EmailVerified)
	require.NotNil(t, stored.VerificationCode)
	assert.Regexp(t, `^[0-9]{6}$`, *stored.VerificationCode)
	code := *stored.VerificationCode

	// Login before verification: right password, still refused.
	rec = s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "a@x.com", "password": "pw12345678"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	rec = s.do(t, http.MethodPost, "/auth/verify-email", "", map[string]string{"token": wrong})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/auth/verify-email", "", map[string]string{"token": code})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	stored, err = s.users.GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.True(t, stored.EmailVerified)
	assert.Nil(t, stored.VerificationCode)

	tokens := login(t, s, "a@x.com", "pw12345678")
	assert.NotEmpty(t, tokens.AccessToken)
	assert.NotEmpty(t, tokens.RefreshToken)
	assert.Equal(t, "alice", tokens.User.Username)
	assert.True(t, tokens.User.EmailVerified)
	assert.Greater(t, tokens.ExpiresAt, time.Now().UnixMilli())

	for i := 1; i <= 5; i++ {
		rec = s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "a@x.com", "password": "wrong-password"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "attempt %d", i)
	}

	rec = s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "a@x.com", "password": "pw12345678"})
	assert.Equal(t, http.StatusLocked, rec.Code)
	env := decode[httputil.ErrorResponse](t, rec)
	assert.Equal(t, http.StatusLocked, env.Status)
}

func TestRouter_UnknownEmailAndBadPasswordLookAlike(t *testing.T) {
	s := newTestServer(t)
	registerAndVerify(t, s, "bob@example.com", "bob", "pw12345678")

	unknown := s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "nobody@example.com", "password": "pw12345678"})
	badPw := s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "bob@example.com", "password": "nope-nope"})

	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.Equal(t, unknown.Code, badPw.Code)
	assert.Equal(t, decode[httputil.ErrorResponse](t, unknown).Message, decode[httputil.ErrorResponse](t, badPw).Message)
}

func TestRouter_RefreshAndLogout(t *testing.T) {
	s := newTestServer(t)
	registerAndVerify(t, s, "carol@example.com", "carol", "pw12345678")
	first := login(t, s, "carol@example.com", "pw12345678")

	rec := s.do(t, http.MethodPost, "/auth/refresh-token", "", map[string]string{"refreshToken": first.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	second := decode[common.TokenResponse](t, rec)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	// The rotated-out token is dead.
	rec = s.do(t, http.MethodPost, "/auth/refresh-token", "", map[string]string{"refreshToken": first.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/auth/logout", "", map[string]string{"refreshToken": second.RefreshToken})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/auth/refresh-token", "", map[string]string{"refreshToken": second.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Logout of an unknown token still succeeds.
	rec = s.do(t, http.MethodPost, "/auth/logout", "", map[string]string{"refreshToken": "unknown"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_PasswordReset(t *testing.T) {
	s := newTestServer(t)
	registerAndVerify(t, s, "dave@example.com", "dave", "pw12345678")

	rec := s.do(t, http.MethodPost, "/auth/forgot-password", "", map[string]string{"email": "dave@example.com"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/auth/forgot-password", "", map[string]string{"email": "ghost@example.com"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	code := s.mailer.lastCode("reset")
	rec = s.do(t, http.MethodPost, "/auth/reset-password", "", map[string]string{"token": code, "newPassword": "brand-new-pw"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Single use.
	rec = s.do(t, http.MethodPost, "/auth/reset-password", "", map[string]string{"token": code, "newPassword": "another-pw-1"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	login(t, s, "dave@example.com", "brand-new-pw")
}

func TestRouter_ValidationEnvelope(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/auth/register", "", map[string]string{"email": "not-an-email"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	env := decode[httputil.ErrorResponse](t, rec)
	assert.Equal(t, "validation failed", env.Message)
	assert.Contains(t, env.Details, "email")
	assert.Contains(t, env.Details, "username")
	assert.Contains(t, env.Details, "password")

	rec = s.do(t, http.MethodPost, "/auth/login", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_ProtectedRoutes(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/profile", "/tasks"} {
		rec := s.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)

		rec = s.do(t, http.MethodGet, path, "garbage", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}

	rec := s.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	health := decode[HealthResponse](t, rec)
	assert.Equal(t, "UP", health.Status)
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestRouter_TasksAndProfile(t *testing.T) {
	s := newTestServer(t)
	registerAndVerify(t, s, "erin@example.com", "erin", "pw12345678")
	token := login(t, s, "erin@example.com", "pw12345678").AccessToken

	rec := s.do(t, http.MethodGet, "/tasks", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[tasks.TasksResponse](t, rec)
	assert.Equal(t, 0, list.TotalTasks)
	assert.Equal(t, "📝 No tasks found! Ready to add your first task?", list.Message)

	rec = s.do(t, http.MethodPost, "/tasks", token, map[string]string{"title": "Buy milk", "description": "2 liters"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[tasks.TaskResultResponse](t, rec)
	assert.Equal(t, "🎉 Task 'Buy milk' has been successfully created! Time to get things done!", created.Message)
	taskPath := "/tasks/" + created.Task.ID

	rec = s.do(t, http.MethodPatch, taskPath+"/toggle-completion", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	toggled := decode[tasks.TaskResultResponse](t, rec)
	assert.True(t, toggled.Task.Completed)
	assert.Equal(t, "🎯 Great job! Task 'Buy milk' has been marked as completed!", toggled.Message)

	rec = s.do(t, http.MethodGet, "/tasks/search?query=MILK", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[tasks.TasksResponse](t, rec).TotalTasks)

	rec = s.do(t, http.MethodGet, "/tasks/filter?completed=false", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decode[tasks.TasksResponse](t, rec).TotalTasks)

	rec = s.do(t, http.MethodGet, "/tasks/filter", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Another user cannot see the task.
	registerAndVerify(t, s, "frank@example.com", "frank", "pw12345678")
	other := login(t, s, "frank@example.com", "pw12345678").AccessToken
	rec = s.do(t, http.MethodGet, taskPath, other, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/tasks/not-a-uuid", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPut, "/profile", token, map[string]string{"username": "frank"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPut, "/profile", token, map[string]string{"firstName": "Erin"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/profile", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var profileBody map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&profileBody))
	assert.Equal(t, "Erin", profileBody["firstName"])
	assert.Equal(t, "erin@example.com", profileBody["email"])

	rec = s.do(t, http.MethodPost, "/profile/change-password", token, map[string]string{"currentPassword": "wrong", "newPassword": "pw-87654321"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/profile/change-password", token, map[string]string{"currentPassword": "pw12345678", "newPassword": "pw-87654321"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	login(t, s, "erin@example.com", "pw-87654321")

	rec = s.do(t, http.MethodDelete, taskPath, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "🗑️ Task 'Buy milk' has been successfully deleted!", decode[httputil.MessageResponse](t, rec).Message)

	rec = s.do(t, http.MethodDelete, "/profile", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// The access token outlives the account but no longer resolves.
	rec = s.do(t, http.MethodGet, "/profile", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_RateLimitKeysOnConnectionAddress(t *testing.T) {
	limits := config.RateLimitConfig{
		Enabled:                  true,
		AuthRequestsPerMinute:    100,
		AuthWindowMinutes:        1,
		ResetRequestsPerWindow:   5,
		ResetWindowMinutes:       15,
		VerifyRequestsPerWindow:  100,
		VerifyWindowMinutes:      1,
		RefreshRequestsPerMinute: 100,
		RefreshWindowMinutes:     1,
		ProfileRequestsPerMinute: 100,
		ProfileWindowMinutes:     1,
		TasksRequestsPerMinute:   100,
		TasksWindowMinutes:       1,
	}

	// forgot sends one forgot-password request from the same connection
	// address, claiming a different client IP each time.
	forgot := func(s *testServer, i int) int {
		spoofed := fmt.Sprintf("203.0.113.%d", i+1)
		body := strings.NewReader(`{"email":"nobody@x.com"}`)
		req := httptest.NewRequest(http.MethodPost, "/auth/forgot-password", body)
		req.RemoteAddr = "192.0.2.10:40000"
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", spoofed)
		req.Header.Set("X-Real-IP", spoofed)
		req.Header.Set("True-Client-IP", spoofed)
		rec := httptest.NewRecorder()
		s.handler.ServeHTTP(rec, req)
		return rec.Code
	}

	t.Run("forwarded headers are ignored by default", func(t *testing.T) {
		s := newTestServer(t, func(cfg *RouterConfig) { cfg.RateLimitConfig = limits })

		for i := 0; i < 5; i++ {
			assert.Equal(t, http.StatusNotFound, forgot(s, i), "request %d", i+1)
		}
		assert.Equal(t, http.StatusTooManyRequests, forgot(s, 5))
	})

	t.Run("forwarded headers are honoured behind a trusted proxy", func(t *testing.T) {
		s := newTestServer(t, func(cfg *RouterConfig) {
			cfg.RateLimitConfig = limits
			cfg.TrustProxy = true
		})

		for i := 0; i < 6; i++ {
			assert.Equal(t, http.StatusNotFound, forgot(s, i), "request %d", i+1)
		}
	})
}
