package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Pinash124/bike-hub-sub000/internal/apiclient"
	"github.com/Pinash124/bike-hub-sub000/internal/auth"
	"github.com/Pinash124/bike-hub-sub000/internal/cart"
	"github.com/Pinash124/bike-hub-sub000/internal/domain"
	"github.com/Pinash124/bike-hub-sub000/internal/event"
	"github.com/Pinash124/bike-hub-sub000/internal/session"
	"github.com/Pinash124/bike-hub-sub000/internal/store/memory"
	apperrors "github.com/Pinash124/bike-hub-sub000/pkg/errors"
	"github.com/Pinash124/bike-hub-sub000/pkg/health"
	"github.com/Pinash124/bike-hub-sub000/pkg/logger"
	"github.com/Pinash124/bike-hub-sub000/pkg/middleware"
)

// ============================================================================
// Mock API
// ============================================================================

type mockAPI struct {
	mock.Mock
}

func (m *mockAPI) Login(ctx context.Context, username, password string) (string, error) {
	args := m.Called(ctx, username, password)
	return args.String(0), args.Error(1)
}

func (m *mockAPI) MyInfo(ctx context.Context) (*domain.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockAPI) Logout(ctx context.Context, token string) error {
	return m.Called(ctx, token).Error(0)
}

func (m *mockAPI) Refresh(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *mockAPI) SendOTP(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *mockAPI) VerifyOTP(ctx context.Context, email, otp string) error {
	return m.Called(ctx, email, otp).Error(0)
}

func (m *mockAPI) Register(ctx context.Context, reg apiclient.Registration) error {
	return m.Called(ctx, reg).Error(0)
}

// ============================================================================
// Test helpers
// ============================================================================

type testRig struct {
	handler http.Handler
	api     *mockAPI
	sess    *session.Session
	auth    *auth.Controller
	cart    *cart.Controller
}

func newRig(t *testing.T) *testRig {
	t.Helper()
	log := logger.Discard()
	api := new(mockAPI)
	sess := session.New(memory.New())
	producer := event.NewProducer(nil, log)

	authCtl := auth.New(api, sess, producer, log, auth.Config{OTPResendInterval: time.Minute})
	cartCtl := cart.New(sess, producer, log)
	require.NoError(t, authCtl.Initialize(context.Background()))
	require.NoError(t, cartCtl.Load(context.Background()))

	t.Cleanup(func() { api.AssertExpectations(t) })

	return &testRig{
		handler: NewRouter(authCtl, cartCtl, health.NewHandler(), log, middleware.DefaultCORSConfig()),
		api:     api,
		sess:    sess,
		auth:    authCtl,
		cart:    cartCtl,
	}
}

func (rig *testRig) signIn(t *testing.T, role domain.Role) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, rig.sess.SetToken(ctx, "T1"))
	require.NoError(t, rig.sess.SetUser(ctx, &domain.User{ID: "u1", Email: "lan@bikehub.vn", Role: role}))
}

func (rig *testRig) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	rig.handler.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	return env
}

func decodeData[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &out))
	return out
}

// ============================================================================
// Infrastructure routes
// ============================================================================

func TestHealthAndMetrics(t *testing.T) {
	rig := newRig(t)

	rec := rig.do(t, http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = rig.do(t, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = rig.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSessionResponsesAreNotCached(t *testing.T) {
	rig := newRig(t)

	rec := rig.do(t, http.MethodGet, "/session", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestContentTypeJSON_RejectsOtherBodies(t *testing.T) {
	rig := newRig(t)

	req := httptest.NewRequest(http.MethodPost, "/cart/items", bytes.NewBufferString("productId=p1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	rig.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

// ============================================================================
// Guarded views
// ============================================================================

func TestViews_GuestIsSentToLogin(t *testing.T) {
	rig := newRig(t)

	rec := rig.do(t, http.MethodGet, "/checkout", nil)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login?redirect=%2Fcheckout", rec.Header().Get("Location"))
}

func TestViews_WrongRoleIsUnauthorized(t *testing.T) {
	rig := newRig(t)
	rig.signIn(t, domain.RoleSeller)

	rec := rig.do(t, http.MethodGet, "/dashboard/admin", nil)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/unauthorized", rec.Header().Get("Location"))
}

func TestViews_DashboardPerRole(t *testing.T) {
	for _, role := range []domain.Role{domain.RoleBuyer, domain.RoleSeller, domain.RoleAdmin, domain.RoleInspector} {
		t.Run(string(role), func(t *testing.T) {
			rig := newRig(t)
			rig.signIn(t, role)

			rec := rig.do(t, http.MethodGet, "/dashboard/"+string(role), nil)
			require.Equal(t, http.StatusOK, rec.Code)

			page := decodeData[PageResponse](t, rec)
			assert.Equal(t, "dashboard-"+string(role), page.Page)
			assert.Equal(t, role, page.Session.Role)
		})
	}
}

func TestViews_WaitWhileSessionLoads(t *testing.T) {
	log := logger.Discard()
	sess := session.New(memory.New())
	producer := event.NewProducer(nil, log)
	authCtl := auth.New(new(mockAPI), sess, producer, log, auth.Config{})
	h := NewRouter(authCtl, cart.New(sess, producer, log), health.NewHandler(), log, middleware.DefaultCORSConfig())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestViews_PublicPagesRender(t *testing.T) {
	rig := newRig(t)

	for _, path := range []string{"/", "/products", "/unauthorized", "/signup", "/login"} {
		rec := rig.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}

	rec := rig.do(t, http.MethodGet, "/products/bike-42", nil)
	page := decodeData[PageResponse](t, rec)
	assert.Equal(t, "product", page.Page)
	assert.Equal(t, map[string]any{"productId": "bike-42"}, page.Data)
}

func TestViews_LoginKeepsOnlyLocalRedirect(t *testing.T) {
	rig := newRig(t)

	rec := rig.do(t, http.MethodGet, "/login?redirect=%2Forders", nil)
	page := decodeData[PageResponse](t, rec)
	assert.Equal(t, map[string]any{"redirect": "/orders"}, page.Data)

	rec = rig.do(t, http.MethodGet, "/login?redirect=https%3A%2F%2Fevil.example", nil)
	page = decodeData[PageResponse](t, rec)
	assert.Equal(t, map[string]any{"redirect": "/"}, page.Data)
}

func TestViews_LoginWhenSignedInRedirects(t *testing.T) {
	rig := newRig(t)
	rig.signIn(t, domain.RoleBuyer)

	rec := rig.do(t, http.MethodGet, "/login?redirect=%2Forders", nil)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/orders", rec.Header().Get("Location"))
}

// ============================================================================
// Session actions
// ============================================================================

func TestLogin_Success(t *testing.T) {
	rig := newRig(t)
	user := &domain.User{ID: "u1", Email: "lan@bikehub.vn", Role: domain.RoleSeller}
	rig.api.On("Login", mock.Anything, "lan@bikehub.vn", "secret").Return("T1", nil).Once()
	rig.api.On("MyInfo", mock.Anything).Return(user, nil).Once()

	rec := rig.do(t, http.MethodPost, "/session/login", map[string]string{
		"email": "lan@bikehub.vn", "password": "secret", "redirect": "/dashboard/seller",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeData[LoginResponse](t, rec)
	assert.Equal(t, "u1", resp.User.ID)
	assert.Equal(t, "/dashboard/seller", resp.Redirect)
	assert.Empty(t, resp.ProfileError)

	rec = rig.do(t, http.MethodGet, "/dashboard/seller", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLogin_ProfileFailureIsReported(t *testing.T) {
	rig := newRig(t)
	rig.api.On("Login", mock.Anything, "lan@bikehub.vn", "secret").Return("T1", nil).Once()
	rig.api.On("MyInfo", mock.Anything).Return(nil, apperrors.Network(errors.New("refused"))).Once()

	rec := rig.do(t, http.MethodPost, "/session/login", map[string]string{
		"email": "lan@bikehub.vn", "password": "secret",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeData[LoginResponse](t, rec)
	assert.Equal(t, domain.RoleBuyer, resp.User.Role)
	assert.Equal(t, "network unavailable, please retry", resp.ProfileError)
	assert.Equal(t, "/", resp.Redirect)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	rig := newRig(t)
	rig.api.On("Login", mock.Anything, "lan@bikehub.vn", "wrong").
		Return("", apperrors.Unauthorized("invalid email or password")).Once()

	rec := rig.do(t, http.MethodPost, "/session/login", map[string]string{
		"email": "lan@bikehub.vn", "password": "wrong",
	})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "invalid email or password", env.Error.Message)
	assert.False(t, rig.auth.IsAuthenticated(context.Background()))
}

func TestLogin_ValidationError(t *testing.T) {
	rig := newRig(t)

	rec := rig.do(t, http.MethodPost, "/session/login", map[string]string{"email": "not-an-email"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	assert.Contains(t, env.Error.Fields, "email")
	assert.Contains(t, env.Error.Fields, "password")
}

func TestLogin_MalformedBody(t *testing.T) {
	rig := newRig(t)

	req := httptest.NewRequest(http.MethodPost, "/session/login", bytes.NewBufferString("{"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	rig.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INPUT", decodeEnvelope(t, rec).Error.Code)
}

func TestLogout(t *testing.T) {
	rig := newRig(t)
	rig.signIn(t, domain.RoleBuyer)
	rig.api.On("Logout", mock.Anything, "T1").Return(nil).Once()

	rec := rig.do(t, http.MethodPost, "/session/logout", nil)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, rig.auth.IsAuthenticated(context.Background()))
}

func TestRegisterAndPendingRegistration(t *testing.T) {
	rig := newRig(t)

	rec := rig.do(t, http.MethodGet, "/session/pending-registration", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rig.api.On("Register", mock.Anything, apiclient.Registration{
		Username: "lan@bikehub.vn", Password: "password1", Name: "Lan",
	}).Return(nil).Once()

	rec = rig.do(t, http.MethodPost, "/session/register", map[string]string{
		"email": "lan@bikehub.vn", "password": "password1", "confirmPassword": "password1", "name": "Lan",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = rig.do(t, http.MethodGet, "/session/pending-registration", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	pending := decodeData[auth.PendingRegistration](t, rec)
	assert.Equal(t, "lan@bikehub.vn", pending.Email)
	assert.False(t, rig.auth.IsAuthenticated(context.Background()))
}

func TestRegister_PasswordMismatch(t *testing.T) {
	rig := newRig(t)

	rec := rig.do(t, http.MethodPost, "/session/register", map[string]string{
		"email": "lan@bikehub.vn", "password": "password1", "confirmPassword": "password2", "name": "Lan",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeEnvelope(t, rec).Error.Fields, "confirmPassword")
}

func TestSendOTP_SecondRequestThrottled(t *testing.T) {
	rig := newRig(t)
	rig.api.On("SendOTP", mock.Anything, "lan@bikehub.vn").Return(nil).Once()

	rec := rig.do(t, http.MethodPost, "/session/otp", map[string]string{"email": "lan@bikehub.vn"})
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = rig.do(t, http.MethodPost, "/session/otp", map[string]string{"email": "lan@bikehub.vn"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestVerifyOTP(t *testing.T) {
	rig := newRig(t)
	rig.api.On("VerifyOTP", mock.Anything, "lan@bikehub.vn", "123456").Return(nil).Once()

	rec := rig.do(t, http.MethodPost, "/session/otp/verify", map[string]string{"email": "lan@bikehub.vn", "otp": "123456"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, rig.auth.IsAuthenticated(context.Background()))
}

func TestSignedInActions_RequireSession(t *testing.T) {
	rig := newRig(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/session/me"},
		{http.MethodPost, "/session/refresh"},
		{http.MethodPatch, "/session/profile"},
		{http.MethodPut, "/session/role"},
		{http.MethodPut, "/session/kyc"},
	} {
		rec := rig.do(t, tc.method, tc.path, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, tc.path)
	}
}

func TestMe_UnauthorizedSignsOut(t *testing.T) {
	rig := newRig(t)
	rig.signIn(t, domain.RoleBuyer)
	rig.api.On("MyInfo", mock.Anything).Return(nil, apperrors.Unauthorized("session expired")).Once()

	rec := rig.do(t, http.MethodGet, "/session/me", nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, rig.auth.IsAuthenticated(context.Background()))
}

func TestRefresh(t *testing.T) {
	rig := newRig(t)
	rig.signIn(t, domain.RoleBuyer)
	rig.api.On("Refresh", mock.Anything).Return("T2", nil).Once()

	rec := rig.do(t, http.MethodPost, "/session/refresh", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProfileRoleAndKYC(t *testing.T) {
	rig := newRig(t)
	rig.signIn(t, domain.RoleBuyer)

	rec := rig.do(t, http.MethodPatch, "/session/profile", map[string]string{"name": "Lan Nguyen"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Lan Nguyen", decodeData[domain.User](t, rec).Name)

	rec = rig.do(t, http.MethodPut, "/session/role", map[string]string{"role": "seller"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.RoleSeller, rig.auth.Role(context.Background()))

	rec = rig.do(t, http.MethodPut, "/session/role", map[string]string{"role": "owner"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = rig.do(t, http.MethodPut, "/session/kyc", map[string]bool{"verified": true})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = rig.do(t, http.MethodPut, "/session/kyc", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
