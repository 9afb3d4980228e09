// Package auth owns the signed-in session: login, logout, registration, OTP,
// profile edits and token upkeep. Persistent state lives in the session
// store; the controller only keeps the transient phase in memory.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/Pinash124/bike-hub-sub000/internal/apiclient"
	"github.com/Pinash124/bike-hub-sub000/internal/domain"
	"github.com/Pinash124/bike-hub-sub000/internal/event"
	apperrors "github.com/Pinash124/bike-hub-sub000/pkg/errors"
	"github.com/Pinash124/bike-hub-sub000/pkg/validator"
)

// Phase is the session state machine position.
type Phase string

const (
	PhaseGuest          Phase = "guest"
	PhaseAuthenticating Phase = "authenticating"
	PhaseAuthenticated  Phase = "authenticated"
	PhaseLoggingOut     Phase = "logging-out"
)

// API is the marketplace surface the controller calls.
// *apiclient.Client satisfies it.
type API interface {
	Login(ctx context.Context, username, password string) (string, error)
	MyInfo(ctx context.Context) (*domain.User, error)
	Logout(ctx context.Context, token string) error
	Refresh(ctx context.Context) (string, error)
	SendOTP(ctx context.Context, email string) error
	VerifyOTP(ctx context.Context, email, otp string) error
	Register(ctx context.Context, reg apiclient.Registration) error
}

// Store is the persisted session. *session.Session satisfies it.
type Store interface {
	Token(ctx context.Context) (string, error)
	SetToken(ctx context.Context, token string) error
	User(ctx context.Context) (*domain.User, error)
	SetUser(ctx context.Context, u *domain.User) error
	Clear(ctx context.Context) error
}

// Config tunes session behaviour.
type Config struct {
	// OTPResendInterval is the minimum gap between codes sent to one email.
	// Zero disables the throttle.
	OTPResendInterval time.Duration
	// TokenRefreshSkew is how close to expiry a JWT may get before
	// EnsureFreshToken refreshes it.
	TokenRefreshSkew time.Duration
}

// State is a read of the session at one point in time.
type State struct {
	Phase         Phase        `json:"phase"`
	Loading       bool         `json:"loading"`
	Authenticated bool         `json:"authenticated"`
	Role          domain.Role  `json:"role"`
	User          *domain.User `json:"user,omitempty"`
}

// Controller implements the auth session operations.
type Controller struct {
	api      API
	store    Store
	producer *event.Producer
	logger   *slog.Logger
	cfg      Config
	now      func() time.Time

	// opMu serialises operations that change who is signed in.
	opMu sync.Mutex

	mu sync.RWMutex
	// phase only matters while an operation is in flight. At rest State
	// derives it from the stored user.
	phase   Phase
	loading bool
	pending *PendingRegistration

	otpMu       sync.Mutex
	otpLimiters map[string]*rate.Limiter
}

// New creates a controller. It reports Loading until Initialize returns.
func New(api API, store Store, producer *event.Producer, logger *slog.Logger, cfg Config) *Controller {
	return &Controller{
		api:         api,
		store:       store,
		producer:    producer,
		logger:      logger,
		cfg:         cfg,
		now:         time.Now,
		phase:       PhaseGuest,
		loading:     true,
		otpLimiters: make(map[string]*rate.Limiter),
	}
}

func (c *Controller) setPhase(p Phase) {
	c.mu.Lock()
	c.phase = p
	c.mu.Unlock()
}

// IsLoading reports whether the persisted session is still being restored.
func (c *Controller) IsLoading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loading
}

// State returns the current session state. The user is read from the store,
// so a session cleared by a failed refresh shows up immediately.
func (c *Controller) State(ctx context.Context) State {
	c.mu.RLock()
	phase, loading := c.phase, c.loading
	c.mu.RUnlock()

	u, err := c.store.User(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "failed to read session user",
			slog.String("error", err.Error()),
		)
		u = nil
	}

	if phase != PhaseAuthenticating && phase != PhaseLoggingOut {
		phase = PhaseGuest
		if u != nil {
			phase = PhaseAuthenticated
		}
	}
	return State{
		Phase:         phase,
		Loading:       loading,
		Authenticated: u != nil,
		Role:          domain.RoleOf(u),
		User:          u,
	}
}

// User returns the signed-in user, or nil.
func (c *Controller) User(ctx context.Context) *domain.User {
	return c.State(ctx).User
}

// IsAuthenticated reports whether a user is signed in.
func (c *Controller) IsAuthenticated(ctx context.Context) bool {
	return c.State(ctx).Authenticated
}

// Role returns the user's role, or guest.
func (c *Controller) Role(ctx context.Context) domain.Role {
	return c.State(ctx).Role
}

// Initialize restores the persisted session. A token without a user fetches
// the profile once; a failed fetch, an unreadable user or a user without a
// token leaves the session cleared.
func (c *Controller) Initialize(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	defer func() {
		c.mu.Lock()
		c.loading = false
		c.mu.Unlock()
	}()

	token, err := c.store.Token(ctx)
	if err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	u, userErr := c.store.User(ctx)

	switch {
	case userErr != nil:
		c.logger.WarnContext(ctx, "stored user unreadable, clearing session",
			slog.String("error", userErr.Error()),
		)
		return c.clear(ctx)
	case token == "" && u != nil:
		c.logger.WarnContext(ctx, "stored user without token, clearing session")
		return c.clear(ctx)
	case token == "":
		return nil
	case u != nil:
		c.logger.InfoContext(ctx, "session restored",
			slog.String("user_id", u.ID),
			slog.String("role", string(domain.RoleOf(u))),
		)
		return nil
	}

	profile, err := c.api.MyInfo(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.WarnContext(ctx, "profile fetch failed during restore, clearing session",
			slog.String("error", err.Error()),
		)
		return c.clear(ctx)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.store.SetUser(ctx, profile); err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	c.logger.InfoContext(ctx, "session restored from token",
		slog.String("user_id", profile.ID),
	)
	return nil
}

// clear wipes the persisted session even when ctx is already cancelled.
func (c *Controller) clear(ctx context.Context) error {
	if err := c.store.Clear(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// LoginInput carries sign-in credentials.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResult is the outcome of a successful login. ProfileErr is set when
// the token was accepted but the profile could not be fetched for a reason
// other than the token itself; User is then a provisional buyer profile built
// from the email. A rejected token fails the login instead.
type LoginResult struct {
	User       *domain.User
	ProfileErr error
}

// Login signs in. On failure the session is left as it was and the error
// carries a user-facing message.
func (c *Controller) Login(ctx context.Context, in LoginInput) (LoginResult, error) {
	if err := validator.Validate(in); err != nil {
		return LoginResult{}, err
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.setPhase(PhaseAuthenticating)
	defer c.setPhase(PhaseGuest)

	token, err := c.api.Login(ctx, in.Email, in.Password)
	if err != nil {
		c.logger.InfoContext(ctx, "login failed",
			slog.String("email", in.Email),
			slog.String("error", err.Error()),
		)
		return LoginResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return LoginResult{}, err
	}
	if err := c.store.SetToken(ctx, token); err != nil {
		return LoginResult{}, fmt.Errorf("store token: %w", err)
	}

	u, profileErr := c.api.MyInfo(ctx)
	if err := ctx.Err(); err != nil {
		_ = c.clear(ctx)
		return LoginResult{}, err
	}
	if profileErr != nil {
		// A rejected token or one cleared by a failed refresh means there is
		// no session to keep a provisional user in.
		current, tokenErr := c.store.Token(ctx)
		if tokenErr != nil || current == "" || errors.Is(profileErr, apperrors.ErrUnauthorized) {
			c.logger.WarnContext(ctx, "profile fetch after login rejected, clearing session",
				slog.String("email", in.Email),
				slog.String("error", profileErr.Error()),
			)
			if clearErr := c.clear(ctx); clearErr != nil {
				c.logger.ErrorContext(ctx, "failed to clear session after rejected login",
					slog.String("error", clearErr.Error()),
				)
			}
			return LoginResult{}, profileErr
		}
		c.logger.WarnContext(ctx, "profile fetch after login failed, using provisional profile",
			slog.String("email", in.Email),
			slog.String("error", profileErr.Error()),
		)
		u = &domain.User{Email: in.Email, Role: domain.RoleBuyer}
	}
	if u.Email == "" {
		u.Email = in.Email
	}
	if err := c.store.SetUser(ctx, u); err != nil {
		_ = c.clear(ctx)
		return LoginResult{}, fmt.Errorf("store user: %w", err)
	}

	if err := c.producer.PublishLoggedIn(ctx, u); err != nil {
		c.logger.ErrorContext(ctx, "failed to publish session.logged_in event",
			slog.String("user_id", u.ID),
			slog.String("error", err.Error()),
		)
	}
	c.logger.InfoContext(ctx, "user logged in",
		slog.String("user_id", u.ID),
		slog.String("role", string(domain.RoleOf(u))),
	)
	return LoginResult{User: u, ProfileErr: profileErr}, nil
}

// Logout notifies the API best-effort and always clears the local session.
func (c *Controller) Logout(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.setPhase(PhaseLoggingOut)
	defer c.setPhase(PhaseGuest)

	token, err := c.store.Token(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "failed to read token for logout",
			slog.String("error", err.Error()),
		)
	}
	var userID string
	if u, err := c.store.User(ctx); err == nil && u != nil {
		userID = u.ID
	}

	if token != "" {
		if err := c.api.Logout(ctx, token); err != nil {
			c.logger.WarnContext(ctx, "logout notification failed",
				slog.String("error", err.Error()),
			)
		}
	}

	if err := c.clear(ctx); err != nil {
		return err
	}

	if err := c.producer.PublishLoggedOut(ctx, userID); err != nil {
		c.logger.ErrorContext(ctx, "failed to publish session.logged_out event",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
	c.logger.InfoContext(ctx, "user logged out", slog.String("user_id", userID))
	return nil
}

// FetchMyInfo refreshes the stored profile from the API. An unauthorized
// answer clears the session.
func (c *Controller) FetchMyInfo(ctx context.Context) (*domain.User, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	u, err := c.api.MyInfo(ctx)
	if err != nil {
		if errors.Is(err, apperrors.ErrUnauthorized) && ctx.Err() == nil {
			c.logger.InfoContext(ctx, "profile fetch unauthorized, clearing session")
			if clearErr := c.clear(ctx); clearErr != nil {
				return nil, clearErr
			}
		}
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := c.store.SetUser(ctx, u); err != nil {
		return nil, fmt.Errorf("store user: %w", err)
	}
	return u, nil
}

// RefreshToken exchanges the stored token for a new one. The API client
// clears the session when the exchange fails.
func (c *Controller) RefreshToken(ctx context.Context) (string, error) {
	token, err := c.api.Refresh(ctx)
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", apperrors.Unauthorized("not signed in")
	}
	return token, nil
}
