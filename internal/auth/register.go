package auth

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/Pinash124/bike-hub-sub000/internal/apiclient"
	apperrors "github.com/Pinash124/bike-hub-sub000/pkg/errors"
	"github.com/Pinash124/bike-hub-sub000/pkg/validator"
)

// maxOTPLimiters bounds the per-email limiter map before idle entries are
// pruned.
const maxOTPLimiters = 256

// RegisterInput is the sign-up form.
type RegisterInput struct {
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
	Name            string `json:"name" validate:"required,max=100"`
	Phone           string `json:"phone" validate:"omitempty,phone"`
}

// PendingRegistration is what a completed sign-up leaves behind to pre-fill
// the login form. It never carries the password.
type PendingRegistration struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

// Register creates the account. It never signs the user in.
func (c *Controller) Register(ctx context.Context, in RegisterInput) error {
	if err := validator.Validate(in); err != nil {
		return err
	}

	err := c.api.Register(ctx, apiclient.Registration{
		Username: in.Email,
		Password: in.Password,
		Name:     in.Name,
		Phone:    in.Phone,
	})
	if err != nil {
		c.logger.InfoContext(ctx, "registration failed",
			slog.String("email", in.Email),
			slog.String("error", err.Error()),
		)
		return err
	}

	c.mu.Lock()
	c.pending = &PendingRegistration{Email: in.Email, Name: in.Name, Phone: in.Phone}
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "account registered", slog.String("email", in.Email))
	return nil
}

// PendingRegistration returns the last successful sign-up, or nil.
func (c *Controller) PendingRegistration() *PendingRegistration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.pending == nil {
		return nil
	}
	p := *c.pending
	return &p
}

// SendOTP emails a one-time code. Repeat requests for the same address
// within the resend interval fail without a network call.
func (c *Controller) SendOTP(ctx context.Context, email string) error {
	if err := validator.Var(email, "required,email"); err != nil {
		return err
	}
	if !c.allowOTP(email) {
		return apperrors.TooManyRequests("please wait before requesting another code")
	}

	if err := c.api.SendOTP(ctx, email); err != nil {
		c.logger.WarnContext(ctx, "send otp failed",
			slog.String("email", email),
			slog.String("error", err.Error()),
		)
		return err
	}
	c.logger.InfoContext(ctx, "otp sent", slog.String("email", email))
	return nil
}

// VerifyOTPInput is the code confirmation form.
type VerifyOTPInput struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,numeric,min=4,max=8"`
}

// VerifyOTP checks a one-time code. It does not change the session.
func (c *Controller) VerifyOTP(ctx context.Context, in VerifyOTPInput) error {
	if err := validator.Validate(in); err != nil {
		return err
	}
	if err := c.api.VerifyOTP(ctx, in.Email, in.OTP); err != nil {
		c.logger.InfoContext(ctx, "otp verification failed",
			slog.String("email", in.Email),
			slog.String("error", err.Error()),
		)
		return err
	}
	return nil
}

func (c *Controller) allowOTP(email string) bool {
	if c.cfg.OTPResendInterval <= 0 {
		return true
	}
	key := strings.ToLower(strings.TrimSpace(email))
	now := c.now()

	c.otpMu.Lock()
	defer c.otpMu.Unlock()

	limiter, ok := c.otpLimiters[key]
	if !ok {
		if len(c.otpLimiters) >= maxOTPLimiters {
			c.pruneOTPLimiters(now)
		}
		limiter = rate.NewLimiter(rate.Every(c.cfg.OTPResendInterval), 1)
		c.otpLimiters[key] = limiter
	}
	return limiter.AllowN(now, 1)
}

// pruneOTPLimiters drops limiters that have fully refilled. Caller holds otpMu.
func (c *Controller) pruneOTPLimiters(now time.Time) {
	for key, l := range c.otpLimiters {
		if l.TokensAt(now) >= 1 {
			delete(c.otpLimiters, key)
		}
	}
}
