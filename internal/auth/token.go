package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// EnsureFreshToken refreshes the stored token when it is a JWT expiring
// within the configured skew. Opaque tokens and tokens without an expiry are
// left alone; the 401 path handles them.
func (c *Controller) EnsureFreshToken(ctx context.Context) error {
	token, err := c.store.Token(ctx)
	if err != nil || token == "" {
		return err
	}

	exp, ok := tokenExpiry(token)
	if !ok {
		return nil
	}
	if exp.Sub(c.now()) > c.cfg.TokenRefreshSkew {
		return nil
	}

	c.logger.DebugContext(ctx, "token near expiry, refreshing",
		slog.Time("expires_at", exp),
	)
	_, err = c.RefreshToken(ctx)
	return err
}

// tokenExpiry reads exp without verifying the signature. The storefront
// holds no signing key; the API stays the judge of validity.
func tokenExpiry(token string) (time.Time, bool) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
