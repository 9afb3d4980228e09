package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	apperrors "github.com/Pinash124/bike-hub-sub000/pkg/errors"
)

const refreshFlightKey = "refresh"

type tokenRequest struct {
	Token string `json:"token"`
}

type refreshResult struct {
	Authenticated *bool  `json:"authenticated"`
	Token         string `json:"token"`
}

// Refresh exchanges the stored token for a new one and stores it. It returns
// "" without a network call when no token is stored. Any failure clears the
// session and returns "" with the cause.
//
// Concurrent callers share one in-flight refresh. The refresh runs detached
// from the caller's cancellation so one caller giving up does not fail the
// others; a cancelled caller returns early with its context error.
func (c *Client) Refresh(ctx context.Context) (string, error) {
	ch := c.flight.DoChan(refreshFlightKey, func() (any, error) {
		return c.refresh(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (c *Client) refresh(ctx context.Context) (string, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("load token: %w", err)
	}
	if token == "" {
		tokenRefreshTotal.WithLabelValues(refreshNoToken).Inc()
		return "", nil
	}

	fresh, err := c.requestRefresh(ctx, token)
	if err != nil {
		return "", c.failRefresh(ctx, err)
	}
	if err := c.tokens.SetToken(ctx, fresh); err != nil {
		return "", c.failRefresh(ctx, fmt.Errorf("store refreshed token: %w", err))
	}
	tokenRefreshTotal.WithLabelValues(refreshSuccess).Inc()
	c.logger.InfoContext(ctx, "token refreshed")
	return fresh, nil
}

// failRefresh clears the session and returns err.
func (c *Client) failRefresh(ctx context.Context, err error) error {
	tokenRefreshTotal.WithLabelValues(refreshFailed).Inc()
	c.logger.WarnContext(ctx, "token refresh failed, clearing session",
		slog.String("error", err.Error()),
	)
	if clearErr := c.tokens.Clear(ctx); clearErr != nil {
		c.logger.ErrorContext(ctx, "failed to clear session after refresh failure",
			slog.String("error", clearErr.Error()),
		)
	}
	return err
}

func (c *Client) requestRefresh(ctx context.Context, token string) (string, error) {
	body, err := json.Marshal(tokenRequest{Token: token})
	if err != nil {
		return "", fmt.Errorf("marshal refresh request: %w", err)
	}

	resp, err := c.send(ctx, Request{Method: http.MethodPost, Path: PathRefresh, Body: body}, "")
	if err != nil {
		return "", err
	}
	result, err := decodeResult[refreshResult](resp, "refresh", c.cfg)
	if err != nil {
		return "", err
	}
	if result.Authenticated != nil && !*result.Authenticated {
		return "", apperrors.Unauthorized("session expired, please sign in again")
	}
	if result.Token == "" {
		return "", apperrors.MalformedResponse("refresh response carries no token")
	}
	return result.Token, nil
}
