// Package apiclient talks to the marketplace API. Client.Do is the
// authenticated request path: it attaches the session's bearer token and,
// when the API answers 401, refreshes the token once and reissues the call
// once.
package apiclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	apperrors "github.com/Pinash124/bike-hub-sub000/pkg/errors"
	"github.com/Pinash124/bike-hub-sub000/pkg/httpclient"
	"github.com/Pinash124/bike-hub-sub000/pkg/logger"
	"github.com/Pinash124/bike-hub-sub000/pkg/tracing"
)

const (
	tracerName        = "storefront/apiclient"
	correlationHeader = "X-Correlation-ID"
	maxResponseBytes  = 1 << 20
)

// TokenStore is the part of the session the client reads and refreshes.
type TokenStore interface {
	Token(ctx context.Context) (string, error)
	SetToken(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// Config holds marketplace API settings.
type Config struct {
	BaseURL string
	// SuccessCode is the business code a successful envelope carries. It is
	// only checked when CheckSuccessCode is set and the envelope has a code.
	SuccessCode      int
	CheckSuccessCode bool
}

// Request describes one API call. Body is kept as bytes so the call can be
// reissued after a refresh.
type Request struct {
	Method string
	Path   string
	Body   []byte
	Header http.Header
}

// Response is a fully read API response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Err converts a non-2xx response into an AppError.
func (r *Response) Err(operation string) error {
	return httpclient.ParseResponseError(&http.Response{
		StatusCode: r.StatusCode,
		Header:     r.Header,
		Body:       io.NopCloser(bytes.NewReader(r.Body)),
	}, operation)
}

// Client is the marketplace API client.
type Client struct {
	http   httpclient.Doer
	tokens TokenStore
	cfg    Config
	logger *slog.Logger
	flight singleflight.Group
}

// New creates a Client. Both httpclient.Client and
// httpclient.CircuitBreakerClient satisfy doer.
func New(cfg Config, doer httpclient.Doer, tokens TokenStore, logger *slog.Logger) *Client {
	return &Client{
		http:   doer,
		tokens: tokens,
		cfg:    cfg,
		logger: logger,
	}
}

// Do sends req with the current bearer token. A 401 on a call that carried a
// token triggers one refresh and one retry; if the refresh yields nothing the
// original 401 response is returned. Other statuses and transport errors are
// returned as they are.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("load token: %w", err)
	}

	resp, err := c.send(ctx, req, token)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized || token == "" {
		return resp, nil
	}

	fresh, err := c.tokenAfter401(ctx, token)
	if err != nil || fresh == "" {
		if err != nil && ctx.Err() != nil {
			return nil, err
		}
		return resp, nil
	}

	apiRetriesTotal.Inc()
	c.logger.DebugContext(ctx, "retrying request with refreshed token",
		slog.String("method", req.Method),
		slog.String("path", req.Path),
	)
	return c.send(ctx, req, fresh)
}

// tokenAfter401 returns the token to retry with. When another call already
// replaced the rejected token, that replacement is used without refreshing
// again.
func (c *Client) tokenAfter401(ctx context.Context, rejected string) (string, error) {
	current, err := c.tokens.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("load token: %w", err)
	}
	if current != "" && current != rejected {
		return current, nil
	}
	return c.Refresh(ctx)
}

// send performs exactly one exchange. token may be empty.
func (c *Client) send(ctx context.Context, req Request, token string) (*Response, error) {
	body := io.Reader(http.NoBody)
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.cfg.BaseURL+req.Path, body)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", req.Path, err)
	}

	for key, values := range req.Header {
		if http.CanonicalHeaderKey(key) == "Authorization" {
			continue
		}
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	if httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "application/json")
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	ctx, correlationID := logger.EnsureCorrelationID(ctx)
	httpReq.Header.Set(correlationHeader, correlationID)

	ctx, span := tracing.StartClientSpan(ctx, tracerName, httpReq)
	start := time.Now()
	resp, err := c.http.Do(ctx, httpReq)
	apiRequestDuration.WithLabelValues(req.Path).Observe(time.Since(start).Seconds())
	if err != nil {
		tracing.EndClientSpan(span, 0, err)
		apiRequestsTotal.WithLabelValues(req.Path, "error").Inc()
		return nil, c.transportError(ctx, req, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		tracing.EndClientSpan(span, resp.StatusCode, err)
		apiRequestsTotal.WithLabelValues(req.Path, "error").Inc()
		return nil, c.transportError(ctx, req, err)
	}
	tracing.EndClientSpan(span, resp.StatusCode, nil)
	apiRequestsTotal.WithLabelValues(req.Path, strconv.Itoa(resp.StatusCode)).Inc()

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: raw}, nil
}

func (c *Client) transportError(ctx context.Context, req Request, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.Path, ctxErr)
	}
	c.logger.WarnContext(ctx, "marketplace API unreachable",
		slog.String("method", req.Method),
		slog.String("path", req.Path),
		slog.String("error", err.Error()),
	)
	if errors.Is(err, httpclient.ErrCircuitOpen) || errors.Is(err, httpclient.ErrCircuitHalfOpen) {
		return apperrors.ServiceUnavailable("marketplace is temporarily unavailable, please retry shortly")
	}
	return apperrors.Network(err)
}
