package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/Pinash124/bike-hub-sub000/pkg/errors"
)

// BackendErrorResponse mirrors the error envelope the marketplace API returns:
// a numeric business code and a human-readable message at the top level.
type BackendErrorResponse struct {
	Code    *int   `json:"code"`
	Message string `json:"message"`
}

// ParseResponseError reads the body of a non-2xx HTTP response and translates
// it into an appropriate AppError. If the body carries a message it is kept,
// otherwise the status text stands in.
//
// The caller should only invoke this when resp.StatusCode indicates an error
// (i.e., not 2xx). The response body is fully consumed and closed.
func ParseResponseError(resp *http.Response, operation string) error {
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1 MB limit
	if err != nil {
		return fmt.Errorf("%s returned status %d (failed to read body: %w)", operation, resp.StatusCode, err)
	}

	message := http.StatusText(resp.StatusCode)
	code := ""
	var backend BackendErrorResponse
	if json.Unmarshal(bodyBytes, &backend) == nil {
		if backend.Message != "" {
			message = backend.Message
		}
		if backend.Code != nil {
			code = fmt.Sprintf("%d", *backend.Code)
		}
	}

	return mapBackendError(resp.StatusCode, code, message, operation)
}

// mapBackendError translates a backend status code into an AppError that
// preserves the error semantics.
func mapBackendError(status int, code, message, operation string) error {
	switch {
	case status == http.StatusBadRequest:
		return apperrors.InvalidInput(message)
	case status == http.StatusUnauthorized:
		return apperrors.Unauthorized(message)
	case status == http.StatusForbidden:
		return apperrors.Forbidden(message)
	case status == http.StatusNotFound:
		return &apperrors.AppError{Code: "NOT_FOUND", Message: message, Status: status, Err: apperrors.ErrNotFound}
	case status == http.StatusConflict:
		return apperrors.Conflict(message)
	case status == http.StatusGone:
		return apperrors.Gone(message)
	case status == http.StatusTooManyRequests:
		return apperrors.TooManyRequests(message)
	case status == http.StatusServiceUnavailable:
		return apperrors.ServiceUnavailable(message)
	case status >= 500:
		return fmt.Errorf("%s: server error (%d/%s): %s", operation, status, code, message)
	default:
		if code == "" {
			code = fmt.Sprintf("HTTP_%d", status)
		}
		return &apperrors.AppError{
			Code:    code,
			Message: message,
			Status:  status,
		}
	}
}

// IsSuccess reports whether the status code is 2xx.
func IsSuccess(status int) bool {
	return status >= 200 && status < 300
}
