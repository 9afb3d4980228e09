// Package store defines the persistent key-value contract behind the session
// store. Values are opaque bytes; callers own the encoding.
package store

import (
	"context"
	"net/http"

	apperrors "github.com/Pinash124/bike-hub-sub000/pkg/errors"
)

// Store is a string-keyed persistent key-value store.
type Store interface {
	// Get returns the value for key, or an error wrapping
	// apperrors.ErrNotFound when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set writes value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes keys. Absent keys are ignored.
	Delete(ctx context.Context, keys ...string) error
}

// Pinger is implemented by backends that can report their own health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NotFound returns the error backends use for an absent key.
func NotFound(key string) error {
	return &apperrors.AppError{
		Code:    "NOT_FOUND",
		Message: "no value stored for " + key,
		Status:  http.StatusNotFound,
		Err:     apperrors.ErrNotFound,
	}
}
