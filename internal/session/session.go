// Package session gives typed access to the persisted session keys on top of
// a store.Store. It holds no state of its own; every read goes to the store.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Pinash124/bike-hub-sub000/internal/domain"
	"github.com/Pinash124/bike-hub-sub000/internal/store"
	apperrors "github.com/Pinash124/bike-hub-sub000/pkg/errors"
)

// Persisted keys.
const (
	KeyToken     = "token"
	KeyUser      = "user"
	KeyRole      = "role"
	KeyCartItems = "cart_items"
)

// Session reads and writes the persisted session state.
type Session struct {
	store store.Store
}

// New creates a Session over s.
func New(s store.Store) *Session {
	return &Session{store: s}
}

// Token returns the bearer token, or "" when none is stored.
func (s *Session) Token(ctx context.Context) (string, error) {
	raw, err := s.store.Get(ctx, KeyToken)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("read token: %w", err)
	}
	return string(raw), nil
}

// SetToken stores token raw. An empty token deletes the key.
func (s *Session) SetToken(ctx context.Context, token string) error {
	if token == "" {
		return s.ClearToken(ctx)
	}
	if err := s.store.Set(ctx, KeyToken, []byte(token)); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	return nil
}

// ClearToken removes the token only.
func (s *Session) ClearToken(ctx context.Context) error {
	if err := s.store.Delete(ctx, KeyToken); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}

// User returns the stored profile, or nil when none is stored.
func (s *Session) User(ctx context.Context) (*domain.User, error) {
	raw, err := s.store.Get(ctx, KeyUser)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("read user: %w", err)
	}
	var u domain.User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, fmt.Errorf("decode stored user: %w", err)
	}
	return &u, nil
}

// SetUser stores u together with its derived role. A nil user removes both,
// leaving the session a guest.
func (s *Session) SetUser(ctx context.Context, u *domain.User) error {
	if u == nil {
		if err := s.store.Delete(ctx, KeyUser, KeyRole); err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		return nil
	}

	raw, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	role, err := json.Marshal(domain.RoleOf(u))
	if err != nil {
		return fmt.Errorf("encode role: %w", err)
	}
	if err := s.store.Set(ctx, KeyUser, raw); err != nil {
		return fmt.Errorf("write user: %w", err)
	}
	if err := s.store.Set(ctx, KeyRole, role); err != nil {
		return fmt.Errorf("write role: %w", err)
	}
	return nil
}

// Role returns the role derived from the stored user. The persisted role key
// is written for readers outside this process; the user record is
// authoritative here.
func (s *Session) Role(ctx context.Context) (domain.Role, error) {
	u, err := s.User(ctx)
	if err != nil {
		return domain.RoleGuest, err
	}
	return domain.RoleOf(u), nil
}

// CartItems returns the persisted cart lines, or an empty list.
func (s *Session) CartItems(ctx context.Context) (domain.Items, error) {
	raw, err := s.store.Get(ctx, KeyCartItems)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return domain.Items{}, nil
		}
		return nil, fmt.Errorf("read cart items: %w", err)
	}
	var items domain.Items
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode stored cart items: %w", err)
	}
	if items == nil {
		items = domain.Items{}
	}
	return items, nil
}

// SetCartItems replaces the persisted cart lines.
func (s *Session) SetCartItems(ctx context.Context, items domain.Items) error {
	if items == nil {
		items = domain.Items{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode cart items: %w", err)
	}
	if err := s.store.Set(ctx, KeyCartItems, raw); err != nil {
		return fmt.Errorf("write cart items: %w", err)
	}
	return nil
}

// Clear removes token, user and role. The cart survives a logout.
func (s *Session) Clear(ctx context.Context) error {
	if err := s.store.Delete(ctx, KeyToken, KeyUser, KeyRole); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
