package auth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Pinash124/bike-hub-sub000/internal/domain"
	apperrors "github.com/Pinash124/bike-hub-sub000/pkg/errors"
	"github.com/Pinash124/bike-hub-sub000/pkg/validator"
)

// UpdateProfile merges a partial edit into the stored user. It makes no
// network call and returns nil without error when nobody is signed in.
func (c *Controller) UpdateProfile(ctx context.Context, update domain.ProfileUpdate) (*domain.User, error) {
	if err := validator.Validate(update); err != nil {
		return nil, err
	}
	return c.mutateUser(ctx, func(u *domain.User) {
		update.Apply(u)
	})
}

// UpdateRole changes the stored user's role. Guest is not a role a signed-in
// user can hold.
func (c *Controller) UpdateRole(ctx context.Context, role domain.Role) (*domain.User, error) {
	if !role.Valid() || role == domain.RoleGuest {
		return nil, apperrors.InvalidInput(fmt.Sprintf("unknown role %q", role))
	}
	return c.mutateUser(ctx, func(u *domain.User) {
		u.Role = role
	})
}

// SetKYCVerified records the identity verification outcome.
func (c *Controller) SetKYCVerified(ctx context.Context, verified bool) (*domain.User, error) {
	return c.mutateUser(ctx, func(u *domain.User) {
		u.IsKYCVerified = verified
	})
}

func (c *Controller) mutateUser(ctx context.Context, apply func(*domain.User)) (*domain.User, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	u, err := c.store.User(ctx)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if u == nil {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	apply(u)
	if err := c.store.SetUser(ctx, u); err != nil {
		return nil, fmt.Errorf("store user: %w", err)
	}
	c.logger.DebugContext(ctx, "profile updated",
		slog.String("user_id", u.ID),
		slog.String("role", string(domain.RoleOf(u))),
	)
	return u, nil
}
