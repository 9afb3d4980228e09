// Package storetest holds the behaviour every store.Store backend must share.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pinash124/bike-hub-sub000/internal/store"
	apperrors "github.com/Pinash124/bike-hub-sub000/pkg/errors"
)

// Run exercises the store.Store contract against stores built by newStore.
// Each subtest gets a fresh store.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("GetMissing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(ctx, "token")
		require.Error(t, err)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("SetThenGet", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, "token", []byte("T1")))

		got, err := s.Get(ctx, "token")
		require.NoError(t, err)
		assert.Equal(t, []byte("T1"), got)
	})

	t.Run("SetOverwrites", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, "token", []byte("T1")))
		require.NoError(t, s.Set(ctx, "token", []byte("T2")))

		got, err := s.Get(ctx, "token")
		require.NoError(t, err)
		assert.Equal(t, []byte("T2"), got)
	})

	t.Run("ReturnedValueIsACopy", func(t *testing.T) {
		s := newStore(t)
		in := []byte(`{"id":"1"}`)
		require.NoError(t, s.Set(ctx, "user", in))
		in[0] = 'X'

		got, err := s.Get(ctx, "user")
		require.NoError(t, err)
		got[1] = 'Y'

		again, err := s.Get(ctx, "user")
		require.NoError(t, err)
		assert.Equal(t, []byte(`{"id":"1"}`), again)
	})

	t.Run("DeleteSeveral", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, "token", []byte("T1")))
		require.NoError(t, s.Set(ctx, "user", []byte("{}")))
		require.NoError(t, s.Set(ctx, "cart_items", []byte("[]")))

		require.NoError(t, s.Delete(ctx, "token", "user"))

		_, err := s.Get(ctx, "token")
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
		_, err = s.Get(ctx, "user")
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
		_, err = s.Get(ctx, "cart_items")
		assert.NoError(t, err)
	})

	t.Run("DeleteMissingIsNoop", func(t *testing.T) {
		s := newStore(t)
		assert.NoError(t, s.Delete(ctx, "never-set"))
		assert.NoError(t, s.Delete(ctx))
	})
}
