// Package kvtest holds the shared behavioural test for kv.Store backends.
package kvtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lingofin/lingofin-hub/pkg/kv"
)

// RunContract exercises the Store contract against s. Backends call it from
// their own tests.
func RunContract(t *testing.T, s kv.Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	require.ErrorIs(t, err, kv.ErrKeyNotFound)

	require.NoError(t, s.Set(ctx, "k", []byte("v1")))
	require.NoError(t, s.Set(ctx, "k", []byte("v2")))

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "v2", string(got))

	require.NoError(t, s.Delete(ctx, "k"))
	_, err = s.Get(ctx, "k")
	require.ErrorIs(t, err, kv.ErrKeyNotFound)

	require.NoError(t, s.Delete(ctx, "k"), "deleting a missing key is not an error")
}
