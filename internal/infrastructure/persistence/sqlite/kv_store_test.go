package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lingofin/lingofin-hub/pkg/kv"
	"github.com/lingofin/lingofin-hub/pkg/kv/kvtest"
)

func TestStore_Contract(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	kvtest.RunContract(t, s)
}

func TestStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "current_user", []byte(`{"id":"u1"}`)))
	require.NoError(t, s.Set(ctx, "a", []byte("x")))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get(ctx, "current_user")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"u1"}`, string(got))

	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "current_user"}, keys)

	require.NoError(t, s.Delete(ctx, "current_user"))
	_, err = s.Get(ctx, "current_user")
	assert.ErrorIs(t, err, kv.ErrKeyNotFound)
}
