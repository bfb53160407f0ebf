package bolt

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roboticsapi/robotics-api-sub003/internal/ir"
	"github.com/roboticsapi/robotics-api-sub003/internal/store"
)

func openTest(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bindings.db")
	s, err := Open(path)
	require.NoError(t, err)
	return s, path
}

func rec(key string, seq int64) ir.BindingRecord {
	return ir.BindingRecord{Key: key, RemoteNet: "net-1", Environment: "env-1", ValueType: "Double", ExprKey: "e", CreatedSeq: seq}
}

func TestStore_Basics(t *testing.T) {
	s, path := openTest(t)
	ctx := context.Background()

	require.NoError(t, s.PutBinding(ctx, rec("b", 2)))
	require.NoError(t, s.PutBinding(ctx, rec("a", 2)))
	require.NoError(t, s.PutBinding(ctx, rec("c", 1)))

	dup := rec("a", 9)
	dup.RemoteNet = "net-9"
	require.NoError(t, s.PutBinding(ctx, dup))

	got, err := s.Binding(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, rec("a", 2), got, "first write wins")

	require.NoError(t, s.ReleaseBinding(ctx, "c", 5))
	require.NoError(t, s.ReleaseBinding(ctx, "c", 6))
	require.NoError(t, s.Close())

	// reopen to check durability
	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	all, err := s.Bindings(ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].Key)
	assert.Equal(t, int64(5), all[0].ReleasedSeq)
	assert.Equal(t, "a", all[1].Key)
	assert.Equal(t, "b", all[2].Key)

	active, err := s.Bindings(ctx, true)
	require.NoError(t, err)
	assert.Len(t, active, 2)
}

func TestStore_NotFound(t *testing.T) {
	s, _ := openTest(t)
	defer s.Close()
	ctx := context.Background()

	_, err := s.Binding(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.ReleaseBinding(ctx, "missing", 1), store.ErrNotFound)
	assert.Error(t, s.PutBinding(ctx, ir.BindingRecord{}))
}
