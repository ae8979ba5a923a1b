package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testSinkContract exercises the behaviour every Sink must share.
func testSinkContract(t *testing.T, s Sink) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Put(ctx, "load1/games.grd", []byte("one")))
	require.NoError(t, s.Put(ctx, "load1/GUARD", []byte("manifest")))
	require.NoError(t, s.Put(ctx, "load10/games.grd", []byte("other")))

	data, err := s.Get(ctx, "load1/games.grd")
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), data)

	// Put replaces.
	require.NoError(t, s.Put(ctx, "load1/games.grd", []byte("two")))
	data, err = s.Get(ctx, "load1/games.grd")
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), data)

	// List is sorted and a trailing slash scopes to the guard, so
	// load10 stays out of load1's listing.
	names, err := s.List(ctx, "load1/")
	require.NoError(t, err)
	assert.Equal(t, []string{"load1/GUARD", "load1/games.grd"}, names)

	require.NoError(t, s.Delete(ctx, "load1/GUARD"))
	require.NoError(t, s.Delete(ctx, "load1/GUARD"))
	_, err = s.Get(ctx, "load1/GUARD")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDirSink(t *testing.T) {
	dir := t.TempDir()
	s := NewDirSink(dir)
	testSinkContract(t, s)

	// Objects are plain files under the root.
	_, err := os.Stat(filepath.Join(dir, "load1", "games.grd"))
	require.NoError(t, err)
}

func TestDirSinkListWithoutRoot(t *testing.T) {
	s := NewDirSink(filepath.Join(t.TempDir(), "never-created"))
	names, err := s.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestMemSink(t *testing.T) {
	testSinkContract(t, NewMemSink())
}

func TestMemSinkCopiesData(t *testing.T) {
	ctx := context.Background()
	s := NewMemSink()

	data := []byte("mutable")
	require.NoError(t, s.Put(ctx, "obj", data))
	data[0] = 'X'

	got, err := s.Get(ctx, "obj")
	require.NoError(t, err)
	assert.Equal(t, []byte("mutable"), got)

	got[0] = 'Y'
	again, err := s.Get(ctx, "obj")
	require.NoError(t, err)
	assert.Equal(t, []byte("mutable"), again)
}
