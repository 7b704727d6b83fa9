package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetReturnsErrorForUnregisteredKind(t *testing.T) {
	c := New()
	_, err := c.Get("missing")
	assert.Error(t, err)
}

func TestGetLoadsOnceUntilBackingFileChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.json")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	calls := 0
	c := New()
	c.Register("schema", []string{path}, func() (any, error) {
		calls++
		return "loaded", nil
	})

	v1, err := c.Get("schema")
	require.NoError(t, err)
	assert.Equal(t, "loaded", v1)
	assert.Equal(t, 1, calls)

	v2, err := c.Get("schema")
	require.NoError(t, err)
	assert.Equal(t, "loaded", v2)
	assert.Equal(t, 1, calls, "second Get with an unchanged file must not reload")
}

func TestGetReloadsWhenBackingFileMtimeAdvances(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.json")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	calls := 0
	c := New()
	c.Register("schema", []string{path}, func() (any, error) {
		calls++
		return calls, nil
	})

	_, err := c.Get("schema")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, future, future))

	v, err := c.Get("schema")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, v)
}

func TestInvalidateForcesReloadRegardlessOfMtime(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.json")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	calls := 0
	c := New()
	c.Register("schema", []string{path}, func() (any, error) {
		calls++
		return calls, nil
	})

	_, err := c.Get("schema")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	c.Invalidate("schema")

	_, err = c.Get("schema")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestInvalidateByPathOnlyResetsMatchingEntries(t *testing.T) {
	dirA := t.TempDir()
	dirB := t.TempDir()
	pathA := filepath.Join(dirA, "a.json")
	pathB := filepath.Join(dirB, "b.json")
	require.NoError(t, os.WriteFile(pathA, []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(pathB, []byte("b"), 0o644))

	callsA, callsB := 0, 0
	c := New()
	c.Register("a", []string{pathA}, func() (any, error) { callsA++; return callsA, nil })
	c.Register("b", []string{pathB}, func() (any, error) { callsB++; return callsB, nil })

	_, err := c.Get("a")
	require.NoError(t, err)
	_, err = c.Get("b")
	require.NoError(t, err)
	assert.Equal(t, 1, callsA)
	assert.Equal(t, 1, callsB)

	c.invalidateByPath(pathA)

	_, err = c.Get("a")
	require.NoError(t, err)
	_, err = c.Get("b")
	require.NoError(t, err)
	assert.Equal(t, 2, callsA, "invalidating a's path must force a reload")
	assert.Equal(t, 1, callsB, "invalidating a's path must not touch b")
}

func TestGetPropagatesLoaderError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	c := New()
	c.Register("broken", []string{path}, func() (any, error) {
		return nil, assertErr{}
	})

	_, err := c.Get("broken")
	assert.Error(t, err)
}

type assertErr struct{}

func (assertErr) Error() string { return "load failed" }
