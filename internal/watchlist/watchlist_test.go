package watchlist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Parallel()

	p := filepath.Join(t.TempDir(), "domains.txt")
	require.NoError(t, os.WriteFile(p, []byte("a.com\r\n\n  B.com\nc.com\n"), 0o600))

	got, err := File{Path: p}.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.com", "", "  B.com", "c.com"}, got)
}

func TestLoad_EmptyAndMissing(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))

	got, err := File{Path: empty}.Load()
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = File{Path: filepath.Join(dir, "missing.txt")}.Load()
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSave_RoundTripKeepsMode(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p := filepath.Join(dir, "domains.txt")
	require.NoError(t, os.WriteFile(p, []byte("a.com\nb.com\n"), 0o600))

	f := File{Path: p}
	require.NoError(t, f.Save([]string{"a.com", "", "c.com"}))

	b, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "a.com\n\nc.com\n", string(b))

	st, err := os.Stat(p)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), st.Mode().Perm())

	got, err := f.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.com", "", "c.com"}, got)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp file left behind")
}

func TestSave_Empty(t *testing.T) {
	t.Parallel()

	p := filepath.Join(t.TempDir(), "domains.txt")
	require.NoError(t, File{Path: p}.Save(nil))
	b, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Empty(t, b)
}
