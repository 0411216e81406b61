package goals

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "goals.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
goals:
  - id: run
    title: Run a half marathon
    priority: 0.4
    steps: [buy shoes, "run 5k"]
    done: [sign up]
  - id: read
    title: Read 12 books
    priority: 0.9
  - id: old
    title: Learn guitar
    status: archived
    priority: 1
`), 0o600))

	p := FileProvider{Path: path}
	got, err := p.ListActive(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "read", got[0].ID, "highest priority first")
	assert.Equal(t, "active", got[1].Status)
	assert.Equal(t, "buy shoes", got[1].CurrentStep)
	assert.Equal(t, 1, got[1].Progress.Completed)
	assert.Equal(t, 3, got[1].Progress.Total)
	assert.InDelta(t, 1.0/3, got[1].Progress.Ratio, 1e-9)

	got, err = p.ListActive(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestFileProviderMissingAndInvalid(t *testing.T) {
	dir := t.TempDir()
	got, err := FileProvider{Path: filepath.Join(dir, "absent.yaml")}.ListActive(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, got)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("goals: [\n"), 0o600))
	_, err = FileProvider{Path: bad}.ListActive(context.Background(), 5)
	assert.Error(t, err)
}
