package export

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, dir, name string, age time.Duration) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	mod := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, mod, mod))
}

func TestSweeper_Sweep(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "csv-old-2024-01-02-03-04-05-0006.csv", time.Hour)
	touch(t, dir, ".abc.partial", time.Hour)
	touch(t, dir, "csv-new-2024-01-02-03-04-05-0006.csv", time.Second)
	touch(t, dir, "notes.txt", time.Hour)

	sw := NewSweeper(dir, 10*time.Minute, slog.New(slog.DiscardHandler))
	removed, err := sw.Sweep()
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.ElementsMatch(t, []string{"csv-new-2024-01-02-03-04-05-0006.csv", "notes.txt"}, csvFiles(t, dir))
}

func TestSweeper_MissingDir(t *testing.T) {
	sw := NewSweeper(filepath.Join(t.TempDir(), "absent"), time.Minute, nil)
	removed, err := sw.Sweep()
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestSweeper_StartStop(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "csv-old-2024-01-02-03-04-05-0006.csv", time.Hour)

	sw := NewSweeper(dir, time.Minute, slog.New(slog.DiscardHandler))
	require.Error(t, sw.Start("not a schedule"))

	require.NoError(t, sw.Start("@every 1s"))
	defer sw.Stop()
	assert.Eventually(t, func() bool {
		return len(csvFiles(t, dir)) == 0
	}, 3*time.Second, 50*time.Millisecond)
}
