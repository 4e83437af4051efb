package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Errors(t *testing.T) {
	t.Parallel()

	_, err := New(nil, 0)
	assert.ErrorContains(t, err, "no files to watch")

	_, err = New([]string{filepath.Join(t.TempDir(), "missing-dir", "a.yml")}, 0)
	assert.ErrorContains(t, err, "watching directory")
}

func TestWatcher_ReportsWatchedFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	watched := filepath.Join(dir, "suite.yml")
	other := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(watched, []byte("features: []\n"), 0o644))

	w, err := New([]string{watched}, 20*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	changes := make(chan []string, 4)
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(changed []string) { changes <- changed })
	}()

	require.NoError(t, os.WriteFile(other, []byte("ignored"), 0o644))
	require.NoError(t, os.WriteFile(watched, []byte("features: [{}]\n"), 0o644))

	select {
	case changed := <-changes:
		abs, err := filepath.Abs(watched)
		require.NoError(t, err)
		assert.Equal(t, []string{abs}, changed)
	case <-ctx.Done():
		t.Fatal("no change reported")
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestWatcher_DebouncesBursts(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := filepath.Join(dir, "a.yml")
	b := filepath.Join(dir, "b.yml")
	for _, p := range []string{a, b} {
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}

	w, err := New([]string{a, b}, 300*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	changes := make(chan []string, 4)
	go func() { _ = w.Run(ctx, func(changed []string) { changes <- changed }) }()

	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(a, []byte{byte('a' + i)}, 0o644))
		require.NoError(t, os.WriteFile(b, []byte{byte('a' + i)}, 0o644))
	}

	select {
	case changed := <-changes:
		assert.Len(t, changed, 2)
	case <-ctx.Done():
		t.Fatal("no change reported")
	}
}

func TestWatcher_Close(t *testing.T) {
	t.Parallel()

	p := filepath.Join(t.TempDir(), "a.yml")
	w, err := New([]string{p}, 0)
	require.NoError(t, err)
	assert.NoError(t, w.Close())
}
