package service

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mansoorceksport/imgcrop/internal/repository"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingRemover struct{}

func (failingRemover) RemoveOlderThan(dir string, cutoff time.Time) (int, error) {
	return 2, errors.New("permission denied")
}

func TestSweepRemovesOnlyStaleTempFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := repository.NewLocalFileStore(fs)
	require.NoError(t, store.Ensure("/www/files/temp"))
	require.NoError(t, store.Ensure("/www/files/contexts/default"))

	now := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	old := now.Add(-25 * time.Hour)
	for _, p := range []string{"/www/files/temp/old.png", "/www/files/contexts/default/old.png"} {
		require.NoError(t, store.Write(p, []byte("x")))
		require.NoError(t, fs.Chtimes(p, old, old))
	}
	require.NoError(t, store.Write("/www/files/temp/new.png", []byte("x")))
	require.NoError(t, fs.Chtimes("/www/files/temp/new.png", now, now))

	sweeper := NewTempSweeper(store, "/www/files/temp", 24*time.Hour, time.Hour, log.New(io.Discard))
	sweeper.now = func() time.Time { return now }

	n, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.False(t, store.Exists("/www/files/temp/old.png"))
	assert.True(t, store.Exists("/www/files/temp/new.png"))
	assert.True(t, store.Exists("/www/files/contexts/default/old.png"), "permanent files are never swept")
}

func TestSweepReportsErrors(t *testing.T) {
	sweeper := NewTempSweeper(failingRemover{}, "/www/files/temp", time.Hour, time.Hour, log.New(io.Discard))

	n, err := sweeper.Sweep(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 2, n)
}

func TestSweeperDisabled(t *testing.T) {
	sweeper := NewTempSweeper(failingRemover{}, "/www/files/temp", 0, time.Hour, log.New(io.Discard))
	assert.False(t, sweeper.Enabled())

	n, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, sweeper.Run(context.Background()))
}

func TestSweeperRunStopsOnCancel(t *testing.T) {
	store := repository.NewLocalFileStore(afero.NewMemMapFs())
	sweeper := NewTempSweeper(store, "/www/files/temp", time.Hour, 5*time.Millisecond, log.New(io.Discard))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sweeper.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}
