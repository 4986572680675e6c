//go:build unix

package singleton

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireThenReleaseAllowsReacquire(t *testing.T) {
	path := filepath.Join(t.TempDir(), "displayhelper.lock")

	lock, err := Acquire(path)
	require.NoError(t, err)
	require.NoError(t, lock.Release())

	lock2, err := Acquire(path)
	require.NoError(t, err)
	require.NoError(t, lock2.Release())
}

func TestSecondAcquireFailsWhileFirstHeld(t *testing.T) {
	path := filepath.Join(t.TempDir(), "displayhelper.lock")

	lock, err := Acquire(path)
	require.NoError(t, err)
	defer lock.Release()

	_, err = Acquire(path)
	var already ErrAlreadyRunning
	assert.True(t, errors.As(err, &already))
}

func TestReleaseIsSafeToCallOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "displayhelper.lock")

	lock, err := Acquire(path)
	require.NoError(t, err)
	assert.NoError(t, lock.Release())
}

func TestErrAlreadyRunningMessage(t *testing.T) {
	var err error = ErrAlreadyRunning{}
	assert.Equal(t, "singleton: another instance is already running", err.Error())
}
