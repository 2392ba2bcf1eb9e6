package session

import (
	"testing"
	"time"

	"github.com/hc1200093-glitch/L-eclaireur/internal/models"
	"github.com/hc1200093-glitch/L-eclaireur/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_CreateGetDelete(t *testing.T) {
	m := NewManager(testDeps(t, testutil.NewFakeBackend(t, "x")))
	t.Cleanup(m.Close)

	ctl, err := m.Create()
	require.NoError(t, err)
	assert.Equal(t, 1, m.Count())

	got, err := m.Get(ctl.ID())
	require.NoError(t, err)
	assert.Same(t, ctl, got)

	snap, err := m.Snapshot(ctl.ID())
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusEmpty, snap.Status)

	require.NoError(t, m.Delete(ctl.ID()))
	_, err = m.Get(ctl.ID())
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, m.Delete(ctl.ID()), ErrSessionNotFound)
}

func TestManager_DeleteCancelsInFlight(t *testing.T) {
	backend := testutil.NewFakeBackend(t, "x")
	backend.Hold()
	m := NewManager(testDeps(t, backend))
	t.Cleanup(m.Close)

	ctl, err := m.Create()
	require.NoError(t, err)
	_, err = ctl.Stage([]models.Candidate{cand("a.pdf")})
	require.NoError(t, err)
	_, err = ctl.Start(false)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Busy())

	require.NoError(t, m.Delete(ctl.ID()))

	assert.False(t, ctl.Busy())
	snap := ctl.Snapshot()
	assert.Equal(t, models.SessionStatusEmpty, snap.Status)
	assert.Empty(t, snap.Files)
	assert.Equal(t, 0, m.Busy())
}

func TestManager_MaxSessions(t *testing.T) {
	m := NewManager(Deps{}, WithMaxSessions(2))
	t.Cleanup(m.Close)

	_, err := m.Create()
	require.NoError(t, err)
	_, err = m.Create()
	require.NoError(t, err)

	_, err = m.Create()
	assert.ErrorIs(t, err, ErrTooManySessions)
}

func TestManager_IdleExpiryClosesController(t *testing.T) {
	m := NewManager(Deps{}, WithExpiry(50*time.Millisecond, 10*time.Millisecond))
	t.Cleanup(m.Close)

	ctl, err := m.Create()
	require.NoError(t, err)
	_, err = ctl.Stage([]models.Candidate{cand("a.pdf")})
	require.NoError(t, err)

	updates, _ := ctl.Subscribe()

	// Get refreshes the idle timer, so only observe the registry through
	// the subscription and Count until the session is gone.
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-updates:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, m.Count())
	assert.Empty(t, ctl.Snapshot().Files)

	_, err = m.Get(ctl.ID())
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestManager_GetRefreshesExpiry(t *testing.T) {
	m := NewManager(Deps{}, WithExpiry(150*time.Millisecond, 10*time.Millisecond))
	t.Cleanup(m.Close)

	ctl, err := m.Create()
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		time.Sleep(60 * time.Millisecond)
		_, err := m.Get(ctl.ID())
		require.NoError(t, err)
	}
}
