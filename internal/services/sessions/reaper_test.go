package sessions

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/rateprobe/internal/services/browser/browsertest"
)

func TestCloseStaleOnlyClosesOldSessions(t *testing.T) {
	m := newTestManager(browsertest.NewEngine(), nil)
	ctx := context.Background()

	base := time.Now()
	m.now = func() time.Time { return base.Add(-time.Hour) }
	old, err := m.CreateSession(ctx)
	require.NoError(t, err)

	m.now = func() time.Time { return base }
	fresh, err := m.CreateSession(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, m.CloseStale(ctx, 30*time.Minute))

	_, err = m.GetContext(old)
	assert.Error(t, err)
	_, err = m.GetContext(fresh)
	assert.NoError(t, err)

	assert.Equal(t, 0, m.CloseStale(ctx, 0))
}

func TestReaperRunOnce(t *testing.T) {
	m := newTestManager(browsertest.NewEngine(), nil)
	ctx := context.Background()

	base := time.Now()
	m.now = func() time.Time { return base.Add(-2 * time.Hour) }
	_, err := m.CreateSession(ctx)
	require.NoError(t, err)
	m.now = func() time.Time { return base }

	r := NewReaper(m, time.Hour, "", arbor.NewLogger())
	assert.Equal(t, 1, r.RunOnce(ctx))
	assert.Empty(t, m.ListSessions())
}

func TestReaperStartStop(t *testing.T) {
	m := newTestManager(browsertest.NewEngine(), nil)

	r := NewReaper(m, time.Hour, "*/5 * * * *", arbor.NewLogger())
	require.NoError(t, r.Start())
	assert.Error(t, r.Start())
	r.Stop()
	r.Stop()

	bad := NewReaper(m, time.Hour, "not a schedule", arbor.NewLogger())
	assert.Error(t, bad.Start())

	disabled := NewReaper(m, 0, "", arbor.NewLogger())
	assert.NoError(t, disabled.Start())
}
