package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/livepen/internal/domain/bridge"
	"github.com/GriffinCanCode/livepen/internal/infrastructure/clock"
	"github.com/GriffinCanCode/livepen/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/livepen/internal/shared/types"
)

func newManager(t *testing.T) (*Manager, *clock.FakeClock) {
	t.Helper()
	fake := clock.Fake(epoch)
	m := NewManager(Options{Clock: fake}).WithMetrics(monitoring.NewMetrics())
	t.Cleanup(m.CloseAll)
	return m, fake
}

func TestManagerCreate(t *testing.T) {
	m, _ := newManager(t)

	markup := "<p>custom</p>"
	s := m.Create(types.CreateSessionRequest{Markup: &markup})

	got, ok := m.Get(s.ID().String())
	require.True(t, ok)
	assert.Same(t, s, got)

	assert.Equal(t, markup, s.Buffers().Markup)
	assert.Equal(t, DefaultTemplate().Style, s.Buffers().Style)
	assert.Equal(t, uint64(1), s.Renders(), "Create performs the first render")
	assert.Contains(t, s.Document(), markup)

	// Overrides belong to the session; a reset goes back to them.
	s.UpdateBuffer(Markup, "<p>edited</p>")
	s.ResetAll()
	assert.Equal(t, markup, s.Buffers().Markup)

	other := m.Create(types.CreateSessionRequest{})
	assert.Equal(t, DefaultTemplate().Markup, other.Buffers().Markup)
}

func TestManagerListAndClose(t *testing.T) {
	m, fake := newManager(t)

	first := m.Create(types.CreateSessionRequest{})
	time.Sleep(2 * time.Millisecond)
	second := m.Create(types.CreateSessionRequest{})

	list := m.List()
	require.Len(t, list, 2)
	assert.Equal(t, first.ID().String(), list[0].ID)
	assert.Equal(t, second.ID().String(), list[1].ID)

	assert.True(t, m.Close(first.ID().String()))
	assert.False(t, m.Close(first.ID().String()))
	_, ok := m.Get(first.ID().String())
	assert.False(t, ok)
	assert.Len(t, m.List(), 1)

	m.CloseAll()
	assert.Empty(t, m.List())

	second.UpdateBuffer(Markup, "<p>late</p>")
	fake.Advance(time.Second)
	assert.Equal(t, uint64(1), second.Renders(), "closed sessions stop rendering")
}

func TestManagerStats(t *testing.T) {
	m, _ := newManager(t)

	a := m.Create(types.CreateSessionRequest{})
	b := m.Create(types.CreateSessionRequest{})

	a.UpdateBuffer(Script, "console.log(1)")
	b.AppendDiagnostic(bridge.NewMessage(bridge.MethodWarn, "w").Record(epoch))
	b.AppendDiagnostic(bridge.NewMessage(bridge.MethodError, "e").Record(epoch))
	require.NoError(t, b.Attach(&surface{clock: clock.Real()}, "test"))

	stats := m.Stats()
	assert.Equal(t, types.Stats{
		TotalSessions:  2,
		MountedSurface: 1,
		PendingRenders: 1,
		Diagnostics:    2,
	}, stats)
}
