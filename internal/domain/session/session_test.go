package session

import (
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/livepen/internal/domain/bridge"
	"github.com/GriffinCanCode/livepen/internal/domain/sandbox"
	"github.com/GriffinCanCode/livepen/internal/domain/scheduler"
	"github.com/GriffinCanCode/livepen/internal/infrastructure/clock"
	"github.com/GriffinCanCode/livepen/internal/shared/types"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// surface records every frame with the clock time it was loaded at.
type surface struct {
	clock  clock.Clock
	mu     sync.Mutex
	frames []sandbox.Frame
	times  []time.Time
	closed bool
}

func (s *surface) Load(frame sandbox.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, frame)
	s.times = append(s.times, s.clock.Now())
	return nil
}

func (s *surface) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *surface) loads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func (s *surface) last() (sandbox.Frame, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames[len(s.frames)-1], s.times[len(s.times)-1]
}

func newSession(t *testing.T, options Options) *Session {
	t.Helper()
	s := New(options)
	t.Cleanup(func() { s.Close() })
	return s
}

func newAttached(t *testing.T) (*Session, *surface, *clock.FakeClock) {
	t.Helper()
	fake := clock.Fake(epoch)
	s := newSession(t, Options{Clock: fake})
	surf := &surface{clock: fake}
	require.NoError(t, s.Attach(surf, "test"))
	return s, surf, fake
}

func empty() *types.Buffers {
	return &types.Buffers{}
}

func waitForRecords(t *testing.T, s *Session, n int) []bridge.Record {
	t.Helper()
	require.Eventually(t, func() bool { return len(s.Diagnostics()) == n }, 2*time.Second, 5*time.Millisecond)
	return s.Diagnostics()
}

func TestConstructionDoesNotRender(t *testing.T) {
	s, surf, fake := newAttached(t)

	assert.Zero(t, surf.loads())
	assert.Zero(t, s.Renders())
	assert.Empty(t, s.Document())
	assert.Zero(t, fake.PendingCount())

	s.Start()
	assert.Equal(t, 1, surf.loads())
	assert.Equal(t, types.PreviewIdle, s.State())
	assert.Contains(t, s.Document(), "Hello, world!")
}

func TestBurstOfEditsRendersOnce(t *testing.T) {
	s, surf, fake := newAttached(t)
	s.Start()

	s.UpdateBuffer(Markup, "<p>1</p>")
	fake.Advance(100 * time.Millisecond)
	s.UpdateBuffer(Markup, "<p>2</p>")
	fake.Advance(400 * time.Millisecond)
	s.UpdateBuffer(Markup, "<p>3</p>")
	last := fake.Now()

	fake.Advance(499 * time.Millisecond)
	assert.Equal(t, 1, surf.loads())
	assert.Equal(t, types.PreviewPendingRender, s.State())

	fake.Advance(time.Millisecond)
	require.Equal(t, 2, surf.loads())
	frame, at := surf.last()
	assert.Equal(t, last.Add(500*time.Millisecond), at)
	assert.Contains(t, frame.Document, "<p>3</p>")
	assert.NotContains(t, frame.Document, "<p>2</p>")
	assert.Equal(t, types.PreviewIdle, s.State())

	fake.Advance(time.Second)
	assert.Equal(t, 2, surf.loads())
}

func TestRenderWithoutSurfaceIsNoop(t *testing.T) {
	fake := clock.Fake(epoch)
	s := newSession(t, Options{Clock: fake})

	s.Start()
	s.UpdateBuffer(Style, "p { color: red; }")
	fake.Advance(scheduler.DefaultInterval)

	assert.False(t, s.Mounted())
	assert.Equal(t, uint64(2), s.Renders())
	assert.Contains(t, s.Document(), "p { color: red; }")
	assert.Equal(t, types.PreviewIdle, s.State())
}

func TestDiagnosticLogCap(t *testing.T) {
	s := newSession(t, Options{})

	for i := 1; i <= 101; i++ {
		s.AppendDiagnostic(bridge.NewMessage(bridge.MethodLog, strconv.Itoa(i)).Record(epoch))
	}

	records := s.Diagnostics()
	require.Len(t, records, DefaultLogCapacity)
	for i, r := range records {
		assert.Equal(t, strconv.Itoa(i+2), r.Arguments[0])
	}
}

func TestConfiguredLogCapacityCannotExceedCap(t *testing.T) {
	s := newSession(t, Options{LogCapacity: 150})

	for i := 1; i <= 150; i++ {
		s.AppendDiagnostic(bridge.NewMessage(bridge.MethodLog, strconv.Itoa(i)).Record(epoch))
	}

	records := s.Diagnostics()
	require.Len(t, records, DefaultLogCapacity)
	assert.Equal(t, "51", records[0].Arguments[0])
	assert.Equal(t, "150", records[len(records)-1].Arguments[0])
}

func TestResetAllRendersImmediately(t *testing.T) {
	s, surf, fake := newAttached(t)
	s.Start()

	s.UpdateBuffer(Markup, "<p>edited</p>")
	s.UpdateBuffer(Script, "console.log('edited')")
	s.AppendDiagnostic(bridge.NewMessage(bridge.MethodWarn, "old").Record(epoch))
	require.Equal(t, types.PreviewPendingRender, s.State())

	s.ResetAll()

	assert.Equal(t, DefaultTemplate(), s.Buffers())
	assert.Empty(t, s.Diagnostics())
	assert.Equal(t, 2, surf.loads())
	assert.Equal(t, types.PreviewIdle, s.State())
	frame, _ := surf.last()
	assert.Contains(t, frame.Document, "Hello, world!")

	// The cancelled edit timer never fires.
	fake.Advance(time.Second)
	assert.Equal(t, 2, surf.loads())
}

func TestRefreshReusesLastDocument(t *testing.T) {
	s, surf, _ := newAttached(t)
	assert.False(t, s.Refresh(), "nothing rendered yet")

	s.Start()
	first, _ := surf.last()

	s.UpdateBuffer(Markup, "<p>not yet</p>")
	require.True(t, s.Refresh())

	require.Equal(t, 2, surf.loads())
	again, _ := surf.last()
	assert.Equal(t, first.Document, again.Document)
	assert.NotEqual(t, first.ID, again.ID)
	assert.Equal(t, types.PreviewPendingRender, s.State())
}

func TestConsoleScenario(t *testing.T) {
	fake := clock.Fake(epoch)
	s := newSession(t, Options{Clock: fake, Headless: true, Template: empty()})
	s.Start()

	s.UpdateBuffer(Script, `console.log("a"); console.error("b")`)
	fake.Advance(scheduler.DefaultInterval)

	records := waitForRecords(t, s, 2)
	assert.Equal(t, bridge.MethodLog, records[0].Method)
	assert.Equal(t, []string{"a"}, records[0].Arguments)
	assert.Equal(t, bridge.MethodError, records[1].Method)
	assert.Equal(t, []string{"b"}, records[1].Arguments)
	assert.Equal(t, epoch.Add(scheduler.DefaultInterval), records[0].Timestamp)
}

func TestUncaughtErrorScenario(t *testing.T) {
	fake := clock.Fake(epoch)
	s := newSession(t, Options{Clock: fake, Headless: true, Template: empty()})
	s.Start()

	s.UpdateBuffer(Script, "var a = 1;\nvar b = 2;\nx;\nconsole.log('unreached');")
	fake.Advance(scheduler.DefaultInterval)

	records := waitForRecords(t, s, 1)
	assert.Equal(t, bridge.MethodError, records[0].Method)
	assert.Contains(t, records[0].Text(), "x is not defined")
	assert.Contains(t, records[0].Text(), "3")

	s.UpdateBuffer(Script, `console.log("still here")`)
	fake.Advance(scheduler.DefaultInterval)

	records = waitForRecords(t, s, 2)
	assert.Equal(t, []string{"still here"}, records[1].Arguments)
}

func TestSubscribe(t *testing.T) {
	s := newSession(t, Options{})

	var events []Event
	unsubscribe := s.Subscribe(func(e Event) { events = append(events, e) })

	s.AppendDiagnostic(bridge.NewMessage(bridge.MethodInfo, "one").Record(epoch))
	s.ClearDiagnostics()
	unsubscribe()
	s.AppendDiagnostic(bridge.NewMessage(bridge.MethodInfo, "two").Record(epoch))

	require.Len(t, events, 2)
	assert.Equal(t, EventDiagnostic, events[0].Type)
	assert.Equal(t, []string{"one"}, events[0].Record.Arguments)
	assert.Equal(t, EventCleared, events[1].Type)
}

func TestAttachReplacesHeadless(t *testing.T) {
	fake := clock.Fake(epoch)
	s := newSession(t, Options{Clock: fake, Headless: true})
	s.Start()

	snapshot, err := s.Snapshot()
	require.NoError(t, err)
	assert.Contains(t, snapshot, "Hello from the script buffer!")
	assert.Equal(t, HeadlessSurface, s.Info().Surface)

	browser := &surface{clock: fake}
	require.NoError(t, s.Attach(browser, "browser"))
	assert.Equal(t, 1, browser.loads(), "the current document is loaded on attach")
	assert.Equal(t, "browser", s.Info().Surface)
	_, err = s.Snapshot()
	assert.ErrorIs(t, err, ErrNoHeadless)

	assert.False(t, s.Detach(&surface{clock: fake}))
	assert.True(t, s.Detach(browser))
	assert.Equal(t, HeadlessSurface, s.Info().Surface)

	snapshot, err = s.Snapshot()
	require.NoError(t, err)
	assert.Contains(t, snapshot, "Hello from the script buffer!")
}

func TestResetAllResumesSuspendedScripts(t *testing.T) {
	fake := clock.Fake(epoch)
	config := sandbox.DefaultConfig()
	config.Timeout = 20 * time.Millisecond
	config.SuspendAfter = 2
	template := &types.Buffers{
		Markup: `<p id="out">before</p>`,
		Script: `document.getElementById("out").textContent = "ran";`,
	}
	s := newSession(t, Options{Clock: fake, Headless: true, Template: template, Sandbox: config})
	s.Start()

	for i := 0; i < 2; i++ {
		s.UpdateBuffer(Script, "while (true) {}")
		fake.Advance(scheduler.DefaultInterval)
	}

	s.ResetAll()

	snapshot, err := s.Snapshot()
	require.NoError(t, err)
	assert.Contains(t, snapshot, "ran")

	mutations, err := s.Mutations()
	require.NoError(t, err)
	require.Len(t, mutations, 1)
	assert.Equal(t, "set_text", mutations[0].Type)
}

func TestMutationsNeedHeadless(t *testing.T) {
	s := newSession(t, Options{})
	s.Start()

	_, err := s.Mutations()
	assert.ErrorIs(t, err, ErrNoHeadless)
}

func TestCloseTearsDown(t *testing.T) {
	s, surf, fake := newAttached(t)
	s.Start()
	s.UpdateBuffer(Script, "console.log(1)")
	require.Equal(t, 1, fake.PendingCount())

	require.NoError(t, s.Close())
	assert.Zero(t, fake.PendingCount())
	assert.True(t, surf.closed)
	assert.False(t, s.Mounted())

	s.UpdateBuffer(Script, "console.log(2)")
	fake.Advance(time.Second)
	assert.Equal(t, 1, surf.loads())
	assert.ErrorIs(t, s.Attach(&surface{clock: fake}, "late"), ErrClosed)
	assert.NoError(t, s.Close())
}

func TestUpdateSettings(t *testing.T) {
	s := newSession(t, Options{})

	vertical := types.OrientationVertical
	got, err := s.UpdateSettings(types.SettingsPatch{Orientation: &vertical})
	require.NoError(t, err)
	assert.Equal(t, vertical, got.Orientation)
	assert.Equal(t, got, s.Settings())

	huge := 400
	_, err = s.UpdateSettings(types.SettingsPatch{FontSize: &huge})
	assert.ErrorIs(t, err, types.ErrInvalidSettings)
	assert.Equal(t, got, s.Settings())
	assert.Equal(t, types.PreviewIdle, s.State())
}

func TestInfo(t *testing.T) {
	s := newSession(t, Options{Template: empty()})
	s.Start()
	s.UpdateBuffer(Markup, "<b>x</b>")

	info := s.Info()
	assert.True(t, strings.HasPrefix(info.ID, "sess_"))
	assert.Equal(t, "<b>x</b>", info.Buffers.Markup)
	assert.Equal(t, types.PreviewPendingRender, info.State)
	assert.Equal(t, uint64(1), info.Renders)
	assert.Empty(t, info.Surface)
}
