package sandbox

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/livepen/internal/domain/assembler"
	"github.com/GriffinCanCode/livepen/internal/domain/bridge"
)

type fakeSurface struct {
	mu     sync.Mutex
	frames []Frame
	closed bool
}

func (f *fakeSurface) Load(frame Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, frame)
	return nil
}

func (f *fakeSurface) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSurface) loaded() []Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Frame{}, f.frames...)
}

type inbox struct {
	mu   sync.Mutex
	msgs []bridge.Message
}

func (i *inbox) deliver(m bridge.Message) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.msgs = append(i.msgs, m)
}

func (i *inbox) all() []bridge.Message {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]bridge.Message{}, i.msgs...)
}

func TestRenderWithoutSurfaceIsNoop(t *testing.T) {
	c := NewController(DefaultConfig(), nil, nil, nil)
	defer c.Close()

	assert.False(t, c.Mounted())
	assert.False(t, c.Render("<p>a</p>"))
	assert.Equal(t, "<p>a</p>", c.Last())

	s := &fakeSurface{}
	require.NoError(t, c.Mount(s, "fake"))
	frames := s.loaded()
	require.Len(t, frames, 1, "mount loads the remembered document")
	assert.Equal(t, "<p>a</p>", frames[0].Document)
}

func TestRenderReplacesDocument(t *testing.T) {
	c := NewController(DefaultConfig(), nil, nil, nil)
	defer c.Close()

	s := &fakeSurface{}
	require.NoError(t, c.Mount(s, "fake"))
	assert.Empty(t, s.loaded())

	assert.True(t, c.Render("one"))
	assert.True(t, c.Render("two"))
	assert.True(t, c.Refresh())

	frames := s.loaded()
	require.Len(t, frames, 3)
	assert.Equal(t, "two", frames[2].Document)
	assert.NotEqual(t, frames[1].ID, frames[2].ID, "every load is a new frame")
	assert.Equal(t, DefaultPolicy(), frames[0].Policy)
}

func TestMountReplacesAndUnmount(t *testing.T) {
	c := NewController(DefaultConfig(), nil, nil, nil)
	defer c.Close()

	first := &fakeSurface{}
	second := &fakeSurface{}
	require.NoError(t, c.Mount(first, "a"))
	require.NoError(t, c.Mount(second, "b"))
	assert.True(t, first.closed)

	assert.False(t, c.Unmount(first))
	assert.True(t, c.Unmount(second))
	assert.False(t, second.closed, "unmount leaves closing to the owner")
	assert.False(t, c.Mounted())
}

func TestPostDeliversInOrder(t *testing.T) {
	box := &inbox{}
	c := NewController(DefaultConfig(), box.deliver, nil, nil)
	defer c.Close()

	for _, text := range []string{"1", "2", "3"} {
		raw, err := bridge.Encode(bridge.NewMessage(bridge.MethodLog, text))
		require.NoError(t, err)
		c.Post(raw)
	}
	c.Post([]byte(`{"kind":"resize"}`))
	c.Post([]byte(`not json`))

	require.Eventually(t, func() bool { return len(box.all()) == 3 }, time.Second, 5*time.Millisecond)
	msgs := box.all()
	assert.Equal(t, []string{"1"}, msgs[0].Arguments)
	assert.Equal(t, []string{"2"}, msgs[1].Arguments)
	assert.Equal(t, []string{"3"}, msgs[2].Arguments)
}

func TestPostDropsOnFullInbox(t *testing.T) {
	block := make(chan struct{})
	config := DefaultConfig()
	config.InboxSize = 2

	c := NewController(config, func(bridge.Message) { <-block }, nil, nil)

	raw, err := bridge.Encode(bridge.NewMessage(bridge.MethodLog, "x"))
	require.NoError(t, err)

	// One message is held by the blocked pump, two fill the inbox.
	for i := 0; i < 10; i++ {
		c.Post(raw)
	}

	assert.GreaterOrEqual(t, c.Dropped(), uint64(7))
	close(block)
	require.NoError(t, c.Close())

	assert.NotPanics(t, func() { c.Post(raw) })
	assert.False(t, c.Render("late"))
}

func TestCloseClosesSurface(t *testing.T) {
	c := NewController(DefaultConfig(), nil, nil, nil)
	s := &fakeSurface{}
	require.NoError(t, c.Mount(s, "fake"))

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.True(t, s.closed)
	assert.ErrorIs(t, c.Mount(&fakeSurface{}, "late"), ErrClosed)
}

func TestControllerWithHeadless(t *testing.T) {
	box := &inbox{}
	c := NewController(DefaultConfig(), box.deliver, nil, nil)
	defer c.Close()

	h := NewHeadless(c, nil, DefaultConfig(), nil, nil)
	require.NoError(t, c.Mount(h, "headless"))

	c.Render(assembler.Assemble("", "", "console.log(\"ready\");\n\nx;"))

	require.Eventually(t, func() bool { return len(box.all()) == 2 }, time.Second, 5*time.Millisecond)
	msgs := box.all()
	assert.Equal(t, []string{"ready"}, msgs[0].Arguments)
	assert.Equal(t, bridge.MethodError, msgs[1].Method)
	assert.True(t, strings.Contains(msgs[1].Arguments[0], "x is not defined"))
	assert.True(t, strings.Contains(msgs[1].Arguments[0], "3"))

	// The host keeps working after the failure.
	c.Render(assembler.Assemble("", "", `console.warn("again")`))
	require.Eventually(t, func() bool { return len(box.all()) == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, bridge.MethodWarn, box.all()[2].Method)
}
