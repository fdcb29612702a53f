package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/livepen/internal/domain/bridge"
	"github.com/GriffinCanCode/livepen/internal/domain/sandbox"
	"github.com/GriffinCanCode/livepen/internal/domain/session"
	"github.com/GriffinCanCode/livepen/internal/shared/types"
)

// inbound mirrors types.WSOutbound with a typed diagnostic.
type inbound struct {
	Type       string         `json:"type"`
	Document   string         `json:"document"`
	Sandbox    string         `json:"sandbox"`
	Frame      string         `json:"frame"`
	Diagnostic *bridge.Record `json:"diagnostic"`
	Error      string         `json:"error"`
}

func setup(t *testing.T, options session.Options) (*httptest.Server, *session.Manager, *Handler) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	manager := session.NewManager(options)
	handler := NewHandler(manager, nil, nil)

	router := gin.New()
	router.GET("/api/sessions/:id/ws", handler.HandleConnection)
	srv := httptest.NewServer(router)

	t.Cleanup(func() {
		handler.Close()
		srv.Close()
		manager.CloseAll()
	})
	return srv, manager, handler
}

func dial(t *testing.T, srv *httptest.Server, sessionID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/sessions/" + sessionID + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg interface{}) {
	t.Helper()
	data, err := sonic.Marshal(msg)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

// next reads messages until one of the given type arrives.
func next(t *testing.T, conn *websocket.Conn, msgType string) inbound {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)

		var msg inbound
		require.NoError(t, sonic.Unmarshal(data, &msg))
		if msg.Type == msgType {
			return msg
		}
	}
}

func TestConnectionReceivesCurrentDocument(t *testing.T) {
	srv, manager, _ := setup(t, session.Options{})
	s := manager.Create(types.CreateSessionRequest{})

	conn := dial(t, srv, s.ID().String())
	render := next(t, conn, types.WSRender)

	assert.Equal(t, s.Document(), render.Document)
	assert.Equal(t, sandbox.DefaultPolicy().SandboxAttr(), render.Sandbox)
	assert.NotContains(t, render.Sandbox, "allow-top-navigation")
	assert.NotContains(t, render.Sandbox, "allow-same-origin")
	assert.NotEmpty(t, render.Frame)

	require.Eventually(t, s.Mounted, time.Second, 5*time.Millisecond)
	assert.True(t, strings.HasPrefix(s.Info().Surface, "conn_"))
}

func TestRelayedMessagesBecomeDiagnostics(t *testing.T) {
	srv, manager, _ := setup(t, session.Options{})
	s := manager.Create(types.CreateSessionRequest{})

	conn := dial(t, srv, s.ID().String())
	next(t, conn, types.WSRender)

	send(t, conn, map[string]interface{}{
		"type": "message",
		"data": map[string]interface{}{"kind": "console", "method": "warn", "arguments": []string{"careful"}},
	})
	send(t, conn, map[string]interface{}{
		"type": "message",
		"data": map[string]interface{}{"app": "user traffic"},
	})

	msg := next(t, conn, types.WSDiagnostic)
	require.NotNil(t, msg.Diagnostic)
	assert.Equal(t, bridge.MethodWarn, msg.Diagnostic.Method)
	assert.Equal(t, []string{"careful"}, msg.Diagnostic.Arguments)

	records := s.Diagnostics()
	require.Len(t, records, 1)
	assert.Equal(t, "careful", records[0].Text())
}

func TestEditResetAndPing(t *testing.T) {
	srv, manager, _ := setup(t, session.Options{})
	s := manager.Create(types.CreateSessionRequest{})

	conn := dial(t, srv, s.ID().String())
	next(t, conn, types.WSRender)

	send(t, conn, types.WSInbound{Type: types.WSEdit, Buffer: "css", Text: "h1 { color: green; }"})
	require.Eventually(t, func() bool {
		return s.Buffers().Style == "h1 { color: green; }"
	}, time.Second, 5*time.Millisecond)

	send(t, conn, types.WSInbound{Type: types.WSEdit, Buffer: "json"})
	assert.Contains(t, next(t, conn, types.WSError).Error, "unknown buffer")

	send(t, conn, types.WSInbound{Type: types.WSReset})
	next(t, conn, types.WSCleared)
	render := next(t, conn, types.WSRender)
	assert.Contains(t, render.Document, "Hello, world!")
	assert.Equal(t, session.DefaultTemplate(), s.Buffers())

	send(t, conn, types.WSInbound{Type: types.WSPing})
	next(t, conn, types.WSPong)

	send(t, conn, types.WSInbound{Type: "teleport"})
	assert.Equal(t, "unknown message type", next(t, conn, types.WSError).Error)
}

func TestRefreshResendsDocument(t *testing.T) {
	srv, manager, _ := setup(t, session.Options{})
	s := manager.Create(types.CreateSessionRequest{})

	conn := dial(t, srv, s.ID().String())
	first := next(t, conn, types.WSRender)

	send(t, conn, types.WSInbound{Type: types.WSRefresh})
	again := next(t, conn, types.WSRender)
	assert.Equal(t, first.Document, again.Document)
	assert.NotEqual(t, first.Frame, again.Frame)
}

func TestDisconnectRestoresHeadless(t *testing.T) {
	srv, manager, handler := setup(t, session.Options{Headless: true})
	s := manager.Create(types.CreateSessionRequest{})
	require.Equal(t, session.HeadlessSurface, s.Info().Surface)

	conn := dial(t, srv, s.ID().String())
	next(t, conn, types.WSRender)
	assert.NotEqual(t, session.HeadlessSurface, s.Info().Surface)
	assert.Equal(t, 1, handler.Connections())

	conn.Close()
	require.Eventually(t, func() bool {
		return s.Info().Surface == session.HeadlessSurface
	}, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return handler.Connections() == 0 }, time.Second, 5*time.Millisecond)

	_, err := s.Snapshot()
	assert.NoError(t, err)
}

func TestSecondConnectionReplacesFirst(t *testing.T) {
	srv, manager, _ := setup(t, session.Options{})
	s := manager.Create(types.CreateSessionRequest{})

	first := dial(t, srv, s.ID().String())
	next(t, first, types.WSRender)

	second := dial(t, srv, s.ID().String())
	next(t, second, types.WSRender)

	// The replaced connection is closed by the server.
	require.NoError(t, first.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		if _, _, err := first.ReadMessage(); err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), err.Error())
			break
		}
	}
	assert.True(t, s.Mounted())
}

func TestUnknownSession(t *testing.T) {
	srv, _, _ := setup(t, session.Options{})

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/sessions/sess_missing/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
