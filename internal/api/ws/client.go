package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/livepen/internal/domain/sandbox"
	"github.com/GriffinCanCode/livepen/internal/domain/session"
	"github.com/GriffinCanCode/livepen/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/livepen/internal/shared/id"
	"github.com/GriffinCanCode/livepen/internal/shared/types"
	"github.com/GriffinCanCode/livepen/internal/shared/utils"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 1 << 20
	sendBuffer     = 256
)

// ErrClientGone is returned by Load once the connection is closing.
var ErrClientGone = errors.New("websocket client gone")

// client is a browser preview connected over a WebSocket. It is the
// sandbox surface of its session while attached: every frame is sent to
// the browser, which loads it into a sandboxed iframe and relays whatever
// the iframe posts back as "message" frames.
type client struct {
	id      id.ConnID
	conn    *websocket.Conn
	session *session.Session
	logger  *zap.Logger
	metrics *monitoring.Metrics

	send      chan types.WSOutbound
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(conn *websocket.Conn, s *session.Session, logger *zap.Logger, metrics *monitoring.Metrics) *client {
	cid := id.NewConnID()
	return &client{
		id:      cid,
		conn:    conn,
		session: s,
		logger:  logger.With(zap.String("conn", cid.String()), zap.String("session", s.ID().String())),
		metrics: metrics,
		send:    make(chan types.WSOutbound, sendBuffer),
		done:    make(chan struct{}),
	}
}

// Load sends a frame to the browser. It never blocks.
func (c *client) Load(frame sandbox.Frame) error {
	ok := c.enqueue(types.WSOutbound{
		Type:     types.WSRender,
		Document: frame.Document,
		Sandbox:  frame.Policy.SandboxAttr(),
		Frame:    frame.ID,
	})
	if !ok {
		return ErrClientGone
	}
	return nil
}

// Close stops the write pump, which closes the connection.
func (c *client) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

func (c *client) onEvent(e session.Event) {
	switch e.Type {
	case session.EventDiagnostic:
		c.enqueue(types.WSOutbound{Type: types.WSDiagnostic, Diagnostic: e.Record})
	case session.EventCleared:
		c.enqueue(types.WSOutbound{Type: types.WSCleared})
	}
}

func (c *client) sendError(msg string) {
	c.enqueue(types.WSOutbound{Type: types.WSError, Error: msg})
}

// enqueue queues msg for the write pump. A client whose queue is full is
// too slow to keep up and gets disconnected.
func (c *client) enqueue(msg types.WSOutbound) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- msg:
		return true
	default:
		c.logger.Warn("Send queue full, closing connection")
		c.Close()
		return false
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			data, err := sonic.Marshal(msg)
			if err != nil {
				c.logger.Error("Failed to encode message", zap.String("type", msg.Type), zap.Error(err))
				continue
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Debug("Write failed", zap.Error(err))
				return
			}
			c.metrics.RecordWSMessage("out", msg.Type)

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *client) readPump() {
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Warn("WebSocket read error", zap.Error(err))
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg types.WSInbound
		if err := sonic.Unmarshal(data, &msg); err != nil {
			c.sendError("invalid message format")
			continue
		}
		c.metrics.RecordWSMessage("in", msg.Type)
		c.handle(msg)
	}
}

func (c *client) handle(msg types.WSInbound) {
	switch msg.Type {
	case types.WSEdit:
		buffer, err := session.ParseBuffer(msg.Buffer)
		if err != nil {
			c.sendError(err.Error())
			return
		}
		if err := utils.ValidateBuffer(msg.Text); err != nil {
			c.sendError(err.Error())
			return
		}
		c.session.UpdateBuffer(buffer, msg.Text)
	case types.WSMessage:
		// Payloads are relayed verbatim; the controller decides what is a
		// diagnostic.
		if len(msg.Data) == 0 {
			c.sendError("message without data")
			return
		}
		c.session.Post([]byte(msg.Data))
	case types.WSReset:
		c.session.ResetAll()
	case types.WSRefresh:
		if !c.session.Refresh() {
			c.sendError("nothing to refresh")
		}
	case types.WSPing:
		c.enqueue(types.WSOutbound{Type: types.WSPong})
	default:
		c.sendError("unknown message type")
	}
}
