package types

import "encoding/json"

// BufferRequest replaces the content of one buffer
type BufferRequest struct {
	Text string `json:"text"`
}

// CreateSessionRequest opens a session, optionally with initial buffers
type CreateSessionRequest struct {
	Markup *string `json:"markup,omitempty"`
	Style  *string `json:"style,omitempty"`
	Script *string `json:"script,omitempty"`
}

// WebSocket message types, client to server
const (
	WSEdit    = "edit"
	WSMessage = "message"
	WSReset   = "reset"
	WSRefresh = "refresh"
	WSPing    = "ping"
)

// WebSocket message types, server to client
const (
	WSRender     = "render"
	WSDiagnostic = "diagnostic"
	WSCleared    = "cleared"
	WSPong       = "pong"
	WSError      = "error"
)

// WSInbound is a message sent by the browser surface
type WSInbound struct {
	Type   string          `json:"type"`
	Buffer string          `json:"buffer,omitempty"`
	Text   string          `json:"text,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"` // payload the iframe posted to its parent
}

// WSOutbound is a message sent to the browser surface
type WSOutbound struct {
	Type       string      `json:"type"`
	Document   string      `json:"document,omitempty"`
	Sandbox    string      `json:"sandbox,omitempty"`
	Frame      string      `json:"frame,omitempty"`
	Diagnostic interface{} `json:"diagnostic,omitempty"`
	Error      string      `json:"error,omitempty"`
}
