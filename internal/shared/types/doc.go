// Package types provides data structures shared by the domain and API
// layers.
//
// Core Types:
//   - Buffers: the markup, style and script source texts
//   - SessionInfo: API view of a playground session
//   - Settings, SettingsPatch: cosmetic UI state outside the render pipeline
//   - Stats: session manager statistics
//
// Request Types:
//   - BufferRequest, CreateSessionRequest: HTTP API bodies
//   - WSInbound, WSOutbound: browser surface messages
package types
