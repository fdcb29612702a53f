package types

import "time"

// PreviewState is the render pipeline state of a session
type PreviewState string

const (
	PreviewIdle          PreviewState = "idle"
	PreviewPendingRender PreviewState = "pending_render"
	PreviewRendering     PreviewState = "rendering"
)

// Buffers holds the three source texts
type Buffers struct {
	Markup string `json:"markup" yaml:"markup" toml:"markup"`
	Style  string `json:"style" yaml:"style" toml:"style"`
	Script string `json:"script" yaml:"script" toml:"script"`
}

// SessionInfo is the API view of a session
type SessionInfo struct {
	ID          string       `json:"id"`
	State       PreviewState `json:"state"`
	Buffers     Buffers      `json:"buffers"`
	Settings    Settings     `json:"settings"`
	Diagnostics int          `json:"diagnostics"`
	Surface     string       `json:"surface,omitempty"`
	Renders     uint64       `json:"renders"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Stats contains session manager statistics
type Stats struct {
	TotalSessions  int `json:"total_sessions"`
	MountedSurface int `json:"mounted_surfaces"`
	PendingRenders int `json:"pending_renders"`
	Diagnostics    int `json:"diagnostics"`
}
