package sandbox

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrClosed = errors.New("sandbox is closed")
	// ErrTimeout is the interrupt value for a script that exceeds Config.Timeout.
	ErrTimeout = errors.New("execution timeout exceeded")
)

// Config defines sandbox configuration
type Config struct {
	Timeout          time.Duration // Per-callback execution limit
	MaxCallStackSize int           // goja call stack depth
	InboxSize        int           // Bridge messages buffered before dropping
	SuspendAfter     int           // Consecutive timed-out frames before headless scripts pause
	SuspendCooldown  time.Duration // Pause length once suspended
	Policy           Policy
}

// DefaultConfig returns the configuration used by the service.
func DefaultConfig() Config {
	return Config{
		Timeout:          5 * time.Second,
		MaxCallStackSize: 1024,
		InboxSize:        1024,
		SuspendAfter:     3,
		SuspendCooldown:  30 * time.Second,
		Policy:           DefaultPolicy(),
	}
}

// Policy is the capability set granted to a rendered document.
type Policy struct {
	AllowScripts       bool
	AllowSameOrigin    bool
	AllowModals        bool
	AllowPopups        bool
	AllowTopNavigation bool
}

// DefaultPolicy grants only what the preview needs: scripts, modals and
// popups. The document gets an opaque origin, so it cannot reach host
// storage, cookies or the parent page; postMessage to "*" still crosses
// the boundary. Top-level navigation is denied.
func DefaultPolicy() Policy {
	return Policy{
		AllowScripts: true,
		AllowModals:  true,
		AllowPopups:  true,
	}
}

// SandboxAttr renders the policy as an iframe sandbox attribute value.
func (p Policy) SandboxAttr() string {
	var tokens []string
	if p.AllowScripts {
		tokens = append(tokens, "allow-scripts")
	}
	if p.AllowSameOrigin {
		tokens = append(tokens, "allow-same-origin")
	}
	if p.AllowModals {
		tokens = append(tokens, "allow-modals")
	}
	if p.AllowPopups {
		tokens = append(tokens, "allow-popups")
	}
	if p.AllowTopNavigation {
		tokens = append(tokens, "allow-top-navigation")
	}
	return strings.Join(tokens, " ")
}

// Frame is one render: a complete document loaded with a fresh execution
// context.
type Frame struct {
	ID       string
	Document string
	Policy   Policy
}

// Surface is an isolated rendering context. Load discards everything the
// previous document left behind (scripts, timers, globals) before the new
// document starts.
type Surface interface {
	Load(frame Frame) error
	Close() error
}

// Poster receives raw cross-boundary messages posted by a document.
// Post must not block.
type Poster interface {
	Post(raw []byte)
}

// Mutation represents a DOM modification made by a script
type Mutation struct {
	Type     string `json:"type"`   // set_attribute, set_text, set_html, append, remove
	Target   string `json:"target"` // tag#id of the element
	Property string `json:"property,omitempty"`
	Value    string `json:"value,omitempty"`
}
