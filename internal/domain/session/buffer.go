package session

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownBuffer is returned when a buffer name cannot be parsed.
var ErrUnknownBuffer = errors.New("unknown buffer")

// Buffer names one of the three source texts.
type Buffer int

const (
	Markup Buffer = iota
	Style
	Script
)

// Buffers lists every buffer in display order.
var Buffers = []Buffer{Markup, Style, Script}

func (b Buffer) String() string {
	switch b {
	case Markup:
		return "markup"
	case Style:
		return "style"
	case Script:
		return "script"
	}
	return fmt.Sprintf("buffer(%d)", int(b))
}

// Language returns the editor language tag of the buffer.
func (b Buffer) Language() string {
	switch b {
	case Markup:
		return "html"
	case Style:
		return "css"
	case Script:
		return "javascript"
	}
	return ""
}

// ParseBuffer accepts a buffer name or its language tag.
func ParseBuffer(name string) (Buffer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "markup", "html":
		return Markup, nil
	case "style", "css":
		return Style, nil
	case "script", "javascript", "js":
		return Script, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownBuffer, name)
}
