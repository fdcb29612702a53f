package types

import (
	"errors"
	"fmt"
)

// ErrInvalidSettings is returned when a settings update is out of range.
var ErrInvalidSettings = errors.New("invalid settings")

// Orientation is the layout of the editor and preview panes
type Orientation string

const (
	OrientationHorizontal Orientation = "horizontal"
	OrientationVertical   Orientation = "vertical"
)

// Panel names a pane that can be maximized; empty means none
type Panel string

const (
	PanelNone    Panel = ""
	PanelEditor  Panel = "editor"
	PanelPreview Panel = "preview"
	PanelConsole Panel = "console"
)

// Font size bounds accepted by the editor
const (
	MinFontSize = 8
	MaxFontSize = 40
)

// Settings is the cosmetic UI state of a session. It is not part of the
// render pipeline and is never persisted.
type Settings struct {
	Orientation Orientation `json:"orientation" yaml:"orientation" toml:"orientation"`
	Maximized   Panel       `json:"maximized" yaml:"maximized" toml:"maximized"`
	FontSize    int         `json:"font_size" yaml:"font_size" toml:"font_size"`
	WordWrap    bool        `json:"word_wrap" yaml:"word_wrap" toml:"word_wrap"`
}

// SettingsPatch is a partial update; nil fields are left unchanged
type SettingsPatch struct {
	Orientation *Orientation `json:"orientation,omitempty"`
	Maximized   *Panel       `json:"maximized,omitempty"`
	FontSize    *int         `json:"font_size,omitempty"`
	WordWrap    *bool        `json:"word_wrap,omitempty"`
}

// DefaultSettings returns the settings a new session starts with
func DefaultSettings() Settings {
	return Settings{
		Orientation: OrientationHorizontal,
		Maximized:   PanelNone,
		FontSize:    14,
		WordWrap:    false,
	}
}

// Validate checks every field against its allowed values
func (s Settings) Validate() error {
	switch s.Orientation {
	case OrientationHorizontal, OrientationVertical:
	default:
		return fmt.Errorf("%w: unknown orientation %q", ErrInvalidSettings, s.Orientation)
	}
	switch s.Maximized {
	case PanelNone, PanelEditor, PanelPreview, PanelConsole:
	default:
		return fmt.Errorf("%w: unknown panel %q", ErrInvalidSettings, s.Maximized)
	}
	if s.FontSize < MinFontSize || s.FontSize > MaxFontSize {
		return fmt.Errorf("%w: font size %d outside %d-%d", ErrInvalidSettings, s.FontSize, MinFontSize, MaxFontSize)
	}
	return nil
}

// Apply returns s with the patch applied. s is unchanged on error.
func (s Settings) Apply(p SettingsPatch) (Settings, error) {
	next := s
	if p.Orientation != nil {
		next.Orientation = *p.Orientation
	}
	if p.Maximized != nil {
		next.Maximized = *p.Maximized
	}
	if p.FontSize != nil {
		next.FontSize = *p.FontSize
	}
	if p.WordWrap != nil {
		next.WordWrap = *p.WordWrap
	}
	if err := next.Validate(); err != nil {
		return s, err
	}
	return next, nil
}
