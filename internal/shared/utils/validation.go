package utils

import (
	"fmt"
	"unicode/utf8"
)

// MaxBufferSize is the largest source buffer accepted from a client
const MaxBufferSize = 1 * 1024 * 1024

// ValidateBuffer checks a source buffer before it reaches a session
func ValidateBuffer(text string) error {
	if len(text) > MaxBufferSize {
		return fmt.Errorf("buffer size %d bytes exceeds maximum %d bytes", len(text), MaxBufferSize)
	}
	if !utf8.ValidString(text) {
		return fmt.Errorf("buffer is not valid UTF-8")
	}
	return nil
}
