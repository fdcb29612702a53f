package bridge

import (
	_ "embed"
	"strconv"
	"strings"
)

//go:embed assets/bridge.js
var bridgeSource string

const lineOffsetPlaceholder = "__LINE_OFFSET__"

// FailureHook is the global the failure boundary calls with a caught error.
const FailureHook = "window.__livepen"

// Script returns the bridge script. lineOffset is the number of document
// lines that precede the first line of the user script; reported line
// numbers are made relative to the script buffer by subtracting it.
func Script(lineOffset int) string {
	if lineOffset < 0 {
		lineOffset = 0
	}
	return strings.Replace(bridgeSource, lineOffsetPlaceholder, strconv.Itoa(lineOffset), 1)
}
