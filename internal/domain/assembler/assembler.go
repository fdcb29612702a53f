// Package assembler combines the markup, style and script buffers into one
// standalone executable document.
//
// Assemble is total: it never fails, whatever the buffers contain. Partial
// or malformed markup typed mid-edit degrades to emitting the text as is.
package assembler

import (
	"regexp"
	"strings"

	"github.com/GriffinCanCode/livepen/internal/domain/bridge"
)

var (
	bodyPair   = regexp.MustCompile(`(?is)<body(?:\s[^>]*)?>(.*)</body>`)
	headClose  = regexp.MustCompile(`(?i)</head\s*>`)
	strayTags  = regexp.MustCompile(`(?i)</?(?:html|body)(?:\s[^>]*)?>`)
	scriptEnd  = regexp.MustCompile(`(?i)</(script)`)
	styleEnd   = regexp.MustCompile(`(?i)</(style)`)
	lineBreaks = strings.NewReplacer("\r\n", "\n", "\r", "\n")
)

// ExtractBody returns the fragment of markup meant for the visible area.
//
// Precedence: the inner content of a <body>…</body> pair; otherwise
// everything after the first </head> with stray html/body tags removed;
// otherwise the markup unchanged.
func ExtractBody(markup string) string {
	if m := bodyPair.FindStringSubmatch(markup); m != nil {
		return m[1]
	}
	if loc := headClose.FindStringIndex(markup); loc != nil {
		return strayTags.ReplaceAllString(markup[loc[1]:], "")
	}
	return markup
}

// Assemble builds the document for one render.
func Assemble(markup, style, script string) string {
	var b strings.Builder

	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	b.WriteString("<style>\n")
	b.WriteString(escapeEnd(styleEnd, lineBreaks.Replace(style)))
	b.WriteString("\n</style>\n</head>\n<body>\n")
	b.WriteString(ExtractBody(lineBreaks.Replace(markup)))
	b.WriteString("\n")

	// The bridge line count does not depend on the offset it carries, so
	// the line of the user script is known before the bridge is written.
	offset := strings.Count(b.String(), "\n") + strings.Count(bridgeBlock(0), "\n") + 1

	b.WriteString(bridgeBlock(offset))
	b.WriteString("<script>\ntry { ")
	b.WriteString(escapeEnd(scriptEnd, lineBreaks.Replace(script)))
	b.WriteString("\n} catch (err) { if (")
	b.WriteString(bridge.FailureHook)
	b.WriteString(") { ")
	b.WriteString(bridge.FailureHook)
	b.WriteString(".fail(err); } }\n</script>\n</body>\n</html>\n")

	return b.String()
}

func bridgeBlock(offset int) string {
	return "<script>\n" + bridge.Script(offset) + "\n</script>\n"
}

// escapeEnd keeps embedded text from closing its element early.
func escapeEnd(pattern *regexp.Regexp, text string) string {
	return pattern.ReplaceAllString(text, `<\/$1`)
}
