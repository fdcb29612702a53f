package sandbox

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// Script is one inline script element found in a document.
type Script struct {
	Text string
	Line int // 1-based document line of the first character of Text
}

// ExtractScripts returns the inline classic scripts of doc in document
// order. External (src) scripts and non-JavaScript types are skipped.
func ExtractScripts(doc string) []Script {
	z := html.NewTokenizer(strings.NewReader(doc))

	var (
		scripts []Script
		line    = 1
		inside  bool
		skip    bool
		start   int
		text    strings.Builder
	)

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		raw := z.Raw()

		switch tt {
		case html.StartTagToken:
			name, hasAttr := z.TagName()
			if string(name) == "script" {
				inside = true
				skip = hasAttr && !classicScript(z)
				text.Reset()
				start = 0
			}
		case html.TextToken:
			if inside && !skip {
				if text.Len() == 0 {
					start = line
				}
				text.Write(raw)
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if string(name) == "script" && inside {
				if !skip && text.Len() > 0 {
					scripts = append(scripts, Script{Text: text.String(), Line: start})
				}
				inside = false
			}
		}

		line += bytes.Count(raw, []byte("\n"))
	}

	return scripts
}

// classicScript reads the remaining attributes of a script start tag.
func classicScript(z *html.Tokenizer) bool {
	for {
		key, val, more := z.TagAttr()
		switch string(key) {
		case "src":
			return false
		case "type":
			switch strings.ToLower(strings.TrimSpace(string(val))) {
			case "", "text/javascript", "application/javascript", "module":
			default:
				return false
			}
		}
		if !more {
			return true
		}
	}
}
