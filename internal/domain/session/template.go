package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"

	"github.com/GriffinCanCode/livepen/internal/shared/types"
)

// ErrTemplateFormat is returned for template files that are neither YAML
// nor TOML.
var ErrTemplateFormat = errors.New("unsupported template format")

const (
	defaultMarkup = `<!DOCTYPE html>
<html>
<head>
  <title>livepen</title>
</head>
<body>
  <h1 id="greeting">Hello, world!</h1>
  <p>Edit the markup, style and script buffers to see the preview update.</p>
</body>
</html>
`

	defaultStyle = `body {
  font-family: system-ui, sans-serif;
  margin: 2rem;
}

h1 {
  color: #2a6df4;
}
`

	defaultScript = `const greeting = document.getElementById("greeting");
greeting.textContent = "Hello from the script buffer!";
console.log("Preview ready");
`
)

// DefaultTemplate returns the built-in buffer contents.
func DefaultTemplate() types.Buffers {
	return types.Buffers{
		Markup: defaultMarkup,
		Style:  defaultStyle,
		Script: defaultScript,
	}
}

// LoadTemplate reads a YAML or TOML template file. Keys missing from the
// file keep their built-in defaults.
func LoadTemplate(path string) (types.Buffers, error) {
	tmpl := DefaultTemplate()

	data, err := os.ReadFile(path)
	if err != nil {
		return tmpl, fmt.Errorf("failed to read template: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &tmpl)
	case ".toml":
		err = toml.Unmarshal(data, &tmpl)
	default:
		return DefaultTemplate(), fmt.Errorf("%w: %s", ErrTemplateFormat, path)
	}
	if err != nil {
		return DefaultTemplate(), fmt.Errorf("failed to parse template %s: %w", path, err)
	}
	return tmpl, nil
}
