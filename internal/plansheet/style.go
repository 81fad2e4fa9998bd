package plansheet

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	appLog "plansheet/internal/log"
	"plansheet/internal/model"
)

// PageMargin is the fixed print margin of every sheet.
const PageMargin = "0.5in"

//go:embed default.css
var defaultCSS string

// DefaultStylesheet returns the built-in CSS.
func DefaultStylesheet() string {
	return defaultCSS
}

// LoadStylesheet reads an override stylesheet. A blank path or an
// unreadable file yields the built-in CSS; the latter is logged as a
// warning and is not an error.
func LoadStylesheet(path string) string {
	if strings.TrimSpace(path) == "" {
		return defaultCSS
	}
	data, err := os.ReadFile(path)
	if err != nil {
		appLog.Warn("stylesheet unavailable; using built-in default", "path", path, "err", err)
		return defaultCSS
	}
	return string(data)
}

// WithPrintDirectives appends the @page rule for orientation to css. Empty
// css selects the built-in stylesheet.
func WithPrintDirectives(css string, o model.Orientation) string {
	if strings.TrimSpace(css) == "" {
		css = defaultCSS
	}
	if o == "" {
		o = model.Landscape
	}
	return fmt.Sprintf("%s\n@page {\n  size: %s;\n  margin: %s;\n}\n", strings.TrimRight(css, "\n"), o, PageMargin)
}
