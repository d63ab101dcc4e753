package main

import (
	"os"

	"github.com/fatih/color"
	"golang.org/x/term"
)

// styles holds color formatters for console output
type styles struct {
	pattern *color.Color
	id      *color.Color
	heading *color.Color
	metric  *color.Color
}

// newStyles creates color formatters; enabled=false disables all colors
func newStyles(enabled bool) *styles {
	s := &styles{
		pattern: color.New(color.FgYellow),
		id:      color.New(color.FgHiGreen),
		heading: color.New(color.Bold),
		metric:  color.New(color.FgHiBlue),
	}

	for _, c := range []*color.Color{s.pattern, s.id, s.heading, s.metric} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}

	return s
}

// colorEnabled resolves a --color flag value. "auto" enables color only
// when stdout is a terminal and NO_COLOR is unset.
func colorEnabled(mode string) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	default:
		return term.IsTerminal(int(os.Stdout.Fd())) && os.Getenv("NO_COLOR") == ""
	}
}
