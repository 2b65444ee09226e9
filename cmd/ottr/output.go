package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"

	"github.com/GriffinCanCode/ottr/internal/console"
	"github.com/GriffinCanCode/ottr/internal/coverage"
)

// setColor applies --color. "auto" keeps fatih/color's own terminal and
// NO_COLOR detection.
func setColor(mode string) {
	switch mode {
	case "always":
		color.NoColor = false
	case "never":
		color.NoColor = true
	}
}

type styles struct {
	heading *color.Color
	path    *color.Color
	high    *color.Color
	medium  *color.Color
	low     *color.Color
}

func newStyles() styles {
	return styles{
		heading: color.New(color.Bold),
		path:    color.New(color.FgHiWhite),
		high:    color.New(color.FgGreen),
		medium:  color.New(color.FgYellow),
		low:     color.New(color.FgRed, color.Bold),
	}
}

func (s styles) percent(covered, statements int) *color.Color {
	switch p := coverage.Percent(covered, statements); {
	case p >= 80:
		return s.high
	case p >= 50:
		return s.medium
	default:
		return s.low
	}
}

// printSummary writes a per-file statement summary as a text table, or
// encoded as json, yaml or toml.
func printSummary(w io.Writer, summary coverage.Summary, format string) error {
	if format != "text" {
		if err := coverage.EncodeSummary(w, summary, format); err != nil {
			return err
		}
		_, err := fmt.Fprintln(w)
		return err
	}

	s := newStyles()
	s.heading.Fprintf(w, "%8s  %11s  %s\n", "% Stmts", "Covered", "File")
	for _, f := range summary.Files {
		s.percent(f.Covered, f.Statements).Fprintf(w, "%7.2f%%", coverage.Percent(f.Covered, f.Statements))
		fmt.Fprintf(w, "  %5d/%-5d  ", f.Covered, f.Statements)
		s.path.Fprintln(w, f.Path)
	}
	s.heading.Fprint(w, "Total   ")
	s.percent(summary.Covered, summary.Statements).Fprintf(w, "%7.2f%%", coverage.Percent(summary.Covered, summary.Statements))
	fmt.Fprintf(w, "  %d/%d statements\n", summary.Covered, summary.Statements)
	if sp := summary.Spread(); sp.Files > 1 {
		fmt.Fprintf(w, "Files: min %.2f%%, median %.2f%%, mean %.2f%% (stddev %.2f)\n", sp.Min, sp.Median, sp.Mean, sp.StdDev)
	}
	return nil
}

// colorConsole prints page console output, coloured by level.
type colorConsole struct {
	mu     sync.Mutex
	w      io.Writer
	colors map[console.Level]*color.Color
}

func newColorConsole(w io.Writer) *colorConsole {
	return &colorConsole{
		w: w,
		colors: map[console.Level]*color.Color{
			console.LevelLog:   color.New(color.Reset),
			console.LevelInfo:  color.New(color.FgCyan),
			console.LevelDebug: color.New(color.Faint),
			console.LevelWarn:  color.New(color.FgYellow),
			console.LevelError: color.New(color.FgRed),
		},
	}
}

func (c *colorConsole) Log(level console.Level, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	col, ok := c.colors[level]
	if !ok {
		col = c.colors[console.LevelLog]
	}
	col.Fprintln(c.w, console.Format(args...))
}
