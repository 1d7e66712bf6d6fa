// Package ui prints human-facing CLI output. Logs go through pkg/logger;
// this package is only for command results and prompts.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// Logo is printed above interactive commands
const Logo = `
  ┌─────────────────────────────────────────┐
  │  friendbot  ·  chapter word counter     │
  └─────────────────────────────────────────┘
`

var (
	mu      sync.RWMutex
	out     io.Writer = os.Stdout
	noColor bool
	quiet   bool
)

// SetOutput redirects all printing, mainly for tests
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

// SetNoColor disables ANSI colours
func SetNoColor(v bool) {
	mu.Lock()
	defer mu.Unlock()
	noColor = v
}

// SetQuietMode suppresses everything except errors
func SetQuietMode(v bool) {
	mu.Lock()
	defer mu.Unlock()
	quiet = v
}

// IsQuietMode reports whether quiet mode is on
func IsQuietMode() bool {
	mu.RLock()
	defer mu.RUnlock()
	return quiet
}

func colorize(code string) func(string) string {
	return func(text string) string {
		mu.RLock()
		defer mu.RUnlock()
		if noColor {
			return text
		}
		return "\033[" + code + "m" + text + "\033[0m"
	}
}

var (
	Cyan    = colorize("36")
	Yellow  = colorize("33")
	Red     = colorize("31")
	Green   = colorize("32")
	Magenta = colorize("35")
	Dim     = colorize("2")
)

func write(always bool, format string, args ...interface{}) {
	mu.RLock()
	w, q := out, quiet
	mu.RUnlock()
	if q && !always {
		return
	}
	fmt.Fprintf(w, format, args...)
}

// PrintLogo prints the banner
func PrintLogo() {
	write(false, "%s", Cyan(Logo))
}

// PrintError prints an error, optionally followed by a detail
func PrintError(msg string, detail ...interface{}) {
	if len(detail) > 0 && fmt.Sprint(detail[0]) != "" {
		msg = msg + ": " + fmt.Sprint(detail[0])
	}
	write(true, "%s\n", Red(msg))
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	write(false, "%s\n", Green(msg))
}

// PrintInfo prints a label and value pair
func PrintInfo(label, value string) {
	write(false, "%s: %s\n", Cyan(label), Yellow(value))
}

// PrintWarning prints a warning, optionally followed by a detail
func PrintWarning(msg string, detail ...interface{}) {
	if len(detail) > 0 {
		msg = msg + ": " + fmt.Sprint(detail[0])
	}
	write(false, "%s\n", Yellow(msg))
}

// PrintHighlight prints a heading in magenta
func PrintHighlight(msg string) {
	write(false, "%s\n", Magenta(msg))
}

// PrintPlain prints text as-is, honouring quiet mode
func PrintPlain(text string) {
	write(false, "%s\n", text)
}

// PrintTable prints rows with left-aligned columns
func PrintTable(header []string, rows [][]string) {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	line := func(cells []string) string {
		parts := make([]string, len(cells))
		for i, c := range cells {
			if i == len(cells)-1 {
				parts[i] = c
				continue
			}
			parts[i] = c + strings.Repeat(" ", widths[i]-len(c))
		}
		return strings.Join(parts, "  ")
	}

	write(false, "%s\n", Cyan(line(header)))
	for _, row := range rows {
		write(false, "%s\n", line(row))
	}
}
