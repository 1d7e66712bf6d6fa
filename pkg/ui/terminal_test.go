package ui

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	SetNoColor(true)
	t.Cleanup(func() {
		SetOutput(os.Stdout)
		SetNoColor(false)
		SetQuietMode(false)
	})
	return &buf
}

func TestQuietModeKeepsErrors(t *testing.T) {
	buf := capture(t)
	SetQuietMode(true)

	PrintSuccess("done")
	PrintInfo("State file", "chapters.txt")
	PrintError("Failed to load state", "line 3")

	if got := buf.String(); got != "Failed to load state: line 3\n" {
		t.Errorf("unexpected output %q", got)
	}
}

func TestColorsCanBeDisabled(t *testing.T) {
	capture(t)
	if Red("x") != "x" {
		t.Error("expected plain text with colours disabled")
	}
	SetNoColor(false)
	if Red("x") != "\033[31mx\033[0m" {
		t.Errorf("unexpected colour sequence %q", Red("x"))
	}
}

func TestPrintTable(t *testing.T) {
	buf := capture(t)

	PrintTable([]string{"CHAPTER", "COUNT"}, [][]string{{"1", "12"}, {"102", "3"}})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	want := []string{"CHAPTER  COUNT", "1        12", "102      3"}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines: %q", len(lines), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}
