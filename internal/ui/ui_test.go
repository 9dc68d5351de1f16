package ui

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

func TestDetectMode(t *testing.T) {
	env := func(vars map[string]string) func(string) string {
		return func(k string) string { return vars[k] }
	}
	tests := []struct {
		name     string
		vars     map[string]string
		terminal bool
		want     Mode
	}{
		{"terminal", nil, true, ModeInteractive},
		{"piped", nil, false, ModeNonInteractive},
		{"override", map[string]string{"SPREG_NON_INTERACTIVE": "1"}, true, ModeNonInteractive},
		{"ci", map[string]string{"CI": "true"}, true, ModeNonInteractive},
		{"no color", map[string]string{"NO_COLOR": "1"}, true, ModeNonInteractive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detectMode(env(tt.vars), tt.terminal); got != tt.want {
				t.Errorf("detectMode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestColorizeUnifiedKeepsLines(t *testing.T) {
	in := "--- a/metadata.xml\n+++ b/metadata.xml\n@@ -1 +1 @@\n-old\n+new\n"
	out := ColorizeUnified(in)
	for _, want := range []string{"a/metadata.xml", "b/metadata.xml", "@@ -1 +1 @@", "-old", "+new"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in output, got:\n%s", want, out)
		}
	}
	if n := strings.Count(out, "\n"); n != 5 {
		t.Errorf("Expected 5 lines, got %d", n)
	}
}

func TestRenderDiff(t *testing.T) {
	var out bytes.Buffer
	RenderDiff(&out, []DiffFile{{Path: "metadata.xml", Status: "modified", Unified: "+x\n"}}, "abc123")
	s := out.String()
	if !strings.Contains(s, "1 changed files") || !strings.Contains(s, "metadata.xml") || !strings.Contains(s, "abc123") {
		t.Errorf("Unexpected diff rendering:\n%s", s)
	}

	out.Reset()
	RenderDiff(&out, nil, "")
	if !strings.Contains(out.String(), "No metadata changes") {
		t.Errorf("Expected empty diff message, got:\n%s", out.String())
	}
}

func TestRunWithSpinner_NonInteractive(t *testing.T) {
	var out bytes.Buffer
	boom := errors.New("boom")
	err := RunWithSpinner(context.Background(), &out, false, "Pushing", func(context.Context) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("Expected task error, got %v", err)
	}
	if !strings.Contains(out.String(), "Pushing...") {
		t.Errorf("Expected message, got:\n%s", out.String())
	}
}

func TestSpinnerModel_QuitsWhenTaskFinishes(t *testing.T) {
	boom := errors.New("boom")
	m := newSpinnerModel("Pushing", func() error { return boom })

	next, cmd := m.Update(spinner.TickMsg{})
	if next.(spinnerModel).done {
		t.Fatal("Expected spinner to keep running on tick")
	}
	_ = cmd

	next, cmd = next.Update(taskDoneMsg{err: boom})
	final := next.(spinnerModel)
	if !final.done || !errors.Is(final.err, boom) {
		t.Fatalf("Expected finished model with task error, got %+v", final)
	}
	if cmd == nil {
		t.Fatal("Expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("Expected tea.QuitMsg")
	}
	if !strings.Contains(final.View(), "Pushing") {
		t.Errorf("Expected message in final view, got %q", final.View())
	}
}
