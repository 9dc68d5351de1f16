package ui

import (
	"fmt"
	"io"
	"strings"
)

// DiffFile is the part of a file diff the renderer needs.
type DiffFile struct {
	Path    string
	Status  string
	Unified string
}

// RenderDiff writes a colored summary and the unified diffs of files,
// followed by the hash the user has to approve.
func RenderDiff(w io.Writer, files []DiffFile, hash string) {
	if len(files) == 0 {
		fmt.Fprintln(w, MutedStyle.Render("No metadata changes."))
		return
	}
	fmt.Fprintln(w, TitleStyle.Render(fmt.Sprintf("%d changed files", len(files))))
	for _, f := range files {
		fmt.Fprintf(w, "  %-9s %s\n", f.Status, f.Path)
	}
	fmt.Fprintln(w)
	for _, f := range files {
		fmt.Fprint(w, ColorizeUnified(f.Unified))
	}
	fmt.Fprintf(w, "\nDiff hash: %s\n", TitleStyle.Render(hash))
}

// ColorizeUnified styles the lines of a unified diff.
func ColorizeUnified(text string) string {
	var b strings.Builder
	for _, line := range strings.SplitAfter(text, "\n") {
		if line == "" {
			continue
		}
		body := strings.TrimSuffix(line, "\n")
		switch {
		case strings.HasPrefix(body, "+++"), strings.HasPrefix(body, "---"):
			body = headerStyle.Render(body)
		case strings.HasPrefix(body, "@@"):
			body = hunkStyle.Render(body)
		case strings.HasPrefix(body, "+"):
			body = addedStyle.Render(body)
		case strings.HasPrefix(body, "-"):
			body = removedStyle.Render(body)
		}
		b.WriteString(body)
		b.WriteByte('\n')
	}
	return b.String()
}
