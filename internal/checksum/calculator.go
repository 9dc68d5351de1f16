package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Calculator computes content checksums for metadata files.
type Calculator interface {
	// CalculateRaw computes a checksum of the raw, unmodified content.
	CalculateRaw(content []byte) string

	// CalculateNormalized computes a checksum that ignores line-ending
	// style and trailing whitespace, so a checkout with CRLF endings hashes
	// the same as the generated LF output.
	CalculateNormalized(content []byte) string
}

// SHA256 implements Calculator with SHA-256. It is a zero-size type and
// safe for concurrent use.
type SHA256 struct{}

func New() SHA256 {
	return SHA256{}
}

func (c SHA256) CalculateRaw(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}

func (c SHA256) CalculateNormalized(content []byte) string {
	return c.CalculateRaw([]byte(normalize(string(content))))
}

func normalize(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t\r")
	}
	return strings.TrimRight(strings.Join(lines, "\n"), "\n")
}

// Entry is one changed file contributing to a diff hash.
type Entry struct {
	Path   string
	Status string
	// Content is the working-copy content; nil for deleted files.
	Content []byte
}

// DiffHash returns a content-addressed identifier for a set of changes.
// It is independent of entry order and empty for no changes.
func DiffHash(c Calculator, entries []Entry) string {
	if len(entries) == 0 {
		return ""
	}

	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	var b strings.Builder
	for _, e := range sorted {
		b.WriteString(e.Path)
		b.WriteByte(0)
		b.WriteString(e.Status)
		b.WriteByte(0)
		if e.Content != nil {
			b.WriteString(c.CalculateRaw(e.Content))
		}
		b.WriteByte('\n')
	}
	return c.CalculateRaw([]byte(b.String()))
}
