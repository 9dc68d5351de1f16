// Package logging provides concrete implementations of the spreg.Logger interface.
//
// Available implementations:
//   - ConsoleLogger: Writes prefixed lines to stderr (or any io.Writer)
//   - NullLogger: Discards all messages (useful for testing)
//
// All logger implementations are safe for concurrent use by multiple goroutines.
package logging

import "github.com/spregistry/spreg/pkg/spreg"

var (
	_ spreg.Logger = (*ConsoleLogger)(nil)
	_ spreg.Logger = (*NullLogger)(nil)
)
