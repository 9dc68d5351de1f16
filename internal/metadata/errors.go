package metadata

import (
	"encoding/xml"
	"errors"
	"fmt"

	"github.com/spregistry/spreg/pkg/spreg"
)

// MetadataError describes a document that cannot be read at all.
type MetadataError struct {
	Source  string // File name or other origin, may be empty
	Line    int    // Line number (0 if unknown)
	Element string // Element the problem was found in, if known
	Message string
	Hint    string
}

func (e *MetadataError) Error() string {
	location := e.Source
	if location == "" {
		location = "metadata"
	}
	if e.Line > 0 {
		location = fmt.Sprintf("%s (line %d)", location, e.Line)
	}

	msg := fmt.Sprintf("invalid metadata in %s: %s", location, e.Message)
	if e.Element != "" {
		msg = fmt.Sprintf("invalid metadata in %s [element: %s]: %s", location, e.Element, e.Message)
	}
	if e.Hint != "" {
		msg += "\n\nHint: " + e.Hint
	}
	return msg
}

func (e *MetadataError) Unwrap() error { return spreg.ErrInvalidMetadata }

// wrapXMLError converts a decoder error into a MetadataError with the line
// number when the decoder reported one.
func wrapXMLError(err error, source string) error {
	var syntaxErr *xml.SyntaxError
	if errors.As(err, &syntaxErr) {
		return &MetadataError{
			Source:  source,
			Line:    syntaxErr.Line,
			Message: syntaxErr.Msg,
			Hint:    "Check that all tags are closed and attribute values are quoted.",
		}
	}
	return &MetadataError{Source: source, Message: err.Error()}
}
