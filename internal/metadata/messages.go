package metadata

import "fmt"

// Level is the severity of a parser message.
type Level int

const (
	LevelError Level = iota
	LevelWarning
	LevelInfo
	LevelDebug
)

func (l Level) String() string {
	switch l {
	case LevelError:
		return "error"
	case LevelWarning:
		return "warning"
	case LevelInfo:
		return "info"
	case LevelDebug:
		return "debug"
	}
	return "unknown"
}

// Message is a problem or notice about one entity of an imported document.
type Message struct {
	Level    Level
	EntityID string
	Text     string
}

func (m Message) String() string {
	if m.EntityID == "" {
		return fmt.Sprintf("%s: %s", m.Level, m.Text)
	}
	return fmt.Sprintf("%s: %s: %s", m.Level, m.EntityID, m.Text)
}

// Messages collects parser and importer output.
type Messages []Message

func (m *Messages) Add(level Level, entityID, format string, args ...interface{}) {
	*m = append(*m, Message{Level: level, EntityID: entityID, Text: fmt.Sprintf(format, args...)})
}

// Visible returns the messages shown at verbosity: 0 shows errors and
// warnings, 1 adds informational notices and 2 adds duplicate notices.
func (m Messages) Visible(verbosity int) Messages {
	var out Messages
	for _, msg := range m {
		if int(msg.Level) <= verbosity+1 {
			out = append(out, msg)
		}
	}
	return out
}

// HasErrors reports whether any message is an error.
func (m Messages) HasErrors() bool {
	for _, msg := range m {
		if msg.Level == LevelError {
			return true
		}
	}
	return false
}
