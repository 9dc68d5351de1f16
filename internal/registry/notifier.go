package registry

import (
	"context"

	"github.com/spregistry/spreg/pkg/spreg"
)

// Notifier receives events operators must be warned about.
type Notifier interface {
	// ProductionChanged is called after a committed edit flipped the
	// production flag of sp.
	ProductionChanged(ctx context.Context, sp *spreg.ServiceProvider)
}

// LogNotifier reports events through a logger.
type LogNotifier struct {
	logger spreg.Logger
}

func NewLogNotifier(logger spreg.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) ProductionChanged(_ context.Context, sp *spreg.ServiceProvider) {
	if sp.Production {
		n.logger.Warn("%s is now flagged for production", sp.EntityID)
		return
	}
	n.logger.Warn("%s is no longer flagged for production", sp.EntityID)
}

type nopNotifier struct{}

func (nopNotifier) ProductionChanged(context.Context, *spreg.ServiceProvider) {}
