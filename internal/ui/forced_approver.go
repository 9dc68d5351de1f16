package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spregistry/spreg/pkg/spreg"
)

// ForcedApprover implements the Approver interface for forced (non-interactive)
// approval. It displays a countdown and automatically approves after the countdown,
// used when the --force flag is provided.
type ForcedApprover struct {
	verbose bool
	output  io.Writer
	sleepFn func(time.Duration)
}

// NewForcedApprover creates a new ForcedApprover.
func NewForcedApprover(verbose bool) spreg.Approver {
	return &ForcedApprover{verbose: verbose, output: os.Stderr, sleepFn: time.Sleep}
}

// RequestApproval displays a countdown and automatically approves after the countdown.
func (a *ForcedApprover) RequestApproval(ctx context.Context, hash string) (bool, error) {
	fmt.Fprintln(a.output)
	fmt.Fprintln(a.output, WarningStyle.Render("FORCED PUBLISH"))
	fmt.Fprintf(a.output, "Changes %s will be committed and pushed without confirmation.\n", shortHash(hash))

	countdownSeconds := int(spreg.DefaultForceApprovalCountdown.Seconds())
	for i := countdownSeconds; i > 0; i-- {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		default:
			fmt.Fprintf(a.output, "\rPublishing in: %d seconds... (Press Ctrl+C to cancel)", i)
			a.sleepFn(time.Second)
		}
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	fmt.Fprintf(a.output, "\r✓ Proceeding with publish...                              \n")
	return true, nil
}

func shortHash(hash string) string {
	if len(hash) > hashPrefixLen {
		return hash[:hashPrefixLen]
	}
	return hash
}

// Verify ForcedApprover implements the Approver interface at compile time
var _ spreg.Approver = (*ForcedApprover)(nil)
