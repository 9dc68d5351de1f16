package ui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spregistry/spreg/pkg/spreg"
)

// hashPrefixLen is how much of the diff hash the user types to confirm.
const hashPrefixLen = 8

// InteractiveApprover implements the Approver interface for console-based
// interactive confirmation. The user confirms a publish by typing the
// first characters of the diff hash they reviewed.
type InteractiveApprover struct {
	verbose bool
	input   io.Reader
	output  io.Writer
}

// NewInteractiveApprover creates a new InteractiveApprover.
func NewInteractiveApprover(verbose bool) spreg.Approver {
	return &InteractiveApprover{verbose: verbose, input: os.Stdin, output: os.Stderr}
}

// RequestApproval prompts the user to type the hash prefix to confirm.
func (a *InteractiveApprover) RequestApproval(ctx context.Context, hash string) (bool, error) {
	want := shortHash(hash)
	fmt.Fprintf(a.output, "\n%s You are about to commit and push metadata changes %s\n", WarningStyle.Render("WARNING:"), want)
	fmt.Fprintln(a.output, "Published metadata is picked up by every identity provider of the federation.")
	fmt.Fprintf(a.output, "\nTo confirm, type '%s' and press Enter: ", want)

	// Read user input with context cancellation support
	inputChan := make(chan string, 1)
	errChan := make(chan error, 1)

	go func() {
		reader := bufio.NewReader(a.input)
		input, err := reader.ReadString('\n')
		if err != nil {
			errChan <- err
			return
		}
		inputChan <- strings.TrimSpace(input)
	}()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case err := <-errChan:
		return false, fmt.Errorf("failed to read input: %w", err)
	case input := <-inputChan:
		if input != "" && input == want {
			fmt.Fprintln(a.output, "✓ Confirmed. Publishing...")
			return true, nil
		}
		fmt.Fprintf(a.output, "✗ Input '%s' does not match '%s'. Publish cancelled.\n", input, want)
		return false, nil
	}
}

// Verify InteractiveApprover implements the Approver interface at compile time
var _ spreg.Approver = (*InteractiveApprover)(nil)
