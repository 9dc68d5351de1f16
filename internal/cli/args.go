package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// RequireEntityID validates that exactly one entity-id argument is provided.
// Returns a helpful error message with usage and examples if missing or too many.
func RequireEntityID(cmd *cobra.Command, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf(`missing required argument: <entity-id>

Usage: %s

Example:
  %s https://sp.example.org/shibboleth`, cmd.UseLine(), cmd.CommandPath())
	}
	if len(args) > 1 {
		return fmt.Errorf("accepts 1 arg(s), received %d", len(args))
	}
	return nil
}

// RequireMetadataFile validates that exactly one metadata file argument is provided.
func RequireMetadataFile(cmd *cobra.Command, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf(`missing required argument: <file>

Usage: %s

Example:
  %s federation-metadata.xml --validate`, cmd.UseLine(), cmd.CommandPath())
	}
	if len(args) > 1 {
		return fmt.Errorf("accepts 1 arg(s), received %d", len(args))
	}
	return nil
}
