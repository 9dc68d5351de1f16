package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spregistry/spreg/internal/store"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print or apply the registry database schema",
	Long: `Schema prints the PostgreSQL schema of the registry. With --apply it
creates the missing tables in the configured database. Applying is
idempotent.

Examples:
  spreg schema > registry.sql
  spreg schema --apply`,
	Args: cobra.NoArgs,
	RunE: runSchema,
}

var schemaApply bool

func init() {
	rootCmd.AddCommand(schemaCmd)
	schemaCmd.Flags().BoolVar(&schemaApply, "apply", false, "Create the schema in the configured database")
}

func runSchema(cmd *cobra.Command, args []string) error {
	if !schemaApply {
		_, err := fmt.Fprint(cmd.OutOrStdout(), store.Schema)
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	s, err := openSession(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	if err := s.store.EnsureSchema(ctx); err != nil {
		return err
	}
	s.logger.Info("schema is up to date")
	return nil
}
