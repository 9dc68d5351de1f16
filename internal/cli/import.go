package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/spregistry/spreg/internal/importer"
	"github.com/spregistry/spreg/internal/metadata"
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import SAML metadata into the registry",
	Long: `Import reads a SAML metadata file (an EntitiesDescriptor or a single
EntityDescriptor) and stores every entity as a SAML service provider.

Existing service providers are skipped unless --overwrite is given. An
overwrite creates a new version only when tracked fields change; new
certificates, endpoints, contacts and attributes are added, existing ones
are never removed.

Entities without an entityID are reported and skipped. A malformed
certificate or malformed XML stops the import.

Verbosity:
  0  errors and warnings
  1  plus informational messages (unsupported elements, skipped entities)
  2  plus debug messages (duplicates, parsed values)

Examples:
  # Import new service providers only
  spreg import federation-metadata.xml

  # Update existing service providers and validate them
  spreg import federation-metadata.xml --overwrite --validate`,
	Args: RequireMetadataFile,
	RunE: runImport,
}

type importFlagValues struct {
	overwrite     bool
	validate      bool
	disableChecks bool
	verbosity     int
}

var importFlags importFlagValues

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().BoolVar(&importFlags.overwrite, "overwrite", false,
		"Update service providers that already exist")
	importCmd.Flags().BoolVar(&importFlags.validate, "validate", false,
		"Validate every imported service provider")
	importCmd.Flags().BoolVar(&importFlags.disableChecks, "disable-checks", false,
		"Accept endpoint bindings outside the supported list")
	importCmd.Flags().IntVar(&importFlags.verbosity, "verbosity", 0,
		"Message verbosity: 0 warnings, 1 info, 2 debug")
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	s, err := openSession(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	im := importer.New(s.registry, importer.Options{
		Overwrite:     importFlags.overwrite,
		Validate:      importFlags.validate,
		DisableChecks: importFlags.disableChecks,
		Metadata:      metadataOptions(s.cfg),
	}, s.logger)

	res, err := im.ImportFile(ctx, args[0])
	if res != nil {
		printImportResult(cmd.OutOrStdout(), cmd.ErrOrStderr(), res, importFlags.verbosity)
	}
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}
	return nil
}

// printImportResult writes errors and warnings to errOut and everything
// else to w.
func printImportResult(w, errOut io.Writer, res *importer.Result, verbosity int) {
	for _, m := range res.Messages.Visible(verbosity) {
		out := w
		if m.Level <= metadata.LevelWarning {
			out = errOut
		}
		fmt.Fprintln(out, m.String())
	}
	fmt.Fprintf(w, "%d created, %d updated, %d unchanged, %d skipped\n",
		res.Count(importer.OutcomeCreated),
		res.Count(importer.OutcomeUpdated),
		res.Count(importer.OutcomeUnchanged),
		res.Count(importer.OutcomeSkipped))
}
