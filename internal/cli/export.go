package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spregistry/spreg/internal/export"
	"github.com/spregistry/spreg/internal/metadata"
)

var exportCmd = &cobra.Command{
	Use:   "export saml|ldap|oidc",
	Short: "Generate metadata from the registry",
	Long: `Export renders the service providers of one protocol as metadata.

By default the live versions are exported. With --validated each provider is
exported as it was at its latest validation, together with the certificates,
endpoints, contacts and attributes active at that time; providers that were
never validated are left out.

--production and --test are applied to the exported versions, so a provider
whose validated version is in production is exported even when a newer,
unvalidated edit cleared the flag.

OIDC client secrets are obfuscated unless --secret-mode says otherwise.
"decrypted" needs secrets.key (or $SPREG_SECRET_KEY).

Examples:
  # Validated production SAML metadata
  spreg export saml --validated --production -o metadata.xml

  # One OIDC client with its plaintext secret
  spreg export oidc --entity my-client --secret-mode decrypted`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeFormats,
	RunE:              runExport,
}

type exportFlagValues struct {
	validated       bool
	production      bool
	test            bool
	include         []string
	entity          string
	privacyFallback bool
	secretMode      string
	output          string
}

var exportFlags exportFlagValues

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().BoolVar(&exportFlags.validated, "validated", false,
		"Export the latest validated version of each provider")
	exportCmd.Flags().BoolVar(&exportFlags.production, "production", false,
		"Only providers in production")
	exportCmd.Flags().BoolVar(&exportFlags.test, "test", false,
		"Only providers in test")
	exportCmd.Flags().StringSliceVar(&exportFlags.include, "include", nil,
		"Only these entity IDs (comma separated or repeated)")
	exportCmd.Flags().StringVar(&exportFlags.entity, "entity", "",
		"Export a single provider as a standalone document")
	exportCmd.Flags().BoolVar(&exportFlags.privacyFallback, "privacy-fallback", false,
		"Publish the organization privacy policy for providers without one")
	exportCmd.Flags().StringVar(&exportFlags.secretMode, "secret-mode", "obfuscated",
		"OIDC client secret disclosure: encrypted|decrypted|obfuscated")
	exportCmd.Flags().StringVarP(&exportFlags.output, "output", "o", "",
		"Write to file instead of stdout")

	exportCmd.MarkFlagsMutuallyExclusive("production", "test")
	exportCmd.MarkFlagsMutuallyExclusive("entity", "include")
	_ = exportCmd.RegisterFlagCompletionFunc("secret-mode", completeFrom(secretModes))
}

// exportSelection builds the selection from the command-line flags.
func exportSelection(f exportFlagValues) export.Selection {
	sel := export.Selection{
		Validated:  f.validated,
		Production: f.production,
		Test:       f.test,
	}
	for _, id := range f.include {
		if id = strings.TrimSpace(id); id != "" {
			sel.EntityIDs = append(sel.EntityIDs, id)
		}
	}
	return sel
}

func runExport(cmd *cobra.Command, args []string) error {
	format, err := export.ParseFormat(args[0])
	if err != nil {
		return err
	}
	mode, err := metadata.ParseSecretMode(exportFlags.secretMode)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	s, err := openSession(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	opts := export.Options{Metadata: metadataOptions(s.cfg), SecretMode: mode}
	if exportFlags.privacyFallback {
		opts.Metadata.PrivacyPolicyFallback = true
	}
	if format == export.FormatOIDC && mode == metadata.SecretDecrypted {
		cipher, err := newCipher(s.cfg)
		if err != nil {
			return err
		}
		opts.Decrypter = cipher
	}
	x := export.New(s.registry, opts, s.logger)

	var out []byte
	if exportFlags.entity != "" {
		out, err = x.Entity(ctx, format, exportFlags.entity, exportFlags.validated)
	} else {
		out, err = x.Generate(ctx, format, exportSelection(exportFlags))
	}
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	if exportFlags.output == "" {
		_, err = cmd.OutOrStdout().Write(out)
		return err
	}
	if err := os.WriteFile(exportFlags.output, out, 0644); err != nil {
		return fmt.Errorf("write %s: %w", exportFlags.output, err)
	}
	s.logger.Info("wrote %s metadata to %s", format, exportFlags.output)
	return nil
}
