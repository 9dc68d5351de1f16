package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "spreg",
	Short: "Service provider metadata registry",
	Long: `spreg keeps the service providers of an identity federation in a
versioned PostgreSQL registry and turns them into SAML, LDAP and OIDC
metadata.

Every change to a service provider creates a new version. Administrators
validate versions; only validated versions (and the certificates, endpoints,
contacts and attributes active at validation time) are published.

Configuration is read from spreg.yaml in the working directory (or --config),
then .env, then SPREG_* environment variables.

Exit Codes:
  0  - Success
  1  - General error
  2  - CLI usage error (invalid arguments or flags)
  3  - Panic or unexpected system error
  10 - Invalid configuration
  11 - Database connection failed
  12 - User denied publish approval
  13 - Service provider not found
  14 - Metadata could not be parsed
  15 - State changed while the command ran, run it again
  16 - Commit, push or repository sync failed`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		printVersionInfo()
		return nil
	}
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().Bool("help", false, "Help for spreg")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output for all commands")
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to spreg.yaml or the directory containing it (default: working directory)")
}

// getVerboseFlag safely retrieves the verbose flag value
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to get verbose flag: %v\n", err)
		return false
	}
	return verbose
}

func getConfigFlag(cmd *cobra.Command) string {
	path, err := cmd.Flags().GetString("config")
	if err != nil || path == "" {
		return "."
	}
	return path
}
