package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

var (
	exportFormats  = []string{"saml", "ldap", "oidc"}
	secretModes    = []string{"encrypted", "decrypted", "obfuscated"}
	publishFilters = []string{"production", "test"}
)

func completeFrom(values []string) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		var matches []string
		for _, v := range values {
			if strings.HasPrefix(v, toComplete) {
				matches = append(matches, v)
			}
		}
		return matches, cobra.ShellCompDirectiveNoFileComp
	}
}

// completeFormats provides shell completion for the export format argument.
func completeFormats(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return completeFrom(exportFormats)(cmd, args, toComplete)
}
