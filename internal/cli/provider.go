package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/spregistry/spreg/internal/registry"
	"github.com/spregistry/spreg/pkg/spreg"
)

var validateCmd = &cobra.Command{
	Use:   "validate <entity-id>",
	Short: "Validate the current version of a service provider",
	Long: `Validate approves the current version of a service provider for
publication.

--modified-date must be the updated_at value the administrator reviewed (as
printed by "spreg history"). If the provider changed since, nothing is
validated and the command exits with code 15.

Example:
  spreg validate https://sp.example.org/shibboleth --modified-date 2026-03-01T10:15:00.123456Z`,
	Args: RequireEntityID,
	RunE: runValidate,
}

var historyCmd = &cobra.Command{
	Use:   "history <entity-id>",
	Short: "Show the versions of a service provider",
	Args:  RequireEntityID,
	RunE:  runHistory,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <entity-id>",
	Short: "End a service provider",
	Long: `Delete ends the current version of a service provider. Its history
is kept and a new provider may reuse the entity ID.`,
	Args: RequireEntityID,
	RunE: runDelete,
}

var validateModifiedDate string

func init() {
	rootCmd.AddCommand(validateCmd, historyCmd, deleteCmd)

	validateCmd.Flags().StringVar(&validateModifiedDate, "modified-date", "",
		"updated_at of the reviewed version (RFC 3339 with fractional seconds)")
	_ = validateCmd.MarkFlagRequired("modified-date")
}

func runValidate(cmd *cobra.Command, args []string) error {
	modified, err := time.Parse(time.RFC3339Nano, validateModifiedDate)
	if err != nil {
		return fmt.Errorf("invalid argument --modified-date %q: %w", validateModifiedDate, err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	s, err := openSession(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	sp, err := s.registry.Lookup(ctx, args[0])
	if err != nil {
		return err
	}
	ok, err := s.registry.Validate(ctx, sp.ID, modified)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s was modified after %s: %w", sp.EntityID, validateModifiedDate, spreg.ErrConcurrentModification)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "validated %s version %d\n", sp.EntityID, sp.Version)
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	s, err := openSession(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	sp, err := s.registry.Lookup(ctx, args[0])
	if err != nil {
		return err
	}
	revisions, err := s.registry.History(ctx, sp.ID)
	if err != nil {
		return err
	}
	printHistory(cmd.OutOrStdout(), revisions)
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	s, err := openSession(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	sp, err := s.registry.Lookup(ctx, args[0])
	if err != nil {
		return err
	}
	if err := s.registry.Delete(ctx, sp.ID); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", sp.EntityID)
	return nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// printHistory lists the versions, then the field changes of each.
func printHistory(w io.Writer, revisions []registry.Revision) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tUPDATED\tEND\tVALIDATED")
	for _, r := range revisions {
		p := r.Provider
		updated := p.UpdatedAt
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", p.Version, formatTime(&updated), formatTime(p.EndAt), formatTime(p.Validated))
	}
	_ = tw.Flush()

	for _, r := range revisions {
		if len(r.Changes) == 0 {
			continue
		}
		fmt.Fprintf(w, "\nversion %d:\n", r.Provider.Version)
		for _, c := range r.Changes {
			old, cur := formatValue(c.Old), formatValue(c.New)
			if c.Field.Name == "client_secret" {
				old, cur = spreg.ObfuscatedSecret, spreg.ObfuscatedSecret
			}
			fmt.Fprintf(w, "  %s (%s): %s -> %s\n", c.Field.Label, c.Field.Group, old, cur)
		}
	}
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return `""`
	case string:
		return fmt.Sprintf("%q", x)
	case []string:
		return "[" + strings.Join(x, ", ") + "]"
	}
	return fmt.Sprintf("%+v", v)
}
