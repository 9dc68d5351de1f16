package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/spregistry/spreg/pkg/spreg"
)

var attributesCmd = &cobra.Command{
	Use:   "attributes",
	Short: "Manage the attribute catalog",
	Long: `The attribute catalog lists the attributes service providers may
request. Imports only link attributes that exist in the catalog.

Available commands:
  list  Show the catalog
  load  Add attributes from a YAML file

Catalog file format:
  - friendly_name: mail
    name: urn:oid:0.9.2342.19200300.100.1.3
    oid: 0.9.2342.19200300.100.1.3
    public_saml: true
    public_oidc: true
    oidc_claim: email`,
}

var attributesListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the catalog",
	Args:  cobra.NoArgs,
	RunE:  runAttributesList,
}

var attributesLoadCmd = &cobra.Command{
	Use:   "load <file>",
	Short: "Add attributes from a YAML file",
	Long: `Load adds every attribute of the file whose name and friendly name are
not in the catalog yet. Existing attributes are left unchanged.`,
	Args: RequireMetadataFile,
	RunE: runAttributesLoad,
}

func init() {
	rootCmd.AddCommand(attributesCmd)
	attributesCmd.AddCommand(attributesListCmd, attributesLoadCmd)
}

// catalogEntry is one attribute of a catalog file.
type catalogEntry struct {
	FriendlyName string `yaml:"friendly_name"`
	Name         string `yaml:"name"`
	OID          string `yaml:"oid,omitempty"`
	NameFormat   string `yaml:"name_format,omitempty"`
	Scoped       bool   `yaml:"scoped,omitempty"`
	PublicSAML   bool   `yaml:"public_saml,omitempty"`
	PublicLDAP   bool   `yaml:"public_ldap,omitempty"`
	PublicOIDC   bool   `yaml:"public_oidc,omitempty"`
	OIDCClaim    string `yaml:"oidc_claim,omitempty"`
}

// parseCatalog decodes a catalog file. Every entry needs a friendly name and
// a formal name.
func parseCatalog(data []byte) ([]*spreg.Attribute, error) {
	var entries []catalogEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse attribute catalog: %v: %w", err, spreg.ErrInvalidConfig)
	}
	seen := map[string]bool{}
	out := make([]*spreg.Attribute, 0, len(entries))
	for i, e := range entries {
		if e.FriendlyName == "" || e.Name == "" {
			return nil, fmt.Errorf("attribute %d: friendly_name and name are required: %w", i+1, spreg.ErrInvalidConfig)
		}
		if seen[e.FriendlyName] {
			return nil, fmt.Errorf("attribute %q listed twice: %w", e.FriendlyName, spreg.ErrInvalidConfig)
		}
		seen[e.FriendlyName] = true
		out = append(out, &spreg.Attribute{
			ID:           uuid.New(),
			FriendlyName: e.FriendlyName,
			Name:         e.Name,
			OID:          e.OID,
			NameFormat:   e.NameFormat,
			Scoped:       e.Scoped,
			PublicSAML:   e.PublicSAML,
			PublicLDAP:   e.PublicLDAP,
			PublicOIDC:   e.PublicOIDC,
			OIDCClaim:    e.OIDCClaim,
		})
	}
	return out, nil
}

// loadCatalog inserts the attributes missing from the catalog and returns
// how many were added. An attribute is present when its formal or friendly
// name is already known.
func loadCatalog(ctx context.Context, st spreg.Store, attrs []*spreg.Attribute) (int, error) {
	added := 0
	err := st.Update(ctx, func(tx spreg.Tx) error {
		added = 0
		existing, err := tx.Attributes(ctx)
		if err != nil {
			return err
		}
		catalog := spreg.NewAttributeCatalog(existing)
		for _, a := range attrs {
			if _, ok := catalog.Lookup(a.Name, a.FriendlyName); ok {
				continue
			}
			if err := tx.InsertAttribute(ctx, a.Clone()); err != nil {
				return err
			}
			added++
		}
		return nil
	})
	return added, err
}

func runAttributesLoad(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read attribute catalog: %w", err)
	}
	attrs, err := parseCatalog(data)
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

	added, err := loadCatalog(ctx, s.store, attrs)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d attributes added, %d already present\n", added, len(attrs)-added)
	return nil
}

func runAttributesList(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	s, err := openSession(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	var attrs []*spreg.Attribute
	err = s.store.View(ctx, func(tx spreg.Tx) error {
		var err error
		attrs, err = tx.Attributes(ctx)
		return err
	})
	if err != nil {
		return err
	}
	printCatalog(cmd.OutOrStdout(), attrs)
	return nil
}

func printCatalog(w io.Writer, attrs []*spreg.Attribute) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FRIENDLY NAME\tNAME\tSAML\tLDAP\tOIDC\tCLAIM")
	for _, a := range attrs {
		fmt.Fprintf(tw, "%s\t%s\t%t\t%t\t%t\t%s\n", a.FriendlyName, a.Name, a.PublicSAML, a.PublicLDAP, a.PublicOIDC, a.OIDCClaim)
	}
	_ = tw.Flush()
}
