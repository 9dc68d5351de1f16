package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/spregistry/spreg/internal/secrets"
	"github.com/spregistry/spreg/pkg/spreg"
)

var secretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Manage OIDC client secrets",
	Long: `Client secrets are stored as Fernet tokens encrypted with secrets.key.

Available commands:
  set           Encrypt and store the client secret of an OIDC client
  generate-key  Print a new random key for secrets.key

Rotating keys: move the current key to secrets.old_keys and put the new key in
secrets.key. Old secrets stay readable; new secrets use the new key.`,
}

var secretSetCmd = &cobra.Command{
	Use:   "set <entity-id>",
	Short: "Encrypt and store the client secret of an OIDC client",
	Long: `Set reads the client secret from the terminal (without echo) or from
standard input and stores it encrypted. Storing a secret creates a new
version when the current one was validated.

Example:
  printf '%s' "$CLIENT_SECRET" | spreg secret set my-client`,
	Args: RequireEntityID,
	RunE: runSecretSet,
}

var secretKeyCmd = &cobra.Command{
	Use:   "generate-key",
	Short: "Print a new random key for secrets.key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := secrets.GenerateKey()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), key)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(secretCmd)
	secretCmd.AddCommand(secretSetCmd, secretKeyCmd)
}

func runSecretSet(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	s, err := openSession(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	cipher, err := newCipher(s.cfg)
	if err != nil {
		return err
	}

	sp, err := s.registry.Lookup(ctx, args[0])
	if err != nil {
		return err
	}
	if sp.ServiceType != spreg.ServiceTypeOIDC {
		return fmt.Errorf("%s is a %s service provider, client secrets belong to oidc clients: %w", sp.EntityID, sp.ServiceType, spreg.ErrInvalidConfig)
	}

	plaintext, err := readSecret(cmd.InOrStdin(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	token, err := cipher.Encrypt(plaintext)
	if err != nil {
		return err
	}

	updated, err := s.registry.Update(ctx, sp.ID, func(cur *spreg.ServiceProvider) error {
		cur.ClientSecret = token
		return nil
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "stored client secret for %s (version %d)\n", updated.EntityID, updated.Version)
	return nil
}

// readSecret reads one secret. A terminal is read without echo; any other
// input is read up to the first newline.
func readSecret(in io.Reader, prompt io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(prompt, "Client secret: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("failed to read secret: %w", err)
		}
		return checkSecret(string(b))
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read secret: %w", err)
	}
	return checkSecret(strings.TrimRight(line, "\r\n"))
}

func checkSecret(s string) (string, error) {
	if s == "" {
		return "", fmt.Errorf("empty client secret: %w", spreg.ErrInvalidConfig)
	}
	return s, nil
}
