package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/spregistry/spreg/internal/config"
	"github.com/spregistry/spreg/internal/export"
	"github.com/spregistry/spreg/internal/metadata"
	"github.com/spregistry/spreg/internal/publish"
	"github.com/spregistry/spreg/internal/ui"
	"github.com/spregistry/spreg/pkg/spreg"
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish validated metadata to the metadata repository",
	Long: `Publish writes validated metadata into a git working copy and pushes it.

The working copy is publish.repository in spreg.yaml (or $SPREG_PUBLISH_REPO).
Only validated versions of providers matching publish.filter are written.

Workflow:
  1. spreg publish diff             regenerate files and show the changes
  2. spreg publish commit --hash H  regenerate again, commit and push if the
                                    changes still hash to H

If anything changed between the two steps the commit is refused and the
command exits with code 15; run diff again and review the new changes.

Available commands:
  regenerate  Write the metadata files without committing
  diff        Regenerate and show the changes and their hash
  commit      Commit and push the changes identified by --hash`,
}

var publishRegenerateCmd = &cobra.Command{
	Use:   "regenerate",
	Short: "Write the metadata files without committing",
	Args:  cobra.NoArgs,
	RunE:  runPublishRegenerate,
}

var publishDiffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Regenerate and show the changes and their hash",
	Args:  cobra.NoArgs,
	RunE:  runPublishDiff,
}

var publishCommitCmd = &cobra.Command{
	Use:   "commit",
	Short: "Commit and push the changes identified by --hash",
	Long: `Commit regenerates the metadata files, checks that the changes still
hash to --hash, then commits, pushes and verifies that the remote branch
matches the local one. The repository stays locked for the whole sequence.

Without --force the first 8 characters of the hash must be typed to confirm.
--force skips the prompt after a short countdown, for pipelines.`,
	Args: cobra.NoArgs,
	RunE: runPublishCommit,
}

type publishFlagValues struct {
	hash    string
	message string
	force   bool
	filter  string
}

var publishFlags publishFlagValues

func init() {
	rootCmd.AddCommand(publishCmd)
	publishCmd.AddCommand(publishRegenerateCmd, publishDiffCmd, publishCommitCmd)

	publishCmd.PersistentFlags().StringVar(&publishFlags.filter, "filter", "",
		"Override publish.filter: production|test")
	_ = publishCmd.RegisterFlagCompletionFunc("filter", completeFrom(publishFilters))

	publishCommitCmd.Flags().StringVar(&publishFlags.hash, "hash", "",
		"Diff hash printed by 'spreg publish diff'")
	publishCommitCmd.Flags().StringVarP(&publishFlags.message, "message", "m", "",
		"Commit message (default: \"Update metadata\" with a timestamp)")
	publishCommitCmd.Flags().BoolVar(&publishFlags.force, "force", false,
		"Skip the interactive confirmation")
	_ = publishCommitCmd.MarkFlagRequired("hash")
}

// publishOptions builds the publisher options from the configuration and
// the --filter override.
func publishOptions(cfg config.PublishConfig, filter string) (publish.Options, error) {
	if filter == "" {
		filter = cfg.Filter
	}
	var sel export.Selection
	switch filter {
	case "production":
		sel.Production = true
	case "test":
		sel.Test = true
	default:
		return publish.Options{}, fmt.Errorf("invalid argument --filter %q: must be production or test", filter)
	}
	return publish.Options{
		Layout: publish.Layout{
			SAMLFile: cfg.SAMLFile,
			LDAPFile: cfg.LDAPFile,
			LDAPDir:  cfg.LDAPDir,
			OIDCFile: cfg.OIDCFile,
		},
		Selection:   sel,
		LockTimeout: cfg.LockWait(),
	}, nil
}

func gitOptions(cfg config.PublishConfig) publish.GitOptions {
	return publish.GitOptions{
		Remote:      cfg.Remote,
		Branch:      cfg.Branch,
		AuthorName:  cfg.AuthorName,
		AuthorEmail: cfg.AuthorEmail,
		Username:    cfg.Username,
		Token:       cfg.Token,
	}
}

// withPublisher opens a registry session and the working copy and runs fn.
func withPublisher(cmd *cobra.Command, fn func(ctx context.Context, p *publish.Publisher, s *session) error) error {
	ctx, cancel := signalContext()
	defer cancel()

	s, err := openSession(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	pc := s.cfg.Publish
	if pc.Repository == "" {
		return fmt.Errorf("publish.repository is not set (or $%s): %w", config.EnvPublishRepo, spreg.ErrInvalidConfig)
	}
	opts, err := publishOptions(pc, publishFlags.filter)
	if err != nil {
		return err
	}
	repo, err := publish.OpenGit(pc.Repository, gitOptions(pc))
	if err != nil {
		return err
	}

	exportOpts, err := publishExportOptions(s.cfg)
	if err != nil {
		return err
	}
	x := export.New(s.registry, exportOpts, s.logger)
	return fn(ctx, publish.New(repo, x, opts, s.logger), s)
}

// publishExportOptions builds the generator options for the published files.
// Decrypted client secrets need secrets.key.
func publishExportOptions(cfg *config.Config) (export.Options, error) {
	mode, err := metadata.ParseSecretMode(cfg.Publish.SecretMode)
	if err != nil {
		return export.Options{}, err
	}
	opts := export.Options{Metadata: metadataOptions(cfg), SecretMode: mode}
	if mode == metadata.SecretDecrypted {
		cipher, err := newCipher(cfg)
		if err != nil {
			return export.Options{}, err
		}
		opts.Decrypter = cipher
	}
	return opts, nil
}

func runPublishRegenerate(cmd *cobra.Command, args []string) error {
	return withPublisher(cmd, func(ctx context.Context, p *publish.Publisher, s *session) error {
		paths, err := p.Regenerate(ctx)
		if err != nil {
			return err
		}
		for _, path := range paths {
			fmt.Fprintln(cmd.OutOrStdout(), path)
		}
		return nil
	})
}

func runPublishDiff(cmd *cobra.Command, args []string) error {
	return withPublisher(cmd, func(ctx context.Context, p *publish.Publisher, s *session) error {
		if _, err := p.Regenerate(ctx); err != nil {
			return err
		}
		d, err := p.Diff(ctx)
		if err != nil {
			return err
		}
		ui.RenderDiff(cmd.OutOrStdout(), diffFiles(d), d.Hash)
		return nil
	})
}

func runPublishCommit(cmd *cobra.Command, args []string) error {
	verbose := getVerboseFlag(cmd)
	interactive := ui.IsInteractive()

	var approver spreg.Approver
	switch {
	case publishFlags.force:
		approver = ui.NewForcedApprover(verbose)
	case interactive:
		approver = ui.NewInteractiveApprover(verbose)
	default:
		return fmt.Errorf("publish commit needs a terminal for confirmation; use --force in pipelines: %w", spreg.ErrApprovalDenied)
	}

	message := publishFlags.message
	if message == "" {
		message = "Update metadata " + time.Now().UTC().Format(time.RFC3339)
	}

	return withPublisher(cmd, func(ctx context.Context, p *publish.Publisher, s *session) error {
		approved, err := approver.RequestApproval(ctx, publishFlags.hash)
		if err != nil {
			return err
		}
		if !approved {
			return spreg.ErrApprovalDenied
		}

		var commit string
		err = ui.RunWithSpinner(ctx, cmd.ErrOrStderr(), interactive, "Committing and pushing", func(ctx context.Context) error {
			var err error
			commit, err = p.Commit(ctx, publishFlags.hash, message)
			return err
		})
		switch {
		case errors.Is(err, spreg.ErrNothingToCommit):
			fmt.Fprintln(cmd.OutOrStdout(), "Nothing to publish.")
			return nil
		case err != nil:
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Published %s\n", ui.SuccessStyle.Render("✓"), commit)
		return nil
	})
}

func diffFiles(d *publish.Diff) []ui.DiffFile {
	out := make([]ui.DiffFile, len(d.Files))
	for i, f := range d.Files {
		out[i] = ui.DiffFile{Path: f.Path, Status: f.Status, Unified: f.Unified}
	}
	return out
}
