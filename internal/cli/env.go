package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/spregistry/spreg/internal/config"
	"github.com/spregistry/spreg/internal/db"
	"github.com/spregistry/spreg/internal/logging"
	"github.com/spregistry/spreg/internal/metadata"
	"github.com/spregistry/spreg/internal/registry"
	"github.com/spregistry/spreg/internal/secrets"
	"github.com/spregistry/spreg/internal/store"
	"github.com/spregistry/spreg/pkg/spreg"
)

// envAzureClientSecret is read from the environment only, never from spreg.yaml.
const envAzureClientSecret = "AZURE_CLIENT_SECRET"

// loadConfig loads .env, the config file and environment overrides.
// A missing config file is not an error; defaults and the environment apply.
func loadConfig(path string, getenv func(string) string) (*config.Config, error) {
	_ = godotenv.Load()

	cfg, err := config.Load(path)
	if err != nil {
		if !errors.Is(err, config.ErrConfigNotFound) {
			return nil, fmt.Errorf("failed to load %s: %w", spreg.DefaultConfigFile, err)
		}
		cfg = config.Default()
	}
	cfg.ApplyEnv(getenv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// session is what a command needs to talk to the registry.
type session struct {
	cfg      *config.Config
	logger   *logging.ConsoleLogger
	store    *store.PostgresStore
	registry *registry.Service
	close    func()
}

// openSession loads configuration and connects to the registry database.
func openSession(ctx context.Context, cmd *cobra.Command) (*session, error) {
	verbose := getVerboseFlag(cmd)
	logger := logging.NewConsoleLogger(verbose)

	cfg, err := loadConfig(getConfigFlag(cmd), os.Getenv)
	if err != nil {
		return nil, err
	}

	connConfig, err := db.FromConfig(cfg.Database, os.Getenv(envAzureClientSecret))
	if err != nil {
		return nil, err
	}
	if verbose {
		logConnectionVerbose(connConfig)
	}

	connector, err := db.NewConnector(connConfig, logger)
	if err != nil {
		return nil, err
	}
	pool, err := connector.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %v: %w", err, spreg.ErrConnectionFailed)
	}

	st := store.NewPostgresStore(pool)
	reg := registry.New(st,
		registry.WithLogger(logger),
		registry.WithNotifier(registry.NewLogNotifier(logger)),
	)
	return &session{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		registry: reg,
		close: func() {
			pool.Close()
			if c, ok := connector.(interface{ Close() error }); ok {
				_ = c.Close()
			}
		},
	}, nil
}

// logConnectionVerbose logs connection details when verbose mode is enabled.
func logConnectionVerbose(connConfig *spreg.ConnectionConfig) {
	fmt.Fprintf(os.Stderr, "[VERBOSE] Connection resolved:\n")
	fmt.Fprintf(os.Stderr, "  Host: %s\n", connConfig.Host)
	fmt.Fprintf(os.Stderr, "  Port: %d\n", connConfig.Port)
	fmt.Fprintf(os.Stderr, "  User: %s\n", connConfig.Username)
	fmt.Fprintf(os.Stderr, "  Database: %s\n", connConfig.Database)
	fmt.Fprintf(os.Stderr, "  SSL Mode: %s\n", connConfig.SSLMode)
	fmt.Fprintf(os.Stderr, "  Auth Method: %s\n", connConfig.AuthMethod)
}

func metadataOptions(cfg *config.Config) metadata.Options {
	return metadata.Options{
		MFAContext:            cfg.Metadata.MFAContext,
		PrivacyPolicyFallback: cfg.Metadata.PrivacyPolicyFallback,
		NameIDFormats:         cfg.Metadata.NameIDFormats,
		LDAPFlatLists:         cfg.Metadata.LDAPFlatLists,
	}
}

// newCipher builds the secret cipher. It fails when no key is configured.
func newCipher(cfg *config.Config) (*secrets.Cipher, error) {
	if cfg.Secrets.Key == "" {
		return nil, fmt.Errorf("secrets.key is not set (or $%s): %w", config.EnvSecretKey, spreg.ErrInvalidConfig)
	}
	return secrets.New(cfg.Secrets.Key, cfg.Secrets.OldKeys...)
}

// signalContext returns a context cancelled on Ctrl+C or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			fmt.Fprintln(os.Stderr, "\n[INTERRUPT] Received interrupt signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()
	return ctx, cancel
}
