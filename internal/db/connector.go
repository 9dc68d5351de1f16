package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spregistry/spreg/internal/retry"
	"github.com/spregistry/spreg/pkg/spreg"
)

const (
	DefaultMaxConns        = 8
	DefaultMinConns        = 1
	DefaultMaxConnIdleTime = 10 * time.Minute
)

func configurePool(poolConfig *pgxpool.Config, logger spreg.Logger) {
	poolConfig.MaxConns = DefaultMaxConns
	poolConfig.MinConns = DefaultMinConns
	poolConfig.MaxConnIdleTime = DefaultMaxConnIdleTime
	poolConfig.ConnConfig.OnNotice = func(_ *pgconn.PgConn, notice *pgconn.Notice) {
		logger.Verbose("postgres %s: %s", strings.ToLower(notice.Severity), notice.Message)
	}
}

// StandardConnector connects with username/password credentials and retries
// transient failures.
type StandardConnector struct {
	config   *spreg.ConnectionConfig
	logger   spreg.Logger
	executor *retry.Executor
}

func NewStandardConnector(config *spreg.ConnectionConfig, logger spreg.Logger) *StandardConnector {
	return &StandardConnector{
		config:   config,
		logger:   logger,
		executor: retry.Default(retry.NewPostgreSQLErrorClassifier()),
	}
}

func (c *StandardConnector) Connect(ctx context.Context) (*pgxpool.Pool, error) {
	var pool *pgxpool.Pool
	connStr := BuildConnectionString(c.config)

	err := c.executor.WithOnRetry(logRetry(c.logger)).Execute(ctx, func(ctx context.Context) error {
		var err error
		pool, err = openPool(ctx, connStr, c.config, c.logger)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pool, nil
}

func openPool(ctx context.Context, connStr string, config *spreg.ConnectionConfig, logger spreg.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection config: %w", err)
	}
	configurePool(poolConfig, logger)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, wrapConnectionError(err, config.Host, config.Port, config.Database)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, wrapConnectionError(err, config.Host, config.Port, config.Database)
	}
	return pool, nil
}

func logRetry(logger spreg.Logger) func(int, error, time.Duration) {
	return func(attempt int, err error, delay time.Duration) {
		logger.Warn("connection attempt %d failed, retrying in %v: %v", attempt+1, delay.Round(time.Millisecond), err)
	}
}

// NewConnector creates the Connector matching config.AuthMethod.
func NewConnector(config *spreg.ConnectionConfig, logger spreg.Logger) (spreg.Connector, error) {
	switch config.AuthMethod {
	case spreg.AuthMethodStandard:
		return NewStandardConnector(config, logger), nil
	case spreg.AuthMethodAWSIAM:
		return newAWSConnector(config, logger)
	case spreg.AuthMethodGoogleIAM:
		return newGoogleConnector(config, logger)
	case spreg.AuthMethodAzureEntraID:
		return newAzureConnector(config, logger)
	default:
		return nil, fmt.Errorf("unsupported auth method %v: %w", config.AuthMethod, spreg.ErrUnsupportedAuthMethod)
	}
}

// wrapConnectionError adds actionable guidance to raw pgx connection errors.
func wrapConnectionError(err error, host string, port int, database string) error {
	errStr := strings.ToLower(err.Error())
	addr := fmt.Sprintf("%s:%d", host, port)

	switch {
	case strings.Contains(errStr, "connection refused"):
		return fmt.Errorf(`connection refused to %s

Possible causes:
  - PostgreSQL is not running (check: pg_isready -h %s -p %d)
  - Wrong host or port in database.url

Original error: %w`, addr, host, port, err)

	case strings.Contains(errStr, "no such host"):
		return fmt.Errorf(`cannot resolve host "%s"

Original error: %w`, host, err)

	case strings.Contains(errStr, "password authentication failed"):
		return fmt.Errorf(`password authentication failed for database "%s"

Possible causes:
  - Wrong password (check $SPREG_DATABASE_URL or ~/.pgpass)
  - Cloud token expired or issued for another user

Original error: %w`, database, err)

	case strings.Contains(errStr, "does not exist"):
		return fmt.Errorf(`database "%s" does not exist

To create it and the registry schema:
  createdb %s && spreg schema | psql %s

Original error: %w`, database, database, database, err)

	case strings.Contains(errStr, "timeout"):
		return fmt.Errorf(`connection timed out to %s

Original error: %w`, addr, err)

	default:
		return fmt.Errorf("failed to connect to database: %w", err)
	}
}
