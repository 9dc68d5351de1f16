package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spregistry/spreg/internal/retry"
	"github.com/spregistry/spreg/pkg/spreg"
)

// TokenProvider acquires short-lived cloud tokens used as the PostgreSQL password.
type TokenProvider interface {
	GetToken(ctx context.Context) (token string, expiresOn time.Time, err error)

	// String describes the provider for logs. Must not include secrets.
	String() string
}

// TokenBasedConnector connects using a fresh token from a TokenProvider on
// every attempt (AWS IAM, Azure Entra ID).
type TokenBasedConnector struct {
	config        *spreg.ConnectionConfig
	tokenProvider TokenProvider
	logger        spreg.Logger
	executor      *retry.Executor
}

func NewTokenBasedConnector(config *spreg.ConnectionConfig, tokenProvider TokenProvider, logger spreg.Logger) *TokenBasedConnector {
	return &TokenBasedConnector{
		config:        config,
		tokenProvider: tokenProvider,
		logger:        logger,
		executor:      retry.Default(retry.NewPostgreSQLErrorClassifier()),
	}
}

func (c *TokenBasedConnector) Connect(ctx context.Context) (*pgxpool.Pool, error) {
	var pool *pgxpool.Pool

	err := c.executor.WithOnRetry(logRetry(c.logger)).Execute(ctx, func(ctx context.Context) error {
		token, expiresOn, err := c.tokenProvider.GetToken(ctx)
		if err != nil {
			return fmt.Errorf("failed to acquire token from %s: %w", c.tokenProvider, err)
		}
		if left := time.Until(expiresOn); left < 5*time.Minute {
			c.logger.Warn("%s token expires in %v", c.tokenProvider, left.Round(time.Second))
		}

		withToken := *c.config
		withToken.Password = token

		pool, err = openPool(ctx, BuildConnectionString(&withToken), c.config, c.logger)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pool, nil
}
