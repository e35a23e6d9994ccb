package db

import (
	"context"
	"fmt"
	"net"

	"cloud.google.com/go/cloudsqlconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vvka-141/rgpipe/pkg/rgpipe"
)

// GoogleConnector dials Cloud SQL through the Cloud SQL Go connector with
// IAM database authentication. Close releases the dialer.
type GoogleConnector struct {
	*dialer
	instance string
	cloudsql *cloudsqlconn.Dialer
}

func newGoogleConnector(cfg *rgpipe.ConnectionConfig, logger rgpipe.Logger) (rgpipe.Connector, error) {
	if cfg.GoogleInstance == "" {
		return nil, fmt.Errorf("Google Cloud SQL IAM auth requires --google-instance (project:region:instance): %w", rgpipe.ErrInvalidConfig)
	}
	if cfg.Username == "" {
		return nil, fmt.Errorf("Google Cloud SQL IAM auth requires a username (-U): %w", rgpipe.ErrInvalidConfig)
	}
	return &GoogleConnector{dialer: newDialer(cfg, logger), instance: cfg.GoogleInstance}, nil
}

func (c *GoogleConnector) Connect(ctx context.Context) (*pgxpool.Pool, error) {
	if c.cloudsql == nil {
		d, err := cloudsqlconn.NewDialer(ctx, cloudsqlconn.WithIAMAuthN())
		if err != nil {
			return nil, fmt.Errorf("cloud sql dialer: %v: %w", err, rgpipe.ErrConnectionFailed)
		}
		c.cloudsql = d
	}

	// The dialer handles TLS and routing; host is a placeholder.
	cfg := *c.cfg
	cfg.Host = "localhost"
	cfg.Password = ""
	cfg.SSLMode = "disable"

	return c.dial(ctx, &cfg, func(_ context.Context, pc *pgxpool.Config) error {
		pc.ConnConfig.DialFunc = func(ctx context.Context, _, _ string) (net.Conn, error) {
			return c.cloudsql.Dial(ctx, c.instance)
		}
		return nil
	})
}

func (c *GoogleConnector) Close() error {
	if c.cloudsql == nil {
		return nil
	}
	err := c.cloudsql.Close()
	c.cloudsql = nil
	return err
}
