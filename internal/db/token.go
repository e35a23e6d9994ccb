package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vvka-141/rgpipe/pkg/rgpipe"
)

// tokenExpiryWarning is how close to expiry a fresh token may be before
// the connector warns.
const tokenExpiryWarning = 5 * time.Minute

// TokenProvider issues short-lived database passwords.
type TokenProvider interface {
	GetToken(ctx context.Context) (token string, expiresOn time.Time, err error)
	String() string
}

// TokenConnector authenticates with a token from a TokenProvider in place of
// a password. Every new physical connection asks for a fresh token, so a
// pool outlives any single token.
type TokenConnector struct {
	*dialer
	provider TokenProvider
	name     string
}

func NewTokenConnector(cfg *rgpipe.ConnectionConfig, provider TokenProvider, name string, logger rgpipe.Logger) *TokenConnector {
	return &TokenConnector{dialer: newDialer(cfg, logger), provider: provider, name: name}
}

func (c *TokenConnector) Connect(ctx context.Context) (*pgxpool.Pool, error) {
	cfg := *c.cfg
	cfg.Password = ""
	return c.dial(ctx, &cfg, func(_ context.Context, pc *pgxpool.Config) error {
		pc.BeforeConnect = c.beforeConnect
		return nil
	})
}

func (c *TokenConnector) beforeConnect(ctx context.Context, cc *pgx.ConnConfig) error {
	token, expiresOn, err := c.provider.GetToken(ctx)
	if err != nil {
		return fmt.Errorf("acquire %s token: %v: %w", c.name, err, rgpipe.ErrConnectionFailed)
	}
	if left := time.Until(expiresOn); left < tokenExpiryWarning {
		c.logger.Info("Warning: %s token expires in %s", c.name, left.Round(time.Second))
	}
	cc.Password = token
	return nil
}
