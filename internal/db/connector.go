package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vvka-141/rgpipe/internal/retry"
	"github.com/vvka-141/rgpipe/pkg/rgpipe"
)

// Pool sizing. Loads are sequential, so a small pool is plenty.
const (
	DefaultMaxConns        = 4
	DefaultMinConns        = 1
	DefaultMaxConnIdleTime = 30 * time.Minute
)

// dialer opens and pings a pool for one attempt. Token connectors inject
// their own password per attempt through prepare.
type dialer struct {
	cfg      *rgpipe.ConnectionConfig
	logger   rgpipe.Logger
	executor *retry.Executor
}

func newDialer(cfg *rgpipe.ConnectionConfig, logger rgpipe.Logger) *dialer {
	strategy := retry.NewBackoff(rgpipe.DefaultRetryMaxAttempts,
		retry.WithInitialDelay(rgpipe.DefaultRetryInitialDelay),
		retry.WithMaxDelay(rgpipe.DefaultRetryMaxDelay),
	)
	exec := retry.NewExecutor(retry.NewConnectClassifier(), strategy).
		WithOnRetry(func(attempt int, err error, delay time.Duration) {
			logger.Verbose("Connection attempt %d failed (%v), retrying in %s", attempt+1, err, delay.Round(time.Millisecond))
		})
	return &dialer{cfg: cfg, logger: logger, executor: exec}
}

// dial retries transient failures. prepare, when non-nil, may adjust the
// pool config before each attempt.
func (d *dialer) dial(ctx context.Context, cfg *rgpipe.ConnectionConfig, prepare func(ctx context.Context, pc *pgxpool.Config) error) (*pgxpool.Pool, error) {
	var pool *pgxpool.Pool
	err := d.executor.Execute(ctx, func(ctx context.Context) error {
		pc, err := pgxpool.ParseConfig(BuildConnectionString(cfg))
		if err != nil {
			return fmt.Errorf("parse connection config: %v: %w", err, rgpipe.ErrInvalidConfig)
		}
		d.configurePool(pc)
		if prepare != nil {
			if err := prepare(ctx, pc); err != nil {
				return err
			}
		}

		p, err := pgxpool.NewWithConfig(ctx, pc)
		if err != nil {
			return wrapConnectionError(err, cfg)
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return wrapConnectionError(err, cfg)
		}
		pool = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	d.logger.Verbose("Connected to %s:%d/%s", cfg.Host, cfg.Port, cfg.Database)
	return pool, nil
}

func (d *dialer) configurePool(pc *pgxpool.Config) {
	pc.MaxConns = DefaultMaxConns
	pc.MinConns = DefaultMinConns
	pc.MaxConnIdleTime = DefaultMaxConnIdleTime
	pc.ConnConfig.OnNotice = func(_ *pgconn.PgConn, n *pgconn.Notice) {
		d.logger.Verbose("%s: %s", n.Severity, n.Message)
	}
}

// StandardConnector authenticates with username and password.
type StandardConnector struct {
	*dialer
}

func NewStandardConnector(cfg *rgpipe.ConnectionConfig, logger rgpipe.Logger) *StandardConnector {
	return &StandardConnector{dialer: newDialer(cfg, logger)}
}

func (c *StandardConnector) Connect(ctx context.Context) (*pgxpool.Pool, error) {
	return c.dial(ctx, c.cfg, nil)
}

// NewConnector returns the connector matching cfg.AuthMethod.
// Connectors holding background resources also implement io.Closer.
func NewConnector(cfg *rgpipe.ConnectionConfig, logger rgpipe.Logger) (rgpipe.Connector, error) {
	switch cfg.AuthMethod {
	case rgpipe.AuthMethodStandard:
		return NewStandardConnector(cfg, logger), nil
	case rgpipe.AuthMethodAWSIAM:
		return newAWSConnector(cfg, logger)
	case rgpipe.AuthMethodGoogleIAM:
		return newGoogleConnector(cfg, logger)
	case rgpipe.AuthMethodAzureEntraID:
		return newAzureConnector(cfg, logger)
	default:
		return nil, fmt.Errorf("auth method %v: %w", cfg.AuthMethod, rgpipe.ErrUnsupportedAuthMethod)
	}
}

// wrapConnectionError turns a raw pgx error into one with hints.
// The result always wraps rgpipe.ErrConnectionFailed and err.
func wrapConnectionError(err error, cfg *rgpipe.ConnectionConfig) error {
	msg := strings.ToLower(err.Error())
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	var hint string
	switch {
	case strings.Contains(msg, "connection refused"):
		hint = fmt.Sprintf(`connection refused by %s

Check that PostgreSQL is running (pg_isready -h %s -p %d)
and that host and port are right.`, addr, cfg.Host, cfg.Port)

	case strings.Contains(msg, "no such host"):
		hint = fmt.Sprintf(`cannot resolve host %q

Check the hostname and your DNS settings.`, cfg.Host)

	case strings.Contains(msg, "password authentication failed"):
		hint = fmt.Sprintf(`password authentication failed for user %q

Check $PGPASSWORD or the password in the connection string.`, cfg.Username)

	case strings.Contains(msg, "does not exist"):
		hint = fmt.Sprintf(`database %q does not exist

Create it first:
  createdb %s`, cfg.Database, cfg.Database)

	case strings.Contains(msg, "timeout"), strings.Contains(msg, "timed out"):
		hint = fmt.Sprintf(`connection to %s timed out

The server may be overloaded, or a firewall is dropping packets.`, addr)

	case strings.Contains(msg, "ssl"), strings.Contains(msg, "tls"):
		hint = `SSL/TLS negotiation failed

Try a different --sslmode (disable, require, verify-full).`

	default:
		return fmt.Errorf("%w: %w", rgpipe.ErrConnectionFailed, err)
	}
	return fmt.Errorf("%s\n\n%w: %w", hint, rgpipe.ErrConnectionFailed, err)
}
