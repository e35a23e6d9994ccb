package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/vvka-141/rgpipe/internal/config"
	"github.com/vvka-141/rgpipe/internal/db"
	"github.com/vvka-141/rgpipe/internal/services"
	"github.com/vvka-141/rgpipe/internal/store/postgres"
	"github.com/vvka-141/rgpipe/internal/store/sqlite"
	"github.com/vvka-141/rgpipe/pkg/rgpipe"
)

// targetFlags holds the flags shared by build, load and status.
type targetFlags struct {
	connection     string
	host           string
	port           int
	username       string
	database       string
	sslMode        string
	authMethod     string
	awsRegion      string
	googleInstance string
	azureTenantID  string
	azureClientID  string

	schema  string
	sqlite  string
	variant string
	timeout time.Duration
}

func addTargetFlags(cmd *cobra.Command, f *targetFlags) {
	fs := cmd.Flags()

	fs.StringVar(&f.connection, "connection", "",
		"PostgreSQL connection string (URI or ADO.NET format).\n"+
			"Mutually exclusive with granular flags (--host, --port, --username).\n"+
			"Alternative: RGPIPE_CONNECTION_STRING or DATABASE_URL environment variable.\n"+
			"Example: postgresql://alice@localhost:5432/lab")
	fs.StringVarP(&f.host, "host", "h", "",
		"PostgreSQL server host\n"+
			"Precedence: --host > $PGHOST > rgpipe.yaml > localhost")
	fs.IntVarP(&f.port, "port", "p", 0,
		"PostgreSQL server port\n"+
			"Precedence: --port > $PGPORT > rgpipe.yaml > 5432")
	fs.StringVarP(&f.username, "username", "U", "",
		"PostgreSQL user (default: $PGUSER or current OS user)")
	fs.StringVarP(&f.database, "database", "d", "",
		"Database name, overrides the one in a connection string (default: $PGDATABASE or postgres)")
	fs.StringVar(&f.sslMode, "sslmode", "",
		"SSL mode: disable|allow|prefer|require|verify-ca|verify-full\n"+
			"(default: prefer, or $PGSSLMODE)")

	fs.StringVar(&f.authMethod, "auth-method", "",
		"Authentication: standard|aws|google|azure (default: standard)")
	fs.StringVar(&f.awsRegion, "aws-region", "",
		"AWS region for RDS IAM authentication (overrides $AWS_REGION)")
	fs.StringVar(&f.googleInstance, "google-instance", "",
		"Cloud SQL instance connection name (project:region:instance)")
	fs.StringVar(&f.azureTenantID, "azure-tenant-id", "",
		"Azure AD tenant/directory ID (overrides $AZURE_TENANT_ID)")
	fs.StringVar(&f.azureClientID, "azure-client-id", "",
		"Azure AD application/client ID (overrides $AZURE_CLIENT_ID)")

	fs.StringVar(&f.schema, "schema", "",
		"PostgreSQL schema holding the tables (default: <username>_retinal)")
	fs.StringVar(&f.sqlite, "sqlite", "",
		"Use this SQLite database file instead of PostgreSQL")
	fs.StringVar(&f.variant, "variant", "",
		"Table layout: flat|grouped (default: grouped)")
	fs.DurationVar(&f.timeout, "timeout", rgpipe.DefaultTimeout,
		"Catastrophic failure protection timeout, 0 disables it\n"+
			"Examples: 30s, 5m, 1h30m")
}

// settings is everything a command needs after flags, environment and
// rgpipe.yaml have been merged.
type settings struct {
	Variant rgpipe.Variant
	Timeout time.Duration
	Open    services.TargetOpener

	// Describe names the target for log lines, with secrets redacted.
	Describe string
}

// loadProjectConfig reads rgpipe.yaml. A missing default file is not an
// error; a missing explicit --config is.
func loadProjectConfig(path string) (*config.Config, error) {
	explicit := path != ""
	if !explicit {
		path = config.FileName
	}
	cfg, err := config.Load(path)
	if errors.Is(err, config.ErrConfigNotFound) && !explicit {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return cfg, nil
}

func resolveSettings(cmd *cobra.Command, f *targetFlags, logger rgpipe.Logger) (*settings, error) {
	_ = godotenv.Load()

	cfg, err := loadProjectConfig(getConfigFlag(cmd))
	if err != nil {
		return nil, err
	}

	s := &settings{Variant: rgpipe.DefaultVariant, Timeout: f.timeout}

	if f.variant != "" {
		if s.Variant, err = rgpipe.ParseVariant(f.variant); err != nil {
			return nil, err
		}
	} else if v, err := cfg.ParsedVariant(); err != nil {
		return nil, err
	} else if v != 0 {
		s.Variant = v
	}

	if !cmd.Flags().Changed("timeout") {
		d, err := cfg.ParsedTimeout()
		if err != nil {
			return nil, err
		}
		if d > 0 {
			s.Timeout = d
		}
	}

	sqlitePath := f.sqlite
	if sqlitePath == "" && cfg != nil {
		sqlitePath = cfg.SQLite
	}
	if sqlitePath != "" {
		if f.sqlite != "" && (f.connection != "" || f.host != "" || f.schema != "") {
			return nil, fmt.Errorf("--sqlite cannot be combined with --connection, --host or --schema: %w", rgpipe.ErrInvalidConfig)
		}
		s.Describe = "sqlite " + sqlitePath
		s.Open = sqliteOpener(sqlitePath, logger)
		return s, nil
	}

	conn, err := db.ResolveConnectionParams(f.connection, &db.ConnFlags{
		Host:           f.host,
		Port:           f.port,
		Username:       f.username,
		Database:       f.database,
		SSLMode:        f.sslMode,
		AuthMethod:     f.authMethod,
		AWSRegion:      f.awsRegion,
		GoogleInstance: f.googleInstance,
		AzureTenantID:  f.azureTenantID,
		AzureClientID:  f.azureClientID,
	}, db.LoadFromEnvironment(), cfg)
	if err != nil {
		return nil, err
	}
	schema, err := db.ResolveSchema(f.schema, cfg, conn.Username)
	if err != nil {
		return nil, err
	}

	s.Describe = fmt.Sprintf("postgres %s schema %s (%s auth)", db.Redact(conn), schema, conn.AuthMethod)
	s.Open = postgresOpener(conn, schema, logger)
	return s, nil
}

func sqliteOpener(path string, logger rgpipe.Logger) services.TargetOpener {
	return func(ctx context.Context) (rgpipe.Target, error) {
		t, err := sqlite.Open(ctx, path, logger)
		if err != nil {
			return nil, err
		}
		return t, nil
	}
}

func postgresOpener(conn *rgpipe.ConnectionConfig, schema string, logger rgpipe.Logger) services.TargetOpener {
	return func(ctx context.Context) (rgpipe.Target, error) {
		connector, err := db.NewConnector(conn, logger)
		if err != nil {
			return nil, err
		}
		t, err := postgres.Open(ctx, connector, schema, logger)
		if err != nil {
			return nil, err
		}
		return t, nil
	}
}

// commandContext bounds a command by timeout and cancels it on Ctrl+C or
// SIGTERM. A timeout of zero leaves the command unbounded.
func commandContext(timeout time.Duration, what string) (context.Context, context.CancelFunc) {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), timeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			fmt.Fprintf(os.Stderr, "\n[INTERRUPT] Received interrupt signal, cancelling %s...\n", what)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}
