package db

import (
	"fmt"
	"os"
	"strconv"

	"github.com/vvka-141/rgpipe/internal/config"
	"github.com/vvka-141/rgpipe/pkg/rgpipe"
)

// ConnFlags holds the connection flags given on the command line.
// There is no password flag; passwords come from $PGPASSWORD, ~/.pgpass or
// a connection string.
type ConnFlags struct {
	Host     string
	Port     int
	Username string
	Database string
	SSLMode  string

	AuthMethod     string
	AWSRegion      string
	GoogleInstance string
	AzureTenantID  string
	AzureClientID  string
}

// hasServerFlags reports whether any of -h, -p, -U or --sslmode was given.
// -d is excluded: it may override the database of a connection string.
func (f *ConnFlags) hasServerFlags() bool {
	return f.Host != "" || f.Port != 0 || f.Username != "" || f.SSLMode != ""
}

// EnvVars is the subset of the environment the resolver reads.
type EnvVars struct {
	RGPIPE_CONNECTION_STRING string
	DATABASE_URL             string

	PGHOST     string
	PGPORT     string
	PGUSER     string
	PGPASSWORD string
	PGDATABASE string
	PGSSLMODE  string

	AWS_REGION          string
	AZURE_TENANT_ID     string
	AZURE_CLIENT_ID     string
	AZURE_CLIENT_SECRET string

	USER string
}

func LoadFromEnvironment() *EnvVars {
	user := os.Getenv("USER")
	if user == "" {
		user = os.Getenv("USERNAME")
	}
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = os.Getenv("AWS_DEFAULT_REGION")
	}
	return &EnvVars{
		RGPIPE_CONNECTION_STRING: os.Getenv("RGPIPE_CONNECTION_STRING"),
		DATABASE_URL:             os.Getenv("DATABASE_URL"),
		PGHOST:                   os.Getenv("PGHOST"),
		PGPORT:                   os.Getenv("PGPORT"),
		PGUSER:                   os.Getenv("PGUSER"),
		PGPASSWORD:               os.Getenv("PGPASSWORD"),
		PGDATABASE:               os.Getenv("PGDATABASE"),
		PGSSLMODE:                os.Getenv("PGSSLMODE"),
		AWS_REGION:               region,
		AZURE_TENANT_ID:          os.Getenv("AZURE_TENANT_ID"),
		AZURE_CLIENT_ID:          os.Getenv("AZURE_CLIENT_ID"),
		AZURE_CLIENT_SECRET:      os.Getenv("AZURE_CLIENT_SECRET"),
		USER:                     user,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// ResolveConnectionParams builds a ConnectionConfig. Precedence:
//
//  1. --connection
//  2. $RGPIPE_CONNECTION_STRING
//  3. $DATABASE_URL, unless server flags were given
//  4. granular flags, then PG* variables, then rgpipe.yaml, then defaults
//
// A connection string together with server flags is an error. -d always
// overrides the database. cfg may be nil.
func ResolveConnectionParams(connFlag string, flags *ConnFlags, env *EnvVars, cfg *config.Config) (*rgpipe.ConnectionConfig, error) {
	if flags == nil {
		flags = &ConnFlags{}
	}
	if env == nil {
		env = &EnvVars{}
	}
	var file config.ConnectionConfig
	if cfg != nil {
		file = cfg.Connection
	}

	if connFlag != "" && flags.hasServerFlags() {
		return nil, fmt.Errorf(`cannot combine --connection with -h, -p, -U or --sslmode
Use either:
  --connection "postgresql://user@localhost:5432/lab"
  -h localhost -p 5432 -U user -d lab: %w`, rgpipe.ErrInvalidConfig)
	}

	connStr := connFlag
	if connStr == "" {
		connStr = env.RGPIPE_CONNECTION_STRING
	}
	if connStr == "" && !flags.hasServerFlags() {
		connStr = env.DATABASE_URL
	}

	var (
		conn *rgpipe.ConnectionConfig
		err  error
	)
	if connStr != "" {
		conn, err = ParseConnectionString(connStr)
		if err != nil {
			return nil, fmt.Errorf("invalid connection string: %w", err)
		}
		if conn.Password == "" {
			conn.Password = env.PGPASSWORD
		}
		if flags.Database != "" {
			conn.Database = flags.Database
		}
	} else {
		conn, err = resolveGranular(flags, env, &file)
		if err != nil {
			return nil, err
		}
	}
	conn.SSLMode = firstNonEmpty(conn.SSLMode, env.PGSSLMODE, file.SSLMode, defaultSSLMode)

	if err := applyAuth(conn, flags, env, &file); err != nil {
		return nil, err
	}
	return conn, nil
}

func resolveGranular(flags *ConnFlags, env *EnvVars, file *config.ConnectionConfig) (*rgpipe.ConnectionConfig, error) {
	conn := newDefaultConfig()
	conn.Host = firstNonEmpty(flags.Host, env.PGHOST, file.Host, defaultHost)
	conn.Username = firstNonEmpty(flags.Username, env.PGUSER, file.Username, env.USER)
	conn.Password = env.PGPASSWORD
	conn.Database = firstNonEmpty(flags.Database, env.PGDATABASE, file.Database, defaultDatabase)
	conn.SSLMode = flags.SSLMode

	switch {
	case flags.Port != 0:
		conn.Port = flags.Port
	case env.PGPORT != "":
		port, err := strconv.Atoi(env.PGPORT)
		if err != nil {
			return nil, fmt.Errorf("invalid $PGPORT %q: %w", env.PGPORT, rgpipe.ErrInvalidConfig)
		}
		conn.Port = port
	case file.Port != 0:
		conn.Port = file.Port
	}
	if conn.Port <= 0 || conn.Port > 65535 {
		return nil, fmt.Errorf("port %d out of range: %w", conn.Port, rgpipe.ErrInvalidConfig)
	}
	return conn, nil
}

// applyAuth sets the auth method and its cloud parameters. An explicit method
// from flags or rgpipe.yaml wins; otherwise Azure credentials in flags or the
// environment select Entra ID.
func applyAuth(conn *rgpipe.ConnectionConfig, flags *ConnFlags, env *EnvVars, file *config.ConnectionConfig) error {
	method, err := rgpipe.ParseAuthMethod(firstNonEmpty(flags.AuthMethod, file.AuthMethod))
	if err != nil {
		return err
	}

	conn.AWSRegion = firstNonEmpty(flags.AWSRegion, file.AWSRegion, env.AWS_REGION)
	conn.GoogleInstance = firstNonEmpty(flags.GoogleInstance, file.GoogleInstance)
	conn.AzureTenantID = firstNonEmpty(flags.AzureTenantID, file.AzureTenantID, env.AZURE_TENANT_ID)
	conn.AzureClientID = firstNonEmpty(flags.AzureClientID, file.AzureClientID, env.AZURE_CLIENT_ID)
	conn.AzureClientSecret = env.AZURE_CLIENT_SECRET

	explicit := flags.AuthMethod != "" || file.AuthMethod != ""
	if !explicit && (conn.AzureTenantID != "" || conn.AzureClientID != "") {
		method = rgpipe.AuthMethodAzureEntraID
	}
	conn.AuthMethod = method
	return nil
}

// ResolveSchema picks the PostgreSQL schema: flag, then rgpipe.yaml, then
// "<username>_retinal".
func ResolveSchema(flag string, cfg *config.Config, username string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if cfg != nil && cfg.Schema != "" {
		return cfg.Schema, nil
	}
	if username == "" {
		return "", fmt.Errorf("cannot derive schema without a username; pass --schema: %w", rgpipe.ErrInvalidConfig)
	}
	return username + rgpipe.SchemaSuffix, nil
}
