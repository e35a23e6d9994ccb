// Package db resolves PostgreSQL connection parameters and opens pgx pools.
//
// Connection parameters come from, in order of precedence: a connection
// string (--connection, $RGPIPE_CONNECTION_STRING, $DATABASE_URL), granular
// flags (-h, -p, -U, -d), PG* environment variables, rgpipe.yaml, and finally
// defaults (localhost:5432, sslmode=prefer).
//
// NewConnector picks the authentication flavor from the resolved config:
// plain credentials, AWS RDS IAM tokens, Azure Entra ID tokens, or the Google
// Cloud SQL connector with IAM authentication. Establishing the pool is
// retried on transient failures; nothing after that is.
package db
