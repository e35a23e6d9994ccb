// Package testing holds helpers shared by rgpipe integration tests.
package testing

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vvka-141/rgpipe/internal/testinfra"
)

var (
	containerOnce sync.Once
	containerConn string
	containerErr  error
)

func startContainer() (string, error) {
	containerOnce.Do(func() {
		ctr, err := testinfra.StartPostgres(context.Background())
		if err != nil {
			containerErr = err
			return
		}
		containerConn = ctr.ConnString
	})
	return containerConn, containerErr
}

// GetTestConnectionString returns $RGPIPE_TEST_CONN, or the connection
// string of a shared container, or skips the test.
func GetTestConnectionString(t *testing.T) string {
	t.Helper()

	if conn := os.Getenv("RGPIPE_TEST_CONN"); conn != "" {
		return conn
	}
	conn, err := startContainer()
	if err != nil {
		t.Skipf("RGPIPE_TEST_CONN not set and Docker unavailable: %v", err)
	}
	return conn
}

func SkipIfShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
}

// RequireDatabase skips unless a database is reachable.
func RequireDatabase(t *testing.T) string {
	t.Helper()
	SkipIfShort(t)
	return GetTestConnectionString(t)
}

// GetTestPool opens a pool that is closed when the test ends.
func GetTestPool(t *testing.T, connString string) *pgxpool.Pool {
	t.Helper()

	pool, err := pgxpool.New(context.Background(), connString)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

// UniqueSchema returns a fresh schema name and drops that schema, if it
// was created, when the test ends.
func UniqueSchema(t *testing.T, pool *pgxpool.Pool) string {
	t.Helper()

	name := "rgtest_" + strings.ReplaceAll(uuid.NewString()[:8], "-", "")
	t.Cleanup(func() {
		sql := fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", pgx.Identifier{name}.Sanitize())
		if _, err := pool.Exec(context.Background(), sql); err != nil {
			t.Logf("warning: drop schema %s: %v", name, err)
		}
	})
	return name
}

// ForceApprover approves every request.
type ForceApprover struct{}

func (ForceApprover) RequestApproval(context.Context, string) (bool, error) {
	return true, nil
}

// DenyApprover refuses every request.
type DenyApprover struct{}

func (DenyApprover) RequestApproval(context.Context, string) (bool, error) {
	return false, nil
}
