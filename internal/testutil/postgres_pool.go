// Package testutil provides PostgreSQL fixtures for integration tests.
package testutil

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"hireguard.io/atssync/internal/infrastructure"
)

var nonIdentChars = regexp.MustCompile(`[^a-z0-9_]+`)

var (
	containerOnce sync.Once
	containerDSN  string
	containerErr  error
)

// PostgresDSN returns TEST_DATABASE_URL, then DATABASE_URL, then the DSN of a
// shared postgres container started on first use. It skips the test when
// none is available.
func PostgresDSN(t *testing.T) string {
	t.Helper()

	if dsn := strings.TrimSpace(os.Getenv("TEST_DATABASE_URL")); dsn != "" {
		return dsn
	}
	if dsn := strings.TrimSpace(os.Getenv("DATABASE_URL")); dsn != "" {
		return dsn
	}
	if os.Getenv("SKIP_TESTCONTAINERS") != "" {
		t.Skip("PostgreSQL not configured: set TEST_DATABASE_URL")
	}

	containerOnce.Do(func() {
		containerDSN, containerErr = startContainer()
	})
	if containerErr != nil {
		t.Skipf("PostgreSQL not available: %v", containerErr)
	}
	return containerDSN
}

func startContainer() (dsn string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("start postgres container: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "atssync",
			"POSTGRES_PASSWORD": "atssync",
			"POSTGRES_DB":       "atssync_test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(time.Minute),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return "", fmt.Errorf("start postgres container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(context.Background())
		return "", fmt.Errorf("container host: %w", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		_ = container.Terminate(context.Background())
		return "", fmt.Errorf("container port: %w", err)
	}
	return fmt.Sprintf("postgres://atssync:atssync@%s:%s/atssync_test?sslmode=disable", host, port.Port()), nil
}

// OpenPGXPool opens a pgxpool backed by PostgreSQL with an isolated schema
// per test. The schema is dropped on cleanup.
func OpenPGXPool(t *testing.T, prefix string) (*pgxpool.Pool, string) {
	t.Helper()

	dsn := PostgresDSN(t)
	schema := newSchemaName(prefix)
	ctx := context.Background()

	adminPool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("open postgres admin pool: %v", err)
	}
	t.Cleanup(adminPool.Close)

	if err := adminPool.Ping(ctx); err != nil {
		t.Fatalf("ping postgres: %v", err)
	}

	if _, err := adminPool.Exec(ctx, fmt.Sprintf(`CREATE SCHEMA "%s"`, schema)); err != nil {
		t.Fatalf("create test schema %q: %v", schema, err)
	}
	t.Cleanup(func() {
		_, _ = adminPool.Exec(ctx, fmt.Sprintf(`DROP SCHEMA IF EXISTS "%s" CASCADE`, schema))
	})

	schemaDSN, err := dsnWithSearchPath(dsn, schema)
	if err != nil {
		t.Fatalf("build postgres DSN with search_path: %v", err)
	}

	testPool, err := pgxpool.New(ctx, schemaDSN)
	if err != nil {
		t.Fatalf("open postgres test pool: %v", err)
	}
	t.Cleanup(testPool.Close)

	if err := testPool.Ping(ctx); err != nil {
		t.Fatalf("ping postgres test pool: %v", err)
	}

	return testPool, schemaDSN
}

// OpenMigratedPool is OpenPGXPool with the service schema applied.
func OpenMigratedPool(t *testing.T, prefix string) *pgxpool.Pool {
	t.Helper()
	pool, dsn := OpenPGXPool(t, prefix)
	if err := infrastructure.MigrateSchema(context.Background(), dsn); err != nil {
		t.Fatalf("migrate test schema: %v", err)
	}
	return pool
}

func dsnWithSearchPath(dsn, schema string) (string, error) {
	if strings.Contains(dsn, "://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", fmt.Errorf("parse DSN: %w", err)
		}
		q := u.Query()
		q.Set("search_path", schema)
		u.RawQuery = q.Encode()
		return u.String(), nil
	}

	if strings.Contains(dsn, "search_path=") {
		re := regexp.MustCompile(`search_path=\S+`)
		return re.ReplaceAllString(dsn, "search_path="+schema), nil
	}
	return dsn + " search_path=" + schema, nil
}

func newSchemaName(prefix string) string {
	base := strings.ToLower(prefix)
	base = strings.ReplaceAll(base, "-", "_")
	base = nonIdentChars.ReplaceAllString(base, "_")
	base = strings.Trim(base, "_")
	if base == "" {
		base = "test"
	}

	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")
	const maxPostgresIdentLen = 63
	maxBaseLen := maxPostgresIdentLen - len("t__") - len(suffix)
	if maxBaseLen < 1 {
		maxBaseLen = 1
	}
	if len(base) > maxBaseLen {
		base = base[:maxBaseLen]
	}
	return fmt.Sprintf("t_%s_%s", base, suffix)
}
