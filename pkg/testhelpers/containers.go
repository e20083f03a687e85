package testhelpers

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ekaya-inc/ekaya-schema-engine/pkg/adapters/datasource"
)

// PostgresTestImage is the stock PostgreSQL image used for live introspection tests.
const PostgresTestImage = "postgres:16-alpine"

const (
	testDBName     = "schema_engine_test"
	testDBUser     = "schema"
	testDBPassword = "test_password"
)

// FixtureSchema is loaded into the shared container. Mixed-case identifiers
// exercise case-insensitive table resolution.
const FixtureSchema = `
CREATE TABLE customers (
	customer_id   integer PRIMARY KEY,
	customer_name text NOT NULL,
	created_date  timestamptz
);
COMMENT ON COLUMN customers.customer_name IS 'Legal name of the customer';

CREATE TABLE orders (
	order_id     integer PRIMARY KEY,
	customer_id  integer NOT NULL REFERENCES customers(customer_id),
	order_date   date NOT NULL,
	total_amount numeric(12,2),
	status       text
);

CREATE TABLE "OrderLines" (
	order_id  integer NOT NULL REFERENCES orders(order_id),
	line_no   integer NOT NULL,
	sku       text,
	PRIMARY KEY (order_id, line_no)
);

CREATE VIEW order_summary AS
	SELECT o.order_id, c.customer_name, o.total_amount
	FROM orders o JOIN customers c ON c.customer_id = o.customer_id;
`

// TestDB holds a shared test database container and connection pool.
type TestDB struct {
	Container testcontainers.Container
	Pool      *pgxpool.Pool
	ConnStr   string
	Conn      datasource.ConnectionConfig
}

var (
	sharedTestDB     *TestDB
	sharedTestDBOnce sync.Once
	sharedTestDBErr  error
)

// GetTestDB returns a shared PostgreSQL container for integration tests.
// The container is created once and reused across all tests in the run.
func GetTestDB(t *testing.T) *TestDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedTestDBOnce.Do(func() {
		sharedTestDB, sharedTestDBErr = setupTestDB()
	})

	if sharedTestDBErr != nil {
		t.Fatalf("Failed to setup test database: %v", sharedTestDBErr)
	}

	return sharedTestDB
}

func setupTestDB() (*TestDB, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        PostgresTestImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       testDBName,
			"POSTGRES_USER":     testDBUser,
			"POSTGRES_PASSWORD": testDBPassword,
		},
		// The entrypoint restarts the server once after init scripts.
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start test container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	connStr := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		testDBUser, testDBPassword, host, port.Port(), testDBName)

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Verify connection with retry
	for i := 0; i < 10; i++ {
		if err := pool.Ping(ctx); err == nil {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}

	if _, err := pool.Exec(ctx, FixtureSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to load fixture schema: %w", err)
	}

	return &TestDB{
		Container: container,
		Pool:      pool,
		ConnStr:   connStr,
		Conn: datasource.ConnectionConfig{
			Type:     "postgres",
			Host:     host,
			Port:     port.Int(),
			Database: testDBName,
			User:     testDBUser,
			Password: testDBPassword,
			SSLMode:  "disable",
			Schema:   "public",
		},
	}, nil
}
