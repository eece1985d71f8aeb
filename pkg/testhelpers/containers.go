package testhelpers

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	_ "github.com/go-sql-driver/mysql" // MySQL driver for fixture seeding
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	PostgresTestImage = "postgres:16-alpine"
	MySQLTestImage    = "mysql:8.0"

	testUser     = "datadict"
	testPassword = "test_password"
	testDatabase = "test_data"
)

// FixtureTables are the tables every test container is seeded with.
var FixtureTables = []string{"customers", "orders"}

// The Postgres fixture also seeds a second schema whose customers table
// shares its name with public.customers.
const (
	PostgresSecondarySchema = "sales"
	FixtureRegionRows       = 2
)

// PostgresSecondaryTables are the tables seeded into PostgresSecondarySchema.
var PostgresSecondaryTables = []string{"customers", "regions"}

// FixtureCustomerRows is the number of rows seeded into customers.
// Two of them have a NULL email.
const FixtureCustomerRows = 4

const postgresFixture = `
CREATE TABLE customers (
	id      INTEGER PRIMARY KEY,
	name    TEXT NOT NULL,
	email   TEXT
);
CREATE TABLE orders (
	id          INTEGER PRIMARY KEY,
	customer_id INTEGER NOT NULL REFERENCES customers(id),
	total       NUMERIC(10,2),
	placed_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
INSERT INTO customers (id, name, email) VALUES
	(1, 'Ada', 'ada@example.com'),
	(2, 'Grace', NULL),
	(3, 'Edsger', 'edsger@example.com'),
	(4, 'Barbara', NULL);
INSERT INTO orders (id, customer_id, total) VALUES (1, 1, 19.99), (2, 3, 5.00);
CREATE SCHEMA sales;
CREATE TABLE sales.regions (
	code  TEXT PRIMARY KEY,
	label TEXT
);
CREATE TABLE sales.customers (
	id INTEGER PRIMARY KEY
);
INSERT INTO sales.regions (code, label) VALUES ('emea', 'Europe'), ('apac', NULL);
INSERT INTO sales.customers (id) VALUES (1);
`

var mysqlFixture = []string{
	`CREATE TABLE customers (id INT PRIMARY KEY, name VARCHAR(64) NOT NULL, email VARCHAR(128) NULL)`,
	`CREATE TABLE orders (id INT PRIMARY KEY, customer_id INT NOT NULL, total DECIMAL(10,2), placed_at DATETIME DEFAULT CURRENT_TIMESTAMP)`,
	`INSERT INTO customers VALUES (1,'Ada','ada@example.com'),(2,'Grace',NULL),(3,'Edsger','edsger@example.com'),(4,'Barbara',NULL)`,
	`INSERT INTO orders (id, customer_id, total) VALUES (1,1,19.99),(2,3,5.00)`,
}

// TestDB describes a running database container.
type TestDB struct {
	Container testcontainers.Container
	Host      string
	Port      int
	User      string
	Password  string
	Database  string
	ConnStr   string
}

// ConfigMap returns the connector config for this database.
func (db *TestDB) ConfigMap() map[string]any {
	return map[string]any{
		"host":     db.Host,
		"port":     db.Port,
		"user":     db.User,
		"password": db.Password,
		"database": db.Database,
		"ssl_mode": "disable",
	}
}

var (
	sharedPostgres     *TestDB
	sharedPostgresOnce sync.Once
	sharedPostgresErr  error

	sharedMySQL     *TestDB
	sharedMySQLOnce sync.Once
	sharedMySQLErr  error
)

// GetTestPostgres returns a shared seeded PostgreSQL container.
// The container is created once and reused across all tests in the run.
func GetTestPostgres(t *testing.T) *TestDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedPostgresOnce.Do(func() {
		sharedPostgres, sharedPostgresErr = setupPostgres()
	})
	if sharedPostgresErr != nil {
		t.Fatalf("Failed to setup test postgres: %v", sharedPostgresErr)
	}
	return sharedPostgres
}

// GetTestMySQL returns a shared seeded MySQL container.
func GetTestMySQL(t *testing.T) *TestDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedMySQLOnce.Do(func() {
		sharedMySQL, sharedMySQLErr = setupMySQL()
	})
	if sharedMySQLErr != nil {
		t.Fatalf("Failed to setup test mysql: %v", sharedMySQLErr)
	}
	return sharedMySQL
}

func startContainer(ctx context.Context, req testcontainers.ContainerRequest, port string) (testcontainers.Container, string, int, error) {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, "", 0, fmt.Errorf("failed to start test container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, "", 0, fmt.Errorf("failed to get container host: %w", err)
	}

	mapped, err := container.MappedPort(ctx, nat.Port(port))
	if err != nil {
		return nil, "", 0, fmt.Errorf("failed to get container port: %w", err)
	}

	return container, host, mapped.Int(), nil
}

func setupPostgres() (*TestDB, error) {
	ctx := context.Background()

	container, host, port, err := startContainer(ctx, testcontainers.ContainerRequest{
		Image:        PostgresTestImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       testDatabase,
			"POSTGRES_USER":     testUser,
			"POSTGRES_PASSWORD": testPassword,
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}, "5432/tcp")
	if err != nil {
		return nil, err
	}

	connStr := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		testUser, testPassword, host, port, testDatabase)

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	// Verify connection with retry
	for i := 0; i < 10; i++ {
		if err = pool.Ping(ctx); err == nil {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres never became reachable: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresFixture); err != nil {
		return nil, fmt.Errorf("failed to seed postgres fixture: %w", err)
	}

	return &TestDB{
		Container: container,
		Host:      host,
		Port:      port,
		User:      testUser,
		Password:  testPassword,
		Database:  testDatabase,
		ConnStr:   connStr,
	}, nil
}

func setupMySQL() (*TestDB, error) {
	ctx := context.Background()

	container, host, port, err := startContainer(ctx, testcontainers.ContainerRequest{
		Image:        MySQLTestImage,
		ExposedPorts: []string{"3306/tcp"},
		Env: map[string]string{
			"MYSQL_ROOT_PASSWORD": testPassword,
			"MYSQL_DATABASE":      testDatabase,
			"MYSQL_USER":          testUser,
			"MYSQL_PASSWORD":      testPassword,
		},
		WaitingFor: wait.ForListeningPort("3306/tcp").WithStartupTimeout(120 * time.Second),
	}, "3306/tcp")
	if err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true", testUser, testPassword, host, port, testDatabase)
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open mysql: %w", err)
	}
	defer db.Close()

	// The port opens before the server accepts logins.
	for i := 0; i < 60; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		time.Sleep(time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("mysql never became reachable: %w", err)
	}

	for _, stmt := range mysqlFixture {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to seed mysql fixture: %w", err)
		}
	}

	return &TestDB{
		Container: container,
		Host:      host,
		Port:      port,
		User:      testUser,
		Password:  testPassword,
		Database:  testDatabase,
		ConnStr:   dsn,
	}, nil
}
