package itests

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"
	"time"

	"BackofficeAPI/internal/db"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// DeriveTestDSN points baseDSN at a scratch database and returns the DSN of
// the maintenance database used to create and drop it.
func DeriveTestDSN(baseDSN string) (testDSN, adminDSN, testDBName string, err error) {
	u, e := url.Parse(baseDSN)
	if e != nil {
		return "", "", "", fmt.Errorf("parse DSN: %w", e)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return "", "", "", errors.New("only URL DSN supported: postgres://...")
	}
	if host := u.Hostname(); host != "localhost" && host != "127.0.0.1" {
		return "", "", "", fmt.Errorf("refuse non-local host for tests: %s", host)
	}

	testDBName = "backoffice_itest"
	u.Path = "/" + testDBName
	testDSN = u.String()

	u.Path = "/postgres"
	adminDSN = u.String()
	return testDSN, adminDSN, testDBName, nil
}

func execAdmin(adminDSN string, timeout time.Duration, fn func(ctx context.Context, conn *sql.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	conn, err := sql.Open("pgx", adminDSN)
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(ctx, conn)
}

func CreateTestDatabase(adminDSN, dbName string) error {
	return execAdmin(adminDSN, 10*time.Second, func(ctx context.Context, conn *sql.DB) error {
		var exists bool
		if err := conn.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname=$1)`, dbName,
		).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return nil
		}
		_, err := conn.ExecContext(ctx, `CREATE DATABASE `+pqIdent(dbName))
		return err
	})
}

func DropTestDatabase(adminDSN, dbName string) error {
	return execAdmin(adminDSN, 15*time.Second, func(ctx context.Context, conn *sql.DB) error {
		_, _ = conn.ExecContext(ctx, `
			SELECT pg_terminate_backend(pid)
			FROM pg_stat_activity
			WHERE datname = $1 AND pid <> pg_backend_pid()
		`, dbName)
		_, err := conn.ExecContext(ctx, `DROP DATABASE IF EXISTS `+pqIdent(dbName))
		return err
	})
}

func pqIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// SetupTestDB creates the scratch database, migrates it and connects the
// shared pool. The returned teardown drops the database again.
func SetupTestDB(baseDSN, migrationsDir string) (teardown func() error, err error) {
	testDSN, adminDSN, testDB, err := DeriveTestDSN(baseDSN)
	if err != nil {
		return nil, err
	}
	if os.Getenv("APP_ENV") == "production" {
		return nil, errors.New("APP_ENV=production, aborting tests")
	}

	// a previous run may have died before teardown
	_ = DropTestDatabase(adminDSN, testDB)
	if err := CreateTestDatabase(adminDSN, testDB); err != nil {
		return nil, fmt.Errorf("create DB %q: %w (dsn %s)", testDB, err, redactDSN(baseDSN))
	}
	log.Printf("test DB %q created", testDB)

	if err := db.Migrate(testDSN, migrationsDir); err != nil {
		_ = DropTestDatabase(adminDSN, testDB)
		return nil, err
	}
	if err := db.InitPostgres(testDSN); err != nil {
		_ = DropTestDatabase(adminDSN, testDB)
		return nil, fmt.Errorf("InitPostgres: %w (dsn %s)", err, redactDSN(baseDSN))
	}

	return func() error {
		db.ClosePostgres()
		return DropTestDatabase(adminDSN, testDB)
	}, nil
}

func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	username := u.User.Username()
	if username == "" {
		return dsn
	}
	u.User = url.UserPassword(username, "******")
	return u.String()
}
