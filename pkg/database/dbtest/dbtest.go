// Package dbtest starts a throwaway Postgres for repository tests.
package dbtest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"jobtrack-backend/pkg/database"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// ErrDockerUnavailable is returned by Start when no container runtime can be
// reached. Callers skip their database tests on it.
var ErrDockerUnavailable = errors.New("docker unavailable")

// Start runs a postgres container and returns a migrated connection. The
// returned stop func terminates the container.
func Start(ctx context.Context) (*gorm.DB, func(), error) {
	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")

	var container testcontainers.Container
	err := catchPanic(func() (err error) {
		container, err = runPostgres(ctx)
		return err
	})
	if err != nil {
		return nil, nil, fmt.Errorf("start postgres container: %w", err)
	}
	stop := func() { _ = container.Terminate(context.Background()) }

	host, err := container.Host(ctx)
	if err != nil {
		stop()
		return nil, nil, err
	}
	if host == "" || host == "null" {
		host = "localhost"
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		stop()
		return nil, nil, err
	}

	dsn := fmt.Sprintf("host=%s port=%s user=jobtrack password=jobtrack dbname=jobtrack_test sslmode=disable", host, port.Port())
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		stop()
		return nil, nil, err
	}
	if err := database.Migrate(db); err != nil {
		stop()
		return nil, nil, err
	}
	return db, stop, nil
}

func runPostgres(ctx context.Context) (testcontainers.Container, error) {
	return testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "jobtrack",
				"POSTGRES_PASSWORD": "jobtrack",
				"POSTGRES_DB":       "jobtrack_test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
}

// catchPanic runs fn and reports a panic as ErrDockerUnavailable.
// testcontainers panics instead of erroring when it finds no Docker host.
func catchPanic(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrDockerUnavailable, r)
		}
	}()
	return fn()
}

// Reset empties every table between tests.
func Reset(db *gorm.DB) error {
	return db.Exec("TRUNCATE job_applications, ingested_messages, sync_runs, fcm_tokens, users").Error
}
