package test_utils

import (
	"context"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/klokku/pennywise/internal/config"
	"github.com/klokku/pennywise/internal/database"
	log "github.com/sirupsen/logrus"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

const postgresImage = "postgres:18.1-alpine"

var testDatabase = config.Database{
	User:   "test_pennywise",
	Pass:   "test_pennywise",
	Name:   "pennywise",
	Schema: "pennywise",
}

// TestWithDB starts a Postgres container, applies all migrations and returns a pool connected
// to it together with a function terminating the container. Meant for TestMain; any setup
// failure ends the test binary.
func TestWithDB() (*pgxpool.Pool, func()) {
	ctx := context.Background()

	initScript, err := database.FindUpwards("dev/init.sql")
	if err != nil {
		log.Errorf("schema init script: %v", err)
		os.Exit(1)
	}
	container, err := postgres.Run(ctx, postgresImage,
		postgres.WithInitScripts(initScript),
		postgres.WithDatabase(testDatabase.Name),
		postgres.WithUsername(testDatabase.User),
		postgres.WithPassword(testDatabase.Pass),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		log.Errorf("failed to start postgres container: %v", err)
		os.Exit(1)
	}

	cfg := testDatabase
	cfg.Host, err = container.Host(ctx)
	if err != nil {
		log.Fatalf("container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		log.Fatalf("container port: %v", err)
	}
	cfg.Port = port.Int()
	log.Infof("Postgres container started at %s:%d", cfg.Host, cfg.Port)

	if err := database.Migrate(cfg); err != nil {
		log.Fatalf("failed to apply migrations: %v", err)
	}
	db, err := database.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to open database connection: %v", err)
	}

	return db, func() {
		db.Close()
		if err := testcontainers.TerminateContainer(container); err != nil {
			log.Errorf("failed to terminate postgres container: %v", err)
		}
	}
}
