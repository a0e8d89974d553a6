package testutil

import (
	"context"
	"database/sql"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"gorm.io/gorm"

	"payment-orchestrator/internal/database"
)

// PostgresDSN starts a throwaway Postgres container and returns its connection string.
// Skipped under -short.
func PostgresDSN(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("payments"),
		tcpostgres.WithUsername("payments"),
		tcpostgres.WithPassword("payments"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}
	return dsn
}

// Postgres returns a migrated database behind both handles.
func Postgres(t *testing.T) (*sql.DB, *gorm.DB) {
	t.Helper()
	return OpenPostgres(t, PostgresDSN(t))
}

// OpenPostgres connects to dsn and migrates it.
func OpenPostgres(t *testing.T, dsn string) (*sql.DB, *gorm.DB) {
	t.Helper()
	db, err := database.NewPostgres(dsn)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	gormDB, err := database.OpenGorm(db)
	if err != nil {
		t.Fatalf("open gorm: %v", err)
	}
	if err := database.Migrate(context.Background(), db, gormDB); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db, gormDB
}
