package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"webstore-backend/internal/config"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/lib/pq"
)

type Repository struct {
	DB      *sql.DB
	User    UserRepository
	Cart    CartRepository
	Product ProductRepository
}

func New(cfg *config.Config) (*Repository, error) {

	db, err := sql.Open("postgres", cfg.Database.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	// Test the connection to make sure DB is reachable
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := runMigrations(db, cfg.Database.MigrationsPath); err != nil {
		return nil, err
	}

	return &Repository{
		DB:      db,
		User:    NewUserRepo(db),
		Cart:    NewCartRepo(db),
		Product: NewProductRepo(db),
	}, nil
}

func runMigrations(db *sql.DB, migrationsPath string) error {

	driver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsPath, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

func (p *Repository) Close() error {
	return p.DB.Close()
}

// IsRetryableError reports whether the database rejected the statement with a
// transient concurrency failure (serialization failure or deadlock) that is
// safe to retry.
func IsRetryableError(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "40001" || pqErr.Code == "40P01"
	}

	return false
}
