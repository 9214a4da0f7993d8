package storage

import (
	"context"

	"ptw/internal/config"
	"ptw/internal/domain"
)

// Storage persists run reports (e.g. for the failures viewer).
type Storage interface {
	Save(ctx context.Context, report *domain.RunReport) error
	// Load returns the most recent run report
	Load(ctx context.Context) (*domain.RunReport, error)
	// Close releases the store's resources
	Close() error
}

// NewStorage returns the MySQL store when a results DSN is configured and the
// JSON file store otherwise.
func NewStorage(cfg config.Config) (Storage, error) {
	if cfg.ResultsDSN != "" {
		return NewMySQLStorage(cfg.ResultsDSN)
	}
	return NewJSONStorage(cfg), nil
}
