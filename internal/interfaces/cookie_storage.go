package interfaces

import (
	"context"

	"github.com/ternarybob/rateprobe/internal/models"
)

// CookieStorage persists one cookie record per vendor
type CookieStorage interface {
	Get(ctx context.Context, vendor string) (*models.CookieRecord, error)
	Put(ctx context.Context, record *models.CookieRecord) error
	List(ctx context.Context) ([]*models.CookieRecord, error)
	Delete(ctx context.Context, vendor string) error
}

// CookieStore is the vendor-facing cookie API
type CookieStore interface {
	Load(ctx context.Context, vendor string) ([]models.Cookie, error)
	LoadAll(ctx context.Context) ([]models.Cookie, error)
	Save(ctx context.Context, vendor string, cookies []models.Cookie) error
	Delete(ctx context.Context, vendor string) error
	Summaries(ctx context.Context) ([]models.CookieSummary, error)
	Vendors(ctx context.Context) ([]string, error)
}

// CookieReader is the read-only view handed to the session manager for seeding contexts
type CookieReader interface {
	LoadAll(ctx context.Context) ([]models.Cookie, error)
}

// StorageManager owns the persistence backend
type StorageManager interface {
	CookieStorage() CookieStorage
	Close() error
}
