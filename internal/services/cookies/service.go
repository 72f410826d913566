package cookies

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/rateprobe/internal/interfaces"
	"github.com/ternarybob/rateprobe/internal/models"
)

// Service is the cookie store. Saves for the same vendor are serialized;
// saves for different vendors proceed independently.
type Service struct {
	storage interfaces.CookieStorage
	logger  arbor.ILogger
	now     func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService creates a cookie store over the given backend
func NewService(storage interfaces.CookieStorage, logger arbor.ILogger) *Service {
	return &Service{
		storage: storage,
		logger:  logger,
		now:     time.Now,
		locks:   make(map[string]*sync.Mutex),
	}
}

func (s *Service) vendorLock(vendor string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[vendor]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[vendor] = lock
	}
	return lock
}

// Load returns the vendor's saved cookies (empty when none)
func (s *Service) Load(ctx context.Context, vendor string) ([]models.Cookie, error) {
	record, err := s.storage.Get(ctx, vendor)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, nil
	}
	return record.Cookies, nil
}

// LoadAll merges the cookies of every vendor. Records are visited in vendor order
// and a later vendor's cookie replaces an earlier one with the same name, domain and path.
func (s *Service) LoadAll(ctx context.Context) ([]models.Cookie, error) {
	records, err := s.storage.List(ctx)
	if err != nil {
		return nil, err
	}

	type cookieKey struct{ name, domain, path string }
	index := make(map[cookieKey]int)
	var merged []models.Cookie

	for _, record := range records {
		for _, c := range record.Cookies {
			key := cookieKey{c.Name, c.Domain, c.Path}
			if i, ok := index[key]; ok {
				merged[i] = c
				continue
			}
			index[key] = len(merged)
			merged = append(merged, c)
		}
	}

	s.logger.Debug().
		Int("vendors", len(records)).
		Int("cookies", len(merged)).
		Msg("Loaded merged cookie set")

	return merged, nil
}

// Save replaces the vendor's cookie record
func (s *Service) Save(ctx context.Context, vendor string, cookies []models.Cookie) error {
	if vendor == "" {
		return fmt.Errorf("vendor is required")
	}

	lock := s.vendorLock(vendor)
	lock.Lock()
	defer lock.Unlock()

	record := &models.CookieRecord{
		Vendor:    vendor,
		Cookies:   cookies,
		UpdatedAt: s.now(),
	}
	if err := s.storage.Put(ctx, record); err != nil {
		return err
	}

	s.logger.Info().
		Str("vendor", vendor).
		Int("cookies", len(cookies)).
		Msg("Vendor cookies saved")
	return nil
}

// Delete removes the vendor's record
func (s *Service) Delete(ctx context.Context, vendor string) error {
	lock := s.vendorLock(vendor)
	lock.Lock()
	defer lock.Unlock()

	return s.storage.Delete(ctx, vendor)
}

// Summaries lists vendors with their cookie counts
func (s *Service) Summaries(ctx context.Context) ([]models.CookieSummary, error) {
	records, err := s.storage.List(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]models.CookieSummary, 0, len(records))
	for _, record := range records {
		summaries = append(summaries, models.CookieSummary{
			Vendor:    record.Vendor,
			Count:     len(record.Cookies),
			UpdatedAt: record.UpdatedAt,
		})
	}
	return summaries, nil
}

// Vendors returns the ids of vendors with a stored record, sorted
func (s *Service) Vendors(ctx context.Context) ([]string, error) {
	records, err := s.storage.List(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(records))
	for _, record := range records {
		ids = append(ids, record.Vendor)
	}
	sort.Strings(ids)
	return ids, nil
}
