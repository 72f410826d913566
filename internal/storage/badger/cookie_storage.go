package badger

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/rateprobe/internal/interfaces"
	"github.com/ternarybob/rateprobe/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// upsertAttempts bounds retries on optimistic transaction conflicts
const upsertAttempts = 3

// CookieStorage stores one CookieRecord per vendor, keyed by vendor id
type CookieStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewCookieStorage creates a new CookieStorage instance
func NewCookieStorage(db *BadgerDB, logger arbor.ILogger) interfaces.CookieStorage {
	return &CookieStorage{
		db:     db,
		logger: logger,
	}
}

// Get returns the vendor's record, or nil when none has been saved
func (s *CookieStorage) Get(ctx context.Context, vendor string) (*models.CookieRecord, error) {
	var record models.CookieRecord
	err := s.db.Store().Get(vendor, &record)
	if err == badgerhold.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cookies for %s: %w", vendor, err)
	}
	return &record, nil
}

// Put replaces the vendor's record
func (s *CookieStorage) Put(ctx context.Context, record *models.CookieRecord) error {
	if record.Vendor == "" {
		return fmt.Errorf("cookie record requires a vendor")
	}

	var err error
	for attempt := 1; attempt <= upsertAttempts; attempt++ {
		err = s.db.Store().Upsert(record.Vendor, record)
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
		s.logger.Debug().
			Str("vendor", record.Vendor).
			Int("attempt", attempt).
			Msg("Cookie upsert conflicted, retrying")
	}
	if err != nil {
		return fmt.Errorf("failed to save cookies for %s: %w", record.Vendor, err)
	}

	s.logger.Debug().
		Str("vendor", record.Vendor).
		Int("cookies", len(record.Cookies)).
		Msg("Cookie record saved")
	return nil
}

// List returns every vendor record ordered by vendor id
func (s *CookieStorage) List(ctx context.Context) ([]*models.CookieRecord, error) {
	var records []models.CookieRecord
	if err := s.db.Store().Find(&records, nil); err != nil {
		return nil, fmt.Errorf("failed to list cookie records: %w", err)
	}

	out := make([]*models.CookieRecord, 0, len(records))
	for i := range records {
		out = append(out, &records[i])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Vendor < out[j].Vendor })
	return out, nil
}

// Delete removes the vendor's record. Deleting a missing record is not an error.
func (s *CookieStorage) Delete(ctx context.Context, vendor string) error {
	err := s.db.Store().Delete(vendor, &models.CookieRecord{})
	if err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to delete cookies for %s: %w", vendor, err)
	}
	return nil
}
