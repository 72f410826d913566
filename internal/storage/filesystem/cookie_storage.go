package filesystem

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/rateprobe/internal/interfaces"
	"github.com/ternarybob/rateprobe/internal/models"
)

// vendorFilePattern restricts vendor ids to safe file names
var vendorFilePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// CookieStorage keeps one <vendor>.json file per vendor holding a JSON cookie array
type CookieStorage struct {
	dir    string
	logger arbor.ILogger
}

// NewCookieStorage creates the directory if needed
func NewCookieStorage(dir string, logger arbor.ILogger) (*CookieStorage, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create cookie directory %s: %w", dir, err)
	}
	return &CookieStorage{dir: dir, logger: logger}, nil
}

func (s *CookieStorage) path(vendor string) (string, error) {
	if !vendorFilePattern.MatchString(vendor) {
		return "", fmt.Errorf("invalid vendor id %q", vendor)
	}
	return filepath.Join(s.dir, vendor+".json"), nil
}

// Get returns the vendor's record, or nil when no file exists
func (s *CookieStorage) Get(ctx context.Context, vendor string) (*models.CookieRecord, error) {
	path, err := s.path(vendor)
	if err != nil {
		return nil, err
	}
	return s.read(vendor, path)
}

func (s *CookieStorage) read(vendor, path string) (*models.CookieRecord, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cookie file %s: %w", path, err)
	}

	var cookies []models.Cookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return nil, fmt.Errorf("failed to parse cookie file %s: %w", path, err)
	}

	record := &models.CookieRecord{Vendor: vendor, Cookies: cookies}
	if info, err := os.Stat(path); err == nil {
		record.UpdatedAt = info.ModTime()
	}
	return record, nil
}

// Put atomically replaces the vendor's file
func (s *CookieStorage) Put(ctx context.Context, record *models.CookieRecord) error {
	path, err := s.path(record.Vendor)
	if err != nil {
		return err
	}

	cookies := record.Cookies
	if cookies == nil {
		cookies = []models.Cookie{}
	}
	data, err := json.MarshalIndent(cookies, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode cookies for %s: %w", record.Vendor, err)
	}

	tmp, err := os.CreateTemp(s.dir, record.Vendor+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp cookie file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write cookie file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close cookie file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace cookie file %s: %w", path, err)
	}

	s.logger.Debug().
		Str("vendor", record.Vendor).
		Str("path", path).
		Int("cookies", len(cookies)).
		Msg("Cookie file written")
	return nil
}

// List reads every *.json file in the directory
func (s *CookieStorage) List(ctx context.Context) ([]*models.CookieRecord, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read cookie directory %s: %w", s.dir, err)
	}

	var records []*models.CookieRecord
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		vendor := strings.TrimSuffix(entry.Name(), ".json")
		record, err := s.read(vendor, filepath.Join(s.dir, entry.Name()))
		if err != nil {
			// One corrupt file must not hide the remaining vendors
			s.logger.Warn().Err(err).Str("file", entry.Name()).Msg("Skipping unreadable cookie file")
			continue
		}
		if record != nil {
			records = append(records, record)
		}
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Vendor < records[j].Vendor })
	return records, nil
}

// Delete removes the vendor's file. A missing file is not an error.
func (s *CookieStorage) Delete(ctx context.Context, vendor string) error {
	path, err := s.path(vendor)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete cookie file %s: %w", path, err)
	}
	return nil
}

// Manager adapts the filesystem backend to the StorageManager interface
type Manager struct {
	cookies *CookieStorage
}

// NewManager creates a filesystem-backed storage manager
func NewManager(dir string, logger arbor.ILogger) (*Manager, error) {
	cookies, err := NewCookieStorage(dir, logger)
	if err != nil {
		return nil, err
	}
	logger.Info().Str("dir", dir).Msg("Filesystem cookie storage initialized")
	return &Manager{cookies: cookies}, nil
}

// CookieStorage returns the cookie storage interface
func (m *Manager) CookieStorage() interfaces.CookieStorage {
	return m.cookies
}

// Close is a no-op for the filesystem backend
func (m *Manager) Close() error {
	return nil
}
