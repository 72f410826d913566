package badger

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/rateprobe/internal/common"
	"github.com/timshannon/badgerhold/v4"
)

// Cookie records are small and rewritten wholesale, so one version and small tables suffice
const (
	memTableSize     = 8 << 20
	valueLogFileSize = 16 << 20
	gcDiscardRatio   = 0.5
)

// BadgerDB owns the badgerhold store backing cookie records
type BadgerDB struct {
	mu     sync.Mutex
	store  *badgerhold.Store
	path   string
	logger arbor.ILogger
}

// NewBadgerDB opens the database at config.Path, wiping it first when ResetOnStartup is set
func NewBadgerDB(logger arbor.ILogger, config *common.BadgerConfig) (*BadgerDB, error) {
	if config.ResetOnStartup {
		logger.Debug().Str("path", config.Path).Msg("Resetting cookie database")
		if err := os.RemoveAll(config.Path); err != nil {
			return nil, fmt.Errorf("failed to reset database directory: %w", err)
		}
	}
	if err := os.MkdirAll(config.Path, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	options := badgerhold.DefaultOptions
	options.Options = badger.DefaultOptions(config.Path).
		WithLogger(badgerLogger{logger: logger}).
		WithNumVersionsToKeep(1).
		WithMemTableSize(memTableSize).
		WithValueLogFileSize(valueLogFileSize)

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database at %s: %w", config.Path, err)
	}

	logger.Debug().Str("path", config.Path).Msg("Cookie database opened")
	return &BadgerDB{
		store:  store,
		path:   config.Path,
		logger: logger,
	}, nil
}

func (b *BadgerDB) Store() *badgerhold.Store {
	return b.store
}

// Close compacts the value log and closes the store. Later calls are no-ops.
func (b *BadgerDB) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.store == nil {
		return nil
	}

	b.collectGarbage()
	err := b.store.Close()
	b.store = nil
	return err
}

func (b *BadgerDB) collectGarbage() {
	for {
		err := b.store.Badger().RunValueLogGC(gcDiscardRatio)
		if err == nil {
			continue
		}
		if !errors.Is(err, badger.ErrNoRewrite) {
			b.logger.Debug().Err(err).Str("path", b.path).Msg("Value log GC skipped")
		}
		return
	}
}

// badgerLogger routes badger's internal logging through arbor. Info chatter is demoted to debug.
type badgerLogger struct {
	logger arbor.ILogger
}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error().Str("component", "badger").Msg(trimLine(format, args))
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn().Str("component", "badger").Msg(trimLine(format, args))
}

func (l badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug().Str("component", "badger").Msg(trimLine(format, args))
}

func (l badgerLogger) Debugf(format string, args ...interface{}) {}

func trimLine(format string, args []interface{}) string {
	return strings.TrimRight(fmt.Sprintf(format, args...), "\n")
}
