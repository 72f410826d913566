package badger

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/rateprobe/internal/common"
	"github.com/ternarybob/rateprobe/internal/models"
)

func TestBadgerDBReopenAndReset(t *testing.T) {
	logger := arbor.NewLogger()
	config := &common.BadgerConfig{Path: filepath.Join(t.TempDir(), "nested", "cookies")}
	ctx := context.Background()

	db, err := NewBadgerDB(logger, config)
	require.NoError(t, err)
	storage := NewCookieStorage(db, logger)
	require.NoError(t, storage.Put(ctx, &models.CookieRecord{Vendor: "fora", Cookies: []models.Cookie{{Name: "sid", Value: "1"}}}))
	require.NoError(t, db.Close())
	require.NoError(t, db.Close(), "second close is a no-op")

	db, err = NewBadgerDB(logger, config)
	require.NoError(t, err)
	record, err := NewCookieStorage(db, logger).Get(ctx, "fora")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "sid", record.Cookies[0].Name)
	require.NoError(t, db.Close())

	config.ResetOnStartup = true
	db, err = NewBadgerDB(logger, config)
	require.NoError(t, err)
	defer db.Close()
	record, err = NewCookieStorage(db, logger).Get(ctx, "fora")
	require.NoError(t, err)
	assert.Nil(t, record)
}
