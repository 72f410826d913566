package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/rateprobe/internal/models"
)

func TestCookieStorage_RoundTripsExportFormat(t *testing.T) {
	dir := t.TempDir()
	storage, err := NewCookieStorage(dir, arbor.NewLogger())
	require.NoError(t, err)

	// Cookie exports written by other tooling use the same field names
	raw := `[{"name":"sid","value":"xyz","domain":".example.com","path":"/","expires":-1,"httpOnly":true,"secure":true,"sameSite":"Lax"}]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vendorA.json"), []byte(raw), 0600))

	record, err := storage.Get(context.Background(), "vendorA")
	require.NoError(t, err)
	require.NotNil(t, record)
	require.Len(t, record.Cookies, 1)

	c := record.Cookies[0]
	assert.Equal(t, "sid", c.Name)
	assert.True(t, c.HTTPOnly)
	assert.True(t, c.Session())
	assert.Equal(t, "Lax", c.SameSite)
}

func TestCookieStorage_PutReplacesFile(t *testing.T) {
	dir := t.TempDir()
	storage, err := NewCookieStorage(dir, arbor.NewLogger())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, storage.Put(ctx, &models.CookieRecord{
		Vendor:  "vendorA",
		Cookies: []models.Cookie{{Name: "a"}, {Name: "b"}},
	}))
	require.NoError(t, storage.Put(ctx, &models.CookieRecord{
		Vendor:  "vendorA",
		Cookies: []models.Cookie{{Name: "c"}},
	}))

	record, err := storage.Get(ctx, "vendorA")
	require.NoError(t, err)
	require.Len(t, record.Cookies, 1)
	assert.Equal(t, "c", record.Cookies[0].Name)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestCookieStorage_ListSkipsCorruptFiles(t *testing.T) {
	dir := t.TempDir()
	storage, err := NewCookieStorage(dir, arbor.NewLogger())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, storage.Put(ctx, &models.CookieRecord{Vendor: "good", Cookies: []models.Cookie{{Name: "a"}}}))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{not json"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0600))

	records, err := storage.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "good", records[0].Vendor)
}

func TestCookieStorage_RejectsUnsafeVendorIDs(t *testing.T) {
	storage, err := NewCookieStorage(t.TempDir(), arbor.NewLogger())
	require.NoError(t, err)

	_, err = storage.Get(context.Background(), "../etc/passwd")
	assert.Error(t, err)
	assert.Error(t, storage.Put(context.Background(), &models.CookieRecord{Vendor: "a/b"}))
}
