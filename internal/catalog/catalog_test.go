package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stderrors "finchat-engine/internal/common/errors"
	"finchat-engine/internal/common/logger"
	"finchat-engine/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

const validCatalogDoc = `{
	"version": "1",
	"tools": [
		{"id": "get_cash_balance", "description": "Current cash position", "category": "banking"},
		{"id": "get_all_bills", "category": "payables"},
		{"id": "get_all_vendors"}
	]
}`

func writeCatalogFile(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// ==========================
// StaticProvider Tests
// ==========================

func TestStaticProvider_List_PreservesOrder(t *testing.T) {
	entries := []models.ToolCatalogEntry{
		{ID: "get_all_vendors"},
		{ID: "get_cash_balance"},
		{ID: "get_all_bills"},
	}
	provider := NewStaticProvider(entries)

	got, err := provider.List(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "get_all_vendors", got[0].ID)
	assert.Equal(t, "get_cash_balance", got[1].ID)
	assert.Equal(t, "get_all_bills", got[2].ID)
}

func TestStaticProvider_List_CopiesInput(t *testing.T) {
	entries := []models.ToolCatalogEntry{{ID: "get_cash_balance"}}
	provider := NewStaticProvider(entries)

	// Mutating the caller's slice must not reach the provider.
	entries[0].ID = "mutated"

	got, err := provider.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "get_cash_balance", got[0].ID)
}

func TestStaticProvider_List_EmptyCatalog(t *testing.T) {
	provider := NewStaticProvider(nil)

	got, err := provider.List(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, got)
}

// ==========================
// FileProvider Tests
// ==========================

func TestFileProvider_New_LoadsCatalogUpFront(t *testing.T) {
	path := writeCatalogFile(t, validCatalogDoc)

	provider, err := NewFileProvider(path, 0, logger.NewTestLogger(t))
	require.NoError(t, err)

	got, err := provider.List(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "get_cash_balance", got[0].ID)
	assert.Equal(t, "Current cash position", got[0].Description)
	assert.Equal(t, "banking", got[0].Category)
	assert.Equal(t, "get_all_bills", got[1].ID)
	assert.Equal(t, "get_all_vendors", got[2].ID)
}

func TestFileProvider_New_MissingFileFailsAtStartup(t *testing.T) {
	provider, err := NewFileProvider(filepath.Join(t.TempDir(), "absent.json"), 0,
		logger.NewTestLogger(t))
	assert.Nil(t, provider)
	require.Error(t, err)
	assert.Equal(t, stderrors.ErrCodeCatalogLoadFailed, stderrors.CodeOf(err))
}

func TestFileProvider_New_RejectsSchemaViolation(t *testing.T) {
	// A tool without an id violates the catalog schema.
	path := writeCatalogFile(t, `{"version": "1", "tools": [{"description": "nameless"}]}`)

	provider, err := NewFileProvider(path, 0, logger.NewTestLogger(t))
	assert.Nil(t, provider)
	require.Error(t, err)
	assert.Equal(t, stderrors.ErrCodeSchemaValidationError, stderrors.CodeOf(err))
}

func TestFileProvider_New_RejectsMissingVersion(t *testing.T) {
	path := writeCatalogFile(t, `{"tools": []}`)

	_, err := NewFileProvider(path, 0, logger.NewTestLogger(t))
	require.Error(t, err)
	assert.Equal(t, stderrors.ErrCodeSchemaValidationError, stderrors.CodeOf(err))
}

func TestFileProvider_List_RefreshPicksUpNewFile(t *testing.T) {
	path := writeCatalogFile(t, validCatalogDoc)

	provider, err := NewFileProvider(path, time.Nanosecond, logger.NewTestLogger(t))
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`{
		"version": "2",
		"tools": [{"id": "get_cash_balance"}]
	}`), 0o644))

	// The refresh window is already elapsed, so List re-reads the file.
	time.Sleep(time.Millisecond)
	got, err := provider.List(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "get_cash_balance", got[0].ID)
}

func TestFileProvider_List_FailedRefreshServesLastGoodCatalog(t *testing.T) {
	path := writeCatalogFile(t, validCatalogDoc)

	provider, err := NewFileProvider(path, time.Nanosecond, logger.NewTestLogger(t))
	require.NoError(t, err)

	// Corrupt the file after the initial load; the provider keeps the
	// catalog it already has.
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o644))

	time.Sleep(time.Millisecond)
	got, err := provider.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestFileProvider_List_NoRefreshNeverRereads(t *testing.T) {
	path := writeCatalogFile(t, validCatalogDoc)

	provider, err := NewFileProvider(path, 0, logger.NewTestLogger(t))
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`{
		"version": "2",
		"tools": []
	}`), 0o644))

	got, err := provider.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 3)
}
