package backend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhonier182/lista-mercado/internal/config"
)

func TestFromAppConfig(t *testing.T) {
	_, err := FromAppConfig(nil)
	assert.Error(t, err)

	_, err = FromAppConfig(&config.Config{DataBackend: "sheets"})
	assert.ErrorContains(t, err, "invalid backend type")

	_, err = FromAppConfig(&config.Config{DataBackend: "sqlite"})
	assert.ErrorContains(t, err, "SQLite database path is required")

	cfg, err := FromAppConfig(&config.Config{DataBackend: "memory", ExportBackend: "sheets", GoogleSpreadsheetID: "abc"})
	require.NoError(t, err)
	assert.Equal(t, MemoryBackend, cfg.Type)
	assert.Equal(t, SheetsExport, cfg.Export)
}

func TestCreateBackend(t *testing.T) {
	f := NewFactory(nil)
	ctx := context.Background()

	mem, err := f.CreateBackend(ctx, Config{Type: MemoryBackend})
	require.NoError(t, err)
	require.NoError(t, mem.Repository.Ping(ctx))
	require.NoError(t, mem.Cleanup())

	lite, err := f.CreateBackend(ctx, Config{Type: SQLiteBackend, SQLiteDBPath: filepath.Join(t.TempDir(), "db", "test.db")})
	require.NoError(t, err)
	require.NoError(t, lite.Repository.Ping(ctx))
	require.NoError(t, lite.Cleanup())

	_, err = f.CreateBackend(ctx, Config{Type: "oracle"})
	assert.Error(t, err)
}

func TestCreateExporter(t *testing.T) {
	f := NewFactory(nil)
	ctx := context.Background()

	res, err := f.CreateExporter(ctx, Config{})
	require.NoError(t, err)
	assert.NotNil(t, res.Prices)
	assert.NotNil(t, res.Reports)

	_, err = f.CreateExporter(ctx, Config{Export: SheetsExport})
	assert.ErrorContains(t, err, "missing spreadsheet id")

	_, err = f.CreateExporter(ctx, Config{Export: "excel"})
	assert.Error(t, err)
}

func TestGetBackendTypeStrings(t *testing.T) {
	assert.Equal(t, []string{"sqlite", "memory"}, GetBackendTypeStrings())
}
