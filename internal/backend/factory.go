package backend

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jhonier182/lista-mercado/internal/entities/memory"
	gsheet "github.com/jhonier182/lista-mercado/internal/sheets/google"
	sheetsmem "github.com/jhonier182/lista-mercado/internal/sheets/memory"
	"github.com/jhonier182/lista-mercado/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(_ context.Context, config Config) (*BackendResult, error) {
	if !config.Type.IsValid() {
		return nil, fmt.Errorf("invalid backend type: %s", config.Type)
	}

	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
		return &BackendResult{Repository: repo, Cleanup: repo.Close}, nil
	case MemoryBackend:
		store := memory.New()
		f.logger.Info("Initialized memory backend")
		return &BackendResult{Repository: store, Cleanup: store.Close}, nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

// CreateExporter implements Factory.CreateExporter. An empty export type
// selects the in-memory adapter.
func (f *DefaultFactory) CreateExporter(ctx context.Context, config Config) (*ExportResult, error) {
	switch config.Export {
	case SheetsExport:
		cli, err := gsheet.New(ctx, gsheet.Options{
			SpreadsheetID:      config.GoogleSpreadsheetID,
			PricesSheet:        config.GooglePricesSheet,
			ReportsSheet:       config.GoogleReportsSheet,
			ServiceAccountJSON: config.GoogleServiceAccountJSON,
			ServiceAccountFile: config.GoogleServiceAccountFile,
			OAuthClientJSON:    config.GoogleOAuthClientJSON,
			OAuthClientFile:    config.GoogleOAuthClientFile,
			OAuthTokenFile:     config.GoogleOAuthTokenFile,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
		}
		f.logger.Info("Initialized Google Sheets export", "spreadsheet_id", config.GoogleSpreadsheetID)
		return &ExportResult{Prices: cli, Reports: cli}, nil
	case MemoryExport, "":
		store := sheetsmem.New()
		f.logger.Info("Initialized memory export")
		return &ExportResult{Prices: store, Reports: store}, nil
	default:
		return nil, fmt.Errorf("unsupported export type: %s", config.Export)
	}
}
