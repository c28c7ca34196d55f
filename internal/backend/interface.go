package backend

import (
	"context"

	"github.com/jhonier182/lista-mercado/internal/entities"
	"github.com/jhonier182/lista-mercado/internal/sheets"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the entity store and optional cleanup function
type BackendResult struct {
	Repository entities.Repository
	Cleanup    CleanupFunc
}

// ExportResult holds the spreadsheet adapters selected by configuration.
// A single implementation usually serves both ports.
type ExportResult struct {
	Prices  sheets.PriceExporter
	Reports sheets.ReportWriter
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend opens the entity store named by config.Type.
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
	// CreateExporter builds the spreadsheet adapters named by config.Export.
	CreateExporter(ctx context.Context, config Config) (*ExportResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type   BackendType
	Export ExportType

	// SQLite specific
	SQLiteDBPath string

	// Google Sheets specific
	GoogleSpreadsheetID      string
	GooglePricesSheet        string
	GoogleReportsSheet       string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	GoogleOAuthClientFile    string
	GoogleOAuthClientJSON    string
	GoogleOAuthTokenFile     string
}

// BackendType names an entity store implementation.
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// ExportType names a spreadsheet adapter.
type ExportType string

const (
	SheetsExport ExportType = "sheets"
	MemoryExport ExportType = "memory"
)

// IsValid reports whether et names a supported exporter.
func (et ExportType) IsValid() bool {
	return et == SheetsExport || et == MemoryExport
}
