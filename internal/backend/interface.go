package backend

import (
	"context"
	"time"

	"moneybook/internal/docstore"
	"moneybook/internal/ledger"
	"moneybook/internal/sheets"
)

// CleanupFunc releases the resources behind a backend.
type CleanupFunc func() error

// BackendResult is a ready store together with the ledger writing to it.
type BackendResult struct {
	Store   docstore.Store
	Ledger  ledger.BalanceLedger
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration.
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
	// CreateExporter returns the Google Sheets exporter when a spreadsheet
	// is configured and the in-memory one otherwise.
	CreateExporter(ctx context.Context, config Config) (sheets.TransactionExporter, error)
}

type Config struct {
	Type       BackendType
	LedgerMode LedgerMode

	SQLiteDBPath string

	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	Location                 *time.Location
}

type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// LedgerMode picks the BalanceLedger implementation.
type LedgerMode string

const (
	RelaxedLedger LedgerMode = "relaxed"
	AtomicLedger  LedgerMode = "atomic"
)

func (m LedgerMode) IsValid() bool {
	return m == RelaxedLedger || m == AtomicLedger
}
