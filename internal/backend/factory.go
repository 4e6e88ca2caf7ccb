package backend

import (
	"context"
	"fmt"
	"log/slog"

	"moneybook/internal/docstore"
	"moneybook/internal/docstore/memory"
	"moneybook/internal/docstore/sqlite"
	"moneybook/internal/ledger"
	"moneybook/internal/log"
	"moneybook/internal/sheets"
	gsheet "moneybook/internal/sheets/google"
	sheetsmem "moneybook/internal/sheets/memory"
)

type DefaultFactory struct {
	logger *slog.Logger
	opts   []docstore.Option
}

// NewFactory creates a backend factory. opts are passed to every store it opens.
func NewFactory(logger *slog.Logger, opts ...docstore.Option) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger, opts: opts}
}

func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		store docstore.Store
		err   error
	)
	switch config.Type {
	case SQLiteBackend:
		store, err = sqlite.New(config.SQLiteDBPath, f.opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
		}
	case MemoryBackend:
		store = memory.New(f.opts...)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}

	l, err := newLedger(store, config.LedgerMode)
	if err != nil {
		store.Close()
		return nil, err
	}

	f.logger.InfoContext(ctx, "Initialized backend",
		log.FieldBackend, config.Type,
		log.FieldLedgerMode, config.LedgerMode,
		"db_path", config.SQLiteDBPath)

	return &BackendResult{Store: store, Ledger: l, Cleanup: store.Close}, nil
}

func newLedger(store docstore.Store, mode LedgerMode) (ledger.BalanceLedger, error) {
	switch mode {
	case AtomicLedger:
		l, err := ledger.NewAtomic(store)
		if err != nil {
			return nil, fmt.Errorf("atomic ledger: %w", err)
		}
		return l, nil
	case RelaxedLedger:
		return ledger.NewRelaxed(store), nil
	default:
		return nil, fmt.Errorf("invalid ledger mode: %s", mode)
	}
}

func (f *DefaultFactory) CreateExporter(ctx context.Context, config Config) (sheets.TransactionExporter, error) {
	if config.GoogleSpreadsheetID == "" {
		f.logger.InfoContext(ctx, "No spreadsheet configured, exporting to memory")
		return sheetsmem.New(), nil
	}

	client, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   config.GoogleSpreadsheetID,
		SheetName:       config.GoogleSheetName,
		CredentialsJSON: config.GoogleServiceAccountJSON,
		CredentialsFile: config.GoogleServiceAccountFile,
		Location:        config.Location,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	f.logger.InfoContext(ctx, "Initialized Google Sheets exporter",
		"spreadsheet_id", config.GoogleSpreadsheetID,
		"sheet", config.GoogleSheetName)
	return client, nil
}
