package backend

import (
	"fmt"

	"moneybook/internal/config"
)

// FromAppConfig converts the application config to backend config.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	cfg := Config{
		Type:       BackendType(appConfig.DataBackend),
		LedgerMode: LedgerMode(appConfig.LedgerMode),

		SQLiteDBPath: appConfig.SQLiteDBPath,

		GoogleSpreadsheetID:      appConfig.GoogleSpreadsheetID,
		GoogleSheetName:          appConfig.GoogleSheetName,
		GoogleServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
		GoogleServiceAccountFile: appConfig.GoogleServiceAccountFile,
		Location:                 appConfig.Location(),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}
	if !c.LedgerMode.IsValid() {
		return fmt.Errorf("invalid ledger mode: %s", c.LedgerMode)
	}
	if c.Type == SQLiteBackend && c.SQLiteDBPath == "" {
		return fmt.Errorf("SQLite database path is required for sqlite backend")
	}
	return nil
}

// BackendTypes lists every valid backend type.
func BackendTypes() []BackendType {
	return []BackendType{MemoryBackend, SQLiteBackend}
}
