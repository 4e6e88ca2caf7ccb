package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	ports "moneybook/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const defaultCacheDuration = 2 * time.Minute

// Config selects the spreadsheet and the service account used to reach it.
type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
	Location        *time.Location
}

// valuesAPI is the slice of the Sheets values API the exporter uses.
type valuesAPI interface {
	Get(ctx context.Context, rng string) ([][]any, error)
	Update(ctx context.Context, rng string, values [][]any) error
	Clear(ctx context.Context, rng string) error
}

// Client exports transactions to one sheet, one row per transaction. It
// keeps an index of transaction id to row number so updates and removals
// do not rescan the sheet every time.
type Client struct {
	api       valuesAPI
	sheetName string
	loc       *time.Location

	mu                 sync.Mutex
	rowIndex           map[string]int
	cachedRowCount     int
	cacheExpiresAt     time.Time
	cacheValidDuration time.Duration
}

var _ ports.TransactionExporter = (*Client)(nil)

func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newClient(&sheetsValues{svc: svc, spreadsheetID: cfg.SpreadsheetID}, cfg), nil
}

func newClient(api valuesAPI, cfg Config) *Client {
	name := strings.TrimSpace(cfg.SheetName)
	if name == "" {
		name = "Transactions"
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Client{
		api:                api,
		sheetName:          name,
		loc:                loc,
		rowIndex:           make(map[string]int),
		cacheValidDuration: defaultCacheDuration,
	}
}

// newSheetsService authenticates with service account credentials, inline or from a file.
func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	var credentialsJSON []byte
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		credentialsJSON = []byte(cfg.CredentialsJSON)
	case strings.TrimSpace(cfg.CredentialsFile) != "":
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = data
	default:
		return nil, errors.New("missing service account credentials")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created", "spreadsheet_id", cfg.SpreadsheetID)
	return service, nil
}

func rowKey(userID, id string) string {
	return userID + "/" + id
}

func (c *Client) rowRange(row int) string {
	return fmt.Sprintf("%s!A%d:H%d", c.sheetName, row, row)
}

// refreshLocked rebuilds the row index from the ID and User columns when
// the cache has expired. The caller holds mu.
func (c *Client) refreshLocked(ctx context.Context) error {
	if time.Now().Before(c.cacheExpiresAt) {
		return nil
	}
	rng := fmt.Sprintf("%s!G:H", c.sheetName)
	values, err := c.api.Get(ctx, rng)
	if err != nil {
		return fmt.Errorf("read %s: %w", rng, err)
	}

	index := make(map[string]int, len(values))
	for i, row := range values {
		if len(row) < 2 {
			continue
		}
		id := strings.TrimSpace(fmt.Sprint(row[0]))
		user := strings.TrimSpace(fmt.Sprint(row[1]))
		if id == "" || user == "" {
			continue
		}
		index[rowKey(user, id)] = i + 1
	}
	c.rowIndex = index
	c.cachedRowCount = len(values)
	c.cacheExpiresAt = time.Now().Add(c.cacheValidDuration)
	return nil
}

// InvalidateRowCache forces the next write to re-read the sheet.
func (c *Client) InvalidateRowCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cacheExpiresAt = time.Time{}
}

func (c *Client) Upsert(ctx context.Context, row ports.Row) (string, error) {
	if err := row.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.refreshLocked(ctx); err != nil {
		return "", err
	}

	if c.cachedRowCount == 0 {
		if err := c.api.Update(ctx, c.rowRange(1), [][]any{ports.Header}); err != nil {
			return "", fmt.Errorf("write header in sheet %s: %w", c.sheetName, err)
		}
		c.cachedRowCount = 1
	}

	key := rowKey(row.UserID, row.ID)
	target, exists := c.rowIndex[key]
	if !exists {
		target = c.cachedRowCount + 1
	}

	rng := c.rowRange(target)
	if err := c.api.Update(ctx, rng, [][]any{row.Values(c.loc)}); err != nil {
		c.cacheExpiresAt = time.Time{}
		return "", fmt.Errorf("update %s: %w", rng, err)
	}

	c.rowIndex[key] = target
	if target > c.cachedRowCount {
		c.cachedRowCount = target
	}
	return rng, nil
}

func (c *Client) Remove(ctx context.Context, userID, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.refreshLocked(ctx); err != nil {
		return err
	}
	key := rowKey(userID, id)
	target, ok := c.rowIndex[key]
	if !ok {
		return nil
	}

	rng := c.rowRange(target)
	if err := c.api.Clear(ctx, rng); err != nil {
		c.cacheExpiresAt = time.Time{}
		return fmt.Errorf("clear %s: %w", rng, err)
	}
	delete(c.rowIndex, key)
	return nil
}

type sheetsValues struct {
	svc           *gsheet.Service
	spreadsheetID string
}

func (s *sheetsValues) Get(ctx context.Context, rng string) ([][]any, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

// Update writes values as RAW so user text such as "=1+1" is stored as
// typed and never evaluated as a formula.
func (s *sheetsValues) Update(ctx context.Context, rng string, values [][]any) error {
	_, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, rng, &gsheet.ValueRange{Values: values}).
		ValueInputOption("RAW").Context(ctx).Do()
	return err
}

func (s *sheetsValues) Clear(ctx context.Context, rng string) error {
	_, err := s.svc.Spreadsheets.Values.Clear(s.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	return err
}
