package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"finman/internal/core"
	"finman/internal/log"
	"finman/internal/ports"
)

// Columns A..I of the export sheet. Column A holds the transaction id and is
// the row key.
var header = []any{"ID", "Date", "Type", "Category", "Description", "Amount", "Payment Method", "Notes", "Updated At"}

const lastColumn = "I"

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	logger        *log.Logger

	mu                 sync.Mutex
	rows               map[int64]int // transaction id -> 1-based row
	nextRow            int
	cacheExpiresAt     time.Time
	cacheValidDuration time.Duration
	headerChecked      bool
}

var _ ports.TransactionExporter = (*Client)(nil)

// Config selects the spreadsheet and the service account used to write it.
// CredentialsJSON wins over CredentialsFile; with neither set,
// GOOGLE_APPLICATION_CREDENTIALS is consulted.
type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

func New(ctx context.Context, cfg Config, logger *log.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	credentials, err := loadCredentials(cfg)
	if err != nil {
		return nil, err
	}
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentials),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return NewWithService(svc, cfg.SpreadsheetID, cfg.SheetName, logger), nil
}

// NewWithService wraps an existing Sheets service.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheetName string, logger *log.Logger) *Client {
	if sheetName == "" {
		sheetName = "Transactions"
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Client{
		svc:                svc,
		spreadsheetID:      spreadsheetID,
		sheetName:          sheetName,
		logger:             logger.WithComponent(log.ComponentSheets),
		cacheValidDuration: 5 * time.Minute,
	}
}

func loadCredentials(cfg Config) ([]byte, error) {
	if js := strings.TrimSpace(cfg.CredentialsJSON); js != "" {
		return []byte(js), nil
	}
	path := strings.TrimSpace(cfg.CredentialsFile)
	if path == "" {
		path = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if path == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return data, nil
}

// UpsertTransaction overwrites the row keyed by tx.ID, appending a new row
// the first time the id is seen.
func (c *Client) UpsertTransaction(ctx context.Context, tx core.Transaction) error {
	if tx.ID <= 0 {
		return fmt.Errorf("%w: transaction id must be positive", core.ErrInvalidArgument)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureHeaderLocked(ctx); err != nil {
		return err
	}
	row, ok, err := c.rowLocked(ctx, tx.ID)
	if err != nil {
		return err
	}
	values := &gsheet.ValueRange{Values: [][]any{toRow(tx)}}

	if !ok {
		row = c.nextRow
	}
	rng := rowRange(c.sheetName, row)
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, values).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		c.invalidateLocked()
		return fmt.Errorf("write %s: %w", rng, err)
	}
	if !ok {
		c.rows[tx.ID] = row
		c.nextRow++
	}

	c.logger.DebugContext(ctx, "Exported transaction row",
		log.FieldTransactionID, tx.ID,
		"range", rng,
		"appended", !ok)
	return nil
}

// RemoveTransaction blanks the row keyed by id. Unknown ids are ignored.
// Rows are cleared rather than deleted so the row numbers of other
// transactions stay valid.
func (c *Client) RemoveTransaction(ctx context.Context, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	row, ok, err := c.rowLocked(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	rng := rowRange(c.sheetName, row)
	_, err = c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		c.invalidateLocked()
		return fmt.Errorf("clear %s: %w", rng, err)
	}
	delete(c.rows, id)
	return nil
}

func (c *Client) ensureHeaderLocked(ctx context.Context) error {
	if c.headerChecked {
		return nil
	}
	rng := fmt.Sprintf("%s!A1:%s1", c.sheetName, lastColumn)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read %s: %w", rng, err)
	}
	if len(resp.Values) == 0 || len(resp.Values[0]) == 0 {
		_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, &gsheet.ValueRange{Values: [][]any{header}}).
			ValueInputOption("RAW").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		c.invalidateLocked()
	}
	c.headerChecked = true
	return nil
}

// rowLocked finds the row holding id, refreshing the index from column A when
// it has expired.
func (c *Client) rowLocked(ctx context.Context, id int64) (int, bool, error) {
	if c.rows == nil || !time.Now().Before(c.cacheExpiresAt) {
		if err := c.loadIndexLocked(ctx); err != nil {
			return 0, false, err
		}
	}
	row, ok := c.rows[id]
	return row, ok, nil
}

func (c *Client) loadIndexLocked(ctx context.Context) error {
	rng := fmt.Sprintf("%s!A:A", c.sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read %s: %w", rng, err)
	}
	rows, next := indexRows(resp.Values)
	c.rows = rows
	c.nextRow = next
	c.cacheExpiresAt = time.Now().Add(c.cacheValidDuration)
	return nil
}

func (c *Client) invalidateLocked() {
	c.rows = nil
	c.cacheExpiresAt = time.Time{}
}

// indexRows maps ids found in column A to their row numbers. Rows whose
// first cell is not an id (the header, cleared rows) are skipped. The second
// result is the first row after the last non-empty one.
func indexRows(values [][]any) (map[int64]int, int) {
	rows := make(map[int64]int, len(values))
	for i, v := range values {
		if len(v) == 0 {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimSpace(fmt.Sprint(v[0])), 10, 64)
		if err != nil || id <= 0 {
			continue
		}
		rows[id] = i + 1
	}
	next := len(values) + 1
	if next < 2 {
		next = 2
	}
	return rows, next
}

func toRow(tx core.Transaction) []any {
	return []any{
		tx.ID,
		tx.Date.String(),
		string(tx.Type),
		tx.Category,
		tx.Description,
		tx.Amount.String(),
		tx.PaymentMethod,
		tx.Notes,
		tx.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func rowRange(sheet string, row int) string {
	return fmt.Sprintf("%s!A%d:%s%d", sheet, row, lastColumn, row)
}
