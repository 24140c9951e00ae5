package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	applog "gastos/internal/log"
	ports "gastos/internal/sheets"
)

const (
	defaultSheetName   = "Movements"
	defaultRowCacheTTL = 5 * time.Minute
	valueInputOption   = "USER_ENTERED"
)

var header = []any{"Message ID", "Date", "Time", "Account", "Label", "Delta", "Prior balance", "New balance"}

var errNotInitialized = errors.New("sheets service not initialized")

// Config selects the spreadsheet and the credentials used to reach it.
// CredentialsJSON wins over CredentialsFile.
type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsFile string
	CredentialsJSON string
}

type rowCount struct {
	rows      int
	expiresAt time.Time
}

// Client appends movement rows to a yearly tab, "<year> <sheet name>".
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetBase     string
	logger        *applog.Logger

	mu        sync.Mutex
	rowCounts map[string]rowCount
	rowsTTL   time.Duration
}

var (
	_ ports.MovementWriter  = (*Client)(nil)
	_ ports.MessageIDReader = (*Client)(nil)
)

// New creates a Sheets client authenticated with service account credentials.
func New(ctx context.Context, cfg Config, logger *applog.Logger, opts ...goption.ClientOption) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if len(opts) == 0 {
		creds, err := credentials(cfg)
		if err != nil {
			return nil, err
		}
		opts = []goption.ClientOption{
			goption.WithCredentialsJSON(creds),
			goption.WithScopes(gsheet.SpreadsheetsScope),
		}
	}
	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return newWithService(svc, cfg, logger), nil
}

func newWithService(svc *gsheet.Service, cfg Config, logger *applog.Logger) *Client {
	if logger == nil {
		logger = applog.Discard()
	}
	base := strings.TrimSpace(cfg.SheetName)
	if base == "" {
		base = defaultSheetName
	}
	return &Client{
		svc:           svc,
		spreadsheetID: strings.TrimSpace(cfg.SpreadsheetID),
		sheetBase:     base,
		logger:        logger.WithComponent(applog.ComponentSheets),
		rowCounts:     make(map[string]rowCount),
		rowsTTL:       defaultRowCacheTTL,
	}
}

func credentials(cfg Config) ([]byte, error) {
	if js := strings.TrimSpace(cfg.CredentialsJSON); js != "" {
		return []byte(js), nil
	}
	if path := strings.TrimSpace(cfg.CredentialsFile); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	}
	return nil, errors.New("missing service account credentials (set GOOGLE_CREDENTIALS_JSON or GOOGLE_CREDENTIALS_FILE)")
}

// AppendMovement writes the row below the last used row of the movement's
// yearly tab and returns the A1 range it occupies.
func (c *Client) AppendMovement(ctx context.Context, row ports.MovementRow) (string, error) {
	if err := row.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	if c.svc == nil {
		return "", errNotInitialized
	}

	sheet := c.sheetFor(row.Movement.Timestamp.Year())
	next, err := c.nextRow(ctx, sheet)
	if err != nil {
		return "", err
	}

	rng := fmt.Sprintf("%s!A%d:H%d", quoteSheet(sheet), next, next)
	vr := &gsheet.ValueRange{Values: [][]any{movementValues(row)}}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption(valueInputOption).Context(ctx).Do()
	if err != nil {
		c.invalidateRowCount(sheet)
		return "", fmt.Errorf("failed to write %s: %w", rng, err)
	}
	c.storeRowCount(sheet, next)

	c.logger.DebugContext(ctx, "Movement row written",
		applog.FieldMessageID, row.MessageID,
		"range", rng)
	return rng, nil
}

// ListMessageIDs returns the distinct message IDs found in column A of the
// year's tab. A missing tab yields no IDs.
func (c *Client) ListMessageIDs(ctx context.Context, year int) ([]string, error) {
	if c.svc == nil {
		return nil, errNotInitialized
	}
	ids, err := c.readCol(ctx, c.sheetFor(year), "A2:A")
	if isMissingRange(err) {
		return nil, nil
	}
	return ids, err
}

func (c *Client) sheetFor(year int) string {
	return yearPrefixedName(c.sheetBase, year)
}

// nextRow returns the first free row of sheet, creating the tab and its
// header row when needed. Row counts are cached for rowsTTL.
func (c *Client) nextRow(ctx context.Context, sheet string) (int, error) {
	c.mu.Lock()
	cached, ok := c.rowCounts[sheet]
	c.mu.Unlock()
	if ok && time.Now().Before(cached.expiresAt) {
		return cached.rows + 1, nil
	}

	rng := fmt.Sprintf("%s!A:A", quoteSheet(sheet))
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	rows := 0
	switch {
	case isMissingRange(err):
		if err := c.addSheet(ctx, sheet); err != nil {
			return 0, err
		}
	case err != nil:
		return 0, fmt.Errorf("failed to get sheet dimensions for %s: %w", sheet, err)
	default:
		rows = len(resp.Values)
	}

	if rows == 0 {
		hdr := fmt.Sprintf("%s!A1:H1", quoteSheet(sheet))
		_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, hdr, &gsheet.ValueRange{Values: [][]any{header}}).
			ValueInputOption(valueInputOption).Context(ctx).Do()
		if err != nil {
			return 0, fmt.Errorf("failed to write header of %s: %w", sheet, err)
		}
		rows = 1
	}
	c.storeRowCount(sheet, rows)
	return rows + 1, nil
}

func (c *Client) addSheet(ctx context.Context, sheet string) error {
	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: sheet}},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to add sheet %s: %w", sheet, err)
	}
	c.logger.InfoContext(ctx, "Created yearly movement sheet", "sheet", sheet)
	return nil
}

func (c *Client) storeRowCount(sheet string, rows int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rowCounts[sheet] = rowCount{rows: rows, expiresAt: time.Now().Add(c.rowsTTL)}
}

func (c *Client) invalidateRowCount(sheet string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rowCounts, sheet)
}

func (c *Client) readCol(ctx context.Context, sheetName, col string) ([]string, error) {
	rng := fmt.Sprintf("%s!%s", quoteSheet(sheetName), col)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return firstColumn(resp.Values), nil
}

// firstColumn returns the trimmed, non-empty, distinct first cells in order.
func firstColumn(values [][]any) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, row := range values {
		if len(row) == 0 {
			continue
		}
		v := strings.TrimSpace(fmt.Sprint(row[0]))
		if v == "" || strings.HasPrefix(v, "#") {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func movementValues(row ports.MovementRow) []any {
	m := row.Movement
	ts := m.Timestamp
	return []any{
		row.MessageID,
		ts.Format("02/01/2006"),
		ts.Format("15:04:05"),
		row.Account,
		m.Label,
		m.Delta.StringFixed(2),
		m.PriorBalance.StringFixed(2),
		m.NewBalance.StringFixed(2),
	}
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}

// quoteSheet quotes a sheet name for A1 notation.
func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

// isMissingRange reports whether err is the 400 the API returns for a range
// on a tab that does not exist.
func isMissingRange(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return false
	}
	return gerr.Code == http.StatusBadRequest && strings.Contains(strings.ToLower(gerr.Message), "unable to parse range")
}
