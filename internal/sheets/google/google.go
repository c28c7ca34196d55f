package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	goauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"github.com/jhonier182/lista-mercado/internal/core"
	ports "github.com/jhonier182/lista-mercado/internal/sheets"
)

const valueInput = "USER_ENTERED"

// Options selects the spreadsheet and how to authenticate against it. A
// service account wins over an OAuth client when both are set.
type Options struct {
	SpreadsheetID string
	// Base sheet names without year; the year is prefixed per row date.
	PricesSheet  string
	ReportsSheet string

	ServiceAccountJSON string
	ServiceAccountFile string

	OAuthClientJSON string
	OAuthClientFile string
	OAuthTokenFile  string

	// ClientOptions are appended last; tests use them to point at a fake API.
	ClientOptions []goption.ClientOption
}

// Client writes monthly reports to Google Sheets.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	pricesBase    string
	reportsBase   string
}

var (
	_ ports.PriceExporter = (*Client)(nil)
	_ ports.ReportWriter  = (*Client)(nil)
)

// New creates a Sheets client.
func New(ctx context.Context, opts Options) (*Client, error) {
	spreadsheetID := strings.TrimSpace(opts.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}

	clientOpts, err := authOptions(ctx, opts)
	if err != nil {
		return nil, err
	}
	clientOpts = append(clientOpts, opts.ClientOptions...)

	svc, err := gsheet.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	prices := strings.TrimSpace(opts.PricesSheet)
	if prices == "" {
		prices = "Prices"
	}
	reports := strings.TrimSpace(opts.ReportsSheet)
	if reports == "" {
		reports = "Reports"
	}

	slog.InfoContext(ctx, "Google Sheets client ready",
		"spreadsheet_id", spreadsheetID,
		"prices_sheet", prices,
		"reports_sheet", reports)

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		pricesBase:    prices,
		reportsBase:   reports,
	}, nil
}

func authOptions(ctx context.Context, opts Options) ([]goption.ClientOption, error) {
	if len(opts.ClientOptions) > 0 && opts.ServiceAccountJSON == "" && opts.ServiceAccountFile == "" &&
		opts.OAuthClientJSON == "" && opts.OAuthClientFile == "" {
		return nil, nil
	}

	saJSON, err := readInlineOrFile(opts.ServiceAccountJSON, opts.ServiceAccountFile)
	if err != nil {
		return nil, fmt.Errorf("read service account: %w", err)
	}
	if len(saJSON) > 0 {
		slog.InfoContext(ctx, "Using service account credentials", "credentials_size", len(saJSON))
		return []goption.ClientOption{
			goption.WithCredentialsJSON(saJSON),
			goption.WithScopes(gsheet.SpreadsheetsScope),
		}, nil
	}

	cfg, err := OAuthConfig(opts.OAuthClientJSON, opts.OAuthClientFile)
	if err != nil {
		return nil, err
	}
	tok, err := LoadToken(opts.OAuthTokenFile)
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Using OAuth client credentials", "token_file", opts.OAuthTokenFile)
	httpCtx := context.WithValue(ctx, oauth2.HTTPClient, newHTTPClientWithPooling())
	return []goption.ClientOption{
		goption.WithHTTPClient(oauth2.NewClient(httpCtx, cfg.TokenSource(httpCtx, tok))),
	}, nil
}

func readInlineOrFile(inline, path string) ([]byte, error) {
	if s := strings.TrimSpace(inline); s != "" {
		return []byte(s), nil
	}
	if p := strings.TrimSpace(path); p != "" {
		return os.ReadFile(p)
	}
	return nil, nil
}

// OAuthConfig builds the Sheets OAuth client config from inline JSON or a
// client secret file.
func OAuthConfig(inline, path string) (*oauth2.Config, error) {
	clientJSON, err := readInlineOrFile(inline, path)
	if err != nil {
		return nil, fmt.Errorf("read oauth client: %w", err)
	}
	if len(clientJSON) == 0 {
		return nil, errors.New("missing credentials (set a service account or an OAuth client)")
	}
	cfg, err := goauth.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}
	return cfg, nil
}

// LoadToken reads an OAuth token saved by the sheets-auth command.
func LoadToken(path string) (*oauth2.Token, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("missing oauth token file")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read oauth token: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(b, &tok); err != nil {
		return nil, fmt.Errorf("decode oauth token: %w", err)
	}
	return &tok, nil
}

// SaveToken writes tok to path with owner-only permissions.
func SaveToken(path string, tok *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open token file: %w", err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(tok); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	return nil
}

// newHTTPClientWithPooling creates an HTTP client tuned for the Sheets API.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   60 * time.Second,
	}
}

// AppendPriceObservation appends one row to the prices sheet of the
// observation's year. An entry already present in the sheet is not appended
// twice, so a redelivered message is harmless.
func (c *Client) AppendPriceObservation(ctx context.Context, obs ports.PriceObservation) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	if obs.EntryID == "" {
		return "", errors.New("observation has no entry id")
	}

	sheet := yearPrefixedName(c.pricesBase, observationYear(obs))
	existing, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, sheet+"!A:G").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("read %s: %w", sheet, err)
	}
	if ref, ok := findEntry(existing.Values, sheet, obs.EntryID); ok {
		slog.InfoContext(ctx, "Price observation already exported", "entry_id", obs.EntryID, "ref", ref)
		return ref, nil
	}

	rows := [][]any{}
	if len(existing.Values) == 0 {
		rows = append(rows, toRow(priceHeader))
	}
	rows = append(rows, observationRow(obs))

	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, sheet+"!A:G", &gsheet.ValueRange{Values: rows}).
		ValueInputOption(valueInput).
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to %s: %w", sheet, err)
	}
	return updatedRange(resp, sheet), nil
}

// WriteMonthlyReport appends a report block for the month to the reports
// sheet of that year.
func (c *Client) WriteMonthlyReport(ctx context.Context, ownerID string, report core.MonthlyExpenses) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	sheet := yearPrefixedName(c.reportsBase, report.Year)
	rows := reportRows(ownerID, report, time.Now().UTC())

	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, sheet+"!A:F", &gsheet.ValueRange{Values: rows}).
		ValueInputOption(valueInput).
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append report to %s: %w", sheet, err)
	}
	return updatedRange(resp, sheet), nil
}

func updatedRange(resp *gsheet.AppendValuesResponse, sheet string) string {
	if resp != nil && resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		return resp.Updates.UpdatedRange
	}
	return sheet
}

func observationYear(obs ports.PriceObservation) int {
	if len(obs.Date) >= 4 {
		if y, err := strconv.Atoi(obs.Date[:4]); err == nil {
			return y
		}
	}
	return time.Now().Year()
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
