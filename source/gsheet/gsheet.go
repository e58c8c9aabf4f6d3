/*
Package gsheet implements engine.DataSource against the Google Sheets
values API.

PURPOSE:
  Reads the construction sheet with FORMATTED_VALUE rendering (so
  formula cells arrive as their displayed strings), appends new project
  rows and updates existing ones in place.

ENDPOINTS USED:
  GET  /{id}/values/{range}           full sheet read
  POST /{id}/values/{range}:append    row append (INSERT_ROWS)
  PUT  /{id}/values/{range}           row update

PREPROCESSING:
  The header row becomes the column schema; data rows without a project
  code are dropped at this boundary, mirroring how the sheet mixes
  scratch rows into the real data.

ERROR CONTRACT:
  Read failures unwrap to engine.ErrFetch, write failures to
  engine.ErrWrite.
*/
package gsheet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/siteops/sheetsync/engine"
)

// Options configures the client.
type Options struct {
	// Endpoint is the values API base, overridable for tests.
	Endpoint      string
	SpreadsheetID string
	// Range is the read range, e.g. "공사 현황!A:AM". The sheet name
	// before '!' is reused for writes.
	Range       string
	AccessToken string
	HTTPClient  *http.Client
}

// Client talks to one spreadsheet.
type Client struct {
	opts   Options
	http   *http.Client
	logger zerolog.Logger
}

// New creates a sheets client.
func New(opts Options, logger zerolog.Logger) (*Client, error) {
	if opts.SpreadsheetID == "" {
		return nil, fmt.Errorf("gsheet: spreadsheet id required")
	}
	if opts.Endpoint == "" {
		opts.Endpoint = "https://sheets.googleapis.com/v4/spreadsheets"
	}
	if opts.Range == "" {
		opts.Range = "공사 현황!A:AM"
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		opts:   opts,
		http:   httpClient,
		logger: logger.With().Str("component", "gsheet").Logger(),
	}, nil
}

// sheetName returns the sheet-tab part of the configured range.
func (c *Client) sheetName() string {
	if i := strings.IndexByte(c.opts.Range, '!'); i >= 0 {
		return c.opts.Range[:i]
	}
	return c.opts.Range
}

type valueRange struct {
	Values [][]string `json:"values"`
}

// FetchRows implements engine.DataSource.
func (c *Client) FetchRows(ctx context.Context) ([]string, []engine.Row, error) {
	u := fmt.Sprintf("%s/%s/values/%s?valueRenderOption=FORMATTED_VALUE&dateTimeRenderOption=FORMATTED_STRING",
		c.opts.Endpoint, c.opts.SpreadsheetID, url.PathEscape(c.opts.Range))

	var vr valueRange
	if err := c.do(ctx, http.MethodGet, u, nil, &vr); err != nil {
		return nil, nil, &engine.FetchError{Cause: err}
	}
	if len(vr.Values) == 0 {
		c.logger.Warn().Msg("sheet is empty")
		return nil, nil, nil
	}

	columns := vr.Values[0]
	rows := make([]engine.Row, 0, len(vr.Values)-1)
	dropped := 0
	for _, cells := range vr.Values[1:] {
		row := make(engine.Row, len(columns))
		for i, col := range columns {
			if i < len(cells) {
				row[col] = cells[i]
			}
		}
		if row.Code() == "" {
			dropped++
			continue
		}
		rows = append(rows, row)
	}
	c.logger.Debug().Int("rows", len(rows)).Int("dropped", dropped).Msg("sheet fetched")
	return columns, rows, nil
}

// AppendRow implements engine.DataSource.
func (c *Client) AppendRow(ctx context.Context, row engine.Row) error {
	u := fmt.Sprintf("%s/%s/values/%s:append?valueInputOption=USER_ENTERED&insertDataOption=INSERT_ROWS",
		c.opts.Endpoint, c.opts.SpreadsheetID, url.PathEscape(c.opts.Range))

	body := valueRange{Values: [][]string{serializeRow(row)}}
	if err := c.do(ctx, http.MethodPost, u, body, nil); err != nil {
		return &engine.WriteError{Op: "append", Cause: err}
	}
	c.logger.Info().Str("code", row.Code()).Msg("row appended")
	return nil
}

// UpdateRow implements engine.DataSource. The row's sheet position is
// looked up by project code in column A first.
func (c *Client) UpdateRow(ctx context.Context, code string, row engine.Row) error {
	rowNum, err := c.findRowByCode(ctx, code)
	if err != nil {
		return &engine.WriteError{Op: "update", Cause: err}
	}

	target := fmt.Sprintf("%s!A%d:AM%d", c.sheetName(), rowNum, rowNum)
	u := fmt.Sprintf("%s/%s/values/%s?valueInputOption=USER_ENTERED",
		c.opts.Endpoint, c.opts.SpreadsheetID, url.PathEscape(target))

	body := valueRange{Values: [][]string{serializeRow(row)}}
	if err := c.do(ctx, http.MethodPut, u, body, nil); err != nil {
		return &engine.WriteError{Op: "update", Cause: err}
	}
	c.logger.Info().Str("code", code).Int("row", rowNum).Msg("row updated")
	return nil
}

// findRowByCode scans the code column for the 1-based sheet row number.
func (c *Client) findRowByCode(ctx context.Context, code string) (int, error) {
	u := fmt.Sprintf("%s/%s/values/%s", c.opts.Endpoint, c.opts.SpreadsheetID,
		url.PathEscape(c.sheetName()+"!A:A"))

	var vr valueRange
	if err := c.do(ctx, http.MethodGet, u, nil, &vr); err != nil {
		return 0, err
	}
	for i, cells := range vr.Values {
		if len(cells) > 0 && cells[0] == code {
			return i + 1, nil
		}
	}
	return 0, fmt.Errorf("project code %s not found", code)
}

// do runs one API call and decodes the response into out when non-nil.
func (c *Client) do(ctx context.Context, method, u string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.opts.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.AccessToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sheets API %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// serializeRow lays the row out in canonical A..AM column order.
func serializeRow(row engine.Row) []string {
	cells := make([]string, len(engine.SheetColumns))
	for i, col := range engine.SheetColumns {
		cells[i] = row[col]
	}
	return cells
}
