// Package sheets implements the reporting sink on the Google Sheets
// values.append API.
package sheets

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/sellermetrics/position-tracker/internal/report"
)

// Config identifies the target spreadsheet.
type Config struct {
	SpreadsheetID   string
	CredentialsFile string
}

// Sink appends rows to one spreadsheet, one sheet per target.
type Sink struct {
	svc           *sheets.Service
	spreadsheetID string
}

// New builds a Sink. Credentials fall back to Application Default
// Credentials when no file is configured.
func New(ctx context.Context, cfg Config) (*Sink, error) {
	if cfg.SpreadsheetID == "" {
		return nil, fmt.Errorf("report.spreadsheet_id is required")
	}
	opts := []option.ClientOption{option.WithScopes(sheets.SpreadsheetsScope)}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &Sink{svc: svc, spreadsheetID: cfg.SpreadsheetID}, nil
}

// AppendRows appends the rows to the sheet named after the target. Row
// highlighting for promoted placements is applied by conditional formatting
// on the sheet itself; the flag is accepted for interface compatibility.
func (s *Sink) AppendRows(ctx context.Context, target report.SheetTarget, rows [][]string, _ bool) error {
	values := make([][]any, len(rows))
	for i, row := range rows {
		cells := make([]any, len(row))
		for j, cell := range row {
			cells[j] = cell
		}
		values[i] = cells
	}

	_, err := s.svc.Spreadsheets.Values.
		Append(s.spreadsheetID, string(target), &sheets.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append %d rows to %s: %w", len(rows), target, err)
	}
	return nil
}
