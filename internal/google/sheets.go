package google

import (
	"context"
	"fmt"

	"google.golang.org/api/sheets/v4"
)

const sheetRange = "Sheet1"

// Sheets writes rows to spreadsheets.
type Sheets struct {
	svc *sheets.Service
}

// WriteSheet appends rows after existing data, or overwrites from A1 when
// appendRows is false. It returns the number of rows written.
func (s *Sheets) WriteSheet(ctx context.Context, spreadsheetID string, rows [][]string, appendRows bool) (int, error) {
	vr := &sheets.ValueRange{Values: toValues(rows)}

	if appendRows {
		r, err := s.svc.Spreadsheets.Values.Append(spreadsheetID, sheetRange, vr).
			ValueInputOption("USER_ENTERED").
			InsertDataOption("INSERT_ROWS").
			Context(ctx).Do()
		if err != nil {
			return 0, fmt.Errorf("sheets append: %w", err)
		}
		if r.Updates == nil {
			return 0, nil
		}
		return int(r.Updates.UpdatedRows), nil
	}

	r, err := s.svc.Spreadsheets.Values.Update(spreadsheetID, sheetRange, vr).
		ValueInputOption("USER_ENTERED").
		Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("sheets update: %w", err)
	}
	return int(r.UpdatedRows), nil
}

func toValues(rows [][]string) [][]interface{} {
	values := make([][]interface{}, len(rows))
	for i, row := range rows {
		values[i] = make([]interface{}, len(row))
		for j, cell := range row {
			values[i][j] = cell
		}
	}
	return values
}
