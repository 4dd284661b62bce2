package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/troopkit/rostersync/internal/types"
)

const (
	rowsSheet    = "Staged"
	summarySheet = "Summary"
)

// Header of the staged rows sheet.
var Header = []string{
	"Selected", "Change", "Name", "BSA Member ID", "Type", "Age", "Rank",
	"Patrol", "Position", "Position 2", "Renewal Status", "Expiration Date",
	"Match", "Skip Reason", "Changes",
}

var columnWidths = []float64{10, 10, 24, 16, 10, 6, 18, 18, 24, 20, 18, 16, 12, 14, 48}

func rowValues(r types.StagedMember) []any {
	selected := "No"
	if r.IsSelected {
		selected = "Yes"
	}
	return []any{
		selected, string(r.ChangeType), r.Name, r.BSAMemberID, string(r.Type), r.Age,
		r.LastRankApproved, r.Patrol, r.Position, r.Position2, r.RenewalStatus,
		r.ExpirationDate, string(r.MatchType), r.SkipReason, changeSummary(r.Changes),
	}
}

// WriteXLSX writes doc as a workbook with a Staged sheet, one row per staged
// member, and a Summary sheet with the session and counts.
func WriteXLSX(w io.Writer, doc *Document) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if _, err := f.NewSheet(rowsSheet); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to delete default sheet: %w", err)
	}
	if index, err := f.GetSheetIndex(rowsSheet); err == nil {
		f.SetActiveSheet(index)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	wrapStyle, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
	})
	if err != nil {
		return fmt.Errorf("failed to create cell style: %w", err)
	}

	if err := writeRow(f, rowsSheet, 1, toAny(Header)); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(Header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(rowsSheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("failed to set header style: %w", err)
	}
	for i, width := range columnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(rowsSheet, col, col, width); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for i, r := range doc.Rows {
		row := i + 2
		if err := writeRow(f, rowsSheet, row, rowValues(r)); err != nil {
			return err
		}
		cell, _ := excelize.CoordinatesToCellName(len(Header), row)
		if err := f.SetCellStyle(rowsSheet, cell, cell, wrapStyle); err != nil {
			return fmt.Errorf("failed to set cell style: %w", err)
		}
	}
	if len(doc.Rows) > 0 {
		if err := f.AutoFilter(rowsSheet, "A1:"+last, nil); err != nil {
			return fmt.Errorf("failed to set auto filter: %w", err)
		}
	}
	if err := f.SetPanes(rowsSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return fmt.Errorf("failed to freeze header: %w", err)
	}

	if err := writeSummary(f, doc, headerStyle); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeSummary(f *excelize.File, doc *Document, labelStyle int) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	pairs := [][]any{
		{"Session", doc.SessionID},
		{"Unit", doc.UnitID},
		{"Status", string(doc.Status)},
		{"Source", doc.Source},
		{"Exported", doc.ExportedAt.Format("2006-01-02 15:04:05 MST")},
		{"Total", doc.Counts.Total},
		{"Creates", doc.Counts.Creates},
		{"Updates", doc.Counts.Updates},
		{"Skips", doc.Counts.Skips},
		{"Selected", doc.Counts.Selected},
	}
	for i, p := range pairs {
		if err := writeRow(f, summarySheet, i+1, p); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(summarySheet, "A1", fmt.Sprintf("A%d", len(pairs)), labelStyle); err != nil {
		return fmt.Errorf("failed to set summary style: %w", err)
	}
	return f.SetColWidth(summarySheet, "B", "B", 40)
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d: %w", row, err)
	}
	return nil
}

func toAny(s []string) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}
