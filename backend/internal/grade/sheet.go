package grade

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Sheet layout: row 1 is a header, data starts on row 2.
// A=id_number  B=name  C=cw1  D=midterm  E=cw2  F=final  (G=total, H=average on export)
const sheetName = "Grades"

var sheetHeader = []string{"ID Number", "Name", "CW1 (10)", "Midterm (30)", "CW2 (10)", "Final (60)"}

// componentColumn is the zero-based column index of each component.
var componentColumn = map[Component]int{CW1: 2, Midterm: 3, CW2: 4, Final: 5}

// ParseSheet reads the first worksheet of an .xlsx workbook into rows.
// Fully blank rows are skipped. A row with scores but no id_number is kept
// with an empty StudentKey so the import rejects it. Blank component cells
// are left unset; non-numeric ones are recorded in Row.Invalid.
func ParseSheet(r io.Reader) ([]Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	cells, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}

	var rows []Row
	for i, cols := range cells {
		if i == 0 {
			continue
		}

		key := strings.TrimSpace(cell(cols, 0))
		if key == "" && blankScores(cols) {
			continue
		}

		row := Row{Line: i + 1, StudentKey: key}
		for _, c := range Components {
			raw := strings.TrimSpace(cell(cols, componentColumn[c]))
			if raw == "" {
				continue
			}
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				if row.Invalid == nil {
					row.Invalid = make(map[Component]string)
				}
				row.Invalid[c] = raw
				continue
			}
			row.Scores.Set(c, v)
		}
		rows = append(rows, row)
	}

	return rows, nil
}

func blankScores(cols []string) bool {
	for _, c := range Components {
		if strings.TrimSpace(cell(cols, componentColumn[c])) != "" {
			return false
		}
	}
	return true
}

func cell(cols []string, idx int) string {
	if idx < len(cols) {
		return cols[idx]
	}
	return ""
}

// SheetLine is one data row of a generated workbook.
type SheetLine struct {
	IDNumber string
	Name     string
	Scores   Scores
	Summary  *Summary // nil on templates
}

// BuildSheet renders lines into a new workbook. With summaries the sheet
// gains Total and Average columns.
func BuildSheet(lines []SheetLine, withSummary bool) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		f.Close()
		return nil, err
	}

	header := sheetHeader
	if withSummary {
		header = append(append([]string{}, sheetHeader...), "Total", "Average")
	}
	for i, title := range header {
		name, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, name, title)
	}
	f.SetColWidth(sheetName, "A", "B", 22)

	for i, line := range lines {
		rowNum := i + 2
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", rowNum), line.IDNumber)
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", rowNum), line.Name)

		line.Scores.Present(func(c Component, v float64) {
			name, _ := excelize.CoordinatesToCellName(componentColumn[c]+1, rowNum)
			f.SetCellValue(sheetName, name, v)
		})

		if withSummary && line.Summary != nil {
			f.SetCellValue(sheetName, fmt.Sprintf("G%d", rowNum), line.Summary.Total)
			f.SetCellValue(sheetName, fmt.Sprintf("H%d", rowNum), line.Summary.Average)
		}
	}

	return f, nil
}
