package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

const SheetName = "Records"

// Headers holds the column titles per language; English is the fallback.
var Headers = map[string][]string{
	"en": {"Client", "Vessel", "Date and time", "Details", "Photo count", "Photo links"},
	"es": {"Nombre de Cliente", "Embarcación", "Fecha y Hora", "Detalle", "Cantidad de Fotos", "Enlaces a Fotos"},
}

var columnWidths = []float64{28, 24, 22, 60, 16, 80}

func headersFor(lang string) []string {
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	if h, ok := Headers[lang]; ok {
		return h
	}
	return Headers["en"]
}

// Workbook lays rows out on a single sheet with a bold header line.
// The caller owns the returned file and must Close it.
func Workbook(rows []Row, lang string) (*excelize.File, error) {
	f := excelize.NewFile()
	fail := func(err error) (*excelize.File, error) {
		_ = f.Close()
		return nil, err
	}

	if _, err := f.NewSheet(SheetName); err != nil {
		return fail(fmt.Errorf("failed to create sheet: %w", err))
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fail(fmt.Errorf("failed to drop default sheet: %w", err))
	}
	// indexes shift once the default sheet is gone
	if idx, err := f.GetSheetIndex(SheetName); err == nil && idx >= 0 {
		f.SetActiveSheet(idx)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "#000000", Style: 1},
		},
	})
	if err != nil {
		return fail(fmt.Errorf("failed to create header style: %w", err))
	}

	for i, h := range headersFor(lang) {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(SheetName, cell, h); err != nil {
			return fail(err)
		}
		if err := f.SetCellStyle(SheetName, cell, cell, headerStyle); err != nil {
			return fail(err)
		}
	}

	for r, row := range rows {
		values := []any{
			row.ClientName,
			row.VesselName,
			row.StartDateTime,
			row.Details,
			row.PhotoCount,
			strings.Join(row.Photos, ", "),
		}
		for c, v := range values {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(SheetName, cell, v); err != nil {
				return fail(err)
			}
		}
	}

	for i, w := range columnWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(SheetName, col, col, w); err != nil {
			return fail(err)
		}
	}
	return f, nil
}

// WriteXLSX streams the workbook for rows to w.
func WriteXLSX(w io.Writer, rows []Row, lang string) error {
	f, err := Workbook(rows, lang)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// SaveXLSX writes the workbook for rows to path.
func SaveXLSX(path string, rows []Row, lang string) error {
	f, err := Workbook(rows, lang)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}
