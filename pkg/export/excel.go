package export

import (
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// ExcelExporter writes statement rows to a single styled worksheet
type ExcelExporter struct {
	file    *excelize.File
	options ExcelOptions
	rows    int
	widths  map[int]float64
	dataID  int
	dateID  int
}

// ExcelOptions configures Excel export behavior
type ExcelOptions struct {
	SheetName    string
	FreezeHeader bool
	AutoFilter   bool
	HeaderStyle  *ExcelStyleConfig
	DataStyle    *ExcelStyleConfig
}

// ExcelStyleConfig defines style for cells
type ExcelStyleConfig struct {
	FontBold  bool
	FontSize  int
	FontColor string
	FillColor string
	Alignment string
	Border    bool
}

// DefaultExcelOptions returns default Excel export options
func DefaultExcelOptions() ExcelOptions {
	return ExcelOptions{
		SheetName:    "Statement",
		FreezeHeader: true,
		AutoFilter:   true,
		HeaderStyle: &ExcelStyleConfig{
			FontBold:  true,
			FontSize:  11,
			FillColor: "2E7D32",
			FontColor: "FFFFFF",
			Alignment: "center",
			Border:    true,
		},
		DataStyle: &ExcelStyleConfig{
			FontSize:  11,
			Alignment: "left",
			Border:    true,
		},
	}
}

func NewExcelExporter(options ExcelOptions) (*ExcelExporter, error) {
	file := excelize.NewFile()
	if err := file.SetSheetName("Sheet1", options.SheetName); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}
	e := &ExcelExporter{file: file, options: options, widths: make(map[int]float64)}

	if options.DataStyle != nil {
		id, err := e.createStyle(options.DataStyle, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to create data style: %w", err)
		}
		e.dataID = id
		if e.dateID, err = e.createStyle(options.DataStyle, 22); err != nil {
			return nil, fmt.Errorf("failed to create date style: %w", err)
		}
	}
	return e, nil
}

// WriteHeader writes the header row with styling
func (e *ExcelExporter) WriteHeader(columns []string) error {
	sheet := e.options.SheetName
	headerID := 0
	if e.options.HeaderStyle != nil {
		id, err := e.createStyle(e.options.HeaderStyle, 0)
		if err != nil {
			return fmt.Errorf("failed to create header style: %w", err)
		}
		headerID = id
	}

	for i, col := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := e.file.SetCellValue(sheet, cell, col); err != nil {
			return err
		}
		if headerID > 0 {
			e.file.SetCellStyle(sheet, cell, cell, headerID)
		}
		e.track(i, col)
	}
	e.rows = 1

	if e.options.FreezeHeader {
		e.file.SetPanes(sheet, &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		})
	}
	if e.options.AutoFilter && len(columns) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(columns), 1)
		e.file.AutoFilter(sheet, "A1:"+last, nil)
	}
	return nil
}

// WriteRows appends data rows below the header
func (e *ExcelExporter) WriteRows(rows [][]interface{}) error {
	sheet := e.options.SheetName
	for _, row := range rows {
		e.rows++
		for i, val := range row {
			cell, _ := excelize.CoordinatesToCellName(i+1, e.rows)
			if err := e.setCellValue(sheet, cell, val); err != nil {
				return fmt.Errorf("failed to set cell value: %w", err)
			}
			e.track(i, val)
		}
	}
	return nil
}

// WriteTo applies column widths and writes the workbook
func (e *ExcelExporter) WriteTo(w io.Writer) (int64, error) {
	for i, width := range e.widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if width < 10 {
			width = 10
		}
		if width > 50 {
			width = 50
		}
		e.file.SetColWidth(e.options.SheetName, col, col, width)
	}
	return e.file.WriteTo(w)
}

func (e *ExcelExporter) Close() error {
	return e.file.Close()
}

func (e *ExcelExporter) createStyle(config *ExcelStyleConfig, numFmt int) (int, error) {
	style := &excelize.Style{
		Font:   &excelize.Font{Bold: config.FontBold, Size: float64(config.FontSize), Color: config.FontColor},
		NumFmt: numFmt,
	}
	if config.FillColor != "" {
		style.Fill = excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{config.FillColor}}
	}
	if config.Alignment != "" {
		style.Alignment = &excelize.Alignment{Horizontal: config.Alignment}
	}
	if config.Border {
		style.Border = []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		}
	}
	return e.file.NewStyle(style)
}

// setCellValue keeps amounts as exact strings and timestamps as dates
func (e *ExcelExporter) setCellValue(sheet, cell string, val interface{}) error {
	styleID := e.dataID
	var err error
	switch v := val.(type) {
	case nil:
		err = e.file.SetCellValue(sheet, cell, "")
	case decimal.Decimal:
		err = e.file.SetCellValue(sheet, cell, v.String())
	case time.Time:
		if v.IsZero() {
			err = e.file.SetCellValue(sheet, cell, "")
		} else {
			err = e.file.SetCellValue(sheet, cell, v.UTC())
			styleID = e.dateID
		}
	case *time.Time:
		if v == nil || v.IsZero() {
			err = e.file.SetCellValue(sheet, cell, "")
		} else {
			err = e.file.SetCellValue(sheet, cell, v.UTC())
			styleID = e.dateID
		}
	default:
		err = e.file.SetCellValue(sheet, cell, v)
	}
	if err != nil {
		return err
	}
	if styleID > 0 {
		return e.file.SetCellStyle(sheet, cell, cell, styleID)
	}
	return nil
}

// track estimates the display width of a cell value
func (e *ExcelExporter) track(col int, val interface{}) {
	if val == nil {
		return
	}
	width := float64(len(fmt.Sprintf("%v", val))) * 1.2
	if width > e.widths[col] {
		e.widths[col] = width
	}
}
