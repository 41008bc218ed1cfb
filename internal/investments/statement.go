package investments

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"farmlink/platform/platform-backend/pkg/export"
	"farmlink/platform/platform-backend/pkg/pdf"
)

func renderCSV(columns []string, rows [][]interface{}) ([]byte, error) {
	var buf bytes.Buffer
	e := export.NewCSVExporter(&buf, export.DefaultCSVOptions())
	if err := e.WriteHeader(columns); err != nil {
		return nil, err
	}
	if err := e.WriteRows(rows); err != nil {
		return nil, err
	}
	if err := e.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func renderXLSX(columns []string, rows [][]interface{}) ([]byte, error) {
	e, err := export.NewExcelExporter(export.DefaultExcelOptions())
	if err != nil {
		return nil, err
	}
	defer e.Close()

	if err := e.WriteHeader(columns); err != nil {
		return nil, err
	}
	if err := e.WriteRows(rows); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := e.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *investmentService) renderPDF(ctx context.Context, positions []Position, rows [][]interface{}) ([]byte, error) {
	if s.pdf == nil {
		return nil, errNoGenerator
	}

	invested, expected, claimable, claimed := decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero
	for _, p := range positions {
		invested = invested.Add(p.Amount)
		expected = expected.Add(p.ExpectedReturn)
		claimable = claimable.Add(p.Claimable)
		claimed = claimed.Add(p.ClaimedAmount)
	}

	doc := pdf.Document{
		Title:    "FarmLink investment statement",
		Subtitle: fmt.Sprintf("%d investments", len(positions)),
		Summary: [][2]string{
			{"Total invested", invested.String()},
			{"Expected returns", expected.String()},
			{"Available to claim", claimable.String()},
			{"Already claimed", claimed.String()},
		},
		Columns: statementColumns,
		Rows:    make([][]string, len(rows)),
	}
	for i, row := range rows {
		cells := make([]string, len(row))
		for j, v := range row {
			switch t := v.(type) {
			case time.Time:
				cells[j] = t.UTC().Format("2006-01-02")
			default:
				cells[j] = fmt.Sprint(t)
			}
		}
		doc.Rows[i] = cells
	}

	r, err := s.pdf.Render(ctx, doc)
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}
