package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// Document is a titled table with an optional key/value summary block
type Document struct {
	Title    string
	Subtitle string
	Summary  [][2]string
	Columns  []string
	Rows     [][]string
}

// Generator renders documents to PDF
type Generator interface {
	Render(ctx context.Context, doc Document) (io.ReadSeeker, error)
}

// Options configures page layout
type Options struct {
	PageSize       string
	Landscape      bool
	FontFamily     string
	FontSize       float64
	TitleFontSize  float64
	HeaderColor    [3]int
	AlternateColor [3]int
	Margin         float64
	Now            func() time.Time
}

// DefaultOptions returns an A4 landscape layout
func DefaultOptions() Options {
	return Options{
		PageSize:       "A4",
		Landscape:      true,
		FontFamily:     "Arial",
		FontSize:       9,
		TitleFontSize:  16,
		HeaderColor:    [3]int{46, 125, 50},
		AlternateColor: [3]int{241, 248, 233},
		Margin:         15,
		Now:            time.Now,
	}
}

type fpdfGenerator struct {
	options Options
}

// NewGenerator creates a gofpdf backed Generator
func NewGenerator(options Options) Generator {
	if options.Now == nil {
		options.Now = time.Now
	}
	return &fpdfGenerator{options: options}
}

func (g *fpdfGenerator) Render(ctx context.Context, doc Document) (io.ReadSeeker, error) {
	orientation := "P"
	if g.options.Landscape {
		orientation = "L"
	}

	p := gofpdf.New(orientation, "mm", g.options.PageSize, "")
	p.SetMargins(g.options.Margin, g.options.Margin, g.options.Margin)
	p.SetAutoPageBreak(true, g.options.Margin)
	p.SetFooterFunc(func() {
		p.SetY(-12)
		p.SetFont(g.options.FontFamily, "I", 8)
		p.SetTextColor(128, 128, 128)
		p.CellFormat(0, 8, fmt.Sprintf("Page %d", p.PageNo()), "", 0, "C", false, 0, "")
	})
	p.AddPage()

	tr := p.UnicodeTranslatorFromDescriptor("")

	p.SetFont(g.options.FontFamily, "B", g.options.TitleFontSize)
	p.CellFormat(0, 10, tr(doc.Title), "", 1, "L", false, 0, "")
	if doc.Subtitle != "" {
		p.SetFont(g.options.FontFamily, "", g.options.FontSize+2)
		p.SetTextColor(90, 90, 90)
		p.CellFormat(0, 7, tr(doc.Subtitle), "", 1, "L", false, 0, "")
	}
	p.SetFont(g.options.FontFamily, "", g.options.FontSize-1)
	p.SetTextColor(128, 128, 128)
	p.CellFormat(0, 6, "Generated: "+g.options.Now().UTC().Format(time.RFC3339), "", 1, "L", false, 0, "")
	p.Ln(4)

	if len(doc.Summary) > 0 {
		p.SetTextColor(0, 0, 0)
		for _, kv := range doc.Summary {
			p.SetFont(g.options.FontFamily, "B", g.options.FontSize)
			p.CellFormat(60, 6, tr(kv[0]), "", 0, "L", false, 0, "")
			p.SetFont(g.options.FontFamily, "", g.options.FontSize)
			p.CellFormat(0, 6, tr(kv[1]), "", 1, "L", false, 0, "")
		}
		p.Ln(4)
	}

	if len(doc.Columns) > 0 {
		g.writeTable(p, tr, doc)
	}

	if err := p.Error(); err != nil {
		return nil, fmt.Errorf("failed to render pdf: %w", err)
	}

	var buf bytes.Buffer
	if err := p.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to write pdf: %w", err)
	}
	return bytes.NewReader(buf.Bytes()), nil
}

func (g *fpdfGenerator) writeTable(p *gofpdf.Fpdf, tr func(string) string, doc Document) {
	pageWidth, _ := p.GetPageSize()
	width := (pageWidth - 2*g.options.Margin) / float64(len(doc.Columns))

	header := func() {
		p.SetFont(g.options.FontFamily, "B", g.options.FontSize)
		p.SetFillColor(g.options.HeaderColor[0], g.options.HeaderColor[1], g.options.HeaderColor[2])
		p.SetTextColor(255, 255, 255)
		for _, col := range doc.Columns {
			p.CellFormat(width, 7, tr(col), "1", 0, "C", true, 0, "")
		}
		p.Ln(-1)
	}
	header()

	p.SetFont(g.options.FontFamily, "", g.options.FontSize)
	p.SetTextColor(0, 0, 0)
	_, pageHeight := p.GetPageSize()
	for i, row := range doc.Rows {
		if p.GetY()+6 > pageHeight-g.options.Margin-10 {
			p.AddPage()
			header()
			p.SetFont(g.options.FontFamily, "", g.options.FontSize)
			p.SetTextColor(0, 0, 0)
		}
		fill := i%2 == 1
		if fill {
			p.SetFillColor(g.options.AlternateColor[0], g.options.AlternateColor[1], g.options.AlternateColor[2])
		}
		for j := range doc.Columns {
			cell := ""
			if j < len(row) {
				cell = row[j]
			}
			p.CellFormat(width, 6, tr(cell), "1", 0, "L", fill, 0, "")
		}
		p.Ln(-1)
	}
}
