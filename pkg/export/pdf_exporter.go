package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

const pdfTableWidth = 277.0

// PDFExporter renders datasets into a landscape A4 table.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates a PDF document with the dataset title, subtitles, table body
// and summary line.
func (e *PDFExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Columns) == 0 {
		return nil, fmt.Errorf("pdf requires at least one column")
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	if data.Title != "" {
		pdf.SetFont("Helvetica", "B", 16)
		pdf.CellFormat(0, 10, tr(data.Title), "", 1, "C", false, 0, "")
	}
	if len(data.Subtitles) > 0 {
		pdf.SetFont("Helvetica", "", 11)
		for _, line := range data.Subtitles {
			pdf.CellFormat(0, 7, tr(line), "", 1, "C", false, 0, "")
		}
		pdf.Ln(4)
	}

	widths := columnWidths(data.Columns)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	for i, column := range data.Columns {
		pdf.CellFormat(widths[i], 8, tr(column.Header), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	for _, row := range data.Rows {
		for i, column := range data.Columns {
			pdf.CellFormat(widths[i], 7, tr(row[column.Key]), "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	if data.Summary != "" {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(0, 8, tr(data.Summary), "", 1, "", false, 0, "")
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func columnWidths(columns []Column) []float64 {
	total := 0.0
	for _, column := range columns {
		total += weight(column)
	}
	widths := make([]float64, len(columns))
	for i, column := range columns {
		widths[i] = pdfTableWidth * weight(column) / total
	}
	return widths
}

func weight(column Column) float64 {
	if column.Weight <= 0 {
		return 1
	}
	return column.Weight
}
