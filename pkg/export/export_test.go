package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Title:     "Students Enrolled in Algorithms",
		Subtitles: []string{"Faculty: Dr. Anand"},
		Columns: []Column{
			{Key: "regd_number", Header: "Registration No", Weight: 1.5},
			{Key: "student_name", Header: "Student Name", Weight: 2.5},
		},
		Rows: []map[string]string{
			{"regd_number": "21CS001", "student_name": "Asha"},
			{"regd_number": "21CS002", "student_name": "Bala, K"},
		},
		Summary: "Total Students Enrolled: 2",
	}
}

func TestCSVExporterRender(t *testing.T) {
	payload, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(payload)), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "Registration No,Student Name", lines[0])
	assert.Equal(t, `21CS002,"Bala, K"`, lines[2])
	assert.Equal(t, "Total Students Enrolled: 2", lines[4])
}

func TestCSVExporterRequiresColumns(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	payload, err := NewPDFExporter().Render(sampleDataset())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(payload, []byte("%PDF")))

	_, err = NewPDFExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestColumnWidthsFillTable(t *testing.T) {
	widths := columnWidths([]Column{{Weight: 1}, {Weight: 3}, {}})
	assert.InDelta(t, pdfTableWidth, widths[0]+widths[1]+widths[2], 0.001)
	assert.InDelta(t, widths[0]*3, widths[1], 0.001)
	assert.Equal(t, FormatPDF.ContentType(), "application/pdf")
	assert.Equal(t, FormatCSV.ContentType(), "text/csv")
}
