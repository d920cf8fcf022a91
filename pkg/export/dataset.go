package export

// Format names a rendered export type.
type Format string

// Supported formats.
const (
	FormatCSV Format = "csv"
	FormatPDF Format = "pdf"
)

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	switch f {
	case FormatPDF:
		return "application/pdf"
	default:
		return "text/csv"
	}
}

// Column is one exported field. Weight sizes the column in PDF output.
type Column struct {
	Key    string
	Header string
	Weight float64
}

// Dataset defines tabular export content. Rows are keyed by Column.Key.
type Dataset struct {
	Title     string
	Subtitles []string
	Columns   []Column
	Rows      []map[string]string
	Summary   string
}

// Headers returns the column headers in order.
func (d Dataset) Headers() []string {
	headers := make([]string, len(d.Columns))
	for i, column := range d.Columns {
		headers[i] = column.Header
	}
	return headers
}
