package export

import "errors"

// ErrNoColumns is returned when a table has no columns to render.
var ErrNoColumns = errors.New("export: table has no columns")

// Column describes one output column. Width is a PDF weight and ignored by CSV.
type Column struct {
	Key   string
	Title string
	Width float64
}

// Table is the renderer-neutral export payload.
type Table struct {
	Title    string
	Subtitle string
	Columns  []Column
	Rows     []map[string]string
}

// Renderer turns a Table into a file body.
type Renderer interface {
	Render(Table) ([]byte, error)
	ContentType() string
	Extension() string
}

func (t Table) cells(row map[string]string) []string {
	out := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		out[i] = row[col.Key]
	}
	return out
}

func (t Table) titles() []string {
	out := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		out[i] = col.Title
		if out[i] == "" {
			out[i] = col.Key
		}
	}
	return out
}
