package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// CSV renders tables as RFC 4180 CSV with a header row.
type CSV struct{}

// ContentType implements Renderer.
func (CSV) ContentType() string { return "text/csv; charset=utf-8" }

// Extension implements Renderer.
func (CSV) Extension() string { return "csv" }

// Render implements Renderer.
func (CSV) Render(t Table) ([]byte, error) {
	if len(t.Columns) == 0 {
		return nil, ErrNoColumns
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(t.titles()); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range t.Rows {
		if err := w.Write(t.cells(row)); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
