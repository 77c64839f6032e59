package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTable() Table {
	return Table{
		Title: "CSC 401",
		Columns: []Column{
			{Key: "name", Title: "Full Name", Width: 3},
			{Key: "id", Title: "ID Number", Width: 2},
			{Key: "note"},
		},
		Rows: []map[string]string{
			{"name": "Ada Obi", "id": "20201234567"},
			{"name": "Chinedu, Eze", "id": "20201234568", "note": "late"},
		},
	}
}

func TestCSVRender(t *testing.T) {
	out, err := CSV{}.Render(sampleTable())
	require.NoError(t, err)
	assert.Equal(t, "Full Name,ID Number,note\nAda Obi,20201234567,\n\"Chinedu, Eze\",20201234568,late\n", string(out))
}

func TestPDFRender(t *testing.T) {
	out, err := PDF{}.Render(sampleTable())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}

func TestRenderRequiresColumns(t *testing.T) {
	_, err := CSV{}.Render(Table{})
	assert.ErrorIs(t, err, ErrNoColumns)
	_, err = PDF{}.Render(Table{})
	assert.ErrorIs(t, err, ErrNoColumns)
}

func TestColumnWidthsFillPage(t *testing.T) {
	widths := columnWidths(sampleTable().Columns)
	sum := 0.0
	for _, w := range widths {
		sum += w
	}
	assert.InDelta(t, pageWidth, sum, 0.0001)
	assert.InDelta(t, widths[0], 1.5*widths[1], 0.0001)
}
