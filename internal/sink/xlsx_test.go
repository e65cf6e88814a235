package sink

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/vikabot-systems/leadscout/internal/model"
)

func TestXLSXSinkAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leads.xlsx")
	s := NewXLSX(path)

	require.NoError(t, s.Append(context.Background(), []model.Lead{testLead("a")}))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	sheet, ok := f.Sheet[xlsxSheetName]
	require.True(t, ok)
	require.Len(t, sheet.Rows, 2)
	assert.Equal(t, "Date Added", sheet.Rows[0].Cells[0].String())
	assert.Equal(t, "Ahmed Hassan", sheet.Rows[1].Cells[1].String())
	assert.Len(t, sheet.Rows[0].Cells, len(Header))
}

func TestXLSXSinkAppendsToExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leads.xlsx")
	s := NewXLSX(path)

	require.NoError(t, s.Append(context.Background(), []model.Lead{testLead("a")}))
	require.NoError(t, s.Append(context.Background(), []model.Lead{testLead("b"), testLead("c")}))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	sheet := f.Sheet[xlsxSheetName]
	// One header plus three lead rows; no second header.
	require.Len(t, sheet.Rows, 4)
	assert.Equal(t, "https://linkedin.com/in/b", sheet.Rows[2].Cells[7].String())
}

func TestXLSXSinkEmptyBatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leads.xlsx")
	require.NoError(t, NewXLSX(path).Append(context.Background(), nil))
	_, err := xlsx.OpenFile(path)
	assert.Error(t, err)
}
