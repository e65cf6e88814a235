package fetcher

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func writeTestXLSX(t *testing.T) string {
	t.Helper()

	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Leads")
	require.NoError(t, err)

	for _, cells := range [][]string{
		{"Name", "Title", "Company"},
		{"Ahmed Hassan", "IT Director", "RAK Ceramics"},
		{"Fatima Al Zaabi", "CTO", "Gulf Cement"},
	} {
		row := sheet.AddRow()
		for _, c := range cells {
			row.AddCell().SetString(c)
		}
	}

	path := filepath.Join(t.TempDir(), "leads.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestReadXLSX(t *testing.T) {
	path := writeTestXLSX(t)

	headerCh := make(chan []string, 1)
	rows, err := ReadXLSX(path, XLSXOptions{SkipRows: 1, HeaderCh: headerCh})
	require.NoError(t, err)

	assert.Equal(t, []string{"Name", "Title", "Company"}, <-headerCh)
	require.Len(t, rows, 2)
	assert.Equal(t, "Ahmed Hassan", rows[0][0])
	assert.Equal(t, "Gulf Cement", rows[1][2])
}

func TestReadXLSX_SheetByName(t *testing.T) {
	path := writeTestXLSX(t)

	rows, err := ReadXLSX(path, XLSXOptions{SheetName: "Leads", SkipRows: 1})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	_, err = ReadXLSX(path, XLSXOptions{SheetName: "Missing"})
	require.Error(t, err)
}

func TestReadXLSX_SheetIndexOutOfRange(t *testing.T) {
	path := writeTestXLSX(t)

	_, err := ReadXLSX(path, XLSXOptions{SheetIndex: 5})
	require.Error(t, err)
}

func TestReadXLSX_MissingFile(t *testing.T) {
	_, err := ReadXLSX(filepath.Join(t.TempDir(), "nope.xlsx"), XLSXOptions{})
	require.Error(t, err)
}

func TestStreamXLSX(t *testing.T) {
	path := writeTestXLSX(t)

	rowCh, errCh := StreamXLSX(context.Background(), path, XLSXOptions{SkipRows: 1})

	var rows [][]string
	for row := range rowCh {
		rows = append(rows, row)
	}
	require.NoError(t, <-errCh)
	assert.Len(t, rows, 2)
}
