package sink

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/vikabot-systems/leadscout/internal/model"
)

const xlsxSheetName = "Leads"

// XLSXSink appends leads to a workbook sheet, creating the file with a
// header row on first use.
type XLSXSink struct {
	path string
}

// NewXLSX returns an XLSX sink writing to path.
func NewXLSX(path string) *XLSXSink {
	return &XLSXSink{path: path}
}

func (s *XLSXSink) Name() string {
	return "xlsx"
}

func (s *XLSXSink) Append(ctx context.Context, leads []model.Lead) error {
	if len(leads) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return eris.Wrap(err, "xlsx sink")
	}

	file, sheet, err := s.open()
	if err != nil {
		return err
	}

	for _, lead := range leads {
		row := sheet.AddRow()
		for _, cell := range leadRow(lead) {
			row.AddCell().SetString(cell)
		}
	}

	if err := file.Save(s.path); err != nil {
		return eris.Wrapf(err, "xlsx sink: save %s", s.path)
	}
	return nil
}

// open loads the existing workbook or starts a fresh one with the header.
func (s *XLSXSink) open() (*xlsx.File, *xlsx.Sheet, error) {
	if _, err := os.Stat(s.path); err == nil {
		file, err := xlsx.OpenFile(s.path)
		if err != nil {
			return nil, nil, eris.Wrapf(err, "xlsx sink: open %s", s.path)
		}
		if sheet, ok := file.Sheet[xlsxSheetName]; ok {
			return file, sheet, nil
		}
		sheet, err := file.AddSheet(xlsxSheetName)
		if err != nil {
			return nil, nil, eris.Wrap(err, "xlsx sink: add sheet")
		}
		writeHeader(sheet)
		return file, sheet, nil
	}

	file := xlsx.NewFile()
	sheet, err := file.AddSheet(xlsxSheetName)
	if err != nil {
		return nil, nil, eris.Wrap(err, "xlsx sink: add sheet")
	}
	writeHeader(sheet)
	return file, sheet, nil
}

func writeHeader(sheet *xlsx.Sheet) {
	row := sheet.AddRow()
	for _, h := range Header {
		row.AddCell().SetString(h)
	}
}
