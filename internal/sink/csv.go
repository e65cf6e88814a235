package sink

import (
	"context"
	"encoding/csv"
	"os"

	"github.com/rotisserie/eris"

	"github.com/vikabot-systems/leadscout/internal/model"
)

// CSVSink appends leads to a CSV file, writing the header once when the
// file is new or empty.
type CSVSink struct {
	path string
}

// NewCSV returns a CSV sink writing to path.
func NewCSV(path string) *CSVSink {
	return &CSVSink{path: path}
}

func (s *CSVSink) Name() string {
	return "csv"
}

func (s *CSVSink) Append(ctx context.Context, leads []model.Lead) error {
	if len(leads) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return eris.Wrap(err, "csv sink")
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return eris.Wrapf(err, "csv sink: open %s", s.path)
	}
	defer f.Close() //nolint:errcheck

	info, err := f.Stat()
	if err != nil {
		return eris.Wrap(err, "csv sink: stat")
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(Header); err != nil {
			return eris.Wrap(err, "csv sink: write header")
		}
	}
	for _, lead := range leads {
		if err := w.Write(leadRow(lead)); err != nil {
			return eris.Wrap(err, "csv sink: write row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrap(err, "csv sink: flush")
	}
	return f.Close()
}
