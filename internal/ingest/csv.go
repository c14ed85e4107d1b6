package ingest

import (
	"context"
	"encoding/csv"
	"io"

	"github.com/rotisserie/eris"
)

// ReadCSV parses a lead export CSV. The first row must be a header with at
// least a name column. Rows without a name are skipped and counted.
func ReadCSV(ctx context.Context, r io.Reader) (*Result, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, eris.New("ingest: empty csv")
	}
	if err != nil {
		return nil, eris.Wrap(err, "ingest: read header")
	}

	cols, err := mapHeader(header)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	for {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "ingest: cancelled")
		}

		row, err := reader.Read()
		if err == io.EOF {
			return res, nil
		}
		if err != nil {
			return nil, eris.Wrap(err, "ingest: read row")
		}

		b := rowToBusiness(cols, row)
		if b.Name == "" {
			res.Skipped++
			continue
		}
		res.Businesses = append(res.Businesses, b)
	}
}
