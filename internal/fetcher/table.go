package fetcher

import (
	"bytes"
	"context"
	"strings"

	"github.com/rotisserie/eris"
)

// Format names a tabular payload encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat resolves a configured format name; empty means CSV.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", eris.Errorf("fetcher: unknown format %q", s)
	}
}

// Table is a parsed tabular payload: one header row plus data rows.
type Table struct {
	Header []string
	Rows   [][]string
}

// ReadTable parses a CSV or XLSX payload. The first row is the header.
// An empty payload yields an empty Table without error.
func ReadTable(ctx context.Context, data []byte, format Format) (Table, error) {
	switch format {
	case FormatXLSX:
		rows, err := ReadXLSXBytes(data, XLSXOptions{})
		if err != nil {
			return Table{}, err
		}
		if len(rows) == 0 {
			return Table{}, nil
		}
		return Table{Header: rows[0], Rows: rows[1:]}, nil

	case FormatCSV, "":
		headerCh := make(chan []string, 1)
		rowCh, errCh := StreamCSV(ctx, bytes.NewReader(data), CSVOptions{
			HasHeader:  true,
			HeaderCh:   headerCh,
			LazyQuotes: true,
			TrimSpace:  true,
		})

		var t Table
		for row := range rowCh {
			t.Rows = append(t.Rows, row)
		}
		for err := range errCh {
			if err != nil {
				return Table{}, err
			}
		}
		select {
		case t.Header = <-headerCh:
		default:
		}
		return t, nil

	default:
		return Table{}, eris.Errorf("fetcher: unknown format %q", format)
	}
}
