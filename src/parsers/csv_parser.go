package parsers

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/username/tradevault/backend/src/logger"
	"github.com/username/tradevault/backend/src/models"
)

// ErrMalformedInput is returned when the upload yields no usable header line.
var ErrMalformedInput = errors.New("malformed CSV input")

type csvParserImpl struct{}

// NewCSVParser returns the default header-mapped CSV tokenizer.
func NewCSVParser() CSVParser {
	return &csvParserImpl{}
}

// Parse tokenizes the uploaded content. The first non-empty line supplies
// the header names; every later line becomes a RawRow keyed by header name.
// Quoted fields, doubled-quote escapes and quoted commas are honored, every
// token is trimmed, short records are padded with empty strings and blank
// lines are discarded.
func (p *csvParserImpl) Parse(file io.Reader) ([]string, []models.RawRow, error) {
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1 // Allow variable number of fields per record
	reader.TrimLeadingSpace = true

	headerRec, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: failed to read CSV header: %v", ErrMalformedInput, err)
	}

	headers := make([]string, len(headerRec))
	nonEmpty := 0
	for i, h := range headerRec {
		headers[i] = strings.TrimSpace(h)
		if headers[i] != "" {
			nonEmpty++
		}
	}
	if nonEmpty == 0 {
		return nil, nil, fmt.Errorf("%w: header line has no column names", ErrMalformedInput)
	}

	var rows []models.RawRow
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			logger.L.Warn("Skipping unreadable CSV record", "error", err)
			continue
		}

		row := make(models.RawRow, len(headers))
		for i, h := range headers {
			if h == "" {
				continue
			}
			if i < len(record) {
				row[h] = strings.TrimSpace(record[i])
			} else {
				// Missing trailing fields map to the empty string.
				row[h] = ""
			}
		}
		rows = append(rows, row)
	}

	return headers, rows, nil
}
