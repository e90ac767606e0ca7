package parsers

import (
	"io"

	"github.com/username/tradevault/backend/src/models"
)

// CSVParser defines the interface for tokenizing uploaded CSV content into
// header-keyed raw rows.
type CSVParser interface {
	Parse(file io.Reader) (headers []string, rows []models.RawRow, err error)
}
