package parsers

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/tradevault/backend/src/logger"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	m.Run()
}

func TestParseHeaderMapping(t *testing.T) {
	t.Parallel()

	input := "Symbol,Date,Type,Entry,Exit,Size\nAAPL,01/15/2024,long,100,110,10\n"
	headers, rows, err := NewCSVParser().Parse(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []string{"Symbol", "Date", "Type", "Entry", "Exit", "Size"}, headers)
	require.Len(t, rows, 1)
	assert.Equal(t, "AAPL", rows[0]["Symbol"])
	assert.Equal(t, "01/15/2024", rows[0]["Date"])
	assert.Equal(t, "10", rows[0]["Size"])
}

func TestParseQuotedFields(t *testing.T) {
	t.Parallel()

	input := `Symbol,Notes
ES,"breakout, retest held"
NQ,"she said ""wait"""
`
	_, rows, err := NewCSVParser().Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "breakout, retest held", rows[0]["Notes"])
	assert.Equal(t, `she said "wait"`, rows[1]["Notes"])
}

func TestParseTrimsWhitespace(t *testing.T) {
	t.Parallel()

	input := " Symbol , Entry \n  aapl ,  100.5  \n"
	headers, rows, err := NewCSVParser().Parse(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []string{"Symbol", "Entry"}, headers)
	require.Len(t, rows, 1)
	assert.Equal(t, "aapl", rows[0]["Symbol"])
	assert.Equal(t, "100.5", rows[0]["Entry"])
}

func TestParsePadsShortRecords(t *testing.T) {
	t.Parallel()

	input := "Symbol,Entry,Exit\nAAPL,100\n"
	_, rows, err := NewCSVParser().Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 1)

	assert.Equal(t, "AAPL", rows[0]["Symbol"])
	assert.Equal(t, "100", rows[0]["Entry"])
	exit, present := rows[0]["Exit"]
	assert.True(t, present)
	assert.Equal(t, "", exit)
}

func TestParseSkipsBlankLines(t *testing.T) {
	t.Parallel()

	input := "Symbol,Entry\n\nAAPL,100\n\nMSFT,200\n"
	_, rows, err := NewCSVParser().Parse(strings.NewReader(input))
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestParseEmptyInput(t *testing.T) {
	t.Parallel()

	_, _, err := NewCSVParser().Parse(strings.NewReader(""))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedInput))
}

func TestParseHeaderWithNoColumnNames(t *testing.T) {
	t.Parallel()

	_, _, err := NewCSVParser().Parse(strings.NewReader(" , , \nAAPL,100,110\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedInput))
}

// Tokenizing, re-serializing and tokenizing again yields the same rows.
func TestParseRoundTrip(t *testing.T) {
	t.Parallel()

	input := "Symbol,Notes,Size\nES,\"pullback, then go\",2\nNQ,clean,1\n"
	headers, rows, err := NewCSVParser().Parse(strings.NewReader(input))
	require.NoError(t, err)

	quote := func(s string) string {
		if strings.ContainsAny(s, ",\"") {
			return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
		}
		return s
	}

	var b strings.Builder
	b.WriteString(strings.Join(headers, ","))
	b.WriteString("\n")
	for _, row := range rows {
		fields := make([]string, len(headers))
		for i, h := range headers {
			fields[i] = quote(row[h])
		}
		b.WriteString(strings.Join(fields, ","))
		b.WriteString("\n")
	}

	headers2, rows2, err := NewCSVParser().Parse(strings.NewReader(b.String()))
	require.NoError(t, err)
	assert.Equal(t, headers, headers2)
	assert.Equal(t, rows, rows2)
}

func TestParseHeaderOnly(t *testing.T) {
	t.Parallel()

	headers, rows, err := NewCSVParser().Parse(strings.NewReader("Symbol,Entry\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Symbol", "Entry"}, headers)
	assert.Empty(t, rows)
}
