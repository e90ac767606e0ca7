package processors

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/tradevault/backend/src/models"
)

func validCandidate() models.Trade {
	return models.Trade{
		Symbol:     "AAPL",
		Date:       time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		Direction:  models.DirectionLong,
		MarketType: models.MarketStocks,
		Entry:      100,
		Exit:       110,
		Size:       10,
	}
}

func TestValidateAcceptsCleanTrade(t *testing.T) {
	t.Parallel()

	valid, rowErrors := NewTradeValidator().Validate([]models.Trade{validCandidate()})
	assert.Len(t, valid, 1)
	assert.Empty(t, rowErrors)
}

func TestValidateFieldRules(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*models.Trade)
		wantMsg string
	}{
		{"missing symbol", func(c *models.Trade) { c.Symbol = "" }, MsgSymbolRequired},
		{"zero date", func(c *models.Trade) { c.Date = time.Time{} }, MsgInvalidDate},
		{"epoch date", func(c *models.Trade) { c.Date = time.Unix(0, 0) }, MsgInvalidDate},
		{"zero entry", func(c *models.Trade) { c.Entry = 0 }, MsgEntryZero},
		{"negative entry", func(c *models.Trade) { c.Entry = -5 }, MsgEntryZero},
		{"zero exit", func(c *models.Trade) { c.Exit = 0 }, MsgExitZero},
		{"zero size", func(c *models.Trade) { c.Size = 0 }, MsgSizeZero},
		{"long SL above entry", func(c *models.Trade) { c.SL = 105 }, MsgSLAboveLong},
		{"long SL at entry", func(c *models.Trade) { c.SL = 100 }, MsgSLAboveLong},
		{"long TP below entry", func(c *models.Trade) { c.TP = 95 }, MsgTPBelowLong},
		{
			"short SL below entry",
			func(c *models.Trade) { c.Direction = models.DirectionShort; c.Exit = 90; c.SL = 95 },
			MsgSLBelowShort,
		},
		{
			"short TP above entry",
			func(c *models.Trade) { c.Direction = models.DirectionShort; c.Exit = 90; c.TP = 110 },
			MsgTPAboveShort,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := validCandidate()
			tc.mutate(&c)

			valid, rowErrors := NewTradeValidator().Validate([]models.Trade{c})
			assert.Empty(t, valid)
			require.Len(t, rowErrors, 1)
			assert.Contains(t, rowErrors[0].Messages, tc.wantMsg)
		})
	}
}

// Unset stop loss and take profit never trigger the placement rules.
func TestValidateIgnoresUnsetRiskLevels(t *testing.T) {
	t.Parallel()

	c := validCandidate()
	c.SL = 0
	c.TP = 0

	valid, rowErrors := NewTradeValidator().Validate([]models.Trade{c})
	assert.Len(t, valid, 1)
	assert.Empty(t, rowErrors)
}

// Every violation on a row is reported, not just the first.
func TestValidateAccumulatesAllViolations(t *testing.T) {
	t.Parallel()

	c := models.Trade{Direction: models.DirectionLong}
	_, rowErrors := NewTradeValidator().Validate([]models.Trade{c})

	require.Len(t, rowErrors, 1)
	assert.ElementsMatch(t, []string{
		MsgSymbolRequired, MsgInvalidDate, MsgEntryZero, MsgExitZero, MsgSizeZero,
	}, rowErrors[0].Messages)
}

// Row numbers refer to the source file line, counting the header as line 1.
func TestValidateRowNumbers(t *testing.T) {
	t.Parallel()

	bad := validCandidate()
	bad.Entry = 0
	candidates := []models.Trade{validCandidate(), bad, validCandidate(), bad}

	valid, rowErrors := NewTradeValidator().Validate(candidates)
	assert.Len(t, valid, 2)
	require.Len(t, rowErrors, 2)
	assert.Equal(t, 3, rowErrors[0].Row)
	assert.Equal(t, 5, rowErrors[1].Row)
}

// Same input, same output: validation carries no hidden state.
func TestValidateDeterministic(t *testing.T) {
	t.Parallel()

	bad := validCandidate()
	bad.Size = 0
	candidates := []models.Trade{validCandidate(), bad}

	v := NewTradeValidator()
	valid1, errs1 := v.Validate(candidates)
	valid2, errs2 := v.Validate(candidates)
	assert.Equal(t, valid1, valid2)
	assert.Equal(t, errs1, errs2)
}
