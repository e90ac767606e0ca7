package processors

import (
	"github.com/username/tradevault/backend/src/models"
)

// Validation messages shown to the user per rejected row.
const (
	MsgSymbolRequired = "Symbol is required"
	MsgInvalidDate    = "Invalid date format"
	MsgEntryZero      = "Entry price must be greater than zero"
	MsgExitZero       = "Exit price must be greater than zero"
	MsgSizeZero       = "Size must be greater than zero"
	MsgSLAboveLong    = "Stop loss must be below entry price for long trades"
	MsgSLBelowShort   = "Stop loss must be above entry price for short trades"
	MsgTPBelowLong    = "Take profit must be above entry price for long trades"
	MsgTPAboveShort   = "Take profit must be below entry price for short trades"
)

type tradeValidatorImpl struct{}

func NewTradeValidator() TradeValidator { return &tradeValidatorImpl{} }

// Validate checks every business rule on every candidate, accumulating all
// violations rather than failing fast. A row is wholly valid or wholly
// invalid; the reported row number is the 1-based line in the source file,
// header line included.
func (v *tradeValidatorImpl) Validate(candidates []models.Trade) ([]models.Trade, []models.RowError) {
	var valid []models.Trade
	var rowErrors []models.RowError

	for i, c := range candidates {
		var msgs []string

		if c.Symbol == "" {
			msgs = append(msgs, MsgSymbolRequired)
		}
		if c.Date.IsZero() || c.Date.Unix() == 0 {
			msgs = append(msgs, MsgInvalidDate)
		}
		if c.Entry <= 0 {
			msgs = append(msgs, MsgEntryZero)
		}
		if c.Exit <= 0 {
			msgs = append(msgs, MsgExitZero)
		}
		if c.Size <= 0 {
			msgs = append(msgs, MsgSizeZero)
		}

		if c.SL > 0 {
			if c.Direction == models.DirectionLong && c.SL >= c.Entry {
				msgs = append(msgs, MsgSLAboveLong)
			}
			if c.Direction == models.DirectionShort && c.SL <= c.Entry {
				msgs = append(msgs, MsgSLBelowShort)
			}
		}
		if c.TP > 0 {
			if c.Direction == models.DirectionLong && c.TP <= c.Entry {
				msgs = append(msgs, MsgTPBelowLong)
			}
			if c.Direction == models.DirectionShort && c.TP >= c.Entry {
				msgs = append(msgs, MsgTPAboveShort)
			}
		}

		if len(msgs) > 0 {
			// +2 accounts for the header line and 1-based display.
			rowErrors = append(rowErrors, models.RowError{Row: i + 2, Messages: msgs})
			continue
		}
		valid = append(valid, c)
	}

	return valid, rowErrors
}
