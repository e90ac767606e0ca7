package processors

import (
	"strings"

	"github.com/username/tradevault/backend/src/models"
)

type tradeTransformerImpl struct{}

func NewTradeTransformer() TradeTransformer { return &tradeTransformerImpl{} }

// Transform applies the column mapping and per-field transformers to every
// raw row and computes the signed profit for each candidate. The result is
// fully determined by (rows, mapping, defaults); no side effects occur until
// the commit step.
func (t *tradeTransformerImpl) Transform(rows []models.RawRow, mapping models.ColumnMapping, defaults models.ImportDefaults) []models.Trade {
	candidates := make([]models.Trade, 0, len(rows))
	for _, row := range rows {
		get := func(f models.TargetField) string {
			return row[mapping[f]]
		}

		trade := models.Trade{
			Symbol:    strings.ToUpper(strings.TrimSpace(get(models.FieldSymbol))),
			Date:      ParseTradeDate(get(models.FieldDate)),
			Direction: ParseDirection(get(models.FieldType)),
			Entry:     ParseNumeric(get(models.FieldEntry)),
			Exit:      ParseNumeric(get(models.FieldExit)),
			Size:      ParseNumeric(get(models.FieldSize)),
		}

		if mapping.IsMapped(models.FieldTime) {
			trade.Date = ParseTimeOfDay(trade.Date, get(models.FieldTime))
		}
		if mapping.IsMapped(models.FieldTP) {
			trade.TP = ParseNumeric(get(models.FieldTP))
		}
		if mapping.IsMapped(models.FieldSL) {
			trade.SL = ParseNumeric(get(models.FieldSL))
		}
		if mapping.IsMapped(models.FieldNotes) {
			trade.Notes = strings.TrimSpace(get(models.FieldNotes))
		}

		if mapping.IsMapped(models.FieldMarketType) {
			trade.MarketType = ParseMarketType(get(models.FieldMarketType))
		} else if defaults.MarketType != "" {
			trade.MarketType = ParseMarketType(defaults.MarketType)
		} else {
			trade.MarketType = models.MarketFutures
		}

		// Session defaults apply only when the field was never mapped; a
		// mapped column wins even when its cell fails to parse.
		if mapping.IsMapped(models.FieldCommission) {
			trade.Commission = ParseNumeric(get(models.FieldCommission))
		} else {
			trade.Commission = defaults.Commission
		}
		if mapping.IsMapped(models.FieldTickValue) {
			trade.TickValue = ParseNumeric(get(models.FieldTickValue))
		} else {
			trade.TickValue = defaults.TickValue
		}
		if mapping.IsMapped(models.FieldPipValue) {
			trade.PipValue = ParseNumeric(get(models.FieldPipValue))
		} else {
			trade.PipValue = defaults.PipValue
		}

		trade.PNL = ComputePNL(trade)
		candidates = append(candidates, trade)
	}
	return candidates
}
