package processors

import (
	"strings"

	"github.com/username/tradevault/backend/src/models"
)

// PipSize returns the minimum quoted price increment for a forex/crypto
// symbol. JPY-quoted pairs move in hundredths rather than ten-thousandths.
func PipSize(symbol string) float64 {
	if strings.Contains(strings.ToUpper(symbol), "JPY") {
		return 0.01
	}
	return 0.0001
}

// ComputePNL computes the signed profit of a closed trade from its entry,
// exit, size, commission, direction and market type.
//
// Futures and stocks convert the raw price delta with the per-tick value;
// forex and crypto first divide the delta by the pip size and convert with
// the per-pip value; any other market type applies no per-increment scaling.
func ComputePNL(t models.Trade) float64 {
	direction := 1.0
	if t.Direction == models.DirectionShort {
		direction = -1.0
	}
	delta := t.Exit - t.Entry

	switch t.MarketType {
	case models.MarketFutures, models.MarketStocks:
		return direction*delta*t.TickValue*t.Size - t.Commission*t.Size
	case models.MarketForex, models.MarketCrypto:
		pips := delta / PipSize(t.Symbol)
		return direction*pips*t.PipValue*t.Size - t.Commission*t.Size
	default:
		return direction*delta*t.Size - t.Commission*t.Size
	}
}
