package processors

import (
	"github.com/username/tradevault/backend/src/models"
)

// TradeTransformer applies a frozen column mapping and the session defaults
// to raw CSV rows, producing candidate trades.
type TradeTransformer interface {
	Transform(rows []models.RawRow, mapping models.ColumnMapping, defaults models.ImportDefaults) []models.Trade
}

// TradeValidator partitions candidate trades into valid trades and per-row
// error records.
type TradeValidator interface {
	Validate(candidates []models.Trade) ([]models.Trade, []models.RowError)
}
