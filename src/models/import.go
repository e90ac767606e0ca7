package models

// TargetField identifies one of the fixed trade attributes a source CSV
// column may be mapped onto.
type TargetField string

const (
	FieldSymbol     TargetField = "symbol"
	FieldDate       TargetField = "date"
	FieldTime       TargetField = "time"
	FieldType       TargetField = "type"
	FieldEntry      TargetField = "entry"
	FieldExit       TargetField = "exit"
	FieldSize       TargetField = "size"
	FieldTP         TargetField = "tp"
	FieldSL         TargetField = "sl"
	FieldMarketType TargetField = "marketType"
	FieldCommission TargetField = "commission"
	FieldTickValue  TargetField = "tickValue"
	FieldPipValue   TargetField = "pipValue"
	FieldNotes      TargetField = "notes"
)

// AllTargetFields lists every mappable field in display order.
var AllTargetFields = []TargetField{
	FieldSymbol, FieldDate, FieldTime, FieldType, FieldEntry, FieldExit,
	FieldSize, FieldTP, FieldSL, FieldMarketType, FieldCommission,
	FieldTickValue, FieldPipValue, FieldNotes,
}

// RequiredTargetFields must all be mapped before the transform step runs.
var RequiredTargetFields = []TargetField{
	FieldSymbol, FieldDate, FieldType, FieldEntry, FieldExit, FieldSize,
}

// RawRow is one data line of the uploaded CSV keyed by header name.
// Immutable once parsed.
type RawRow map[string]string

// ColumnMapping maps target fields to source column names. A field absent
// from the map (or mapped to "") is unmapped.
type ColumnMapping map[TargetField]string

// IsMapped reports whether the given field is mapped to a source column.
func (m ColumnMapping) IsMapped(f TargetField) bool {
	return m[f] != ""
}

// MissingRequired returns the required fields that are still unmapped.
func (m ColumnMapping) MissingRequired() []TargetField {
	var missing []TargetField
	for _, f := range RequiredTargetFields {
		if !m.IsMapped(f) {
			missing = append(missing, f)
		}
	}
	return missing
}

// Complete reports whether all required fields are mapped.
func (m ColumnMapping) Complete() bool {
	return len(m.MissingRequired()) == 0
}

// ImportDefaults holds the session defaults applied to unmapped numeric
// fields during the transform pass.
type ImportDefaults struct {
	MarketType string  `json:"market_type"`
	TickValue  float64 `json:"tick_value"`
	PipValue   float64 `json:"pip_value"`
	Commission float64 `json:"commission"`
}

// RowError records every rule violation for one rejected row. Row is the
// 1-based display line number in the source file (header line included).
type RowError struct {
	Row      int      `json:"row"`
	Messages []string `json:"messages"`
}

// ImportSummary is the valid/invalid partition reported after validation.
type ImportSummary struct {
	TotalRows    int        `json:"total_rows"`
	ValidCount   int        `json:"valid_count"`
	InvalidCount int        `json:"invalid_count"`
	TotalPNL     float64    `json:"total_pnl"`
	Errors       []RowError `json:"errors"`
}
