package models

import "time"

// Trade direction values.
const (
	DirectionLong  = "long"
	DirectionShort = "short"
)

// Market type values.
const (
	MarketForex   = "forex"
	MarketFutures = "futures"
	MarketStocks  = "stocks"
	MarketCrypto  = "crypto"
	MarketOptions = "options"
)

// Trade is a single closed trade belonging to an account.
type Trade struct {
	ID         string    `json:"id"`
	AccountID  string    `json:"account_id,omitempty"`
	Symbol     string    `json:"symbol"`
	Date       time.Time `json:"date"`
	Direction  string    `json:"direction"`   // "long" or "short"
	MarketType string    `json:"market_type"` // forex, futures, stocks, crypto, options
	Entry      float64   `json:"entry"`
	Exit       float64   `json:"exit"`
	Size       float64   `json:"size"`
	TP         float64   `json:"tp,omitempty"`
	SL         float64   `json:"sl,omitempty"`
	Commission float64   `json:"commission"`
	TickValue  float64   `json:"tick_value"`
	PipValue   float64   `json:"pip_value"`
	PNL        float64   `json:"pnl"`
	Notes      string    `json:"notes,omitempty"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
}

// Account is a trading account owning an ordered list of trades and a balance.
type Account struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	Name      string    `json:"name"`
	Broker    string    `json:"broker"`
	Balance   float64   `json:"balance"`
	Trades    []Trade   `json:"trades"`
	CreatedAt time.Time `json:"created_at"`
}
