package processors

import (
	"sort"

	"github.com/username/tradevault/backend/src/models"
	"github.com/username/tradevault/backend/src/utils"
)

// TradeStats aggregates performance figures over a set of closed trades.
type TradeStats struct {
	TotalTrades       int     `json:"total_trades"`
	WinningTrades     int     `json:"winning_trades"`
	LosingTrades      int     `json:"losing_trades"`
	BreakEvenTrades   int     `json:"break_even_trades"`
	WinRate           float64 `json:"win_rate"` // percentage
	GrossProfit       float64 `json:"gross_profit"`
	GrossLoss         float64 `json:"gross_loss"`
	ProfitFactor      float64 `json:"profit_factor"`
	TotalPNL          float64 `json:"total_pnl"`
	AveragePNL        float64 `json:"average_pnl"`
	BestTrade         float64 `json:"best_trade"`
	WorstTrade        float64 `json:"worst_trade"`
	MaxDrawdown       float64 `json:"max_drawdown"`
	LongestWinStreak  int     `json:"longest_win_streak"`
	LongestLossStreak int     `json:"longest_loss_streak"`
	CurrentStreak     int     `json:"current_streak"` // positive = wins, negative = losses
}

// ComputeStats reduces a user's trades to aggregate statistics. Trades are
// evaluated in date order regardless of input order. ProfitFactor is
// GrossProfit / GrossLoss and reported as zero when there are no losses.
// MaxDrawdown is the largest peak-to-trough drop of the cumulative P&L curve.
func ComputeStats(trades []models.Trade) TradeStats {
	stats := TradeStats{TotalTrades: len(trades)}
	if len(trades) == 0 {
		return stats
	}

	ordered := make([]models.Trade, len(trades))
	copy(ordered, trades)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Date.Before(ordered[j].Date)
	})

	var cumulative, peak, drawdown float64
	var winStreak, lossStreak int
	stats.BestTrade = ordered[0].PNL
	stats.WorstTrade = ordered[0].PNL

	for _, t := range ordered {
		stats.TotalPNL += t.PNL
		if t.PNL > stats.BestTrade {
			stats.BestTrade = t.PNL
		}
		if t.PNL < stats.WorstTrade {
			stats.WorstTrade = t.PNL
		}

		switch {
		case t.PNL > 0:
			stats.WinningTrades++
			stats.GrossProfit += t.PNL
			winStreak++
			lossStreak = 0
		case t.PNL < 0:
			stats.LosingTrades++
			stats.GrossLoss += utils.AbsFloat(t.PNL)
			lossStreak++
			winStreak = 0
		default:
			stats.BreakEvenTrades++
			winStreak = 0
			lossStreak = 0
		}
		if winStreak > stats.LongestWinStreak {
			stats.LongestWinStreak = winStreak
		}
		if lossStreak > stats.LongestLossStreak {
			stats.LongestLossStreak = lossStreak
		}

		cumulative += t.PNL
		if cumulative > peak {
			peak = cumulative
		}
		if dd := peak - cumulative; dd > drawdown {
			drawdown = dd
		}
	}

	stats.WinRate = utils.RoundFloat(float64(stats.WinningTrades)/float64(stats.TotalTrades)*100, 2)
	if stats.GrossLoss > 0 {
		stats.ProfitFactor = utils.RoundFloat(stats.GrossProfit/stats.GrossLoss, 2)
	}
	stats.AveragePNL = utils.RoundFloat(stats.TotalPNL/float64(stats.TotalTrades), 2)
	stats.MaxDrawdown = utils.RoundFloat(drawdown, 2)

	if winStreak > 0 {
		stats.CurrentStreak = winStreak
	} else if lossStreak > 0 {
		stats.CurrentStreak = -lossStreak
	}
	return stats
}
