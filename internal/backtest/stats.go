package backtest

// Summarize reduces a finished run to summary statistics. It is pure
// arithmetic over the daily trajectory and trade log; no separate
// finalization state exists.
func Summarize(params Params, daily []DailyResult, logs []TradeLogEntry, maxDrawdownFraction float64) Summary {
	if len(daily) == 0 {
		return Summary{InitialCapital: params.InitialCapital}
	}

	last := daily[len(daily)-1]

	var hedgeTrades, rebalances int
	var totalHedgePnL float64
	for _, entry := range logs {
		switch entry.Kind {
		case EventHedgeClose:
			hedgeTrades++
			totalHedgePnL += entry.RealizedPnL
		case EventRebalance:
			rebalances++
		}
	}

	totalReturn := last.TotalEquity - params.InitialCapital

	return Summary{
		StartDate:          daily[0].Date,
		EndDate:            last.Date,
		TradingDays:        len(daily),
		InitialCapital:     params.InitialCapital,
		FinalEquity:        last.TotalEquity,
		TotalReturn:        totalReturn,
		TotalReturnPercent: totalReturn / params.InitialCapital * 100,
		MaxDrawdownPercent: maxDrawdownFraction * 100,
		TotalHedgePnL:      totalHedgePnL,
		HedgeTrades:        hedgeTrades,
		Rebalances:         rebalances,
		FinalLots:          last.Lots,
		FinalReserve:       last.HedgeReserve,
	}
}
