package advisor

import (
	"context"
	"fmt"
	"strings"

	"github.com/quantoshi/hedgefolio/internal/backtest"
	"github.com/quantoshi/hedgefolio/internal/core"
)

const reviewSystemPrompt = `You are a portfolio analyst reviewing the result of a hedged leveraged-ETF strategy backtest. The strategy holds a 2x leveraged index ETF and shorts index futures from a cash reserve when the index trades below its moving average. Comment on the return, the drawdown, and whether the hedge helped or hurt. Be concrete and concise; answer in under 200 words.`

// Review asks the provider for a short written assessment of a finished run.
func Review(ctx context.Context, p Provider, result *backtest.Result) (string, error) {
	resp, err := p.Chat(ctx, ChatRequest{
		SystemPrompt: reviewSystemPrompt,
		Messages: []Message{
			{Role: "user", Content: reviewPrompt(result)},
		},
		MaxTokens:   1024,
		Temperature: 0.3,
	})
	if err != nil {
		return "", core.WrapError(core.ErrAdvisorFailed, err)
	}
	if strings.TrimSpace(resp.Content) == "" {
		return "", core.WrapError(core.ErrAdvisorFailed,
			fmt.Errorf("%s returned an empty review", p.Name()))
	}
	return resp.Content, nil
}

// reviewPrompt flattens the run summary into prompt text.
func reviewPrompt(result *backtest.Result) string {
	s := result.Summary
	p := result.Params

	var b strings.Builder
	fmt.Fprintf(&b, "Backtest %s to %s (%d trading days)\n",
		s.StartDate.Format(core.DateLayout), s.EndDate.Format(core.DateLayout), s.TradingDays)
	fmt.Fprintf(&b, "Parameters: target ratio %.0f%%, MA period %d, margin per contract %.0f, safety %.1fx, rebalance %v\n",
		p.TargetRatio*100, p.MAPeriod, p.MarginPerContract, p.SafetyMultiplier, p.EnableRebalance)
	fmt.Fprintf(&b, "Initial capital: %.0f\n", s.InitialCapital)
	fmt.Fprintf(&b, "Final equity: %.0f (%+.2f%%)\n", s.FinalEquity, s.TotalReturnPercent)
	fmt.Fprintf(&b, "Max drawdown: %.2f%%\n", s.MaxDrawdownPercent)
	fmt.Fprintf(&b, "Hedge round-trips: %d, total hedge P&L: %.0f\n", s.HedgeTrades, s.TotalHedgePnL)
	fmt.Fprintf(&b, "Rebalances: %d\n", s.Rebalances)
	fmt.Fprintf(&b, "Final position: %d lots, reserve %.0f\n", s.FinalLots, s.FinalReserve)
	return b.String()
}
