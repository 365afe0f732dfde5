package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/quantoshi/hedgefolio/internal/advisor"
	"github.com/quantoshi/hedgefolio/internal/advisor/factory"
	"github.com/quantoshi/hedgefolio/internal/backtest"
	"github.com/quantoshi/hedgefolio/internal/config"
	"github.com/quantoshi/hedgefolio/internal/core"
	"github.com/quantoshi/hedgefolio/internal/logger"
	"github.com/quantoshi/hedgefolio/internal/pricesource"
	"github.com/quantoshi/hedgefolio/internal/pricesource/yahoo"
)

var (
	backtestFrom      string
	backtestTo        string
	backtestCSV       string
	backtestCapital   float64
	backtestRatio     float64
	backtestMAPeriod  int
	backtestMargin    float64
	backtestSafety    float64
	backtestRebalance bool
	backtestTrades    bool
	backtestReview    bool
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run a backtest over a historical date range",
	Long:  "Simulate the hedged 80/20 strategy day by day and print the resulting statistics",
	RunE:  runBacktest,
}

func init() {
	backtestCmd.Flags().StringVar(&backtestFrom, "from", "", "Start date YYYY-MM-DD (required)")
	backtestCmd.Flags().StringVar(&backtestTo, "to", "", "End date YYYY-MM-DD (required)")
	backtestCmd.Flags().StringVar(&backtestCSV, "csv", "", "Read prices from a CSV file instead of the configured source")
	backtestCmd.Flags().Float64Var(&backtestCapital, "capital", 0, "Initial capital (default from config)")
	backtestCmd.Flags().Float64Var(&backtestRatio, "ratio", 0, "Target instrument ratio in (0,1)")
	backtestCmd.Flags().IntVar(&backtestMAPeriod, "ma-period", 0, "Moving average period in trading days")
	backtestCmd.Flags().Float64Var(&backtestMargin, "margin", 0, "Margin per futures contract")
	backtestCmd.Flags().Float64Var(&backtestSafety, "safety", 0, "Margin safety multiplier (>= 1)")
	backtestCmd.Flags().BoolVar(&backtestRebalance, "rebalance", true, "Enable monthly rebalancing")
	backtestCmd.Flags().BoolVar(&backtestTrades, "trades", false, "Print the full trade log")
	backtestCmd.Flags().BoolVar(&backtestReview, "review", false, "Ask the configured LLM advisor for a written review")

	backtestCmd.MarkFlagRequired("from")
	backtestCmd.MarkFlagRequired("to")

	rootCmd.AddCommand(backtestCmd)
}

func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
		return cfg, nil
	}
	return config.Defaults(), nil
}

// newProvider builds the price source from config, with --csv overriding.
func newProvider(cfg *config.Config, csvPath string) (pricesource.Provider, error) {
	if csvPath != "" {
		return pricesource.NewCSVSource(csvPath), nil
	}
	switch cfg.PriceSource.Provider {
	case "csv":
		return pricesource.NewCSVSource(cfg.PriceSource.CSVPath), nil
	default:
		return yahoo.New(cfg.PriceSource.IndexSymbol, cfg.PriceSource.InstrumentSymbol)
	}
}

func runBacktest(cmd *cobra.Command, args []string) error {
	log := logger.Must(debug)
	defer log.Sync()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	fromDate, err := time.Parse(core.DateLayout, backtestFrom)
	if err != nil {
		return fmt.Errorf("invalid from date format (expected YYYY-MM-DD): %w", err)
	}
	toDate, err := time.Parse(core.DateLayout, backtestTo)
	if err != nil {
		return fmt.Errorf("invalid to date format (expected YYYY-MM-DD): %w", err)
	}

	params := backtest.Params{
		StartDate:         fromDate,
		EndDate:           toDate,
		InitialCapital:    cfg.Backtest.InitialCapital,
		TargetRatio:       cfg.Backtest.TargetRatio,
		MAPeriod:          cfg.Backtest.MAPeriod,
		MarginPerContract: cfg.Backtest.MarginPerContract,
		SafetyMultiplier:  cfg.Backtest.SafetyMultiplier,
		EnableRebalance:   backtestRebalance && cfg.Backtest.EnableRebalance,
	}
	if backtestCapital > 0 {
		params.InitialCapital = backtestCapital
	}
	if backtestRatio > 0 {
		params.TargetRatio = backtestRatio
	}
	if backtestMAPeriod > 0 {
		params.MAPeriod = backtestMAPeriod
	}
	if backtestMargin > 0 {
		params.MarginPerContract = backtestMargin
	}
	if backtestSafety > 0 {
		params.SafetyMultiplier = backtestSafety
	}

	provider, err := newProvider(cfg, backtestCSV)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
	defer cancel()

	series, err := provider.FetchDaily(ctx, fromDate, toDate)
	if err != nil {
		return fmt.Errorf("fetching prices: %w", err)
	}

	result, err := backtest.New().Run(ctx, series, params)
	if err != nil {
		return fmt.Errorf("running backtest: %w", err)
	}

	printSummary(result)

	if backtestTrades {
		printTrades(result)
	}

	if backtestReview {
		if cfg.LLM.Provider == "" {
			return fmt.Errorf("--review requires an llm provider in the config")
		}
		p, err := factory.New(cfg.LLM)
		if err != nil {
			return err
		}
		review, err := advisor.Review(ctx, p, result)
		if err != nil {
			return fmt.Errorf("advisor review: %w", err)
		}
		fmt.Println("\n=== Advisor Review ===")
		fmt.Println(review)
	}

	return nil
}

func printSummary(result *backtest.Result) {
	s := result.Summary
	fmt.Println("=== Backtest Summary ===")
	fmt.Printf("Period:        %s to %s (%d trading days)\n",
		s.StartDate.Format(core.DateLayout), s.EndDate.Format(core.DateLayout), s.TradingDays)
	fmt.Printf("Capital:       %.0f -> %.0f (%+.2f%%)\n",
		s.InitialCapital, s.FinalEquity, s.TotalReturnPercent)
	fmt.Printf("Max drawdown:  %.2f%%\n", s.MaxDrawdownPercent)
	fmt.Printf("Hedge trades:  %d (total P&L %.0f)\n", s.HedgeTrades, s.TotalHedgePnL)
	fmt.Printf("Rebalances:    %d\n", s.Rebalances)
	fmt.Printf("Final holding: %d lots, reserve %.0f\n", s.FinalLots, s.FinalReserve)
}

func printTrades(result *backtest.Result) {
	fmt.Println("\n=== Trade Log ===")
	for _, e := range result.TradeLogs {
		fmt.Printf("%s  %-11s  %s\n", e.Date.Format(core.DateLayout), e.Kind, e.Description)
	}
}
