package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quantoshi/hedgefolio/internal/scenario"
)

var (
	scenarioBasePrice  float64
	scenarioInstrument float64
	scenarioLots       int
	scenarioCostBasis  float64
	scenarioSpan       int
	scenarioStep       int
)

var scenarioCmd = &cobra.Command{
	Use:   "scenario",
	Short: "Project P&L across a range of index moves",
	Long:  "Print an instantaneous what-if table for the current position across a symmetric range of index point deltas",
	RunE:  runScenario,
}

func init() {
	scenarioCmd.Flags().Float64Var(&scenarioBasePrice, "index", 0, "Current index price (required)")
	scenarioCmd.Flags().Float64Var(&scenarioInstrument, "price", 0, "Current instrument price (required)")
	scenarioCmd.Flags().IntVar(&scenarioLots, "lots", 0, "Held lots")
	scenarioCmd.Flags().Float64Var(&scenarioCostBasis, "cost", 0, "Cost basis per share")
	scenarioCmd.Flags().IntVar(&scenarioSpan, "span", scenario.DefaultSpan, "Projection span in index points")
	scenarioCmd.Flags().IntVar(&scenarioStep, "step", scenario.DefaultStep, "Projection step in index points")

	scenarioCmd.MarkFlagRequired("index")
	scenarioCmd.MarkFlagRequired("price")

	rootCmd.AddCommand(scenarioCmd)
}

func runScenario(cmd *cobra.Command, args []string) error {
	rows, err := scenario.ProjectRange(scenario.Input{
		BaseIndexPrice:  scenarioBasePrice,
		InstrumentPrice: scenarioInstrument,
		Lots:            scenarioLots,
		CostBasis:       scenarioCostBasis,
	}, scenarioSpan, scenarioStep)
	if err != nil {
		return err
	}

	fmt.Printf("%8s  %12s  %12s  %14s\n", "delta", "index", "price", "p&l")
	for _, r := range rows {
		fmt.Printf("%+8d  %12.0f  %12.2f  %14.0f\n",
			r.DeltaPoints, r.ProjectedIndexPrice, r.ProjectedInstrumentPrice, r.ProjectedPnL)
	}
	return nil
}
