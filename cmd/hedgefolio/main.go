package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "hedgefolio",
	Short: "hedgefolio - hedged leveraged-ETF portfolio simulator",
	Long: `hedgefolio backtests an 80/20 strategy that holds a 2x leveraged index
ETF and shorts index futures from the cash reserve when the index trades
below its moving average.`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug mode")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
