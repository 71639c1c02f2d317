package cmd

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"kyber-swap/pkg/types"
)

var (
	filterSymbol   string
	refreshCatalog bool
)

var currenciesCmd = &cobra.Command{
	Use:     "currencies",
	Aliases: []string{"tokens", "ls"},
	Short:   "List the currencies the aggregator can trade",
	Long: `List the tradable currencies published by the configured catalog
source, with their 24h price movement when available.

Examples:
  kyber-swap currencies
  kyber-swap currencies --symbol KNC
  kyber-swap currencies --refresh`,
	Args: cobra.NoArgs,
	RunE: runCurrencies,
}

func init() {
	rootCmd.AddCommand(currenciesCmd)

	currenciesCmd.Flags().StringVar(&filterSymbol, "symbol", "", "Filter by token symbol")
	currenciesCmd.Flags().BoolVar(&refreshCatalog, "refresh", false, "Drop the cached catalog before fetching")
}

func runCurrencies(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, needCatalog)
	if err != nil {
		return err
	}
	defer a.Close()

	if refreshCatalog && a.cache != nil {
		if err := a.cache.Invalidate(cmd.Context()); err != nil {
			a.log.Warn("Failed to refresh catalog cache", "error", err)
		}
	}

	stop := a.bindSpinner("Fetching currency catalog...")
	store := a.ctrl.Store()
	currencies, err := await(cmd.Context(), store, &store.Currencies, nil, a.ctrl.LoadCatalog)
	stop()
	if err != nil {
		return err
	}

	if filterSymbol != "" {
		var filtered []types.Currency
		for _, currency := range currencies {
			if strings.Contains(strings.ToUpper(currency.Symbol), strings.ToUpper(filterSymbol)) {
				filtered = append(filtered, currency)
			}
		}
		currencies = filtered
	}

	sort.Slice(currencies, func(i, j int) bool {
		return currencies[i].Symbol < currencies[j].Symbol
	})

	if a.json {
		jsonData, _ := json.MarshalIndent(currencies, "", "  ")
		fmt.Println(string(jsonData))
		return nil
	}

	displayCurrencies(currencies)
	return nil
}

func displayCurrencies(currencies []types.Currency) {
	if len(currencies) == 0 {
		color.Yellow("No currencies found.\n")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 100))
	color.Green("                                      TRADABLE CURRENCIES")
	fmt.Println(strings.Repeat("=", 100))
	fmt.Printf("\n  %-10s %-24s %-44s %8s %10s\n", "SYMBOL", "NAME", "ADDRESS", "DECIMALS", "24H ETH")
	fmt.Println("  " + strings.Repeat("-", 98))

	for _, currency := range currencies {
		fmt.Printf("  %-10s %-24s %-44s %8d %10s\n",
			color.CyanString("%-10s", currency.Symbol),
			truncate(currency.Name, 24),
			currency.Address,
			currency.Decimals,
			formatChange(currency.Diff),
		)
	}

	fmt.Printf("\n  Total: %d currencies\n", len(currencies))
	fmt.Println("\n" + strings.Repeat("=", 100) + "\n")
}

func formatChange(diff *types.DiffInfo) string {
	if diff == nil {
		return color.HiBlackString("%10s", "-")
	}
	text := fmt.Sprintf("%10s", diff.ChangeETH24h.StringFixed(2)+"%")
	switch diff.ChangeETH24h.Cmp(decimal.Zero) {
	case 1:
		return color.GreenString(text)
	case -1:
		return color.RedString(text)
	default:
		return text
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
