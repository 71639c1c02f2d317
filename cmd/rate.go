package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"kyber-swap/pkg/parser"
	"kyber-swap/pkg/swap"
	"kyber-swap/pkg/types"
)

const rateDecimals = 18

var watchRate bool

var rateCmd = &cobra.Command{
	Use:   "rate <source-token> <dest-token>",
	Short: "Show the expected rate for a token pair",
	Long: `Quote the expected and slippage rate of one whole source token against
the destination token from the Kyber proxy.

Examples:
  kyber-swap rate ETH KNC
  kyber-swap rate KNC ETH --watch`,
	Args: cobra.ExactArgs(2),
	RunE: runRate,
}

func init() {
	rootCmd.AddCommand(rateCmd)

	rateCmd.Flags().BoolVarP(&watchRate, "watch", "w", false, "Keep refreshing the rate until interrupted")
}

func runRate(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, needChain)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	src, dst, err := a.resolvePair(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	intent := types.SwapIntent{
		Token:    types.SourceToken{Info: src.TokenInfo(), Diff: src.Diff},
		Currency: dst,
	}

	if watchRate {
		if a.json {
			return fmt.Errorf("watch mode not supported with JSON output")
		}
		return a.watchRate(ctx, intent)
	}

	store := a.ctrl.Store()
	rate, err := await(ctx, store, &store.ExpectedRate, nil, func() {
		a.ctrl.WatchExpectedRate(intent)
	})
	a.ctrl.StopWatchingExpectedRate()
	if err != nil {
		return err
	}

	if a.json {
		output := map[string]interface{}{
			"source_token":  src.Symbol,
			"dest_token":    dst.Symbol,
			"expected_rate": swap.FromBaseUnits(rate.Rate, rateDecimals).String(),
			"slippage_rate": swap.FromBaseUnits(rate.SlippageRate, rateDecimals).String(),
		}
		jsonData, _ := json.MarshalIndent(output, "", "  ")
		fmt.Println(string(jsonData))
		return nil
	}

	displayRate(src, dst, rate)
	return nil
}

func (a *app) watchRate(ctx context.Context, intent types.SwapIntent) error {
	store := a.ctrl.Store()
	fmt.Printf("\nWatching %s/%s every %s. Press Ctrl+C to stop.\n\n",
		color.CyanString(intent.Token.Info.Symbol), color.CyanString(intent.Currency.Symbol), a.cfg.RateInterval)

	unsubscribeRate := store.ExpectedRate.Subscribe(func(rate types.ExpectedRate) {
		fmt.Printf("  %s  1 %s = %s %s (slippage %s)\n",
			color.HiBlackString(time.Now().Format("15:04:05")),
			intent.Token.Info.Symbol,
			color.GreenString(swap.FromBaseUnits(rate.Rate, rateDecimals).String()),
			intent.Currency.Symbol,
			swap.FromBaseUnits(rate.SlippageRate, rateDecimals).String(),
		)
	})
	defer unsubscribeRate()

	unsubscribeErr := store.Error.Subscribe(func(err error) {
		color.Red("  %s  %v", time.Now().Format("15:04:05"), err)
	})
	defer unsubscribeErr()

	a.ctrl.WatchExpectedRate(intent)
	defer a.ctrl.StopWatchingExpectedRate()

	<-ctx.Done()
	fmt.Println()
	return nil
}

// resolvePair loads the catalog and looks up both sides of a trade
func (a *app) resolvePair(ctx context.Context, source, dest string) (types.Currency, types.Currency, error) {
	stop := a.bindSpinner("Fetching currency catalog...")
	store := a.ctrl.Store()
	currencies, err := await(ctx, store, &store.Currencies, nil, a.ctrl.LoadCatalog)
	stop()
	if err != nil {
		return types.Currency{}, types.Currency{}, err
	}

	src, err := parser.FindCurrency(currencies, source)
	if err != nil {
		return types.Currency{}, types.Currency{}, err
	}
	dst, err := parser.FindCurrency(currencies, dest)
	if err != nil {
		return types.Currency{}, types.Currency{}, err
	}
	if strings.EqualFold(src.Address, dst.Address) {
		return types.Currency{}, types.Currency{}, fmt.Errorf("source and destination tokens must be different")
	}
	return src, dst, nil
}

func displayRate(src, dst types.Currency, rate types.ExpectedRate) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                    EXPECTED RATE")
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("\n  Pair:            %s / %s\n", color.YellowString(src.Symbol), color.YellowString(dst.Symbol))
	fmt.Printf("  Expected Rate:   %s\n", color.GreenString(swap.FromBaseUnits(rate.Rate, rateDecimals).String()))
	fmt.Printf("  Slippage Rate:   %s\n", swap.FromBaseUnits(rate.SlippageRate, rateDecimals).String())

	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}
