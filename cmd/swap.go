package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"kyber-swap/pkg/parser"
	"kyber-swap/pkg/state"
	"kyber-swap/pkg/swap"
	"kyber-swap/pkg/types"
)

var (
	noConfirm    bool
	minRateFlag  string
	gasLevelFlag string
)

var swapCmd = &cobra.Command{
	Use:   "swap <amount> <source-token> to <dest-token>",
	Short: "Swap tokens through the Kyber proxy",
	Long: `Swap ETH or an ERC20 token for another currency through the Kyber
Network proxy, signing with the configured private key.

ERC20 sources whose allowance is too small are approved first; the approval
is confirmed and mined before the trade is estimated and sent. Every gas
estimate carries the configured safety margin.

Examples:
  kyber-swap swap 1 ETH to KNC
  kyber-swap swap 250 KNC to DAI --gas-level fast
  kyber-swap swap 0.5 ETH to DAI --min-rate 1800 --yes`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSwap,
}

func init() {
	rootCmd.AddCommand(swapCmd)

	swapCmd.Flags().BoolVarP(&noConfirm, "yes", "y", false, "Skip confirmation prompts")
	swapCmd.Flags().StringVar(&minRateFlag, "min-rate", "", "Minimum acceptable rate (default: the quoted slippage rate)")
	swapCmd.Flags().StringVar(&gasLevelFlag, "gas-level", string(types.GasStandard), "Gas price level: fast, standard, low or default")
}

// swapResult is the JSON output of a completed swap
type swapResult struct {
	SourceAmount  string `json:"source_amount"`
	SourceToken   string `json:"source_token"`
	DestToken     string `json:"dest_token"`
	ExpectedRate  string `json:"expected_rate"`
	MinRate       string `json:"min_rate"`
	GasPriceWei   string `json:"gas_price_wei"`
	ApproveTxHash string `json:"approve_tx_hash,omitempty"`
	TradeTxHash   string `json:"trade_tx_hash"`
	Status        string `json:"status"`
}

func runSwap(cmd *cobra.Command, args []string) error {
	// Parse the command
	swapReq, err := parser.ParseSwapCommand(strings.Join(args, " "))
	if err != nil {
		return err
	}
	amount, err := decimal.NewFromString(swapReq.Amount)
	if err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}

	a, err := newApp(cmd, needSigner)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.json && !noConfirm {
		return fmt.Errorf("--yes is required with JSON output")
	}

	ctx := cmd.Context()
	store := a.ctrl.Store()
	wallet, _ := a.session.Wallet.Get()

	src, dst, err := a.resolvePair(ctx, swapReq.SourceToken, swapReq.DestToken)
	if err != nil {
		return err
	}

	token, err := a.loadSourceToken(ctx, wallet, src)
	if err != nil {
		return err
	}
	if token.Balance.LessThan(decimal.NewFromBigInt(swap.ToBaseUnits(amount, token.Info.Decimals), 0)) {
		return fmt.Errorf("insufficient %s balance: have %s, need %s",
			token.Info.Symbol, swap.FromBaseUnits(token.Balance.BigInt(), token.Info.Decimals), amount)
	}

	// Gas price
	stop := a.bindSpinner("Fetching gas price...")
	gasPrices, err := await(ctx, store, &store.GasPrice, nil, a.ctrl.LoadGasPrice)
	stop()
	if err != nil {
		return err
	}
	gasPrice, err := gasPrices.Wei(types.GasLevel(gasLevelFlag))
	if err != nil {
		return err
	}

	intent := types.SwapIntent{
		Token:    token,
		Currency: dst,
		Amount:   amount,
		Advanced: types.AdvancedSettings{GasPrice: gasPrice},
	}

	// Expected rate
	stop = a.bindSpinner("Fetching expected rate...")
	rate, err := await(ctx, store, &store.ExpectedRate, nil, func() {
		a.ctrl.WatchExpectedRate(intent)
	})
	a.ctrl.StopWatchingExpectedRate()
	stop()
	if err != nil {
		return err
	}
	intent.Rate = swap.FromBaseUnits(rate.Rate, rateDecimals)
	intent.Advanced.MinAcceptableRate = swap.FromBaseUnits(rate.SlippageRate, rateDecimals)
	if minRateFlag != "" {
		intent.Advanced.MinAcceptableRate, err = decimal.NewFromString(minRateFlag)
		if err != nil {
			return fmt.Errorf("invalid --min-rate: %w", err)
		}
	}
	if intent.Rate.IsZero() {
		return fmt.Errorf("no liquidity for %s to %s", src.Symbol, dst.Symbol)
	}

	if !a.json {
		displayQuote(intent)
	}
	if !noConfirm && !confirm("Proceed with swap?") {
		fmt.Println("\nSwap cancelled.")
		return nil
	}

	// Allowance check and gas estimate
	stop = a.bindSpinner("Estimating gas...")
	attempt, err := await(ctx, store, &store.Attempt, awaitingConfirmation, func() {
		a.ctrl.EstimateGas(intent)
	})
	stop()
	if err != nil {
		return err
	}

	result := swapResult{
		SourceAmount: amount.String(),
		SourceToken:  src.Symbol,
		DestToken:    dst.Symbol,
		ExpectedRate: intent.Rate.String(),
		MinRate:      intent.Advanced.MinAcceptableRate.String(),
		GasPriceWei:  gasPrice.String(),
	}

	if attempt.Stage == state.StageAwaitingApproval {
		result.ApproveTxHash, err = a.approve(ctx, wallet, intent)
		if err != nil {
			return err
		}

		stop = a.bindSpinner("Estimating trade gas...")
		_, err = await(ctx, store, &store.Attempt, atStage(state.StageAwaitingTrade), func() {
			a.ctrl.EstimateTradeGas(wallet, intent)
		})
		stop()
		if err != nil {
			return err
		}
	}

	tradeGas, _ := store.TradeGas.Get()
	if !a.json {
		fmt.Printf("\n  Trade gas limit:   %s\n", color.CyanString(tradeGas.String()))
		fmt.Printf("  Max fee:           %s ETH\n", formatFee(tradeGas, gasPrice))
	}
	if !noConfirm && !confirm("Send trade transaction?") {
		fmt.Println("\nSwap cancelled.")
		return nil
	}

	stop = a.bindSpinner("Sending trade...")
	_, err = await(ctx, store, &store.Attempt, atStage(state.StageDone), func() {
		a.ctrl.BroadcastTrade(wallet, intent, tradeGas)
	})
	stop()
	if err != nil {
		return err
	}
	result.TradeTxHash, _ = store.TradeTxHash.Get()
	result.Status = "submitted"

	if a.json {
		jsonData, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(jsonData))
		return nil
	}

	color.Green("\n✓ Trade sent successfully!")
	fmt.Printf("  Transaction Hash: %s\n", color.CyanString(result.TradeTxHash))
	fmt.Println("\nYou can follow the trade using:")
	color.Cyan("  kyber-swap receipt %s --watch\n", result.TradeTxHash)
	return nil
}

// loadSourceToken reads the wallet balances into the session and picks the
// source token from the derived tradable list
func (a *app) loadSourceToken(ctx context.Context, wallet types.Wallet, src types.Currency) (types.SourceToken, error) {
	chain := a.svc.Chain()

	stop := a.bindSpinner("Fetching balances...")
	defer stop()

	native := types.NativeTokenInfo()
	ethBalance, err := chain.Balance(ctx, wallet.Address, native)
	if err != nil {
		return types.SourceToken{}, err
	}

	tokens := []types.Token{}
	if !src.TokenInfo().IsNative() {
		balance, err := chain.Balance(ctx, wallet.Address, src.TokenInfo())
		if err != nil {
			return types.SourceToken{}, err
		}
		tokens = append(tokens, types.Token{
			Info:    src.TokenInfo(),
			Balance: decimal.NewFromBigInt(balance, 0),
		})
	}
	balances := map[string]string{
		types.NativeSymbol: swap.FromBaseUnits(ethBalance, native.Decimals).String(),
	}

	store := a.ctrl.Store()
	list, err := await(ctx, store, &store.SourceTokens, nil, func() {
		a.session.Tokens.Set(tokens)
		a.session.Balances.Set(balances)
	})
	if err != nil {
		return types.SourceToken{}, err
	}

	for _, token := range list {
		if strings.EqualFold(token.Info.Address, src.Address) {
			return token, nil
		}
	}
	return types.SourceToken{}, fmt.Errorf("%s is not a tradable source token for this wallet", src.Symbol)
}

// approve sends the approval transaction and waits until it is mined
func (a *app) approve(ctx context.Context, wallet types.Wallet, intent types.SwapIntent) (string, error) {
	store := a.ctrl.Store()
	approveGas, _ := store.ApproveGas.Get()
	gasPrice := intent.Advanced.GasPrice

	if !a.json {
		color.Yellow("\n%s allowance is too small for this trade. An approval is needed first.", intent.Token.Info.Symbol)
		fmt.Printf("  Approve gas limit: %s\n", color.CyanString(approveGas.String()))
		fmt.Printf("  Max fee:           %s ETH\n", formatFee(approveGas, gasPrice))
	}
	if !noConfirm && !confirm("Send approval transaction?") {
		return "", fmt.Errorf("approval cancelled by user")
	}

	stop := a.bindSpinner("Sending approval...")
	_, err := await(ctx, store, &store.Attempt, atStage(state.StageApproved), func() {
		a.ctrl.Approve(wallet, intent, approveGas)
	})
	stop()
	if err != nil {
		return "", err
	}
	txHash, _ := store.ApproveTxHash.Get()
	if !a.json {
		fmt.Printf("  Approval Tx:       %s\n", color.CyanString(txHash))
	}

	stop = a.bindSpinner("Waiting for approval to be mined...")
	receipt, err := waitForReceipt(ctx, a.svc.Chain(), txHash, 3*time.Second)
	stop()
	if err != nil {
		return txHash, err
	}
	if receipt.Status != 1 {
		return txHash, fmt.Errorf("approval transaction %s reverted", txHash)
	}
	return txHash, nil
}

func awaitingConfirmation(attempt state.Attempt) bool {
	return attempt.Stage == state.StageAwaitingApproval || attempt.Stage == state.StageAwaitingTrade
}

func atStage(stage state.Stage) func(state.Attempt) bool {
	return func(attempt state.Attempt) bool {
		return attempt.Stage == stage
	}
}

func formatFee(gasLimit, gasPrice *big.Int) string {
	if gasLimit == nil || gasPrice == nil {
		return "-"
	}
	fee := new(big.Int).Mul(gasLimit, gasPrice)
	return swap.FromBaseUnits(fee, types.NativeDecimals).String()
}

func displayQuote(intent types.SwapIntent) {
	receive := intent.Amount.Mul(intent.Rate)
	minReceive := intent.Amount.Mul(intent.Advanced.MinAcceptableRate)

	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                     SWAP QUOTE")
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("\n  From:              %s %s\n", intent.Amount, color.YellowString(intent.Token.Info.Symbol))
	fmt.Printf("  To:                ~%s %s\n", receive.StringFixed(6), color.YellowString(intent.Currency.Symbol))
	fmt.Printf("  Expected Rate:     %s\n", color.GreenString(intent.Rate.String()))
	fmt.Printf("  Min Rate:          %s\n", intent.Advanced.MinAcceptableRate)
	fmt.Printf("  Min Received:      %s %s\n", minReceive.StringFixed(6), intent.Currency.Symbol)
	fmt.Printf("  Gas Price:         %s gwei\n", decimal.NewFromBigInt(intent.Advanced.GasPrice, -9))

	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}

func confirm(prompt string) bool {
	reader := bufio.NewReader(os.Stdin)
	fmt.Printf("\n%s (y/N): ", prompt)

	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}
