package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"kyber-swap/pkg/kyber"
)

var (
	watchReceipt  bool
	watchInterval int
)

var receiptCmd = &cobra.Command{
	Use:     "receipt <tx-hash>",
	Aliases: []string{"status"},
	Short:   "Check whether an approval or trade has been mined",
	Long: `Look up the receipt of a transaction sent by the swap command.

Examples:
  kyber-swap receipt 0x1234...abcd
  kyber-swap receipt 0x1234...abcd --watch
  kyber-swap receipt 0x1234...abcd --watch --interval 10`,
	Args: cobra.ExactArgs(1),
	RunE: runReceipt,
}

func init() {
	rootCmd.AddCommand(receiptCmd)

	receiptCmd.Flags().BoolVarP(&watchReceipt, "watch", "w", false, "Wait until the transaction is mined")
	receiptCmd.Flags().IntVar(&watchInterval, "interval", 5, "Polling interval in seconds (when watching)")
}

func runReceipt(cmd *cobra.Command, args []string) error {
	txHash := args[0]

	a, err := newApp(cmd, needChain)
	if err != nil {
		return err
	}
	defer a.Close()

	chain := a.svc.Chain()
	ctx := cmd.Context()

	var receipt *ethtypes.Receipt
	if watchReceipt {
		if !a.json {
			fmt.Printf("\nWaiting for %s\n", color.CyanString(txHash))
			fmt.Printf("Checking every %d seconds. Press Ctrl+C to stop.\n", watchInterval)
		}
		receipt, err = waitForReceipt(ctx, chain, txHash, time.Duration(watchInterval)*time.Second)
	} else {
		receipt, err = chain.Receipt(ctx, txHash)
	}

	if errors.Is(err, kyber.ErrTxPending) {
		if a.json {
			fmt.Printf("{\n  \"tx_hash\": %q,\n  \"status\": \"pending\"\n}\n", txHash)
		} else {
			fmt.Printf("\n  Status: %s\n\n", color.YellowString("PENDING"))
		}
		return nil
	}
	if err != nil {
		return err
	}

	if a.json {
		output := map[string]interface{}{
			"tx_hash":      txHash,
			"status":       receiptStatus(receipt),
			"block_number": receipt.BlockNumber.String(),
			"gas_used":     receipt.GasUsed,
		}
		jsonData, _ := json.MarshalIndent(output, "", "  ")
		fmt.Println(string(jsonData))
		return nil
	}

	displayReceipt(txHash, receipt)
	return nil
}

// waitForReceipt polls until the transaction is mined or ctx is done
func waitForReceipt(ctx context.Context, chain *kyber.Chain, txHash string, interval time.Duration) (*ethtypes.Receipt, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		receipt, err := chain.Receipt(ctx, txHash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, kyber.ErrTxPending) {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func receiptStatus(receipt *ethtypes.Receipt) string {
	if receipt.Status == ethtypes.ReceiptStatusSuccessful {
		return "success"
	}
	return "failed"
}

func displayReceipt(txHash string, receipt *ethtypes.Receipt) {
	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                       TRANSACTION RECEIPT")
	fmt.Println(strings.Repeat("=", 70))

	fmt.Printf("\n  Tx Hash:         %s\n", color.CyanString(txHash))
	fmt.Printf("  Status:          %s\n", getColoredStatus(receiptStatus(receipt)))
	fmt.Printf("  Block:           %s\n", receipt.BlockNumber)
	fmt.Printf("  Gas Used:        %d\n", receipt.GasUsed)
	if receipt.EffectiveGasPrice != nil {
		fmt.Printf("  Fee:             %s ETH\n", formatFee(new(big.Int).SetUint64(receipt.GasUsed), receipt.EffectiveGasPrice))
	}

	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}

func getColoredStatus(status string) string {
	status = strings.ToUpper(status)

	switch status {
	case "SUCCESS":
		return color.GreenString(status)
	case "PENDING":
		return color.YellowString(status)
	case "FAILED":
		return color.RedString(status)
	default:
		return status
	}
}
