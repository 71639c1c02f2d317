package swap

import (
	"context"
	"math/big"

	"github.com/shopspring/decimal"

	"kyber-swap/pkg/types"
)

// ApproveRequest describes an ERC20 approval of the aggregator's proxy
type ApproveRequest struct {
	Wallet   types.Wallet
	Token    types.TokenInfo
	Amount   decimal.Decimal // in token units
	GasPrice *big.Int
	GasLimit *big.Int // ignored when estimating
}

// TradeRequest describes a trade through the aggregator's proxy
type TradeRequest struct {
	Wallet            types.Wallet
	Token             types.TokenInfo
	Currency          types.Currency
	Amount            decimal.Decimal // in source token units
	Rate              decimal.Decimal
	MinAcceptableRate decimal.Decimal
	GasPrice          *big.Int
	GasLimit          *big.Int // ignored when estimating
}

// Service is the quote and gas collaborator the controller relays.
// Every method must honour ctx cancellation.
type Service interface {
	Currencies(ctx context.Context) ([]types.Currency, error)
	GasPrice(ctx context.Context) (types.GasPrice, error)
	ExpectedRate(ctx context.Context, wallet types.Wallet, token types.TokenInfo, currency string) (types.ExpectedRate, error)
	Allowance(ctx context.Context, wallet types.Wallet, token types.TokenInfo) (*big.Int, error)
	EstimateApproveGas(ctx context.Context, req ApproveRequest) (*big.Int, error)
	EstimateTradeGas(ctx context.Context, req TradeRequest) (*big.Int, error)
	Approve(ctx context.Context, req ApproveRequest) (string, error)
	Trade(ctx context.Context, req TradeRequest) (string, error)
}

func approveRequest(wallet types.Wallet, intent types.SwapIntent, gasLimit *big.Int) ApproveRequest {
	return ApproveRequest{
		Wallet:   wallet,
		Token:    intent.Token.Info,
		Amount:   intent.Amount,
		GasPrice: intent.Advanced.GasPrice,
		GasLimit: gasLimit,
	}
}

func tradeRequest(wallet types.Wallet, intent types.SwapIntent, gasLimit *big.Int) TradeRequest {
	return TradeRequest{
		Wallet:            wallet,
		Token:             intent.Token.Info,
		Currency:          intent.Currency,
		Amount:            intent.Amount,
		Rate:              intent.Rate,
		MinAcceptableRate: intent.Advanced.MinAcceptableRate,
		GasPrice:          intent.Advanced.GasPrice,
		GasLimit:          gasLimit,
	}
}
