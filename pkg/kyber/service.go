package kyber

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum"

	"kyber-swap/pkg/swap"
	"kyber-swap/pkg/types"
)

// rates on the proxy are fixed point with 18 decimals regardless of token
const rateDecimals = 18

// CatalogSource supplies the tradable currency catalog
type CatalogSource interface {
	Currencies(ctx context.Context) ([]types.Currency, error)
}

// Service is the swap.Service backed by the Kyber API and an Ethereum node
type Service struct {
	catalog CatalogSource
	api     *API
	chain   *Chain
	log     *slog.Logger
}

var _ swap.Service = (*Service)(nil)

// NewService composes the service. A nil catalog falls back to the API.
func NewService(catalog CatalogSource, api *API, chain *Chain, log *slog.Logger) *Service {
	if catalog == nil {
		catalog = api
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		catalog: catalog,
		api:     api,
		chain:   chain,
		log:     log.With("component", "kyber"),
	}
}

// Chain exposes the underlying chain access for balance and receipt lookups
func (s *Service) Chain() *Chain {
	return s.chain
}

func (s *Service) Currencies(ctx context.Context) ([]types.Currency, error) {
	return s.catalog.Currencies(ctx)
}

func (s *Service) GasPrice(ctx context.Context) (types.GasPrice, error) {
	return s.api.GasPrice(ctx)
}

func (s *Service) ExpectedRate(ctx context.Context, _ types.Wallet, token types.TokenInfo, currency string) (types.ExpectedRate, error) {
	return s.chain.ExpectedRate(ctx, token, currency)
}

func (s *Service) Allowance(ctx context.Context, wallet types.Wallet, token types.TokenInfo) (*big.Int, error) {
	return s.chain.Allowance(ctx, wallet.Address, token)
}

func (s *Service) EstimateApproveGas(ctx context.Context, req swap.ApproveRequest) (*big.Int, error) {
	msg, err := s.chain.ApproveCall(req.Wallet.Address, req.Token, approveAmount(req), req.GasPrice)
	if err != nil {
		return nil, err
	}
	return s.chain.EstimateGas(ctx, msg)
}

func (s *Service) EstimateTradeGas(ctx context.Context, req swap.TradeRequest) (*big.Int, error) {
	msg, err := s.tradeCall(req)
	if err != nil {
		return nil, err
	}
	return s.chain.EstimateGas(ctx, msg)
}

func (s *Service) Approve(ctx context.Context, req swap.ApproveRequest) (string, error) {
	msg, err := s.chain.ApproveCall(req.Wallet.Address, req.Token, approveAmount(req), req.GasPrice)
	if err != nil {
		return "", err
	}

	txHash, err := s.chain.Send(ctx, msg, req.GasLimit)
	if err != nil {
		return "", fmt.Errorf("approve %s: %w", req.Token.Symbol, err)
	}
	s.log.Debug("Approve submitted", "token", req.Token.Symbol, "amount", req.Amount.String(), "tx_hash", txHash)
	return txHash, nil
}

func (s *Service) Trade(ctx context.Context, req swap.TradeRequest) (string, error) {
	msg, err := s.tradeCall(req)
	if err != nil {
		return "", err
	}

	txHash, err := s.chain.Send(ctx, msg, req.GasLimit)
	if err != nil {
		return "", fmt.Errorf("trade %s to %s: %w", req.Token.Symbol, req.Currency.Symbol, err)
	}
	s.log.Debug("Trade submitted", "from", req.Token.Symbol, "to", req.Currency.Symbol, "amount", req.Amount.String(), "tx_hash", txHash)
	return txHash, nil
}

func (s *Service) tradeCall(req swap.TradeRequest) (ethereum.CallMsg, error) {
	srcAmount := swap.ToBaseUnits(req.Amount, req.Token.Decimals)
	minConversionRate := swap.ToBaseUnits(req.MinAcceptableRate, rateDecimals)
	return s.chain.TradeCall(req.Wallet.Address, req.Token, req.Currency.Address, srcAmount, minConversionRate, req.GasPrice)
}

func approveAmount(req swap.ApproveRequest) *big.Int {
	return swap.ToBaseUnits(req.Amount, req.Token.Decimals)
}
