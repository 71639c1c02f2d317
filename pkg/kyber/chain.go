package kyber

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"

	"kyber-swap/pkg/types"
)

// DefaultProxyAddress is the KyberNetworkProxy on Ethereum mainnet
const DefaultProxyAddress = "0x818E6FECD516Ecc3849DAf6845e3EC868087B755"

// ErrTxPending is returned by Receipt while the transaction is not mined
var ErrTxPending = errors.New("transaction pending")

// maxDestAmount leaves the trade uncapped on the destination side
var maxDestAmount = new(big.Int).Lsh(big.NewInt(1), 255)

// ChainClient is the subset of ethclient.Client the chain access needs
type ChainClient interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error)
}

// Chain talks to ERC20 tokens and the Kyber proxy over JSON-RPC
type Chain struct {
	client   ChainClient
	signer   Signer
	proxy    common.Address
	walletID common.Address
	chainID  *big.Int
	log      *slog.Logger
}

// ChainConfig locates the proxy contract on a chain
type ChainConfig struct {
	ProxyAddress string
	// WalletID is the fee-sharing wallet passed with every trade. Empty means none.
	WalletID string
	ChainID  int64
}

// NewChain creates chain access for the configured proxy. signer may be nil
// for read-only use.
func NewChain(client ChainClient, signer Signer, cfg ChainConfig, log *slog.Logger) (*Chain, error) {
	if !common.IsHexAddress(cfg.ProxyAddress) {
		return nil, fmt.Errorf("invalid proxy address: %s", cfg.ProxyAddress)
	}
	var walletID common.Address
	if cfg.WalletID != "" {
		if !common.IsHexAddress(cfg.WalletID) {
			return nil, fmt.Errorf("invalid wallet id: %s", cfg.WalletID)
		}
		walletID = common.HexToAddress(cfg.WalletID)
	}
	if log == nil {
		log = slog.Default()
	}

	return &Chain{
		client:   client,
		signer:   signer,
		proxy:    common.HexToAddress(cfg.ProxyAddress),
		walletID: walletID,
		chainID:  big.NewInt(cfg.ChainID),
		log:      log.With("component", "chain"),
	}, nil
}

// Allowance returns how much of token the proxy may spend for owner
func (c *Chain) Allowance(ctx context.Context, owner common.Address, token types.TokenInfo) (*big.Int, error) {
	tokenAddress, err := tokenAddress(token)
	if err != nil {
		return nil, err
	}

	data, err := erc20Contract.Pack("allowance", owner, c.proxy)
	if err != nil {
		return nil, fmt.Errorf("failed to pack allowance data: %w", err)
	}

	result, err := c.client.CallContract(ctx, ethereum.CallMsg{To: &tokenAddress, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call allowance: %w", err)
	}

	return unpackUint(erc20Contract.Unpack("allowance", result))
}

// ExpectedRate quotes one whole source token against dest
func (c *Chain) ExpectedRate(ctx context.Context, token types.TokenInfo, dest string) (types.ExpectedRate, error) {
	src, err := tokenAddress(token)
	if err != nil {
		return types.ExpectedRate{}, err
	}
	if !common.IsHexAddress(dest) {
		return types.ExpectedRate{}, fmt.Errorf("invalid destination address: %s", dest)
	}

	srcQty := decimal.NewFromInt(1).Shift(int32(token.Decimals)).BigInt()
	data, err := proxyContract.Pack("getExpectedRate", src, common.HexToAddress(dest), srcQty)
	if err != nil {
		return types.ExpectedRate{}, fmt.Errorf("failed to pack getExpectedRate data: %w", err)
	}

	result, err := c.client.CallContract(ctx, ethereum.CallMsg{To: &c.proxy, Data: data}, nil)
	if err != nil {
		return types.ExpectedRate{}, fmt.Errorf("failed to call getExpectedRate: %w", err)
	}

	values, err := proxyContract.Unpack("getExpectedRate", result)
	if err != nil {
		return types.ExpectedRate{}, fmt.Errorf("failed to unpack getExpectedRate result: %w", err)
	}
	if len(values) != 2 {
		return types.ExpectedRate{}, fmt.Errorf("unexpected getExpectedRate result length %d", len(values))
	}
	rate, ok1 := values[0].(*big.Int)
	slippage, ok2 := values[1].(*big.Int)
	if !ok1 || !ok2 {
		return types.ExpectedRate{}, fmt.Errorf("unexpected getExpectedRate result types")
	}

	return types.ExpectedRate{Rate: rate, SlippageRate: slippage}, nil
}

// ApproveCall builds the approve(proxy, amount) call for token
func (c *Chain) ApproveCall(from common.Address, token types.TokenInfo, amount, gasPrice *big.Int) (ethereum.CallMsg, error) {
	tokenAddress, err := tokenAddress(token)
	if err != nil {
		return ethereum.CallMsg{}, err
	}

	data, err := erc20Contract.Pack("approve", c.proxy, amount)
	if err != nil {
		return ethereum.CallMsg{}, fmt.Errorf("failed to pack approve data: %w", err)
	}

	return ethereum.CallMsg{
		From:     from,
		To:       &tokenAddress,
		GasPrice: gasPrice,
		Data:     data,
	}, nil
}

// TradeCall builds the proxy trade call. Native sources carry srcAmount as
// the transaction value.
func (c *Chain) TradeCall(from common.Address, token types.TokenInfo, dest string, srcAmount, minConversionRate, gasPrice *big.Int) (ethereum.CallMsg, error) {
	src, err := tokenAddress(token)
	if err != nil {
		return ethereum.CallMsg{}, err
	}
	if !common.IsHexAddress(dest) {
		return ethereum.CallMsg{}, fmt.Errorf("invalid destination address: %s", dest)
	}

	data, err := proxyContract.Pack("trade",
		src,
		srcAmount,
		common.HexToAddress(dest),
		from,
		maxDestAmount,
		minConversionRate,
		c.walletID,
	)
	if err != nil {
		return ethereum.CallMsg{}, fmt.Errorf("failed to pack trade data: %w", err)
	}

	value := big.NewInt(0)
	if token.IsNative() {
		value = srcAmount
	}

	return ethereum.CallMsg{
		From:     from,
		To:       &c.proxy,
		GasPrice: gasPrice,
		Value:    value,
		Data:     data,
	}, nil
}

// EstimateGas returns the node's gas estimate for msg
func (c *Chain) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (*big.Int, error) {
	gas, err := c.client.EstimateGas(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("failed to estimate gas: %w", err)
	}
	return new(big.Int).SetUint64(gas), nil
}

// Send signs msg as a legacy transaction and broadcasts it
func (c *Chain) Send(ctx context.Context, msg ethereum.CallMsg, gasLimit *big.Int) (string, error) {
	if c.signer == nil {
		return "", fmt.Errorf("no signer configured")
	}
	if msg.From != c.signer.Address() {
		return "", fmt.Errorf("signer %s cannot send for %s", c.signer.Address().Hex(), msg.From.Hex())
	}
	if gasLimit == nil || !gasLimit.IsUint64() || gasLimit.Sign() == 0 {
		return "", fmt.Errorf("invalid gas limit: %v", gasLimit)
	}
	if msg.GasPrice == nil {
		return "", fmt.Errorf("gas price not set")
	}

	nonce, err := c.client.PendingNonceAt(ctx, msg.From)
	if err != nil {
		return "", fmt.Errorf("failed to get nonce: %w", err)
	}

	value := msg.Value
	if value == nil {
		value = big.NewInt(0)
	}

	tx := ethtypes.NewTx(&ethtypes.LegacyTx{
		Nonce:    nonce,
		GasPrice: msg.GasPrice,
		Gas:      gasLimit.Uint64(),
		To:       msg.To,
		Value:    value,
		Data:     msg.Data,
	})

	signed, err := c.signer.SignTx(tx, c.chainID)
	if err != nil {
		return "", err
	}

	if err := c.client.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("failed to send transaction: %w", err)
	}

	txHash := signed.Hash().Hex()
	c.log.Info("Transaction sent", "tx_hash", txHash, "nonce", nonce, "to", msg.To.Hex())
	return txHash, nil
}

// Balance returns the owner's balance of token in base units
func (c *Chain) Balance(ctx context.Context, owner common.Address, token types.TokenInfo) (*big.Int, error) {
	if token.IsNative() {
		balance, err := c.client.BalanceAt(ctx, owner, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to get balance: %w", err)
		}
		return balance, nil
	}

	tokenAddress, err := tokenAddress(token)
	if err != nil {
		return nil, err
	}

	data, err := erc20Contract.Pack("balanceOf", owner)
	if err != nil {
		return nil, fmt.Errorf("failed to pack balanceOf data: %w", err)
	}

	result, err := c.client.CallContract(ctx, ethereum.CallMsg{To: &tokenAddress, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call balanceOf: %w", err)
	}

	return unpackUint(erc20Contract.Unpack("balanceOf", result))
}

// Receipt returns the receipt of a mined transaction, or ErrTxPending
func (c *Chain) Receipt(ctx context.Context, txHash string) (*ethtypes.Receipt, error) {
	receipt, err := c.client.TransactionReceipt(ctx, common.HexToHash(txHash))
	if errors.Is(err, ethereum.NotFound) {
		return nil, ErrTxPending
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction receipt: %w", err)
	}
	return receipt, nil
}

func tokenAddress(token types.TokenInfo) (common.Address, error) {
	if !common.IsHexAddress(token.Address) {
		return common.Address{}, fmt.Errorf("invalid token address for %s: %s", token.Symbol, token.Address)
	}
	return common.HexToAddress(token.Address), nil
}

func unpackUint(values []interface{}, err error) (*big.Int, error) {
	if err != nil {
		return nil, fmt.Errorf("failed to unpack result: %w", err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("unexpected result length %d", len(values))
	}
	value, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected result type %T", values[0])
	}
	return value, nil
}
