package kyber

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kyber-swap/pkg/swap"
	"kyber-swap/pkg/types"
)

const (
	testKey     = "0xb71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"
	testAddress = "0x71562b71999873DB5b286dF957af199Ec94617F7"
	testChainID = 1
)

var testToken = types.TokenInfo{
	Address:  "0xdd974D5C2e2928deA5F71b9825b8b646686BD200",
	Symbol:   "KNC",
	Decimals: 18,
}

var testCurrency = types.Currency{
	Address:  "0x6B175474E89094C44Da98b954EedeAC495271d0F",
	Symbol:   "DAI",
	Decimals: 18,
}

type fakeChainClient struct {
	mu       sync.Mutex
	calls    []ethereum.CallMsg
	estimate []ethereum.CallMsg
	sent     []*ethtypes.Transaction

	callResult  func(msg ethereum.CallMsg) ([]byte, error)
	gas         uint64
	nonce       uint64
	balance     *big.Int
	receipt     *ethtypes.Receipt
	receiptErr  error
	estimateErr error
}

func (f *fakeChainClient) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, msg)
	f.mu.Unlock()
	return f.callResult(msg)
}

func (f *fakeChainClient) EstimateGas(_ context.Context, msg ethereum.CallMsg) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.estimate = append(f.estimate, msg)
	return f.gas, f.estimateErr
}

func (f *fakeChainClient) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return f.nonce, nil
}

func (f *fakeChainClient) SendTransaction(_ context.Context, tx *ethtypes.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeChainClient) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	return f.balance, nil
}

func (f *fakeChainClient) TransactionReceipt(context.Context, common.Hash) (*ethtypes.Receipt, error) {
	return f.receipt, f.receiptErr
}

func packOutputs(t *testing.T, method string, values ...interface{}) []byte {
	t.Helper()
	m, ok := erc20Contract.Methods[method]
	if !ok {
		m = proxyContract.Methods[method]
	}
	out, err := m.Outputs.Pack(values...)
	require.NoError(t, err)
	return out
}

func newTestChain(t *testing.T, client *fakeChainClient) *Chain {
	t.Helper()
	signer, err := NewKeySigner(testKey)
	require.NoError(t, err)
	chain, err := NewChain(client, signer, ChainConfig{ProxyAddress: DefaultProxyAddress, ChainID: testChainID}, discardLogger())
	require.NoError(t, err)
	return chain
}

func TestKeySigner_Address(t *testing.T) {
	signer, err := NewKeySigner(testKey)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(testAddress), signer.Address())

	_, err = NewKeySigner("")
	assert.Error(t, err)
	_, err = NewKeySigner("0xzz")
	assert.Error(t, err)
}

func TestNewChain_InvalidAddresses(t *testing.T) {
	_, err := NewChain(&fakeChainClient{}, nil, ChainConfig{ProxyAddress: "proxy"}, nil)
	assert.Error(t, err)

	_, err = NewChain(&fakeChainClient{}, nil, ChainConfig{ProxyAddress: DefaultProxyAddress, WalletID: "0x12"}, nil)
	assert.Error(t, err)
}

func TestChain_Allowance(t *testing.T) {
	owner := common.HexToAddress(testAddress)
	client := &fakeChainClient{}
	client.callResult = func(msg ethereum.CallMsg) ([]byte, error) {
		return packOutputs(t, "allowance", big.NewInt(1234)), nil
	}
	chain := newTestChain(t, client)

	allowance, err := chain.Allowance(context.Background(), owner, testToken)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1234), allowance)

	require.Len(t, client.calls, 1)
	assert.Equal(t, common.HexToAddress(testToken.Address), *client.calls[0].To)
	want, err := erc20Contract.Pack("allowance", owner, common.HexToAddress(DefaultProxyAddress))
	require.NoError(t, err)
	assert.Equal(t, want, client.calls[0].Data)
}

func TestChain_ExpectedRate(t *testing.T) {
	client := &fakeChainClient{}
	client.callResult = func(msg ethereum.CallMsg) ([]byte, error) {
		return packOutputs(t, "getExpectedRate", big.NewInt(2e18), big.NewInt(19e17)), nil
	}
	chain := newTestChain(t, client)

	token := testToken
	token.Decimals = 6
	rate, err := chain.ExpectedRate(context.Background(), token, testCurrency.Address)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(2e18), rate.Rate)
	assert.Equal(t, big.NewInt(19e17), rate.SlippageRate)

	// one whole source token is quoted
	want, err := proxyContract.Pack("getExpectedRate",
		common.HexToAddress(token.Address), common.HexToAddress(testCurrency.Address), big.NewInt(1_000_000))
	require.NoError(t, err)
	assert.Equal(t, want, client.calls[0].Data)
	assert.Equal(t, common.HexToAddress(DefaultProxyAddress), *client.calls[0].To)
}

func TestChain_Balance(t *testing.T) {
	owner := common.HexToAddress(testAddress)
	client := &fakeChainClient{balance: big.NewInt(77)}
	client.callResult = func(ethereum.CallMsg) ([]byte, error) {
		return packOutputs(t, "balanceOf", big.NewInt(88)), nil
	}
	chain := newTestChain(t, client)

	native, err := chain.Balance(context.Background(), owner, types.NativeTokenInfo())
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(77), native)

	token, err := chain.Balance(context.Background(), owner, testToken)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(88), token)
}

func TestChain_Receipt(t *testing.T) {
	client := &fakeChainClient{receiptErr: ethereum.NotFound}
	chain := newTestChain(t, client)

	_, err := chain.Receipt(context.Background(), "0x01")
	assert.ErrorIs(t, err, ErrTxPending)

	client.receiptErr = nil
	client.receipt = &ethtypes.Receipt{Status: ethtypes.ReceiptStatusSuccessful, BlockNumber: big.NewInt(10)}
	receipt, err := chain.Receipt(context.Background(), "0x01")
	require.NoError(t, err)
	assert.Equal(t, ethtypes.ReceiptStatusSuccessful, receipt.Status)
}

func TestChain_SendSignsLegacyTx(t *testing.T) {
	client := &fakeChainClient{nonce: 7}
	chain := newTestChain(t, client)
	from := common.HexToAddress(testAddress)

	msg, err := chain.TradeCall(from, types.NativeTokenInfo(), testCurrency.Address, big.NewInt(5e17), big.NewInt(1), big.NewInt(30e9))
	require.NoError(t, err)

	txHash, err := chain.Send(context.Background(), msg, big.NewInt(300_000))
	require.NoError(t, err)

	require.Len(t, client.sent, 1)
	tx := client.sent[0]
	assert.Equal(t, tx.Hash().Hex(), txHash)
	assert.Equal(t, uint64(7), tx.Nonce())
	assert.Equal(t, uint64(300_000), tx.Gas())
	assert.Equal(t, big.NewInt(30e9), tx.GasPrice())
	assert.Equal(t, big.NewInt(5e17), tx.Value())
	assert.Equal(t, common.HexToAddress(DefaultProxyAddress), *tx.To())

	sender, err := ethtypes.Sender(ethtypes.NewEIP155Signer(big.NewInt(testChainID)), tx)
	require.NoError(t, err)
	assert.Equal(t, from, sender)
}

func TestChain_SendRejects(t *testing.T) {
	client := &fakeChainClient{}
	chain := newTestChain(t, client)
	from := common.HexToAddress(testAddress)

	msg, err := chain.ApproveCall(from, testToken, big.NewInt(1), big.NewInt(1))
	require.NoError(t, err)

	_, err = chain.Send(context.Background(), msg, nil)
	assert.ErrorContains(t, err, "invalid gas limit")

	other := msg
	other.From = common.HexToAddress("0x0000000000000000000000000000000000000001")
	_, err = chain.Send(context.Background(), other, big.NewInt(60_000))
	assert.ErrorContains(t, err, "cannot send")

	readOnly, err := NewChain(client, nil, ChainConfig{ProxyAddress: DefaultProxyAddress, ChainID: testChainID}, nil)
	require.NoError(t, err)
	_, err = readOnly.Send(context.Background(), msg, big.NewInt(60_000))
	assert.ErrorContains(t, err, "no signer")

	assert.Empty(t, client.sent)
}

func TestService_EstimatesAndTrades(t *testing.T) {
	client := &fakeChainClient{gas: 150_000, nonce: 3}
	chain := newTestChain(t, client)
	svc := NewService(nil, NewAPI("", 0, discardLogger()), chain, discardLogger())
	wallet := types.Wallet{Address: common.HexToAddress(testAddress)}

	approve := swap.ApproveRequest{
		Wallet:   wallet,
		Token:    testToken,
		Amount:   decimal.RequireFromString("2.5"),
		GasPrice: big.NewInt(10e9),
	}
	gas, err := svc.EstimateApproveGas(context.Background(), approve)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(150_000), gas)

	wantApprove, err := erc20Contract.Pack("approve", common.HexToAddress(DefaultProxyAddress), big.NewInt(25e17))
	require.NoError(t, err)
	assert.True(t, bytes.Equal(wantApprove, client.estimate[0].Data))

	trade := swap.TradeRequest{
		Wallet:            wallet,
		Token:             testToken,
		Currency:          testCurrency,
		Amount:            decimal.RequireFromString("2.5"),
		Rate:              decimal.RequireFromString("0.5"),
		MinAcceptableRate: decimal.RequireFromString("0.45"),
		GasPrice:          big.NewInt(10e9),
		GasLimit:          big.NewInt(180_000),
	}
	txHash, err := svc.Trade(context.Background(), trade)
	require.NoError(t, err)
	require.Len(t, client.sent, 1)
	assert.Equal(t, client.sent[0].Hash().Hex(), txHash)
	assert.Equal(t, big.NewInt(0), client.sent[0].Value())

	wantTrade, err := proxyContract.Pack("trade",
		common.HexToAddress(testToken.Address),
		big.NewInt(25e17),
		common.HexToAddress(testCurrency.Address),
		wallet.Address,
		maxDestAmount,
		big.NewInt(45e16),
		common.Address{},
	)
	require.NoError(t, err)
	assert.Equal(t, wantTrade, client.sent[0].Data())
}

func TestService_EstimateError(t *testing.T) {
	client := &fakeChainClient{estimateErr: errors.New("execution reverted")}
	svc := NewService(nil, NewAPI("", 0, nil), newTestChain(t, client), nil)

	_, err := svc.EstimateTradeGas(context.Background(), swap.TradeRequest{
		Wallet:   types.Wallet{Address: common.HexToAddress(testAddress)},
		Token:    testToken,
		Currency: testCurrency,
		Amount:   decimal.NewFromInt(1),
	})
	assert.ErrorContains(t, err, "execution reverted")
}
