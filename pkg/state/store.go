package state

import (
	"math/big"

	"github.com/google/uuid"

	"kyber-swap/pkg/types"
)

// Stage is the position of a swap attempt in the pipeline
type Stage string

const (
	StageIdle               Stage = "idle"
	StageAllowanceCheck     Stage = "allowance_check"
	StageApproveGasEstimate Stage = "approve_gas_estimate"
	StageAwaitingApproval   Stage = "awaiting_approval"
	StageApproving          Stage = "approving"
	StageApproved           Stage = "approved"
	StageTradeGasEstimate   Stage = "trade_gas_estimate"
	StageAwaitingTrade      Stage = "awaiting_trade"
	StageBroadcasting       Stage = "broadcasting"
	StageDone               Stage = "done"
	StageFailed             Stage = "failed"
)

// Attempt identifies one swap attempt and where it currently is
type Attempt struct {
	ID    uuid.UUID
	Stage Stage
}

// Store holds everything the swap screen renders.
type Store struct {
	SourceTokens  Value[[]types.SourceToken]
	Currencies    Value[[]types.Currency]
	GasPrice      Value[types.GasPrice]
	ExpectedRate  Value[types.ExpectedRate]
	ApproveGas    Value[*big.Int]
	TradeGas      Value[*big.Int]
	ApproveTxHash Value[string]
	TradeTxHash   Value[string]
	Progress      Value[bool]
	Attempt       Value[Attempt]
	Error         Value[error]
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{}
}

// Session is wallet state shared between screens
type Session struct {
	Wallet Value[types.Wallet]
	Tokens Value[[]types.Token]
	// Balances maps a token address (or types.NativeSymbol for the base
	// currency) to a balance in whole token units.
	Balances Value[map[string]string]
}

// NewSession creates an empty session
func NewSession() *Session {
	return &Session{}
}
