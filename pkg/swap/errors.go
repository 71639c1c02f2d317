package swap

import (
	"errors"
	"fmt"
)

var (
	// ErrNoWallet is reported when a step needs the session wallet and none is set
	ErrNoWallet = errors.New("no wallet selected")
	// ErrMissingIntent is reported when the swap intent lacks a token or currency
	ErrMissingIntent = errors.New("swap intent is missing a source token or target currency")
	// ErrEmptyResult is reported when the service answers without a value or an error
	ErrEmptyResult = errors.New("service returned an empty result")
)

// Step names used in errors, logs and metrics
const (
	StepCatalog      = "catalog"
	StepGasPrice     = "gas_price"
	StepSourceTokens = "source_tokens"
	StepExpectedRate = "expected_rate"
	StepEstimateGas  = "estimate_gas"
	StepAllowance    = "allowance"
	StepApproveGas   = "approve_gas"
	StepTradeGas     = "trade_gas"
	StepApprove      = "approve"
	StepTrade        = "trade"
)

// StepError is what the controller publishes on the error sink
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

func isPipelineStep(step string) bool {
	switch step {
	case StepEstimateGas, StepAllowance, StepApproveGas, StepTradeGas, StepApprove, StepTrade:
		return true
	default:
		return false
	}
}
