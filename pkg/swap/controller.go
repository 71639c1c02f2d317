package swap

import (
	"context"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"kyber-swap/pkg/metrics"
	"kyber-swap/pkg/registry"
	"kyber-swap/pkg/state"
	"kyber-swap/pkg/types"
)

// DefaultRateInterval is how often the expected rate is refreshed while watched
const DefaultRateInterval = 10 * time.Second

// Controller drives the swap screen: it relays service calls into the store
// and owns the cancellation of everything it started.
type Controller struct {
	svc          Service
	session      *state.Session
	store        *state.Store
	registry     *registry.Registry
	log          *slog.Logger
	ratio        decimal.Decimal
	rateInterval time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	deriveMu    sync.Mutex
	attemptMu   sync.Mutex
	attempt     state.Attempt
	unsubscribe []func()
	closeOnce   sync.Once
}

// Option configures a Controller
type Option func(*Controller)

// WithLogger sets the logger
func WithLogger(log *slog.Logger) Option {
	return func(c *Controller) {
		c.log = log
	}
}

// WithGasLimitRatio sets the margin applied to gas estimates
func WithGasLimitRatio(ratio decimal.Decimal) Option {
	return func(c *Controller) {
		c.ratio = ratio
	}
}

// WithRateInterval sets the expected rate polling interval
func WithRateInterval(interval time.Duration) Option {
	return func(c *Controller) {
		if interval > 0 {
			c.rateInterval = interval
		}
	}
}

// WithStore publishes into an existing store
func WithStore(store *state.Store) Option {
	return func(c *Controller) {
		c.store = store
	}
}

// NewController creates a controller bound to the session. The source token
// list is rebuilt whenever the session tokens, session balances or the
// currency catalog change.
func NewController(svc Service, session *state.Session, opts ...Option) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		svc:          svc,
		session:      session,
		store:        state.NewStore(),
		registry:     registry.New(),
		log:          slog.Default(),
		ratio:        DefaultGasLimitRatio,
		rateInterval: DefaultRateInterval,
		ctx:          ctx,
		cancel:       cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With("component", "swap")

	c.unsubscribe = append(c.unsubscribe,
		session.Tokens.Subscribe(func([]types.Token) { c.BuildSourceTokenList() }),
		session.Balances.Subscribe(func(map[string]string) { c.BuildSourceTokenList() }),
		c.store.Currencies.Subscribe(func([]types.Currency) { c.BuildSourceTokenList() }),
	)

	return c
}

// Store returns the observable state the controller publishes into
func (c *Controller) Store() *state.Store {
	return c.store
}

// Close cancels all in-flight work. Nothing is published afterwards.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		c.registry.CancelAll()
		c.cancel()
		for _, unsubscribe := range c.unsubscribe {
			unsubscribe()
		}
		c.log.Debug("Controller closed")
	})
}

// LoadCatalog fetches the currency catalog and replaces the currency list.
func (c *Controller) LoadCatalog() {
	if c.registry.Closed() {
		return
	}
	c.store.Progress.Set(true)
	h := c.registry.Start(c.ctx, registry.SlotCatalog)
	launch(c, h, StepCatalog, c.svc.Currencies, func(currencies []types.Currency) {
		c.log.Debug("Currency catalog loaded", "count", len(currencies))
		c.store.Currencies.Set(currencies)
		c.store.Progress.Set(false)
	})
}

// LoadGasPrice fetches the network gas price.
func (c *Controller) LoadGasPrice() {
	if c.registry.Closed() {
		return
	}
	c.store.Progress.Set(true)
	h := c.registry.Start(c.ctx, registry.SlotGasPrice)
	launch(c, h, StepGasPrice, c.svc.GasPrice, func(price types.GasPrice) {
		c.log.Debug("Gas price loaded", "standard", price.Standard.String())
		c.store.GasPrice.Set(price)
		c.store.Progress.Set(false)
	})
}

// BuildSourceTokenList derives the tradable held tokens from the session and
// the catalog. It does nothing until tokens, balances and currencies are all
// present.
func (c *Controller) BuildSourceTokenList() {
	if c.registry.Closed() {
		return
	}
	c.deriveMu.Lock()
	currencies, _ := c.store.Currencies.Get()
	tokens, _ := c.session.Tokens.Get()
	balances, _ := c.session.Balances.Get()
	if currencies == nil || tokens == nil || balances == nil {
		c.deriveMu.Unlock()
		return
	}

	h := c.registry.Start(c.ctx, registry.SlotFilter)
	list, err := FilterSourceTokens(tokens, balances, currencies)
	c.deriveMu.Unlock()

	c.registry.Deliver(h, func() {
		if err != nil {
			c.fail(StepSourceTokens, err)
			return
		}
		c.log.Debug("Source token list built", "count", len(list))
		c.store.SourceTokens.Set(list)
		c.store.Progress.Set(false)
	})
}

// EstimateGas starts a swap attempt. Tokens other than the base currency
// first have their allowance checked: when the amount exceeds it, approval
// gas is estimated, otherwise trade gas is.
func (c *Controller) EstimateGas(intent types.SwapIntent) {
	if c.registry.Closed() {
		return
	}
	c.store.Progress.Set(true)
	c.newAttempt()

	if err := validateIntent(intent); err != nil {
		c.fail(StepEstimateGas, err)
		return
	}
	wallet, ok := c.session.Wallet.Get()
	if !ok {
		c.fail(StepEstimateGas, ErrNoWallet)
		return
	}

	if !intent.Token.Info.IsNative() {
		c.confirmAllowance(wallet, intent)
	} else {
		c.estimateTradeGas(wallet, intent)
	}
}

func (c *Controller) confirmAllowance(wallet types.Wallet, intent types.SwapIntent) {
	h := c.registry.Start(c.ctx, registry.SlotRequest)
	if h.Cancelled() {
		return
	}
	c.setStage(state.StageAllowanceCheck)
	launch(c, h, StepAllowance,
		func(ctx context.Context) (*big.Int, error) {
			return nonNil(c.svc.Allowance(ctx, wallet, intent.Token.Info))
		},
		func(allowance *big.Int) {
			amount := ToBaseUnits(intent.Amount, intent.Token.Info.Decimals)
			c.log.Debug("Allowance checked", c.attemptAttr(), "allowance", allowance.String(), "amount", amount.String())
			if amount.Cmp(allowance) > 0 {
				c.estimateApproveGas(wallet, intent)
			} else {
				c.estimateTradeGas(wallet, intent)
			}
		})
}

func (c *Controller) estimateApproveGas(wallet types.Wallet, intent types.SwapIntent) {
	h := c.registry.Start(c.ctx, registry.SlotRequest)
	if h.Cancelled() {
		return
	}
	c.store.Progress.Set(true)
	c.setStage(state.StageApproveGasEstimate)
	launch(c, h, StepApproveGas,
		func(ctx context.Context) (*big.Int, error) {
			return nonNil(c.svc.EstimateApproveGas(ctx, approveRequest(wallet, intent, nil)))
		},
		func(raw *big.Int) {
			gas := ApplyGasMargin(raw, c.ratio)
			c.log.Debug("Approve gas estimated", c.attemptAttr(), "raw", raw.String(), "gas", gas.String())
			c.store.ApproveGas.Set(gas)
			c.setStage(state.StageAwaitingApproval)
			c.store.Progress.Set(false)
		})
}

// EstimateTradeGas estimates gas for the trade itself, typically once the
// approval transaction has been sent.
func (c *Controller) EstimateTradeGas(wallet types.Wallet, intent types.SwapIntent) {
	if c.registry.Closed() {
		return
	}
	c.store.Progress.Set(true)
	c.ensureAttempt()
	if err := validateIntent(intent); err != nil {
		c.fail(StepTradeGas, err)
		return
	}
	c.estimateTradeGas(wallet, intent)
}

func (c *Controller) estimateTradeGas(wallet types.Wallet, intent types.SwapIntent) {
	h := c.registry.Start(c.ctx, registry.SlotRequest)
	if h.Cancelled() {
		return
	}
	c.store.Progress.Set(true)
	c.setStage(state.StageTradeGasEstimate)
	launch(c, h, StepTradeGas,
		func(ctx context.Context) (*big.Int, error) {
			return nonNil(c.svc.EstimateTradeGas(ctx, tradeRequest(wallet, intent, nil)))
		},
		func(raw *big.Int) {
			gas := ApplyGasMargin(raw, c.ratio)
			c.log.Debug("Trade gas estimated", c.attemptAttr(), "raw", raw.String(), "gas", gas.String())
			c.store.TradeGas.Set(gas)
			c.setStage(state.StageAwaitingTrade)
			c.store.Progress.Set(false)
		})
}

// Approve submits the approval transaction. It does not continue to the
// trade; the caller decides when to estimate and broadcast it.
func (c *Controller) Approve(wallet types.Wallet, intent types.SwapIntent, gasLimit *big.Int) {
	if c.registry.Closed() {
		return
	}
	c.store.Progress.Set(true)
	c.ensureAttempt()
	if err := validateIntent(intent); err != nil {
		c.fail(StepApprove, err)
		return
	}
	h := c.registry.Start(c.ctx, registry.SlotRequest)
	if h.Cancelled() {
		return
	}
	c.setStage(state.StageApproving)
	launch(c, h, StepApprove,
		func(ctx context.Context) (string, error) {
			return c.svc.Approve(ctx, approveRequest(wallet, intent, gasLimit))
		},
		func(txHash string) {
			c.log.Info("Approval sent", c.attemptAttr(), "tx_hash", txHash)
			c.store.ApproveTxHash.Set(txHash)
			c.setStage(state.StageApproved)
			c.store.Progress.Set(false)
		})
}

// BroadcastTrade submits the trade with the user's minimum acceptable rate.
func (c *Controller) BroadcastTrade(wallet types.Wallet, intent types.SwapIntent, gasLimit *big.Int) {
	if c.registry.Closed() {
		return
	}
	c.store.Progress.Set(true)
	c.ensureAttempt()
	if err := validateIntent(intent); err != nil {
		c.fail(StepTrade, err)
		return
	}
	h := c.registry.Start(c.ctx, registry.SlotRequest)
	if h.Cancelled() {
		return
	}
	c.setStage(state.StageBroadcasting)
	launch(c, h, StepTrade,
		func(ctx context.Context) (string, error) {
			return c.svc.Trade(ctx, tradeRequest(wallet, intent, gasLimit))
		},
		func(txHash string) {
			c.log.Info("Trade sent", c.attemptAttr(), "tx_hash", txHash)
			c.store.TradeTxHash.Set(txHash)
			c.setStage(state.StageDone)
			c.store.Progress.Set(false)
		})
}

// launch runs call on its own goroutine and delivers the result through the
// registry so that a cancelled handle never publishes.
func launch[T any](c *Controller, h *registry.Handle, step string, call func(context.Context) (T, error), onSuccess func(T)) {
	if h.Cancelled() {
		return
	}
	go func() {
		start := time.Now()
		res, err := call(h.Context())
		metrics.StepLatency.WithLabelValues(step).Observe(time.Since(start).Seconds())

		delivered := c.registry.Deliver(h, func() {
			if err != nil {
				c.fail(step, err)
				return
			}
			onSuccess(res)
		})

		switch {
		case !delivered:
			metrics.StepsTotal.WithLabelValues(step, "cancelled").Inc()
			c.log.Debug("Step result dropped", "step", step)
		case err != nil:
			metrics.StepsTotal.WithLabelValues(step, "error").Inc()
		default:
			metrics.StepsTotal.WithLabelValues(step, "ok").Inc()
		}
	}()
}

// fail reports err on the error sink. Progress is cleared for every step
// except the rate poll, which never sets it.
func (c *Controller) fail(step string, err error) {
	c.log.Error("Step failed", "step", step, c.attemptAttr(), "error", err)
	if isPipelineStep(step) {
		c.setStage(state.StageFailed)
	}
	c.store.Error.Set(&StepError{Step: step, Err: err})
	if step != StepExpectedRate {
		c.store.Progress.Set(false)
	}
}

func (c *Controller) newAttempt() {
	c.attemptMu.Lock()
	c.attempt = state.Attempt{ID: uuid.New(), Stage: state.StageIdle}
	attempt := c.attempt
	c.attemptMu.Unlock()

	c.log.Debug("Swap attempt started", "attempt", attempt.ID.String())
	c.store.Attempt.Set(attempt)
}

func (c *Controller) ensureAttempt() {
	c.attemptMu.Lock()
	empty := c.attempt.ID == uuid.Nil
	c.attemptMu.Unlock()
	if empty {
		c.newAttempt()
	}
}

func (c *Controller) setStage(stage state.Stage) {
	c.attemptMu.Lock()
	c.attempt.Stage = stage
	attempt := c.attempt
	c.attemptMu.Unlock()

	c.store.Attempt.Set(attempt)
}

func (c *Controller) attemptAttr() slog.Attr {
	c.attemptMu.Lock()
	defer c.attemptMu.Unlock()
	return slog.String("attempt", c.attempt.ID.String())
}

// nonNil turns an empty service answer into ErrEmptyResult
func nonNil(v *big.Int, err error) (*big.Int, error) {
	if err == nil && v == nil {
		return nil, ErrEmptyResult
	}
	return v, err
}

func validateIntent(intent types.SwapIntent) error {
	if intent.Token.Info.Address == "" || intent.Currency.Address == "" {
		return ErrMissingIntent
	}
	return nil
}
