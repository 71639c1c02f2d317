package swap

import (
	"context"
	"time"

	"kyber-swap/pkg/metrics"
	"kyber-swap/pkg/registry"
	"kyber-swap/pkg/types"
)

// WatchExpectedRate polls the expected rate for the intent's token pair:
// once immediately, then every rate interval. A new watch replaces the
// previous one together with all of its outstanding requests.
func (c *Controller) WatchExpectedRate(intent types.SwapIntent) {
	c.StopWatchingExpectedRate()
	if c.registry.Closed() {
		return
	}

	if err := validateIntent(intent); err != nil {
		c.fail(StepExpectedRate, err)
		return
	}

	timer := c.registry.Start(c.ctx, registry.SlotRateTimer)
	// requests of this watch share one scope so that ticks may overlap
	scope := registry.NewHandle(timer.Context())
	c.registry.Register(registry.SlotRateRequest, scope)
	if timer.Cancelled() {
		return
	}

	token := intent.Token.Info
	currency := intent.Currency.Address
	c.log.Debug("Watching expected rate", "from", token.Symbol, "to", intent.Currency.Symbol, "interval", c.rateInterval)

	metrics.ActiveWatches.Inc()
	go func() {
		defer metrics.ActiveWatches.Dec()

		ticker := time.NewTicker(c.rateInterval)
		defer ticker.Stop()

		c.requestExpectedRate(scope, token, currency)
		for {
			select {
			case <-timer.Context().Done():
				return
			case <-ticker.C:
				c.requestExpectedRate(scope, token, currency)
			}
		}
	}()
}

// StopWatchingExpectedRate stops the poller. Responses still in flight are
// dropped.
func (c *Controller) StopWatchingExpectedRate() {
	c.registry.Cancel(registry.SlotRateRequest)
	c.registry.Cancel(registry.SlotRateTimer)
}

func (c *Controller) requestExpectedRate(scope *registry.Handle, token types.TokenInfo, currency string) {
	if scope.Cancelled() {
		return
	}
	wallet, ok := c.session.Wallet.Get()
	if !ok {
		c.registry.Deliver(scope, func() {
			c.fail(StepExpectedRate, ErrNoWallet)
		})
		return
	}

	metrics.RatePollsTotal.Inc()
	launch(c, scope, StepExpectedRate,
		func(ctx context.Context) (types.ExpectedRate, error) {
			return c.svc.ExpectedRate(ctx, wallet, token, currency)
		},
		func(rate types.ExpectedRate) {
			c.store.ExpectedRate.Set(rate)
		})
}
