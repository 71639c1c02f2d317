package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/briandowns/spinner"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"kyber-swap/config"
	"kyber-swap/pkg/cache"
	"kyber-swap/pkg/client"
	"kyber-swap/pkg/kyber"
	"kyber-swap/pkg/metrics"
	"kyber-swap/pkg/state"
	"kyber-swap/pkg/swap"
	"kyber-swap/pkg/types"
)

// needs selects how much of the stack a command builds
type needs int

const (
	needCatalog needs = iota
	needChain
	needSigner
)

// app is the per-command wiring of config, service and controller
type app struct {
	cfg     *config.Config
	log     *slog.Logger
	json    bool
	catalog kyber.CatalogSource
	cache   *cache.Catalog // nil without Redis
	svc     *kyber.Service
	signer  *kyber.KeySigner
	session *state.Session
	ctrl    *swap.Controller

	closers []func()
}

func newApp(cmd *cobra.Command, need needs) (*app, error) {
	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	configPath, _ := cmd.Flags().GetString("config")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

	// Load configuration
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return nil, err
	}
	switch need {
	case needChain:
		err = cfg.RequireChain()
	case needSigner:
		err = cfg.RequireSigner()
	}
	if err != nil {
		return nil, err
	}

	log := newLogger(verbose, cfg.LogLevel)
	a := &app{
		cfg:     cfg,
		log:     log,
		json:    jsonOutput,
		session: state.NewSession(),
	}

	if metricsAddr == "" {
		metricsAddr = cfg.MetricsAddr
	}
	if metricsAddr != "" {
		srv := metrics.NewServer(metricsAddr, log)
		if err := srv.Start(); err != nil {
			return nil, fmt.Errorf("failed to start metrics server: %w", err)
		}
		a.closers = append(a.closers, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Stop(ctx)
		})
	}

	api := kyber.NewAPI(cfg.APIBaseURL, cfg.APITimeout, log)
	a.catalog = a.newCatalog(cmd.Context(), api)

	if need == needCatalog {
		a.svc = kyber.NewService(a.catalog, api, nil, log)
	} else {
		if err := a.connectChain(cmd.Context(), api); err != nil {
			a.Close()
			return nil, err
		}
	}

	a.ctrl = swap.NewController(a.svc, a.session,
		swap.WithLogger(log),
		swap.WithGasLimitRatio(cfg.GasLimitRatio),
		swap.WithRateInterval(cfg.RateInterval),
	)
	a.closers = append(a.closers, a.ctrl.Close)

	return a, nil
}

func (a *app) newCatalog(ctx context.Context, api *kyber.API) kyber.CatalogSource {
	var source kyber.CatalogSource = api
	if a.cfg.CatalogSource == config.CatalogOneClick {
		source = client.NewOneClickCatalog(a.cfg.OneClick.BaseURL, a.cfg.OneClick.JWTToken, a.log)
	}

	if a.cfg.Redis.URL == "" {
		return source
	}
	rdb, err := cache.NewClient(ctx, a.cfg.Redis.URL)
	if err != nil {
		a.log.Warn("Catalog cache disabled", "error", err)
		return source
	}
	a.closers = append(a.closers, func() { _ = rdb.Close() })
	a.cache = cache.NewCatalog(rdb, source, a.cfg.CatalogSource, a.cfg.Redis.TTL, a.log)
	return a.cache
}

func (a *app) connectChain(ctx context.Context, api *kyber.API) error {
	eth, err := ethclient.DialContext(ctx, a.cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("failed to connect to RPC endpoint: %w", err)
	}
	a.closers = append(a.closers, eth.Close)

	var signer kyber.Signer
	wallet := types.Wallet{}
	if a.cfg.PrivateKey != "" {
		a.signer, err = kyber.NewKeySigner(a.cfg.PrivateKey)
		if err != nil {
			return err
		}
		signer = a.signer
		wallet.Address = a.signer.Address()
	}

	chain, err := kyber.NewChain(eth, signer, kyber.ChainConfig{
		ProxyAddress: a.cfg.ProxyAddress,
		WalletID:     a.cfg.WalletID,
		ChainID:      a.cfg.ChainID,
	}, a.log)
	if err != nil {
		return err
	}

	a.svc = kyber.NewService(a.catalog, api, chain, a.log)
	a.session.Wallet.Set(wallet)
	return nil
}

// Close releases everything newApp opened, newest first
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// bindSpinner shows a spinner while the controller reports progress
func (a *app) bindSpinner(suffix string) func() {
	if a.json {
		return func() {}
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " " + suffix
	s.Writer = color.Output

	unsubscribe := a.ctrl.Store().Progress.Subscribe(func(busy bool) {
		if busy {
			s.Start()
		} else {
			s.Stop()
		}
	})
	return func() {
		unsubscribe()
		s.Stop()
	}
}

// await arms a listener on v and on the error sink, runs trigger and waits
// for the first value accepted by accept (nil accepts any value)
func await[T any](ctx context.Context, store *state.Store, v *state.Value[T], accept func(T) bool, trigger func()) (T, error) {
	var zero T
	values := make(chan T, 1)
	errs := make(chan error, 1)
	var armed atomic.Bool

	unsubscribeValue := v.Subscribe(func(val T) {
		if !armed.Load() || (accept != nil && !accept(val)) {
			return
		}
		select {
		case values <- val:
		default:
		}
	})
	defer unsubscribeValue()

	unsubscribeErr := store.Error.Subscribe(func(err error) {
		if !armed.Load() {
			return
		}
		select {
		case errs <- err:
		default:
		}
	})
	defer unsubscribeErr()

	armed.Store(true)
	trigger()

	select {
	case val := <-values:
		return val, nil
	case err := <-errs:
		return zero, err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
