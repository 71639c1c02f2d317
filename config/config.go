package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"kyber-swap/pkg/cache"
	"kyber-swap/pkg/kyber"
)

// Catalog sources
const (
	CatalogKyber    = "kyber"
	CatalogOneClick = "oneclick"
)

// Config holds the application configuration
type Config struct {
	RPCURL       string
	ChainID      int64
	ProxyAddress string
	WalletID     string
	PrivateKey   string

	APIBaseURL string
	APITimeout time.Duration

	CatalogSource string
	OneClick      OneClickConfig
	Redis         RedisConfig

	GasLimitRatio decimal.Decimal
	RateInterval  time.Duration

	LogLevel    string
	MetricsAddr string
}

// OneClickConfig configures the 1Click catalog source
type OneClickConfig struct {
	JWTToken string
	BaseURL  string
}

// RedisConfig configures the catalog cache. Empty URL disables it.
type RedisConfig struct {
	URL string
	TTL time.Duration
}

// LoadFile reads configuration from environment variables and a config file.
// Empty path searches for .kyber-swap.yaml in $HOME and the working directory.
func LoadFile(path string) (*Config, error) {
	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName(".kyber-swap")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("$HOME")
		viper.AddConfigPath(".")
	}

	// Set default values
	viper.SetDefault("chain_id", 1)
	viper.SetDefault("proxy_address", kyber.DefaultProxyAddress)
	viper.SetDefault("api.base_url", kyber.DefaultBaseURL)
	viper.SetDefault("api.timeout", kyber.DefaultTimeout)
	viper.SetDefault("catalog.source", CatalogKyber)
	viper.SetDefault("oneclick.base_url", "https://1click.chaindefuser.com")
	viper.SetDefault("redis.ttl", cache.DefaultTTL)
	viper.SetDefault("swap.gas_limit_ratio", "1.2")
	viper.SetDefault("swap.rate_interval", "10s")
	viper.SetDefault("log_level", "info")

	// Read from environment variables
	viper.SetEnvPrefix("KYBER_SWAP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Read config file (optional unless given explicitly)
	if err := viper.ReadInConfig(); err != nil && path != "" {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	ratio, err := decimal.NewFromString(viper.GetString("swap.gas_limit_ratio"))
	if err != nil {
		return nil, fmt.Errorf("invalid swap.gas_limit_ratio: %w", err)
	}

	// Create config struct
	cfg := &Config{
		RPCURL:        viper.GetString("rpc_url"),
		ChainID:       viper.GetInt64("chain_id"),
		ProxyAddress:  viper.GetString("proxy_address"),
		WalletID:      viper.GetString("wallet_id"),
		PrivateKey:    viper.GetString("private_key"),
		APIBaseURL:    viper.GetString("api.base_url"),
		APITimeout:    viper.GetDuration("api.timeout"),
		CatalogSource: strings.ToLower(viper.GetString("catalog.source")),
		OneClick: OneClickConfig{
			JWTToken: viper.GetString("oneclick.jwt_token"),
			BaseURL:  viper.GetString("oneclick.base_url"),
		},
		Redis: RedisConfig{
			URL: viper.GetString("redis.url"),
			TTL: viper.GetDuration("redis.ttl"),
		},
		GasLimitRatio: ratio,
		RateInterval:  viper.GetDuration("swap.rate_interval"),
		LogLevel:      viper.GetString("log_level"),
		MetricsAddr:   viper.GetString("metrics_addr"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the settings every command relies on
func (c *Config) Validate() error {
	if !common.IsHexAddress(c.ProxyAddress) {
		return fmt.Errorf("invalid proxy_address: %q", c.ProxyAddress)
	}
	if c.WalletID != "" && !common.IsHexAddress(c.WalletID) {
		return fmt.Errorf("invalid wallet_id: %q", c.WalletID)
	}
	if c.ChainID <= 0 {
		return fmt.Errorf("chain_id must be positive")
	}

	switch c.CatalogSource {
	case CatalogKyber:
	case CatalogOneClick:
		if c.OneClick.JWTToken == "" {
			return fmt.Errorf("JWT token not found. Please set KYBER_SWAP_ONECLICK_JWT_TOKEN or oneclick.jwt_token in .kyber-swap.yaml")
		}
	default:
		return fmt.Errorf("unknown catalog.source %q (expected %s or %s)", c.CatalogSource, CatalogKyber, CatalogOneClick)
	}

	if c.GasLimitRatio.LessThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("swap.gas_limit_ratio must be at least 1, got %s", c.GasLimitRatio)
	}
	if c.RateInterval <= 0 {
		return fmt.Errorf("swap.rate_interval must be positive")
	}
	return nil
}

// RequireChain checks the settings needed to talk to the node
func (c *Config) RequireChain() error {
	if c.RPCURL == "" {
		return fmt.Errorf("RPC URL not found. Please set KYBER_SWAP_RPC_URL environment variable or rpc_url in .kyber-swap.yaml")
	}
	return nil
}

// RequireSigner checks the settings needed to send transactions
func (c *Config) RequireSigner() error {
	if err := c.RequireChain(); err != nil {
		return err
	}
	if c.PrivateKey == "" {
		return fmt.Errorf("private key not found. Please set KYBER_SWAP_PRIVATE_KEY environment variable")
	}
	return nil
}
