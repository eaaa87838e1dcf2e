package config

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/84hero/ens-namer/pkg/chain"
	"github.com/84hero/ens-namer/pkg/rpc"
	"github.com/84hero/ens-namer/pkg/sink"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/viper"
)

const EnvPrefix = "NAMER"

var ErrNoWallet = errors.New("wallet.private_key is not set")

type Config struct {
	Project       string                 `mapstructure:"project"`
	Log           LogConfig              `mapstructure:"log"`
	Wallet        WalletConfig           `mapstructure:"wallet"`
	OpType        string                 `mapstructure:"op_type"`
	Confirmations uint64                 `mapstructure:"confirmations"`
	PollInterval  time.Duration          `mapstructure:"poll_interval"`
	Chains        map[string]ChainConfig `mapstructure:"chains"`
	Metrics       MetricsConfig          `mapstructure:"metrics"`
	Journal       JournalConfig          `mapstructure:"journal"`
}

type LogConfig struct {
	Level string `mapstructure:"level"` // debug, info, warn, error
}

type WalletConfig struct {
	PrivateKey string `mapstructure:"private_key"`
}

// ChainConfig lists the RPC endpoints for one chain. Setting Registry
// registers a custom profile under the chain's key, replacing any built-in.
type ChainConfig struct {
	RPC []rpc.NodeConfig `mapstructure:"rpc_nodes"`

	ChainID            uint64 `mapstructure:"chain_id"`
	Registry           string `mapstructure:"registry"`
	PublicResolver     string `mapstructure:"public_resolver"`
	NameWrapper        string `mapstructure:"name_wrapper"`
	ReverseRegistrar   string `mapstructure:"reverse_registrar"`
	L2ReverseRegistrar string `mapstructure:"l2_reverse_registrar"`
	CoinType           uint64 `mapstructure:"coin_type"`
	Settlement         string `mapstructure:"settlement"`
}

type MetricsConfig struct {
	Enabled    bool               `mapstructure:"enabled"`
	Async      bool               `mapstructure:"async"`
	BufferSize int                `mapstructure:"buffer_size"`
	Timeout    time.Duration      `mapstructure:"timeout"`
	Outputs    sink.OutputsConfig `mapstructure:"outputs"`
}

// JournalConfig selects the run journal backend: memory, postgres or redis.
// The memory backend only lives as long as the process.
type JournalConfig struct {
	Backend  string        `mapstructure:"backend"`
	URL      string        `mapstructure:"url"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"` // redis only, 0 keeps records
}

// Load reads path (skipped when empty) with NAMER_* environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("project", "ens-namer")
	v.SetDefault("log.level", "info")
	v.SetDefault("wallet.private_key", "")
	v.SetDefault("op_type", "set-name")
	v.SetDefault("confirmations", 1)
	v.SetDefault("poll_interval", 2*time.Second)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.async", true)
	v.SetDefault("metrics.buffer_size", 64)
	v.SetDefault("metrics.timeout", 10*time.Second)
	v.SetDefault("journal.backend", "memory")
	v.SetDefault("journal.prefix", "namer_")
	v.SetDefault("journal.ttl", time.Duration(0))

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.Confirmations == 0 {
		cfg.Confirmations = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.Metrics.Enabled && !cfg.Metrics.Outputs.AnyEnabled() {
		cfg.Metrics.Outputs.Webhook.Enabled = true
	}

	return &cfg, nil
}

// PrivateKey parses the configured hex key, with or without 0x.
func (c *Config) PrivateKey() (*ecdsa.PrivateKey, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(c.Wallet.PrivateKey), "0x")
	if raw == "" {
		return nil, ErrNoWallet
	}
	key, err := crypto.HexToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("wallet.private_key: %w", err)
	}
	return key, nil
}

// RegisterProfiles registers every chain entry that defines its own contracts.
func (c *Config) RegisterProfiles() error {
	for name, cc := range c.Chains {
		if cc.Registry == "" {
			continue
		}
		p := chain.Profile{
			Name:               name,
			ChainID:            cc.ChainID,
			Registry:           cc.Registry,
			PublicResolver:     cc.PublicResolver,
			NameWrapper:        cc.NameWrapper,
			ReverseRegistrar:   cc.ReverseRegistrar,
			L2ReverseRegistrar: cc.L2ReverseRegistrar,
			CoinType:           cc.CoinType,
			Settlement:         cc.Settlement,
		}
		if err := chain.Validate(p); err != nil {
			return fmt.Errorf("chains.%s: %w", name, err)
		}
		chain.Register(p)
	}
	return nil
}

// Nodes returns the RPC endpoints configured for chain name.
func (c *Config) Nodes(name string) ([]rpc.NodeConfig, bool) {
	cc, ok := c.Chains[name]
	if !ok || len(cc.RPC) == 0 {
		return nil, false
	}
	return cc.RPC, true
}
