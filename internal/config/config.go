// Package config loads the daemon configuration
package config

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"regexp"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"github.com/exchangev2/ordersig/internal/logger"
	"github.com/exchangev2/ordersig/mechanisms/evm"
	"github.com/exchangev2/ordersig/mechanisms/evm/order"
)

// Config is the daemon configuration
type Config struct {
	Server  ServerConfig   `yaml:"server" json:"server"`
	Log     logger.Config  `yaml:"log" json:"log"`
	Domain  DomainConfig   `yaml:"domain" json:"domain"`
	Ledger  LedgerConfig   `yaml:"ledger" json:"ledger"`
	Schemas []SchemaConfig `yaml:"schemas" json:"schemas"`
}

// ServerConfig configures the HTTP listener
type ServerConfig struct {
	Addr               string `yaml:"addr" json:"addr"`
	ShutdownTimeoutSec int    `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// ShutdownTimeout returns the graceful shutdown timeout
func (c *ServerConfig) ShutdownTimeout() time.Duration {
	if c.ShutdownTimeoutSec <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.ShutdownTimeoutSec) * time.Second
}

// DomainConfig is the default signing domain, the exchange deployment the
// daemon validates orders for. Either chain_id or network selects the chain.
type DomainConfig struct {
	Name              string `yaml:"name" json:"name"`
	Version           string `yaml:"version" json:"version"`
	ChainID           int64  `yaml:"chain_id" json:"chain_id"`
	Network           string `yaml:"network" json:"network"` // CAIP-2, e.g. eip155:8453
	VerifyingContract string `yaml:"verifying_contract" json:"verifying_contract"`
}

// LedgerConfig configures the RPC endpoint used for contract makers
type LedgerConfig struct {
	RPCURL                 string `yaml:"rpc_url" json:"rpc_url"`
	AllowUndeployedWallets bool   `yaml:"allow_undeployed_wallets" json:"allow_undeployed_wallets"`
}

// SchemaConfig declares an additional record type
type SchemaConfig struct {
	Name   string               `yaml:"name" json:"name"`
	Fields []evm.TypedDataField `yaml:"fields" json:"fields"`
}

var envRegex = regexp.MustCompile(`\$\{([^:}]+)(?::([^}]*))?\}`)

// ExpandEnv expands ${VAR} and ${VAR:default} references
func ExpandEnv(s string) string {
	return envRegex.ReplaceAllStringFunc(s, func(m string) string {
		matches := envRegex.FindStringSubmatch(m)
		if val, ok := os.LookupEnv(matches[1]); ok {
			return val
		}
		return matches[2]
	})
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:               ":8080",
			ShutdownTimeoutSec: 10,
		},
		Log: logger.DefaultConfig(),
		Domain: DomainConfig{
			Name:              order.DomainName,
			Version:           order.DomainVersion,
			ChainID:           31337,
			VerifyingContract: "0x0000000000000000000000000000000000000000",
		},
	}
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. An empty path loads the defaults only.
func Load(path string) (*Config, error) {
	if path == "" {
		cfg := Default()
		overrideFromEnv(cfg)
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	overrideFromEnv(cfg)
	return cfg, nil
}

// Parse decodes YAML over the defaults after expanding ${VAR:default}
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal([]byte(ExpandEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

func overrideFromEnv(cfg *Config) {
	if v := os.Getenv("ORDERSIG_HTTP_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("ORDERSIG_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("ORDERSIG_RPC_URL"); v != "" {
		cfg.Ledger.RPCURL = v
	}
}

// Validate checks the configuration
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if _, err := c.Domain.TypedDataDomain(); err != nil {
		errs = append(errs, err)
	}

	seen := make(map[string]bool, len(c.Schemas))
	for i, s := range c.Schemas {
		switch {
		case s.Name == "":
			errs = append(errs, fmt.Errorf("schemas[%d].name is required", i))
		case seen[s.Name]:
			errs = append(errs, fmt.Errorf("schemas[%d]: %s is declared twice", i, s.Name))
		case len(s.Fields) == 0:
			errs = append(errs, fmt.Errorf("schemas[%d]: %s has no fields", i, s.Name))
		}
		seen[s.Name] = true
	}
	return errors.Join(errs...)
}

// TypedDataDomain resolves the configured domain
func (d *DomainConfig) TypedDataDomain() (evm.TypedDataDomain, error) {
	var chainID *big.Int
	switch {
	case d.Network != "":
		id, err := evm.GetEvmChainId(d.Network)
		if err != nil {
			return evm.TypedDataDomain{}, fmt.Errorf("domain.network: %w", err)
		}
		if d.ChainID != 0 && id.Cmp(big.NewInt(d.ChainID)) != 0 {
			return evm.TypedDataDomain{}, fmt.Errorf("domain.chain_id %d does not match network %s", d.ChainID, d.Network)
		}
		chainID = id
	case d.ChainID > 0:
		chainID = big.NewInt(d.ChainID)
	default:
		return evm.TypedDataDomain{}, errors.New("domain.chain_id or domain.network is required")
	}

	if !evm.IsValidAddress(d.VerifyingContract) {
		return evm.TypedDataDomain{}, fmt.Errorf("domain.verifying_contract %q is not an address", d.VerifyingContract)
	}

	return evm.TypedDataDomain{
		Name:              d.Name,
		Version:           d.Version,
		ChainID:           chainID,
		VerifyingContract: common.HexToAddress(d.VerifyingContract),
	}, nil
}

// RegisterSchemas adds the configured record types to reg
func (c *Config) RegisterSchemas(reg *evm.TypeRegistry) error {
	for _, s := range c.Schemas {
		if err := reg.Register(s.Name, s.Fields); err != nil {
			return fmt.Errorf("schema %s: %w", s.Name, err)
		}
	}
	return nil
}
