package chains

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"poolLedger/internal/model"
)

//go:embed chains.yaml
var defaultChainsYAML []byte

// NativeToken is the display metadata of a chain's gas asset.
type NativeToken struct {
	Symbol   string `yaml:"symbol"`
	Name     string `yaml:"name"`
	Decimals uint8  `yaml:"decimals"`
}

// TokenDefinition pins metadata for a token whose contract cannot be read reliably.
type TokenDefinition struct {
	Address  string `yaml:"address"`
	Symbol   string `yaml:"symbol"`
	Name     string `yaml:"name"`
	Decimals uint8  `yaml:"decimals"`
}

// Config holds the per-chain addresses and thresholds used by pricing and the ledger.
type Config struct {
	ChainID              uint64            `yaml:"chain_id"`
	Name                 string            `yaml:"name"`
	FactoryAddress       string            `yaml:"factory_address"`
	ReferencePool        string            `yaml:"reference_pool"`
	StablecoinIsToken0   bool              `yaml:"stablecoin_is_token0"`
	WrappedNativeAddress string            `yaml:"wrapped_native_address"`
	MinimumNativeLocked  string            `yaml:"minimum_native_locked"`
	StablecoinAddresses  []string          `yaml:"stablecoin_addresses"`
	WhitelistTokens      []string          `yaml:"whitelist_tokens"`
	TokenOverrides       []TokenDefinition `yaml:"token_overrides"`
	PoolsToSkip          []string          `yaml:"pools_to_skip"`
	NativeToken          NativeToken       `yaml:"native_token"`
	RPCURLs              []string          `yaml:"rpc_urls"`

	minimumNativeLocked decimal.Decimal
	stablecoins         map[string]struct{}
	whitelist           map[string]struct{}
	skip                map[string]struct{}
}

type file struct {
	Chains []Config `yaml:"chains"`
}

// Registry maps chain ids to their settings.
type Registry struct {
	chains map[uint64]*Config
}

// Defaults returns the embedded chain table.
func Defaults() (*Registry, error) {
	return Parse(defaultChainsYAML)
}

// Load returns the embedded chain table, with chains from path added or
// replaced by chain id. An empty path returns the defaults.
func Load(path string) (*Registry, error) {
	reg, err := Defaults()
	if err != nil {
		return nil, fmt.Errorf("parse embedded chains: %w", err)
	}
	if path == "" {
		return reg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read chains file: %w", err)
	}
	extra, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse chains file %s: %w", path, err)
	}
	for id, cfg := range extra.chains {
		reg.chains[id] = cfg
	}
	return reg, nil
}

// Parse decodes a chains YAML document.
func Parse(data []byte) (*Registry, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	reg := &Registry{chains: make(map[uint64]*Config, len(f.Chains))}
	for i := range f.Chains {
		cfg := f.Chains[i]
		if err := cfg.normalize(); err != nil {
			return nil, fmt.Errorf("chain %d: %w", cfg.ChainID, err)
		}
		reg.chains[cfg.ChainID] = &cfg
	}
	return reg, nil
}

// Get returns the settings for chainID.
func (r *Registry) Get(chainID uint64) (*Config, bool) {
	cfg, ok := r.chains[chainID]
	return cfg, ok
}

// ChainIDs lists the configured chains.
func (r *Registry) ChainIDs() []uint64 {
	out := make([]uint64, 0, len(r.chains))
	for id := range r.chains {
		out = append(out, id)
	}
	return out
}

func (c *Config) normalize() error {
	if c.ChainID == 0 {
		return fmt.Errorf("chain_id is required")
	}
	if c.FactoryAddress == "" {
		return fmt.Errorf("factory_address is required")
	}
	c.FactoryAddress = strings.ToLower(c.FactoryAddress)
	c.ReferencePool = strings.ToLower(c.ReferencePool)
	c.WrappedNativeAddress = strings.ToLower(c.WrappedNativeAddress)

	minimum := c.MinimumNativeLocked
	if minimum == "" {
		minimum = "0"
	}
	d, err := decimal.NewFromString(minimum)
	if err != nil {
		return fmt.Errorf("minimum_native_locked: %w", err)
	}
	c.minimumNativeLocked = d

	if c.NativeToken.Decimals == 0 {
		c.NativeToken.Decimals = model.DefaultDecimals
	}
	for i := range c.TokenOverrides {
		c.TokenOverrides[i].Address = strings.ToLower(c.TokenOverrides[i].Address)
	}

	c.stablecoins = toSet(c.StablecoinAddresses)
	c.whitelist = toSet(c.WhitelistTokens)
	c.skip = toSet(c.PoolsToSkip)
	return nil
}

func toSet(addrs []string) map[string]struct{} {
	set := make(map[string]struct{}, len(addrs))
	for i, a := range addrs {
		addrs[i] = strings.ToLower(a)
		set[addrs[i]] = struct{}{}
	}
	return set
}

// MinimumNative returns the liquidity threshold used by the price search.
func (c *Config) MinimumNative() decimal.Decimal { return c.minimumNativeLocked }

func (c *Config) IsStablecoin(addr string) bool {
	_, ok := c.stablecoins[strings.ToLower(addr)]
	return ok
}

func (c *Config) IsWhitelisted(addr string) bool {
	_, ok := c.whitelist[strings.ToLower(addr)]
	return ok
}

func (c *Config) SkipPool(addr string) bool {
	_, ok := c.skip[strings.ToLower(addr)]
	return ok
}

// IsNativeOrWrapped reports whether addr is the wrapped native token or the zero address.
func (c *Config) IsNativeOrWrapped(addr string) bool {
	addr = strings.ToLower(addr)
	return addr == c.WrappedNativeAddress || addr == model.ZeroAddress
}

// TokenOverride returns the pinned metadata for addr, if any.
func (c *Config) TokenOverride(addr string) (TokenDefinition, bool) {
	addr = strings.ToLower(addr)
	for _, def := range c.TokenOverrides {
		if def.Address == addr {
			return def, true
		}
	}
	return TokenDefinition{}, false
}
