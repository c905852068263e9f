package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
)

// Bank describes one lending/borrowing market instance for a token.
type Bank struct {
	Protocol            string             `json:"protocol"`
	Market              string             `json:"market"`
	Bank                string             `json:"bank"`
	AssetWeightLent     float64            `json:"assetWeightLent"`
	AssetWeightBorrowed float64            `json:"assetWeightBorrowed"`
	MaxLeverage         map[string]float64 `json:"maxLeverage,omitempty"`
}

// TokenInfo is the static per-symbol configuration.
type TokenInfo struct {
	Mint            string `json:"mint"`
	Banks           []Bank `json:"banks"`
	HasStakingYield bool   `json:"hasStakingYield"`
}

// TokenConfig maps uppercase token symbols to their configuration. It is
// loaded once and read-only for the life of the process.
type TokenConfig map[string]TokenInfo

// LoadTokenConfig reads the token configuration JSON. Symbols are uppercased
// on load so lookups are case-stable.
func LoadTokenConfig(path string) (TokenConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read token config: %w", err)
	}

	var parsed map[string]TokenInfo
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse token config: %w", err)
	}

	cfg := make(TokenConfig, len(parsed))
	for symbol, info := range parsed {
		cfg[strings.ToUpper(symbol)] = info
	}
	return cfg, nil
}

var (
	tokenCacheMu sync.Mutex
	tokenCache   TokenConfig
	tokenCacheOK bool
)

// CachedTokenConfig loads the token configuration once and reuses it for
// subsequent calls. A missing file yields an empty config rather than an
// error, matching how the rest of the pipeline treats unavailable data.
func CachedTokenConfig(path string) TokenConfig {
	tokenCacheMu.Lock()
	defer tokenCacheMu.Unlock()

	if tokenCacheOK {
		return tokenCache
	}
	cfg, err := LoadTokenConfig(path)
	if err != nil {
		cfg = TokenConfig{}
	}
	tokenCache = cfg
	tokenCacheOK = true
	return tokenCache
}

// ClearTokenConfigCache resets the loader cache. Test helper.
func ClearTokenConfigCache() {
	tokenCacheMu.Lock()
	defer tokenCacheMu.Unlock()
	tokenCache = nil
	tokenCacheOK = false
}

// ProtocolMarketPairs returns (protocol, market, bank address) triples for the
// asset, in config order.
func (tc TokenConfig) ProtocolMarketPairs(asset string) []Bank {
	info, ok := tc[strings.ToUpper(asset)]
	if !ok {
		return nil
	}
	return info.Banks
}

// MatchingUSDCBank finds the USDC bank address sharing protocol+market, or ""
// when no pairing exists.
func (tc TokenConfig) MatchingUSDCBank(protocol, market string) string {
	usdc, ok := tc["USDC"]
	if !ok {
		return ""
	}
	for _, bank := range usdc.Banks {
		if bank.Protocol == protocol && bank.Market == market {
			return bank.Bank
		}
	}
	return ""
}

// BankByAddress finds a bank record anywhere in the config.
func (tc TokenConfig) BankByAddress(address string) (Bank, bool) {
	if address == "" {
		return Bank{}, false
	}
	for _, info := range tc {
		for _, bank := range info.Banks {
			if bank.Bank == address {
				return bank, true
			}
		}
	}
	return Bank{}, false
}

// Mint returns the token's mint address, or "" when unknown.
func (tc TokenConfig) Mint(asset string) string {
	info, ok := tc[strings.ToUpper(asset)]
	if !ok {
		return ""
	}
	return info.Mint
}

// HasStakingYield reports whether the token is flagged as yield-bearing.
func (tc TokenConfig) HasStakingYield(asset string) bool {
	info, ok := tc[strings.ToUpper(asset)]
	if !ok {
		return false
	}
	return info.HasStakingYield
}
