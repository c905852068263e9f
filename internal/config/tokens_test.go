package config

import (
	"os"
	"path/filepath"
	"testing"
)

const tokenFixture = `{
  "sol": {
    "mint": "So11111111111111111111111111111111111111112",
    "hasStakingYield": false,
    "banks": [
      {"protocol": "marginfi", "market": "main", "bank": "solBank", "maxLeverage": {"long": 4.0, "short": 2.5}}
    ]
  },
  "USDC": {
    "mint": "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
    "banks": [
      {"protocol": "marginfi", "market": "main", "bank": "usdcBank"}
    ]
  },
  "JitoSOL": {
    "mint": "J1toso1uCk3RLmjorhTtrVwY9HJ7X8V9yYac6Y7kGCPn",
    "hasStakingYield": true,
    "banks": []
  }
}`

func writeTokenFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "token_config.json")
	if err := os.WriteFile(path, []byte(tokenFixture), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadTokenConfigUppercasesSymbols(t *testing.T) {
	cfg, err := LoadTokenConfig(writeTokenFixture(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := cfg["SOL"]; !ok {
		t.Fatal("lowercase symbols must be uppercased on load")
	}
	if _, ok := cfg["JITOSOL"]; !ok {
		t.Fatal("mixed-case symbols must be uppercased on load")
	}
	if cfg.Mint("sol") == "" {
		t.Fatal("lookups must be case-insensitive")
	}
}

func TestLoadTokenConfigMissingFile(t *testing.T) {
	if _, err := LoadTokenConfig(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("missing file must error")
	}
}

func TestProtocolMarketPairs(t *testing.T) {
	cfg, err := LoadTokenConfig(writeTokenFixture(t))
	if err != nil {
		t.Fatal(err)
	}

	pairs := cfg.ProtocolMarketPairs("SOL")
	if len(pairs) != 1 || pairs[0].Bank != "solBank" {
		t.Fatalf("pairs = %+v", pairs)
	}
	if pairs := cfg.ProtocolMarketPairs("DOGE"); pairs != nil {
		t.Fatalf("unknown asset must yield nil, got %v", pairs)
	}
}

func TestMatchingUSDCBank(t *testing.T) {
	cfg, err := LoadTokenConfig(writeTokenFixture(t))
	if err != nil {
		t.Fatal(err)
	}

	if got := cfg.MatchingUSDCBank("marginfi", "main"); got != "usdcBank" {
		t.Fatalf("usdc bank = %q", got)
	}
	if got := cfg.MatchingUSDCBank("kamino", "jlp"); got != "" {
		t.Fatalf("unpaired market must yield empty, got %q", got)
	}
}

func TestBankByAddress(t *testing.T) {
	cfg, err := LoadTokenConfig(writeTokenFixture(t))
	if err != nil {
		t.Fatal(err)
	}

	bank, ok := cfg.BankByAddress("solBank")
	if !ok || bank.MaxLeverage["long"] != 4.0 {
		t.Fatalf("bank = %+v, %v", bank, ok)
	}
	if _, ok := cfg.BankByAddress(""); ok {
		t.Fatal("empty address must not match")
	}
	if _, ok := cfg.BankByAddress("unknown"); ok {
		t.Fatal("unknown address must not match")
	}
}

func TestHasStakingYield(t *testing.T) {
	cfg, err := LoadTokenConfig(writeTokenFixture(t))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.HasStakingYield("SOL") {
		t.Fatal("SOL is not flagged")
	}
	if !cfg.HasStakingYield("jitosol") {
		t.Fatal("JITOSOL is flagged")
	}
}

func TestCachedTokenConfig(t *testing.T) {
	ClearTokenConfigCache()
	t.Cleanup(ClearTokenConfigCache)

	path := writeTokenFixture(t)
	first := CachedTokenConfig(path)
	if len(first) == 0 {
		t.Fatal("expected tokens")
	}

	// The cache ignores the path on subsequent calls.
	second := CachedTokenConfig(filepath.Join(t.TempDir(), "other.json"))
	if len(second) != len(first) {
		t.Fatal("second call must reuse the cached config")
	}
}

func TestCachedTokenConfigMissingFile(t *testing.T) {
	ClearTokenConfigCache()
	t.Cleanup(ClearTokenConfigCache)

	cfg := CachedTokenConfig(filepath.Join(t.TempDir(), "nope.json"))
	if cfg == nil || len(cfg) != 0 {
		t.Fatalf("missing file must yield an empty config, got %v", cfg)
	}
}
