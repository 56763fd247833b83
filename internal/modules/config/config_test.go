package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
service:
  port: 9000
trading:
  default_coin: eth
  default_leverage: 40
  max_leverage: 10
  default_risk_pct: 1.5
  max_risk_pct: 2
  same_direction_policy: stack
cache:
  price_ttl: 2s
retry:
  max_attempts: 5
  base_delay: 100ms
telegram:
  token: from-file
`

func writeConfig(t *testing.T, body string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test.yaml"), []byte(body), 0o600))
	t.Setenv(configDirENV, dir)
	t.Setenv(configFilePathENV, "test.yaml")
}

func TestNewConfigDecodesFileOverDefaults(t *testing.T) {
	writeConfig(t, sampleYAML)
	t.Setenv(privateKeyENV, "0xdeadbeef")
	t.Setenv(tokenTelegramENV, "from-env")

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Service.Port)
	assert.Equal(t, "ETH", cfg.Trading.DefaultCoin)
	assert.Equal(t, 10, cfg.Trading.DefaultLeverage, "default leverage is clamped to max")
	assert.Equal(t, 1.5, cfg.Trading.DefaultRiskPct)
	assert.Equal(t, PolicyStack, cfg.Trading.SameDirectionPolicy)
	assert.Equal(t, 2*time.Second, cfg.Cache.PriceTTL)
	assert.Equal(t, 30*time.Minute, cfg.Cache.MetaTTL)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, cfg.Retry.BaseDelay)
	assert.Equal(t, "from-env", cfg.Telegram.Token)
	assert.True(t, cfg.HasCredentials())
}

func TestNewConfigWithoutFileUsesEnv(t *testing.T) {
	t.Setenv(configDirENV, t.TempDir())
	t.Setenv("DEFAULT_LEVERAGE", "7")
	t.Setenv("MAX_RISK_PCT", "3")
	t.Setenv("DEFAULT_RISK_PCT", "not-a-number")

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Trading.DefaultLeverage)
	assert.Equal(t, 3.0, cfg.Trading.MaxRiskPct)
	assert.Equal(t, 1.0, cfg.Trading.DefaultRiskPct)
	assert.Equal(t, "BTC", cfg.Trading.DefaultCoin)
	assert.False(t, cfg.HasCredentials())
}

func TestNewConfigRejectsBrokenYAML(t *testing.T) {
	writeConfig(t, "trading: [unclosed")
	_, err := NewConfig()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
		check   func(t *testing.T, c *Config)
	}{
		{
			name:   "default risk above max falls back to max",
			mutate: func(c *Config) { c.Trading.DefaultRiskPct = 9; c.Trading.MaxRiskPct = 2 },
			check:  func(t *testing.T, c *Config) { assert.Equal(t, 2.0, c.Trading.DefaultRiskPct) },
		},
		{
			name:    "unknown policy",
			mutate:  func(c *Config) { c.Trading.SameDirectionPolicy = "pyramid" },
			wantErr: true,
		},
		{
			name:    "inverted leverage range",
			mutate:  func(c *Config) { c.Trading.MinLeverage = 10; c.Trading.MaxLeverage = 5 },
			wantErr: true,
		},
		{
			name:   "attempts and jitter normalised",
			mutate: func(c *Config) { c.Retry.MaxAttempts = 0; c.Retry.Jitter = 3 },
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, 1, c.Retry.MaxAttempts)
				assert.Equal(t, 0.0, c.Retry.Jitter)
			},
		},
		{
			name:    "zero ttl",
			mutate:  func(c *Config) { c.Cache.AccountTTL = 0 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Defaults()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.check != nil {
				tt.check(t, &c)
			}
		})
	}
}
