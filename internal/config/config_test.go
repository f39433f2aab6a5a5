package config

import (
	"testing"
	"time"

	"github.com/avc/membership-platform/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validCfg возвращает конфиг с дефолтной таблицей распределения
func validCfg() *Config {
	return &Config{
		MerchantRatio: decimal.NewFromFloat(0.80),
		PoolRatios:    defaultPoolRatios(),
		DefaultPool:   domain.PoolPlatformRevenue,
		UnilevelNeeds: [3]int{3, 5, 7},
	}
}

func TestValidateRatios(t *testing.T) {
	t.Run("Default table is consistent", func(t *testing.T) {
		require.NoError(t, validateRatios(validCfg()))
	})

	t.Run("Merchant ratio above one", func(t *testing.T) {
		cfg := validCfg()
		cfg.MerchantRatio = decimal.NewFromFloat(1.01)

		err := validateRatios(cfg)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "merchant ratio")
	})

	t.Run("Negative merchant ratio", func(t *testing.T) {
		cfg := validCfg()
		cfg.MerchantRatio = decimal.NewFromFloat(-0.1)

		require.Error(t, validateRatios(cfg))
	})

	t.Run("Negative pool ratio", func(t *testing.T) {
		cfg := validCfg()
		cfg.PoolRatios[domain.PoolSubsidy] = decimal.NewFromFloat(-0.12)

		err := validateRatios(cfg)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "negative")
	})

	t.Run("Pool ratios sum above one", func(t *testing.T) {
		cfg := validCfg()
		cfg.PoolRatios[domain.PoolSubsidy] = decimal.NewFromFloat(0.95)

		err := validateRatios(cfg)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "exceeds 1")
	})

	t.Run("Default pool with explicit ratio", func(t *testing.T) {
		cfg := validCfg()
		cfg.PoolRatios[domain.PoolPlatformRevenue] = decimal.NewFromFloat(0.01)

		err := validateRatios(cfg)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "must not have an explicit ratio")
	})

	t.Run("Non-positive unilevel need", func(t *testing.T) {
		cfg := validCfg()
		cfg.UnilevelNeeds = [3]int{3, 0, 7}

		err := validateRatios(cfg)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "tier 2")
	})
}

// TestConfigDefaults tests that default values are correctly set
func TestConfigDefaults(t *testing.T) {
	cfg := &Config{
		JWTTokenTTL:        24 * time.Hour,
		LogLevel:           "info",
		WorkerPoolSize:     3,
		WorkerQueueSize:    100,
		WorkerScanInterval: 10 * time.Second,
		SettleGracePeriod:  30 * time.Second,
		MaxTeamLayer:       6,
		MinPasswordLength:  6,
	}

	assert.Equal(t, 24*time.Hour, cfg.JWTTokenTTL)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 3, cfg.WorkerPoolSize)
	assert.Equal(t, 100, cfg.WorkerQueueSize)
	assert.Equal(t, 10*time.Second, cfg.WorkerScanInterval)
	assert.Equal(t, 30*time.Second, cfg.SettleGracePeriod)
	assert.Equal(t, 6, cfg.MaxTeamLayer)
	assert.Equal(t, 6, cfg.MinPasswordLength)
}

func TestDefaultPoolRatios(t *testing.T) {
	ratios := defaultPoolRatios()

	assert.Len(t, ratios, 8)

	sum := decimal.Zero
	for _, ratio := range ratios {
		sum = sum.Add(ratio)
	}
	// Именованные фонды забирают 20% пуловой части, остаток уходит в фонд по умолчанию
	assert.True(t, sum.Equal(decimal.NewFromFloat(0.20)), "sum = %s", sum)

	_, ok := ratios[domain.PoolPlatformRevenue]
	assert.False(t, ok, "default pool must not be in the ratio table")
}
