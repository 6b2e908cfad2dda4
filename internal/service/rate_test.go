package service

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptopay/internal/model"
)

func TestGetRate(t *testing.T) {
	db := setupTestDB(t)
	cfg := testConfig()
	cfg.Rates["EUR:USDT"] = 1.08
	svc := NewRateService(db, cfg)

	t.Run("from config", func(t *testing.T) {
		assert.True(t, svc.GetRate("EUR", "USDT").Equal(decimal.RequireFromString("1.08")))
	})

	t.Run("database overrides config", func(t *testing.T) {
		require.NoError(t, db.Create(&model.SystemConfig{
			Key:   model.ConfigKeyRatePrefix + "EUR_USDT",
			Value: "1.10",
		}).Error)
		assert.True(t, svc.GetRate("EUR", "USDT").Equal(decimal.RequireFromString("1.1")))
	})

	t.Run("case insensitive", func(t *testing.T) {
		assert.True(t, svc.GetRate("eur", "usdt").Equal(decimal.RequireFromString("1.1")))
	})

	t.Run("unknown pair falls back to 1.0", func(t *testing.T) {
		assert.True(t, svc.GetRate("JPY", "USDT").Equal(decimal.NewFromInt(1)))
	})

	t.Run("invalid database value falls through", func(t *testing.T) {
		require.NoError(t, db.Create(&model.SystemConfig{
			Key:   model.ConfigKeyRatePrefix + "USD_USDT",
			Value: "not-a-number",
		}).Error)
		assert.True(t, svc.GetRate("USD", "USDT").Equal(decimal.NewFromInt(1)))
	})
}

func TestConvert(t *testing.T) {
	db := setupTestDB(t)
	cfg := testConfig()
	cfg.Rates["EUR:USDT"] = 1.08
	svc := NewRateService(db, cfg)

	// 100 EUR / 1.08 = 92.592593 USDT
	amount, rate := svc.Convert(decimal.NewFromInt(100), "EUR", "USDT")
	assert.True(t, amount.Equal(decimal.RequireFromString("92.592593")), "got %s", amount)
	assert.True(t, rate.Equal(decimal.RequireFromString("1.08")))

	t.Run("rounds to six decimals", func(t *testing.T) {
		cfg.Rates["GBP:USDT"] = 3.0
		amount, _ := svc.Convert(decimal.NewFromInt(2), "GBP", "USDT")
		assert.True(t, amount.Equal(decimal.RequireFromString("0.666667")), "got %s", amount)
	})

	t.Run("rate 1.0 passes amount through", func(t *testing.T) {
		amount, rate := svc.Convert(decimal.RequireFromString("50.25"), "USD", "USDT")
		assert.True(t, amount.Equal(decimal.RequireFromString("50.25")), "got %s", amount)
		assert.True(t, rate.Equal(decimal.NewFromInt(1)))
	})
}
