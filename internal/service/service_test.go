package service

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"cryptopay/config"
	"cryptopay/internal/model"
	"cryptopay/internal/util"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = model.AutoMigrate(db)
	require.NoError(t, err)

	return db
}

func testConfig() *config.Config {
	return &config.Config{
		Payment: config.PaymentConfig{
			AddressMode:         "fixed",
			ExpireMinutes:       30,
			PollIntervalSeconds: 20,
			MatchTolerance:      0.001,
			SkewMinutes:         5,
		},
		Notify: config.NotifyConfig{
			Timeout:     2,
			MaxAttempts: 5,
		},
		Rates: map[string]float64{"USD:USDT": 1.0},
		Chains: map[string]config.ChainConfig{
			"trc20": {
				Enabled:       true,
				AdminAddress:  "TAdminSharedAddress111111111111111",
				Confirmations: 1,
			},
			"erc20": {
				Enabled:       true,
				AdminAddress:  "0xadmin",
				Confirmations: 6,
			},
		},
	}
}

func createTestMerchant(t *testing.T, db *gorm.DB, webhookURL string) *model.Merchant {
	merchant := model.Merchant{
		Name:          "Test Merchant",
		APIKey:        util.GenerateAPIKey(),
		WebhookURL:    webhookURL,
		WebhookSecret: util.GenerateWebhookSecret(),
		Status:        1,
	}
	require.NoError(t, db.Create(&merchant).Error)
	return &merchant
}

// newTestIntentService 固定随机种子, 金额零头可复现
func newTestIntentService(t *testing.T, db *gorm.DB, cfg *config.Config) *IntentService {
	rates := NewRateService(db, cfg)
	disambiguator := NewDisambiguator(db, rand.New(rand.NewSource(1)))
	resolver := NewAddressResolver(db, cfg)
	return NewIntentService(db, cfg, rates, disambiguator, resolver)
}
