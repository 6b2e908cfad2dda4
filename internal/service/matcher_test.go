package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"cryptopay/config"
	"cryptopay/internal/model"
	"cryptopay/internal/provider"
)

// fakeProvider 内存数据源
type fakeProvider struct {
	network       string
	txs           []provider.ChainTx
	confirmations map[string]int
}

func (f *fakeProvider) Supports(network string) bool {
	return network == f.network
}

func (f *fakeProvider) FetchIncoming(ctx context.Context, address string, sinceMillis int64) []provider.ChainTx {
	var out []provider.ChainTx
	for _, tx := range f.txs {
		if tx.ToAddress == address && tx.Timestamp >= sinceMillis {
			out = append(out, tx)
		}
	}
	return out
}

func (f *fakeProvider) Confirmations(ctx context.Context, txHash string) (int, error) {
	return f.confirmations[txHash], nil
}

func newTestMatcher(t *testing.T, db *gorm.DB, cfg *config.Config, fake *fakeProvider) *MatcherService {
	registry := provider.NewRegistry(fake)
	webhooks := NewWebhookService(db, cfg)
	resolver := NewAddressResolver(db, cfg)
	return NewMatcherService(db, cfg, registry, webhooks, resolver)
}

func pendingIntent(t *testing.T, db *gorm.DB, network, address string, amount decimal.Decimal) *model.PaymentIntent {
	t.Helper()
	intent := seedIntent(t, db, network, amount, model.IntentStatusPending, time.Now().Add(30*time.Minute))
	require.NoError(t, db.Model(intent).Update("pay_address", address).Error)
	intent.PayAddress = address
	return intent
}

func TestMatcherPaysOnExactAmount(t *testing.T) {
	db := setupTestDB(t)
	cfg := testConfig()
	address := "TAdminSharedAddress111111111111111"
	amount := decimal.RequireFromString("100.37")

	intent := pendingIntent(t, db, "trc20", address, amount)

	fake := &fakeProvider{
		network: "trc20",
		txs: []provider.ChainTx{{
			TxHash:        "tx-exact",
			FromAddress:   "TPayer",
			ToAddress:     address,
			Amount:        amount,
			Timestamp:     time.Now().UnixMilli(),
			Confirmations: 1,
		}},
	}

	newTestMatcher(t, db, cfg, fake).MatchNetwork(context.Background(), "trc20")

	var got model.PaymentIntent
	require.NoError(t, db.First(&got, intent.ID).Error)
	assert.Equal(t, model.IntentStatusPaid, got.Status)
	assert.Equal(t, "tx-exact", got.TxHash)
	assert.Equal(t, 1, got.Confirmations)
	assert.NotNil(t, got.PaidAt)

	// 交易流水登记且标记已匹配
	var entry model.TransactionLog
	require.NoError(t, db.Where("tx_hash = ?", "tx-exact").First(&entry).Error)
	assert.True(t, entry.Matched)
	require.NotNil(t, entry.IntentID)
	assert.Equal(t, intent.ID, *entry.IntentID)
}

func TestMatcherTolerance(t *testing.T) {
	db := setupTestDB(t)
	cfg := testConfig()
	address := "TAdminSharedAddress111111111111111"
	amount := decimal.RequireFromString("50.25")

	intent := pendingIntent(t, db, "trc20", address, amount)

	t.Run("off by more than tolerance is ignored", func(t *testing.T) {
		fake := &fakeProvider{network: "trc20", txs: []provider.ChainTx{{
			TxHash:    "tx-off",
			ToAddress: address,
			// 偏差0.01, 超过容差0.001
			Amount:        decimal.RequireFromString("50.26"),
			Timestamp:     time.Now().UnixMilli(),
			Confirmations: 1,
		}}}
		newTestMatcher(t, db, cfg, fake).MatchNetwork(context.Background(), "trc20")

		var got model.PaymentIntent
		require.NoError(t, db.First(&got, intent.ID).Error)
		assert.Equal(t, model.IntentStatusPending, got.Status)
		assert.Empty(t, got.TxHash)
	})

	t.Run("within tolerance matches", func(t *testing.T) {
		fake := &fakeProvider{network: "trc20", txs: []provider.ChainTx{{
			TxHash:        "tx-close",
			ToAddress:     address,
			Amount:        decimal.RequireFromString("50.2495"),
			Timestamp:     time.Now().UnixMilli(),
			Confirmations: 1,
		}}}
		newTestMatcher(t, db, cfg, fake).MatchNetwork(context.Background(), "trc20")

		var got model.PaymentIntent
		require.NoError(t, db.First(&got, intent.ID).Error)
		assert.Equal(t, model.IntentStatusPaid, got.Status)
		assert.Equal(t, "tx-close", got.TxHash)
	})
}

func TestMatcherClaimsTxOnce(t *testing.T) {
	db := setupTestDB(t)
	cfg := testConfig()
	address := "TAdminSharedAddress111111111111111"
	amount := decimal.RequireFromString("30.11")

	first := pendingIntent(t, db, "trc20", address, amount)

	fake := &fakeProvider{network: "trc20", txs: []provider.ChainTx{{
		TxHash:        "tx-once",
		ToAddress:     address,
		Amount:        amount,
		Timestamp:     time.Now().UnixMilli(),
		Confirmations: 1,
	}}}
	matcher := newTestMatcher(t, db, cfg, fake)
	matcher.MatchNetwork(context.Background(), "trc20")

	var got model.PaymentIntent
	require.NoError(t, db.First(&got, first.ID).Error)
	require.Equal(t, model.IntentStatusPaid, got.Status)

	// 第二个同金额意向不得复用同一笔转账
	second := pendingIntent(t, db, "trc20", address, amount)
	matcher.MatchNetwork(context.Background(), "trc20")

	got = model.PaymentIntent{}
	require.NoError(t, db.First(&got, second.ID).Error)
	assert.Equal(t, model.IntentStatusPending, got.Status)
	assert.Empty(t, got.TxHash)

	var count int64
	db.Model(&model.TransactionLog{}).Where("tx_hash = ?", "tx-once").Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestMatcherConfirmationGate(t *testing.T) {
	db := setupTestDB(t)
	cfg := testConfig()
	address := "0xadmin"
	amount := decimal.RequireFromString("200.55")

	intent := pendingIntent(t, db, "erc20", address, amount)

	fake := &fakeProvider{
		network: "erc20",
		txs: []provider.ChainTx{{
			TxHash:        "tx-young",
			ToAddress:     address,
			Amount:        amount,
			Timestamp:     time.Now().UnixMilli(),
			Confirmations: 2, // 低于ERC20阈值6
		}},
		confirmations: map[string]int{"tx-young": 2},
	}
	matcher := newTestMatcher(t, db, cfg, fake)
	matcher.MatchNetwork(context.Background(), "erc20")

	// 已定位交易但未达确认数, 保持待支付
	var got model.PaymentIntent
	require.NoError(t, db.First(&got, intent.ID).Error)
	assert.Equal(t, model.IntentStatusPending, got.Status)
	assert.Equal(t, "tx-young", got.TxHash)
	assert.Equal(t, 2, got.Confirmations)

	// 确认数涨到阈值后下一轮置为已支付
	fake.confirmations["tx-young"] = 6
	matcher.MatchNetwork(context.Background(), "erc20")

	require.NoError(t, db.First(&got, intent.ID).Error)
	assert.Equal(t, model.IntentStatusPaid, got.Status)
	assert.Equal(t, 6, got.Confirmations)
}

func TestMatcherRejectsTxBeforeIntent(t *testing.T) {
	db := setupTestDB(t)
	cfg := testConfig()
	address := "TAdminSharedAddress111111111111111"
	amount := decimal.RequireFromString("10.05")

	intent := pendingIntent(t, db, "trc20", address, amount)

	t.Run("older than the fetch window", func(t *testing.T) {
		fake := &fakeProvider{network: "trc20", txs: []provider.ChainTx{{
			TxHash:        "tx-old",
			ToAddress:     address,
			Amount:        amount,
			Timestamp:     time.Now().Add(-10 * time.Minute).UnixMilli(),
			Confirmations: 1,
		}}}
		newTestMatcher(t, db, cfg, fake).MatchNetwork(context.Background(), "trc20")

		var got model.PaymentIntent
		require.NoError(t, db.First(&got, intent.ID).Error)
		assert.Equal(t, model.IntentStatusPending, got.Status)
		assert.Empty(t, got.TxHash)
	})

	// 回溯偏移只放宽拉取起点, 早于意向创建的存量转账同样不算数
	t.Run("inside the fetch window but before creation", func(t *testing.T) {
		fake := &fakeProvider{network: "trc20", txs: []provider.ChainTx{{
			TxHash:        "tx-preexisting",
			ToAddress:     address,
			Amount:        amount,
			Timestamp:     time.Now().Add(-3 * time.Minute).UnixMilli(),
			Confirmations: 1,
		}}}
		newTestMatcher(t, db, cfg, fake).MatchNetwork(context.Background(), "trc20")

		var got model.PaymentIntent
		require.NoError(t, db.First(&got, intent.ID).Error)
		assert.Equal(t, model.IntentStatusPending, got.Status)
		assert.Empty(t, got.TxHash)

		var count int64
		db.Model(&model.TransactionLog{}).Where("tx_hash = ?", "tx-preexisting").Count(&count)
		assert.Equal(t, int64(0), count)
	})
}

func TestMatcherThresholdOverride(t *testing.T) {
	db := setupTestDB(t)
	cfg := testConfig()

	// 数据库配置覆盖链配置
	require.NoError(t, db.Create(&model.SystemConfig{
		Key:   model.ConfigKeyConfirmationsPrefix + "trc20",
		Value: "3",
	}).Error)

	matcher := newTestMatcher(t, db, cfg, &fakeProvider{network: "trc20"})
	assert.Equal(t, 3, matcher.threshold("trc20"))
	assert.Equal(t, 6, matcher.threshold("erc20"))
}
