package service

import (
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"cryptopay/internal/model"
)

const maxAmountTries = 25

// Disambiguator 金额唯一化
// 同一网络同一地址上的待支付意向共享收款地址, 靠应付金额区分;
// 在基准金额上叠加 [0.01, 0.99] 的随机零头, 保证同网络未过期
// 待支付意向的金额互不相同
type Disambiguator struct {
	db  *gorm.DB
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewDisambiguator(db *gorm.DB, rnd *rand.Rand) *Disambiguator {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Disambiguator{db: db, rnd: rnd}
}

// AssignAmount 生成同网络下唯一的应付金额并固化到意向
// base已按汇率换算, 追加随机零头后检查是否与在途金额冲突;
// 检查和落库在同一把锁里完成, 并发创建不会撞出相同金额
func (d *Disambiguator) AssignAmount(intentID uint, network string, base decimal.Decimal) (decimal.Decimal, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := 0; i < maxAmountTries; i++ {
		candidate := base.Add(d.randomCents()).Round(6)
		if d.amountInUse(network, candidate) {
			continue
		}
		result := d.db.Model(&model.PaymentIntent{}).
			Where("id = ? AND status = ?", intentID, model.IntentStatusPending).
			Update("crypto_amount", candidate)
		if result.Error != nil {
			return decimal.Zero, result.Error
		}
		if result.RowsAffected == 0 {
			return decimal.Zero, gorm.ErrRecordNotFound
		}
		return candidate, nil
	}
	return decimal.Zero, ErrAmountExhausted
}

// randomCents [0.01, 0.99] 随机零头, 调用方持锁
func (d *Disambiguator) randomCents() decimal.Decimal {
	return decimal.New(int64(d.rnd.Intn(99)+1), -2)
}

func (d *Disambiguator) amountInUse(network string, amount decimal.Decimal) bool {
	var count int64
	d.db.Model(&model.PaymentIntent{}).
		Where("network = ? AND status = ? AND expires_at > ? AND crypto_amount = ?",
			network, model.IntentStatusPending, time.Now(), amount).
		Count(&count)
	return count > 0
}
