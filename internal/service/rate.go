package service

import (
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"cryptopay/config"
	"cryptopay/internal/model"
)

// RateService 汇率查询
// 优先级: system_configs表 > 配置文件 > 默认1.0
type RateService struct {
	db  *gorm.DB
	cfg *config.Config
}

func NewRateService(db *gorm.DB, cfg *config.Config) *RateService {
	return &RateService{db: db, cfg: cfg}
}

// GetRate 查询法币到加密货币的汇率
func (s *RateService) GetRate(fiatCurrency, cryptoCurrency string) decimal.Decimal {
	fiat := strings.ToUpper(fiatCurrency)
	crypto := strings.ToUpper(cryptoCurrency)

	// 数据库里的动态汇率优先
	var cfg model.SystemConfig
	key := fmt.Sprintf("%s%s_%s", model.ConfigKeyRatePrefix, fiat, crypto)
	if err := s.db.Where("`key` = ?", key).First(&cfg).Error; err == nil {
		if rate, err := strconv.ParseFloat(cfg.Value, 64); err == nil && rate > 0 {
			return decimal.NewFromFloat(rate)
		}
		log.Printf("Invalid rate config %s: %s", key, cfg.Value)
	}

	if rate, ok := s.cfg.Rates[fiat+":"+crypto]; ok && rate > 0 {
		return decimal.NewFromFloat(rate)
	}

	log.Printf("No rate configured for %s->%s, using 1.0", fiat, crypto)
	return decimal.NewFromInt(1)
}

// Convert 法币金额换算为加密货币金额, 金额=法币/汇率, 保留6位小数
func (s *RateService) Convert(fiatAmount decimal.Decimal, fiatCurrency, cryptoCurrency string) (decimal.Decimal, decimal.Decimal) {
	rate := s.GetRate(fiatCurrency, cryptoCurrency)
	if rate.IsZero() {
		rate = decimal.NewFromInt(1)
	}
	return fiatAmount.DivRound(rate, 6), rate
}
