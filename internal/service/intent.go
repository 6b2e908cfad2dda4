package service

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"cryptopay/config"
	"cryptopay/internal/model"
	"cryptopay/internal/util"
)

// CreateIntentRequest 创建支付意向请求
type CreateIntentRequest struct {
	OrderRef      string          `json:"order_ref" binding:"required,max=64"`
	FiatCurrency  string          `json:"fiat_currency"`
	FiatAmount    decimal.Decimal `json:"fiat_amount" binding:"required"`
	Network       string          `json:"network" binding:"required"`
	CustomerEmail string          `json:"customer_email"`
	ReturnURL     string          `json:"return_url"`
}

// IntentView 对外返回的意向视图
type IntentView struct {
	IntentID       string          `json:"intent_id"`
	OrderRef       string          `json:"order_ref"`
	Status         string          `json:"status"`
	FiatCurrency   string          `json:"fiat_currency"`
	FiatAmount     decimal.Decimal `json:"fiat_amount"`
	CryptoCurrency string          `json:"crypto_currency"`
	CryptoAmount   decimal.Decimal `json:"crypto_amount"`
	Rate           decimal.Decimal `json:"rate"`
	Network        string          `json:"network"`
	PayAddress     string          `json:"pay_address"`
	PaymentURI     string          `json:"payment_uri"`
	QRCode         string          `json:"qr_code,omitempty"`
	TxHash         string          `json:"tx_hash,omitempty"`
	Confirmations  int             `json:"confirmations"`
	PaidAt         *time.Time      `json:"paid_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	ExpiresAt      time.Time       `json:"expires_at"`
}

// IntentService 支付意向服务
type IntentService struct {
	db     *gorm.DB
	cfg    *config.Config
	rates  *RateService
	amount *Disambiguator
	addrs  AddressResolver
}

func NewIntentService(db *gorm.DB, cfg *config.Config, rates *RateService, amount *Disambiguator, addrs AddressResolver) *IntentService {
	return &IntentService{db: db, cfg: cfg, rates: rates, amount: amount, addrs: addrs}
}

// Authenticate 按API密钥认证商户
func (s *IntentService) Authenticate(apiKey string) (*model.Merchant, error) {
	if apiKey == "" {
		return nil, ErrUnauthorized
	}
	var merchant model.Merchant
	if err := s.db.Where("api_key = ?", apiKey).First(&merchant).Error; err != nil {
		return nil, ErrUnauthorized
	}
	if !merchant.IsActive() {
		return nil, ErrUnauthorized
	}
	return &merchant, nil
}

// CreateIntent 创建支付意向
// (merchant_id, order_ref) 幂等: 重复请求原样返回已有意向, 不区分状态
func (s *IntentService) CreateIntent(merchant *model.Merchant, req *CreateIntentRequest) (*IntentView, error) {
	req.Network = util.NormalizeNetwork(req.Network)
	if !util.IsValidNetwork(req.Network) {
		return nil, fmt.Errorf("%w: unsupported network %s", ErrInvalidRequest, req.Network)
	}
	chain, ok := s.cfg.Chain(req.Network)
	if !ok || !chain.Enabled {
		return nil, fmt.Errorf("%w: network %s is disabled", ErrInvalidRequest, req.Network)
	}
	if !req.FiatAmount.IsPositive() {
		return nil, fmt.Errorf("%w: fiat_amount must be positive", ErrInvalidRequest)
	}
	if req.FiatCurrency == "" {
		req.FiatCurrency = "USD"
	}

	// 幂等检查
	var existing model.PaymentIntent
	err := s.db.Where("merchant_id = ? AND order_ref = ?", merchant.ID, req.OrderRef).First(&existing).Error
	if err == nil {
		return s.view(&existing, true), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	cryptoAmount, rate := s.rates.Convert(req.FiatAmount, req.FiatCurrency, "USDT")

	now := time.Now()
	intent := model.PaymentIntent{
		IntentID:       util.GenerateIntentID(),
		MerchantID:     merchant.ID,
		OrderRef:       req.OrderRef,
		FiatCurrency:   req.FiatCurrency,
		FiatAmount:     req.FiatAmount,
		CryptoCurrency: "USDT",
		Network:        req.Network,
		CustomerEmail:  req.CustomerEmail,
		ReturnURL:      req.ReturnURL,
		Rate:           rate,
		Status:         model.IntentStatusPending,
		CreatedAt:      now,
		ExpiresAt:      now.Add(time.Duration(s.cfg.Payment.ExpireMinutes) * time.Minute),
	}

	if err := s.db.Create(&intent).Error; err != nil {
		// 并发重复提交会撞唯一索引, 回读原意向保持幂等
		if e := s.db.Where("merchant_id = ? AND order_ref = ?", merchant.ID, req.OrderRef).
			First(&existing).Error; e == nil {
			return s.view(&existing, true), nil
		}
		return nil, err
	}

	address, err := s.addrs.Resolve(req.Network, intent.ID)
	if err != nil {
		s.discard(&intent)
		return nil, err
	}
	// 金额唯一化内部完成落库
	unique, err := s.amount.AssignAmount(intent.ID, req.Network, cryptoAmount)
	if err != nil {
		s.addrs.Release(req.Network, address, intent.ID)
		s.discard(&intent)
		return nil, err
	}

	intent.PayAddress = address
	intent.CryptoAmount = unique
	if err := s.db.Model(&model.PaymentIntent{}).Where("id = ?", intent.ID).
		Update("pay_address", address).Error; err != nil {
		s.addrs.Release(req.Network, address, intent.ID)
		s.discard(&intent)
		return nil, err
	}

	log.Printf("Created payment intent %s for merchant %d: %s %s on %s",
		intent.IntentID, merchant.ID, intent.CryptoAmount.String(), intent.CryptoCurrency, intent.Network)
	return s.view(&intent, true), nil
}

// discard 地址或金额分配失败时物理删除占位意向, 让商户可以重试
func (s *IntentService) discard(intent *model.PaymentIntent) {
	if err := s.db.Unscoped().Delete(intent).Error; err != nil {
		log.Printf("Failed to discard intent %s: %v", intent.IntentID, err)
	}
}

// GetIntent 查询意向, 商户只能查自己的
func (s *IntentService) GetIntent(merchantID uint, intentID string) (*IntentView, error) {
	var intent model.PaymentIntent
	if err := s.db.Where("intent_id = ? AND merchant_id = ?", intentID, merchantID).
		First(&intent).Error; err != nil {
		return nil, ErrIntentNotFound
	}
	return s.view(&intent, intent.Status == model.IntentStatusPending), nil
}

// ListIntents 管理端分页查询
func (s *IntentService) ListIntents(query *model.IntentQuery) ([]model.PaymentIntent, int64, error) {
	db := s.db.Model(&model.PaymentIntent{})
	if query.MerchantID > 0 {
		db = db.Where("merchant_id = ?", query.MerchantID)
	}
	if query.IntentID != "" {
		db = db.Where("intent_id = ?", query.IntentID)
	}
	if query.OrderRef != "" {
		db = db.Where("order_ref = ?", query.OrderRef)
	}
	if query.Network != "" {
		db = db.Where("network = ?", util.NormalizeNetwork(query.Network))
	}
	if query.Status != nil {
		db = db.Where("status = ?", *query.Status)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if query.Page <= 0 {
		query.Page = 1
	}
	if query.PageSize <= 0 || query.PageSize > 100 {
		query.PageSize = 20
	}

	var intents []model.PaymentIntent
	err := db.Preload("Merchant").Order("id DESC").
		Offset((query.Page - 1) * query.PageSize).Limit(query.PageSize).
		Find(&intents).Error
	return intents, total, err
}

// view 构造对外视图, withQR控制是否携带收款二维码
func (s *IntentService) view(intent *model.PaymentIntent, withQR bool) *IntentView {
	uri := util.BuildPaymentURI(intent.Network, intent.PayAddress, intent.CryptoAmount)
	v := &IntentView{
		IntentID:       intent.IntentID,
		OrderRef:       intent.OrderRef,
		Status:         intent.Status.Text(),
		FiatCurrency:   intent.FiatCurrency,
		FiatAmount:     intent.FiatAmount,
		CryptoCurrency: intent.CryptoCurrency,
		CryptoAmount:   intent.CryptoAmount,
		Rate:           intent.Rate,
		Network:        intent.Network,
		PayAddress:     intent.PayAddress,
		PaymentURI:     uri,
		TxHash:         intent.TxHash,
		Confirmations:  intent.Confirmations,
		PaidAt:         intent.PaidAt,
		CreatedAt:      intent.CreatedAt,
		ExpiresAt:      intent.ExpiresAt,
	}
	if withQR && intent.PayAddress != "" {
		qr, err := util.GenerateQRCode(uri, 256)
		if err != nil {
			log.Printf("Failed to generate QR code for %s: %v", intent.IntentID, err)
		} else {
			v.QRCode = qr
		}
	}
	return v
}
