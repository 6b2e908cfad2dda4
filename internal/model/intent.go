package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// IntentStatus 支付意向状态
type IntentStatus int8

const (
	IntentStatusPending IntentStatus = 0 // 待支付
	IntentStatusPaid    IntentStatus = 1 // 已支付
	IntentStatusExpired IntentStatus = 2 // 已过期
	IntentStatusFailed  IntentStatus = 3 // 失败
)

// Text 状态对外文本
func (s IntentStatus) Text() string {
	switch s {
	case IntentStatusPending:
		return "PENDING"
	case IntentStatusPaid:
		return "PAID"
	case IntentStatusExpired:
		return "EXPIRED"
	case IntentStatusFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Terminal 是否为终态
func (s IntentStatus) Terminal() bool {
	return s != IntentStatusPending
}

// WebhookStatus 回调投递状态
type WebhookStatus int8

const (
	WebhookStatusUnset  WebhookStatus = 0 // 未投递
	WebhookStatusSent   WebhookStatus = 1 // 投递成功
	WebhookStatusFailed WebhookStatus = 2 // 投递失败
)

// PaymentIntent 支付意向表
// (merchant_id, order_ref) 为天然幂等键; 同一网络下待支付意向的
// crypto_amount 互不相同, 唯一金额即支付标识
type PaymentIntent struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	IntentID        string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"intent_id"`
	MerchantID      uint            `gorm:"not null;uniqueIndex:uk_merchant_order_ref" json:"merchant_id"`
	Merchant        *Merchant       `gorm:"foreignKey:MerchantID" json:"merchant,omitempty"`
	OrderRef        string          `gorm:"type:varchar(64);not null;uniqueIndex:uk_merchant_order_ref" json:"order_ref"`
	FiatCurrency    string          `gorm:"type:varchar(10);default:'USD'" json:"fiat_currency"`
	FiatAmount      decimal.Decimal `gorm:"type:decimal(18,6);not null" json:"fiat_amount"`
	CryptoCurrency  string          `gorm:"type:varchar(10);default:'USDT'" json:"crypto_currency"`
	Network         string          `gorm:"type:varchar(20);not null;index:idx_network_status" json:"network"` // trc20, erc20
	CustomerEmail   string          `gorm:"type:varchar(100)" json:"customer_email,omitempty"`
	ReturnURL       string          `gorm:"type:varchar(500)" json:"return_url,omitempty"`
	PayAddress      string          `gorm:"type:varchar(100)" json:"pay_address"`
	CryptoAmount    decimal.Decimal `gorm:"type:decimal(18,6)" json:"crypto_amount"` // 唯一化后的应付金额
	Rate            decimal.Decimal `gorm:"type:decimal(18,8)" json:"rate"`
	Status          IntentStatus    `gorm:"default:0;index:idx_network_status;index:idx_status_expires" json:"status"`
	TxHash          string          `gorm:"type:varchar(100)" json:"tx_hash,omitempty"`
	Confirmations   int             `gorm:"default:0" json:"confirmations"`
	PaidAt          *time.Time      `json:"paid_at,omitempty"`
	WebhookStatus   WebhookStatus   `gorm:"default:0" json:"webhook_status"`
	WebhookSentAt   *time.Time      `json:"webhook_sent_at,omitempty"`
	WebhookAttempts int             `gorm:"default:0" json:"webhook_attempts"`
	CreatedAt       time.Time       `json:"created_at"`
	ExpiresAt       time.Time       `gorm:"index:idx_status_expires" json:"expires_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	DeletedAt       gorm.DeletedAt  `gorm:"index" json:"-"`
}

func (PaymentIntent) TableName() string {
	return "payment_intents"
}

// Expired 是否已超过有效期
func (p *PaymentIntent) Expired(now time.Time) bool {
	return !p.ExpiresAt.After(now)
}

// IntentQuery 意向查询参数
type IntentQuery struct {
	MerchantID uint          `form:"merchant_id"`
	IntentID   string        `form:"intent_id"`
	OrderRef   string        `form:"order_ref"`
	Network    string        `form:"network"`
	Status     *IntentStatus `form:"status"`
	Page       int           `form:"page"`
	PageSize   int           `form:"page_size"`
}
