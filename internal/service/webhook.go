package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"cryptopay/config"
	"cryptopay/internal/model"
	"cryptopay/internal/util"
)

const (
	headerSignature = "X-CryptoPay-Signature"
	headerEvent     = "X-CryptoPay-Event"

	eventPaymentPaid = "payment.paid"
)

// WebhookPayload 商户回调报文
type WebhookPayload struct {
	EventType      string          `json:"eventType"`
	IntentID       string          `json:"intentId"`
	OrderRef       string          `json:"orderRef"`
	Status         string          `json:"status"`
	CryptoAmount   decimal.Decimal `json:"cryptoAmount"`
	CryptoCurrency string          `json:"cryptoCurrency"`
	Network        string          `json:"network"`
	TxHash         string          `json:"txHash"`
	Confirmations  int             `json:"confirmations"`
	PaidAt         *time.Time      `json:"paidAt"`
}

// WebhookService 商户回调投递
// 投递语义为至多一次: 先抢占webhook_status再发请求, 发送失败
// 由下一轮对账重试, 次数上限由notify.max_attempts控制
type WebhookService struct {
	db     *gorm.DB
	cfg    *config.Config
	client *http.Client
}

func NewWebhookService(db *gorm.DB, cfg *config.Config) *WebhookService {
	timeout := time.Duration(cfg.Notify.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookService{
		db:  db,
		cfg: cfg,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// NotifyPaid 投递支付成功回调
func (s *WebhookService) NotifyPaid(intent *model.PaymentIntent) error {
	if intent.Status != model.IntentStatusPaid {
		return nil
	}
	if intent.WebhookStatus == model.WebhookStatusSent {
		return nil
	}
	maxAttempts := s.cfg.Notify.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if intent.WebhookAttempts >= maxAttempts {
		return fmt.Errorf("webhook attempts exhausted for intent %s", intent.IntentID)
	}

	var merchant model.Merchant
	if err := s.db.First(&merchant, intent.MerchantID).Error; err != nil {
		return fmt.Errorf("merchant %d not found: %w", intent.MerchantID, err)
	}
	if merchant.WebhookURL == "" {
		// 商户未配置回调地址, 视为已投递
		return s.markSent(intent)
	}

	// 条件更新抢占投递权, 防止并发重复通知
	claim := s.db.Model(&model.PaymentIntent{}).
		Where("id = ? AND webhook_status <> ? AND webhook_attempts = ?",
			intent.ID, model.WebhookStatusSent, intent.WebhookAttempts).
		Updates(map[string]interface{}{
			"webhook_status":   model.WebhookStatusFailed,
			"webhook_attempts": intent.WebhookAttempts + 1,
		})
	if claim.Error != nil {
		return claim.Error
	}
	if claim.RowsAffected == 0 {
		// 已被其他周期抢占
		return nil
	}
	intent.WebhookAttempts++

	payload := WebhookPayload{
		EventType:      eventPaymentPaid,
		IntentID:       intent.IntentID,
		OrderRef:       intent.OrderRef,
		Status:         intent.Status.Text(),
		CryptoAmount:   intent.CryptoAmount,
		CryptoCurrency: intent.CryptoCurrency,
		Network:        intent.Network,
		TxHash:         intent.TxHash,
		Confirmations:  intent.Confirmations,
		PaidAt:         intent.PaidAt,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, merchant.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerEvent, eventPaymentPaid)
	req.Header.Set(headerSignature, util.SignPayload(body, merchant.WebhookSecret))

	resp, err := s.client.Do(req)
	if err != nil {
		log.Printf("Webhook delivery failed for intent %s (attempt %d): %v",
			intent.IntentID, intent.WebhookAttempts, err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("Webhook delivery rejected for intent %s (attempt %d): status %d",
			intent.IntentID, intent.WebhookAttempts, resp.StatusCode)
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	log.Printf("Webhook delivered for intent %s after %d attempt(s)", intent.IntentID, intent.WebhookAttempts)
	return s.markSent(intent)
}

func (s *WebhookService) markSent(intent *model.PaymentIntent) error {
	now := time.Now()
	err := s.db.Model(&model.PaymentIntent{}).Where("id = ?", intent.ID).
		Updates(map[string]interface{}{
			"webhook_status":  model.WebhookStatusSent,
			"webhook_sent_at": now,
		}).Error
	if err == nil {
		intent.WebhookStatus = model.WebhookStatusSent
		intent.WebhookSentAt = &now
	}
	return err
}
