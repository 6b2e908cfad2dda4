package service

import (
	"context"
	"log"
	"sync"
	"time"

	"gorm.io/gorm"

	"cryptopay/config"
	"cryptopay/internal/model"
)

// Poller 后台对账循环
// 每个周期依次执行: 链上转账匹配 -> 过期意向回收 -> 回调补投
type Poller struct {
	db       *gorm.DB
	cfg      *config.Config
	matcher  *MatcherService
	webhooks *WebhookService
	resolver AddressResolver

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewPoller(db *gorm.DB, cfg *config.Config, matcher *MatcherService, webhooks *WebhookService, resolver AddressResolver) *Poller {
	return &Poller{db: db, cfg: cfg, matcher: matcher, webhooks: webhooks, resolver: resolver}
}

// Start 启动后台轮询
func (p *Poller) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	interval := time.Duration(p.cfg.Payment.PollIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 20 * time.Second
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		log.Printf("Reconciliation poller started, interval %s", interval)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				log.Println("Reconciliation poller stopped")
				return
			case <-ticker.C:
				p.RunCycle(ctx)
			}
		}
	}()
}

// Stop 停止轮询并等待当前周期结束
func (p *Poller) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

// RunCycle 执行一轮对账
func (p *Poller) RunCycle(ctx context.Context) {
	for network, chain := range p.cfg.Chains {
		if !chain.Enabled {
			continue
		}
		p.matcher.MatchNetwork(ctx, network)
	}
	p.ReapExpired()
	p.RetryWebhooks()
}

// ReapExpired 回收过期的待支付意向
func (p *Poller) ReapExpired() {
	var expired []model.PaymentIntent
	err := p.db.Where("status = ? AND expires_at <= ?", model.IntentStatusPending, time.Now()).
		Find(&expired).Error
	if err != nil {
		log.Printf("Failed to load expired intents: %v", err)
		return
	}

	for i := range expired {
		intent := &expired[i]
		// 条件更新, 避免和匹配流程赛跑
		result := p.db.Model(&model.PaymentIntent{}).
			Where("id = ? AND status = ?", intent.ID, model.IntentStatusPending).
			Update("status", model.IntentStatusExpired)
		if result.Error != nil {
			log.Printf("Failed to expire intent %s: %v", intent.IntentID, result.Error)
			continue
		}
		if result.RowsAffected == 0 {
			continue
		}
		p.resolver.Release(intent.Network, intent.PayAddress, intent.ID)
		log.Printf("Payment intent %s expired", intent.IntentID)
	}
}

// RetryWebhooks 补投未送达的已支付回调
// 含从未投递过的意向, 标记已支付和首次投递之间宕机也能恢复
func (p *Poller) RetryWebhooks() {
	maxAttempts := p.cfg.Notify.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}

	var intents []model.PaymentIntent
	err := p.db.Where("status = ? AND webhook_status <> ? AND webhook_attempts < ?",
		model.IntentStatusPaid, model.WebhookStatusSent, maxAttempts).
		Find(&intents).Error
	if err != nil {
		log.Printf("Failed to load intents pending webhook retry: %v", err)
		return
	}

	for i := range intents {
		if err := p.webhooks.NotifyPaid(&intents[i]); err != nil {
			log.Printf("Webhook retry failed for intent %s: %v", intents[i].IntentID, err)
		}
	}
}
