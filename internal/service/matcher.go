package service

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"cryptopay/config"
	"cryptopay/internal/model"
	"cryptopay/internal/provider"
	"cryptopay/internal/util"
)

// MatcherService 链上转账匹配
// 待支付意向靠唯一金额识别: 同地址收到的转账金额在容差内命中
// 某笔意向的应付金额即视为该意向的付款, tx_hash唯一索引保证
// 一笔转账至多认领一次
type MatcherService struct {
	db        *gorm.DB
	cfg       *config.Config
	providers *provider.Registry
	webhooks  *WebhookService
	resolver  AddressResolver
}

func NewMatcherService(db *gorm.DB, cfg *config.Config, providers *provider.Registry, webhooks *WebhookService, resolver AddressResolver) *MatcherService {
	return &MatcherService{db: db, cfg: cfg, providers: providers, webhooks: webhooks, resolver: resolver}
}

// MatchNetwork 对单个网络执行一轮匹配
func (s *MatcherService) MatchNetwork(ctx context.Context, network string) {
	p, ok := s.providers.For(network)
	if !ok {
		return
	}

	var intents []model.PaymentIntent
	err := s.db.Where("network = ? AND status = ? AND expires_at > ?",
		network, model.IntentStatusPending, time.Now()).
		Order("created_at").Find(&intents).Error
	if err != nil {
		log.Printf("Failed to load pending intents for %s: %v", network, err)
		return
	}
	if len(intents) == 0 {
		return
	}

	// 先处理已定位到交易, 等待确认数达标的意向
	for i := range intents {
		if intents[i].TxHash != "" {
			s.refreshConfirmations(ctx, p, &intents[i])
		}
	}

	// 按收款地址分组拉取链上转账
	skew := time.Duration(s.cfg.Payment.SkewMinutes) * time.Minute
	byAddress := make(map[string][]*model.PaymentIntent)
	earliest := make(map[string]time.Time)
	for i := range intents {
		intent := &intents[i]
		if intent.TxHash != "" || intent.PayAddress == "" {
			continue
		}
		byAddress[intent.PayAddress] = append(byAddress[intent.PayAddress], intent)
		if t, ok := earliest[intent.PayAddress]; !ok || intent.CreatedAt.Before(t) {
			earliest[intent.PayAddress] = intent.CreatedAt
		}
	}

	for address, candidates := range byAddress {
		// 往前多看一段, 容忍浏览器时间戳偏差
		since := earliest[address].Add(-skew).UnixMilli()
		txs := p.FetchIncoming(ctx, address, since)
		for _, tx := range txs {
			if !util.SameAddress(tx.ToAddress, address) {
				continue
			}
			intent := s.matchAmount(candidates, tx)
			if intent == nil {
				continue
			}
			if !s.claimTx(network, tx, intent.ID) {
				continue
			}
			s.settle(ctx, p, intent, tx)
		}
	}
}

// matchAmount 在候选意向中按金额容差命中
// 时间偏移量只放宽拉取起点, 匹配仍要求转账不早于意向创建
func (s *MatcherService) matchAmount(candidates []*model.PaymentIntent, tx provider.ChainTx) *model.PaymentIntent {
	tolerance := decimal.NewFromFloat(s.cfg.Payment.MatchTolerance)
	txTime := time.UnixMilli(tx.Timestamp)
	for _, intent := range candidates {
		if intent.TxHash != "" {
			continue
		}
		if txTime.Before(intent.CreatedAt) {
			continue
		}
		if tx.Amount.Sub(intent.CryptoAmount).Abs().Cmp(tolerance) <= 0 {
			return intent
		}
	}
	return nil
}

// claimTx 登记交易流水, tx_hash撞唯一索引说明已被认领
func (s *MatcherService) claimTx(network string, tx provider.ChainTx, intentID uint) bool {
	entry := model.TransactionLog{
		Network:     network,
		TxHash:      tx.TxHash,
		FromAddress: tx.FromAddress,
		ToAddress:   tx.ToAddress,
		Amount:      tx.Amount.String(),
		Matched:     true,
		IntentID:    &intentID,
	}
	if err := s.db.Create(&entry).Error; err != nil {
		return false
	}
	return true
}

// settle 记录交易指纹并在确认数达标时置为已支付
func (s *MatcherService) settle(ctx context.Context, p provider.Provider, intent *model.PaymentIntent, tx provider.ChainTx) {
	confirmations := tx.Confirmations
	if confirmations == 0 {
		c, err := p.Confirmations(ctx, tx.TxHash)
		if err != nil {
			log.Printf("Failed to get confirmations for %s: %v", tx.TxHash, err)
		} else {
			confirmations = c
		}
	}

	// 先固化交易指纹, 确认数未达标时留待下一轮
	err := s.db.Model(&model.PaymentIntent{}).
		Where("id = ? AND status = ?", intent.ID, model.IntentStatusPending).
		Updates(map[string]interface{}{"tx_hash": tx.TxHash, "confirmations": confirmations}).Error
	if err != nil {
		log.Printf("Failed to record tx for intent %s: %v", intent.IntentID, err)
		return
	}
	intent.TxHash = tx.TxHash
	intent.Confirmations = confirmations

	log.Printf("Matched tx %s to intent %s (%s confirmations: %d)",
		tx.TxHash, intent.IntentID, intent.Network, confirmations)

	if confirmations >= s.threshold(intent.Network) {
		s.markPaid(intent)
	}
}

// refreshConfirmations 已定位交易的意向只需补确认数
func (s *MatcherService) refreshConfirmations(ctx context.Context, p provider.Provider, intent *model.PaymentIntent) {
	confirmations, err := p.Confirmations(ctx, intent.TxHash)
	if err != nil {
		log.Printf("Failed to refresh confirmations for %s: %v", intent.TxHash, err)
		return
	}
	if confirmations != intent.Confirmations {
		s.db.Model(&model.PaymentIntent{}).Where("id = ?", intent.ID).
			Update("confirmations", confirmations)
		intent.Confirmations = confirmations
	}
	if confirmations >= s.threshold(intent.Network) {
		s.markPaid(intent)
	}
}

// markPaid 条件更新, 只有待支付状态能迁移到已支付
func (s *MatcherService) markPaid(intent *model.PaymentIntent) {
	now := time.Now()
	result := s.db.Model(&model.PaymentIntent{}).
		Where("id = ? AND status = ?", intent.ID, model.IntentStatusPending).
		Updates(map[string]interface{}{
			"status":        model.IntentStatusPaid,
			"confirmations": intent.Confirmations,
			"paid_at":       now,
		})
	if result.Error != nil {
		log.Printf("Failed to mark intent %s paid: %v", intent.IntentID, result.Error)
		return
	}
	if result.RowsAffected == 0 {
		return
	}
	intent.Status = model.IntentStatusPaid
	intent.PaidAt = &now
	log.Printf("Payment intent %s paid: tx %s", intent.IntentID, intent.TxHash)

	s.resolver.Release(intent.Network, intent.PayAddress, intent.ID)

	if err := s.webhooks.NotifyPaid(intent); err != nil {
		log.Printf("Webhook pending retry for intent %s: %v", intent.IntentID, err)
	}
}

// threshold 确认数阈值, 数据库配置可覆盖链配置
func (s *MatcherService) threshold(network string) int {
	var cfg model.SystemConfig
	key := model.ConfigKeyConfirmationsPrefix + network
	if err := s.db.Where("`key` = ?", key).First(&cfg).Error; err == nil {
		if n, err := strconv.Atoi(cfg.Value); err == nil && n > 0 {
			return n
		}
	}
	if chain, ok := s.cfg.Chain(network); ok && chain.Confirmations > 0 {
		return chain.Confirmations
	}
	return 1
}
