package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"cryptopay/config"
	"cryptopay/internal/middleware"
	"cryptopay/internal/model"
	"cryptopay/internal/service"
	"cryptopay/internal/util"
)

// AdminHandler 管理后台API
type AdminHandler struct {
	db        *gorm.DB
	cfg       *config.Config
	merchants *service.MerchantService
	intents   *service.IntentService
	webhooks  *service.WebhookService
}

func NewAdminHandler(db *gorm.DB, cfg *config.Config, merchants *service.MerchantService, intents *service.IntentService, webhooks *service.WebhookService) *AdminHandler {
	return &AdminHandler{db: db, cfg: cfg, merchants: merchants, intents: intents, webhooks: webhooks}
}

// Login 管理员登录
// POST /api/admin/login
func (h *AdminHandler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.ValidationError(c, err.Error())
		return
	}

	var admin model.Admin
	if err := h.db.Where("username = ? AND status = 1", req.Username).First(&admin).Error; err != nil {
		util.Unauthorized(c, "invalid username or password")
		return
	}
	if !util.CheckPassword(req.Password, admin.Password) {
		util.Unauthorized(c, "invalid username or password")
		return
	}

	token, err := middleware.GenerateAdminToken(h.cfg, admin.ID, admin.Username)
	if err != nil {
		util.ServerError(c, "failed to generate token")
		return
	}

	now := time.Now()
	h.db.Model(&admin).Update("last_login", now)

	util.Success(c, gin.H{
		"token":    token,
		"username": admin.Username,
	})
}

// ============ 商户管理 ============

// CreateMerchant 创建商户
// POST /api/admin/merchants
func (h *AdminHandler) CreateMerchant(c *gin.Context) {
	var req service.CreateMerchantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.ValidationError(c, err.Error())
		return
	}
	creds, err := h.merchants.Create(&req)
	if err != nil {
		util.Error(c, err.Error())
		return
	}
	util.Success(c, creds)
}

// ListMerchants 商户列表
// GET /api/admin/merchants
func (h *AdminHandler) ListMerchants(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	merchants, total, err := h.merchants.List(page, pageSize)
	if err != nil {
		util.Error(c, err.Error())
		return
	}
	util.SuccessPage(c, merchants, total, page)
}

// UpdateMerchant 更新商户
// PUT /api/admin/merchants/:id
func (h *AdminHandler) UpdateMerchant(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		util.ValidationError(c, "invalid merchant id")
		return
	}
	var req service.UpdateMerchantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.ValidationError(c, err.Error())
		return
	}
	merchant, err := h.merchants.Update(uint(id), &req)
	if err != nil {
		util.NotFound(c, "merchant not found")
		return
	}
	util.Success(c, merchant)
}

// ResetMerchantKeys 重置商户密钥
// POST /api/admin/merchants/:id/reset-keys
func (h *AdminHandler) ResetMerchantKeys(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		util.ValidationError(c, "invalid merchant id")
		return
	}
	creds, err := h.merchants.ResetKeys(uint(id))
	if err != nil {
		util.NotFound(c, "merchant not found")
		return
	}
	util.Success(c, creds)
}

// ============ 地址池管理 ============

// AddWalletAddress 添加地址
// POST /api/admin/wallets
func (h *AdminHandler) AddWalletAddress(c *gin.Context) {
	var req struct {
		Network string `json:"network" binding:"required"`
		Address string `json:"address" binding:"required,max=100"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.ValidationError(c, err.Error())
		return
	}
	wallet, err := h.merchants.AddWalletAddress(req.Network, req.Address)
	if err != nil {
		util.Error(c, err.Error())
		return
	}
	util.Success(c, wallet)
}

// ListWalletAddresses 地址池列表
// GET /api/admin/wallets
func (h *AdminHandler) ListWalletAddresses(c *gin.Context) {
	wallets, err := h.merchants.ListWalletAddresses(c.Query("network"))
	if err != nil {
		util.Error(c, err.Error())
		return
	}
	util.Success(c, wallets)
}

// ============ 意向管理 ============

// ListIntents 意向列表
// GET /api/admin/intents
func (h *AdminHandler) ListIntents(c *gin.Context) {
	var query model.IntentQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		util.ValidationError(c, err.Error())
		return
	}
	intents, total, err := h.intents.ListIntents(&query)
	if err != nil {
		util.Error(c, err.Error())
		return
	}
	util.SuccessPage(c, intents, total, query.Page)
}

// ResendWebhook 手动补投回调
// POST /api/admin/intents/:intent_id/notify
func (h *AdminHandler) ResendWebhook(c *gin.Context) {
	var intent model.PaymentIntent
	if err := h.db.Where("intent_id = ?", c.Param("intent_id")).First(&intent).Error; err != nil {
		util.NotFound(c, "payment intent not found")
		return
	}
	if intent.Status != model.IntentStatusPaid {
		util.ValidationError(c, "intent is not paid")
		return
	}

	// 手动补投不受已送达状态限制, 重置后再投
	if intent.WebhookStatus == model.WebhookStatusSent {
		h.db.Model(&intent).Update("webhook_status", model.WebhookStatusFailed)
		intent.WebhookStatus = model.WebhookStatusFailed
	}
	if err := h.webhooks.NotifyPaid(&intent); err != nil {
		util.Error(c, err.Error())
		return
	}
	util.Success(c, gin.H{"webhook_status": intent.WebhookStatus})
}

// ============ 系统配置 ============

// ListConfigs 配置列表
// GET /api/admin/configs
func (h *AdminHandler) ListConfigs(c *gin.Context) {
	var configs []model.SystemConfig
	if err := h.db.Order("id").Find(&configs).Error; err != nil {
		util.Error(c, err.Error())
		return
	}
	util.Success(c, configs)
}

// SetConfig 设置配置项
// PUT /api/admin/configs
func (h *AdminHandler) SetConfig(c *gin.Context) {
	var req struct {
		Key         string `json:"key" binding:"required,max=50"`
		Value       string `json:"value" binding:"required"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.ValidationError(c, err.Error())
		return
	}

	var cfg model.SystemConfig
	err := h.db.Where("`key` = ?", req.Key).First(&cfg).Error
	if err == gorm.ErrRecordNotFound {
		cfg = model.SystemConfig{Key: req.Key, Value: req.Value, Description: req.Description}
		err = h.db.Create(&cfg).Error
	} else if err == nil {
		updates := map[string]interface{}{"value": req.Value}
		if req.Description != "" {
			updates["description"] = req.Description
		}
		err = h.db.Model(&cfg).Updates(updates).Error
	}
	if err != nil {
		util.Error(c, err.Error())
		return
	}
	util.Success(c, cfg)
}

// ============ 交易流水 ============

// ListTransactionLogs 链上交易流水
// GET /api/admin/transactions
func (h *AdminHandler) ListTransactionLogs(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	db := h.db.Model(&model.TransactionLog{})
	if network := c.Query("network"); network != "" {
		db = db.Where("network = ?", util.NormalizeNetwork(network))
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		util.Error(c, err.Error())
		return
	}

	var logs []model.TransactionLog
	if err := db.Order("id DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&logs).Error; err != nil {
		util.Error(c, err.Error())
		return
	}
	util.SuccessPage(c, logs, total, page)
}
