package service

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"cryptopay/internal/model"
	"cryptopay/internal/util"
)

// MerchantService 商户管理
type MerchantService struct {
	db *gorm.DB
}

func NewMerchantService(db *gorm.DB) *MerchantService {
	return &MerchantService{db: db}
}

// CreateMerchantRequest 创建商户请求
type CreateMerchantRequest struct {
	Name       string `json:"name" binding:"required,max=100"`
	WebhookURL string `json:"webhook_url" binding:"omitempty,url"`
}

// MerchantCredentials 创建/重置时一次性返回的密钥
type MerchantCredentials struct {
	Merchant      *model.Merchant `json:"merchant"`
	APIKey        string          `json:"api_key"`
	WebhookSecret string          `json:"webhook_secret"`
}

// Create 创建商户, API密钥和回调密钥只在响应中出现一次
func (s *MerchantService) Create(req *CreateMerchantRequest) (*MerchantCredentials, error) {
	apiKey := util.GenerateAPIKey()
	secret := util.GenerateWebhookSecret()
	merchant := model.Merchant{
		Name:          req.Name,
		APIKey:        apiKey,
		WebhookURL:    req.WebhookURL,
		WebhookSecret: secret,
		Status:        1,
	}
	if err := s.db.Create(&merchant).Error; err != nil {
		return nil, fmt.Errorf("failed to create merchant: %w", err)
	}
	return &MerchantCredentials{Merchant: &merchant, APIKey: apiKey, WebhookSecret: secret}, nil
}

// Get 查询商户
func (s *MerchantService) Get(id uint) (*model.Merchant, error) {
	var merchant model.Merchant
	if err := s.db.First(&merchant, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMerchantNotFound
		}
		return nil, err
	}
	return &merchant, nil
}

// List 分页查询商户
func (s *MerchantService) List(page, pageSize int) ([]model.Merchant, int64, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	var total int64
	if err := s.db.Model(&model.Merchant{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var merchants []model.Merchant
	err := s.db.Order("id DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&merchants).Error
	return merchants, total, err
}

// UpdateMerchantRequest 更新商户请求
type UpdateMerchantRequest struct {
	Name       string `json:"name" binding:"omitempty,max=100"`
	WebhookURL string `json:"webhook_url" binding:"omitempty,url"`
	Status     *int8  `json:"status"`
}

// Update 更新商户信息
func (s *MerchantService) Update(id uint, req *UpdateMerchantRequest) (*model.Merchant, error) {
	merchant, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if req.Name != "" {
		updates["name"] = req.Name
	}
	if req.WebhookURL != "" {
		updates["webhook_url"] = req.WebhookURL
	}
	if req.Status != nil {
		updates["status"] = *req.Status
	}
	if len(updates) > 0 {
		if err := s.db.Model(merchant).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return merchant, nil
}

// ResetKeys 重置API密钥和回调密钥
func (s *MerchantService) ResetKeys(id uint) (*MerchantCredentials, error) {
	merchant, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	apiKey := util.GenerateAPIKey()
	secret := util.GenerateWebhookSecret()
	err = s.db.Model(merchant).Updates(map[string]interface{}{
		"api_key":        apiKey,
		"webhook_secret": secret,
	}).Error
	if err != nil {
		return nil, err
	}
	return &MerchantCredentials{Merchant: merchant, APIKey: apiKey, WebhookSecret: secret}, nil
}

// AddWalletAddress 向地址池添加地址
func (s *MerchantService) AddWalletAddress(network, address string) (*model.WalletAddress, error) {
	network = util.NormalizeNetwork(network)
	if !util.IsValidNetwork(network) {
		return nil, fmt.Errorf("%w: unsupported network %s", ErrInvalidRequest, network)
	}
	wallet := model.WalletAddress{Network: network, Address: address}
	if err := s.db.Create(&wallet).Error; err != nil {
		return nil, fmt.Errorf("failed to add wallet address: %w", err)
	}
	return &wallet, nil
}

// ListWalletAddresses 查询地址池
func (s *MerchantService) ListWalletAddresses(network string) ([]model.WalletAddress, error) {
	db := s.db.Order("id")
	if network != "" {
		db = db.Where("network = ?", util.NormalizeNetwork(network))
	}
	var wallets []model.WalletAddress
	err := db.Find(&wallets).Error
	return wallets, err
}
