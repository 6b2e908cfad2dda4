package model

import (
	"time"

	"gorm.io/gorm"
)

// Merchant 商户表
type Merchant struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	Name          string         `gorm:"type:varchar(100)" json:"name"`
	APIKey        string         `gorm:"column:api_key;type:varchar(64);uniqueIndex;not null" json:"-"`
	WebhookURL    string         `gorm:"type:varchar(500)" json:"webhook_url"`
	WebhookSecret string         `gorm:"type:varchar(64)" json:"-"`
	Status        int8           `gorm:"default:1" json:"status"` // 1:正常 0:禁用
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Merchant) TableName() string {
	return "merchants"
}

// IsActive 商户是否可用
func (m *Merchant) IsActive() bool {
	return m.Status == 1
}
