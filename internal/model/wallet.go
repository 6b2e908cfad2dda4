package model

import (
	"time"

	"gorm.io/gorm"
)

// WalletAddress 地址池表 (pool模式)
// 每笔待支付意向独占一个地址, 过期后回收复用
type WalletAddress struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	Network    string         `gorm:"type:varchar(20);not null;uniqueIndex:uk_network_address" json:"network"`
	Address    string         `gorm:"type:varchar(100);not null;uniqueIndex:uk_network_address" json:"address"`
	Assigned   bool           `gorm:"default:false;index" json:"assigned"`
	IntentID   *uint          `json:"intent_id,omitempty"` // 当前占用的意向
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}

func (WalletAddress) TableName() string {
	return "wallet_addresses"
}
