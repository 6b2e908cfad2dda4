package model

import (
	"time"
)

// SystemConfig 系统配置表
type SystemConfig struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Key         string    `gorm:"type:varchar(50);uniqueIndex;not null" json:"key"`
	Value       string    `gorm:"type:text" json:"value"`
	Description string    `gorm:"type:varchar(200)" json:"description"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (SystemConfig) TableName() string {
	return "system_configs"
}

// 系统配置键名常量
const (
	ConfigKeyIntentExpire      = "intent_expire"       // 意向过期时间(分钟)
	ConfigKeyNotifyMaxAttempts = "notify_max_attempts" // 回调最大投递次数

	// 动态汇率: rate_<FIAT>_<CRYPTO>, 如 rate_USD_USDT
	ConfigKeyRatePrefix = "rate_"
	// 确认数阈值覆盖: confirmations_<network>, 如 confirmations_erc20
	ConfigKeyConfirmationsPrefix = "confirmations_"
)

// TransactionLog 链上交易日志表
// tx_hash 唯一索引保证一笔转账至多认领一次
type TransactionLog struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Network     string    `gorm:"type:varchar(20);not null;index" json:"network"`
	TxHash      string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"tx_hash"`
	FromAddress string    `gorm:"type:varchar(100);index" json:"from_address"`
	ToAddress   string    `gorm:"type:varchar(100);index" json:"to_address"`
	Amount      string    `gorm:"type:varchar(50)" json:"amount"`
	Matched     bool      `gorm:"default:false" json:"matched"` // 是否已匹配意向
	IntentID    *uint     `json:"intent_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func (TransactionLog) TableName() string {
	return "transaction_logs"
}

// Admin 管理员表
type Admin struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	Username  string     `gorm:"type:varchar(50);uniqueIndex;not null" json:"username"`
	Password  string     `gorm:"type:varchar(100);not null" json:"-"`
	Status    int8       `gorm:"default:1" json:"status"`
	LastLogin *time.Time `json:"last_login"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (Admin) TableName() string {
	return "admins"
}
