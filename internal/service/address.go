package service

import (
	"log"

	"gorm.io/gorm"

	"cryptopay/config"
	"cryptopay/internal/model"
)

// AddressResolver 收款地址分配策略
// fixed模式所有意向共用管理地址, pool模式每笔意向独占地址
type AddressResolver interface {
	// Resolve 为新意向分配收款地址
	Resolve(network string, intentID uint) (string, error)
	// Release 意向进入终态后释放地址
	Release(network, address string, intentID uint)
}

// NewAddressResolver 按配置选择分配策略
func NewAddressResolver(db *gorm.DB, cfg *config.Config) AddressResolver {
	if cfg.Payment.AddressMode == "pool" {
		return &PoolResolver{db: db}
	}
	return &FixedResolver{cfg: cfg}
}

// FixedResolver 固定地址模式, 直接返回配置里的管理地址
type FixedResolver struct {
	cfg *config.Config
}

func (r *FixedResolver) Resolve(network string, intentID uint) (string, error) {
	chain, ok := r.cfg.Chain(network)
	if !ok || chain.AdminAddress == "" {
		return "", ErrNoAddress
	}
	return chain.AdminAddress, nil
}

func (r *FixedResolver) Release(network, address string, intentID uint) {
	// 共享地址无需回收
}

// PoolResolver 地址池模式
type PoolResolver struct {
	db *gorm.DB
}

// Resolve 原子占用一个空闲地址
func (r *PoolResolver) Resolve(network string, intentID uint) (string, error) {
	var addr model.WalletAddress
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("network = ? AND assigned = ?", network, false).
			Order("id").First(&addr).Error; err != nil {
			return err
		}
		// 条件更新防止并发抢占同一地址
		result := tx.Model(&model.WalletAddress{}).
			Where("id = ? AND assigned = ?", addr.ID, false).
			Updates(map[string]interface{}{"assigned": true, "intent_id": intentID})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		return "", ErrNoAddress
	}
	return addr.Address, nil
}

// Release 归还地址到池里
func (r *PoolResolver) Release(network, address string, intentID uint) {
	result := r.db.Model(&model.WalletAddress{}).
		Where("network = ? AND address = ? AND intent_id = ?", network, address, intentID).
		Updates(map[string]interface{}{"assigned": false, "intent_id": nil})
	if result.Error != nil {
		log.Printf("Failed to release address %s on %s: %v", address, network, result.Error)
	}
}
