package provider

import (
	"context"

	"github.com/shopspring/decimal"
)

// ChainTx 链上转账 (瞬态, 不落库)
// Amount 已归一化为代币可读单位, Timestamp 为毫秒时间戳
// Confirmations 为0表示数据源未携带确认深度, 需单独查询
type ChainTx struct {
	TxHash        string
	FromAddress   string
	ToAddress     string
	Amount        decimal.Decimal
	Timestamp     int64
	Confirmations int
}

// Provider 链交易数据源
// FetchIncoming 只返回转入指定地址的交易; 任何传输/解析失败
// 一律记录日志并返回空列表, 不得中断整个对账周期
type Provider interface {
	Supports(network string) bool
	FetchIncoming(ctx context.Context, address string, sinceMillis int64) []ChainTx
	Confirmations(ctx context.Context, txHash string) (int, error)
}

// Registry 数据源注册表, 按网络能力路由
type Registry struct {
	providers []Provider
}

func NewRegistry(providers ...Provider) *Registry {
	return &Registry{providers: providers}
}

// Register 注册数据源
func (r *Registry) Register(p Provider) {
	r.providers = append(r.providers, p)
}

// For 查找支持指定网络的数据源
func (r *Registry) For(network string) (Provider, bool) {
	for _, p := range r.providers {
		if p.Supports(network) {
			return p, true
		}
	}
	return nil, false
}

// parseTokenAmount 解析最小单位的代币金额 (USDT两条链均为6位精度)
func parseTokenAmount(value string, decimals int) decimal.Decimal {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero
	}
	return d.Shift(int32(-decimals))
}
