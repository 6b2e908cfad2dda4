package util

import (
	"strings"
)

// NormalizeNetwork 标准化网络名
func NormalizeNetwork(network string) string {
	switch strings.ToLower(network) {
	case "trc20", "tron", "usdt_trc20":
		return "trc20"
	case "erc20", "eth", "ethereum", "usdt_erc20":
		return "erc20"
	default:
		return strings.ToLower(network)
	}
}

// IsValidNetwork 检查网络是否受支持
func IsValidNetwork(network string) bool {
	switch network {
	case "trc20", "erc20":
		return true
	}
	return false
}

// SameAddress 地址比较 (不区分大小写)
// ERC20地址有大小写混用的校验和写法, TRC20为Base58但比较时同样宽松处理
func SameAddress(a, b string) bool {
	return strings.EqualFold(a, b)
}

// MaskAddress 遮蔽地址中间部分
func MaskAddress(address string) string {
	if len(address) < 10 {
		return address
	}
	return address[:6] + "..." + address[len(address)-4:]
}
