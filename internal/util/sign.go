package util

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SignPayload 对回调报文体做HMAC-SHA256签名
// 密钥为商户webhook密钥, 输出小写十六进制
func SignPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyPayload 验证回调签名 (常数时间比较)
func VerifyPayload(payload []byte, secret, signature string) bool {
	expected := SignPayload(payload, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}
