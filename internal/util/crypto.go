package util

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword 密码加密
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPassword 验证密码
func CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// GenerateIntentID 生成意向号
// 格式: 年月日时分秒 + 6位随机十六进制
func GenerateIntentID() string {
	now := time.Now()
	return fmt.Sprintf("pi_%s%s", now.Format("20060102150405"), GenerateRandomHex(3))
}

// GenerateRandomHex 生成随机十六进制字符串
func GenerateRandomHex(length int) string {
	bytes := make([]byte, length)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

// GenerateAPIKey 生成商户API密钥
func GenerateAPIKey() string {
	return "ck_" + GenerateRandomHex(16)
}

// GenerateWebhookSecret 生成商户回调密钥
func GenerateWebhookSecret() string {
	return "whsec_" + GenerateRandomHex(16)
}
