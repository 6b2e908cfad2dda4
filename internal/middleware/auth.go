package middleware

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"cryptopay/config"
	"cryptopay/internal/util"
)

// ============ 限流器实现 ============

// RateLimiter 基于令牌桶的限流器
type RateLimiter struct {
	mu          sync.RWMutex
	buckets     map[string]*tokenBucket
	rate        float64       // 每秒生成的令牌数
	capacity    int           // 桶容量
	cleanupTick time.Duration // 清理间隔
}

// tokenBucket 令牌桶
type tokenBucket struct {
	tokens     float64
	lastUpdate time.Time
}

// NewRateLimiter 创建限流器
// rate: 每秒允许的请求数, capacity: 突发容量
func NewRateLimiter(rate float64, capacity int) *RateLimiter {
	rl := &RateLimiter{
		buckets:     make(map[string]*tokenBucket),
		rate:        rate,
		capacity:    capacity,
		cleanupTick: 5 * time.Minute,
	}
	// 启动定期清理过期桶
	go rl.cleanup()
	return rl
}

// Allow 检查是否允许请求
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	bucket, exists := rl.buckets[key]

	if !exists {
		rl.buckets[key] = &tokenBucket{
			tokens:     float64(rl.capacity) - 1,
			lastUpdate: now,
		}
		return true
	}

	// 按经过的时间补充令牌
	elapsed := now.Sub(bucket.lastUpdate).Seconds()
	bucket.tokens += elapsed * rl.rate
	if bucket.tokens > float64(rl.capacity) {
		bucket.tokens = float64(rl.capacity)
	}
	bucket.lastUpdate = now

	if bucket.tokens >= 1 {
		bucket.tokens--
		return true
	}
	return false
}

// cleanup 定期清理过期的桶
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.cleanupTick)
	defer ticker.Stop()

	for range ticker.C {
		rl.mu.Lock()
		now := time.Now()
		for key, bucket := range rl.buckets {
			if now.Sub(bucket.lastUpdate) > 10*time.Minute {
				delete(rl.buckets, key)
			}
		}
		rl.mu.Unlock()
	}
}

// 全局限流器实例（默认值，可通过InitRateLimiters重新配置）
var (
	apiRateLimiter   *RateLimiter
	loginRateLimiter *RateLimiter
)

func init() {
	apiRateLimiter = NewRateLimiter(20, 50)
	loginRateLimiter = NewRateLimiter(2, 5)
}

// InitRateLimiters 根据配置初始化限流器
func InitRateLimiters(apiRate float64, apiBurst int) {
	apiRateLimiter = NewRateLimiter(apiRate, apiBurst)
}

// RateLimit API限流中间件
func RateLimit() gin.HandlerFunc {
	return RateLimitWithConfig(apiRateLimiter)
}

// RateLimitWithConfig 带配置的限流中间件
func RateLimitWithConfig(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			util.RateLimitError(c)
			c.Abort()
			return
		}
		c.Next()
	}
}

// LoginRateLimit 登录接口限流中间件（更严格）
func LoginRateLimit() gin.HandlerFunc {
	return RateLimitWithConfig(loginRateLimiter)
}

// ============ 认证中间件 ============

// APIKey 提取商户API密钥
// 优先读X-API-Key, 兼容 Authorization: Bearer <key>
func APIKey(c *gin.Context) string {
	if key := c.GetHeader("X-API-Key"); key != "" {
		return key
	}
	authHeader := c.GetHeader("Authorization")
	if token := strings.TrimPrefix(authHeader, "Bearer "); token != authHeader {
		return token
	}
	return ""
}

// AdminAuth 管理员认证中间件
func AdminAuth(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			util.Unauthorized(c, "missing token")
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			util.Unauthorized(c, "invalid token format")
			c.Abort()
			return
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			return []byte(cfg.JWT.Secret), nil
		})
		if err != nil || !token.Valid {
			util.Unauthorized(c, "token invalid or expired")
			c.Abort()
			return
		}

		if claims, ok := token.Claims.(jwt.MapClaims); ok {
			if adminID, ok := claims["admin_id"].(float64); ok {
				c.Set("admin_id", uint(adminID))
			}
			if username, ok := claims["username"].(string); ok {
				c.Set("username", username)
			}
		}

		c.Next()
	}
}

// GenerateAdminToken 签发管理员Token
func GenerateAdminToken(cfg *config.Config, adminID uint, username string) (string, error) {
	claims := jwt.MapClaims{
		"admin_id": adminID,
		"username": username,
		"exp":      time.Now().Add(time.Duration(cfg.JWT.ExpireHour) * time.Hour).Unix(),
		"iat":      time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.JWT.Secret))
}

// CORS 跨域中间件（带可配置的域名白名单）
func CORS() gin.HandlerFunc {
	return CORSWithConfig(nil)
}

// CORSWithConfig 带配置的CORS中间件
func CORSWithConfig(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		if len(allowedOrigins) > 0 {
			allowed := false
			for _, ao := range allowedOrigins {
				if ao == "*" || ao == origin {
					allowed = true
					break
				}
				// 支持通配符域名 *.example.com
				if strings.HasPrefix(ao, "*.") {
					suffix := ao[1:]
					if strings.HasSuffix(origin, suffix) {
						allowed = true
						break
					}
				}
			}
			if allowed {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
			}
		} else {
			// 未配置白名单时允许所有来源（开发模式）
			c.Header("Access-Control-Allow-Origin", "*")
		}

		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization, X-API-Key, X-Requested-With")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
