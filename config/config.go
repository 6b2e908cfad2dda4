package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig           `mapstructure:"server"`
	Database DatabaseConfig         `mapstructure:"database"`
	JWT      JWTConfig              `mapstructure:"jwt"`
	Security SecurityConfig         `mapstructure:"security"`
	Payment  PaymentConfig          `mapstructure:"payment"`
	Notify   NotifyConfig           `mapstructure:"notify"`
	Rates    map[string]float64     `mapstructure:"rates"`
	Chains   map[string]ChainConfig `mapstructure:"chains"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`    // 最大打开连接数
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`    // 最大空闲连接数
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // 连接最大生命周期(分钟)
}

type JWTConfig struct {
	Secret     string `mapstructure:"secret"`
	ExpireHour int    `mapstructure:"expire_hour"` // Token过期时间(小时)
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	RateLimitAPI      float64  `mapstructure:"rate_limit_api"`       // API每秒请求数
	RateLimitAPIBurst int      `mapstructure:"rate_limit_api_burst"` // API突发容量
	CORSAllowOrigins  []string `mapstructure:"cors_allow_origins"`   // 允许的来源域名
	HTTPTimeout       int      `mapstructure:"http_timeout"`         // 外部HTTP请求超时(秒)
}

// PaymentConfig 支付意向配置
type PaymentConfig struct {
	AddressMode         string  `mapstructure:"address_mode"`          // 地址策略: fixed(共享管理地址) / pool(地址池)
	ExpireMinutes       int     `mapstructure:"expire_minutes"`        // 意向过期时间(分钟)
	PollIntervalSeconds int     `mapstructure:"poll_interval_seconds"` // 链上对账轮询间隔(秒)
	MatchTolerance      float64 `mapstructure:"match_tolerance"`       // 金额匹配容差, 必须小于最小唯一化偏移0.01
	SkewMinutes         int     `mapstructure:"skew_minutes"`          // 回溯时间窗口(分钟), 吸收时钟偏差
}

// NotifyConfig 商户回调配置
type NotifyConfig struct {
	Timeout     int `mapstructure:"timeout"`      // 回调超时(秒)
	MaxAttempts int `mapstructure:"max_attempts"` // 最大投递次数(跨轮询周期累计)
}

// ChainConfig 链配置
type ChainConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Endpoint      string `mapstructure:"endpoint"`      // 浏览器API地址 (TronGrid / Etherscan)
	APIKey        string `mapstructure:"api_key"`       // 浏览器API密钥
	AdminAddress  string `mapstructure:"admin_address"` // 管理员收款地址 (fixed模式)
	USDTContract  string `mapstructure:"usdt_contract"` // USDT合约地址
	Confirmations int    `mapstructure:"confirmations"` // 确认数阈值
}

var cfg *Config

// getExeDir 获取可执行文件所在目录
func getExeDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	exeDir := getExeDir()

	// 按优先级添加配置路径
	viper.AddConfigPath(exeDir)
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/cryptopay")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// 配置文件不存在，创建默认配置
			if err := createDefaultConfig(); err != nil {
				return nil, fmt.Errorf("failed to create default config: %w", err)
			}
			if err := viper.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		} else {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg = &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

func Get() *Config {
	return cfg
}

// Chain 获取指定网络的链配置
func (c *Config) Chain(network string) (ChainConfig, bool) {
	chain, ok := c.Chains[network]
	return chain, ok
}

func setDefaults() {
	// Server
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 6090)

	// Database
	viper.SetDefault("database.host", "127.0.0.1")
	viper.SetDefault("database.port", 3306)
	viper.SetDefault("database.user", "cryptopay")
	viper.SetDefault("database.password", "cryptopay123")
	viper.SetDefault("database.dbname", "cryptopay")
	viper.SetDefault("database.max_open_conns", 100)
	viper.SetDefault("database.max_idle_conns", 10)
	viper.SetDefault("database.conn_max_lifetime", 60)

	// JWT
	viper.SetDefault("jwt.secret", "change-this-secret-key-in-production")
	viper.SetDefault("jwt.expire_hour", 24)

	// Security
	viper.SetDefault("security.rate_limit_api", 20)
	viper.SetDefault("security.rate_limit_api_burst", 50)
	viper.SetDefault("security.cors_allow_origins", []string{})
	viper.SetDefault("security.http_timeout", 15)

	// Payment
	viper.SetDefault("payment.address_mode", "fixed")
	viper.SetDefault("payment.expire_minutes", 30)
	viper.SetDefault("payment.poll_interval_seconds", 20)
	viper.SetDefault("payment.match_tolerance", 0.001)
	viper.SetDefault("payment.skew_minutes", 5)

	// Notify
	viper.SetDefault("notify.timeout", 10)
	viper.SetDefault("notify.max_attempts", 5)

	// 汇率表 (FIAT:CRYPTO), 未配置的组合按1.0处理
	viper.SetDefault("rates", map[string]float64{"USD:USDT": 1.0})

	// TRC20 (Tron / TronGrid)
	viper.SetDefault("chains.trc20.enabled", true)
	viper.SetDefault("chains.trc20.endpoint", "https://api.trongrid.io")
	viper.SetDefault("chains.trc20.api_key", "")
	viper.SetDefault("chains.trc20.admin_address", "")
	viper.SetDefault("chains.trc20.usdt_contract", "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t")
	viper.SetDefault("chains.trc20.confirmations", 1)

	// ERC20 (Ethereum / Etherscan)
	viper.SetDefault("chains.erc20.enabled", false)
	viper.SetDefault("chains.erc20.endpoint", "https://api.etherscan.io")
	viper.SetDefault("chains.erc20.api_key", "")
	viper.SetDefault("chains.erc20.admin_address", "")
	viper.SetDefault("chains.erc20.usdt_contract", "0xdAC17F958D2ee523a2206206994597C13D831ec7")
	viper.SetDefault("chains.erc20.confirmations", 6)
}

func createDefaultConfig() error {
	configContent := `# CryptoPay 配置文件
# 商户和地址池在数据库/管理接口中管理

server:
  host: "0.0.0.0"
  port: 6090

database:
  host: "127.0.0.1"
  port: 3306
  user: "cryptopay"
  password: "cryptopay123"
  dbname: "cryptopay"
  max_open_conns: 100
  max_idle_conns: 10
  conn_max_lifetime: 60

jwt:
  secret: "change-this-secret-key-in-production"
  expire_hour: 24

security:
  rate_limit_api: 20
  rate_limit_api_burst: 50
  cors_allow_origins: []
  http_timeout: 15

payment:
  address_mode: "fixed"
  expire_minutes: 30
  poll_interval_seconds: 20
  match_tolerance: 0.001
  skew_minutes: 5

notify:
  timeout: 10
  max_attempts: 5

rates:
  "USD:USDT": 1.0

chains:
  trc20:
    enabled: true
    endpoint: "https://api.trongrid.io"
    api_key: ""
    admin_address: ""
    usdt_contract: "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t"
    confirmations: 1
  erc20:
    enabled: false
    endpoint: "https://api.etherscan.io"
    api_key: ""
    admin_address: ""
    usdt_contract: "0xdAC17F958D2ee523a2206206994597C13D831ec7"
    confirmations: 6
`

	configPath := filepath.Join(getExeDir(), "config.yaml")
	return os.WriteFile(configPath, []byte(configContent), 0644)
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.DBName)
}
