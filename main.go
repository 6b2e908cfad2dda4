package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"cryptopay/config"
	"cryptopay/internal/handler"
	"cryptopay/internal/middleware"
	"cryptopay/internal/model"
	"cryptopay/internal/provider"
	"cryptopay/internal/service"
	"cryptopay/internal/util"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化数据库（使用配置的连接池参数）
	dbConfig := model.DBConfig{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Database.ConnMaxLifetime) * time.Minute,
		ConnMaxIdleTime: 10 * time.Minute,
	}
	if err := model.InitDBWithConfig(cfg.Database.DSN(), dbConfig); err != nil {
		log.Fatalf("Failed to init database: %v", err)
	}
	db := model.GetDB()

	// 初始化安全配置
	middleware.InitRateLimiters(cfg.Security.RateLimitAPI, cfg.Security.RateLimitAPIBurst)
	provider.SetHTTPTimeout(cfg.Security.HTTPTimeout)

	// 组装链数据源
	providers := provider.NewRegistry()
	if chain, ok := cfg.Chain("trc20"); ok && chain.Enabled {
		providers.Register(provider.NewTronProvider(chain.Endpoint, chain.APIKey, chain.USDTContract))
		log.Printf("TRC20 provider enabled: %s", chain.Endpoint)
	}
	if chain, ok := cfg.Chain("erc20"); ok && chain.Enabled {
		providers.Register(provider.NewEVMProvider(chain.Endpoint, chain.APIKey, chain.USDTContract))
		log.Printf("ERC20 provider enabled: %s", chain.Endpoint)
	}

	// 组装服务
	rates := service.NewRateService(db, cfg)
	disambiguator := service.NewDisambiguator(db, nil)
	resolver := service.NewAddressResolver(db, cfg)
	intents := service.NewIntentService(db, cfg, rates, disambiguator, resolver)
	webhooks := service.NewWebhookService(db, cfg)
	matcher := service.NewMatcherService(db, cfg, providers, webhooks, resolver)
	merchants := service.NewMerchantService(db)
	poller := service.NewPoller(db, cfg, matcher, webhooks, resolver)

	// 设置Gin模式
	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()

	registerRoutes(r, cfg, db, intents, merchants, webhooks)

	// 启动后台对账
	poller.Start()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("CryptoPay server starting on %s", addr)

	go func() {
		if err := r.Run(addr); err != nil {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	poller.Stop()
	log.Println("Server exited")
}

// registerRoutes 注册路由
func registerRoutes(r *gin.Engine, cfg *config.Config, db *gorm.DB,
	intents *service.IntentService, merchants *service.MerchantService, webhooks *service.WebhookService) {

	// CORS（使用配置的域名白名单）
	r.Use(middleware.CORSWithConfig(cfg.Security.CORSAllowOrigins))

	paymentHandler := handler.NewPaymentHandler(intents)
	adminHandler := handler.NewAdminHandler(db, cfg, merchants, intents, webhooks)

	// ============ 健康检查 ============
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/health/detail", func(c *gin.Context) {
		status := "ok"
		if err := model.CheckDBHealth(); err != nil {
			status = "degraded"
		}
		util.Success(c, gin.H{
			"status":   status,
			"database": model.GetDBStats(),
		})
	})

	// ============ 商户支付API ============
	api := r.Group("/api/v1")
	api.Use(middleware.RateLimit())
	{
		api.POST("/intents", paymentHandler.CreateIntent)
		api.GET("/intents/:intent_id", paymentHandler.GetIntent)
	}

	// ============ 管理后台 ============
	r.POST("/api/admin/login", middleware.LoginRateLimit(), adminHandler.Login)

	adminAPI := r.Group("/api/admin")
	adminAPI.Use(middleware.AdminAuth(cfg))
	{
		// 商户管理
		adminAPI.GET("/merchants", adminHandler.ListMerchants)
		adminAPI.POST("/merchants", adminHandler.CreateMerchant)
		adminAPI.PUT("/merchants/:id", adminHandler.UpdateMerchant)
		adminAPI.POST("/merchants/:id/reset-keys", adminHandler.ResetMerchantKeys)

		// 地址池管理
		adminAPI.GET("/wallets", adminHandler.ListWalletAddresses)
		adminAPI.POST("/wallets", adminHandler.AddWalletAddress)

		// 意向管理
		adminAPI.GET("/intents", adminHandler.ListIntents)
		adminAPI.POST("/intents/:intent_id/notify", adminHandler.ResendWebhook)

		// 系统配置
		adminAPI.GET("/configs", adminHandler.ListConfigs)
		adminAPI.PUT("/configs", adminHandler.SetConfig)

		// 交易流水
		adminAPI.GET("/transactions", adminHandler.ListTransactionLogs)
	}
}
