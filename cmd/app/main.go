package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "cardtool-backend/docs"
	"cardtool-backend/internal/common/config"
	"cardtool-backend/internal/common/logger"
	"cardtool-backend/internal/common/middleware"
	cardhttp "cardtool-backend/internal/features/card/delivery/http"
	"cardtool-backend/internal/features/card/issuing"
	cardpg "cardtool-backend/internal/features/card/repository/postgres"
	cardservice "cardtool-backend/internal/features/card/service"
	kychttp "cardtool-backend/internal/features/kyc/delivery/http"
	kycservice "cardtool-backend/internal/features/kyc/service"
	"cardtool-backend/internal/features/kyc/sumsub"
	"cardtool-backend/internal/features/payment/coinbase"
	"cardtool-backend/internal/features/payment/cryptomus"
	userhttp "cardtool-backend/internal/features/user/delivery/http"
	userpg "cardtool-backend/internal/features/user/repository/postgres"
	usercache "cardtool-backend/internal/features/user/repository/redis"
	userservice "cardtool-backend/internal/features/user/service"
	wallethttp "cardtool-backend/internal/features/wallet/delivery/http"
	walletpg "cardtool-backend/internal/features/wallet/repository/postgres"
	walletservice "cardtool-backend/internal/features/wallet/service"
	webhookhttp "cardtool-backend/internal/features/webhook/delivery/http"
	webhookpg "cardtool-backend/internal/features/webhook/repository/postgres"
	"cardtool-backend/internal/platform/db"
	platformredis "cardtool-backend/internal/platform/redis"
	"cardtool-backend/internal/platform/telegram"
)

// @title           Card Tool API
// @version         1.0
// @description     Backend for the Telegram mini-app virtual card product.

// @host      localhost:8080
// @BasePath  /api

// @tag.name auth
// @tag.description Telegram initData login and session management

// @tag.name users
// @tag.description User profile

// @tag.name wallet
// @tag.description Top-ups, transfers, withdrawals and transaction history

// @tag.name cards
// @tag.description Virtual card purchase and management

// @tag.name kyc
// @tag.description Identity verification

// @tag.name referrals
// @tag.description Referral program

// @tag.name admin
// @tag.description Withdrawal review

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger.Init("cardtool-backend", cfg.Debug)
	logger.Info().Bool("debug", cfg.Debug).Msg("starting cardtool backend")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer pool.Close()

	redisClient, err := platformredis.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connect failed")
	}
	defer redisClient.Close()

	notifier, err := telegram.NewNotifier(cfg.Telegram.BotToken)
	if err != nil {
		logger.Fatal().Err(err).Msg("telegram bot init failed")
	}

	cardPrice, err := decimal.NewFromString(cfg.Card.PriceUSDT)
	if err != nil || cardPrice.Sign() <= 0 {
		logger.Fatal().Str("value", cfg.Card.PriceUSDT).Msg("CARD_PRICE_USDT must be a positive decimal")
	}

	// Repositories.
	userRepo := userpg.NewRepository(pool)
	walletRepo := walletpg.NewRepository(pool)
	cardRepo := cardpg.NewCardRepository(pool)
	eventStore := webhookpg.NewEventStore(pool)
	userCache := usercache.NewUserCache(redisClient, 5*time.Minute)

	// External providers.
	issuer := issuing.NewStripeIssuer(cfg.Stripe.SecretKey)
	sumsubClient := sumsub.NewClient(cfg.Sumsub.BaseURL, cfg.Sumsub.AppToken, cfg.Sumsub.SecretKey)
	cryptomusClient := cryptomus.NewClient(cfg.Cryptomus.BaseURL, cfg.Cryptomus.MerchantID, cfg.Cryptomus.PaymentKey, cfg.Cryptomus.CallbackURL)
	coinbaseClient := coinbase.NewClient(cfg.Coinbase.BaseURL, cfg.Coinbase.APIKey)

	// Services.
	userSvc := userservice.NewUserService(userRepo, userCache)
	walletSvc := walletservice.NewWalletService(walletRepo)
	cardSvc := cardservice.NewCardService(cardRepo, issuer, userSvc, cardPrice)
	kycSvc := kycservice.NewKYCService(sumsubClient, userSvc, cfg.Sumsub.LevelName)

	reconciler := cardservice.NewReconciler(cardRepo,
		time.Duration(cfg.Card.SweepIntervalSeconds)*time.Second,
		time.Duration(cfg.Card.SweepCutoffSeconds)*time.Second)
	go reconciler.Run(ctx)

	router := newRouter(cfg)

	api := router.Group("/api")

	authHandler := userhttp.NewAuthHandler(userSvc, cfg)

	// Session-less surface: login, webhooks, health.
	authHandler.RegisterRoutes(api)
	webhookhttp.NewStripeHandler(cfg.Stripe.WebhookSecret, cardSvc, eventStore).RegisterRoutes(api)
	webhookhttp.NewCryptomusHandler(cfg.Cryptomus.PaymentKey, walletRepo).RegisterRoutes(api)
	webhookhttp.NewSumsubHandler(cfg.Sumsub.WebhookSecretKey, kycSvc, eventStore, notifier).RegisterRoutes(api)

	// Session-gated surface.
	protected := api.Group("")
	protected.Use(middleware.SessionGuard(cfg.Session.Secret))
	authHandler.RegisterProtected(protected)
	kychttp.NewKYCHandler(kycSvc).RegisterRoutes(protected)
	cardhttp.NewCardHandler(cardSvc).RegisterRoutes(protected)
	wallethttp.NewWalletHandler(walletSvc, cryptomusClient, coinbaseClient).RegisterRoutes(protected)

	admin := protected.Group("/admin")
	admin.Use(middleware.AdminGuard(userSvc))
	wallethttp.NewAdminHandler(walletSvc).RegisterRoutes(admin)

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	registerHealth(router, pool, redisClient)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("forced shutdown")
	}
	logger.Info().Msg("server stopped")
}

func newRouter(cfg *config.Config) *gin.Engine {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Server.Origin}
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Content-Type", "Authorization", "Accept"}
	router.Use(cors.New(corsConfig))

	return router
}

func registerHealth(router *gin.Engine, pool *db.Pool, rdb *redis.Client) {
	router.GET("/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	readiness := func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := pool.HealthCheck(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "postgres": err.Error()})
			return
		}
		if err := rdb.Ping(ctx).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "redis": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
	router.GET("/health", readiness)
	router.GET("/ready", readiness)
}
