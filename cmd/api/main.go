package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/innercircle-api/internal/config"
	"github.com/yourusername/innercircle-api/internal/domain/repository"
	"github.com/yourusername/innercircle-api/internal/handler"
	"github.com/yourusername/innercircle-api/internal/middleware"
	pgRepo "github.com/yourusername/innercircle-api/internal/repository/postgres"
	redisRepo "github.com/yourusername/innercircle-api/internal/repository/redis"
	"github.com/yourusername/innercircle-api/internal/service"
	"github.com/yourusername/innercircle-api/pkg/database"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	log.Printf("Loading configuration from %s", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		os.Exit(1)
	}

	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString())
	if err != nil {
		log.Printf("Failed to connect to database: %v", err)
		os.Exit(1)
	}

	if err := database.MigrateDB(db); err != nil {
		log.Printf("Failed to migrate database: %v", err)
		os.Exit(1)
	}

	// Redis is optional: without it the stats cache is simply disabled.
	var statsCache repository.CacheRepository
	if cfg.Redis.RedisConfigured() {
		redisClient, err := database.NewUniversalRedisClient(cfg.Redis)
		if err != nil {
			log.Printf("Failed to connect to Redis: %v", err)
			os.Exit(1)
		}
		cacheRepo, err := redisRepo.NewCacheRepo(redisClient)
		if err != nil {
			log.Printf("Failed to initialize CacheRepo: %v", err)
			os.Exit(1)
		}
		statsCache = cacheRepo
		log.Println("Successfully connected to Redis")
	} else {
		log.Println("Redis not configured, stats caching disabled")
	}

	companyCodeRepo := pgRepo.NewCompanyCodeRepo(db)
	memberRepo := pgRepo.NewMemberRepo(db)

	var emailService service.EmailService
	switch cfg.Email.Provider {
	case "noop":
		emailService = &service.NoopEmailService{}
	default:
		emailService, err = service.NewResendEmailService(cfg.Email.ResendKey, cfg.Email.FromAddress)
		if err != nil {
			log.Printf("Failed to initialize ResendEmailService: %v", err)
			os.Exit(1)
		}
	}

	var commerceService service.CommerceService
	switch cfg.Commerce.Provider {
	case "noop":
		commerceService = &service.NoopCommerceService{}
	default:
		commerceService, err = service.NewShopifyCommerceService(cfg.Commerce.ShopDomain, cfg.Commerce.AccessToken, cfg.Commerce.APIVersion)
		if err != nil {
			log.Printf("Failed to initialize ShopifyCommerceService: %v", err)
			os.Exit(1)
		}
	}

	verificationService, err := service.NewVerificationService(
		companyCodeRepo,
		memberRepo,
		emailService,
		commerceService,
		cfg.App.FrontendBaseURL,
		time.Duration(cfg.App.TokenTTLHours)*time.Hour,
		cfg.App.DiscountPercent,
	)
	if err != nil {
		log.Printf("Failed to initialize VerificationService: %v", err)
		os.Exit(1)
	}

	adminService, err := service.NewAdminService(companyCodeRepo, memberRepo, statsCache)
	if err != nil {
		log.Printf("Failed to initialize AdminService: %v", err)
		os.Exit(1)
	}

	verificationHandler := handler.NewVerificationHandler(verificationService)
	adminHandler := handler.NewAdminHandler(adminService)
	adminMiddleware := middleware.NewAdminMiddleware(cfg.App.AdminAPIKey)

	router := gin.Default()

	isProduction := gin.Mode() == gin.ReleaseMode
	if isProduction {
		if err := router.SetTrustedProxies(nil); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	} else {
		if err := router.SetTrustedProxies([]string{"127.0.0.1", "::1"}); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	}

	router.Use(middleware.RequestID())
	router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{cfg.App.FrontendBaseURL, "http://localhost:5173", "http://localhost:3000"},
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", middleware.AdminKeyHeader},
		ExposeHeaders: []string{"Content-Length", "Content-Disposition", middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})

	api := router.Group("/api")
	{
		api.POST("/verify-form", verificationHandler.SubmitForm)
		api.GET("/verify-email", verificationHandler.VerifyEmail)

		admin := api.Group("/admin")
		admin.Use(adminMiddleware.RequireAdminKey())
		{
			admin.POST("/company-codes", adminHandler.CreateCompanyCode)
			admin.GET("/company-codes", adminHandler.ListCompanyCodes)
			admin.GET("/stats", adminHandler.GetStats)
			admin.GET("/stats/export", adminHandler.ExportStats)
		}
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
		os.Exit(1)
	}

	log.Println("Server exited properly")
}
