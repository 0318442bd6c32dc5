package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/ManuelReschke/MemberPay/app/controllers"
	"github.com/ManuelReschke/MemberPay/app/models"
	"github.com/ManuelReschke/MemberPay/app/repository"
	"github.com/ManuelReschke/MemberPay/internal/pkg/archive"
	"github.com/ManuelReschke/MemberPay/internal/pkg/billing"
	"github.com/ManuelReschke/MemberPay/internal/pkg/cache"
	"github.com/ManuelReschke/MemberPay/internal/pkg/database"
	"github.com/ManuelReschke/MemberPay/internal/pkg/env"
	"github.com/ManuelReschke/MemberPay/internal/pkg/gateway"
	"github.com/ManuelReschke/MemberPay/internal/pkg/membership"
	"github.com/ManuelReschke/MemberPay/internal/pkg/pricing"
	"github.com/ManuelReschke/MemberPay/internal/pkg/quota"
	"github.com/ManuelReschke/MemberPay/internal/pkg/reconciler"
	"github.com/ManuelReschke/MemberPay/internal/pkg/router"
	"github.com/ManuelReschke/MemberPay/internal/pkg/signature"
)

func main() {
	app, rec := NewApplication()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if rec != nil {
			rec.Stop(ctx)
		}
		if err := app.ShutdownWithContext(ctx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	if err != nil {
		log.Fatal(err)
	}
	_ = cache.Close()
}

func NewApplication() (*fiber.App, *reconciler.Reconciler) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache(cache.LoadConfig())

	db := database.GetDB()
	rdb := cache.GetClient()
	repository.InitializeFactory(db)
	repos := repository.GetGlobalRepositories()

	prices, err := pricing.LoadFromEnv()
	if err != nil {
		log.Fatalf("pricing: %v", err)
	}
	gwCfg, err := gateway.LoadConfig()
	if err != nil {
		log.Fatalf("gateway: %v", err)
	}

	var providers []gateway.Provider
	verifiers := map[string]signature.Verifier{}
	if gwCfg.WeChat.Enabled() {
		providers = append(providers, gateway.NewWeChatProvider(gwCfg.WeChat, gwCfg.Timeout, gwCfg.RetryCount))
		verifiers[models.PaymentProviderWeChat] = signature.NewWeChatVerifier(gwCfg.WeChat.APIKey)
	}
	if gwCfg.Alipay.Enabled() {
		p, err := gateway.NewAlipayProvider(gwCfg.Alipay, gwCfg.Timeout, gwCfg.RetryCount)
		if err != nil {
			log.Fatalf("alipay provider: %v", err)
		}
		providers = append(providers, p)
		v, err := signature.NewAlipayVerifier(gwCfg.Alipay.PublicKey)
		if err != nil {
			log.Fatalf("alipay verifier: %v", err)
		}
		verifiers[models.PaymentProviderAlipay] = v
	}
	if len(providers) == 0 {
		log.Println("no payment provider configured, order creation will be rejected")
	}

	quotas := quota.NewManager(repos.User, time.Now)
	activator := membership.NewActivator(repos, quotas, time.Now)

	var processorOpts []billing.ProcessorOption
	archiveCfg, err := archive.LoadConfig()
	if err != nil {
		log.Fatalf("archive: %v", err)
	}
	if archiveCfg.Enabled {
		client, err := archive.NewClient(archiveCfg)
		if err != nil {
			log.Fatalf("archive: %v", err)
		}
		processorOpts = append(processorOpts, billing.WithArchiver(client))
	}
	processor := billing.NewProcessor(repos, activator, verifiers, processorOpts...)

	orders := gateway.NewOrderService(repos.Order, prices, providers,
		gateway.WithProviderTimeout(gwCfg.Timeout),
		gateway.WithSubject(gwCfg.Subject),
	)

	// RECONCILER
	var rec *reconciler.Reconciler
	if env.GetEnvBool("RECONCILER_ENABLED", true) {
		recCfg, err := reconciler.LoadConfig()
		if err != nil {
			log.Fatalf("reconciler: %v", err)
		}
		var locker reconciler.Locker = reconciler.NewLocalLocker()
		if rdb != nil {
			locker = reconciler.NewRedisLocker(rdb)
		}
		rec = reconciler.New(repos.Order, activator, quotas, locker, recCfg, time.Now)
		if err := rec.Start(); err != nil {
			log.Fatalf("reconciler: %v", err)
		}
	}

	basePath := findBasePath()

	// init fiber app
	app := fiber.New(fiber.Config{
		BodyLimit: 64 * 1024,
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// SWAGGER / OPENAPI
	if basePath != "" {
		app.Use(swagger.New(swagger.Config{
			BasePath: "/docs/api/",
			FilePath: basePath + "public/docs/v1/openapi.yml",
			Path:     "v1",
		}))
	}

	deps := router.Dependencies{
		DB:              db,
		Users:           repos.User,
		Payments:        controllers.NewPaymentController(orders, repos.Order, repos.User, processor),
		OrderRateLimit:  env.GetEnvInt("ORDER_RATE_LIMIT", 10),
		OrderRateWindow: env.GetEnvDuration("ORDER_RATE_WINDOW", time.Minute),
	}
	if rdb != nil {
		deps.Cache = rdb
		deps.LimiterStorage = router.NewLimiterStorage(rdb)
	}

	// ROUTER
	router.InstallRouter(app, deps)

	return app, rec
}

func findBasePath() string {
	basePaths := []string{
		"./",        // Current directory
		"../../",    // From cmd/memberpay to project root
		"../../../", // Fallback
	}
	for _, path := range basePaths {
		if _, err := os.Stat(path + "public/docs/v1/openapi.yml"); err == nil {
			return path
		}
	}
	log.Println("openapi.yml not found, API docs disabled")
	return ""
}
