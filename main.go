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

	"github.com/Xebarter/Tina-s-Bakery-sub000/controllers"
	"github.com/Xebarter/Tina-s-Bakery-sub000/database"
	"github.com/Xebarter/Tina-s-Bakery-sub000/logger"
	"github.com/Xebarter/Tina-s-Bakery-sub000/middleware"
	"github.com/Xebarter/Tina-s-Bakery-sub000/models"
	aws_pkg "github.com/Xebarter/Tina-s-Bakery-sub000/pkg/aws"
	"github.com/Xebarter/Tina-s-Bakery-sub000/providers"
	"github.com/Xebarter/Tina-s-Bakery-sub000/repository"
	"github.com/Xebarter/Tina-s-Bakery-sub000/routes"
	servicepkg "github.com/Xebarter/Tina-s-Bakery-sub000/services"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const serviceName = "bakery-checkout"

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zl, err := logger.Initialize(cfg.AppEnv)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zl.Sync() //nolint:errcheck

	db, err := database.ConnectPostgres(cfg.PostgresConfig(), zl)
	if err != nil {
		zl.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db) //nolint:errcheck

	redisClient, err := database.NewRedisClient(context.Background(), cfg.RedisURL)
	if err != nil {
		zl.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close() //nolint:errcheck

	// AWS clients
	var snsClient aws_pkg.SNSPublisher
	var metricsClient *aws_pkg.MetricsClient
	awsCfg, awsErr := aws_pkg.LoadAWSConfig(context.Background())
	if awsErr != nil {
		zl.Warn("AWS config unavailable, SNS and metrics disabled", zap.Error(awsErr))
	} else {
		snsClient = aws_pkg.NewSNSClient(awsCfg, zl)
		metricsClient = aws_pkg.NewMetricsClient(awsCfg, cfg.CloudWatchNamespace, cfg.CloudWatchEnabled)
	}
	var metrics servicepkg.MetricsRecorder
	if metricsClient.IsEnabled() {
		metrics = metricsClient
	}

	gateway := providers.NewPesapalClient(providers.PesapalConfig{
		BaseURL:        cfg.PesapalBaseURL,
		ConsumerKey:    cfg.PesapalConsumerKey,
		ConsumerSecret: cfg.PesapalConsumerSecret,
		Timeout:        cfg.PesapalHTTPTimeout,
		ExpirySkew:     cfg.PesapalTokenSkew,
	}, zl)

	if cfg.PesapalIPNID == "" && cfg.PesapalIPNURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.PesapalHTTPTimeout)
		ipnID, err := gateway.RegisterIPN(ctx, cfg.PesapalIPNURL)
		cancel()
		if err != nil {
			zl.Fatal("Failed to register IPN URL", zap.String("ipn_url", cfg.PesapalIPNURL), zap.Error(err))
		}
		zl.Info("Registered IPN URL, set PESAPAL_IPN_ID to skip this on restart", zap.String("ipn_id", ipnID))
		cfg.PesapalIPNID = ipnID
	}

	// Repositories and DI chain
	customerRepo := repository.NewGormCustomerRepository(db)
	orderRepo := repository.NewGormOrderRepository(db)
	productRepo := repository.NewGormProductRepository(db)
	cartRepo := database.NewCartRepository(redisClient, cfg.CartTTL)
	pendingRepo := database.NewPendingPaymentRepository(redisClient, cfg.PendingPaymentTTL)
	events := servicepkg.NewEventPublisher(snsClient, cfg.CheckoutSNSTopicARN, zl)

	cartService := servicepkg.NewCartService(cartRepo, productRepo, cfg.TaxRate, cfg.Currency, zl)
	checkoutService := servicepkg.NewCheckoutService(
		customerRepo,
		orderRepo,
		cartService,
		pendingRepo,
		gateway,
		events,
		metrics,
		servicepkg.CheckoutConfig{
			Currency:           cfg.Currency,
			CallbackURL:        cfg.PesapalCallbackURL,
			NotificationID:     cfg.PesapalIPNID,
			DefaultCountryCode: cfg.DefaultCountryCode,
			CountryISO:         cfg.CountryISO,
			StoreName:          cfg.StoreName,
		},
		zl,
	)
	resolver := servicepkg.NewPaymentResolver(
		customerRepo,
		orderRepo,
		cartService,
		pendingRepo,
		gateway,
		events,
		metrics,
		servicepkg.ResolverConfig{
			PollInterval:    cfg.PollInterval,
			MaxPollAttempts: cfg.MaxPollAttempts,
			OnTransition: func(sessionID string, r models.Resolution) {
				zl.Debug("Payment resolution state",
					zap.String("session_id", sessionID),
					zap.String("state", string(r.State)),
					zap.Int("attempt", r.Attempts),
				)
			},
		},
		zl,
	)
	orderService := servicepkg.NewOrderService(orderRepo, zl)

	sessionStore := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	sessionStore.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.CartTTL.Seconds()),
		HttpOnly: true,
		Secure:   cfg.AppEnv == "production",
		// The gateway redirects back with a top-level GET, which Lax allows.
		SameSite: http.SameSiteLaxMode,
	}

	limiter := middleware.NewRateLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst, 5*time.Minute)
	stopSweeper := make(chan struct{})
	go limiter.RunSweeper(stopSweeper)
	defer close(stopSweeper)

	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(zl))
	r.Use(middleware.Metrics(metricsClient, serviceName))
	r.Use(middleware.SecurityHeaders())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSAllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Request timeout
	r.Use(func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})

	r.GET("/health", func(c *gin.Context) {
		status, code := "healthy", http.StatusOK
		if err := redisClient.Ping(c.Request.Context()).Err(); err != nil {
			status, code = "degraded", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{"status": status, "service": serviceName, "gateway_token": gateway.TokenState().String()})
	})

	routes.RegisterRoutes(r, routes.Controllers{
		Cart:     controllers.NewCartController(cartService),
		Checkout: controllers.NewCheckoutController(checkoutService),
		Payment:  controllers.NewPaymentController(resolver, zl),
		Order:    controllers.NewOrderController(orderService),
	},
		middleware.Session(sessionStore, cfg.SessionCookie, zl),
		middleware.Identity([]byte(cfg.JWTSecret), zl),
		middleware.RateLimit(limiter),
	)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("Server failed", zap.Error(err))
		}
	}()

	zl.Info("Bakery checkout service started", zap.String("port", cfg.Port), zap.String("env", cfg.AppEnv))
	<-quit
	zl.Info("Shutting down bakery checkout service...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zl.Error("Server forced to shutdown", zap.Error(err))
	}
	zl.Info("Server exited cleanly")
}
