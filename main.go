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
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/CUknot/realty_crm/config"
	"github.com/CUknot/realty_crm/controllers"
	"github.com/CUknot/realty_crm/database"
	"github.com/CUknot/realty_crm/docs"
	"github.com/CUknot/realty_crm/middleware"
	"github.com/CUknot/realty_crm/notify"
	"github.com/CUknot/realty_crm/services"
	"github.com/CUknot/realty_crm/session"
	"github.com/CUknot/realty_crm/utils"
	"github.com/CUknot/realty_crm/websocket"
)

// @title           Realty CRM API
// @version         1.0
// @description     Referral marketplace, inbox and contact CRM for real estate agents
// @host            localhost:8080
// @BasePath        /
// @schemes         http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// Redis backs sessions and realtime fan-out
	rdb, err := session.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	defer rdb.Close()
	sessions := session.NewRedisStore(rdb, cfg.SessionTTL)

	mailer := notify.New(cfg)

	hub := websocket.NewHub(rdb)
	if err := hub.Start(ctx); err != nil {
		log.Fatalf("Failed to subscribe to realtime events: %v", err)
	}
	go hub.Run(ctx)

	// Services
	referralSvc := services.NewReferralService(database.NewReferralStore(db), hub, mailer)
	inboxSvc := services.NewInboxService(database.NewInboxStore(db), hub)
	contactSvc := services.NewContactService(database.NewContactStore(db))
	authSvc := services.NewAuthService(database.NewUserStore(db), sessions, func(userID uint) (string, error) {
		return utils.GenerateToken(cfg.JWTSecret, userID, cfg.TokenTTL)
	})

	// Set up Swagger info
	docs.SwaggerInfo.Host = "localhost:" + cfg.Port

	if err := controllers.RegisterValidators(); err != nil {
		log.Fatalf("Failed to register validators: %v", err)
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst)
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				limiter.Cleanup(10 * time.Minute)
			}
		}
	}()

	// Set up router
	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	controllers.RegisterRoutes(router, controllers.Router{
		Auth:        controllers.NewAuthController(authSvc, cfg.SessionTTL, cfg.CookieSecure),
		Referrals:   controllers.NewReferralController(referralSvc),
		Threads:     controllers.NewThreadController(inboxSvc),
		Contacts:    controllers.NewContactController(contactSvc),
		RequireAuth: middleware.Auth(sessions, cfg.JWTSecret),
		RateLimit:   limiter.Middleware(),
		Realtime:    websocket.NewHandler(hub, inboxSvc, cfg.CORSOrigins).ServeWS,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("Server running on port %s", cfg.Port)
		log.Printf("Swagger documentation available at http://localhost:%s/swagger/index.html", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	mailer.Close()
}
