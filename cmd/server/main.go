package main

import (
	"context"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	"github.com/backpackr/backpackr-server/internal/config"
	"github.com/backpackr/backpackr-server/internal/database"
	"github.com/backpackr/backpackr-server/internal/handlers"
	"github.com/backpackr/backpackr-server/internal/middleware"
	"github.com/backpackr/backpackr-server/internal/repository"
	"github.com/backpackr/backpackr-server/internal/routes"
	"github.com/backpackr/backpackr-server/internal/services"
)

func main() {
	// Load env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
	cfg := config.Load()
	logger := log.Default()

	// Connect to MongoDB
	log.Printf("Connecting to MongoDB...")
	if err := database.Connect(cfg.MongoURI); err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer database.Disconnect()

	// Connect to Redis (OAuth state nonces + rate limiting)
	log.Printf("Connecting to Redis...")
	if err := database.ConnectRedis(cfg.RedisURI); err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer database.DisconnectRedis()

	repo := repository.NewPrincipalRepo(database.DB, logger)
	if err := repo.EnsureIndexes(context.Background()); err != nil {
		log.Printf("⚠️  WARNING: failed to ensure MongoDB indexes: %v", err)
	} else {
		log.Println("✅ MongoDB indexes ensured")
	}

	// Services
	tokens := services.NewTokenService(cfg.JWTSecret, cfg.JWTExpire)
	authSvc := services.NewAuthService(repo, tokens)
	mailer := services.NewEmailService(cfg.EmailHost, cfg.EmailPort, cfg.EmailUser, cfg.EmailPass, cfg.EmailFrom, cfg.ClientURL, logger)
	resetSvc := services.NewResetService(repo, mailer, logger)
	states := services.NewRedisStateStore(database.RedisClient)
	googleSvc := services.NewGoogleService(repo, tokens, states, cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURI, logger)

	// Cloudinary is optional; uploads report unavailable when unset
	var cloudinarySvc *services.CloudinaryService
	if cfg.CloudinaryName != "" && cfg.CloudinaryAPIKey != "" && cfg.CloudinaryAPISecret != "" {
		svc, err := services.NewCloudinaryService(cfg.CloudinaryName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
		if err != nil {
			log.Printf("Warning: Failed to initialize Cloudinary: %v", err)
			log.Println("License uploads will not be available")
		} else {
			cloudinarySvc = svc
			log.Println("✅ Cloudinary service initialized")
		}
	} else {
		log.Println("Warning: Cloudinary credentials not found. License uploads will not be available")
	}

	authn := middleware.NewAuthenticator(tokens, repo)
	h := routes.Handlers{
		Auth:    handlers.NewAuthHandler(authSvc, resetSvc),
		Google:  handlers.NewGoogleHandler(googleSvc, cfg.ClientURL, logger),
		Profile: handlers.NewProfileHandler(authSvc),
		Admin:   handlers.NewAdminHandler(repo),
		Upload:  handlers.NewUploadHandler(cloudinarySvc, authSvc, logger),
	}

	// Setup router
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Production: SecurityHeaders → GlobalRateLimit → LoginRateLimit
	// Non-production: Redis-based rate limit only
	if cfg.IsProduction() {
		for _, mw := range middleware.ProductionSecurity() {
			r.Use(mw)
		}
		log.Println("✅ Production security enabled (security headers, per-IP + login rate limiting)")
	} else {
		r.Use(middleware.RateLimitMiddleware)
	}

	// Health check (no auth, no rate limit exemption needed)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	routes.SetupRoutes(r, h, authn)

	log.Printf("🚀 Backpackr backend running on :%s", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
