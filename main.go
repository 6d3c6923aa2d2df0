package main

import (
	"encoding/json"
	stdlog "log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/bankfolio/backend/src/config"
	"github.com/username/bankfolio/backend/src/database"
	"github.com/username/bankfolio/backend/src/handlers"
	"github.com/username/bankfolio/backend/src/logger"
	"github.com/username/bankfolio/backend/src/security"
	"github.com/username/bankfolio/backend/src/services"
	"golang.org/x/time/rate"
)

var limiter = rate.NewLimiter(rate.Every(100*time.Millisecond), 30)

func rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			logger.L.Warn("Rate limit exceeded",
				"method", r.Method,
				"path", r.URL.Path,
				"remoteAddr", r.RemoteAddr)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowedOrigins := map[string]bool{
			"http://localhost:3000": true,
		}

		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE, PATCH")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, X-Requested-With, Cookie, If-None-Match")
			w.Header().Set("Access-Control-Expose-Headers", "X-CSRF-Token, ETag")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)
	logger.L.Info("Bankfolio backend server starting...")

	if len(config.Cfg.JWTSecret) < 32 {
		logger.L.Error("JWT_SECRET configuration invalid. Must be at least 32 bytes.")
		os.Exit(1)
	}

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	database.InitDB(config.Cfg.DatabasePath)

	reportCache := cache.New(services.DefaultCacheExpiration, services.CacheCleanupInterval)

	logger.L.Info("Initializing services and handlers...")
	authService := security.NewAuthService(config.Cfg.JWTSecret)
	emailService := services.NewEmailService()
	importService := services.NewImportService(reportCache, emailService)
	syncService := services.NewSyncService(reportCache)
	operationService := services.NewOperationService(reportCache)

	userHandler := handlers.NewUserHandler(authService)
	importHandler := handlers.NewImportHandler(importService)
	operationHandler := handlers.NewOperationHandler(operationService, syncService)
	accountHandler := handlers.NewAccountHandler()
	tagHandler := handlers.NewTagHandler()
	syncHandler := handlers.NewSyncHandler(syncService)

	logger.L.Info("Configuring routes...")
	rootMux := http.NewServeMux()
	apiRouter := http.NewServeMux()

	apiRouter.HandleFunc("GET /api/auth/csrf", handlers.GetCSRFToken)

	authActionRouter := http.NewServeMux()
	authActionRouter.HandleFunc("POST /login", userHandler.LoginUserHandler)
	authActionRouter.HandleFunc("POST /register", userHandler.RegisterUserHandler)
	authActionRouter.HandleFunc("POST /refresh", userHandler.RefreshTokenHandler)
	authActionRouter.HandleFunc("POST /logout", userHandler.AuthMiddleware(userHandler.LogoutUserHandler))
	apiRouter.Handle("/api/auth/", http.StripPrefix("/api/auth", handlers.CSRFMiddleware(config.Cfg.CSRFAuthKey)(authActionRouter)))

	csrfProtection := handlers.CSRFMiddleware(config.Cfg.CSRFAuthKey)
	applyCsrfAndAuth := func(handler http.HandlerFunc) http.Handler {
		return csrfProtection(http.HandlerFunc(userHandler.AuthMiddleware(handler)))
	}

	apiRouter.Handle("POST /api/import", applyCsrfAndAuth(importHandler.HandleImport))
	apiRouter.Handle("POST /api/sync", applyCsrfAndAuth(syncHandler.HandleSync))
	apiRouter.Handle("GET /api/operations", applyCsrfAndAuth(operationHandler.HandleListOperations))
	apiRouter.Handle("PUT /api/operations/{id}", applyCsrfAndAuth(operationHandler.HandleUpdateOperation))
	apiRouter.Handle("DELETE /api/operations/{id}", applyCsrfAndAuth(operationHandler.HandleDeleteOperation))
	apiRouter.Handle("POST /api/operations/{id}/resolve", applyCsrfAndAuth(operationHandler.HandleResolveTriage))
	apiRouter.Handle("GET /api/accounts", applyCsrfAndAuth(accountHandler.HandleListAccounts))
	apiRouter.Handle("POST /api/accounts", applyCsrfAndAuth(accountHandler.HandleCreateAccount))
	apiRouter.Handle("GET /api/tags", applyCsrfAndAuth(tagHandler.HandleListTags))
	apiRouter.Handle("POST /api/tags", applyCsrfAndAuth(tagHandler.HandleCreateTag))
	apiRouter.Handle("GET /api/tag-rules", applyCsrfAndAuth(tagHandler.HandleListTagRules))
	apiRouter.Handle("POST /api/tag-rules", applyCsrfAndAuth(tagHandler.HandleCreateTagRule))

	rootMux.Handle("/api/", apiRouter)

	rootMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" && r.Method == http.MethodGet {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"message": "Bankfolio backend is running"})
			return
		}
		if !strings.HasPrefix(r.URL.Path, "/api/") {
			logger.L.Warn("Root level path not found", "method", r.Method, "path", r.URL.Path)
			http.NotFound(w, r)
		}
	})

	finalHandler := enableCORS(rateLimitMiddleware(rootMux))

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      finalHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.L.Info("Server starting", "address", serverAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.L.Error("Failed to start server", "error", err)
		stdlog.Fatalf("Failed to start server: %v", err)
	}
	logger.L.Info("Server stopped gracefully.")
}
