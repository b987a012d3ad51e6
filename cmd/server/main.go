// Package main is the entry point for the fraud detection API.
// It initializes all dependencies, sets up the HTTP server,
// and starts the application.
package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"securecart/internal/config"
	"securecart/internal/middleware"
	"securecart/internal/routes"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

const shutdownTimeout = 15 * time.Second

func main() {
	config.LoadEnv()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}
	if closeLog := setupLogging(cfg.Logging); closeLog != nil {
		defer closeLog()
	}
	if cfg.IsProduction() {
		for _, name := range config.MissingEnv() {
			log.Printf("⚠️ Required environment variable %s is not set", name)
		}
	}
	log.Printf("⚙️ Starting %s %s (%s)", cfg.App.Name, cfg.App.Version, cfg.App.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := build(ctx, cfg)
	if err != nil {
		log.Fatalf("❌ Startup failed: %v", err)
	}
	defer srv.close()

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ErrorHandler: middleware.ErrorHandler,
		BodyLimit:    4 * 1024 * 1024,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	app.Use(middleware.ProcessingTime(srv.collector, cfg.Monitoring.ResponseTimeThreshold))

	// CORS middleware
	app.Use(cors.New(cors.Config{
		AllowOrigins:     joinOrigins(cfg.Security.CORSOrigins),
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-API-Key, X-Request-ID",
		AllowMethods:     "GET,POST,HEAD,PUT,DELETE,PATCH,OPTIONS",
		ExposeHeaders:    "X-Request-ID, X-Processing-Time",
		AllowCredentials: true,
	}))

	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path} ${locals:request_id}\n",
	}))

	routes.SetupRoutes(app, srv.handlers, routes.Options{
		Auth:           srv.auth,
		Security:       srv.security(cfg),
		WebSocket:      &routes.WebSocket{Upgrade: srv.hub.Upgrade(), Handler: srv.hub.Handler()},
		LimiterStorage: srv.limiterStorage,
	})

	srv.start(ctx, cfg)

	go func() {
		<-ctx.Done()
		log.Println("⚙️ Shutting down...")
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			log.Printf("⚠️ Server shutdown: %v", err)
		}
	}()

	log.Printf("✅ Listening on %s", cfg.Addr())
	if err := app.Listen(cfg.Addr()); err != nil {
		log.Printf("❌ Server stopped: %v", err)
	}
	stop()
	srv.wait()
}

// setupLogging mirrors the standard logger into the configured file.
func setupLogging(cfg config.LoggingConfig) func() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	if !cfg.FileEnabled || cfg.FilePath == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
		log.Printf("⚠️ Cannot create log directory: %v", err)
		return nil
	}
	f, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		log.Printf("⚠️ Cannot open log file %s: %v", cfg.FilePath, err)
		return nil
	}
	log.SetOutput(io.MultiWriter(os.Stdout, f))
	return func() { _ = f.Close() }
}

func joinOrigins(origins []string) string {
	if len(origins) == 0 {
		return "http://localhost:3000"
	}
	out := origins[0]
	for _, o := range origins[1:] {
		out += "," + o
	}
	return out
}
