package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"pong-session-service/handlers"
	"pong-session-service/middleware"
	"pong-session-service/models"
	"pong-session-service/services"
	"pong-session-service/utils"
	"pong-session-service/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		ReadBufferSize: 8192,
	})

	// 🔐 GLOBAL: only Gateway requests allowed (health probe excepted)
	app.Use(middleware.GatewayAuthMiddleware())
	app.Use(middleware.UserContextMiddleware())

	// Load allowed origins from environment variable
	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, X-User-ID, X-Username",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.MatchResult{},
		&models.TournamentResult{},
		&models.TournamentMatchResult{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	recorder := services.NewGormResultRecorder(db)
	registry := services.NewConnectionRegistry()
	roomService := services.NewRoomService(recorder)
	tournamentService := services.NewTournamentService(roomService, recorder)
	gateway := handlers.NewGatewayController(registry, roomService, tournamentService)

	sweepInterval := time.Duration(utils.GetEnvInt("SWEEP_INTERVAL_SECONDS", 60)) * time.Second
	sweeper := workers.NewStaleSweeper(roomService, tournamentService, sweepInterval)
	if err := sweeper.Start(); err != nil {
		log.Fatal("failed to start stale sweeper:", err)
	}

	handlers.SetupGameRoutes(app, gateway)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	port := utils.GetEnv("PORT", "5200")
	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", port)
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	log.Printf("✅ Stale sweeper running (every %s)", sweepInterval)
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
	sweeper.Stop()
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
