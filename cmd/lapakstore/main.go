package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/template/html/v2"

	"github.com/lapakdigital/lapakstore/app/repository"
	"github.com/lapakdigital/lapakstore/internal/pkg/cache"
	"github.com/lapakdigital/lapakstore/internal/pkg/database"
	"github.com/lapakdigital/lapakstore/internal/pkg/env"
	"github.com/lapakdigital/lapakstore/internal/pkg/router"
	"github.com/lapakdigital/lapakstore/internal/pkg/sweeper"
	"github.com/lapakdigital/lapakstore/internal/pkg/telegram"
)

func main() {
	app := NewApplication()

	registerTelegramWebhook()

	// Start background payment reconciliation
	sweeper.GetManager().Start()
	defer sweeper.GetManager().Stop()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

// registerTelegramWebhook announces the update endpoint to the Bot API so
// buyer messages reach /telegram/webhook without manual setup.
func registerTelegramWebhook() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ok, err := telegram.RegisterWebhookFromEnv(ctx)
	switch {
	case err != nil:
		log.Printf("Warning: Telegram webhook registration failed: %v", err)
	case !ok:
		log.Printf("Telegram bot not configured (TELEGRAM_BOT_TOKEN / PUBLIC_DOMAIN), skipping webhook registration")
	default:
		log.Printf("Telegram webhook registered")
	}
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()
	repository.InitializeFactory(database.GetDB())

	// Define possible base paths
	basePaths := []string{
		"./",        // Current directory
		"../../",    // From cmd/lapakstore to project root
		"../../../", // Fallback
	}

	// Find the correct base path
	basePath := ""
	for _, path := range basePaths {
		if _, err := os.Stat(path + "views"); !os.IsNotExist(err) {
			basePath = path
			break
		}
	}

	if basePath == "" {
		panic("Could not find project root directory")
	}

	// init fiber app
	app := fiber.New(fiber.Config{
		Views: html.New(basePath+"views", ".html"),
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// SWAGGER / OPENAPI
	openAPICfg := swagger.Config{
		BasePath: "/docs/api/",
		FilePath: basePath + "public/docs/v1/openapi.yml",
		Path:     "v1",
	}
	app.Use(swagger.New(openAPICfg))

	// ROUTER
	router.InstallRouter(app)

	return app
}
