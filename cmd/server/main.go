package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/memoapp/memo-backend/internal/agent"
	"github.com/memoapp/memo-backend/internal/api"
	"github.com/memoapp/memo-backend/internal/config"
	"github.com/memoapp/memo-backend/internal/database"
	"github.com/memoapp/memo-backend/internal/repository/postgres"
	"github.com/memoapp/memo-backend/internal/scheduler"
	"github.com/memoapp/memo-backend/internal/services"
)

func main() {
	// .env is optional; real deployments set the environment directly
	godotenv.Load()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()

	if err := database.RunMigrations(cfg.Database); err != nil {
		log.WithError(err).Fatal("failed to run migrations")
	}

	transcripts := postgres.NewTranscriptRepository(db.DB)
	summaries := postgres.NewSummaryRepository(db.DB)

	agentClient, err := newAgentClient(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to create agent client")
	}

	svc, err := services.NewServices(cfg, transcripts, summaries, agentClient, log)
	if err != nil {
		log.WithError(err).Fatal("failed to wire services")
	}

	if cfg.Summarize.Enabled {
		loc, err := time.LoadLocation(cfg.Summarize.Timezone)
		if err != nil {
			log.WithError(err).Fatal("invalid summarize timezone")
		}
		sched, err := scheduler.New(svc.Summarize, cfg.Summarize.CronSpec, loc, log)
		if err != nil {
			log.WithError(err).Fatal("failed to create scheduler")
		}
		sched.Start()
		defer sched.Stop()
	}

	app := fiber.New(fiber.Config{
		AppName:      "Memo Backend",
		ErrorHandler: customErrorHandler,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	api.SetupRoutes(app, svc, cfg.Auth.JWTSecret, log)

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		log.WithField("addr", addr).Info("memo backend starting")
		if err := app.Listen(addr); err != nil {
			log.WithError(err).Fatal("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	if err := app.Shutdown(); err != nil {
		log.WithError(err).Error("server shutdown failed")
	}
	// Drain queued chat turns before the process exits.
	svc.Close()
}

func newAgentClient(cfg *config.Config, log *logrus.Logger) (agent.Client, error) {
	switch cfg.Agent.Mode {
	case "openai":
		return agent.NewOpenAIClient(cfg.Agent.OpenAIKey, cfg.Agent.OpenAIModel)
	default:
		return agent.NewRemoteClient(cfg.Agent.WSURL, cfg.Agent.SummaryURL, log), nil
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
		"code":  code,
	})
}
