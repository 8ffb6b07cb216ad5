package server

import (
	"github.com/itzfarzaan/BuddyWay/internal/config"
	"github.com/itzfarzaan/BuddyWay/internal/session"
	"github.com/itzfarzaan/BuddyWay/internal/snapshot"
	"github.com/itzfarzaan/BuddyWay/internal/stream"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	App     *fiber.App
	Cfg     config.Config
	Hub     *stream.Hub
	Manager *session.Manager
}

func NewServer(cfg config.Config, pg *pgxpool.Pool, redisClient *redis.Client) *Server {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	hub := stream.NewHub(redisClient)
	manager := session.NewManager(
		snapshotStore(cfg, pg, redisClient),
		cfg.HostGrace,
		cfg.EmptyGrace,
	)

	s := &Server{
		App:     app,
		Cfg:     cfg,
		Hub:     hub,
		Manager: manager,
	}

	registerRoutes(s)
	return s
}

func snapshotStore(cfg config.Config, pg *pgxpool.Pool, redisClient *redis.Client) snapshot.Store {
	switch cfg.SnapshotBackend {
	case "postgres":
		if pg != nil {
			return snapshot.NewPostgres(pg)
		}
	case "redis":
		if redisClient != nil {
			return snapshot.NewRedis(redisClient)
		}
	case "file":
		return snapshot.NewFile(cfg.SnapshotPath)
	}
	return nil
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	s.App.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	s.App.Get("/session-code", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"sessionCode": session.NewCode()})
	})

	stream.RegisterRoutes(s.App.Group("/stream"), s.Hub, stream.NewRouter(s.Hub, s.Manager))
}
