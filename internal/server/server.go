package server

import (
	"errors"
	"log/slog"

	"notely/internal/auth"
	"notely/internal/config"
	"notely/internal/database"
	"notely/internal/database/repositories"
	"notely/internal/notes"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/favicon"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/pprof"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

type healthChecker interface {
	Health() map[string]string
}

type FiberServer struct {
	*fiber.App

	cfg    config.Config
	db     healthChecker
	users  repositories.UserRepository
	notes  *notes.Coordinator
	tokens *auth.Tokens
	log    *slog.Logger
}

// New wires the server to both stores behind db.
func New(cfg config.Config, db database.Service, log *slog.Logger) *FiberServer {
	coordinator := notes.NewCoordinator(
		repositories.NewNoteMetadataRepository(db.DB()),
		repositories.NewNoteContentRepository(db.Contents()),
		log,
	)
	return newServer(cfg, db, repositories.NewUserRepository(db.DB()), coordinator, log)
}

func newServer(cfg config.Config, db healthChecker, users repositories.UserRepository, coordinator *notes.Coordinator, log *slog.Logger) *FiberServer {
	if log == nil {
		log = slog.Default()
	}
	server := &FiberServer{
		cfg:    cfg,
		db:     db,
		users:  users,
		notes:  coordinator,
		tokens: auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL),
		log:    log,
	}
	server.App = fiber.New(fiber.Config{
		ServerHeader: "notely",
		AppName:      "notely",
		ErrorHandler: server.errorHandler,
	})

	server.App.Use(recover.New())
	server.App.Use(favicon.New())
	server.App.Use(cors.New(cors.Config{
		AllowOrigins: cfg.AllowOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Requested-With",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		MaxAge:       3600,
	}))
	server.App.Use(logger.New())
	if cfg.Local() {
		server.App.Use(pprof.New())
	}

	server.RegisterFiberRoutes()
	return server
}

// errorHandler turns anything a handler did not answer itself into a JSON
// error. Internal details are logged, never returned.
func (s *FiberServer) errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"msg": fe.Message})
	}
	s.log.Error("unhandled error", "method", c.Method(), "path", c.Path(), "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"msg": "Server Error"})
}
