package bootstrap

import (
	"strings"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/powange/convention-de-jonglerie-sub008/adapter/in/http"
	"github.com/powange/convention-de-jonglerie-sub008/config"
	"github.com/powange/convention-de-jonglerie-sub008/infra/middleware"
	"github.com/powange/convention-de-jonglerie-sub008/pkg/logger"

	"github.com/rs/zerolog"
)

// NewAPI builds the Fiber application with everything wired.
func NewAPI(cfg *config.Config) (*fiber.App, func(), error) {
	logLevel := logger.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = logger.LevelDebug
	}
	logger.Init(logger.Config{
		Level:   logLevel,
		Service: "convention-live",
	})

	deps, cleanup, err := NewDependencies(cfg)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize dependencies")
		return nil, nil, err
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          middleware.ErrorHandler(),
		DisableStartupMessage: cfg.IsProduction(),
		Prefork:               false,

		ReadBufferSize:  16384,
		WriteBufferSize: 16384,

		// go-json is measurably faster than encoding/json
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,

		BodyLimit:   1 * 1024 * 1024,
		Concurrency: 256 * 1024,

		ServerHeader:       "",
		DisableDefaultDate: true,

		// SSE responses never finish; keep streaming enabled
		StreamRequestBody: true,
	})

	// Global middleware stack (order matters)
	app.Use(middleware.Recover())
	app.Use(middleware.RequestID())
	app.Use(middleware.SecurityHeaders())
	app.Use(middleware.RequestLogger())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	// CORS - AllowCredentials:true requires explicit origins, never "*"
	allowOrigins := strings.Join(cfg.AllowedOrigins, ",")
	allowCredentials := true
	if allowOrigins == "" || allowOrigins == "*" {
		if cfg.IsProduction() {
			allowOrigins = ""
			allowCredentials = false
		} else {
			allowOrigins = "http://localhost:3000,http://localhost:5173"
		}
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,PATCH,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization,X-Request-ID",
		ExposeHeaders:    "X-Request-ID",
		AllowCredentials: allowCredentials,
		MaxAge:           86400,
	}))

	zlog := zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()

	// Health check (no auth required)
	healthHandler := http.NewHealthHandler(deps.DB, deps.Redis, deps.Metrics)
	healthHandler.Register(app)

	// Authenticated API
	api := app.Group("/api", middleware.JWTAuth(cfg.JWTSecret))

	streamHandler := http.NewStreamHandler(deps.Registry, deps.CounterHub,
		deps.ChatService, deps.LiveService, deps.Metrics, zlog)
	streamHandler.Register(api)

	chatHandler := http.NewChatHandler(deps.ChatService, deps.TypingLimiter, zlog)
	chatHandler.Register(api)

	pushHandler := http.NewPushHandler(deps.SubscriptionStore, deps.ReportStore,
		deps.Dispatcher, cfg.VAPIDPublicKey, zlog)
	pushHandler.Register(api)

	liveHandler := http.NewLiveHandler(deps.LiveService, deps.Registry, deps.Dispatcher, zlog)
	liveHandler.Register(api)

	logger.Info("API routes registered")
	return app, cleanup, nil
}
