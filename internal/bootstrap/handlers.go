package bootstrap

import (
	"log/slog"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/wazo-platform/wazo-stt-gateway/internal/callrecord"
	"github.com/wazo-platform/wazo-stt-gateway/internal/health"
	"github.com/wazo-platform/wazo-stt-gateway/internal/stt"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

const version = "0.1.0"

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func ProvideLogger(cfg *Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
}

func ProvideSTTHandler(manager *stt.Manager, logger *slog.Logger) *stt.Handler {
	return stt.NewHandler(manager, logger.With("handler", "stt"))
}

func ProvideHealthHandler(db *gorm.DB, redisClient *redis.Client, manager *stt.Manager) *health.Handler {
	return health.NewHandler(db, redisClient, manager, version)
}

// ProvideRecordHandler is nil without a configured database; the records
// routes are simply not mounted then.
func ProvideRecordHandler(store *callrecord.Store, logger *slog.Logger) *callrecord.Handler {
	if store == nil {
		return nil
	}
	return callrecord.NewHandler(store, logger.With("handler", "records"))
}

type HandlerParams struct {
	fx.In

	STTHandler    *stt.Handler
	HealthHandler *health.Handler
	RecordHandler *callrecord.Handler
}

func RegisterRoutes(e *echo.Echo, params HandlerParams) {
	api := e.Group("/api/v1")
	params.STTHandler.RegisterRoutes(api.Group("/stt"))
	if params.RecordHandler != nil {
		params.RecordHandler.RegisterRoutes(api.Group("/records"))
	}
	params.HealthHandler.RegisterRoutes(e)
}

var HandlersModule = fx.Options(
	fx.Provide(
		ProvideLogger,
		ProvideSTTHandler,
		ProvideHealthHandler,
		ProvideRecordHandler,
	),
	fx.Invoke(RegisterRoutes),
)
