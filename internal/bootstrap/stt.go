package bootstrap

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/wazo-platform/wazo-stt-gateway/internal/backend"
	"github.com/wazo-platform/wazo-stt-gateway/internal/bus"
	"github.com/wazo-platform/wazo-stt-gateway/internal/callrecord"
	"github.com/wazo-platform/wazo-stt-gateway/internal/ingest"
	"github.com/wazo-platform/wazo-stt-gateway/internal/stt"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func ProvidePublisher(redisClient *redis.Client, logger *slog.Logger) *bus.Publisher {
	return bus.NewPublisher(redisClient, logger)
}

func ProvideBackendFactory(cfg *Config, logger *slog.Logger) *backend.Factory {
	return backend.NewFactory(backend.FactoryConfig{
		Google: backend.GoogleConfig{
			RecognizeURL: cfg.GoogleRecognizeURL,
			Language:     cfg.STTLanguage,
			SampleRate:   cfg.STTSampleRate,
			Timeout:      cfg.GoogleRecognizeTimeout,
		},
		VoiceAI: backend.VoiceAIConfig{
			URI:        cfg.VoiceAIURI,
			Language:   cfg.STTLanguage,
			SampleRate: cfg.STTSampleRate,
			UseAI:      cfg.VoiceAIUseAI,
		},
	}, logger)
}

func ProvideDialer(cfg *Config) ingest.Dialer {
	return ingest.NewWSDialer(cfg.AudioStreamURL)
}

func ProvideCallRecordStore(db *gorm.DB) *callrecord.Store {
	if db == nil {
		return nil
	}
	return callrecord.NewStore(db)
}

// recordAdapter narrows the gorm store to the manager's best-effort Recorder.
type recordAdapter struct {
	store *callrecord.Store
}

func (a *recordAdapter) Open(ctx context.Context, callID, tenantUUID, backendKind string) error {
	_, err := a.store.Open(ctx, callID, tenantUUID, backendKind)
	return err
}

func (a *recordAdapter) Close(ctx context.Context, callID string) error {
	return a.store.Close(ctx, callID)
}

func ProvideRecorder(store *callrecord.Store) stt.Recorder {
	if store == nil {
		return nil
	}
	return &recordAdapter{store: store}
}

func ProvideManager(
	lc fx.Lifecycle,
	cfg *Config,
	factory *backend.Factory,
	dialer ingest.Dialer,
	publisher *bus.Publisher,
	recorder stt.Recorder,
	store *callrecord.Store,
	logger *slog.Logger,
) (*stt.Manager, error) {
	manager, err := stt.NewManager(stt.ManagerConfig{
		Factory:        factory,
		Kind:           backend.Kind(cfg.STTEngine),
		Dialer:         dialer,
		Publisher:      publisher,
		Recorder:       recorder,
		DumpDir:        cfg.STTDumpDir,
		FlushThreshold: cfg.STTFlushThreshold,
		Log:            logger,
	})
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if store != nil {
				return store.Migrate()
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			manager.StopAll(ctx)
			return nil
		},
	})
	return manager, nil
}

var SttModule = fx.Options(
	fx.Provide(
		ProvidePublisher,
		ProvideBackendFactory,
		ProvideDialer,
		ProvideCallRecordStore,
		ProvideRecorder,
		ProvideManager,
	),
)
