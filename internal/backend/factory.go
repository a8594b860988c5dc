package backend

import (
	"fmt"
	"log/slog"

	"github.com/wazo-platform/wazo-stt-gateway/internal/shared"
)

// FactoryConfig aggregates the per-variant settings; only the selected
// variant's section is consulted.
type FactoryConfig struct {
	Google  GoogleConfig
	VoiceAI VoiceAIConfig
}

type Factory struct {
	cfg FactoryConfig
	log *slog.Logger
}

func NewFactory(cfg FactoryConfig, log *slog.Logger) *Factory {
	if log == nil {
		log = slog.Default()
	}
	return &Factory{cfg: cfg, log: log}
}

// Create builds the requested backend variant. Pure construction; network
// setup is deferred to Backend.Start.
func (f *Factory) Create(kind Kind, sink Sink) (Backend, error) {
	switch kind {
	case KindGoogle:
		return NewGoogleBackend(f.cfg.Google, sink, f.log), nil
	case KindVoiceAI:
		return NewVoiceAIBackend(f.cfg.VoiceAI, sink, f.log), nil
	default:
		return nil, fmt.Errorf("%w: %q", shared.ErrUnsupportedBackend, kind)
	}
}
