package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yungbote/maigie-backend/internal/events"
	"github.com/yungbote/maigie-backend/internal/modules/assistant/gateway"
	"github.com/yungbote/maigie-backend/internal/platform/claude"
	"github.com/yungbote/maigie-backend/internal/platform/gcp"
	"github.com/yungbote/maigie-backend/internal/platform/logger"
	"github.com/yungbote/maigie-backend/internal/platform/openai"
	"github.com/yungbote/maigie-backend/internal/platform/qdrant"
	"github.com/yungbote/maigie-backend/internal/platform/retry"
)

// Clients holds the external systems the engine talks to. Optional clients
// are nil when their configuration is absent.
type Clients struct {
	OpenAI      openai.Client
	LLM         *gateway.LLMGateway
	Retriever   gateway.Retriever
	Transcriber *gcp.Transcriber
	Bus         events.Bus
	RedisBus    *events.RedisBus
}

func (c Clients) Close() {
	if c.Transcriber != nil {
		_ = c.Transcriber.Close()
	}
	if c.Bus != nil {
		_ = c.Bus.Close()
	}
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")
	var out Clients

	// OpenAI serves embeddings even when Claude generates text.
	if oc, err := openai.NewClient(log, openai.ConfigFromEnv()); err == nil {
		out.OpenAI = oc
	} else if cfg.LLM.Provider == "openai" {
		return Clients{}, fmt.Errorf("init openai client: %w", err)
	} else {
		log.Warn("OpenAI client disabled", "error", err)
	}

	provider, err := wireTextProvider(log, cfg, out.OpenAI)
	if err != nil {
		return Clients{}, err
	}
	out.LLM = gateway.NewLLMGateway(log, provider, cfg.LLM.Provider, gateway.LLMConfig{
		Timeout: cfg.LLM.Timeout.D(),
		Policy: retry.Policy{
			MaxAttempts: cfg.LLM.MaxAttempts,
			Backoff:     retry.Exponential(cfg.LLM.Backoff.D(), 8*cfg.LLM.Backoff.D(), 0.2),
		},
	})

	out.Retriever = wireRetriever(log, cfg, out.OpenAI)

	if cfg.VoiceEnabled {
		t, err := gcp.NewTranscriber(ctx, log, gcp.SpeechConfigFromEnv())
		if err != nil {
			// Voice answers 503 without a transcriber; chat keeps working.
			log.Warn("Speech-to-text disabled", "error", err)
		} else {
			out.Transcriber = t
		}
	}

	switch cfg.Events.Backend {
	case "redis":
		rb, err := events.NewRedisBus(log, events.RedisConfigFromEnv())
		if err != nil {
			out.Close()
			return Clients{}, fmt.Errorf("init redis event bus: %w", err)
		}
		out.Bus, out.RedisBus = rb, rb
	default:
		out.Bus = events.NewMemoryBus(log)
	}
	return out, nil
}

func wireTextProvider(log *logger.Logger, cfg Config, oc openai.Client) (gateway.TextGenerator, error) {
	switch cfg.LLM.Provider {
	case "claude":
		cc, err := claude.NewClient(log, claude.ConfigFromEnv())
		if err != nil {
			return nil, fmt.Errorf("init claude client: %w", err)
		}
		return cc, nil
	default:
		if oc == nil {
			return nil, errors.New("init openai client: missing OPENAI_API_KEY")
		}
		return oc, nil
	}
}

// wireRetriever falls back to an empty retriever when Qdrant or embeddings
// are not configured; turns then run without retrieved context.
func wireRetriever(log *logger.Logger, cfg Config, oc openai.Client) gateway.Retriever {
	qcfg, err := qdrant.ResolveConfigFromEnv()
	if err != nil {
		var ce *qdrant.ConfigError
		if errors.As(err, &ce) && ce.Code == qdrant.ConfigErrorMissingURL {
			log.Info("Retrieval disabled: QDRANT_URL not set")
		} else {
			log.Warn("Retrieval disabled: invalid qdrant config", "error", err)
		}
		return gateway.NopRetriever{}
	}
	if oc == nil {
		log.Warn("Retrieval disabled: embeddings need OPENAI_API_KEY")
		return gateway.NopRetriever{}
	}
	searcher, err := qdrant.NewSearcher(log, qcfg)
	if err != nil {
		log.Warn("Retrieval disabled: qdrant searcher", "error", err)
		return gateway.NopRetriever{}
	}
	return gateway.NewVectorRetriever(log, oc, searcher, gateway.RetrievalConfig{
		Timeout: cfg.Retrieval.Timeout.D(),
		Policy:  retry.Once(200 * time.Millisecond),
		MaxK:    cfg.Retrieval.K,
	})
}
