package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/yungbote/maigie-backend/internal/platform/logger"
	"github.com/yungbote/maigie-backend/internal/platform/retry"
)

var (
	ErrModelTimeout     = errors.New("model timeout")
	ErrModelUnavailable = errors.New("model unavailable")
)

// TextGenerator is one provider attempt. Implementations do not retry.
type TextGenerator interface {
	GenerateText(ctx context.Context, system string, user string) (string, error)
}

// TextStreamer is implemented by providers that can stream deltas.
type TextStreamer interface {
	StreamText(ctx context.Context, system string, user string, onDelta func(delta string)) (string, error)
}

// LLM is the contract the engine calls.
type LLM interface {
	Call(ctx context.Context, system, task, schemaName string) (string, error)
	// CallStream behaves like Call and forwards text deltas as they arrive.
	// Providers without streaming deliver the whole reply as one delta.
	CallStream(ctx context.Context, system, task, schemaName string, onDelta func(string)) (string, error)
}

type LLMConfig struct {
	// Timeout bounds a single attempt.
	Timeout time.Duration
	Policy  retry.Policy
}

type LLMGateway struct {
	log      *logger.Logger
	provider TextGenerator
	name     string
	cfg      LLMConfig
}

func NewLLMGateway(baseLog *logger.Logger, provider TextGenerator, providerName string, cfg LLMConfig) *LLMGateway {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Policy.MaxAttempts <= 0 {
		cfg.Policy = retry.Once(500 * time.Millisecond)
	}
	return &LLMGateway{
		log:      baseLog.With("component", "LLMGateway", "provider", providerName),
		provider: provider,
		name:     providerName,
		cfg:      cfg,
	}
}

func (g *LLMGateway) Call(ctx context.Context, system, task, schemaName string) (string, error) {
	return g.call(ctx, system, task, schemaName, nil)
}

func (g *LLMGateway) CallStream(ctx context.Context, system, task, schemaName string, onDelta func(string)) (string, error) {
	return g.call(ctx, system, task, schemaName, onDelta)
}

func (g *LLMGateway) call(ctx context.Context, system, task, schemaName string, onDelta func(string)) (string, error) {
	ctx, span := otel.Tracer("maigie/assistant").Start(ctx, "llm.call")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.provider", g.name),
		attribute.String("llm.schema", schemaName),
	)

	streamer, canStream := g.provider.(TextStreamer)
	delivered := false
	forward := func(d string) {
		if d == "" {
			return
		}
		delivered = true
		onDelta(d)
	}

	var out string
	attempts := 0
	err := retry.Do(ctx, g.cfg.Policy, func(err error) bool {
		// a retry after partial output would duplicate text on the client
		return !delivered && retry.IsRetryable(err)
	}, func(ctx context.Context, attempt int) error {
		attempts = attempt
		actx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()

		var (
			text string
			err  error
		)
		switch {
		case onDelta != nil && canStream:
			text, err = streamer.StreamText(actx, system, task, forward)
		default:
			text, err = g.provider.GenerateText(actx, system, task)
			if err == nil && onDelta != nil {
				forward(text)
			}
		}
		if err != nil {
			if ctx.Err() == nil && errors.Is(actx.Err(), context.DeadlineExceeded) && !errors.Is(err, context.DeadlineExceeded) {
				err = fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
			}
			g.log.Warn("llm attempt failed", "attempt", attempt, "schema", schemaName, "error", err)
			return err
		}
		if strings.TrimSpace(text) == "" {
			return errEmptyOutput
		}
		out = text
		return nil
	})
	span.SetAttributes(attribute.Int("llm.attempts", attempts))
	if err == nil {
		return out, nil
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, "llm call failed")

	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "", fmt.Errorf("%w after %d attempt(s): %v", ErrModelTimeout, attempts, err)
	}
	return "", fmt.Errorf("%w after %d attempt(s): %v", ErrModelUnavailable, attempts, err)
}

var errEmptyOutput = errors.New("empty model output")
