package claude

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"

	"github.com/yungbote/maigie-backend/internal/platform/envutil"
	"github.com/yungbote/maigie-backend/internal/platform/logger"
)

type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int64
	Temperature float64
}

func ConfigFromEnv() Config {
	return Config{
		APIKey:      envutil.String("ANTHROPIC_API_KEY", ""),
		BaseURL:     envutil.String("ANTHROPIC_BASE_URL", ""),
		Model:       envutil.String("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929"),
		MaxTokens:   int64(envutil.Int("ANTHROPIC_MAX_TOKENS", 2048)),
		Temperature: envutil.Float("ANTHROPIC_TEMPERATURE", 0.2),
	}
}

// Client generates text through the Messages API. It exposes the same
// GenerateText/StreamText shape as the OpenAI client so either can back the
// assistant's model gateway.
type Client struct {
	log    *logger.Logger
	cfg    Config
	client anthropic.Client
}

func NewClient(log *logger.Logger, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing ANTHROPIC_API_KEY")
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2048
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	// Retries belong to the gateway policy.
	opts = append(opts, option.WithMaxRetries(0))
	return &Client{
		log:    log.With("service", "ClaudeClient"),
		cfg:    cfg,
		client: anthropic.NewClient(opts...),
	}, nil
}

func (c *Client) params(system, user string) anthropic.MessageNewParams {
	p := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.cfg.Model),
		MaxTokens: c.cfg.MaxTokens,
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(user))},
	}
	if s := strings.TrimSpace(system); s != "" {
		p.System = []anthropic.TextBlockParam{{Text: s}}
	}
	if c.cfg.Temperature > 0 {
		p.Temperature = param.NewOpt(c.cfg.Temperature)
	}
	return p
}

func (c *Client) GenerateText(ctx context.Context, system string, user string) (string, error) {
	msg, err := c.client.Messages.New(ctx, c.params(system, user))
	if err != nil {
		return "", wrapErr(err)
	}
	var out strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(out.String()) == "" {
		return "", fmt.Errorf("claude: empty text response")
	}
	return out.String(), nil
}

func (c *Client) StreamText(ctx context.Context, system string, user string, onDelta func(delta string)) (string, error) {
	stream := c.client.Messages.NewStreaming(ctx, c.params(system, user))
	defer stream.Close()

	var full strings.Builder
	for stream.Next() {
		event := stream.Current()
		if event.Type != "content_block_delta" {
			continue
		}
		delta := event.AsContentBlockDelta()
		if delta.Delta.Type != "text_delta" || delta.Delta.Text == "" {
			continue
		}
		full.WriteString(delta.Delta.Text)
		if onDelta != nil {
			onDelta(delta.Delta.Text)
		}
	}
	if err := stream.Err(); err != nil {
		return full.String(), wrapErr(err)
	}
	return full.String(), nil
}

// StatusError exposes the provider's HTTP status to retry classification.
type StatusError struct {
	Status int
	Err    error
}

func (e *StatusError) Error() string       { return fmt.Sprintf("claude http %d: %v", e.Status, e.Err) }
func (e *StatusError) Unwrap() error       { return e.Err }
func (e *StatusError) HTTPStatusCode() int { return e.Status }

func wrapErr(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) && apiErr != nil {
		return &StatusError{Status: apiErr.StatusCode, Err: err}
	}
	return err
}
