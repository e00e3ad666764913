package app

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/yungbote/maigie-backend/internal/modules/assistant/dispatch"
	"github.com/yungbote/maigie-backend/internal/platform/envutil"
)

// Duration reads "5s" style strings or integer nanoseconds from JSON.
type Duration time.Duration

func (d Duration) D() time.Duration { return time.Duration(d) }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		v, err := time.ParseDuration(strings.TrimSpace(s))
		if err != nil {
			return fmt.Errorf("duration %q: %w", s, err)
		}
		*d = Duration(v)
		return nil
	}
	var n int64
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("duration must be a string or integer nanoseconds: %s", b)
	}
	*d = Duration(n)
	return nil
}

type LLMConfig struct {
	Provider    string   `json:"provider" validate:"oneof=openai claude"`
	Timeout     Duration `json:"timeout" validate:"gt=0"`
	MaxAttempts int      `json:"max_attempts" validate:"min=1,max=5"`
	Backoff     Duration `json:"backoff"`
	// TokenModel picks the tiktoken encoding for prompt budgets.
	TokenModel  string   `json:"token_model"`
}

type RetrievalConfig struct {
	K       int      `json:"k" validate:"min=1,max=50"`
	Timeout Duration `json:"timeout" validate:"gt=0"`
}

type PromptConfig struct {
	Budget        int `json:"budget" validate:"min=0"`
	DocBudget     int `json:"doc_budget" validate:"min=0"`
	MaxDocs       int `json:"max_docs" validate:"min=0"`
	SummaryBudget int `json:"summary_budget" validate:"min=0"`
	HistoryTurns  int `json:"history_turns" validate:"min=0"`
}

type SessionConfig struct {
	MaxTurns          int      `json:"max_turns" validate:"min=1"`
	IdleTimeout       Duration `json:"idle_timeout" validate:"gt=0"`
	LLMCallsPerMinute float64  `json:"llm_calls_per_minute" validate:"min=0"`
	LLMBurst          int      `json:"llm_burst" validate:"min=0"`
}

type AskFirstConfig struct {
	MaxModules         int      `json:"max_modules" validate:"min=1"`
	MaxEntities        int      `json:"max_entities" validate:"min=1"`
	MaxRecommendations int      `json:"max_recommendations" validate:"min=1"`
	PastWindow         Duration `json:"past_window"`
	FutureWindow       Duration `json:"future_window"`
	MaxBlock           Duration `json:"max_block"`
}

func (c AskFirstConfig) Policy() dispatch.AskFirst {
	return dispatch.AskFirst{
		MaxModules:         c.MaxModules,
		MaxEntities:        c.MaxEntities,
		MaxRecommendations: c.MaxRecommendations,
		PastWindow:         c.PastWindow.D(),
		FutureWindow:       c.FutureWindow.D(),
		MaxBlock:           c.MaxBlock.D(),
	}
}

type EventsConfig struct {
	// Backend is "memory" for a single process or "redis" for Redis Streams.
	Backend           string   `json:"backend" validate:"oneof=memory redis"`
	PublishTimeout    Duration `json:"publish_timeout" validate:"gt=0"`
	OutboxInterval    Duration `json:"outbox_interval" validate:"gt=0"`
	OutboxBatch       int      `json:"outbox_batch" validate:"min=1"`
	OutboxMaxAttempts int      `json:"outbox_max_attempts" validate:"min=1"`
}

type Config struct {
	Addr           string   `json:"addr" validate:"required"`
	LogMode        string   `json:"log_mode"`
	JWTSecret      string   `json:"-" validate:"required"`
	AllowedOrigins []string `json:"allowed_origins"`

	// IntentTable overrides the embedded intent rules file.
	IntentTable  string `json:"intent_table"`
	VoiceEnabled bool   `json:"voice_enabled"`

	LLM       LLMConfig       `json:"llm"`
	Retrieval RetrievalConfig `json:"retrieval"`
	Prompt    PromptConfig    `json:"prompt"`
	Session   SessionConfig   `json:"session"`
	AskFirst  AskFirstConfig  `json:"ask_first"`
	Events    EventsConfig    `json:"events"`
}

func defaultConfig() Config {
	ask := dispatch.DefaultAskFirst()
	return Config{
		Addr:    ":8080",
		LogMode: "development",
		LLM: LLMConfig{
			Provider:    "openai",
			Timeout:     Duration(30 * time.Second),
			MaxAttempts: 2,
			Backoff:     Duration(500 * time.Millisecond),
			TokenModel:  "gpt-4o",
		},
		Retrieval: RetrievalConfig{K: 5, Timeout: Duration(5 * time.Second)},
		Prompt:    PromptConfig{Budget: 6000, DocBudget: 300, MaxDocs: 5, SummaryBudget: 6000, HistoryTurns: 6},
		Session: SessionConfig{
			MaxTurns:          20,
			IdleTimeout:       Duration(30 * time.Minute),
			LLMCallsPerMinute: 20,
			LLMBurst:          5,
		},
		AskFirst: AskFirstConfig{
			MaxModules:         ask.MaxModules,
			MaxEntities:        ask.MaxEntities,
			MaxRecommendations: ask.MaxRecommendations,
			PastWindow:         Duration(ask.PastWindow),
			FutureWindow:       Duration(ask.FutureWindow),
			MaxBlock:           Duration(ask.MaxBlock),
		},
		Events: EventsConfig{
			Backend:           "memory",
			PublishTimeout:    Duration(3 * time.Second),
			OutboxInterval:    Duration(5 * time.Second),
			OutboxBatch:       50,
			OutboxMaxAttempts: 10,
		},
	}
}

// LoadConfig layers defaults, the optional MAIGIE_CONFIG JSON file and
// environment variables, in that order.
func LoadConfig() (Config, error) {
	cfg := defaultConfig()
	if path := envutil.String("MAIGIE_CONFIG", ""); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func applyEnv(c *Config) {
	c.Addr = envutil.String("ADDR", c.Addr)
	if port := envutil.String("PORT", ""); port != "" {
		c.Addr = ":" + port
	}
	c.LogMode = envutil.String("LOG_MODE", c.LogMode)
	c.JWTSecret = envutil.String("JWT_SECRET_KEY", c.JWTSecret)
	if origins := envutil.String("CORS_ALLOWED_ORIGINS", ""); origins != "" {
		c.AllowedOrigins = splitList(origins)
	}
	c.IntentTable = envutil.String("INTENT_TABLE_PATH", c.IntentTable)
	c.VoiceEnabled = envutil.Bool("VOICE_ENABLED", c.VoiceEnabled)

	c.LLM.Provider = strings.ToLower(envutil.String("LLM_PROVIDER", c.LLM.Provider))
	c.LLM.Timeout = Duration(envutil.Duration("LLM_TIMEOUT", c.LLM.Timeout.D()))
	c.LLM.MaxAttempts = envutil.Int("LLM_MAX_ATTEMPTS", c.LLM.MaxAttempts)
	c.LLM.Backoff = Duration(envutil.Duration("LLM_BACKOFF", c.LLM.Backoff.D()))
	c.LLM.TokenModel = envutil.String("LLM_TOKEN_MODEL", c.LLM.TokenModel)

	c.Retrieval.K = envutil.Int("RETRIEVAL_K", c.Retrieval.K)
	c.Retrieval.Timeout = Duration(envutil.Duration("RETRIEVAL_TIMEOUT", c.Retrieval.Timeout.D()))

	c.Prompt.Budget = envutil.Int("PROMPT_TOKEN_BUDGET", c.Prompt.Budget)
	c.Prompt.SummaryBudget = envutil.Int("SUMMARY_TOKEN_BUDGET", c.Prompt.SummaryBudget)

	c.Session.MaxTurns = envutil.Int("SESSION_MAX_TURNS", c.Session.MaxTurns)
	c.Session.IdleTimeout = Duration(envutil.Duration("SESSION_IDLE_TIMEOUT", c.Session.IdleTimeout.D()))
	c.Session.LLMCallsPerMinute = envutil.Float("LLM_CALLS_PER_MINUTE", c.Session.LLMCallsPerMinute)
	c.Session.LLMBurst = envutil.Int("LLM_BURST", c.Session.LLMBurst)

	c.AskFirst.MaxModules = envutil.Int("ASK_FIRST_MAX_MODULES", c.AskFirst.MaxModules)
	c.AskFirst.MaxEntities = envutil.Int("ASK_FIRST_MAX_ENTITIES", c.AskFirst.MaxEntities)
	c.AskFirst.MaxRecommendations = envutil.Int("ASK_FIRST_MAX_RECOMMENDATIONS", c.AskFirst.MaxRecommendations)

	c.Events.Backend = strings.ToLower(envutil.String("EVENT_BUS", c.Events.Backend))
	c.Events.OutboxInterval = Duration(envutil.Duration("OUTBOX_REPLAY_INTERVAL", c.Events.OutboxInterval.D()))
	c.Events.OutboxMaxAttempts = envutil.Int("OUTBOX_MAX_ATTEMPTS", c.Events.OutboxMaxAttempts)
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
