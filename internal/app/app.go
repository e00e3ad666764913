package app

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	temporalsdkclient "go.temporal.io/sdk/client"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/yungbote/maigie-backend/internal/data/db"
	"github.com/yungbote/maigie-backend/internal/data/repos"
	"github.com/yungbote/maigie-backend/internal/events"
	apphttp "github.com/yungbote/maigie-backend/internal/http"
	httpH "github.com/yungbote/maigie-backend/internal/http/handlers"
	httpMW "github.com/yungbote/maigie-backend/internal/http/middleware"
	"github.com/yungbote/maigie-backend/internal/modules/assistant"
	"github.com/yungbote/maigie-backend/internal/modules/assistant/dispatch"
	"github.com/yungbote/maigie-backend/internal/modules/assistant/intent"
	"github.com/yungbote/maigie-backend/internal/modules/assistant/prompts"
	"github.com/yungbote/maigie-backend/internal/modules/assistant/session"
	"github.com/yungbote/maigie-backend/internal/modules/assistant/validate"
	"github.com/yungbote/maigie-backend/internal/observability"
	"github.com/yungbote/maigie-backend/internal/platform/logger"
	"github.com/yungbote/maigie-backend/internal/platform/tokens"
	"github.com/yungbote/maigie-backend/internal/services"
	"github.com/yungbote/maigie-backend/internal/temporalx"
	"github.com/yungbote/maigie-backend/internal/temporalx/temporalworker"
)

const serviceName = "maigie-engine"

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Cfg      Config
	Repos    repos.Set
	Clients  Clients
	Engine   *assistant.Engine
	Sessions *session.Manager
	Outbox   *events.Outbox
	Server   *apphttp.Server

	dbService    *db.Service
	temporal     temporalsdkclient.Client
	replayRunner *temporalworker.Runner
	otelShutdown func(context.Context) error
	unsubscribe  []func()
}

func New(ctx context.Context) (*App, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &App{Log: log, Cfg: cfg}
	if err := a.wire(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) wire(ctx context.Context) error {
	log, cfg := a.Log, a.Cfg

	shutdown, err := observability.InitOTel(ctx, log, observability.OtelConfigFromEnv())
	if err != nil {
		return fmt.Errorf("init otel: %w", err)
	}
	a.otelShutdown = shutdown

	dbs, err := db.Open(log, db.ConfigFromEnv())
	if err != nil {
		return fmt.Errorf("init db: %w", err)
	}
	a.dbService = dbs
	if err := dbs.AutoMigrateAll(); err != nil {
		return fmt.Errorf("db automigrate: %w", err)
	}
	a.DB = dbs.DB()
	a.Repos = repos.NewSet(a.DB, log)

	clients, err := wireClients(ctx, log, cfg)
	if err != nil {
		return err
	}
	a.Clients = clients

	counter, err := tokens.New(cfg.LLM.TokenModel)
	if err != nil {
		log.Warn("tiktoken unavailable, estimating tokens", "model", cfg.LLM.TokenModel, "error", err)
	}

	svcs := services.Set{
		Course:   services.NewCourseService(log, a.Repos.Course),
		Goal:     services.NewGoalService(log, a.Repos.Goal),
		Schedule: services.NewScheduleService(log, a.Repos.ScheduleBlock),
		Resource: services.NewResourceService(log, a.Repos.Resource, clients.Retriever),
		Note:     services.NewNoteService(log, a.Repos.Note, clients.LLM, counter, cfg.Prompt.SummaryBudget),
	}

	a.Outbox = events.NewOutbox(log, a.Repos.Outbox, clients.Bus, events.OutboxConfig{
		Interval:    cfg.Events.OutboxInterval.D(),
		Batch:       cfg.Events.OutboxBatch,
		MaxAttempts: cfg.Events.OutboxMaxAttempts,
	})
	a.unsubscribe = subscribeEventLog(log, clients.Bus)

	dispatcher := dispatch.NewDispatcher(
		log,
		a.DB,
		a.Repos.DispatchRecord,
		dispatch.NewOwnership(a.Repos.Course, a.Repos.Topic, a.Repos.Note),
		svcs,
		clients.Bus,
		a.Outbox,
		dispatch.Config{AskFirst: cfg.AskFirst.Policy(), PublishTimeout: cfg.Events.PublishTimeout.D()},
	)

	classifier, err := intent.New(cfg.IntentTable)
	if err != nil {
		return fmt.Errorf("init intent table: %w", err)
	}
	composer, err := prompts.NewComposer(counter, prompts.Config{
		Budget:    cfg.Prompt.Budget,
		DocBudget: cfg.Prompt.DocBudget,
		MaxDocs:   cfg.Prompt.MaxDocs,
	})
	if err != nil {
		return fmt.Errorf("init prompt composer: %w", err)
	}

	a.Engine = assistant.NewEngine(
		log,
		classifier,
		composer,
		validate.New(),
		clients.LLM,
		clients.Retriever,
		dispatcher,
		a.Repos.ActionAudit,
		assistant.Config{RetrievalK: cfg.Retrieval.K, HistoryTurns: cfg.Prompt.HistoryTurns},
	)
	a.Sessions = session.NewManager(log, session.Config{
		MaxTurns:          cfg.Session.MaxTurns,
		IdleTimeout:       cfg.Session.IdleTimeout.D(),
		LLMCallsPerMinute: cfg.Session.LLMCallsPerMinute,
		LLMBurst:          cfg.Session.LLMBurst,
	})

	// A nil *gcp.Transcriber must stay a nil interface so voice answers 503.
	var stt httpH.Transcriber
	if clients.Transcriber != nil {
		stt = clients.Transcriber
	}

	a.Server = apphttp.NewServer(cfg.Addr, apphttp.RouterConfig{
		Log:              log,
		ServiceName:      serviceName,
		AllowedOrigins:   cfg.AllowedOrigins,
		AuthMiddleware:   httpMW.NewAuthMiddleware(log, cfg.JWTSecret),
		AssistantHandler: httpH.NewAssistantHandler(log, a.Engine, a.Sessions, stt),
		RealtimeHandler:  httpH.NewRealtimeHandler(log, a.Engine, a.Sessions, originHosts(cfg.AllowedOrigins)),
		HealthHandler:    httpH.NewHealthHandler(a.healthChecks()),
	})

	return a.wireTemporal(ctx)
}

// wireTemporal moves outbox replay into a Temporal workflow when
// TEMPORAL_ADDRESS is set. Otherwise Run replays on a local ticker.
func (a *App) wireTemporal(ctx context.Context) error {
	tcfg := temporalx.LoadConfig()
	if !tcfg.Enabled() {
		return nil
	}
	tc, err := temporalx.NewClient(ctx, a.Log, tcfg)
	if err != nil {
		return fmt.Errorf("init temporal client: %w", err)
	}
	a.temporal = tc
	runner, err := temporalworker.NewRunner(a.Log, tc, tcfg, a.Outbox)
	if err != nil {
		return fmt.Errorf("init temporal runner: %w", err)
	}
	a.replayRunner = runner
	return nil
}

func (a *App) healthChecks() map[string]httpH.Pinger {
	checks := map[string]httpH.Pinger{
		"database": func(ctx context.Context) error {
			sqlDB, err := a.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if a.Clients.RedisBus != nil {
		checks["redis"] = a.Clients.RedisBus.Ping
	}
	return checks
}

// Run serves HTTP and runs the background loops until ctx ends or one of
// them fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.Server.Run(gctx) })
	g.Go(func() error { return a.Sessions.Run(gctx) })
	if a.replayRunner != nil {
		g.Go(func() error { return a.replayRunner.Run(gctx) })
	} else {
		g.Go(func() error { return a.Outbox.Run(gctx) })
	}
	if a.Clients.RedisBus != nil {
		g.Go(func() error { return a.Clients.RedisBus.Run(gctx) })
	}

	a.Log.Info("Maigie engine running", "addr", a.Cfg.Addr, "llm", a.Cfg.LLM.Provider, "events", a.Cfg.Events.Backend)
	return g.Wait()
}

func (a *App) Close() {
	if a == nil {
		return
	}
	for _, unsub := range a.unsubscribe {
		unsub()
	}
	a.unsubscribe = nil
	if a.temporal != nil {
		a.temporal.Close()
		a.temporal = nil
	}
	a.Clients.Close()
	a.Clients = Clients{}
	if a.dbService != nil {
		if err := a.dbService.Close(); err != nil {
			a.Log.Warn("db close failed", "error", err)
		}
		a.dbService = nil
	}
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.otelShutdown(ctx); err != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
		cancel()
		a.otelShutdown = nil
	}
	a.Log.Sync()
}

// originHosts turns CORS origins into websocket origin host patterns.
func originHosts(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			out = append(out, u.Host)
			continue
		}
		out = append(out, o)
	}
	return out
}
