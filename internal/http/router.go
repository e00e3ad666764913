package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/maigie-backend/internal/http/handlers"
	httpMW "github.com/yungbote/maigie-backend/internal/http/middleware"
	"github.com/yungbote/maigie-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	ServiceName    string
	AllowedOrigins []string

	AuthMiddleware   *httpMW.AuthMiddleware
	AssistantHandler *httpH.AssistantHandler
	RealtimeHandler  *httpH.RealtimeHandler
	HealthHandler    *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS(cfg.AllowedOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthz", cfg.HealthHandler.HealthCheck)
	}

	protected := r.Group("/api/assistant")
	{
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}

		if cfg.AssistantHandler != nil {
			protected.POST("/chat", cfg.AssistantHandler.Chat)
			protected.POST("/voice", cfg.AssistantHandler.Voice)
		}

		if cfg.RealtimeHandler != nil {
			protected.GET("/ws", cfg.RealtimeHandler.Stream)
		}
	}

	return r
}
