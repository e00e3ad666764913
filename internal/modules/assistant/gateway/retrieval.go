package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/maigie-backend/internal/platform/logger"
	"github.com/yungbote/maigie-backend/internal/platform/qdrant"
	"github.com/yungbote/maigie-backend/internal/platform/retry"
)

var ErrRetrievalUnavailable = errors.New("retrieval unavailable")

// Document is one ranked retrieval hit. Results are never persisted.
type Document struct {
	ID      string  `json:"id"`
	Kind    string  `json:"kind,omitempty"`
	Title   string  `json:"title,omitempty"`
	URL     string  `json:"url,omitempty"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score"`
}

// Scope restricts a search to one user and optionally a course or topic.
type Scope struct {
	UserID   string
	CourseID string
	TopicID  string
}

type Retriever interface {
	Search(ctx context.Context, query string, scope Scope, k int) ([]Document, error)
}

type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

type VectorIndex interface {
	Search(ctx context.Context, vector []float32, topK int, must qdrant.Match) ([]qdrant.Point, error)
}

type RetrievalConfig struct {
	Timeout time.Duration
	Policy  retry.Policy
	MaxK    int
}

// VectorRetriever embeds the query and searches the vector index under the
// caller's scope.
type VectorRetriever struct {
	log   *logger.Logger
	embed Embedder
	index VectorIndex
	cfg   RetrievalConfig
}

func NewVectorRetriever(baseLog *logger.Logger, embed Embedder, index VectorIndex, cfg RetrievalConfig) *VectorRetriever {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Policy.MaxAttempts <= 0 {
		cfg.Policy = retry.Once(200 * time.Millisecond)
	}
	if cfg.MaxK <= 0 {
		cfg.MaxK = 50
	}
	return &VectorRetriever{
		log:   baseLog.With("component", "RetrievalGateway"),
		embed: embed,
		index: index,
		cfg:   cfg,
	}
}

func (r *VectorRetriever) Search(ctx context.Context, query string, scope Scope, k int) ([]Document, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []Document{}, nil
	}
	if strings.TrimSpace(scope.UserID) == "" {
		return nil, fmt.Errorf("retrieval: user scope required")
	}
	if k <= 0 {
		k = 5
	}
	if k > r.cfg.MaxK {
		k = r.cfg.MaxK
	}

	ctx, span := otel.Tracer("maigie/assistant").Start(ctx, "retrieval.search")
	defer span.End()
	span.SetAttributes(attribute.Int("retrieval.k", k), attribute.Bool("retrieval.topic_scoped", scope.TopicID != ""))

	must := qdrant.Match{"user_id": scope.UserID}
	if scope.CourseID != "" {
		must["course_id"] = scope.CourseID
	}
	if scope.TopicID != "" {
		must["topic_id"] = scope.TopicID
	}

	var points []qdrant.Point
	err := retry.Do(ctx, r.cfg.Policy, retry.IsRetryable, func(ctx context.Context, attempt int) error {
		actx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
		vecs, err := r.embed.Embed(actx, []string{query})
		if err != nil {
			return err
		}
		if len(vecs) != 1 {
			return fmt.Errorf("embed: want 1 vector, got %d", len(vecs))
		}
		points, err = r.index.Search(actx, vecs[0], k, must)
		return err
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		r.log.Warn("retrieval failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrRetrievalUnavailable, err)
	}

	docs := make([]Document, 0, len(points))
	for _, p := range points {
		docs = append(docs, Document{
			ID:      p.ID,
			Kind:    payloadString(p.Payload, "kind"),
			Title:   payloadString(p.Payload, "title"),
			URL:     payloadString(p.Payload, "url"),
			Snippet: firstNonEmpty(payloadString(p.Payload, "snippet"), payloadString(p.Payload, "text")),
			Score:   p.Score,
		})
	}
	return docs, nil
}

// NopRetriever is used when no vector index is configured.
type NopRetriever struct{}

func (NopRetriever) Search(ctx context.Context, query string, scope Scope, k int) ([]Document, error) {
	return []Document{}, nil
}

func payloadString(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	if s, ok := m[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
