package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	repos "github.com/yungbote/maigie-backend/internal/data/repos"
	types "github.com/yungbote/maigie-backend/internal/domain"
	"github.com/yungbote/maigie-backend/internal/modules/assistant/action"
	"github.com/yungbote/maigie-backend/internal/modules/assistant/gateway"
	"github.com/yungbote/maigie-backend/internal/platform/dbctx"
	"github.com/yungbote/maigie-backend/internal/platform/logger"
)

// Recommendation is the object recorded for resource.recommended.
type Recommendation struct {
	Query     string            `json:"query"`
	TopicID   string            `json:"topic_id,omitempty"`
	CourseID  string            `json:"course_id,omitempty"`
	Count     int               `json:"count"`
	Resources []*types.Resource `json:"resources"`
}

type ResourceService struct {
	log          *logger.Logger
	resourceRepo repos.ResourceRepo
	retriever    gateway.Retriever
}

func NewResourceService(baseLog *logger.Logger, resourceRepo repos.ResourceRepo, retriever gateway.Retriever) *ResourceService {
	if retriever == nil {
		retriever = gateway.NopRetriever{}
	}
	return &ResourceService{
		log:          baseLog.With("service", "ResourceService"),
		resourceRepo: resourceRepo,
		retriever:    retriever,
	}
}

// Prepare runs the index search.
func (s *ResourceService) Prepare(ctx context.Context, payload any, userID string) (any, error) {
	p, err := payloadAs[action.RecommendResourcesPayload](payload)
	if err != nil {
		return nil, err
	}
	return s.search(ctx, p, userID)
}

// Execute links at most the requested number of search results to the topic
// (or course) in rank order. Without prepared results it searches inline.
func (s *ResourceService) Execute(dbc dbctx.Context, payload any, userID string) (*Result, error) {
	p, err := payloadAs[action.RecommendResourcesPayload](payload)
	if err != nil {
		return nil, err
	}
	limit := p.EffectiveLimit()
	query := strings.TrimSpace(p.Query)

	docs, ok := preparedAs[[]gateway.Document](payload)
	if !ok {
		if docs, err = s.search(dbc.Context(), p, userID); err != nil {
			return nil, err
		}
	}
	if len(docs) == 0 {
		return nil, ErrNoResults
	}
	if len(docs) > limit {
		docs = docs[:limit]
	}

	rows := make([]*types.Resource, 0, len(docs))
	for i, d := range docs {
		rows = append(rows, &types.Resource{
			ID:         uuid.NewString(),
			UserID:     userID,
			TopicID:    strPtr(p.TopicID),
			CourseID:   strPtr(p.CourseID),
			DocumentID: d.ID,
			Kind:       d.Kind,
			Title:      d.Title,
			URL:        d.URL,
			Snippet:    d.Snippet,
			Score:      d.Score,
			Rank:       i + 1,
			Query:      query,
		})
	}
	saved, err := s.resourceRepo.Create(dbc, rows)
	if err != nil {
		return nil, fmt.Errorf("save resources: %w", err)
	}

	entityID := p.TopicID
	if entityID == "" {
		entityID = p.CourseID
	}
	return &Result{
		EntityType: "resource",
		EntityID:   entityID,
		Object: &Recommendation{
			Query:     query,
			TopicID:   p.TopicID,
			CourseID:  p.CourseID,
			Count:     len(saved),
			Resources: saved,
		},
		Context: action.ActiveContext{CourseID: p.CourseID, TopicID: p.TopicID},
	}, nil
}

func (s *ResourceService) search(ctx context.Context, p action.RecommendResourcesPayload, userID string) ([]gateway.Document, error) {
	docs, err := s.retriever.Search(ctx, strings.TrimSpace(p.Query), gateway.Scope{
		UserID:   userID,
		CourseID: p.CourseID,
		TopicID:  p.TopicID,
	}, p.EffectiveLimit())
	if err != nil {
		return nil, fmt.Errorf("search resources: %w", err)
	}
	return docs, nil
}
