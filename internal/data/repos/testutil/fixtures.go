package testutil

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/maigie-backend/internal/domain"
)

func SeedCourse(tb testing.TB, ctx context.Context, tx *gorm.DB, userID string) *types.Course {
	tb.Helper()
	c := &types.Course{ID: uuid.NewString(), UserID: userID, Title: "Seed Course", Source: "user"}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed course: %v", err)
	}
	return c
}

func SeedTopic(tb testing.TB, ctx context.Context, tx *gorm.DB, id, userID, courseID string) *types.Topic {
	tb.Helper()
	if id == "" {
		id = uuid.NewString()
	}
	tp := &types.Topic{ID: id, UserID: userID, CourseID: courseID, Title: "Seed Topic"}
	if err := tx.WithContext(ctx).Create(tp).Error; err != nil {
		tb.Fatalf("seed topic: %v", err)
	}
	return tp
}

func SeedNote(tb testing.TB, ctx context.Context, tx *gorm.DB, userID, content string) *types.Note {
	tb.Helper()
	n := &types.Note{ID: uuid.NewString(), UserID: userID, Title: "Seed Note", Content: content}
	if err := tx.WithContext(ctx).Create(n).Error; err != nil {
		tb.Fatalf("seed note: %v", err)
	}
	return n
}
