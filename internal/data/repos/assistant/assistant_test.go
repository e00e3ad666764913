package assistant

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/maigie-backend/internal/data/repos/testutil"
	types "github.com/yungbote/maigie-backend/internal/domain"
	"github.com/yungbote/maigie-backend/internal/platform/dbctx"
)

func TestDispatchRecordUniquePerRequest(t *testing.T) {
	db := testutil.DB(t)
	dbc := dbctx.Context{Ctx: context.Background()}
	repo := NewDispatchRecordRepo(db, testutil.Logger(t))

	newRec := func() *types.DispatchRecord {
		return &types.DispatchRecord{
			ID:         uuid.NewString(),
			UserID:     "u1",
			RequestID:  "req-1",
			ActionType: "create_goal",
			Status:     types.DispatchStatusCommitted,
			EventID:    uuid.NewString(),
			EventType:  "goal.created",
		}
	}
	if err := repo.Create(dbc, newRec()); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	err := repo.Create(dbc, newRec())
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Fatalf("second Create: want ErrDuplicatedKey got %v", err)
	}

	got, err := repo.GetByRequest(dbc, "u1", "req-1")
	if err != nil || got == nil {
		t.Fatalf("GetByRequest: err=%v got=%v", err, got)
	}
	other, err := repo.GetByRequest(dbc, "u2", "req-1")
	if err != nil || other != nil {
		t.Fatalf("GetByRequest(other user): want nil,nil got %v,%v", other, err)
	}
}

func TestOutboxClaimAndRetry(t *testing.T) {
	db := testutil.DB(t)
	dbc := dbctx.Context{Ctx: context.Background()}
	repo := NewOutboxRepo(db, testutil.Logger(t))

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	ev := &types.OutboxEvent{
		ID:          uuid.NewString(),
		EventID:     "ev-1",
		EventType:   "goal.created",
		UserID:      "u1",
		Envelope:    datatypes.JSON(`{"event_id":"ev-1"}`),
		NextAttempt: now,
	}
	if err := repo.Enqueue(dbc, ev); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	dup := *ev
	dup.ID = uuid.NewString()
	if err := repo.Enqueue(dbc, &dup); err != nil {
		t.Fatalf("Enqueue duplicate event id: %v", err)
	}
	if n, _ := repo.CountByStatus(dbc, types.OutboxStatusPending); n != 1 {
		t.Fatalf("pending: want=1 got=%d", n)
	}

	claimed, err := repo.ClaimDue(dbc, now, 10, time.Minute)
	if err != nil {
		t.Fatalf("ClaimDue: %v", err)
	}
	if len(claimed) != 1 {
		t.Fatalf("claimed: want=1 got=%d", len(claimed))
	}
	again, err := repo.ClaimDue(dbc, now, 10, time.Minute)
	if err != nil {
		t.Fatalf("ClaimDue again: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("leased event should not be claimed twice, got %d", len(again))
	}

	if err := repo.MarkFailed(dbc, ev.ID, "boom", now, 2); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	if n, _ := repo.CountByStatus(dbc, types.OutboxStatusPending); n != 1 {
		t.Fatalf("after first failure: want pending=1 got=%d", n)
	}
	if err := repo.MarkFailed(dbc, ev.ID, "boom", now, 2); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	if n, _ := repo.CountByStatus(dbc, types.OutboxStatusDead); n != 1 {
		t.Fatalf("after max attempts: want dead=1 got=%d", n)
	}
}

func TestOutboxMarkDelivered(t *testing.T) {
	db := testutil.DB(t)
	dbc := dbctx.Context{Ctx: context.Background()}
	repo := NewOutboxRepo(db, testutil.Logger(t))

	ev := &types.OutboxEvent{ID: uuid.NewString(), EventID: "ev-2", EventType: "course.created", UserID: "u1", Envelope: datatypes.JSON(`{}`)}
	if err := repo.Enqueue(dbc, ev); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := repo.MarkDelivered(dbc, ev.ID, time.Now()); err != nil {
		t.Fatalf("MarkDelivered: %v", err)
	}
	if n, _ := repo.CountByStatus(dbc, types.OutboxStatusDelivered); n != 1 {
		t.Fatalf("delivered: want=1 got=%d", n)
	}
}

func TestOutboxRescheduleAndDeliverByEvent(t *testing.T) {
	db := testutil.DB(t)
	dbc := dbctx.Context{Ctx: context.Background()}
	repo := NewOutboxRepo(db, testutil.Logger(t))
	now := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)

	ev := &types.OutboxEvent{ID: uuid.NewString(), EventID: "ev-3", EventType: "goal.created", UserID: "u1", Envelope: datatypes.JSON(`{}`), NextAttempt: now.Add(time.Hour)}
	if err := repo.Enqueue(dbc, ev); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if claimed, _ := repo.ClaimDue(dbc, now, 10, time.Minute); len(claimed) != 0 {
		t.Fatalf("held event must not be due: got %d", len(claimed))
	}
	if err := repo.Reschedule(dbc, "ev-3", "bus down", now); err != nil {
		t.Fatalf("Reschedule: %v", err)
	}
	claimed, err := repo.ClaimDue(dbc, now, 10, time.Minute)
	if err != nil || len(claimed) != 1 || claimed[0].Attempts != 0 || claimed[0].LastError != "bus down" {
		t.Fatalf("after reschedule: err=%v claimed=%+v", err, claimed)
	}
	if err := repo.MarkDeliveredByEvent(dbc, "ev-3", now); err != nil {
		t.Fatalf("MarkDeliveredByEvent: %v", err)
	}
	if n, _ := repo.CountByStatus(dbc, types.OutboxStatusDelivered); n != 1 {
		t.Fatalf("delivered: want=1 got=%d", n)
	}
}
