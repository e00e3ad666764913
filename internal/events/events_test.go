package events

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	repos "github.com/yungbote/maigie-backend/internal/data/repos"
	"github.com/yungbote/maigie-backend/internal/data/repos/testutil"
	types "github.com/yungbote/maigie-backend/internal/domain"
	"github.com/yungbote/maigie-backend/internal/platform/dbctx"
	"github.com/yungbote/maigie-backend/internal/platform/logger"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func mustEvent(t *testing.T, typ string) DomainEvent {
	t.Helper()
	ev, err := New(typ, "u1", map[string]string{"id": "c1"}, Metadata{RequestID: "r1"}, time.Now())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return ev
}

func TestNewEventDefaults(t *testing.T) {
	ev := mustEvent(t, "course.created")
	if ev.EventID == "" {
		t.Fatalf("event id: want non-empty")
	}
	if ev.Metadata.Source != SourceAI {
		t.Fatalf("source: want=%q got=%q", SourceAI, ev.Metadata.Source)
	}
	raw, err := ev.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	back, err := Unmarshal(raw)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if diff := cmp.Diff(ev.Payload, back.Payload); diff != "" {
		t.Fatalf("payload mismatch (-want +got):\n%s", diff)
	}
	if _, err := Unmarshal([]byte(`{"type":"x"}`)); err == nil {
		t.Fatalf("envelope without id: want error")
	}
}

func TestMemoryBusDelivery(t *testing.T) {
	bus := NewMemoryBus(logger.Nop())
	var got []string
	var mu sync.Mutex
	record := func(tag string) Handler {
		return func(_ context.Context, ev DomainEvent) error {
			mu.Lock()
			got = append(got, tag+":"+ev.Type)
			mu.Unlock()
			return nil
		}
	}

	unsubCourse := bus.Subscribe("course.created", record("course"))
	bus.Subscribe(AnyType, record("all"))
	bus.Subscribe("goal.created", func(context.Context, DomainEvent) error { panic("boom") })
	bus.Subscribe("goal.created", func(context.Context, DomainEvent) error { return errors.New("fail") })

	ctx := context.Background()
	for _, typ := range []string{"course.created", "goal.created"} {
		if err := bus.Publish(ctx, mustEvent(t, typ)); err != nil {
			t.Fatalf("publish %s: %v", typ, err)
		}
	}
	unsubCourse()
	unsubCourse()
	if err := bus.Publish(ctx, mustEvent(t, "course.created")); err != nil {
		t.Fatalf("publish after unsubscribe: %v", err)
	}

	want := []string{"course:course.created", "all:course.created", "all:goal.created", "all:course.created"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("deliveries (-want +got):\n%s", diff)
	}

	_ = bus.Close()
	if err := bus.Publish(ctx, mustEvent(t, "course.created")); !errors.Is(err, ErrBusClosed) {
		t.Fatalf("publish on closed bus: want=%v got=%v", ErrBusClosed, err)
	}
}

type flakyBus struct {
	*MemoryBus
	mu   sync.Mutex
	fail bool
}

func (b *flakyBus) setFail(v bool) {
	b.mu.Lock()
	b.fail = v
	b.mu.Unlock()
}

func (b *flakyBus) Publish(ctx context.Context, ev DomainEvent) error {
	b.mu.Lock()
	fail := b.fail
	b.mu.Unlock()
	if fail {
		return errors.New("bus down")
	}
	return b.MemoryBus.Publish(ctx, ev)
}

func TestOutboxReplay(t *testing.T) {
	log := testutil.Logger(t)
	conn := testutil.DB(t)
	repo := repos.NewOutboxRepo(conn, log)
	bus := &flakyBus{MemoryBus: NewMemoryBus(log), fail: true}

	var delivered []string
	bus.Subscribe(AnyType, func(_ context.Context, ev DomainEvent) error {
		delivered = append(delivered, ev.EventID)
		return nil
	})

	ob := NewOutbox(log, repo, bus, OutboxConfig{MaxAttempts: 3, Backoff: func(int) time.Duration { return 0 }})
	ctx := context.Background()
	ev := mustEvent(t, "goal.created")
	if err := ob.Stage(dbctx.Context{Ctx: ctx}, ev, 0); err != nil {
		t.Fatalf("stage: %v", err)
	}
	if err := ob.Stage(dbctx.Context{Ctx: ctx}, ev, 0); err != nil {
		t.Fatalf("stage duplicate: %v", err)
	}

	n, err := ob.ReplayOnce(ctx)
	if err != nil || n != 0 {
		t.Fatalf("replay while bus down: want=0,nil got=%d,%v", n, err)
	}
	var row types.OutboxEvent
	if err := conn.Where("event_id = ?", ev.EventID).First(&row).Error; err != nil {
		t.Fatalf("load outbox row: %v", err)
	}
	if row.Attempts != 1 || row.Status != types.OutboxStatusPending {
		t.Fatalf("after failed replay: want attempts=1 status=pending got attempts=%d status=%s", row.Attempts, row.Status)
	}

	bus.setFail(false)
	n, err = ob.ReplayOnce(ctx)
	if err != nil || n != 1 {
		t.Fatalf("replay: want=1,nil got=%d,%v", n, err)
	}
	if diff := cmp.Diff([]string{ev.EventID}, delivered); diff != "" {
		t.Fatalf("delivered (-want +got):\n%s", diff)
	}
	left, err := repo.CountByStatus(dbctx.Context{Ctx: ctx}, types.OutboxStatusPending)
	if err != nil || left != 0 {
		t.Fatalf("pending after delivery: want=0 got=%d err=%v", left, err)
	}
}

func TestOutboxRunStops(t *testing.T) {
	log := testutil.Logger(t)
	conn := testutil.DB(t)
	ob := NewOutbox(log, repos.NewOutboxRepo(conn, log), NewMemoryBus(log), OutboxConfig{Interval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ob.Run(ctx) }()
	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not stop after cancel")
	}
}

func TestRedisBusRoundTrip(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	log := testutil.Logger(t)
	stream := "maigie:test:" + time.Now().Format("150405.000000")
	bus, err := NewRedisBus(log, RedisConfig{Addr: addr, Stream: stream, Group: "test", Consumer: "c1", Block: 100 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewRedisBus: %v", err)
	}
	defer bus.Close()

	got := make(chan DomainEvent, 1)
	bus.Subscribe("course.created", func(_ context.Context, ev DomainEvent) error {
		got <- ev
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = bus.Run(ctx)
	}()
	defer func() {
		cancel()
		<-done
		_ = bus.rdb.Del(context.Background(), stream).Err()
	}()

	// Give the consumer group time to exist before the first XADD.
	time.Sleep(200 * time.Millisecond)
	ev := mustEvent(t, "course.created")
	if err := bus.Publish(ctx, ev); err != nil {
		t.Fatalf("publish: %v", err)
	}
	select {
	case back := <-got:
		if back.EventID != ev.EventID {
			t.Fatalf("event id: want=%s got=%s", ev.EventID, back.EventID)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("event not consumed")
	}
}

func TestRedisBusRedeliversThenDeadLetters(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	log := testutil.Logger(t)
	stream := "maigie:test:retry:" + time.Now().Format("150405.000000")
	bus, err := NewRedisBus(log, RedisConfig{
		Addr:          addr,
		Stream:        stream,
		Group:         "test",
		Consumer:      "c1",
		Block:         50 * time.Millisecond,
		RetryIdle:     100 * time.Millisecond,
		MaxDeliveries: 3,
	})
	if err != nil {
		t.Fatalf("NewRedisBus: %v", err)
	}
	defer bus.Close()

	var (
		mu    sync.Mutex
		calls int
	)
	bus.Subscribe("goal.created", func(context.Context, DomainEvent) error {
		mu.Lock()
		calls++
		mu.Unlock()
		return errors.New("handler down")
	})
	consumed := make(chan string, 1)
	bus.Subscribe("course.created", func(_ context.Context, ev DomainEvent) error {
		consumed <- ev.EventID
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = bus.Run(ctx)
	}()
	defer func() {
		cancel()
		<-done
		_ = bus.rdb.Del(context.Background(), stream, bus.cfg.DeadStream).Err()
	}()

	time.Sleep(200 * time.Millisecond)
	failing := mustEvent(t, "goal.created")
	if err := bus.Publish(ctx, failing); err != nil {
		t.Fatalf("publish: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		n, err := bus.rdb.XLen(ctx, bus.cfg.DeadStream).Result()
		if err == nil && n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("entry never reached the dead letter stream: len=%d err=%v", n, err)
		}
		time.Sleep(50 * time.Millisecond)
	}
	mu.Lock()
	got := calls
	mu.Unlock()
	if got != 3 {
		t.Fatalf("handler deliveries: want=3 got=%d", got)
	}
	dead, err := bus.rdb.XRange(ctx, bus.cfg.DeadStream, "-", "+").Result()
	if err != nil || len(dead) != 1 || dead[0].Values["event_id"] != failing.EventID {
		t.Fatalf("dead letter entry: err=%v entries=%+v", err, dead)
	}
	pending, err := bus.rdb.XPending(ctx, stream, "test").Result()
	if err != nil || pending.Count != 0 {
		t.Fatalf("pending after dead letter: want=0 got=%+v err=%v", pending, err)
	}

	ok := mustEvent(t, "course.created")
	if err := bus.Publish(ctx, ok); err != nil {
		t.Fatalf("publish: %v", err)
	}
	select {
	case id := <-consumed:
		if id != ok.EventID {
			t.Fatalf("event id: want=%s got=%s", ok.EventID, id)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("later event not consumed")
	}
}
