package events

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/maigie-backend/internal/platform/envutil"
	"github.com/yungbote/maigie-backend/internal/platform/logger"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
	Group    string
	Consumer string
	MaxLen   int64
	Block    time.Duration
	Batch    int64

	// RetryIdle is how long an entry sits unacked before it is claimed again.
	RetryIdle time.Duration

	// MaxDeliveries moves an entry to DeadStream once it was delivered this often.
	MaxDeliveries int64
	DeadStream    string
}

func RedisConfigFromEnv() RedisConfig {
	host, _ := os.Hostname()
	return RedisConfig{
		Addr:     envutil.String("REDIS_ADDR", ""),
		Password: envutil.String("REDIS_PASSWORD", ""),
		DB:       envutil.Int("REDIS_DB", 0),
		Stream:   envutil.String("EVENTS_STREAM", "maigie:events"),
		Group:    envutil.String("EVENTS_GROUP", "maigie-engine"),
		Consumer: envutil.String("EVENTS_CONSUMER", host),
		MaxLen:   int64(envutil.Int("EVENTS_STREAM_MAXLEN", 100000)),
		Block:    envutil.Duration("EVENTS_BLOCK", 5*time.Second),
		Batch:    int64(envutil.Int("EVENTS_BATCH", 16)),

		RetryIdle:     envutil.Duration("EVENTS_RETRY_IDLE", 30*time.Second),
		MaxDeliveries: int64(envutil.Int("EVENTS_MAX_DELIVERIES", 5)),
		DeadStream:    envutil.String("EVENTS_DEAD_STREAM", ""),
	}
}

// RedisBus appends events to a Redis stream. Local subscribers receive them
// through a consumer group once Run is started, so several engine replicas
// share the stream without double delivery.
type RedisBus struct {
	log *logger.Logger
	rdb *goredis.Client
	cfg RedisConfig
	reg *registry
}

func NewRedisBus(baseLog *logger.Logger, cfg RedisConfig) (*RedisBus, error) {
	if baseLog == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	if cfg.Stream == "" {
		cfg.Stream = "maigie:events"
	}
	if cfg.Group == "" {
		cfg.Group = "maigie-engine"
	}
	if cfg.Consumer == "" {
		cfg.Consumer = "engine"
	}
	if cfg.Block <= 0 {
		cfg.Block = 5 * time.Second
	}
	if cfg.Batch <= 0 {
		cfg.Batch = 16
	}
	if cfg.RetryIdle <= 0 {
		cfg.RetryIdle = 30 * time.Second
	}
	if cfg.MaxDeliveries <= 0 {
		cfg.MaxDeliveries = 5
	}
	if cfg.DeadStream == "" {
		cfg.DeadStream = cfg.Stream + ":dead"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisBus{
		log: baseLog.With("component", "RedisEventBus", "stream", cfg.Stream),
		rdb: rdb,
		cfg: cfg,
		reg: newRegistry(),
	}, nil
}

func (b *RedisBus) Publish(ctx context.Context, ev DomainEvent) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis event bus not initialized")
	}
	raw, err := ev.Marshal()
	if err != nil {
		return err
	}
	args := &goredis.XAddArgs{
		Stream: b.cfg.Stream,
		Values: map[string]interface{}{
			"event_id": ev.EventID,
			"type":     ev.Type,
			"envelope": string(raw),
		},
	}
	if b.cfg.MaxLen > 0 {
		args.MaxLen = b.cfg.MaxLen
		args.Approx = true
	}
	return b.rdb.XAdd(ctx, args).Err()
}

func (b *RedisBus) Subscribe(eventType string, h Handler) func() {
	return b.reg.add(eventType, h)
}

func (b *RedisBus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}

// Ping reports whether the Redis server answers.
func (b *RedisBus) Ping(ctx context.Context) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis event bus not initialized")
	}
	return b.rdb.Ping(ctx).Err()
}

// Run consumes the stream for local subscribers until ctx ends. Entries are
// acked only after every handler succeeded. Entries left unacked for
// RetryIdle, by this or any other consumer, are claimed and redelivered; after
// MaxDeliveries attempts they are copied to DeadStream and acked.
func (b *RedisBus) Run(ctx context.Context) error {
	if err := b.rdb.XGroupCreateMkStream(ctx, b.cfg.Stream, b.cfg.Group, "$").Err(); err != nil &&
		!strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group: %w", err)
	}
	b.log.Info("event consumer started", "group", b.cfg.Group, "consumer", b.cfg.Consumer)

	// The cursor walks this consumer's pending backlog from "0" and switches
	// to ">" once the backlog read comes back empty.
	cursor := "0"
	lastSweep := time.Now()
	for {
		if ctx.Err() != nil {
			b.log.Info("event consumer stopped")
			return nil
		}
		if time.Since(lastSweep) >= b.cfg.RetryIdle {
			b.sweep(ctx)
			lastSweep = time.Now()
		}
		streams, err := b.rdb.XReadGroup(ctx, &goredis.XReadGroupArgs{
			Group:    b.cfg.Group,
			Consumer: b.cfg.Consumer,
			Streams:  []string{b.cfg.Stream, cursor},
			Count:    b.cfg.Batch,
			Block:    b.cfg.Block,
		}).Result()
		if err != nil {
			if errors.Is(err, goredis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				b.log.Info("event consumer stopped")
				return nil
			}
			b.log.Warn("xreadgroup failed", "error", err)
			if !sleepCtx(ctx, time.Second) {
				return nil
			}
			continue
		}

		last := ""
		for _, s := range streams {
			for _, msg := range s.Messages {
				last = msg.ID
				b.handle(ctx, msg)
			}
		}
		if cursor != ">" {
			if last == "" {
				cursor = ">"
			} else {
				cursor = last
			}
		}
	}
}

// sweep claims entries that stayed pending past RetryIdle and redelivers
// them, dead-lettering the ones that used up their deliveries.
func (b *RedisBus) sweep(ctx context.Context) {
	pending, err := b.rdb.XPendingExt(ctx, &goredis.XPendingExtArgs{
		Stream: b.cfg.Stream,
		Group:  b.cfg.Group,
		Idle:   b.cfg.RetryIdle,
		Start:  "-",
		End:    "+",
		Count:  b.cfg.Batch,
	}).Result()
	if err != nil {
		if ctx.Err() == nil && !errors.Is(err, goredis.Nil) {
			b.log.Warn("xpending failed", "error", err)
		}
		return
	}
	var retry []string
	for _, p := range pending {
		if p.RetryCount >= b.cfg.MaxDeliveries {
			b.deadLetter(ctx, p.ID, p.RetryCount)
			continue
		}
		retry = append(retry, p.ID)
	}
	if len(retry) == 0 {
		return
	}
	msgs, err := b.rdb.XClaim(ctx, &goredis.XClaimArgs{
		Stream:   b.cfg.Stream,
		Group:    b.cfg.Group,
		Consumer: b.cfg.Consumer,
		MinIdle:  b.cfg.RetryIdle,
		Messages: retry,
	}).Result()
	if err != nil {
		if ctx.Err() == nil {
			b.log.Warn("xclaim failed", "error", err)
		}
		return
	}
	for _, msg := range msgs {
		b.handle(ctx, msg)
	}
}

func (b *RedisBus) deadLetter(ctx context.Context, id string, deliveries int64) {
	msgs, err := b.rdb.XRangeN(ctx, b.cfg.Stream, id, id, 1).Result()
	if err != nil {
		b.log.Warn("load entry for dead letter failed", "entry_id", id, "error", err)
		return
	}
	for _, msg := range msgs {
		values := make(map[string]interface{}, len(msg.Values)+2)
		for k, v := range msg.Values {
			values[k] = v
		}
		values["entry_id"] = msg.ID
		values["deliveries"] = deliveries
		if err := b.rdb.XAdd(ctx, &goredis.XAddArgs{Stream: b.cfg.DeadStream, Values: values}).Err(); err != nil {
			b.log.Warn("dead letter append failed", "entry_id", id, "error", err)
			return
		}
	}
	// A trimmed entry has nothing left to keep; ack it either way.
	if err := b.rdb.XAck(ctx, b.cfg.Stream, b.cfg.Group, id).Err(); err != nil {
		b.log.Warn("xack failed", "entry_id", id, "error", err)
		return
	}
	b.log.Error("event moved to dead letter stream", "entry_id", id, "deliveries", deliveries, "dead_stream", b.cfg.DeadStream)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
