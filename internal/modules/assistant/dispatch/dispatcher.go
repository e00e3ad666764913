package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	repos "github.com/yungbote/maigie-backend/internal/data/repos"
	types "github.com/yungbote/maigie-backend/internal/domain"
	"github.com/yungbote/maigie-backend/internal/events"
	"github.com/yungbote/maigie-backend/internal/modules/assistant/action"
	"github.com/yungbote/maigie-backend/internal/platform/dbctx"
	"github.com/yungbote/maigie-backend/internal/platform/logger"
	"github.com/yungbote/maigie-backend/internal/services"
)

var (
	ErrNotDispatchable  = errors.New("request is not dispatchable")
	ErrMissingRequestID = errors.New("request id required")
)

type Status string

const (
	StatusCommitted            Status = "committed"
	StatusAwaitingConfirmation Status = "awaiting_confirmation"
	StatusDenied               Status = "denied"
	StatusRolledBack           Status = "rolled_back"
	// StatusAbandoned means the caller gave up before anything was written.
	StatusAbandoned Status = "abandoned"
)

type Reason string

const (
	ReasonNone             Reason = ""
	ReasonPermissionDenied Reason = "permission_denied"
	ReasonDomainError      Reason = "domain_error"
)

type Options struct {
	// Confirmed skips the ask-first policy.
	Confirmed bool
	Source    string
	SessionID string
	// BeginCommit is asked right before the transaction opens; false abandons
	// the dispatch with nothing written.
	BeginCommit func() bool
}

type Result struct {
	Status    Status
	Action    action.Type
	RequestID string

	EntityType string
	EntityID   string
	// DomainObject is the created object, or its stored JSON for a duplicate.
	DomainObject any
	Event        *events.DomainEvent
	// Published is false when the event was left to the outbox replayer.
	Published bool
	Duplicate bool
	Context   action.ActiveContext

	Reason       Reason
	Confirmation string
	// Cause is for logs only.
	Cause error
}

// Publisher is the part of the event bus the dispatcher uses.
type Publisher interface {
	Publish(ctx context.Context, ev events.DomainEvent) error
}

// OutboxRecorder stages each event in the dispatch transaction, so a commit
// never loses its event even when the process dies before publishing.
type OutboxRecorder interface {
	// Stage writes ev as pending, due once hold has passed.
	Stage(dbc dbctx.Context, ev events.DomainEvent, hold time.Duration) error
	// Delivered marks a staged event published.
	Delivered(ctx context.Context, eventID string) error
	// Retry makes a staged event due now.
	Retry(ctx context.Context, eventID string, cause error) error
}

type Config struct {
	AskFirst       AskFirst
	PublishTimeout time.Duration
}

type Dispatcher struct {
	log      *logger.Logger
	db       *gorm.DB
	records  repos.DispatchRecordRepo
	owner    *Ownership
	services services.Set
	bus      Publisher
	outbox   OutboxRecorder
	cfg      Config
	now      func() time.Time
}

func NewDispatcher(
	baseLog *logger.Logger,
	db *gorm.DB,
	records repos.DispatchRecordRepo,
	owner *Ownership,
	svcs services.Set,
	bus Publisher,
	outbox OutboxRecorder,
	cfg Config,
) *Dispatcher {
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 5 * time.Second
	}
	return &Dispatcher{
		log:      baseLog.With("component", "ActionDispatcher"),
		db:       db,
		records:  records,
		owner:    owner,
		services: svcs,
		bus:      bus,
		outbox:   outbox,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Dispatch executes req for userID at most once per requestID. A service's
// external call (Preparer) runs first on ctx. The domain change, the dispatch
// record and the staged event then commit together on a context that ignores
// cancellation of ctx; the event is published only after the commit.
// The error return is reserved for callers passing a request that must never
// reach the dispatcher.
func (d *Dispatcher) Dispatch(ctx context.Context, req action.Request, userID, requestID string, opts Options) (Result, error) {
	ctx, span := otel.Tracer("maigie/assistant").Start(ctx, "action.dispatch")
	defer span.End()
	span.SetAttributes(attribute.String("action.type", string(req.Type)))

	res := Result{Action: req.Type, RequestID: requestID}
	if !req.State.Dispatchable() {
		return res, fmt.Errorf("%w: state %s", ErrNotDispatchable, req.State)
	}
	if !req.Type.IsDomain() {
		return res, fmt.Errorf("%w: action %s", ErrNotDispatchable, req.Type)
	}
	if strings.TrimSpace(requestID) == "" {
		return res, ErrMissingRequestID
	}
	exec, ok := d.services.For(req.Type)
	if !ok {
		return res, fmt.Errorf("%w: no service for %s", ErrNotDispatchable, req.Type)
	}

	dctx := context.WithoutCancel(ctx)
	log := d.log.With("user_id", userID, "request_id", requestID, "action", string(req.Type))

	if userID == "" {
		log.Warn("dispatch denied", "error", "no user")
		res.Status, res.Reason, res.Cause = StatusDenied, ReasonPermissionDenied, ErrPermissionDenied
		return res, nil
	}

	prior, err := d.records.GetByRequest(dbctx.Context{Ctx: dctx}, userID, requestID)
	if err != nil {
		return d.rolledBack(res, log, fmt.Errorf("load dispatch record: %w", err)), nil
	}
	if prior != nil {
		log.Info("duplicate dispatch", "event_id", prior.EventID)
		return fromRecord(prior), nil
	}

	if err := d.owner.Check(dbctx.Context{Ctx: dctx}, userID, req.Payload); err != nil {
		if errors.Is(err, ErrPermissionDenied) {
			log.Warn("dispatch denied", "error", err)
			res.Status, res.Reason, res.Cause = StatusDenied, ReasonPermissionDenied, err
			return res, nil
		}
		return d.rolledBack(res, log, err), nil
	}

	if !opts.Confirmed {
		if q := d.cfg.AskFirst.Question(req, d.now()); q != "" {
			res.Status, res.Confirmation = StatusAwaitingConfirmation, q
			return res, nil
		}
	}

	var payload any = req.Payload
	if p, ok := exec.(services.Preparer); ok {
		v, err := p.Prepare(ctx, req.Payload, userID)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("dispatch abandoned during prepare", "error", err)
				res.Status, res.Cause = StatusAbandoned, err
				return res, nil
			}
			return d.rolledBack(res, log, err), nil
		}
		payload = services.Prepared{Payload: req.Payload, Value: v}
	}
	if opts.BeginCommit != nil && !opts.BeginCommit() {
		log.Info("dispatch abandoned before commit")
		res.Status = StatusAbandoned
		return res, nil
	}

	source := opts.Source
	if source == "" {
		source = events.SourceAI
	}
	var (
		out *services.Result
		ev  events.DomainEvent
	)
	txErr := d.db.WithContext(dctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: dctx, Tx: tx}
		r, err := exec.Execute(dbc, payload, userID)
		if err != nil {
			return err
		}
		objRaw, err := json.Marshal(r.Object)
		if err != nil {
			return fmt.Errorf("marshal domain object: %w", err)
		}
		e, err := events.New(req.Type.EventType(), userID, eventPayload(req.Type, objRaw), events.Metadata{
			Source:    source,
			RequestID: requestID,
			SessionID: opts.SessionID,
		}, d.now())
		if err != nil {
			return err
		}
		evRaw, err := e.Marshal()
		if err != nil {
			return err
		}
		rec := &types.DispatchRecord{
			ID:         uuid.NewString(),
			UserID:     userID,
			RequestID:  requestID,
			ActionType: string(req.Type),
			Status:     types.DispatchStatusCommitted,
			EntityType: r.EntityType,
			EntityID:   r.EntityID,
			Result:     objRaw,
			EventID:    e.EventID,
			EventType:  e.Type,
			Event:      evRaw,
		}
		if err := d.records.Create(dbc, rec); err != nil {
			return err
		}
		if d.outbox != nil {
			// Held past the publish timeout so the replayer leaves it to us.
			if err := d.outbox.Stage(dbc, e, 2*d.cfg.PublishTimeout); err != nil {
				return fmt.Errorf("stage event: %w", err)
			}
		}
		out, ev = r, e
		return nil
	})
	if txErr != nil {
		if isUniqueViolation(txErr) {
			winner, err := d.records.GetByRequest(dbctx.Context{Ctx: dctx}, userID, requestID)
			if err == nil && winner != nil {
				log.Info("lost dispatch race, returning committed result", "event_id", winner.EventID)
				return fromRecord(winner), nil
			}
		}
		return d.rolledBack(res, log, txErr), nil
	}

	span.SetAttributes(attribute.String("event.id", ev.EventID))
	log.Info("dispatch committed", "entity_type", out.EntityType, "entity_id", out.EntityID, "event_id", ev.EventID)

	res.Status = StatusCommitted
	res.EntityType, res.EntityID = out.EntityType, out.EntityID
	res.DomainObject = out.Object
	res.Context = out.Context
	res.Event = &ev
	res.Published = d.publish(dctx, ev, log)
	return res, nil
}

func (d *Dispatcher) rolledBack(res Result, log *logger.Logger, err error) Result {
	log.Error("dispatch rolled back", "error", err)
	res.Status, res.Reason, res.Cause = StatusRolledBack, ReasonDomainError, err
	return res
}

// publish never undoes the commit. The staged outbox row is marked delivered
// on success and made due for replay on failure; if neither update lands, the
// replayer picks the row up once its hold expires.
func (d *Dispatcher) publish(ctx context.Context, ev events.DomainEvent, log *logger.Logger) bool {
	pctx, cancel := context.WithTimeout(ctx, d.cfg.PublishTimeout)
	defer cancel()
	err := d.bus.Publish(pctx, ev)
	if err == nil {
		if d.outbox != nil {
			if derr := d.outbox.Delivered(ctx, ev.EventID); derr != nil {
				log.Warn("outbox mark delivered failed, event may be replayed", "event_id", ev.EventID, "error", derr)
			}
		}
		return true
	}
	log.Error("event publish failed", "event_id", ev.EventID, "event_type", ev.Type, "error", err)
	if d.outbox != nil {
		if rerr := d.outbox.Retry(ctx, ev.EventID, err); rerr != nil {
			log.Warn("outbox retry update failed, replay waits for the hold", "event_id", ev.EventID, "error", rerr)
		}
	}
	return false
}

// eventPayload flattens the domain object under status and action.
func eventPayload(t action.Type, obj []byte) map[string]json.RawMessage {
	out := map[string]json.RawMessage{}
	if len(obj) > 0 && obj[0] == '{' {
		_ = json.Unmarshal(obj, &out)
	}
	out["status"] = json.RawMessage(`"success"`)
	out["action"], _ = json.Marshal(string(t))
	return out
}

func fromRecord(rec *types.DispatchRecord) Result {
	res := Result{
		Status:       StatusCommitted,
		Action:       action.Type(rec.ActionType),
		RequestID:    rec.RequestID,
		EntityType:   rec.EntityType,
		EntityID:     rec.EntityID,
		DomainObject: json.RawMessage(rec.Result),
		Duplicate:    true,
	}
	if ev, err := events.Unmarshal(rec.Event); err == nil {
		res.Event = &ev
	}
	return res
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && strings.TrimSpace(pgErr.Code) == "23505" {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "duplicate key")
}
