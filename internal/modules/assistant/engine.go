package assistant

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	repos "github.com/yungbote/maigie-backend/internal/data/repos"
	types "github.com/yungbote/maigie-backend/internal/domain"
	"github.com/yungbote/maigie-backend/internal/modules/assistant/action"
	"github.com/yungbote/maigie-backend/internal/modules/assistant/dispatch"
	"github.com/yungbote/maigie-backend/internal/modules/assistant/gateway"
	"github.com/yungbote/maigie-backend/internal/modules/assistant/intent"
	"github.com/yungbote/maigie-backend/internal/modules/assistant/prompts"
	"github.com/yungbote/maigie-backend/internal/modules/assistant/session"
	"github.com/yungbote/maigie-backend/internal/modules/assistant/validate"
	"github.com/yungbote/maigie-backend/internal/platform/dbctx"
	"github.com/yungbote/maigie-backend/internal/platform/logger"
)

// Request is one inbound utterance.
type Request struct {
	UserID  string
	Message string
	// Context is what the client says the user is looking at; it overlays the
	// session's active context.
	Context action.ActiveContext
	// RequestID makes the turn's dispatch idempotent across client retries.
	// The turn id is used when empty.
	RequestID string
	// Arrival, when set, is the ticket taken from the session as the message
	// was received.
	Arrival session.Arrival
}

type Classifier interface {
	Classify(utterance string, ac action.ActiveContext) intent.Result
}

type Dispatcher interface {
	Dispatch(ctx context.Context, req action.Request, userID, requestID string, opts dispatch.Options) (dispatch.Result, error)
}

type Config struct {
	RetrievalK int
	// HistoryTurns bounds how many earlier turns go into the prompt.
	HistoryTurns int
}

type Engine struct {
	log        *logger.Logger
	classifier Classifier
	composer   *prompts.Composer
	validator  *validate.Validator
	llm        gateway.LLM
	retriever  gateway.Retriever
	dispatcher Dispatcher
	audits     repos.ActionAuditRepo
	cfg        Config
	now        func() time.Time
}

func NewEngine(
	baseLog *logger.Logger,
	classifier Classifier,
	composer *prompts.Composer,
	validator *validate.Validator,
	llm gateway.LLM,
	retriever gateway.Retriever,
	dispatcher Dispatcher,
	audits repos.ActionAuditRepo,
	cfg Config,
) *Engine {
	if cfg.RetrievalK <= 0 {
		cfg.RetrievalK = 5
	}
	if cfg.HistoryTurns <= 0 {
		cfg.HistoryTurns = 6
	}
	if retriever == nil {
		retriever = gateway.NopRetriever{}
	}
	return &Engine{
		log:        baseLog.With("component", "AssistantEngine"),
		classifier: classifier,
		composer:   composer,
		validator:  validator,
		llm:        llm,
		retriever:  retriever,
		dispatcher: dispatcher,
		audits:     audits,
		cfg:        cfg,
		now:        time.Now,
	}
}

// turnState carries one turn through the pipeline.
type turnState struct {
	sess   *session.Session
	turn   *session.Turn
	ctx    context.Context
	in     Request
	log    *logger.Logger
	reqID  string
	path   intent.Path
	result Reply
}

// HandleTurn runs one utterance through the pipeline. onDelta, when set,
// receives the model's reply text as it streams; the returned Reply is
// authoritative. A turn superseded by a newer message returns StatusStale.
// The error is non-nil only when the session is gone or ctx ended before the
// turn could start.
func (e *Engine) HandleTurn(ctx context.Context, sess *session.Session, in Request, onDelta func(string)) (Reply, error) {
	arrival := in.Arrival
	if arrival == 0 {
		arrival = sess.Arrive()
	}
	turn, tctx, err := sess.AppendArrived(ctx, arrival, in.Message)
	if errors.Is(err, session.ErrTurnSuperseded) {
		return Reply{Status: StatusStale, SessionID: sess.ID, TurnID: turn.ID}, nil
	}
	if err != nil {
		return Reply{}, err
	}

	tctx, span := otel.Tracer("maigie/assistant").Start(tctx, "assistant.turn")
	defer span.End()

	reqID := strings.TrimSpace(in.RequestID)
	if reqID == "" {
		reqID = turn.ID
	}
	st := &turnState{
		sess:  sess,
		turn:  turn,
		ctx:   tctx,
		in:    in,
		reqID: reqID,
		log:   e.log.With("session_id", sess.ID, "turn_id", turn.ID, "user_id", in.UserID),
		result: Reply{
			SessionID: sess.ID,
			TurnID:    turn.ID,
		},
	}
	outcome := e.run(st, onDelta)
	span.SetAttributes(attribute.String("turn.path", string(st.path)), attribute.String("turn.outcome", string(outcome)))

	recorded := sess.ResolveTurn(turn.ID, outcome, st.result.Reply)
	if recorded == session.OutcomeStale {
		return Reply{Status: StatusStale, SessionID: sess.ID, TurnID: turn.ID}, nil
	}
	return st.result, nil
}

func (e *Engine) run(st *turnState, onDelta func(string)) session.Outcome {
	if st.in.Context != (action.ActiveContext{}) {
		st.sess.UpdateContext(st.in.Context)
	}

	if pc := st.sess.TakeConfirmation(); pc != nil {
		switch parseConfirmation(st.in.Message) {
		case answerYes:
			st.reqID = pc.RequestID
			return e.dispatch(st, pc.Request, "", true)
		case answerNo:
			return st.reply(StatusCancelled, msgCancelled, session.OutcomeAnswered)
		}
		// Anything else drops the pending action and is handled as a new request.
	}

	ac := st.sess.ActiveContext()
	cls := e.classifier.Classify(st.in.Message, ac)
	st.sess.SetIntent(st.turn.ID, cls.Path)
	st.path = cls.Path
	st.log.Debug("classified", "path", string(cls.Path), "rule", cls.Rule, "confidence", cls.Confidence)

	if cls.Path == intent.PathClarify {
		q := clarifyForClassification(cls)
		st.sess.SetClarification(&session.PendingClarification{TurnID: st.turn.ID, Question: q, Candidate: cls.Candidate})
		return st.reply(StatusClarify, q, session.OutcomeClarified)
	}

	// A reply to an earlier clarification continues the action it was about.
	pending := st.sess.Clarification()
	route := cls
	if pending != nil && pending.Candidate != "" && cls.Path == intent.PathRetrieval {
		route = intent.Result{Path: intent.PathAction, Candidate: pending.Candidate, Rule: "pending_clarification"}
		st.path = route.Path
	}
	allowed := route.Allowed()

	if !st.sess.AllowLLMCall() {
		st.log.Warn("llm budget exhausted")
		return st.reply(StatusRateLimited, msgRateLimited, session.OutcomeFailed)
	}

	var docs []gateway.Document
	if route.Path == intent.PathRetrieval {
		var err error
		docs, err = e.retriever.Search(st.ctx, st.in.Message, gateway.Scope{
			UserID:   st.in.UserID,
			CourseID: ac.CourseID,
			TopicID:  ac.TopicID,
		}, e.cfg.RetrievalK)
		if err != nil {
			if st.ctx.Err() != nil {
				return session.OutcomeStale
			}
			st.log.Warn("retrieval failed, answering without documents", "error", err)
			docs = nil
		}
	}

	in := prompts.ComposeInput{
		Utterance: st.in.Message,
		Context:   ac,
		Now:       e.now(),
		History:   e.history(st),
		Retrieval: docs,
		Allowed:   allowed,
	}
	if pending != nil {
		in.Pending = pending.Question
	}
	bundle, err := e.composer.Compose(route.Path, in, route.Candidate)
	if err != nil {
		st.log.Error("compose prompt", "error", err)
		return st.reply(StatusError, msgUnavailable, session.OutcomeFailed)
	}

	raw, err := e.callModel(st, bundle, onDelta)
	if err != nil {
		if st.ctx.Err() != nil {
			return session.OutcomeStale
		}
		st.log.Error("model call failed", "error", err)
		return st.reply(StatusError, msgUnavailable, session.OutcomeFailed)
	}
	if st.ctx.Err() != nil {
		return session.OutcomeStale
	}
	if pending != nil {
		st.sess.SetClarification(nil)
	}

	vr := e.validator.Validate(raw, allowed)
	e.audit(st, vr, raw)
	if !vr.Accepted() && vr.Reason == validate.ReasonNoJSONBlock && route.Path != intent.PathAction {
		// Plain prose is a complete answer off the action path.
		return st.reply(StatusAnswered, orDefault(validate.ReplyText(raw), msgDefaultReply), session.OutcomeAnswered)
	}
	if !vr.Accepted() {
		st.log.Info("model output rejected", "reason", string(vr.Reason), "field", vr.Field)
		q := clarifyForRejection(vr)
		st.sess.SetClarification(&session.PendingClarification{TurnID: st.turn.ID, Question: q, Candidate: route.Candidate})
		return st.reply(StatusClarify, q, session.OutcomeClarified)
	}

	lead := validate.ReplyText(raw)
	switch p := vr.Request.Payload.(type) {
	case action.NonePayload:
		return st.reply(StatusAnswered, orDefault(lead, orDefault(strings.TrimSpace(p.Reply), msgDefaultReply)), session.OutcomeAnswered)
	case action.ClarifyPayload:
		q := strings.TrimSpace(p.Question)
		st.sess.SetClarification(&session.PendingClarification{TurnID: st.turn.ID, Question: q, Candidate: route.Candidate})
		return st.reply(StatusClarify, q, session.OutcomeClarified)
	}
	return e.dispatch(st, vr.Request, lead, false)
}

func (e *Engine) callModel(st *turnState, b prompts.Bundle, onDelta func(string)) (string, error) {
	if onDelta == nil {
		return e.llm.Call(st.ctx, b.System, b.Task, string(b.Name))
	}
	f := &replyFilter{emit: onDelta}
	raw, err := e.llm.CallStream(st.ctx, b.System, b.Task, string(b.Name), f.write)
	if err == nil {
		f.flush()
	}
	return raw, err
}

func (e *Engine) dispatch(st *turnState, req action.Request, lead string, confirmed bool) session.Outcome {
	if st.ctx.Err() != nil {
		return session.OutcomeStale
	}
	// The turn stays cancellable while a service calls out; only the commit
	// itself is shielded from a newer message.
	began := false
	res, err := e.dispatcher.Dispatch(st.ctx, req, st.in.UserID, st.reqID, dispatch.Options{
		Confirmed: confirmed,
		SessionID: st.sess.ID,
		BeginCommit: func() bool {
			began = st.sess.BeginDispatch(st.turn.ID)
			return began
		},
	})
	if began {
		st.sess.EndDispatch(st.turn.ID)
	}
	st.result.Action = req.Type

	if err != nil {
		st.log.Error("dispatch refused request", "request_id", st.reqID, "error", err)
		return st.reply(StatusError, msgDomainError, session.OutcomeFailed)
	}

	switch res.Status {
	case dispatch.StatusCommitted:
		if res.Context != (action.ActiveContext{}) {
			st.sess.UpdateContext(res.Context)
		}
		st.result.Event = envelope(res)
		st.result.Duplicate = res.Duplicate
		loc := time.UTC
		if tz := st.sess.ActiveContext().Timezone; tz != "" {
			if l, err := time.LoadLocation(tz); err == nil {
				loc = l
			}
		}
		return st.reply(StatusSuccess, successMessage(req, res, lead, loc), session.OutcomeDispatched)
	case dispatch.StatusAwaitingConfirmation:
		st.sess.SetConfirmation(&session.PendingConfirmation{
			Request:   req,
			RequestID: st.reqID,
			Question:  res.Confirmation,
			CreatedAt: e.now(),
		})
		return st.reply(StatusAwaitingConfirmation, res.Confirmation, session.OutcomeAwaitingConfirmation)
	case dispatch.StatusDenied:
		return st.reply(StatusDenied, failureMessage(res), session.OutcomeDenied)
	case dispatch.StatusAbandoned:
		return session.OutcomeStale
	default:
		return st.reply(StatusError, failureMessage(res), session.OutcomeFailed)
	}
}

func (e *Engine) history(st *turnState) []prompts.HistoryTurn {
	turns := st.sess.RecentTurns(st.turn.ID)
	if over := len(turns) - e.cfg.HistoryTurns; over > 0 {
		turns = turns[over:]
	}
	out := make([]prompts.HistoryTurn, 0, 2*len(turns))
	for _, t := range turns {
		if t.Outcome == session.OutcomeStale {
			continue
		}
		out = append(out, prompts.HistoryTurn{Role: "User", Text: t.RawText})
		if t.Reply != "" {
			out = append(out, prompts.HistoryTurn{Role: "Assistant", Text: t.Reply})
		}
	}
	return out
}

// audit stores the verdict with the raw output. Failures are logged only.
func (e *Engine) audit(st *turnState, vr validate.Result, raw string) {
	if e.audits == nil {
		return
	}
	detail := vr.Detail
	if vr.Field != "" {
		detail = vr.Field + ": " + detail
	}
	row := &types.ActionAudit{
		UserID:         st.in.UserID,
		SessionID:      st.sess.ID,
		TurnID:         st.turn.ID,
		RequestID:      st.reqID,
		Path:           string(st.path),
		ActionType:     string(vr.Request.Type),
		State:          string(vr.State),
		Reason:         string(vr.Reason),
		Detail:         detail,
		RawModelOutput: raw,
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(st.ctx), 5*time.Second)
	defer cancel()
	if err := e.audits.Create(dbctx.Context{Ctx: ctx}, row); err != nil {
		st.log.Warn("write action audit", "error", err)
	}
}

func (st *turnState) reply(status Status, text string, outcome session.Outcome) session.Outcome {
	st.result.Status = status
	st.result.Reply = text
	return outcome
}
