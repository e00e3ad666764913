package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/yungbote/maigie-backend/internal/modules/assistant/action"
	"github.com/yungbote/maigie-backend/internal/modules/assistant/intent"
)

var (
	ErrSessionClosed  = errors.New("session closed")
	ErrTurnSuperseded = errors.New("turn superseded by a newer message")
	ErrForbidden      = errors.New("session belongs to another user")
)

// PendingClarification is the question the assistant is waiting on.
type PendingClarification struct {
	TurnID    string
	Question  string
	Candidate action.Type
}

// PendingConfirmation holds an ask-first action until the user answers.
type PendingConfirmation struct {
	Request   action.Request
	RequestID string
	Question  string
	CreatedAt time.Time
}

type inflight struct {
	turnID          string
	ctx             context.Context
	cancel          context.CancelFunc
	done            chan struct{}
	dispatching     bool
	cancelRequested bool
}

// Session is owned by exactly one connection handler (or one user's HTTP
// requests) and is never shared across users.
type Session struct {
	ID     string
	UserID string

	maxTurns int
	limiter  *rate.Limiter
	now      func() time.Time

	mu           sync.Mutex
	active       action.ActiveContext
	turns        []Turn
	clarify      *PendingClarification
	confirm      *PendingConfirmation
	current      *inflight
	arrivals     uint64
	lastActivity time.Time
	closed       bool
}

func newSession(id, userID string, maxTurns int, limiter *rate.Limiter, now func() time.Time) *Session {
	if id == "" {
		id = uuid.NewString()
	}
	if maxTurns <= 0 {
		maxTurns = 20
	}
	if now == nil {
		now = time.Now
	}
	return &Session{
		ID:           id,
		UserID:       userID,
		maxTurns:     maxTurns,
		limiter:      limiter,
		now:          now,
		lastActivity: now(),
	}
}

// Arrival is a message's place in the session's arrival order.
type Arrival uint64

// Arrive hands out the next arrival ticket and cancels the in-flight turn
// (deferred while it is dispatching). Callers that run turns concurrently take
// the ticket in the order messages were received and pass it to
// AppendArrived. A closed session returns 0.
func (s *Session) Arrive() Arrival {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0
	}
	s.arrivals++
	if s.current != nil {
		s.cancelLocked(s.current)
	}
	return Arrival(s.arrivals)
}

// AppendTurn records an utterance arriving now and returns the context the
// turn's pipeline must run under.
func (s *Session) AppendTurn(ctx context.Context, text string) (*Turn, context.Context, error) {
	return s.AppendArrived(ctx, s.Arrive(), text)
}

// AppendArrived records the utterance that took ticket a. An in-flight turn is
// cancelled first (deferred while it is dispatching) and AppendArrived waits
// until that turn has resolved. When a newer message has arrived, before or
// while this one waits, the turn is recorded as stale and ErrTurnSuperseded is
// returned.
func (s *Session) AppendArrived(ctx context.Context, a Arrival, text string) (*Turn, context.Context, error) {
	s.mu.Lock()
	if s.closed || a == 0 {
		s.mu.Unlock()
		return nil, nil, ErrSessionClosed
	}
	seq := uint64(a)

	for s.current != nil && seq == s.arrivals {
		prev := s.current
		s.cancelLocked(prev)
		done := prev.done
		s.mu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return nil, nil, ErrSessionClosed
		}
	}

	t := Turn{
		ID:        uuid.NewString(),
		SessionID: s.ID,
		RawText:   text,
		Timestamp: s.now().UTC(),
		Outcome:   OutcomePending,
		arrival:   a,
	}
	if seq != s.arrivals {
		t.Outcome = OutcomeStale
		s.appendLocked(t)
		s.mu.Unlock()
		return &t, nil, ErrTurnSuperseded
	}

	turnCtx, cancel := context.WithCancel(ctx)
	s.current = &inflight{turnID: t.ID, ctx: turnCtx, cancel: cancel, done: make(chan struct{})}
	s.appendLocked(t)
	s.lastActivity = s.now()
	s.mu.Unlock()
	return &t, turnCtx, nil
}

// appendLocked keeps the log in arrival order; a stale turn can be recorded
// after a newer one.
func (s *Session) appendLocked(t Turn) {
	i := len(s.turns)
	for i > 0 && s.turns[i-1].arrival > t.arrival {
		i--
	}
	s.turns = append(s.turns, Turn{})
	copy(s.turns[i+1:], s.turns[i:])
	s.turns[i] = t
	if over := len(s.turns) - s.maxTurns; over > 0 {
		s.turns = append([]Turn(nil), s.turns[over:]...)
	}
}

func (s *Session) cancelLocked(f *inflight) {
	if f.dispatching {
		f.cancelRequested = true
		return
	}
	f.cancel()
}

// SetIntent records the classified path on a pending turn.
func (s *Session) SetIntent(turnID string, p intent.Path) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.turns {
		if s.turns[i].ID == turnID && !s.turns[i].Resolved() {
			path := p
			s.turns[i].ResolvedIntent = &path
			return
		}
	}
}

// ResolveTurn records the outcome and releases the next waiting turn. A turn
// whose context was cancelled is recorded as stale unless it dispatched.
// Resolving an already resolved turn is a no-op; the recorded outcome is returned.
func (s *Session) ResolveTurn(turnID string, outcome Outcome, reply string) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	recorded := outcome
	if f := s.current; f != nil && f.turnID == turnID {
		if f.ctx.Err() != nil && outcome != OutcomeDispatched && outcome != OutcomeAwaitingConfirmation {
			recorded = OutcomeStale
			reply = ""
		}
		f.cancel()
		close(f.done)
		s.current = nil
	}
	for i := range s.turns {
		if s.turns[i].ID != turnID {
			continue
		}
		if s.turns[i].Resolved() {
			return s.turns[i].Outcome
		}
		s.turns[i].Outcome = recorded
		s.turns[i].Reply = reply
		break
	}
	s.lastActivity = s.now()
	return recorded
}

// Cancel cancels the in-flight turn, deferred until its dispatch finishes.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		s.cancelLocked(s.current)
	}
}

// BeginDispatch marks the turn as inside the dispatch boundary. It returns
// false when the turn is no longer current or was already cancelled, in which
// case nothing may be dispatched.
func (s *Session) BeginDispatch(turnID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.current
	if f == nil || f.turnID != turnID || f.ctx.Err() != nil || f.cancelRequested {
		return false
	}
	f.dispatching = true
	return true
}

// EndDispatch closes the dispatch boundary and applies a deferred cancel.
func (s *Session) EndDispatch(turnID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.current
	if f == nil || f.turnID != turnID {
		return
	}
	f.dispatching = false
	if f.cancelRequested {
		f.cancel()
	}
}

// Close tears the session down. Recent turns and pending state are dropped.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.current != nil {
		s.cancelLocked(s.current)
	}
	s.turns = nil
	s.clarify = nil
	s.confirm = nil
}

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// AllowLLMCall spends one unit of the user's model call budget.
func (s *Session) AllowLLMCall() bool {
	if s.limiter == nil {
		return true
	}
	return s.limiter.Allow()
}

func (s *Session) ActiveContext() action.ActiveContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// UpdateContext overlays the non-empty fields of c.
func (s *Session) UpdateContext(c action.ActiveContext) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = s.active.Merge(c)
}

// RecentTurns returns resolved turns, oldest first, excluding turnID.
func (s *Session) RecentTurns(excludeID string) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, 0, len(s.turns))
	for _, t := range s.turns {
		if t.ID == excludeID || !t.Resolved() {
			continue
		}
		out = append(out, t)
	}
	return out
}

func (s *Session) TurnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}

func (s *Session) SetClarification(c *PendingClarification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clarify = c
}

func (s *Session) Clarification() *PendingClarification {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clarify == nil {
		return nil
	}
	c := *s.clarify
	return &c
}

func (s *Session) SetConfirmation(c *PendingConfirmation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.confirm = c
}

// TakeConfirmation returns and clears the pending confirmation.
func (s *Session) TakeConfirmation() *PendingConfirmation {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.confirm
	s.confirm = nil
	return c
}

func (s *Session) HasConfirmation() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.confirm != nil
}

// idleSince reports the last activity, or zero while a turn is in flight.
func (s *Session) idleSince() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		return time.Time{}, false
	}
	return s.lastActivity, true
}
