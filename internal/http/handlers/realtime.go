package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"

	"github.com/yungbote/maigie-backend/internal/modules/assistant"
	"github.com/yungbote/maigie-backend/internal/platform/ctxutil"
	"github.com/yungbote/maigie-backend/internal/platform/logger"
)

const (
	frameSession = "session"
	frameDelta   = "turn.delta"
	frameReply   = "turn.reply"
	frameStale   = "turn.stale"
	frameError   = "error"

	wsWriteTimeout = 10 * time.Second
)

type inboundFrame struct {
	Type      string       `json:"type,omitempty"`
	Message   string       `json:"message"`
	Context   *turnContext `json:"context,omitempty"`
	RequestID string       `json:"request_id,omitempty"`
}

type outboundFrame struct {
	Type      string           `json:"type"`
	Seq       uint64           `json:"seq,omitempty"`
	SessionID string           `json:"session_id,omitempty"`
	TurnID    string           `json:"turn_id,omitempty"`
	Delta     string           `json:"delta,omitempty"`
	Reply     *assistant.Reply `json:"reply,omitempty"`
	Code      string           `json:"code,omitempty"`
}

// RealtimeHandler serves the WebSocket chat. Every connection owns exactly one
// session, destroyed on disconnect.
type RealtimeHandler struct {
	log            *logger.Logger
	engine         TurnRunner
	sessions       SessionStore
	originPatterns []string

	root context.Context
	stop context.CancelFunc
}

func NewRealtimeHandler(log *logger.Logger, engine TurnRunner, sessions SessionStore, originPatterns []string) *RealtimeHandler {
	root, stop := context.WithCancel(context.Background())
	return &RealtimeHandler{
		log:            log.With("handler", "RealtimeHandler"),
		engine:         engine,
		sessions:       sessions,
		originPatterns: originPatterns,
		root:           root,
		stop:           stop,
	}
}

// Close ends every open connection. http.Server.Shutdown does not track
// hijacked connections, so the server calls this on shutdown.
func (h *RealtimeHandler) Close() { h.stop() }

// GET /api/assistant/ws
func (h *RealtimeHandler) Stream(c *gin.Context) {
	userID := ctxutil.UserID(c.Request.Context())
	if userID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": gin.H{"message": "not authenticated", "code": "unauthorized"}})
		return
	}

	ws, err := websocket.Accept(newUpgradeWriter(c.Writer), c.Request, &websocket.AcceptOptions{OriginPatterns: h.originPatterns})
	if err != nil {
		h.log.Warn("websocket accept failed", "error", err, "user_id", userID)
		return
	}
	ws.SetReadLimit(64 << 10)

	sess := h.sessions.Open(userID)
	log := h.log.With("user_id", userID, "session_id", sess.ID)
	log.Info("websocket session opened")

	// The read loop owns connection lifetime; Close ends it from outside.
	ctx, cancel := context.WithCancel(context.WithoutCancel(c.Request.Context()))
	unlink := context.AfterFunc(h.root, cancel)
	var wg sync.WaitGroup
	defer func() {
		unlink()
		cancel()
		wg.Wait()
		h.sessions.Close(sess.ID)
		_ = ws.Close(websocket.StatusNormalClosure, "session ended")
		log.Info("websocket session closed")
	}()

	send := func(f outboundFrame) {
		b, err := json.Marshal(f)
		if err != nil {
			return
		}
		wctx, wcancel := context.WithTimeout(ctx, wsWriteTimeout)
		defer wcancel()
		if err := ws.Write(wctx, websocket.MessageText, b); err != nil && ctx.Err() == nil {
			log.Debug("websocket write failed", "error", err)
		}
	}
	send(outboundFrame{Type: frameSession, SessionID: sess.ID})

	var seq uint64
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
				log.Debug("websocket read ended", "error", err)
			}
			return
		}
		seq++
		in, ok := parseInbound(data)
		if !ok {
			send(outboundFrame{Type: frameError, Seq: seq, Code: "invalid_frame"})
			continue
		}
		// The ticket is taken here, in read order, so the newest frame wins no
		// matter how the turn goroutines get scheduled.
		req := assistant.Request{UserID: userID, Message: in.Message, RequestID: in.RequestID, Arrival: sess.Arrive()}
		if in.Context != nil {
			req.Context = in.Context.ActiveContext
		}

		// Turns run concurrently so a newer frame can supersede an in-flight one;
		// the session serializes them.
		wg.Add(1)
		go func(n uint64, req assistant.Request) {
			defer wg.Done()
			reply, err := h.engine.HandleTurn(ctx, sess, req, func(d string) {
				send(outboundFrame{Type: frameDelta, Seq: n, Delta: d})
			})
			switch {
			case err != nil:
				if ctx.Err() == nil {
					log.Warn("turn failed", "error", err)
					send(outboundFrame{Type: frameError, Seq: n, Code: "turn_failed"})
				}
			case reply.Status == assistant.StatusStale:
				send(outboundFrame{Type: frameStale, Seq: n, TurnID: reply.TurnID})
			default:
				send(outboundFrame{Type: frameReply, Seq: n, TurnID: reply.TurnID, Reply: &reply})
			}
		}(seq, req)
	}
}

// upgradeWriter sends the 101 through the net/http writer under gin and
// hijacks through gin. Given gin's writer directly, websocket.Accept flushes
// the header with WriteHeaderNow and gin then refuses the hijack.
type upgradeWriter struct {
	http.ResponseWriter
	gin gin.ResponseWriter
}

func newUpgradeWriter(w gin.ResponseWriter) http.ResponseWriter {
	u, ok := w.(interface{ Unwrap() http.ResponseWriter })
	if !ok {
		return w
	}
	return upgradeWriter{ResponseWriter: u.Unwrap(), gin: w}
}

func (w upgradeWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return w.gin.Hijack()
}

// parseInbound accepts a JSON frame or a bare text message.
func parseInbound(data []byte) (inboundFrame, bool) {
	var in inboundFrame
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		if err := json.Unmarshal(data, &in); err != nil {
			return in, false
		}
	} else {
		in.Message = trimmed
	}
	in.Message = strings.TrimSpace(in.Message)
	if in.Message == "" || len(in.Message) > maxMessageBytes {
		return in, false
	}
	return in, true
}
