package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/google/go-cmp/cmp"

	"github.com/yungbote/maigie-backend/internal/modules/assistant"
	"github.com/yungbote/maigie-backend/internal/modules/assistant/action"
	"github.com/yungbote/maigie-backend/internal/modules/assistant/session"
	"github.com/yungbote/maigie-backend/internal/platform/ctxutil"
	"github.com/yungbote/maigie-backend/internal/platform/logger"
)

type fakeRunner struct {
	mu  sync.Mutex
	got []assistant.Request
}

func (f *fakeRunner) HandleTurn(_ context.Context, sess *session.Session, in assistant.Request, onDelta func(string)) (assistant.Reply, error) {
	f.mu.Lock()
	f.got = append(f.got, in)
	f.mu.Unlock()
	if in.Message == "old" {
		return assistant.Reply{Status: assistant.StatusStale, SessionID: sess.ID, TurnID: "t-old"}, nil
	}
	if onDelta != nil {
		onDelta("echo: ")
		onDelta(in.Message)
	}
	return assistant.Reply{Reply: "echo: " + in.Message, Status: assistant.StatusAnswered, SessionID: sess.ID, TurnID: "t1"}, nil
}

func (f *fakeRunner) requests() []assistant.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]assistant.Request(nil), f.got...)
}

type fakeSTT struct {
	text string
	err  error
}

func (s fakeSTT) Transcribe(context.Context, []byte, string) (string, error) { return s.text, s.err }

// asUser stands in for the auth middleware.
func asUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if u := c.GetHeader("X-Test-User"); u != "" {
			c.Request = c.Request.WithContext(ctxutil.WithRequestData(c.Request.Context(), &ctxutil.RequestData{UserID: u}))
		}
		c.Next()
	}
}

func newRouter(h *AssistantHandler, rt *RealtimeHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(asUser())
	if h != nil {
		r.POST("/chat", h.Chat)
		r.POST("/voice", h.Voice)
	}
	if rt != nil {
		r.GET("/ws", rt.Stream)
	}
	return r
}

func postJSON(r http.Handler, path, user string, body any, headers map[string]string) *httptest.ResponseRecorder {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test-User", user)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestChatRunsTurn(t *testing.T) {
	runner := &fakeRunner{}
	mgr := session.NewManager(logger.Nop(), session.Config{})
	r := newRouter(NewAssistantHandler(logger.Nop(), runner, mgr, nil), nil)

	rec := postJSON(r, "/chat", "u1", map[string]any{
		"message":    "  recommend resources for this topic ",
		"context":    map[string]string{"topicId": "T1", "course_id": "C1"},
		"session_id": "s-1",
		"request_id": "body-id",
	}, map[string]string{"Idempotency-Key": "idem-1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status: want=200 got=%d body=%s", rec.Code, rec.Body.String())
	}
	var reply assistant.Reply
	if err := json.Unmarshal(rec.Body.Bytes(), &reply); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if reply.SessionID != "s-1" || reply.Status != assistant.StatusAnswered {
		t.Fatalf("reply: got %+v", reply)
	}

	got := runner.requests()
	want := []assistant.Request{{
		UserID:    "u1",
		Message:   "recommend resources for this topic",
		Context:   action.ActiveContext{CourseID: "C1", TopicID: "T1"},
		RequestID: "idem-1",
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("turn request (-want +got):\n%s", diff)
	}

	// Same session id from another user is refused.
	rec = postJSON(r, "/chat", "u2", map[string]any{"message": "hi", "session_id": "s-1"}, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("cross-user session: want=403 got=%d", rec.Code)
	}
}

func TestChatRejectsBadInput(t *testing.T) {
	runner := &fakeRunner{}
	r := newRouter(NewAssistantHandler(logger.Nop(), runner, session.NewManager(logger.Nop(), session.Config{}), nil), nil)

	cases := []struct {
		name string
		body any
		code string
	}{
		{"missing message", map[string]any{"session_id": "s"}, "invalid_request"},
		{"blank message", map[string]any{"message": "   "}, "empty_message"},
		{"too long", map[string]any{"message": strings.Repeat("a", 4001)}, "invalid_request"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postJSON(r, "/chat", "u1", tc.body, nil)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status: want=400 got=%d", rec.Code)
			}
			var env struct {
				Error struct {
					Code    string `json:"code"`
					Message string `json:"message"`
				} `json:"error"`
			}
			_ = json.Unmarshal(rec.Body.Bytes(), &env)
			if env.Error.Code != tc.code {
				t.Fatalf("code: want=%s got=%s", tc.code, env.Error.Code)
			}
			if env.Error.Message != http.StatusText(http.StatusBadRequest) {
				t.Fatalf("message leaks detail: %q", env.Error.Message)
			}
		})
	}
	if n := len(runner.requests()); n != 0 {
		t.Fatalf("turns: want=0 got=%d", n)
	}
}

func voiceRequest(t *testing.T, user string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("audio", "clip.webm")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	_, _ = fw.Write([]byte("fake-audio"))
	_ = mw.WriteField("session_id", "voice-1")
	_ = mw.WriteField("context", `{"courseId":"C9"}`)
	_ = mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/voice", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-Test-User", user)
	return req
}

func TestVoice(t *testing.T) {
	cases := []struct {
		name    string
		stt     Transcriber
		status  int
		message string
	}{
		{"not configured", nil, http.StatusServiceUnavailable, ""},
		{"transcribed", fakeSTT{text: " set a goal to pass physics "}, http.StatusOK, "set a goal to pass physics"},
		{"stt failure", fakeSTT{err: errors.New("quota")}, http.StatusBadGateway, ""},
		{"silence", fakeSTT{text: "  "}, http.StatusUnprocessableEntity, ""},
		{"long transcript cut on a rune boundary", fakeSTT{text: strings.Repeat("a", maxMessageBytes-1) + "é tail"}, http.StatusOK, strings.Repeat("a", maxMessageBytes-1)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			runner := &fakeRunner{}
			r := newRouter(NewAssistantHandler(logger.Nop(), runner, session.NewManager(logger.Nop(), session.Config{}), tc.stt), nil)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, voiceRequest(t, "u1"))
			if rec.Code != tc.status {
				t.Fatalf("status: want=%d got=%d body=%s", tc.status, rec.Code, rec.Body.String())
			}
			got := runner.requests()
			if tc.message == "" {
				if len(got) != 0 {
					t.Fatalf("turns: want=0 got=%d", len(got))
				}
				return
			}
			if len(got) != 1 || got[0].Message != tc.message || got[0].Context.CourseID != "C9" || !utf8.ValidString(got[0].Message) {
				t.Fatalf("turn: got %+v", got)
			}
		})
	}
}

func readFrame(t *testing.T, ctx context.Context, c *websocket.Conn) outboundFrame {
	t.Helper()
	_, data, err := c.Read(ctx)
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	var f outboundFrame
	if err := json.Unmarshal(data, &f); err != nil {
		t.Fatalf("decode frame %s: %v", data, err)
	}
	return f
}

func TestRealtimeSessionPerConnection(t *testing.T) {
	runner := &fakeRunner{}
	mgr := session.NewManager(logger.Nop(), session.Config{})
	rt := NewRealtimeHandler(logger.Nop(), runner, mgr, nil)
	defer rt.Close()
	srv := httptest.NewServer(newRouter(nil, rt))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", &websocket.DialOptions{
		HTTPHeader: http.Header{"X-Test-User": []string{"u1"}},
	})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	hello := readFrame(t, ctx, conn)
	if hello.Type != frameSession || hello.SessionID == "" {
		t.Fatalf("first frame: got %+v", hello)
	}

	if err := conn.Write(ctx, websocket.MessageText, []byte(`{"message":"hello there","context":{"noteId":"N1"}}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	var deltas []string
	var reply outboundFrame
	for reply.Type != frameReply {
		f := readFrame(t, ctx, conn)
		switch f.Type {
		case frameDelta:
			deltas = append(deltas, f.Delta)
		case frameReply:
			reply = f
		default:
			t.Fatalf("unexpected frame: %+v", f)
		}
	}
	if diff := cmp.Diff([]string{"echo: ", "hello there"}, deltas); diff != "" {
		t.Fatalf("deltas (-want +got):\n%s", diff)
	}
	if reply.Seq != 1 || reply.Reply == nil || reply.Reply.SessionID != hello.SessionID {
		t.Fatalf("reply frame: got %+v", reply)
	}

	if err := conn.Write(ctx, websocket.MessageText, []byte("old")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if f := readFrame(t, ctx, conn); f.Type != frameStale || f.Seq != 2 {
		t.Fatalf("stale frame: got %+v", f)
	}

	if err := conn.Write(ctx, websocket.MessageText, []byte("   ")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if f := readFrame(t, ctx, conn); f.Type != frameError || f.Code != "invalid_frame" {
		t.Fatalf("error frame: got %+v", f)
	}

	if got := runner.requests(); len(got) != 2 || got[0].Context.NoteID != "N1" {
		t.Fatalf("turns: got %+v", got)
	}

	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	deadline := time.Now().Add(3 * time.Second)
	for mgr.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("session not destroyed on disconnect: %d live", mgr.Len())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// arrivalRunner joins the session like the engine does. Older messages start
// later, so goroutine start order is the reverse of arrival order.
type arrivalRunner struct {
	delays map[string]time.Duration
}

func (r arrivalRunner) HandleTurn(ctx context.Context, sess *session.Session, in assistant.Request, _ func(string)) (assistant.Reply, error) {
	time.Sleep(r.delays[in.Message])
	turn, tctx, err := sess.AppendArrived(ctx, in.Arrival, in.Message)
	if errors.Is(err, session.ErrTurnSuperseded) {
		return assistant.Reply{Status: assistant.StatusStale, SessionID: sess.ID, TurnID: turn.ID}, nil
	}
	if err != nil {
		return assistant.Reply{}, err
	}
	select {
	case <-tctx.Done():
		sess.ResolveTurn(turn.ID, session.OutcomeStale, "")
		return assistant.Reply{Status: assistant.StatusStale, SessionID: sess.ID, TurnID: turn.ID}, nil
	case <-time.After(20 * time.Millisecond):
	}
	sess.ResolveTurn(turn.ID, session.OutcomeAnswered, in.Message)
	return assistant.Reply{Reply: in.Message, Status: assistant.StatusAnswered, SessionID: sess.ID, TurnID: turn.ID}, nil
}

func TestRealtimeBurstNewestFrameWins(t *testing.T) {
	runner := arrivalRunner{delays: map[string]time.Duration{
		"m1": 60 * time.Millisecond,
		"m2": 40 * time.Millisecond,
		"m3": 20 * time.Millisecond,
	}}
	mgr := session.NewManager(logger.Nop(), session.Config{})
	rt := NewRealtimeHandler(logger.Nop(), runner, mgr, nil)
	defer rt.Close()
	srv := httptest.NewServer(newRouter(nil, rt))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", &websocket.DialOptions{
		HTTPHeader: http.Header{"X-Test-User": []string{"u1"}},
	})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")
	if f := readFrame(t, ctx, conn); f.Type != frameSession {
		t.Fatalf("first frame: got %+v", f)
	}

	for _, m := range []string{"m1", "m2", "m3", "m4"} {
		if err := conn.Write(ctx, websocket.MessageText, []byte(m)); err != nil {
			t.Fatalf("write %s: %v", m, err)
		}
	}

	byType := map[string][]uint64{}
	var reply outboundFrame
	for i := 0; i < 4; i++ {
		f := readFrame(t, ctx, conn)
		byType[f.Type] = append(byType[f.Type], f.Seq)
		if f.Type == frameReply {
			reply = f
		}
	}
	if len(byType[frameStale]) != 3 || len(byType[frameReply]) != 1 {
		t.Fatalf("frames: want 3 stale and 1 reply got %v", byType)
	}
	if reply.Seq != 4 || reply.Reply == nil || reply.Reply.Reply != "m4" {
		t.Fatalf("reply must answer the last frame: got %+v", reply)
	}
}

func TestRealtimeRequiresUser(t *testing.T) {
	rt := NewRealtimeHandler(logger.Nop(), &fakeRunner{}, session.NewManager(logger.Nop(), session.Config{}), nil)
	defer rt.Close()
	rec := httptest.NewRecorder()
	newRouter(nil, rt).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status: want=401 got=%d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		name   string
		checks map[string]Pinger
		status int
	}{
		{"no deps", nil, http.StatusOK},
		{"db up", map[string]Pinger{"db": func(context.Context) error { return nil }}, http.StatusOK},
		{"redis down", map[string]Pinger{
			"db":    func(context.Context) error { return nil },
			"redis": func(context.Context) error { return errors.New("dial tcp: refused") },
		}, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/healthz", NewHealthHandler(tc.checks).HealthCheck)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			if rec.Code != tc.status {
				t.Fatalf("status: want=%d got=%d", tc.status, rec.Code)
			}
			if strings.Contains(rec.Body.String(), "refused") {
				t.Fatalf("health body leaks error: %s", rec.Body.String())
			}
		})
	}
}
