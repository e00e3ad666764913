package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/maigie-backend/internal/http/response"
	"github.com/yungbote/maigie-backend/internal/modules/assistant"
	"github.com/yungbote/maigie-backend/internal/modules/assistant/action"
	"github.com/yungbote/maigie-backend/internal/modules/assistant/session"
	"github.com/yungbote/maigie-backend/internal/platform/ctxutil"
	"github.com/yungbote/maigie-backend/internal/platform/logger"
)

const (
	maxMessageBytes = 4000
	maxAudioBytes   = 10 << 20
)

// TurnRunner runs one utterance through the assistant pipeline.
type TurnRunner interface {
	HandleTurn(ctx context.Context, sess *session.Session, in assistant.Request, onDelta func(string)) (assistant.Reply, error)
}

type SessionStore interface {
	Open(userID string) *session.Session
	GetOrCreate(sessionID, userID string) (*session.Session, error)
	Close(sessionID string)
}

type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
}

// turnContext accepts both snake_case and camelCase ids from clients.
type turnContext struct {
	action.ActiveContext
}

func (t *turnContext) UnmarshalJSON(b []byte) error {
	var raw struct {
		CourseID  string `json:"course_id"`
		CourseID2 string `json:"courseId"`
		TopicID   string `json:"topic_id"`
		TopicID2  string `json:"topicId"`
		NoteID    string `json:"note_id"`
		NoteID2   string `json:"noteId"`
		Timezone  string `json:"timezone"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	t.ActiveContext = action.ActiveContext{
		CourseID: firstNonEmpty(raw.CourseID, raw.CourseID2),
		TopicID:  firstNonEmpty(raw.TopicID, raw.TopicID2),
		NoteID:   firstNonEmpty(raw.NoteID, raw.NoteID2),
		Timezone: strings.TrimSpace(raw.Timezone),
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

type chatRequest struct {
	Message   string       `json:"message" binding:"required,max=4000"`
	Context   *turnContext `json:"context"`
	SessionID string       `json:"session_id" binding:"max=128"`
	RequestID string       `json:"request_id" binding:"max=128"`
}

func (r chatRequest) turn(userID, idempotencyKey string) assistant.Request {
	in := assistant.Request{
		UserID:    userID,
		Message:   strings.TrimSpace(r.Message),
		RequestID: firstNonEmpty(idempotencyKey, r.RequestID),
	}
	if r.Context != nil {
		in.Context = r.Context.ActiveContext
	}
	return in
}

type AssistantHandler struct {
	log      *logger.Logger
	engine   TurnRunner
	sessions SessionStore
	stt      Transcriber
}

// NewAssistantHandler wires the HTTP chat surface. stt may be nil, in which
// case voice turns answer 503.
func NewAssistantHandler(log *logger.Logger, engine TurnRunner, sessions SessionStore, stt Transcriber) *AssistantHandler {
	return &AssistantHandler{
		log:      log.With("handler", "AssistantHandler"),
		engine:   engine,
		sessions: sessions,
		stt:      stt,
	}
}

// POST /api/assistant/chat
func (h *AssistantHandler) Chat(c *gin.Context) {
	userID := ctxutil.UserID(c.Request.Context())
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		response.RespondError(c, http.StatusBadRequest, "empty_message", nil)
		return
	}
	h.runTurn(c, req.SessionID, req.turn(userID, c.GetHeader("Idempotency-Key")))
}

// POST /api/assistant/voice (multipart: audio, session_id, context)
func (h *AssistantHandler) Voice(c *gin.Context) {
	if h.stt == nil {
		response.RespondError(c, http.StatusServiceUnavailable, "voice_unavailable", nil)
		return
	}
	userID := ctxutil.UserID(c.Request.Context())

	fh, err := c.FormFile("audio")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "missing_audio", err)
		return
	}
	if fh.Size > maxAudioBytes {
		response.RespondError(c, http.StatusRequestEntityTooLarge, "audio_too_large", nil)
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_audio", err)
		return
	}
	audio, err := io.ReadAll(io.LimitReader(f, maxAudioBytes+1))
	_ = f.Close()
	if err != nil || len(audio) > maxAudioBytes {
		response.RespondError(c, http.StatusBadRequest, "invalid_audio", err)
		return
	}

	text, err := h.stt.Transcribe(c.Request.Context(), audio, fh.Header.Get("Content-Type"))
	if err != nil {
		response.RespondError(c, http.StatusBadGateway, "transcription_failed", err)
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		response.RespondError(c, http.StatusUnprocessableEntity, "no_speech", nil)
		return
	}
	text = truncateUTF8(text, maxMessageBytes)

	req := chatRequest{Message: text, SessionID: c.PostForm("session_id"), RequestID: c.PostForm("request_id")}
	if raw := strings.TrimSpace(c.PostForm("context")); raw != "" {
		var tc turnContext
		if err := json.Unmarshal([]byte(raw), &tc); err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_context", err)
			return
		}
		req.Context = &tc
	}
	h.runTurn(c, req.SessionID, req.turn(userID, c.GetHeader("Idempotency-Key")))
}

func (h *AssistantHandler) runTurn(c *gin.Context, sessionID string, in assistant.Request) {
	sess, err := h.sessions.GetOrCreate(sessionID, in.UserID)
	if errors.Is(err, session.ErrForbidden) {
		response.RespondError(c, http.StatusForbidden, "forbidden", err)
		return
	}
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "session_unavailable", err)
		return
	}
	c.Set("session_id", sess.ID)

	reply, err := h.engine.HandleTurn(c.Request.Context(), sess, in, nil)
	if err != nil {
		if c.Request.Context().Err() != nil {
			// Client went away; nothing useful to write.
			c.Abort()
			return
		}
		response.RespondError(c, http.StatusServiceUnavailable, "turn_failed", err)
		return
	}
	response.RespondOK(c, reply)
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
