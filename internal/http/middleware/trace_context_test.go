package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/maigie-backend/internal/platform/ctxutil"
)

func TestAttachTraceContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		name        string
		requestID   string
		traceID     string
		wantReqID   string
		wantTraceID string
	}{
		{name: "client ids kept", requestID: "req-1", traceID: "trace-1", wantReqID: "req-1", wantTraceID: "trace-1"},
		{name: "generated when absent"},
		{name: "oversized ids replaced", requestID: strings.Repeat("r", 200), traceID: strings.Repeat("t", 200)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var seen *ctxutil.TraceData
			r := gin.New()
			r.Use(AttachTraceContext())
			r.GET("/x", func(c *gin.Context) {
				seen = ctxutil.GetTraceData(c.Request.Context())
				c.Status(http.StatusNoContent)
			})

			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			if tc.requestID != "" {
				req.Header.Set(headerRequestID, tc.requestID)
			}
			if tc.traceID != "" {
				req.Header.Set(headerTraceID, tc.traceID)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if seen == nil {
				t.Fatalf("trace data missing from context")
			}
			if seen.RequestID == "" || len(seen.RequestID) > maxCorrelationID {
				t.Fatalf("request id: got=%q", seen.RequestID)
			}
			if tc.wantReqID != "" && seen.RequestID != tc.wantReqID {
				t.Fatalf("request id: want=%q got=%q", tc.wantReqID, seen.RequestID)
			}
			if tc.wantTraceID != "" && seen.TraceID != tc.wantTraceID {
				t.Fatalf("trace id: want=%q got=%q", tc.wantTraceID, seen.TraceID)
			}
			if got := w.Header().Get(headerRequestID); got != seen.RequestID {
				t.Fatalf("echoed request id: want=%q got=%q", seen.RequestID, got)
			}
		})
	}
}
