package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"companion-ai/internal/app"
	"companion-ai/internal/session"
	"companion-ai/internal/transport/http/middleware"
	"companion-ai/internal/transport/http/response"
)

const heartbeatInterval = 15 * time.Second

type EventSource interface {
	Subscribe(ctx context.Context, sessionID string) (<-chan session.Event, error)
}

type EventsHandler struct {
	chatService *app.ChatService
	source      EventSource
}

func NewEventsHandler(chatService *app.ChatService, source EventSource) *EventsHandler {
	return &EventsHandler{chatService: chatService, source: source}
}

// Stream sends the current state, then every session event as SSE. Events
// may arrive out of order; clients order messages by seq.
func (h *EventsHandler) Stream(c *gin.Context) {
	claims, ok := middleware.Claims(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}
	ctrl, err := h.chatService.Open(claims.SessionID, true)
	if err != nil {
		writeChatError(c, err)
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "stream not supported")
		return
	}

	ctx := c.Request.Context()
	events, err := h.source.Subscribe(ctx, claims.SessionID)
	if err != nil {
		_ = c.Error(err)
		response.Error(c, http.StatusServiceUnavailable, response.CodeUnavailable, "event stream unavailable")
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	if err := writeSSE(c, "state", ctrl.Snapshot()); err != nil {
		return
	}
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			if _, err := c.Writer.Write([]byte(": ping\n\n")); err != nil {
				return
			}
			flusher.Flush()
		case ev, open := <-events:
			if !open {
				return
			}
			if err := writeSSE(c, string(ev.Type), ev); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeSSE(c *gin.Context, event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = c.Writer.Write([]byte(fmt.Sprintf("event: %s\ndata: %s\n\n", sanitizeSSE(event), data)))
	return err
}

func sanitizeSSE(input string) string {
	replaced := strings.ReplaceAll(input, "\r\n", "\\n")
	replaced = strings.ReplaceAll(replaced, "\n", "\\n")
	return replaced
}
