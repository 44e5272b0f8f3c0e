package handler

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"

	"companion-ai/internal/app"
	"companion-ai/internal/model"
	"companion-ai/internal/session"
	"companion-ai/internal/transport/http/middleware"
	"companion-ai/internal/transport/http/response"
)

type ChatHandler struct {
	chatService    *app.ChatService
	maxUploadBytes int64
}

type SendMessageRequest struct {
	Content string `json:"content"`
	// Wait holds the request open until the reply is appended.
	Wait bool `json:"wait"`
}

func NewChatHandler(chatService *app.ChatService, maxUploadBytes int64) *ChatHandler {
	return &ChatHandler{chatService: chatService, maxUploadBytes: maxUploadBytes}
}

func (h *ChatHandler) GetState(c *gin.Context) {
	sessionID, ok := h.openSession(c)
	if !ok {
		return
	}
	state, err := h.chatService.State(sessionID)
	if err != nil {
		writeChatError(c, err)
		return
	}
	response.OK(c, state)
}

func (h *ChatHandler) SendMessage(c *gin.Context) {
	sessionID, ok := h.openSession(c)
	if !ok {
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	turn, err := h.chatService.SendMessage(c.Request.Context(), sessionID, req.Content)
	if err != nil {
		writeChatError(c, err)
		return
	}
	h.respondTurn(c, turn, req.Wait)
}

func (h *ChatHandler) UploadAttachment(c *gin.Context) {
	sessionID, ok := h.openSession(c)
	if !ok {
		return
	}

	if h.maxUploadBytes > 0 {
		if c.Request.ContentLength > h.maxUploadBytes {
			response.Error(c, http.StatusRequestEntityTooLarge, response.CodeUploadTooLarge, "upload too large")
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, http.StatusRequestEntityTooLarge, response.CodeUploadTooLarge, "upload too large")
			return
		}
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing file field")
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "read upload failed")
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "read upload failed")
		return
	}

	file := model.RawFile{
		Name:      filepath.Base(fileHeader.Filename),
		MediaType: declaredMediaType(fileHeader.Header.Get("Content-Type"), data),
		Data:      data,
	}
	turn, err := h.chatService.Upload(c.Request.Context(), sessionID, file)
	if err != nil {
		writeChatError(c, err)
		return
	}
	h.respondTurn(c, turn, c.Query("wait") == "true")
}

// DetachAttachment removes by ?index= when given, otherwise by ?name=.
// Removing a name that is not attached succeeds.
func (h *ChatHandler) DetachAttachment(c *gin.Context) {
	sessionID, ok := h.openSession(c)
	if !ok {
		return
	}

	var err error
	if raw := c.Query("index"); raw != "" {
		index, parseErr := strconv.Atoi(raw)
		if parseErr != nil {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid index")
			return
		}
		err = h.chatService.DetachAt(sessionID, index)
	} else {
		name := strings.TrimSpace(c.Query("name"))
		if name == "" {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "name or index is required")
			return
		}
		err = h.chatService.Detach(sessionID, name)
	}
	if err != nil {
		writeChatError(c, err)
		return
	}

	state, err := h.chatService.State(sessionID)
	if err != nil {
		writeChatError(c, err)
		return
	}
	response.OK(c, state)
}

func (h *ChatHandler) respondTurn(c *gin.Context, turn *session.Turn, wait bool) {
	if !wait {
		response.Accepted(c, gin.H{"user_message": turn.UserMessage})
		return
	}
	reply, err := turn.Wait(c.Request.Context())
	if err != nil {
		writeChatError(c, err)
		return
	}
	response.OK(c, gin.H{
		"user_message": turn.UserMessage,
		"reply":        reply,
	})
}

// openSession resolves the caller's session, recreating it when it was
// evicted for idleness.
func (h *ChatHandler) openSession(c *gin.Context) (string, bool) {
	claims, ok := middleware.Claims(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return "", false
	}
	if _, err := h.chatService.Open(claims.SessionID, true); err != nil {
		writeChatError(c, err)
		return "", false
	}
	return claims.SessionID, true
}

// declaredMediaType sniffs the payload when the client sent no useful type.
func declaredMediaType(declared string, data []byte) string {
	normalized := session.NormalizeMediaType(declared)
	if normalized != "" && normalized != "application/octet-stream" {
		return declared
	}
	return mimetype.Detect(data).String()
}

func writeChatError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, session.ErrEmptyInput):
		response.Error(c, http.StatusBadRequest, response.CodeEmptyInput, err.Error())
	case errors.Is(err, session.ErrUnsupportedMediaType):
		response.Error(c, http.StatusUnsupportedMediaType, response.CodeUnsupportedMedia, err.Error())
	case errors.Is(err, session.ErrDocumentDecodeFailed):
		response.Error(c, http.StatusUnprocessableEntity, response.CodeDecodeFailed, err.Error())
	case errors.Is(err, session.ErrResponseAlreadyPending):
		response.Error(c, http.StatusConflict, response.CodeResponsePending, err.Error())
	case errors.Is(err, session.ErrResponseGenerationFailed):
		response.Error(c, http.StatusBadGateway, response.CodeGenerationFailed, "response generation failed")
	case errors.Is(err, session.ErrNotAuthenticated):
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, err.Error())
	case errors.Is(err, app.ErrSessionNotFound):
		response.Error(c, http.StatusNotFound, response.CodeSessionNotFound, err.Error())
	case errors.Is(err, app.ErrAttachmentNotFound):
		response.Error(c, http.StatusNotFound, response.CodeAttachmentNotFound, err.Error())
	case errors.Is(err, app.ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	default:
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "chat request failed")
	}
}
