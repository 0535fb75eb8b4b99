package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"social-client/internal/chat"
	"social-client/internal/logger"
	"social-client/internal/models"
)

// ConversationLister returns the chat list of the local user.
type ConversationLister interface {
	ListConversations(ctx context.Context) ([]models.Conversation, error)
}

// SessionFactory builds a fresh, unconnected session.
type SessionFactory func() *chat.Session

// ChatHandler exposes open conversations to a local UI process.
type ChatHandler struct {
	local      models.User
	lister     ConversationLister
	newSession SessionFactory
	now        func() time.Time
	log        *slog.Logger

	mu       sync.Mutex
	sessions map[models.ID]*chat.Session
}

// NewChatHandler builds a ChatHandler acting as local.
func NewChatHandler(local models.User, lister ConversationLister, newSession SessionFactory, log *slog.Logger) *ChatHandler {
	return &ChatHandler{
		local:      local,
		lister:     lister,
		newSession: newSession,
		now:        time.Now,
		log:        logger.Component(log, "chat-handler"),
		sessions:   make(map[models.ID]*chat.Session),
	}
}

// Register wires the chat routes.
func (h *ChatHandler) Register(r gin.IRoutes) {
	r.GET("/chats", h.ListConversations)
	r.POST("/chats/:target/open", h.OpenChat)
	r.GET("/chats/:target/messages", h.GetMessages)
	r.POST("/chats/:target/messages", h.PostMessage)
	r.PUT("/chats/:target/messages/:id", h.EditMessage)
	r.DELETE("/chats/:target/messages/:id", h.DeleteMessage)
	r.DELETE("/chats/:target", h.CloseChat)
}

type conversationResponse struct {
	models.Conversation
	Time string `json:"time"`
}

// ListConversations returns the chat list with display time labels.
func (h *ChatHandler) ListConversations(c *gin.Context) {
	convs, err := h.lister.ListConversations(c.Request.Context())
	if err != nil {
		h.log.Error("list conversations failed", "error", err)
		errorJSON(c, http.StatusBadGateway, "failed to load conversations")
		return
	}

	now := h.now()
	out := make([]conversationResponse, 0, len(convs))
	for _, conv := range convs {
		out = append(out, conversationResponse{Conversation: conv, Time: chat.ConversationTimeLabel(conv.LastMessageAt, now)})
	}
	c.JSON(http.StatusOK, gin.H{"conversations": out})
}

// OpenChat initializes and connects the session for :target, reusing an
// already open one.
func (h *ChatHandler) OpenChat(c *gin.Context) {
	target := models.ID(c.Param("target"))
	if target == "" || target == h.local.ID {
		errorJSON(c, http.StatusBadRequest, "invalid target user")
		return
	}

	h.mu.Lock()
	session, exists := h.sessions[target]
	if !exists {
		session = h.newSession()
		h.sessions[target] = session
	}
	h.mu.Unlock()

	ctx := c.Request.Context()
	if !exists {
		if err := session.Initialize(ctx, target, h.local); err != nil {
			h.writeError(c, err)
			return
		}
	}
	if err := session.Connect(ctx); err != nil && !errors.Is(err, chat.ErrSessionClosed) {
		h.log.Warn("chat connect failed", "target", target, "error", err)
	}

	c.JSON(http.StatusOK, h.view(session))
}

// GetMessages returns the conversation grouped by day.
func (h *ChatHandler) GetMessages(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.view(session))
}

type sendRequest struct {
	Text    string    `json:"text"`
	ReplyTo models.ID `json:"replyTo"`
}

// PostMessage sends a message optimistically.
func (h *ChatHandler) PostMessage(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "invalid payload")
		return
	}

	id, err := session.Send(c.Request.Context(), req.Text, req.ReplyTo)
	if err != nil && id == "" {
		h.writeError(c, err)
		return
	}
	if err != nil {
		c.JSON(http.StatusAccepted, gin.H{"id": id, "error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"id": id})
}

type editRequest struct {
	Text string `json:"text"`
}

// EditMessage edits one of the local user's messages.
func (h *ChatHandler) EditMessage(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	var req editRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "invalid payload")
		return
	}

	if err := session.Edit(c.Request.Context(), models.ID(c.Param("id")), req.Text); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteMessage deletes for ?scope=me (default) or ?scope=everyone.
func (h *ChatHandler) DeleteMessage(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	scope, err := chat.ParseScope(c.DefaultQuery("scope", string(chat.ScopeMe)))
	if err != nil {
		h.writeError(c, err)
		return
	}

	if err := session.Delete(c.Request.Context(), models.ID(c.Param("id")), scope); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// CloseChat tears the session down.
func (h *ChatHandler) CloseChat(c *gin.Context) {
	target := models.ID(c.Param("target"))

	h.mu.Lock()
	session, ok := h.sessions[target]
	delete(h.sessions, target)
	h.mu.Unlock()

	if !ok {
		errorJSON(c, http.StatusNotFound, "chat not open")
		return
	}
	session.Teardown()
	c.Status(http.StatusNoContent)
}

// Close tears every open session down.
func (h *ChatHandler) Close() {
	h.mu.Lock()
	sessions := h.sessions
	h.sessions = make(map[models.ID]*chat.Session)
	h.mu.Unlock()

	for _, s := range sessions {
		s.Teardown()
	}
}

func (h *ChatHandler) session(c *gin.Context) (*chat.Session, bool) {
	h.mu.Lock()
	session, ok := h.sessions[models.ID(c.Param("target"))]
	h.mu.Unlock()
	if !ok {
		errorJSON(c, http.StatusNotFound, "chat not open")
		return nil, false
	}
	return session, true
}

type chatView struct {
	chat.State
	Days []chat.DayGroup `json:"days"`
}

func (h *ChatHandler) view(session *chat.Session) chatView {
	st := session.Snapshot()
	return chatView{State: st, Days: chat.GroupByDay(st.Messages, h.now())}
}

func (h *ChatHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, chat.ErrEmptyText), errors.Is(err, chat.ErrInvalidScope):
		errorJSON(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, chat.ErrNotAuthor):
		errorJSON(c, http.StatusForbidden, err.Error())
	case errors.Is(err, chat.ErrMessageNotFound):
		errorJSON(c, http.StatusNotFound, err.Error())
	case errors.Is(err, chat.ErrNotConnected), errors.Is(err, chat.ErrMessagePending),
		errors.Is(err, chat.ErrMessageDeleted), errors.Is(err, chat.ErrNotInitialized),
		errors.Is(err, chat.ErrAlreadyInitialized):
		errorJSON(c, http.StatusConflict, err.Error())
	case errors.Is(err, chat.ErrSessionClosed):
		errorJSON(c, http.StatusGone, err.Error())
	default:
		h.log.Error("chat request failed", "path", c.FullPath(), "error", err)
		errorJSON(c, http.StatusBadGateway, err.Error())
	}
}
