package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"social-client/internal/chat"
	"social-client/internal/logger"
	"social-client/internal/mocks"
	"social-client/internal/models"
	"social-client/internal/store"
)

var me = models.User{ID: "B", FirstName: "Bea"}

type chatFixture struct {
	router  *gin.Engine
	handler *ChatHandler
	api     *mocks.ChatAPIMock
	lister  *mocks.ConversationListerMock
	channel *mocks.FakeChannel
}

func setupChatRouter(t *testing.T) *chatFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	f := &chatFixture{
		api:     new(mocks.ChatAPIMock),
		lister:  new(mocks.ConversationListerMock),
		channel: mocks.NewFakeChannel(),
	}
	factory := func() *chat.Session {
		dialer := chat.DialerFunc(func(context.Context) (chat.Channel, error) { return f.channel, nil })
		return chat.New(f.api, dialer, store.NewMemoryStore(), chat.WithLogger(logger.Discard()))
	}
	f.handler = NewChatHandler(me, f.lister, factory, logger.Discard())
	f.handler.now = func() time.Time { return time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC) }
	t.Cleanup(f.handler.Close)

	f.router = gin.New()
	f.handler.Register(f.router)
	return f
}

func (f *chatFixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	return doJSON(f.router, method, path, body)
}

func (f *chatFixture) open(t *testing.T) {
	t.Helper()
	f.api.On("GetUser", mock.Anything, models.ID("A")).Return(models.User{ID: "A", FirstName: "Ann"}, nil).Once()
	f.api.On("GetHistory", mock.Anything, models.ID("A")).Return([]models.RawMessage{
		{ID: "1", Text: "hi", SenderID: "A", CreatedAt: time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC)},
		{ID: "2", Text: "hey", SenderID: "B", CreatedAt: time.Date(2024, 5, 10, 8, 1, 0, 0, time.UTC)},
	}, nil).Once()
	rec := f.do(t, http.MethodPost, "/chats/A/open", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestListConversations(t *testing.T) {
	f := setupChatRouter(t)
	f.lister.On("ListConversations", mock.Anything).Return([]models.Conversation{
		{UserID: "A", Name: "Ann", LastMessage: "hi", LastMessageAt: time.Date(2024, 5, 9, 1, 0, 0, 0, time.UTC)},
	}, nil).Once()

	rec := f.do(t, http.MethodGet, "/chats", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Conversations []struct {
			UserID string `json:"userId"`
			Time   string `json:"time"`
		} `json:"conversations"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Conversations, 1)
	assert.Equal(t, "A", resp.Conversations[0].UserID)
	assert.Equal(t, "Yesterday", resp.Conversations[0].Time)
	f.lister.AssertExpectations(t)
}

func TestListConversationsError(t *testing.T) {
	f := setupChatRouter(t)
	f.lister.On("ListConversations", mock.Anything).Return(nil, assert.AnError).Once()

	rec := f.do(t, http.MethodGet, "/chats", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestOpenChatReturnsGroupedHistory(t *testing.T) {
	f := setupChatRouter(t)
	f.open(t)

	rec := f.do(t, http.MethodGet, "/chats/A/messages", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Connected bool             `json:"connected"`
		Messages  []models.Message `json:"messages"`
		Days      []struct {
			Label string `json:"label"`
		} `json:"days"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Connected)
	require.Len(t, resp.Messages, 2)
	assert.False(t, resp.Messages[0].IsMe)
	assert.True(t, resp.Messages[1].IsMe)
	require.Len(t, resp.Days, 1)
	assert.Equal(t, "Today", resp.Days[0].Label)

	rec = f.do(t, http.MethodPost, "/chats/A/open", "")
	require.Equal(t, http.StatusOK, rec.Code)
	f.api.AssertExpectations(t)
}

func TestOpenChatRejectsSelf(t *testing.T) {
	f := setupChatRouter(t)
	rec := f.do(t, http.MethodPost, "/chats/B/open", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatNotOpen(t *testing.T) {
	f := setupChatRouter(t)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/chats/A/messages", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, "/chats/A/messages", `{"text":"x"}`).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodDelete, "/chats/A", "").Code)
}

func TestPostMessage(t *testing.T) {
	f := setupChatRouter(t)
	f.open(t)

	rec := f.do(t, http.MethodPost, "/chats/A/messages", `{"text":"hello","replyTo":"1"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, chat.IsTempID(models.ID(resp["id"])))

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/chats/A/messages", `{"text":"  "}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/chats/A/messages", `nope`).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, "/chats/A/messages", `{"text":"x","replyTo":"404"}`).Code)
}

func TestEditAndDeleteMessage(t *testing.T) {
	f := setupChatRouter(t)
	f.open(t)
	f.api.On("EditMessage", mock.Anything, models.ID("2"), "edited").Return(nil).Once()
	f.api.On("SoftDeleteMessage", mock.Anything, models.ID("2")).Return(nil).Once()
	f.api.On("RemoveMessage", mock.Anything, models.ID("1")).Return(nil).Once()

	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodPut, "/chats/A/messages/2", `{"text":"edited"}`).Code)
	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodPut, "/chats/A/messages/1", `{"text":"not mine"}`).Code)

	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodDelete, "/chats/A/messages/1?scope=everyone", "").Code)
	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/chats/A/messages/2?scope=everyone", "").Code)
	assert.Equal(t, http.StatusConflict, f.do(t, http.MethodPut, "/chats/A/messages/2", `{"text":"again"}`).Code)
	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/chats/A/messages/1", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodDelete, "/chats/A/messages/2?scope=all", "").Code)
	f.api.AssertExpectations(t)
}

func TestEditPersistFailure(t *testing.T) {
	f := setupChatRouter(t)
	f.open(t)
	f.api.On("EditMessage", mock.Anything, models.ID("2"), "edited").Return(assert.AnError).Once()

	assert.Equal(t, http.StatusBadGateway, f.do(t, http.MethodPut, "/chats/A/messages/2", `{"text":"edited"}`).Code)
}

func TestCloseChat(t *testing.T) {
	f := setupChatRouter(t)
	f.open(t)

	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/chats/A", "").Code)
	assert.Equal(t, 1, f.channel.CloseCount())
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/chats/A/messages", "").Code)
}
