package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"social-client/internal/models"
)

type ChatAPIMock struct {
	mock.Mock
}

func (m *ChatAPIMock) GetUser(ctx context.Context, userID models.ID) (models.User, error) {
	args := m.Called(ctx, userID)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *ChatAPIMock) GetHistory(ctx context.Context, targetUserID models.ID) ([]models.RawMessage, error) {
	args := m.Called(ctx, targetUserID)
	var list []models.RawMessage
	if val := args.Get(0); val != nil {
		list = val.([]models.RawMessage)
	}
	return list, args.Error(1)
}

func (m *ChatAPIMock) EditMessage(ctx context.Context, messageID models.ID, text string) error {
	args := m.Called(ctx, messageID, text)
	return args.Error(0)
}

func (m *ChatAPIMock) SoftDeleteMessage(ctx context.Context, messageID models.ID) error {
	args := m.Called(ctx, messageID)
	return args.Error(0)
}

func (m *ChatAPIMock) RemoveMessage(ctx context.Context, messageID models.ID) error {
	args := m.Called(ctx, messageID)
	return args.Error(0)
}

type FeedAPIMock struct {
	mock.Mock
}

func (m *FeedAPIMock) GetFeedPage(ctx context.Context, page, limit int) (models.FeedPage, error) {
	args := m.Called(ctx, page, limit)
	var fp models.FeedPage
	if val := args.Get(0); val != nil {
		fp = val.(models.FeedPage)
	}
	return fp, args.Error(1)
}

func (m *FeedAPIMock) GetUser(ctx context.Context, userID models.ID) (models.User, error) {
	args := m.Called(ctx, userID)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *FeedAPIMock) LikePost(ctx context.Context, postID models.ID) error {
	args := m.Called(ctx, postID)
	return args.Error(0)
}

func (m *FeedAPIMock) GetLikeCount(ctx context.Context, postID models.ID) (models.LikeCount, error) {
	args := m.Called(ctx, postID)
	var lc models.LikeCount
	if val := args.Get(0); val != nil {
		lc = val.(models.LikeCount)
	}
	return lc, args.Error(1)
}

type ConversationListerMock struct {
	mock.Mock
}

func (m *ConversationListerMock) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	args := m.Called(ctx)
	var list []models.Conversation
	if val := args.Get(0); val != nil {
		list = val.([]models.Conversation)
	}
	return list, args.Error(1)
}
