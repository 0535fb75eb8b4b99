package chat

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"social-client/internal/logger"
	"social-client/internal/mocks"
	"social-client/internal/models"
	"social-client/internal/store"
	"social-client/internal/ws"
)

var (
	localUser  = models.User{ID: "B", FirstName: "Bea"}
	targetUser = models.User{ID: "A", FirstName: "Ann"}
	fixedNow   = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
)

type harness struct {
	session *Session
	api     *mocks.ChatAPIMock
	channel *mocks.FakeChannel
	store   *store.MemoryStore
	dials   *atomic.Int32
}

func newHarness(t *testing.T, history []models.RawMessage, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		api:     new(mocks.ChatAPIMock),
		channel: mocks.NewFakeChannel(),
		store:   store.NewMemoryStore(),
		dials:   new(atomic.Int32),
	}
	h.api.On("GetUser", mock.Anything, targetUser.ID).Return(targetUser, nil).Maybe()
	h.api.On("GetHistory", mock.Anything, targetUser.ID).Return(history, nil).Maybe()

	dialer := DialerFunc(func(ctx context.Context) (Channel, error) {
		h.dials.Add(1)
		return h.channel, nil
	})
	opts = append([]Option{WithLogger(logger.Discard()), WithClock(func() time.Time { return fixedNow })}, opts...)
	h.session = New(h.api, dialer, h.store, opts...)
	t.Cleanup(h.session.Teardown)
	return h
}

func (h *harness) ready(t *testing.T) {
	t.Helper()
	require.NoError(t, h.session.Initialize(context.Background(), targetUser.ID, localUser))
	require.NoError(t, h.session.Connect(context.Background()))
}

func (h *harness) key() store.Key {
	return store.Key{LocalUserID: localUser.ID, TargetUserID: targetUser.ID}
}

func ackData(t *testing.T, success bool, id models.ID) ws.Ack {
	t.Helper()
	raw, err := json.Marshal(models.SendAck{Success: success, ID: id})
	require.NoError(t, err)
	return ws.Ack{Data: raw}
}

func TestInitializeMapsHistory(t *testing.T) {
	h := newHarness(t, []models.RawMessage{{ID: "1", Text: "hi", SenderID: "A"}})
	require.NoError(t, h.store.Set(context.Background(), h.key(), "1"))

	require.NoError(t, h.session.Initialize(context.Background(), targetUser.ID, localUser))

	st := h.session.Snapshot()
	require.Len(t, st.Messages, 1)
	assert.False(t, st.Messages[0].IsMe)
	assert.Equal(t, "hi", st.Messages[0].Text)
	assert.Equal(t, "Ann", st.Messages[0].FirstName)
	assert.Equal(t, targetUser, st.Target)
	assert.Equal(t, models.ID("1"), st.LastSeenID)
}

func TestInitializeDegradesOnFetchErrors(t *testing.T) {
	api := new(mocks.ChatAPIMock)
	api.On("GetUser", mock.Anything, targetUser.ID).Return(nil, assert.AnError).Once()
	api.On("GetHistory", mock.Anything, targetUser.ID).Return(nil, assert.AnError).Once()
	ch := mocks.NewFakeChannel()
	s := New(api, DialerFunc(func(context.Context) (Channel, error) { return ch, nil }), nil, WithLogger(logger.Discard()))
	defer s.Teardown()

	require.NoError(t, s.Initialize(context.Background(), targetUser.ID, localUser))
	st := s.Snapshot()
	assert.Empty(t, st.Messages)
	assert.Equal(t, unknownUserFirstName, st.Target.FirstName)

	require.NoError(t, s.Connect(context.Background()))
	_, err := s.Send(context.Background(), "still works", "")
	require.NoError(t, err)
	assert.Len(t, s.Snapshot().Messages, 1)
	api.AssertExpectations(t)
}

func TestInitializeResultDroppedAfterTeardown(t *testing.T) {
	api := new(mocks.ChatAPIMock)
	s := New(api, DialerFunc(func(context.Context) (Channel, error) { return mocks.NewFakeChannel(), nil }), nil, WithLogger(logger.Discard()))

	api.On("GetUser", mock.Anything, targetUser.ID).Return(targetUser, nil)
	api.On("GetHistory", mock.Anything, targetUser.ID).
		Run(func(mock.Arguments) { s.Teardown() }).
		Return([]models.RawMessage{{ID: "1", Text: "late", SenderID: "A"}}, nil)

	require.NoError(t, s.Initialize(context.Background(), targetUser.ID, localUser))
	assert.Empty(t, s.Snapshot().Messages)
	assert.ErrorIs(t, s.Connect(context.Background()), ErrSessionClosed)
}

func TestConnectDialsOnceAndJoins(t *testing.T) {
	h := newHarness(t, nil)
	assert.ErrorIs(t, h.session.Connect(context.Background()), ErrNotInitialized)

	h.ready(t)
	require.NoError(t, h.session.Connect(context.Background()))
	assert.Equal(t, int32(1), h.dials.Load())
	assert.True(t, h.session.Snapshot().Connected)

	emitted := h.channel.Emitted()
	require.Len(t, emitted, 1)
	assert.Equal(t, "joinChat", emitted[0].Event)
	assert.JSONEq(t, `{"firstname":"Bea","userId":"B","targetuserId":"A"}`, string(emitted[0].Data))
}

func TestSecondInitializeKeepsLiveSession(t *testing.T) {
	h := newHarness(t, nil)
	h.ready(t)

	err := h.session.Initialize(context.Background(), targetUser.ID, localUser)
	assert.ErrorIs(t, err, ErrAlreadyInitialized)
	require.NoError(t, h.session.Connect(context.Background()))

	h.channel.Push("receiveMessage", models.RawMessage{ID: "9", Text: "still here", SenderID: "A"})
	require.Eventually(t, func() bool {
		return len(h.session.Snapshot().Messages) == 1
	}, time.Second, 5*time.Millisecond)

	st := h.session.Snapshot()
	assert.True(t, st.Connected)
	assert.Equal(t, models.ID("9"), st.Messages[0].ID)
	assert.Equal(t, int32(1), h.dials.Load())
}

func TestSendRejectsEmptyAndDisconnected(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.session.Initialize(context.Background(), targetUser.ID, localUser))

	_, err := h.session.Send(context.Background(), "   ", "")
	assert.ErrorIs(t, err, ErrEmptyText)
	_, err = h.session.Send(context.Background(), "hello", "")
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Empty(t, h.session.Snapshot().Messages)
}

func TestSendThenAckLeavesSingleServerID(t *testing.T) {
	h := newHarness(t, nil)
	h.ready(t)

	tempID, err := h.session.Send(context.Background(), "hello", "")
	require.NoError(t, err)
	assert.True(t, IsTempID(tempID))

	st := h.session.Snapshot()
	require.Len(t, st.Messages, 1)
	assert.Equal(t, models.StatusPending, st.Messages[0].Status)
	assert.True(t, st.Messages[0].IsMe)
	assert.Equal(t, fixedNow, st.Messages[0].CreatedAt)

	emitted := h.channel.Emitted()
	require.Len(t, emitted, 2)
	assert.JSONEq(t, `{"firstname":"Bea","userId":"B","targetuserId":"A","text":"hello"}`, string(emitted[1].Data))

	h.channel.LastAck("sendMessage") <- ackData(t, true, "S")

	require.Eventually(t, func() bool {
		msgs := h.session.Snapshot().Messages
		return len(msgs) == 1 && msgs[0].ID == "S"
	}, time.Second, 5*time.Millisecond)

	st = h.session.Snapshot()
	assert.Equal(t, models.StatusConfirmed, st.Messages[0].Status)
	assert.Equal(t, models.ID("S"), st.LastSeenID)

	require.Eventually(t, func() bool {
		id, ok, _ := h.store.Get(context.Background(), h.key())
		return ok && id == "S"
	}, time.Second, 5*time.Millisecond)
}

func TestAckForAlreadyReceivedServerID(t *testing.T) {
	h := newHarness(t, []models.RawMessage{{ID: "S", Text: "hello", SenderID: "B"}})
	h.ready(t)

	_, err := h.session.Send(context.Background(), "hello", "")
	require.NoError(t, err)
	h.channel.LastAck("sendMessage") <- ackData(t, true, "S")

	require.Eventually(t, func() bool {
		return len(h.session.Snapshot().Messages) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, models.ID("S"), h.session.Snapshot().Messages[0].ID)
}

func TestSendWithReplyCarriesParent(t *testing.T) {
	h := newHarness(t, []models.RawMessage{{ID: "1", Text: "question", SenderID: "A"}})
	h.ready(t)

	_, err := h.session.Send(context.Background(), "answer", "404")
	assert.ErrorIs(t, err, ErrMessageNotFound)

	_, err = h.session.Send(context.Background(), "answer", "1")
	require.NoError(t, err)

	msgs := h.session.Snapshot().Messages
	require.Len(t, msgs, 2)
	require.NotNil(t, msgs[1].ParentMessage)
	assert.Equal(t, models.ParentRef{ID: "1", Text: "question", FirstName: "Ann"}, *msgs[1].ParentMessage)

	var sent models.SendMessageEvent
	require.NoError(t, json.Unmarshal(h.channel.Emitted()[1].Data, &sent))
	assert.Equal(t, models.ID("1"), sent.ParentMessageID)
}

func TestFailedAckWithoutRollbackKeepsPending(t *testing.T) {
	audited := make(chan struct{})
	audit := new(mocks.AuditorMock)
	audit.On("Emit", mock.Anything, "error", mock.Anything, "chat.send", mock.Anything).
		Run(func(mock.Arguments) { close(audited) }).
		Return().Once()
	h := newHarness(t, nil, WithAuditor(audit))
	h.ready(t)

	tempID, err := h.session.Send(context.Background(), "hello", "")
	require.NoError(t, err)
	h.channel.LastAck("sendMessage") <- ws.Ack{Err: ws.ErrAckTimeout}

	select {
	case <-audited:
	case <-time.After(time.Second):
		t.Fatal("failure not audited")
	}
	msgs := h.session.Snapshot().Messages
	require.Len(t, msgs, 1)
	assert.Equal(t, tempID, msgs[0].ID)
	assert.Equal(t, models.StatusPending, msgs[0].Status)
}

func TestFailedAckWithRollbackMarksFailed(t *testing.T) {
	h := newHarness(t, nil, WithRollback(true))
	h.ready(t)

	_, err := h.session.Send(context.Background(), "hello", "")
	require.NoError(t, err)
	h.channel.LastAck("sendMessage") <- ackData(t, false, "")

	require.Eventually(t, func() bool {
		msgs := h.session.Snapshot().Messages
		return len(msgs) == 1 && msgs[0].Status == models.StatusFailed
	}, time.Second, 5*time.Millisecond)
}

func TestEmitFailureOnSend(t *testing.T) {
	h := newHarness(t, nil, WithRollback(true))
	h.ready(t)
	h.channel.EmitAckErr = assert.AnError

	tempID, err := h.session.Send(context.Background(), "hello", "")
	require.ErrorIs(t, err, assert.AnError)
	msgs := h.session.Snapshot().Messages
	require.Len(t, msgs, 1)
	assert.Equal(t, tempID, msgs[0].ID)
	assert.Equal(t, models.StatusFailed, msgs[0].Status)
}

func TestReceiveMessage(t *testing.T) {
	h := newHarness(t, []models.RawMessage{{ID: "1", Text: "hi", SenderID: "A"}})
	h.ready(t)

	h.channel.Push("receiveMessage", models.RawMessage{ID: "2", Text: "yo", SenderID: "A"})
	h.channel.Push("receiveMessage", models.RawMessage{ID: "3", Text: "echo", SenderID: "B"})
	h.channel.Push("receiveMessage", models.RawMessage{ID: "4", Text: "again", SenderID: "A", FirstName: "Annie"})

	require.Eventually(t, func() bool {
		return len(h.session.Snapshot().Messages) == 3
	}, time.Second, 5*time.Millisecond)

	msgs := h.session.Snapshot().Messages
	assert.Equal(t, []models.ID{"1", "2", "4"}, ids(msgs))
	assert.Equal(t, "hi", msgs[0].Text)
	assert.Equal(t, "Ann", msgs[1].FirstName)
	assert.Equal(t, "Annie", msgs[2].FirstName)
	assert.Equal(t, fixedNow, msgs[1].CreatedAt)

	require.Eventually(t, func() bool {
		id, ok, _ := h.store.Get(context.Background(), h.key())
		return ok && id == "4"
	}, time.Second, 5*time.Millisecond)
}

func TestReceiveSameIDTwiceDoesNotDuplicate(t *testing.T) {
	h := newHarness(t, nil)
	h.ready(t)

	h.channel.Push("receiveMessage", models.RawMessage{ID: "2", Text: "yo", SenderID: "A"})
	h.channel.Push("receiveMessage", models.RawMessage{ID: "2", Text: "yo", SenderID: "A"})
	h.channel.Push("message", models.RawMessage{ID: "3", Text: "alias", SenderID: "A"})

	require.Eventually(t, func() bool {
		return len(h.session.Snapshot().Messages) == 2
	}, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, []models.ID{"2", "3"}, ids(h.session.Snapshot().Messages))
}

func TestMessageDeletedTwiceIsIdempotent(t *testing.T) {
	h := newHarness(t, []models.RawMessage{{ID: "1", Text: "hi", SenderID: "A"}, {ID: "2", Text: "there", SenderID: "A"}})
	h.ready(t)

	h.channel.Push("messageDeleted", models.MessageDeletedEvent{MessageID: "1"})
	require.Eventually(t, func() bool {
		return h.session.Snapshot().Messages[0].IsDelete
	}, time.Second, 5*time.Millisecond)
	first := h.session.Snapshot()

	h.channel.Push("messageDeleted", models.MessageDeletedEvent{MessageID: "1"})
	h.channel.Push("messageUpdated", models.MessageUpdatedEvent{MessageID: "1", Text: "zombie"})
	h.channel.Push("messageUpdated", models.MessageUpdatedEvent{MessageID: "2", Text: "edited"})
	require.Eventually(t, func() bool {
		return h.session.Snapshot().Messages[1].Text == "edited"
	}, time.Second, 5*time.Millisecond)

	second := h.session.Snapshot()
	assert.Equal(t, first.Messages[0], second.Messages[0])
	assert.Equal(t, models.DeletedPlaceholder, second.Messages[0].Text)
	assert.True(t, second.Messages[1].Edited)
}

func TestEdit(t *testing.T) {
	h := newHarness(t, []models.RawMessage{
		{ID: "1", Text: "mine", SenderID: "B"},
		{ID: "2", Text: "theirs", SenderID: "A"},
		{ID: "3", Text: "gone", SenderID: "B", IsDelete: true},
	})
	h.ready(t)
	h.api.On("EditMessage", mock.Anything, models.ID("1"), "mine!").Return(nil).Once()

	require.NoError(t, h.session.Edit(context.Background(), "1", "mine!"))
	msgs := h.session.Snapshot().Messages
	assert.Equal(t, "mine!", msgs[0].Text)
	assert.True(t, msgs[0].Edited)

	emitted := h.channel.Emitted()
	last := emitted[len(emitted)-1]
	assert.Equal(t, "editMessage", last.Event)
	assert.JSONEq(t, `{"id":"1","text":"mine!","targetuserId":"A","userId":"B"}`, string(last.Data))

	assert.ErrorIs(t, h.session.Edit(context.Background(), "1", " "), ErrEmptyText)
	assert.ErrorIs(t, h.session.Edit(context.Background(), "404", "x"), ErrMessageNotFound)
	assert.ErrorIs(t, h.session.Edit(context.Background(), "2", "x"), ErrNotAuthor)
	assert.ErrorIs(t, h.session.Edit(context.Background(), "3", "x"), ErrMessageDeleted)

	tempID, err := h.session.Send(context.Background(), "pending", "")
	require.NoError(t, err)
	assert.ErrorIs(t, h.session.Edit(context.Background(), tempID, "x"), ErrMessagePending)
	h.api.AssertExpectations(t)
}

func TestEditFailureKeepsOptimisticTextByDefault(t *testing.T) {
	h := newHarness(t, []models.RawMessage{{ID: "1", Text: "mine", SenderID: "B"}})
	h.ready(t)
	h.api.On("EditMessage", mock.Anything, models.ID("1"), "new").Return(assert.AnError).Once()

	err := h.session.Edit(context.Background(), "1", "new")
	require.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, "new", h.session.Snapshot().Messages[0].Text)
}

func TestEditFailureRollsBack(t *testing.T) {
	h := newHarness(t, []models.RawMessage{{ID: "1", Text: "mine", SenderID: "B"}}, WithRollback(true))
	h.ready(t)
	h.api.On("EditMessage", mock.Anything, models.ID("1"), "new").Return(assert.AnError).Once()

	require.Error(t, h.session.Edit(context.Background(), "1", "new"))
	msgs := h.session.Snapshot().Messages
	assert.Equal(t, "mine", msgs[0].Text)
	assert.False(t, msgs[0].Edited)
}

func TestDeleteForEveryone(t *testing.T) {
	h := newHarness(t, []models.RawMessage{{ID: "1", Text: "mine", SenderID: "B"}, {ID: "2", Text: "theirs", SenderID: "A"}})
	h.ready(t)
	h.api.On("SoftDeleteMessage", mock.Anything, models.ID("1")).Return(nil).Once()

	assert.ErrorIs(t, h.session.Delete(context.Background(), "2", ScopeEveryone), ErrNotAuthor)
	require.NoError(t, h.session.Delete(context.Background(), "1", ScopeEveryone))
	require.NoError(t, h.session.Delete(context.Background(), "1", ScopeEveryone))

	msgs := h.session.Snapshot().Messages
	require.Len(t, msgs, 2)
	assert.True(t, msgs[0].IsDelete)
	assert.Equal(t, models.DeletedPlaceholder, msgs[0].Text)
	assert.ErrorIs(t, h.session.Edit(context.Background(), "1", "again"), ErrMessageDeleted)
	h.api.AssertExpectations(t)
}

func TestDeleteForMe(t *testing.T) {
	h := newHarness(t, []models.RawMessage{{ID: "1", Text: "a", SenderID: "A"}, {ID: "2", Text: "b", SenderID: "A"}})
	h.ready(t)
	h.api.On("RemoveMessage", mock.Anything, models.ID("1")).Return(nil).Once()

	require.NoError(t, h.session.Delete(context.Background(), "1", ScopeMe))
	assert.Equal(t, []models.ID{"2"}, ids(h.session.Snapshot().Messages))
	assert.ErrorIs(t, h.session.Delete(context.Background(), "1", ScopeMe), ErrMessageNotFound)
	assert.ErrorIs(t, h.session.Delete(context.Background(), "2", "all"), ErrInvalidScope)
	h.api.AssertExpectations(t)
}

func TestDeleteFailuresRollBack(t *testing.T) {
	h := newHarness(t, []models.RawMessage{{ID: "1", Text: "a", SenderID: "B"}, {ID: "2", Text: "b", SenderID: "A"}}, WithRollback(true))
	h.ready(t)
	h.api.On("SoftDeleteMessage", mock.Anything, models.ID("1")).Return(assert.AnError).Once()
	h.api.On("RemoveMessage", mock.Anything, models.ID("1")).Return(assert.AnError).Once()

	require.Error(t, h.session.Delete(context.Background(), "1", ScopeEveryone))
	msgs := h.session.Snapshot().Messages
	assert.False(t, msgs[0].IsDelete)
	assert.Equal(t, "a", msgs[0].Text)

	require.Error(t, h.session.Delete(context.Background(), "1", ScopeMe))
	assert.Equal(t, []models.ID{"1", "2"}, ids(h.session.Snapshot().Messages))
}

func TestAllowedDeleteScopes(t *testing.T) {
	assert.Equal(t, []DeleteScope{ScopeMe, ScopeEveryone}, AllowedDeleteScopes(models.Message{IsMe: true}))
	assert.Equal(t, []DeleteScope{ScopeMe}, AllowedDeleteScopes(models.Message{}))
	assert.Nil(t, AllowedDeleteScopes(models.Message{IsMe: true, IsDelete: true}))

	scope, err := ParseScope(" Everyone ")
	require.NoError(t, err)
	assert.Equal(t, ScopeEveryone, scope)
	_, err = ParseScope("both")
	assert.ErrorIs(t, err, ErrInvalidScope)
}

func TestTeardownClosesOnceAndDropsLateEvents(t *testing.T) {
	h := newHarness(t, nil)
	h.ready(t)

	_, err := h.session.Send(context.Background(), "hello", "")
	require.NoError(t, err)
	ack := h.channel.LastAck("sendMessage")

	h.session.Teardown()
	h.session.Teardown()
	assert.Equal(t, 1, h.channel.CloseCount())

	ack <- ackData(t, true, "S")
	h.channel.Push("receiveMessage", models.RawMessage{ID: "9", SenderID: "A"})

	st := h.session.Snapshot()
	assert.False(t, st.Connected)
	require.Len(t, st.Messages, 1)
	assert.True(t, IsTempID(st.Messages[0].ID))

	_, err = h.session.Send(context.Background(), "late", "")
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.ErrorIs(t, h.session.Connect(context.Background()), ErrSessionClosed)
}

func TestTeardownRacingSendAndConnect(t *testing.T) {
	for i := 0; i < 50; i++ {
		h := newHarness(t, nil)
		require.NoError(t, h.session.Initialize(context.Background(), targetUser.ID, localUser))

		var wg sync.WaitGroup
		wg.Add(3)
		go func() {
			defer wg.Done()
			_ = h.session.Connect(context.Background())
		}()
		go func() {
			defer wg.Done()
			_, _ = h.session.Send(context.Background(), "hi", "")
		}()
		go func() {
			defer wg.Done()
			h.session.Teardown()
		}()
		wg.Wait()

		h.session.Teardown()
		assert.False(t, h.session.Snapshot().Connected)
		_, err := h.session.Send(context.Background(), "late", "")
		assert.ErrorIs(t, err, ErrSessionClosed)
	}
}

func TestServerCloseMarksDisconnected(t *testing.T) {
	h := newHarness(t, nil)
	h.ready(t)

	require.NoError(t, h.channel.Close())
	require.Eventually(t, func() bool {
		return !h.session.Snapshot().Connected
	}, time.Second, 5*time.Millisecond)

	_, err := h.session.Send(context.Background(), "hello", "")
	assert.ErrorIs(t, err, ErrNotConnected)
}
