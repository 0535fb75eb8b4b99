package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"social-client/internal/logger"
	"social-client/internal/models"
	"social-client/internal/observability"
	"social-client/internal/store"
	"social-client/internal/ws"
)

const (
	eventJoinChat        = "joinChat"
	eventSendMessage     = "sendMessage"
	eventEditMessage     = "editMessage"
	eventReceiveMessage  = "receiveMessage"
	eventMessage         = "message"
	eventMessageDeleted  = "messageDeleted"
	eventMessageUpdated  = "messageUpdated"
	unknownUserFirstName = "Unknown"
)

// DeleteScope selects who loses sight of a deleted message.
type DeleteScope string

const (
	ScopeMe       DeleteScope = "me"
	ScopeEveryone DeleteScope = "everyone"
)

// ParseScope maps "me" and "everyone" to a DeleteScope.
func ParseScope(s string) (DeleteScope, error) {
	switch DeleteScope(strings.ToLower(strings.TrimSpace(s))) {
	case ScopeMe:
		return ScopeMe, nil
	case ScopeEveryone:
		return ScopeEveryone, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidScope, s)
	}
}

// AllowedDeleteScopes lists the delete choices offered for msg. Authors may
// delete for everyone; tombstones offer nothing.
func AllowedDeleteScopes(msg models.Message) []DeleteScope {
	if msg.IsDelete {
		return nil
	}
	if msg.IsMe {
		return []DeleteScope{ScopeMe, ScopeEveryone}
	}
	return []DeleteScope{ScopeMe}
}

// State is a snapshot of one conversation.
type State struct {
	Local      models.User      `json:"local"`
	Target     models.User      `json:"target"`
	Messages   []models.Message `json:"messages"`
	LastSeenID models.ID        `json:"lastSeenId,omitempty"`
	Connected  bool             `json:"connected"`
}

// Option configures a Session.
type Option func(*Session)

func WithLogger(log *slog.Logger) Option {
	return func(s *Session) { s.log = log }
}

// WithRollback restores optimistic state when persistence fails.
func WithRollback(enabled bool) Option {
	return func(s *Session) { s.rollback = enabled }
}

func WithAuditor(a Auditor) Option {
	return func(s *Session) { s.audit = a }
}

func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// Session owns one open conversation.
type Session struct {
	api      API
	dialer   Dialer
	lastSeen store.LastSeenStore
	log      *slog.Logger
	audit    Auditor
	rollback bool
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	state       State
	gen         uint64
	initialized bool
	dialing     bool
	closed      bool
	channel     Channel
}

// New builds a Session. lastSeen may be nil.
func New(api API, dialer Dialer, lastSeen store.LastSeenStore, opts ...Option) *Session {
	s := &Session{
		api:      api,
		dialer:   dialer,
		lastSeen: lastSeen,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logger.Component(s.log, "chat")
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	st.Messages = clone(s.state.Messages)
	return st
}

// update applies fn when gen is still current. It reports whether fn ran.
func (s *Session) update(gen uint64, fn func(State) State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.gen {
		return false
	}
	s.state = fn(s.state)
	return true
}

func (s *Session) key() store.Key {
	return store.Key{LocalUserID: s.state.Local.ID, TargetUserID: s.state.Target.ID}
}

// Initialize loads the target user, the history and the last-seen marker.
// Fetch failures are logged and leave an empty but usable session. A session
// is initialized once; open a new one for another target.
func (s *Session) Initialize(ctx context.Context, targetUserID models.ID, local models.User) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.initialized {
		s.mu.Unlock()
		return ErrAlreadyInitialized
	}
	s.gen++
	gen := s.gen
	s.initialized = true
	s.state.Local = local
	s.state.Target = models.User{ID: targetUserID, FirstName: unknownUserFirstName}
	s.state.Messages = nil
	s.state.LastSeenID = ""
	key := s.key()
	s.mu.Unlock()

	var (
		target   = models.User{ID: targetUserID, FirstName: unknownUserFirstName}
		history  []models.RawMessage
		lastSeen models.ID
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		user, err := s.api.GetUser(gctx, targetUserID)
		if err != nil {
			s.log.Warn("fetch target user failed", "target", targetUserID, "error", err)
			return nil
		}
		target = user
		return nil
	})
	g.Go(func() error {
		msgs, err := s.api.GetHistory(gctx, targetUserID)
		if err != nil {
			s.log.Warn("fetch history failed", "target", targetUserID, "error", err)
			return nil
		}
		history = msgs
		return nil
	})
	if s.lastSeen != nil {
		g.Go(func() error {
			id, ok, err := s.lastSeen.Get(gctx, key)
			if err != nil {
				s.log.Warn("load last seen failed", "target", targetUserID, "error", err)
				return nil
			}
			if ok {
				lastSeen = id
			}
			return nil
		})
	}
	_ = g.Wait()

	applied := s.update(gen, func(st State) State {
		st.Target = target
		st.Messages = mergeHistory(mapHistory(history, st.Local, target), st.Messages)
		if lastSeen != "" {
			st.LastSeenID = lastSeen
		}
		return st
	})
	if !applied {
		s.log.Debug("discarding stale history", "target", targetUserID)
	}
	return nil
}

// Connect opens the realtime channel and announces presence. Only the first
// call dials; later calls are no-ops.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return ErrSessionClosed
	case !s.initialized:
		s.mu.Unlock()
		return ErrNotInitialized
	case s.channel != nil || s.dialing:
		s.mu.Unlock()
		return nil
	}
	s.dialing = true
	s.mu.Unlock()

	ch, err := s.dialer.Dial(ctx)

	s.mu.Lock()
	s.dialing = false
	if err != nil {
		s.mu.Unlock()
		s.log.Error("connect failed", "error", err)
		return fmt.Errorf("connect: %w", err)
	}
	if s.closed {
		s.mu.Unlock()
		_ = ch.Close()
		return ErrSessionClosed
	}
	s.channel = ch
	s.state.Connected = true
	gen := s.gen
	join := models.JoinChatEvent{
		FirstName:    s.state.Local.FirstName,
		UserID:       s.state.Local.ID,
		TargetUserID: s.state.Target.ID,
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go s.eventLoop(ch, gen)

	if err := ch.Emit(ctx, eventJoinChat, join); err != nil {
		s.log.Warn("join emit failed", "error", err)
	}
	return nil
}

// Send appends an optimistic message and emits it. It returns the temporary
// id, which is swapped for the server id once the ack arrives.
func (s *Session) Send(ctx context.Context, text string, replyTo models.ID) (models.ID, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyText
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", ErrSessionClosed
	}
	if s.channel == nil || !s.state.Connected {
		s.mu.Unlock()
		return "", ErrNotConnected
	}

	var parent *models.ParentRef
	if replyTo != "" {
		i := indexOf(s.state.Messages, replyTo)
		if i < 0 {
			s.mu.Unlock()
			return "", ErrMessageNotFound
		}
		parent = parentRef(s.state.Messages[i])
	}

	tempID := models.ID(tempIDPrefix + newTempSuffix())
	local := s.state.Local
	target := s.state.Target
	s.state.Messages = append(clone(s.state.Messages), models.Message{
		ID:            tempID,
		Text:          text,
		SenderID:      local.ID,
		FirstName:     local.FirstName,
		IsMe:          true,
		CreatedAt:     s.now(),
		Status:        models.StatusPending,
		ParentMessage: parent,
	})
	gen := s.gen
	ch := s.channel
	// released by awaitAck, or below when the emit fails
	s.wg.Add(1)
	s.mu.Unlock()

	event := models.SendMessageEvent{
		FirstName:       local.FirstName,
		UserID:          local.ID,
		TargetUserID:    target.ID,
		Text:            text,
		ParentMessageID: replyTo,
	}
	ack, err := ch.EmitWithAck(ctx, eventSendMessage, event)
	if err != nil {
		s.wg.Done()
		s.mutationFailed(ctx, "send", tempID, err)
		if s.rollback {
			s.update(gen, func(st State) State {
				st.Messages = setStatus(st.Messages, tempID, models.StatusFailed)
				return st
			})
		}
		return tempID, fmt.Errorf("emit %s: %w", eventSendMessage, err)
	}

	go s.awaitAck(gen, tempID, ack)
	return tempID, nil
}

func newTempSuffix() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func (s *Session) awaitAck(gen uint64, tempID models.ID, ack <-chan ws.Ack) {
	defer s.wg.Done()

	var reply ws.Ack
	select {
	case reply = <-ack:
	case <-s.ctx.Done():
		return
	}

	var res models.SendAck
	err := reply.Err
	if err == nil {
		if jsonErr := json.Unmarshal(reply.Data, &res); jsonErr != nil {
			err = fmt.Errorf("decode ack: %w", jsonErr)
		} else if !res.Success || res.ID == "" {
			err = fmt.Errorf("send rejected by server")
		}
	}
	if err != nil {
		s.mutationFailed(s.ctx, "send", tempID, err)
		if s.rollback {
			s.update(gen, func(st State) State {
				st.Messages = setStatus(st.Messages, tempID, models.StatusFailed)
				return st
			})
		}
		return
	}

	var key store.Key
	applied := s.update(gen, func(st State) State {
		msgs, ok := swapID(st.Messages, tempID, res.ID)
		if !ok {
			return st
		}
		st.Messages = msgs
		st.LastSeenID = res.ID
		key = store.Key{LocalUserID: st.Local.ID, TargetUserID: st.Target.ID}
		return st
	})
	if !applied {
		return
	}
	observability.IncChatMutation("send", "ok")
	s.persistLastSeen(key, res.ID)
}

func (s *Session) persistLastSeen(key store.Key, id models.ID) {
	if s.lastSeen == nil || key.LocalUserID == "" || key.TargetUserID == "" {
		return
	}
	if err := s.lastSeen.Set(s.ctx, key, id); err != nil {
		s.log.Warn("persist last seen failed", "target", key.TargetUserID, "error", err)
	}
}

// Edit changes the text of one of the local user's messages.
func (s *Session) Edit(ctx context.Context, id models.ID, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	i := indexOf(s.state.Messages, id)
	if i < 0 {
		s.mu.Unlock()
		return ErrMessageNotFound
	}
	prev := s.state.Messages[i]
	switch {
	case prev.IsDelete:
		s.mu.Unlock()
		return ErrMessageDeleted
	case !prev.IsMe:
		s.mu.Unlock()
		return ErrNotAuthor
	case prev.Status == models.StatusPending || IsTempID(prev.ID):
		s.mu.Unlock()
		return ErrMessagePending
	}
	s.state.Messages, _ = patchText(s.state.Messages, id, text)
	gen := s.gen
	ch := s.channel
	event := models.EditMessageEvent{ID: id, Text: text, TargetUserID: s.state.Target.ID, UserID: s.state.Local.ID}
	s.mu.Unlock()

	if ch != nil {
		if err := ch.Emit(ctx, eventEditMessage, event); err != nil {
			s.log.Warn("edit emit failed", "id", id, "error", err)
		}
	}

	if err := s.api.EditMessage(ctx, id, text); err != nil {
		s.mutationFailed(ctx, "edit", id, err)
		if s.rollback {
			s.update(gen, func(st State) State {
				j := indexOf(st.Messages, id)
				if j >= 0 && !st.Messages[j].IsDelete && st.Messages[j].Text == text {
					st.Messages = replace(st.Messages, prev)
				}
				return st
			})
		}
		return fmt.Errorf("persist edit: %w", err)
	}
	observability.IncChatMutation("edit", "ok")
	return nil
}

// Delete removes a message for the local user only or tombstones it for
// both participants.
func (s *Session) Delete(ctx context.Context, id models.ID, scope DeleteScope) error {
	if scope != ScopeMe && scope != ScopeEveryone {
		return fmt.Errorf("%w: %q", ErrInvalidScope, scope)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	i := indexOf(s.state.Messages, id)
	if i < 0 {
		s.mu.Unlock()
		return ErrMessageNotFound
	}
	prev := s.state.Messages[i]
	if prev.Status == models.StatusPending || IsTempID(prev.ID) {
		s.mu.Unlock()
		return ErrMessagePending
	}
	gen := s.gen

	if scope == ScopeMe {
		s.state.Messages, _ = remove(s.state.Messages, id)
		s.mu.Unlock()

		if err := s.api.RemoveMessage(ctx, id); err != nil {
			s.mutationFailed(ctx, "delete_me", id, err)
			if s.rollback {
				s.update(gen, func(st State) State {
					st.Messages = insertAt(st.Messages, i, prev)
					return st
				})
			}
			return fmt.Errorf("remove message: %w", err)
		}
		observability.IncChatMutation("delete_me", "ok")
		return nil
	}

	if !prev.IsMe {
		s.mu.Unlock()
		return ErrNotAuthor
	}
	if prev.IsDelete {
		s.mu.Unlock()
		return nil
	}
	s.state.Messages, _ = markDeleted(s.state.Messages, id)
	s.mu.Unlock()

	if err := s.api.SoftDeleteMessage(ctx, id); err != nil {
		s.mutationFailed(ctx, "delete_everyone", id, err)
		if s.rollback {
			s.update(gen, func(st State) State {
				st.Messages = replace(st.Messages, prev)
				return st
			})
		}
		return fmt.Errorf("soft delete message: %w", err)
	}
	observability.IncChatMutation("delete_everyone", "ok")
	return nil
}

// Teardown closes the channel and waits for background work. Later events,
// acks and responses are dropped.
func (s *Session) Teardown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.gen++
	ch := s.channel
	s.channel = nil
	s.state.Connected = false
	s.mu.Unlock()

	s.cancel()
	if ch != nil {
		if err := ch.Close(); err != nil {
			s.log.Debug("channel close failed", "error", err)
		}
	}
	s.wg.Wait()
}

func (s *Session) mutationFailed(ctx context.Context, op string, id models.ID, err error) {
	observability.IncChatMutation(op, "error")
	s.log.Error("chat mutation failed", "op", op, "id", id, "error", err)
	if s.audit == nil {
		return
	}
	s.mu.Lock()
	userID := s.state.Local.ID.String()
	s.mu.Unlock()
	s.audit.Emit(ctx, "error", fmt.Sprintf("%s %s failed: %v", op, id, err), "chat."+op, &userID)
}
