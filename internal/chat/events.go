package chat

import (
	"encoding/json"

	"github.com/google/uuid"

	"social-client/internal/models"
	"social-client/internal/store"
	"social-client/internal/ws"
)

func (s *Session) eventLoop(ch Channel, gen uint64) {
	defer s.wg.Done()
	events := ch.Events()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				s.log.Info("channel closed by server")
				s.update(gen, func(st State) State {
					st.Connected = false
					return st
				})
				return
			}
			s.handleEvent(gen, ev)
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Session) handleEvent(gen uint64, ev ws.Event) {
	switch ev.Name {
	case eventReceiveMessage, eventMessage:
		var raw models.RawMessage
		if err := json.Unmarshal(ev.Data, &raw); err != nil {
			s.log.Warn("malformed receiveMessage", "error", err)
			return
		}
		s.receive(gen, raw)
	case eventMessageDeleted:
		var payload models.MessageDeletedEvent
		if err := json.Unmarshal(ev.Data, &payload); err != nil {
			s.log.Warn("malformed messageDeleted", "error", err)
			return
		}
		s.update(gen, func(st State) State {
			st.Messages, _ = markDeleted(st.Messages, payload.MessageID)
			return st
		})
	case eventMessageUpdated:
		var payload models.MessageUpdatedEvent
		if err := json.Unmarshal(ev.Data, &payload); err != nil {
			s.log.Warn("malformed messageUpdated", "error", err)
			return
		}
		s.update(gen, func(st State) State {
			st.Messages, _ = patchText(st.Messages, payload.MessageID, payload.Text)
			return st
		})
	default:
		s.log.Debug("ignoring event", "event", ev.Name)
	}
}

// receive applies a pushed message. Echoes of the local user's own sends are
// dropped since the optimistic copy is already in the list.
func (s *Session) receive(gen uint64, raw models.RawMessage) {
	synthetic := raw.ID == ""
	if synthetic {
		raw.ID = models.ID("local-" + uuid.NewString())
	}
	if raw.CreatedAt.IsZero() {
		raw.CreatedAt = s.now()
	}

	var (
		key      store.Key
		appended bool
	)
	s.update(gen, func(st State) State {
		if raw.SenderID == st.Local.ID {
			return st
		}
		m := fromRaw(raw, st.Local, st.Target)
		st.Messages = upsert(st.Messages, m)
		if !synthetic {
			st.LastSeenID = m.ID
		}
		key = store.Key{LocalUserID: st.Local.ID, TargetUserID: st.Target.ID}
		appended = true
		return st
	})
	if appended && !synthetic {
		s.persistLastSeen(key, raw.ID)
	}
}
