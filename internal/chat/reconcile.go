package chat

import (
	"strings"

	"social-client/internal/models"
)

// Every helper here is a pure function: the input slice is never modified
// and a fresh slice is returned whenever anything changes.

const tempIDPrefix = "tmp-"

// IsTempID reports whether id was generated locally for an unacknowledged send.
func IsTempID(id models.ID) bool {
	return strings.HasPrefix(id.String(), tempIDPrefix)
}

func indexOf(msgs []models.Message, id models.ID) int {
	for i := range msgs {
		if msgs[i].ID == id {
			return i
		}
	}
	return -1
}

func clone(msgs []models.Message) []models.Message {
	out := make([]models.Message, len(msgs))
	copy(out, msgs)
	return out
}

// fromRaw maps a wire record into the rendered shape.
func fromRaw(raw models.RawMessage, local, target models.User) models.Message {
	isMe := raw.SenderID == local.ID
	firstName := raw.FirstName
	if firstName == "" {
		if isMe {
			firstName = local.FirstName
		} else {
			firstName = target.FirstName
		}
	}
	text := raw.Text
	if raw.IsDelete {
		text = models.DeletedPlaceholder
	}
	return models.Message{
		ID:            raw.ID,
		Text:          text,
		SenderID:      raw.SenderID,
		FirstName:     firstName,
		IsMe:          isMe,
		CreatedAt:     raw.CreatedAt,
		IsDelete:      raw.IsDelete,
		Status:        models.StatusConfirmed,
		ParentMessage: raw.ParentMessage,
	}
}

// mapHistory converts a history response, dropping repeated ids.
func mapHistory(raw []models.RawMessage, local, target models.User) []models.Message {
	out := make([]models.Message, 0, len(raw))
	for _, r := range raw {
		m := fromRaw(r, local, target)
		if m.ID != "" && indexOf(out, m.ID) >= 0 {
			continue
		}
		out = append(out, m)
	}
	return out
}

// mergeHistory puts history first and keeps any live message it does not
// already contain, in arrival order.
func mergeHistory(history, live []models.Message) []models.Message {
	out := clone(history)
	for _, m := range live {
		if indexOf(out, m.ID) < 0 {
			out = append(out, m)
		}
	}
	return out
}

// upsert replaces the message with the same id or appends it.
func upsert(msgs []models.Message, m models.Message) []models.Message {
	i := indexOf(msgs, m.ID)
	if i < 0 {
		return append(clone(msgs), m)
	}
	if msgs[i] == m {
		return msgs
	}
	out := clone(msgs)
	if out[i].IsDelete {
		m.IsDelete = true
		m.Text = models.DeletedPlaceholder
	}
	out[i] = m
	return out
}

// swapID reconciles a temporary id with the server id. When the server id is
// already in the list the temporary row is dropped.
func swapID(msgs []models.Message, tempID, serverID models.ID) ([]models.Message, bool) {
	i := indexOf(msgs, tempID)
	if i < 0 {
		return msgs, false
	}
	if indexOf(msgs, serverID) >= 0 {
		return remove(msgs, tempID)
	}
	out := clone(msgs)
	out[i].ID = serverID
	out[i].Status = models.StatusConfirmed
	return out, true
}

// markDeleted tombstones a message. Deleting twice is a no-op.
func markDeleted(msgs []models.Message, id models.ID) ([]models.Message, bool) {
	i := indexOf(msgs, id)
	if i < 0 || msgs[i].IsDelete {
		return msgs, false
	}
	out := clone(msgs)
	out[i].IsDelete = true
	out[i].Text = models.DeletedPlaceholder
	return out, true
}

// patchText edits a live message. Tombstones are never edited.
func patchText(msgs []models.Message, id models.ID, text string) ([]models.Message, bool) {
	i := indexOf(msgs, id)
	if i < 0 || msgs[i].IsDelete || msgs[i].Text == text {
		return msgs, false
	}
	out := clone(msgs)
	out[i].Text = text
	out[i].Edited = true
	return out, true
}

func setStatus(msgs []models.Message, id models.ID, status models.MessageStatus) []models.Message {
	i := indexOf(msgs, id)
	if i < 0 || msgs[i].Status == status {
		return msgs
	}
	out := clone(msgs)
	out[i].Status = status
	return out
}

func remove(msgs []models.Message, id models.ID) ([]models.Message, bool) {
	i := indexOf(msgs, id)
	if i < 0 {
		return msgs, false
	}
	out := make([]models.Message, 0, len(msgs)-1)
	out = append(out, msgs[:i]...)
	out = append(out, msgs[i+1:]...)
	return out, true
}

// insertAt puts m back at index i unless its id reappeared meanwhile.
func insertAt(msgs []models.Message, i int, m models.Message) []models.Message {
	if indexOf(msgs, m.ID) >= 0 {
		return msgs
	}
	if i < 0 || i > len(msgs) {
		i = len(msgs)
	}
	out := make([]models.Message, 0, len(msgs)+1)
	out = append(out, msgs[:i]...)
	out = append(out, m)
	out = append(out, msgs[i:]...)
	return out
}

// replace restores a previous version of a message, if it is still present.
func replace(msgs []models.Message, m models.Message) []models.Message {
	i := indexOf(msgs, m.ID)
	if i < 0 {
		return msgs
	}
	out := clone(msgs)
	out[i] = m
	return out
}

// parentRef snapshots the message being replied to.
func parentRef(m models.Message) *models.ParentRef {
	text := m.Text
	if m.IsDelete {
		text = models.DeletedPlaceholder
	}
	return &models.ParentRef{ID: m.ID, Text: text, FirstName: m.FirstName}
}
