package models

import "time"

// DeletedPlaceholder replaces the body of a tombstoned message.
const DeletedPlaceholder = "This message is deleted"

// MessageStatus tracks the delivery state of a message.
type MessageStatus string

const (
	StatusPending   MessageStatus = "pending"
	StatusConfirmed MessageStatus = "confirmed"
	StatusFailed    MessageStatus = "failed"
)

// ParentRef is a denormalized snapshot of the message being replied to.
type ParentRef struct {
	ID        ID     `json:"id"`
	Text      string `json:"text"`
	FirstName string `json:"firstname"`
}

// Message is a chat message as rendered by the client.
type Message struct {
	ID            ID            `json:"id"`
	Text          string        `json:"text"`
	SenderID      ID            `json:"senderId"`
	FirstName     string        `json:"firstname"`
	IsMe          bool          `json:"isMe"`
	CreatedAt     time.Time     `json:"createdAt"`
	IsDelete      bool          `json:"isDelete"`
	Edited        bool          `json:"edited"`
	Status        MessageStatus `json:"status"`
	ParentMessage *ParentRef    `json:"parentMessage,omitempty"`
}

// RawMessage is the wire shape of history records and receiveMessage events.
type RawMessage struct {
	ID            ID         `json:"id"`
	Text          string     `json:"text"`
	SenderID      ID         `json:"senderId"`
	FirstName     string     `json:"firstname,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	IsDelete      bool       `json:"isDelete"`
	ParentMessage *ParentRef `json:"parentMessage,omitempty"`
}

// JoinChatEvent announces presence in a conversation.
type JoinChatEvent struct {
	FirstName    string `json:"firstname"`
	UserID       ID     `json:"userId"`
	TargetUserID ID     `json:"targetuserId"`
}

// SendMessageEvent carries an outbound message.
type SendMessageEvent struct {
	FirstName       string `json:"firstname"`
	UserID          ID     `json:"userId"`
	TargetUserID    ID     `json:"targetuserId"`
	Text            string `json:"text"`
	ParentMessageID ID     `json:"parentMessageId,omitempty"`
}

// EditMessageEvent propagates an edit to the peer.
type EditMessageEvent struct {
	ID           ID     `json:"id"`
	Text         string `json:"text"`
	TargetUserID ID     `json:"targetuserId"`
	UserID       ID     `json:"userId"`
}

// MessageDeletedEvent is pushed when the peer deletes a message for everyone.
type MessageDeletedEvent struct {
	MessageID ID `json:"messageId"`
}

// MessageUpdatedEvent is pushed when the peer edits a message.
type MessageUpdatedEvent struct {
	MessageID ID     `json:"messageId"`
	Text      string `json:"text"`
}

// SendAck acknowledges a sendMessage emit.
type SendAck struct {
	Success bool `json:"success"`
	ID      ID   `json:"id"`
}
