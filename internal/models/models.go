package models

import "time"

// AISenderID is the sentinel sender identity for messages authored by the
// assistant rather than a real user.
const AISenderID = "ai"

// AISenderName is the display name attached to assistant-authored messages.
const AISenderName = "AI Assistant"

type ChatStatus string

const (
	ChatStatusPending  ChatStatus = "pending"
	ChatStatusAccepted ChatStatus = "accepted"
)

// User represents a registered user.
type User struct {
	ID       string    `json:"id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
	LastSeen time.Time `json:"lastSeen"`
}

// Sender is the enriched sender reference embedded in outgoing messages.
// For assistant messages it carries the sentinel identity.
type Sender struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Chat represents a conversation between two or more participants.
type Chat struct {
	ID            string     `json:"id"`
	Participants  []string   `json:"participants"`
	Initiator     string     `json:"initiator,omitempty"`
	IsGroup       bool       `json:"isGroup"`
	IsAI          bool       `json:"isAi"`
	Name          string     `json:"name,omitempty"`
	Status        ChatStatus `json:"status"`
	LastMessageID string     `json:"lastMessageId,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// HasParticipant reports whether userID is a participant of the chat.
func (c *Chat) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// Reaction is a single emoji reaction tied to the user who placed it.
type Reaction struct {
	Emoji  string `json:"emoji"`
	Sender string `json:"sender"`
}

// Message represents a chat message. Either Content+IV are set (encrypted
// text) or FileURL is set (media); media messages carry a caption in Content
// and a dummy IV.
type Message struct {
	ID        string     `json:"id"`
	ChatID    string     `json:"chatId"`
	SenderID  string     `json:"senderId"`
	Sender    *Sender    `json:"sender,omitempty"`
	Content   string     `json:"content"`
	IV        string     `json:"iv"`
	FileURL   string     `json:"fileUrl,omitempty"`
	Delivered bool       `json:"delivered"`
	IsRead    bool       `json:"isRead"`
	Edited    bool       `json:"edited"`
	IsAI      bool       `json:"isAi"`
	Reactions []Reaction `json:"reactions,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// ChatWithMessages is the chat-list read model: a chat plus its message
// history, as returned by the cached user-chats query.
type ChatWithMessages struct {
	Chat
	Messages []Message `json:"messages"`
}

// LastSeenNotice is broadcast when a user goes offline.
type LastSeenNotice struct {
	UserID   string    `json:"userId"`
	LastSeen time.Time `json:"lastSeen"`
}
