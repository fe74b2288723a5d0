package ws

import "encoding/json"

// ClientEvent is the envelope for every client-to-server event. AckID, when
// set, asks the server to answer with an ack event carrying the same ID
// (the socket-callback equivalent).
type ClientEvent struct {
	Type  string          `json:"type"`
	AckID string          `json:"ackId,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ServerEvent is the envelope for every server-to-client event.
type ServerEvent struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Ack conveys success or failure of an acknowledged client event.
type Ack struct {
	AckID   string `json:"ackId"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// Client event payloads.

type userOnlinePayload struct {
	UserID string `json:"userId"`
}

type joinRoomPayload struct {
	ChatID string `json:"chatId"`
}

// typingPayload extracts the room from typing/stopTyping events; the raw
// payload is re-broadcast verbatim.
type typingPayload struct {
	ChatID string `json:"chatId"`
}

type sendMessagePayload struct {
	ChatID  string `json:"chatId"`
	Sender  string `json:"sender"`
	Content string `json:"content"`
	IV      string `json:"iv"`
	FileURL string `json:"fileUrl"`
}

type deliveredPayload struct {
	ChatID    string `json:"chatId"`
	MessageID string `json:"messageId"`
}

type readPayload struct {
	ChatID    string `json:"chatId"`
	MessageID string `json:"messageId"`
	UserID    string `json:"userId"`
}

type editPayload struct {
	MessageID  string `json:"messageId"`
	NewContent string `json:"newContent"`
}

type deletePayload struct {
	MessageID string `json:"messageId"`
	ChatID    string `json:"chatId"`
}

type voiceCallOfferPayload struct {
	ChatID string          `json:"chatId"`
	Offer  json.RawMessage `json:"offer"`
	Caller string          `json:"caller"`
}
