// Package signaling relays call-setup offers to the online participants of
// a chat. It holds no state of its own: best-effort signaling, not a
// delivery guarantee.
package signaling

import (
	"encoding/json"
	"log/slog"

	"molva/internal/models"
)

type chatStore interface {
	GetChat(id string) (models.Chat, error)
}

type presenceView interface {
	Lookup(userID string) (connID string, ok bool)
}

type directSender interface {
	ToConn(connID, event string, payload any)
}

type Relay struct {
	store    chatStore
	presence presenceView
	sender   directSender
	logger   *slog.Logger
}

func NewRelay(store chatStore, presence presenceView, sender directSender, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{store: store, presence: presence, sender: sender, logger: logger}
}

// CallOffer is the payload delivered to each reachable callee.
type CallOffer struct {
	ChatID string          `json:"chatId"`
	Offer  json.RawMessage `json:"offer"`
	Caller string          `json:"caller"`
}

// RelayCallOffer delivers an incomingVoiceCall event point-to-point to every
// participant of the chat other than the caller that is currently online.
// Only online participants should be interrupted, so this deliberately
// bypasses the room broadcast. Succeeds even when nobody was reachable.
func (r *Relay) RelayCallOffer(chatID string, offer json.RawMessage, callerID string) error {
	chat, err := r.store.GetChat(chatID)
	if err != nil {
		return err
	}

	payload := CallOffer{ChatID: chatID, Offer: offer, Caller: callerID}
	for _, participant := range chat.Participants {
		if participant == callerID {
			continue
		}
		connID, online := r.presence.Lookup(participant)
		if !online {
			continue
		}
		r.sender.ToConn(connID, models.EventIncomingVoiceCall, payload)
		r.logger.Debug("relayed voice call offer", "chat_id", chatID, "callee", participant)
	}
	return nil
}
