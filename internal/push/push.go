// Package push sends a web-push nudge to participants who are offline when
// a message arrives. Strictly best-effort: every failure is logged and
// swallowed, the send path never depends on it.
package push

import (
	"encoding/json"
	"errors"
	"log/slog"

	"molva/internal/models"

	webpush "github.com/SherClockHolmes/webpush-go"
)

type subscriptionStore interface {
	GetPushSubscription(userID string) ([]byte, error)
	UpsertPushSubscription(userID string, subscription []byte) error
}

type Config struct {
	Subscriber      string // contact mailto for the push service
	VAPIDPublicKey  string
	VAPIDPrivateKey string
}

type Notifier struct {
	cfg    Config
	store  subscriptionStore
	logger *slog.Logger
}

func NewNotifier(cfg Config, store subscriptionStore, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{cfg: cfg, store: store, logger: logger}
}

// Enabled reports whether VAPID keys are configured.
func (n *Notifier) Enabled() bool {
	return n.cfg.VAPIDPublicKey != "" && n.cfg.VAPIDPrivateKey != ""
}

// Subscribe stores the browser subscription for a user after validating its
// shape.
func (n *Notifier) Subscribe(userID string, subscription []byte) error {
	var sub webpush.Subscription
	if err := json.Unmarshal(subscription, &sub); err != nil || sub.Endpoint == "" {
		return models.Validationf("invalid push subscription")
	}
	return n.store.UpsertPushSubscription(userID, subscription)
}

// NotifyNewMessage nudges userID about a new message in chatID. No-op when
// push is not configured or the user never subscribed.
func (n *Notifier) NotifyNewMessage(userID, chatID string) {
	if !n.Enabled() {
		return
	}
	raw, err := n.store.GetPushSubscription(userID)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			n.logger.Warn("push subscription lookup failed", "user_id", userID, "error", err)
		}
		return
	}

	var sub webpush.Subscription
	if err := json.Unmarshal(raw, &sub); err != nil {
		n.logger.Warn("corrupt push subscription", "user_id", userID, "error", err)
		return
	}

	payload, _ := json.Marshal(map[string]string{"type": "newMessage", "chatId": chatID})
	resp, err := webpush.SendNotification(payload, &sub, &webpush.Options{
		Subscriber:      n.cfg.Subscriber,
		VAPIDPublicKey:  n.cfg.VAPIDPublicKey,
		VAPIDPrivateKey: n.cfg.VAPIDPrivateKey,
		TTL:             60,
	})
	if err != nil {
		n.logger.Warn("web push failed", "user_id", userID, "error", err)
		return
	}
	_ = resp.Body.Close()
}
