package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"molva/internal/chat"
	"molva/internal/models"
)

type wsConnection interface {
	Close() error
	WriteJSON(v interface{}) error
	ReadJSON(v interface{}) error
}

type eventHub interface {
	Register(connID string) chan ServerEvent
	Unregister(connID string)
	UserOnline(connID, userID string)
	JoinRoom(connID, chatID string)
	Relay(connID, event, chatID string, payload any)
	Send(connID, event string, payload any)
}

type lifecycle interface {
	Send(ctx context.Context, req chat.SendRequest) (models.Message, error)
	MarkDelivered(ctx context.Context, chatID, messageID string) (models.Message, error)
	MarkRead(ctx context.Context, chatID, messageID, readerID string) (models.Message, error)
	Edit(ctx context.Context, messageID, newContent, actorID string) (models.Message, error)
	Delete(ctx context.Context, messageID, chatID, actorID string) error
}

type callRelay interface {
	RelayCallOffer(chatID string, offer json.RawMessage, callerID string) error
}

// Connection pumps one websocket session: a read goroutine feeding client
// events into the main loop, which interleaves them with outbound events
// from the hub.
type Connection struct {
	ws      wsConnection
	hub     eventHub
	service lifecycle
	relay   callRelay
	logger  *slog.Logger

	connID     string
	userID     string // bound by the first userOnline event
	fromClient chan ClientEvent
	fromServer chan ServerEvent
	errorCh    chan error
}

func NewConnection(hub eventHub, service lifecycle, relay callRelay, ws wsConnection, connID string, logger *slog.Logger) *Connection {
	if logger == nil {
		logger = slog.Default()
	}
	return &Connection{
		ws:         ws,
		hub:        hub,
		service:    service,
		relay:      relay,
		logger:     logger,
		connID:     connID,
		fromClient: make(chan ClientEvent),
		fromServer: hub.Register(connID),
		errorCh:    make(chan error, 2),
	}
}

func (c *Connection) Handle(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		close(c.fromClient)
		close(c.errorCh)
		c.hub.Unregister(c.connID)
	}()

	var wg sync.WaitGroup
	wg.Go(func() {
		c.errorCh <- c.pumpEvents(ctx)
		cancel()
	})

	wg.Go(func() {
		c.errorCh <- c.mainLoop(ctx)
		cancel()
	})

	var err error
	select {
	case err = <-c.errorCh:
	case <-ctx.Done():
	}
	c.ws.Close()
	wg.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

func (c *Connection) pumpEvents(ctx context.Context) error {
	for {
		var ev ClientEvent
		if err := c.ws.ReadJSON(&ev); err != nil {
			return err
		}
		select {
		case c.fromClient <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Connection) mainLoop(ctx context.Context) error {
	for {
		select {
		case ev := <-c.fromClient:
			c.processClientEvent(ctx, ev)
		case ev, ok := <-c.fromServer:
			if !ok {
				return nil
			}
			if err := c.ws.WriteJSON(ev); err != nil {
				return err
			}
		case <-ctx.Done():
			return nil
		}
	}
}

func (c *Connection) processClientEvent(ctx context.Context, ev ClientEvent) {
	switch ev.Type {
	case models.EventUserOnline, models.EventReconnect:
		var p userOnlinePayload
		if err := json.Unmarshal(ev.Data, &p); err != nil || p.UserID == "" {
			return
		}
		c.userID = p.UserID
		c.hub.UserOnline(c.connID, p.UserID)

	case models.EventJoinRoom:
		var p joinRoomPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil || p.ChatID == "" {
			return
		}
		c.hub.JoinRoom(c.connID, p.ChatID)

	case models.EventTyping, models.EventStopTyping:
		// Ephemeral relay: re-broadcast the payload verbatim, minus the
		// sender. Nobody is waiting, so errors are swallowed.
		var p typingPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil || p.ChatID == "" {
			return
		}
		c.hub.Relay(c.connID, ev.Type, p.ChatID, json.RawMessage(ev.Data))

	case models.EventSendMessage:
		c.handleSendMessage(ctx, ev)

	case models.EventMessageDelivered:
		var p deliveredPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil || p.ChatID == "" || p.MessageID == "" {
			return
		}
		if _, err := c.service.MarkDelivered(ctx, p.ChatID, p.MessageID); err != nil {
			c.logger.Error("failed to update delivery status", "message_id", p.MessageID, "error", err)
		}

	case models.EventMessageRead:
		var p readPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil || p.ChatID == "" || p.MessageID == "" || p.UserID == "" {
			return
		}
		if _, err := c.service.MarkRead(ctx, p.ChatID, p.MessageID, p.UserID); err != nil {
			c.logger.Error("failed to update read status", "message_id", p.MessageID, "error", err)
		}

	case models.EventEditMessage:
		var p editPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil || p.MessageID == "" || p.NewContent == "" {
			c.ack(ev, false, "Invalid edit data", nil)
			return
		}
		msg, err := c.service.Edit(ctx, p.MessageID, p.NewContent, c.userID)
		if err != nil {
			c.ackError(ev, err)
			return
		}
		c.ack(ev, true, "", msg)

	case models.EventDeleteMessage:
		var p deletePayload
		if err := json.Unmarshal(ev.Data, &p); err != nil || p.MessageID == "" || p.ChatID == "" {
			c.ack(ev, false, "Invalid delete data", nil)
			return
		}
		if err := c.service.Delete(ctx, p.MessageID, p.ChatID, c.userID); err != nil {
			c.ackError(ev, err)
			return
		}
		c.ack(ev, true, "", nil)

	case models.EventVoiceCallOffer:
		var p voiceCallOfferPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil || p.ChatID == "" {
			c.ack(ev, false, "Invalid call offer", nil)
			return
		}
		if err := c.relay.RelayCallOffer(p.ChatID, p.Offer, p.Caller); err != nil {
			c.ackError(ev, err)
			return
		}
		c.ack(ev, true, "", nil)

	default:
		c.logger.Debug("ignoring unknown client event", "type", ev.Type)
	}
}

func (c *Connection) handleSendMessage(ctx context.Context, ev ClientEvent) {
	var p sendMessagePayload
	if err := json.Unmarshal(ev.Data, &p); err != nil || p.ChatID == "" || p.Sender == "" {
		c.ack(ev, false, "Invalid message data", nil)
		return
	}
	msg, err := c.service.Send(ctx, chat.SendRequest{
		ChatID:       p.ChatID,
		SenderID:     p.Sender,
		Content:      p.Content,
		IV:           p.IV,
		FileURL:      p.FileURL,
		OriginConnID: c.connID,
	})
	if err != nil {
		c.ackError(ev, err)
		return
	}
	c.ack(ev, true, "", msg)
}

// ack answers an acknowledged client event through the connection's own
// outbound queue. Events sent without an ackId get no answer.
func (c *Connection) ack(ev ClientEvent, success bool, message string, data any) {
	if ev.AckID == "" {
		return
	}
	c.hub.Send(c.connID, models.EventAck, Ack{
		AckID:   ev.AckID,
		Success: success,
		Message: message,
		Data:    data,
	})
}

func (c *Connection) ackError(ev ClientEvent, err error) {
	switch {
	case models.IsValidation(err):
		c.ack(ev, false, err.Error(), nil)
	case errors.Is(err, models.ErrNotFound):
		c.ack(ev, false, "Not found", nil)
	case errors.Is(err, models.ErrNotAuthorized):
		c.ack(ev, false, "Not authorized", nil)
	default:
		c.logger.Error("client event failed", "type", ev.Type, "error", err)
		c.ack(ev, false, "Internal server error", nil)
	}
}
