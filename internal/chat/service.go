// Package chat implements the message lifecycle: validation, persistence,
// state transitions and fan-out of chat messages, plus chat creation and
// the cached history read path.
package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"molva/internal/cache"
	"molva/internal/content"
	"molva/internal/models"

	"github.com/google/uuid"
)

// MessagePageSize is the fixed page size of the message history query.
const MessagePageSize = 50

// MediaCaptionFallback is stored as content when a media message carries no
// caption.
const MediaCaptionFallback = "Media file"

// mediaIV is the dummy initialization vector stored for media messages,
// which are not encrypted payloads.
const mediaIV = "dummy"

// Store is the durable store surface the service depends on.
type Store interface {
	GetUser(id string) (models.User, error)
	GetUserByEmail(email string) (models.User, error)

	GetChat(id string) (models.Chat, error)
	UpsertChat(chat models.Chat) error
	FindPrivateChat(userA, userB string) (models.Chat, error)
	ListChatsByUser(userID string, statuses ...models.ChatStatus) ([]models.Chat, error)
	DeleteChat(chatID string) error

	InsertMessage(msg models.Message) error
	GetMessage(messageID string) (models.Message, error)
	UpdateMessage(messageID string, fn func(*models.Message)) (models.Message, error)
	DeleteMessage(messageID string) error
	ListMessages(chatID string, limit int) ([]models.Message, error)
}

// Broadcaster fans events out to connections. Implemented by the websocket
// hub; tests plug in fakes.
type Broadcaster interface {
	ToRoom(roomID, event string, payload any, excludeConnID string)
	ToConn(connID, event string, payload any)
}

// Presence is the read-only presence view used to decide which recipients
// are directly reachable.
type Presence interface {
	Lookup(userID string) (connID string, ok bool)
}

// OfflineNotifier nudges participants who are not reachable for live
// delivery. Best-effort, fire-and-forget.
type OfflineNotifier interface {
	NotifyNewMessage(userID, chatID string)
}

type Service struct {
	store     Store
	cache     *cache.Cache
	presence  Presence
	broadcast Broadcaster
	notify    OfflineNotifier
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(store Store, c *cache.Cache, presence Presence, broadcast Broadcaster, notify OfflineNotifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     store,
		cache:     c,
		presence:  presence,
		broadcast: broadcast,
		notify:    notify,
		logger:    logger,
		now:       time.Now,
	}
}

// SendRequest carries one sendMessage submission. OriginConnID is the
// connection the request arrived on ("" for the HTTP path); it is excluded
// from the room broadcast and receives the sender confirmation.
type SendRequest struct {
	ChatID       string
	SenderID     string
	Content      string
	IV           string
	FileURL      string
	OriginConnID string
}

// Send validates, persists and broadcasts a new message. The delivered flag
// is set optimistically at creation time; recipients that are offline
// reconcile through the history read path.
func (s *Service) Send(ctx context.Context, req SendRequest) (models.Message, error) {
	if req.ChatID == "" || req.SenderID == "" {
		return models.Message{}, models.Validationf("chatId and sender are required")
	}

	var msgContent, iv string
	switch {
	case req.FileURL != "":
		msgContent = strings.TrimSpace(req.Content)
		if msgContent == "" {
			msgContent = MediaCaptionFallback
		}
		iv = req.IV
		if iv == "" {
			iv = mediaIV
		}
	default:
		if req.Content == "" || req.IV == "" {
			return models.Message{}, models.Validationf("message requires either content and iv, or a fileUrl")
		}
		msgContent = strings.TrimSpace(req.Content)
		if msgContent == "" {
			return models.Message{}, models.Validationf("message content cannot be empty")
		}
		iv = req.IV
	}

	isAI := req.SenderID == models.AISenderID
	sender := &models.Sender{ID: models.AISenderID, Username: models.AISenderName}
	if !isAI {
		user, err := s.store.GetUser(req.SenderID)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				return models.Message{}, models.Validationf("invalid sender")
			}
			return models.Message{}, models.Upstream("resolve sender", err)
		}
		sender = &models.Sender{ID: user.ID, Username: user.Username}
	}

	chat, err := s.store.GetChat(req.ChatID)
	if err != nil {
		return models.Message{}, err
	}
	if !isAI && !chat.HasParticipant(req.SenderID) {
		return models.Message{}, models.ErrNotAuthorized
	}

	msg := models.Message{
		ID:        uuid.NewString(),
		ChatID:    req.ChatID,
		SenderID:  req.SenderID,
		Content:   msgContent,
		IV:        iv,
		FileURL:   req.FileURL,
		Delivered: true, // optimistic: not gated on a recipient ack
		IsAI:      isAI,
		CreatedAt: s.now(),
	}
	if err := s.store.InsertMessage(msg); err != nil {
		return models.Message{}, models.Upstream("persist message", err)
	}

	// The last-message pointer is advisory (list previews). A failed update
	// is logged, not compensated.
	chat.LastMessageID = msg.ID
	if err := s.store.UpsertChat(chat); err != nil {
		s.logger.Error("failed to update last message pointer", "chat_id", chat.ID, "error", err)
	}

	msg.Sender = sender

	s.broadcast.ToRoom(chat.ID, models.EventReceiveMessage, msg, req.OriginConnID)
	if req.OriginConnID != "" {
		s.broadcast.ToConn(req.OriginConnID, models.EventMessageSentConfirmation, msg)
	}

	if s.notify != nil {
		for _, p := range chat.Participants {
			if p == req.SenderID {
				continue
			}
			if _, online := s.presence.Lookup(p); !online {
				s.notify.NotifyNewMessage(p, chat.ID)
			}
		}
	}

	s.invalidateChat(ctx, chat)
	return msg, nil
}

// MarkDelivered sets the delivered flag and re-broadcasts the message to its
// room. Idempotent.
func (s *Service) MarkDelivered(ctx context.Context, chatID, messageID string) (models.Message, error) {
	msg, err := s.store.UpdateMessage(messageID, func(m *models.Message) {
		m.Delivered = true
	})
	if err != nil {
		return models.Message{}, err
	}
	s.broadcast.ToRoom(msg.ChatID, models.EventMessageDelivered, msg, "")
	return msg, nil
}

// MarkRead sets the read flag after verifying the reader is a participant of
// the chat, then re-broadcasts the message to its room.
func (s *Service) MarkRead(ctx context.Context, chatID, messageID, readerID string) (models.Message, error) {
	if err := s.authorize(chatID, readerID); err != nil {
		return models.Message{}, err
	}
	msg, err := s.store.UpdateMessage(messageID, func(m *models.Message) {
		m.IsRead = true
	})
	if err != nil {
		return models.Message{}, err
	}
	s.broadcast.ToRoom(msg.ChatID, models.EventMessageRead, msg, "")
	return msg, nil
}

// Edit replaces the message content and marks it edited. The broadcast room
// is derived from the message's stored chat reference, never from the
// caller. An empty actorID skips the participant check (trusted internal
// callers only).
func (s *Service) Edit(ctx context.Context, messageID, newContent, actorID string) (models.Message, error) {
	if newContent == "" {
		return models.Message{}, models.Validationf("new content is required")
	}
	current, err := s.store.GetMessage(messageID)
	if err != nil {
		return models.Message{}, err
	}
	if actorID != "" {
		if err := s.authorize(current.ChatID, actorID); err != nil {
			return models.Message{}, err
		}
	}
	msg, err := s.store.UpdateMessage(messageID, func(m *models.Message) {
		m.Content = newContent
		m.Edited = true
	})
	if err != nil {
		return models.Message{}, err
	}
	s.enrichSender(&msg)
	s.broadcast.ToRoom(msg.ChatID, models.EventMessageEdited, msg, "")

	chat, err := s.store.GetChat(msg.ChatID)
	if err == nil {
		s.invalidateChat(ctx, chat)
	}
	return msg, nil
}

// Delete removes the message and broadcasts a deletion event carrying only
// the identifier so clients can purge local state.
func (s *Service) Delete(ctx context.Context, messageID, chatID, actorID string) error {
	if actorID != "" {
		if err := s.authorize(chatID, actorID); err != nil {
			return err
		}
	}
	if err := s.store.DeleteMessage(messageID); err != nil {
		return err
	}
	s.broadcast.ToRoom(chatID, models.EventMessageDeleted, map[string]string{"messageId": messageID}, "")

	if chat, err := s.store.GetChat(chatID); err == nil {
		s.invalidateChat(ctx, chat)
	}
	return nil
}

// CreateChatRequest describes a new chat. Participant emails are resolved to
// identities; every email that does not resolve is reported back.
type CreateChatRequest struct {
	ParticipantEmails []string
	IsGroup           bool
	Name              string
	IsAI              bool
	InitiatorID       string
}

// CreateChat resolves participants, enforces the cardinality rules and the
// duplicate-private-chat invariant, and persists the chat in pending status
// (accepted for AI chats).
func (s *Service) CreateChat(ctx context.Context, req CreateChatRequest) (models.Chat, error) {
	if len(req.ParticipantEmails) == 0 {
		return models.Chat{}, models.Validationf("participants must be a list of emails")
	}

	participants := make([]string, 0, len(req.ParticipantEmails))
	var unknown []string
	for _, email := range req.ParticipantEmails {
		user, err := s.store.GetUserByEmail(email)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				unknown = append(unknown, email)
				continue
			}
			return models.Chat{}, models.Upstream("resolve participant", err)
		}
		participants = append(participants, user.ID)
	}
	if len(unknown) > 0 {
		return models.Chat{}, &models.UnknownParticipantsError{Emails: unknown}
	}

	name := ""
	if req.IsGroup {
		if len(participants) < 3 {
			return models.Chat{}, models.Validationf("a group chat must have at least 3 participants")
		}
		name = content.Sanitize(strings.TrimSpace(req.Name))
		if name == "" {
			name = "Unnamed Group"
		}
	} else {
		if len(participants) != 2 {
			return models.Chat{}, models.Validationf("a private chat must have exactly 2 participants")
		}
		if _, err := s.store.FindPrivateChat(participants[0], participants[1]); err == nil {
			return models.Chat{}, models.ErrDuplicateChat
		} else if !errors.Is(err, models.ErrNotFound) {
			return models.Chat{}, models.Upstream("check duplicate chat", err)
		}
	}

	status := models.ChatStatusPending
	if req.IsAI {
		status = models.ChatStatusAccepted
	}

	chat := models.Chat{
		ID:           uuid.NewString(),
		Participants: participants,
		Initiator:    req.InitiatorID,
		IsGroup:      req.IsGroup,
		IsAI:         req.IsAI,
		Name:         name,
		Status:       status,
		CreatedAt:    s.now(),
	}
	if err := s.store.UpsertChat(chat); err != nil {
		return models.Chat{}, models.Upstream("persist chat", err)
	}
	s.invalidateChat(ctx, chat)
	return chat, nil
}

// CreateAIChat creates a single-participant chat backed by the assistant.
// AI chats skip the pending handshake.
func (s *Service) CreateAIChat(ctx context.Context, userID string) (models.Chat, error) {
	if userID == "" {
		return models.Chat{}, models.Validationf("user is required")
	}
	chat := models.Chat{
		ID:           uuid.NewString(),
		Participants: []string{userID},
		Initiator:    userID,
		IsAI:         true,
		Name:         "AI Chat",
		Status:       models.ChatStatusAccepted,
		CreatedAt:    s.now(),
	}
	if err := s.store.UpsertChat(chat); err != nil {
		return models.Chat{}, models.Upstream("persist chat", err)
	}
	s.invalidateChat(ctx, chat)
	return chat, nil
}

// AcceptChat flips a pending chat to accepted. Only a participant may
// accept; accepting twice fails.
func (s *Service) AcceptChat(ctx context.Context, chatID, userID string) (models.Chat, error) {
	chat, err := s.store.GetChat(chatID)
	if err != nil {
		return models.Chat{}, err
	}
	if !chat.HasParticipant(userID) {
		return models.Chat{}, models.ErrNotAuthorized
	}
	if chat.Status == models.ChatStatusAccepted {
		return models.Chat{}, models.ErrAlreadyAccepted
	}
	chat.Status = models.ChatStatusAccepted
	if err := s.store.UpsertChat(chat); err != nil {
		return models.Chat{}, models.Upstream("persist chat", err)
	}
	s.invalidateChat(ctx, chat)
	return chat, nil
}

// DeleteChat removes the chat together with all of its messages.
func (s *Service) DeleteChat(ctx context.Context, chatID, userID string) error {
	chat, err := s.store.GetChat(chatID)
	if err != nil {
		return err
	}
	if !chat.HasParticipant(userID) {
		return models.ErrNotAuthorized
	}
	if err := s.store.DeleteChat(chatID); err != nil {
		return models.Upstream("delete chat", err)
	}
	s.invalidateChat(ctx, chat)
	return nil
}

// PendingChats returns the chats awaiting the user's acceptance, through the
// read-through cache.
func (s *Service) PendingChats(ctx context.Context, userID string) ([]models.Chat, error) {
	return cache.GetOrCompute(ctx, s.cache, cache.PendingChatsKey(userID), cache.DefaultTTL,
		func(ctx context.Context) ([]models.Chat, error) {
			chats, err := s.store.ListChatsByUser(userID, models.ChatStatusPending)
			if err != nil {
				return nil, models.Upstream("list pending chats", err)
			}
			return chats, nil
		})
}

// UserChats returns every pending or accepted chat of the user with its full
// message history embedded, through the read-through cache.
func (s *Service) UserChats(ctx context.Context, userID string) ([]models.ChatWithMessages, error) {
	return cache.GetOrCompute(ctx, s.cache, cache.UserChatsKey(userID), cache.DefaultTTL,
		func(ctx context.Context) ([]models.ChatWithMessages, error) {
			chats, err := s.store.ListChatsByUser(userID, models.ChatStatusPending, models.ChatStatusAccepted)
			if err != nil {
				return nil, models.Upstream("list chats", err)
			}
			result := make([]models.ChatWithMessages, 0, len(chats))
			for _, c := range chats {
				messages, err := s.store.ListMessages(c.ID, 0)
				if err != nil {
					return nil, models.Upstream("list messages", err)
				}
				result = append(result, models.ChatWithMessages{Chat: c, Messages: messages})
			}
			return result, nil
		})
}

// Messages returns one page of the chat's history, ordered by creation time
// ascending, through the read-through cache. The caller must be a
// participant.
func (s *Service) Messages(ctx context.Context, chatID, userID string) ([]models.Message, error) {
	if err := s.authorize(chatID, userID); err != nil {
		return nil, err
	}
	return cache.GetOrCompute(ctx, s.cache, cache.MessagesKey(chatID), cache.DefaultTTL,
		func(ctx context.Context) ([]models.Message, error) {
			messages, err := s.store.ListMessages(chatID, MessagePageSize)
			if err != nil {
				return nil, models.Upstream("list messages", err)
			}
			for i := range messages {
				s.enrichSender(&messages[i])
			}
			return messages, nil
		})
}

// authorize checks that userID is a participant of chatID.
func (s *Service) authorize(chatID, userID string) error {
	chat, err := s.store.GetChat(chatID)
	if err != nil {
		return err
	}
	if !chat.HasParticipant(userID) {
		return models.ErrNotAuthorized
	}
	return nil
}

// enrichSender attaches the sender reference used by clients. Lookup
// failures leave the message with the bare sender ID.
func (s *Service) enrichSender(msg *models.Message) {
	if msg.IsAI || msg.SenderID == models.AISenderID {
		msg.Sender = &models.Sender{ID: models.AISenderID, Username: models.AISenderName}
		return
	}
	user, err := s.store.GetUser(msg.SenderID)
	if err != nil {
		return
	}
	msg.Sender = &models.Sender{ID: user.ID, Username: user.Username}
}

// invalidateChat drops the cache keys a chat mutation may have staled. Under
// the default TTL-only policy this is a no-op.
func (s *Service) invalidateChat(ctx context.Context, chat models.Chat) {
	keys := []string{cache.MessagesKey(chat.ID)}
	for _, p := range chat.Participants {
		keys = append(keys, cache.PendingChatsKey(p), cache.UserChatsKey(p))
	}
	s.cache.Invalidate(ctx, keys...)
}
