package storage

import (
	"fmt"
	"time"

	"molva/internal/models"

	"go.etcd.io/bbolt"
)

var (
	bucketUsers      = []byte("users")
	bucketUserEmails = []byte("user_emails")
	bucketChats      = []byte("chats")
	bucketMessages   = []byte("messages")
	bucketMsgIndex   = []byte("message_index")
	bucketPushSubs   = []byte("push_subscriptions")
)

type BboltStorage struct {
	db *bbolt.DB
}

func NewBboltStorage(path string) (*BboltStorage, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{
			bucketUsers,
			bucketUserEmails,
			bucketChats,
			bucketMessages,
			bucketMsgIndex,
			bucketPushSubs,
		} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &BboltStorage{db: db}, nil
}

func (s *BboltStorage) Close() error {
	return s.db.Close()
}

// --- Users ---

// CreateUser stores a new user and indexes it by email.
func (s *BboltStorage) CreateUser(user models.User, passwordHash string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		dbUser := &DBUser{
			ID:           user.ID,
			Username:     user.Username,
			Email:        user.Email,
			LastSeen:     user.LastSeen.UnixNano(),
			PasswordHash: passwordHash,
		}
		data, err := dbUser.MarshalBinary()
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketUsers).Put(dbUser.Key(), data); err != nil {
			return err
		}
		return tx.Bucket(bucketUserEmails).Put([]byte(user.Email), []byte(user.ID))
	})
}

// GetUser returns the user with the given ID, or models.ErrNotFound.
func (s *BboltStorage) GetUser(id string) (models.User, error) {
	var user models.User
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketUsers).Get([]byte(id))
		if data == nil {
			return models.ErrNotFound
		}
		var dbUser DBUser
		if err := dbUser.UnmarshalBinary(data); err != nil {
			return err
		}
		user = toUser(dbUser)
		return nil
	})
	return user, err
}

// GetUserByEmail resolves an email to a user, or models.ErrNotFound.
func (s *BboltStorage) GetUserByEmail(email string) (models.User, error) {
	var id string
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketUserEmails).Get([]byte(email))
		if v == nil {
			return models.ErrNotFound
		}
		id = string(v)
		return nil
	})
	if err != nil {
		return models.User{}, err
	}
	return s.GetUser(id)
}

// CredentialsByEmail returns the user and its password hash for login.
func (s *BboltStorage) CredentialsByEmail(email string) (models.User, string, error) {
	var user models.User
	var hash string
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketUserEmails).Get([]byte(email))
		if v == nil {
			return models.ErrNotFound
		}
		data := tx.Bucket(bucketUsers).Get(v)
		if data == nil {
			return models.ErrNotFound
		}
		var dbUser DBUser
		if err := dbUser.UnmarshalBinary(data); err != nil {
			return err
		}
		user = toUser(dbUser)
		hash = dbUser.PasswordHash
		return nil
	})
	return user, hash, err
}

// UpdateLastSeen persists the last-seen timestamp for a user. Unknown users
// are ignored.
func (s *BboltStorage) UpdateLastSeen(userID string, lastSeen time.Time) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketUsers)
		data := b.Get([]byte(userID))
		if data == nil {
			return nil
		}
		var dbUser DBUser
		if err := dbUser.UnmarshalBinary(data); err != nil {
			return err
		}
		dbUser.LastSeen = lastSeen.UnixNano()
		updated, err := dbUser.MarshalBinary()
		if err != nil {
			return err
		}
		return b.Put(dbUser.Key(), updated)
	})
}

// --- Chats ---

// UpsertChat saves a chat.
func (s *BboltStorage) UpsertChat(chat models.Chat) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		dbChat := fromChat(chat)
		data, err := dbChat.MarshalBinary()
		if err != nil {
			return err
		}
		return tx.Bucket(bucketChats).Put(dbChat.Key(), data)
	})
}

// GetChat returns the chat with the given ID, or models.ErrNotFound.
func (s *BboltStorage) GetChat(id string) (models.Chat, error) {
	var chat models.Chat
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketChats).Get([]byte(id))
		if data == nil {
			return models.ErrNotFound
		}
		var dbChat DBChat
		if err := dbChat.UnmarshalBinary(data); err != nil {
			return err
		}
		chat = toChat(dbChat)
		return nil
	})
	return chat, err
}

// FindPrivateChat returns the non-group chat whose participants are exactly
// the given pair, or models.ErrNotFound. Linear scan over the chats bucket;
// fine at this scale.
func (s *BboltStorage) FindPrivateChat(userA, userB string) (models.Chat, error) {
	var found *models.Chat
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketChats).ForEach(func(k, v []byte) error {
			var dbChat DBChat
			if err := dbChat.UnmarshalBinary(v); err != nil {
				return err
			}
			if dbChat.IsGroup || len(dbChat.Participants) != 2 {
				return nil
			}
			p := dbChat.Participants
			if (p[0] == userA && p[1] == userB) || (p[0] == userB && p[1] == userA) {
				c := toChat(dbChat)
				found = &c
			}
			return nil
		})
	})
	if err != nil {
		return models.Chat{}, err
	}
	if found == nil {
		return models.Chat{}, models.ErrNotFound
	}
	return *found, nil
}

// ListChatsByUser returns every chat the user participates in (or initiated)
// with one of the given statuses.
func (s *BboltStorage) ListChatsByUser(userID string, statuses ...models.ChatStatus) ([]models.Chat, error) {
	var chats []models.Chat
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketChats).ForEach(func(k, v []byte) error {
			var dbChat DBChat
			if err := dbChat.UnmarshalBinary(v); err != nil {
				return err
			}
			chat := toChat(dbChat)
			if !chat.HasParticipant(userID) && chat.Initiator != userID {
				return nil
			}
			for _, st := range statuses {
				if chat.Status == st {
					chats = append(chats, chat)
					return nil
				}
			}
			return nil
		})
	})
	return chats, err
}

// DeleteChat removes the chat, all of its messages and their index entries
// in a single transaction.
func (s *BboltStorage) DeleteChat(chatID string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		msgBucket := tx.Bucket(bucketMessages).Bucket([]byte(chatID))
		if msgBucket != nil {
			idx := tx.Bucket(bucketMsgIndex)
			err := msgBucket.ForEach(func(k, v []byte) error {
				var dbMsg DBMessage
				if err := dbMsg.UnmarshalBinary(v); err != nil {
					return err
				}
				return idx.Delete([]byte(dbMsg.ID))
			})
			if err != nil {
				return err
			}
			if err := tx.Bucket(bucketMessages).DeleteBucket([]byte(chatID)); err != nil {
				return err
			}
		}
		return tx.Bucket(bucketChats).Delete([]byte(chatID))
	})
}

// --- Messages ---

// InsertMessage stores a message in its chat bucket and indexes it by ID.
func (s *BboltStorage) InsertMessage(msg models.Message) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		dbMsg := fromMessage(msg)
		chatBucket, err := tx.Bucket(bucketMessages).CreateBucketIfNotExists([]byte(msg.ChatID))
		if err != nil {
			return err
		}
		data, err := dbMsg.MarshalBinary()
		if err != nil {
			return err
		}
		if err := chatBucket.Put(dbMsg.Key(), data); err != nil {
			return err
		}
		ref := &DBMessageRef{ChatID: msg.ChatID, MsgKey: dbMsg.Key()}
		refData, err := ref.MarshalBinary()
		if err != nil {
			return err
		}
		return tx.Bucket(bucketMsgIndex).Put([]byte(msg.ID), refData)
	})
}

// GetMessage returns the message with the given ID, or models.ErrNotFound.
func (s *BboltStorage) GetMessage(messageID string) (models.Message, error) {
	var msg models.Message
	err := s.db.View(func(tx *bbolt.Tx) error {
		dbMsg, err := getDBMessage(tx, messageID)
		if err != nil {
			return err
		}
		msg = toMessage(*dbMsg)
		return nil
	})
	return msg, err
}

// UpdateMessage applies fn to the stored message and writes it back.
// Returns the updated message or models.ErrNotFound.
func (s *BboltStorage) UpdateMessage(messageID string, fn func(*models.Message)) (models.Message, error) {
	var updated models.Message
	err := s.db.Update(func(tx *bbolt.Tx) error {
		dbMsg, err := getDBMessage(tx, messageID)
		if err != nil {
			return err
		}
		msg := toMessage(*dbMsg)
		fn(&msg)
		out := fromMessage(msg)
		data, err := out.MarshalBinary()
		if err != nil {
			return err
		}
		chatBucket := tx.Bucket(bucketMessages).Bucket([]byte(msg.ChatID))
		if chatBucket == nil {
			return models.ErrNotFound
		}
		if err := chatBucket.Put(out.Key(), data); err != nil {
			return err
		}
		updated = msg
		return nil
	})
	return updated, err
}

// DeleteMessage removes a message and its index entry. Deleting a missing
// message returns models.ErrNotFound.
func (s *BboltStorage) DeleteMessage(messageID string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		idx := tx.Bucket(bucketMsgIndex)
		refData := idx.Get([]byte(messageID))
		if refData == nil {
			return models.ErrNotFound
		}
		var ref DBMessageRef
		if err := ref.UnmarshalBinary(refData); err != nil {
			return err
		}
		chatBucket := tx.Bucket(bucketMessages).Bucket([]byte(ref.ChatID))
		if chatBucket != nil {
			if err := chatBucket.Delete(ref.MsgKey); err != nil {
				return err
			}
		}
		return idx.Delete([]byte(messageID))
	})
}

// ListMessages returns up to limit messages of a chat, ordered by creation
// time ascending. limit <= 0 means no limit.
func (s *BboltStorage) ListMessages(chatID string, limit int) ([]models.Message, error) {
	var messages []models.Message
	err := s.db.View(func(tx *bbolt.Tx) error {
		chatBucket := tx.Bucket(bucketMessages).Bucket([]byte(chatID))
		if chatBucket == nil {
			return nil // no messages for this chat
		}
		c := chatBucket.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if limit > 0 && len(messages) >= limit {
				break
			}
			var dbMsg DBMessage
			if err := dbMsg.UnmarshalBinary(v); err != nil {
				return err
			}
			messages = append(messages, toMessage(dbMsg))
		}
		return nil
	})
	return messages, err
}

// --- Push subscriptions ---

func (s *BboltStorage) UpsertPushSubscription(userID string, subscription []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		sub := &DBPushSubscription{UserID: userID, Subscription: subscription}
		data, err := sub.MarshalBinary()
		if err != nil {
			return err
		}
		return tx.Bucket(bucketPushSubs).Put(sub.Key(), data)
	})
}

func (s *BboltStorage) GetPushSubscription(userID string) ([]byte, error) {
	var subscription []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketPushSubs).Get([]byte(userID))
		if data == nil {
			return models.ErrNotFound
		}
		var sub DBPushSubscription
		if err := sub.UnmarshalBinary(data); err != nil {
			return err
		}
		subscription = sub.Subscription
		return nil
	})
	return subscription, err
}

// --- Helpers ---

func getDBMessage(tx *bbolt.Tx, messageID string) (*DBMessage, error) {
	refData := tx.Bucket(bucketMsgIndex).Get([]byte(messageID))
	if refData == nil {
		return nil, models.ErrNotFound
	}
	var ref DBMessageRef
	if err := ref.UnmarshalBinary(refData); err != nil {
		return nil, err
	}
	chatBucket := tx.Bucket(bucketMessages).Bucket([]byte(ref.ChatID))
	if chatBucket == nil {
		return nil, models.ErrNotFound
	}
	data := chatBucket.Get(ref.MsgKey)
	if data == nil {
		return nil, models.ErrNotFound
	}
	var dbMsg DBMessage
	if err := dbMsg.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return &dbMsg, nil
}

func toUser(u DBUser) models.User {
	return models.User{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		LastSeen: time.Unix(0, u.LastSeen),
	}
}

func toChat(c DBChat) models.Chat {
	return models.Chat{
		ID:            c.ID,
		Participants:  c.Participants,
		Initiator:     c.Initiator,
		IsGroup:       c.IsGroup,
		IsAI:          c.IsAI,
		Name:          c.Name,
		Status:        models.ChatStatus(c.Status),
		LastMessageID: c.LastMessageID,
		CreatedAt:     time.Unix(0, c.CreatedAt),
	}
}

func fromChat(c models.Chat) *DBChat {
	return &DBChat{
		ID:            c.ID,
		Participants:  c.Participants,
		Initiator:     c.Initiator,
		IsGroup:       c.IsGroup,
		IsAI:          c.IsAI,
		Name:          c.Name,
		Status:        string(c.Status),
		LastMessageID: c.LastMessageID,
		CreatedAt:     c.CreatedAt.UnixNano(),
	}
}

func toMessage(m DBMessage) models.Message {
	msg := models.Message{
		ID:        m.ID,
		ChatID:    m.ChatID,
		SenderID:  m.SenderID,
		Content:   m.Content,
		IV:        m.IV,
		FileURL:   m.FileURL,
		Delivered: m.Delivered,
		IsRead:    m.IsRead,
		Edited:    m.Edited,
		IsAI:      m.IsAI,
		CreatedAt: time.Unix(0, m.CreatedAt),
	}
	if len(m.Reactions) > 0 {
		msg.Reactions = make([]models.Reaction, len(m.Reactions))
		for i, r := range m.Reactions {
			msg.Reactions[i] = models.Reaction{Emoji: r.Emoji, Sender: r.Sender}
		}
	}
	return msg
}

func fromMessage(m models.Message) *DBMessage {
	dbMsg := &DBMessage{
		ID:        m.ID,
		ChatID:    m.ChatID,
		SenderID:  m.SenderID,
		Content:   m.Content,
		IV:        m.IV,
		FileURL:   m.FileURL,
		Delivered: m.Delivered,
		IsRead:    m.IsRead,
		Edited:    m.Edited,
		IsAI:      m.IsAI,
		CreatedAt: m.CreatedAt.UnixNano(),
	}
	if len(m.Reactions) > 0 {
		dbMsg.Reactions = make([]DBReaction, len(m.Reactions))
		for i, r := range m.Reactions {
			dbMsg.Reactions[i] = DBReaction{Emoji: r.Emoji, Sender: r.Sender}
		}
	}
	return dbMsg
}
