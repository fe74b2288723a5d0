package storage

import (
	"encoding"
	"encoding/binary"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

type Storeable interface {
	Key() []byte
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

type DBUser struct {
	ID           string `msgpack:"id"`
	Username     string `msgpack:"username"`
	Email        string `msgpack:"email"`
	LastSeen     int64  `msgpack:"lastSeen"`
	PasswordHash string `msgpack:"passwordHash"`
}

func (u *DBUser) Key() []byte {
	return []byte(u.ID)
}

func (u *DBUser) MarshalBinary() (data []byte, err error) {
	type alias DBUser
	return msgpack.Marshal((*alias)(u))
}

func (u *DBUser) UnmarshalBinary(data []byte) error {
	type alias DBUser
	return msgpack.Unmarshal(data, (*alias)(u))
}

type DBChat struct {
	ID            string   `msgpack:"id"`
	Participants  []string `msgpack:"participants"`
	Initiator     string   `msgpack:"initiator"`
	IsGroup       bool     `msgpack:"isGroup"`
	IsAI          bool     `msgpack:"isAi"`
	Name          string   `msgpack:"name"`
	Status        string   `msgpack:"status"`
	LastMessageID string   `msgpack:"lastMessageId"`
	CreatedAt     int64    `msgpack:"createdAt"`
}

func (c *DBChat) Key() []byte {
	return []byte(c.ID)
}

func (c *DBChat) MarshalBinary() (data []byte, err error) {
	type alias DBChat
	return msgpack.Marshal((*alias)(c))
}

func (c *DBChat) UnmarshalBinary(data []byte) error {
	type alias DBChat
	return msgpack.Unmarshal(data, (*alias)(c))
}

type DBReaction struct {
	Emoji  string `msgpack:"emoji"`
	Sender string `msgpack:"sender"`
}

type DBMessage struct {
	ID        string       `msgpack:"id"`
	ChatID    string       `msgpack:"chatId"`
	SenderID  string       `msgpack:"senderId"`
	Content   string       `msgpack:"content"`
	IV        string       `msgpack:"iv"`
	FileURL   string       `msgpack:"fileUrl"`
	Delivered bool         `msgpack:"delivered"`
	IsRead    bool         `msgpack:"isRead"`
	Edited    bool         `msgpack:"edited"`
	IsAI      bool         `msgpack:"isAi"`
	Reactions []DBReaction `msgpack:"reactions"`
	CreatedAt int64        `msgpack:"createdAt"` // Unix nanoseconds
}

// Key orders messages within a chat bucket by creation time, with the
// message UUID as a tie-breaker so two sends in the same nanosecond never
// collide.
func (m *DBMessage) Key() []byte {
	key := make([]byte, 8, 24)
	binary.BigEndian.PutUint64(key, uint64(m.CreatedAt))
	if id, err := uuid.Parse(m.ID); err == nil {
		key = append(key, id[:]...)
	} else {
		key = append(key, []byte(m.ID)...)
	}
	return key
}

func (m *DBMessage) MarshalBinary() (data []byte, err error) {
	type alias DBMessage
	return msgpack.Marshal((*alias)(m))
}

func (m *DBMessage) UnmarshalBinary(data []byte) error {
	type alias DBMessage
	return msgpack.Unmarshal(data, (*alias)(m))
}

// DBMessageRef locates a message inside the per-chat bucket. It is the value
// stored in the message index, keyed by message ID.
type DBMessageRef struct {
	ChatID string `msgpack:"chatId"`
	MsgKey []byte `msgpack:"msgKey"`
}

func (r *DBMessageRef) MarshalBinary() (data []byte, err error) {
	type alias DBMessageRef
	return msgpack.Marshal((*alias)(r))
}

func (r *DBMessageRef) UnmarshalBinary(data []byte) error {
	type alias DBMessageRef
	return msgpack.Unmarshal(data, (*alias)(r))
}

type DBPushSubscription struct {
	UserID       string `msgpack:"userId"`
	Subscription []byte `msgpack:"subscription"` // raw JSON as sent by the browser
}

func (s *DBPushSubscription) Key() []byte {
	return []byte(s.UserID)
}

func (s *DBPushSubscription) MarshalBinary() (data []byte, err error) {
	type alias DBPushSubscription
	return msgpack.Marshal((*alias)(s))
}

func (s *DBPushSubscription) UnmarshalBinary(data []byte) error {
	type alias DBPushSubscription
	return msgpack.Unmarshal(data, (*alias)(s))
}
