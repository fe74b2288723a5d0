package storage

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"molva/internal/models"
)

func newTestStorage(t *testing.T) *BboltStorage {
	t.Helper()
	store, err := NewBboltStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStorage_Users(t *testing.T) {
	store := newTestStorage(t)

	user := models.User{
		ID:       "user1",
		Username: "alice",
		Email:    "alice@example.com",
		LastSeen: time.Unix(0, 0),
	}
	if err := store.CreateUser(user, "hash"); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	got, err := store.GetUser("user1")
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if got.Username != "alice" || got.Email != "alice@example.com" {
		t.Errorf("unexpected user: %+v", got)
	}

	byEmail, err := store.GetUserByEmail("alice@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if byEmail.ID != "user1" {
		t.Errorf("expected user1, got %s", byEmail.ID)
	}

	if _, err := store.GetUserByEmail("nobody@example.com"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	_, hash, err := store.CredentialsByEmail("alice@example.com")
	if err != nil {
		t.Fatalf("CredentialsByEmail failed: %v", err)
	}
	if hash != "hash" {
		t.Errorf("expected hash, got %s", hash)
	}

	seen := time.Now()
	if err := store.UpdateLastSeen("user1", seen); err != nil {
		t.Fatalf("UpdateLastSeen failed: %v", err)
	}
	got, _ = store.GetUser("user1")
	if !got.LastSeen.Equal(seen) {
		t.Errorf("expected last seen %v, got %v", seen, got.LastSeen)
	}

	// Unknown users are ignored
	if err := store.UpdateLastSeen("ghost", seen); err != nil {
		t.Errorf("UpdateLastSeen for unknown user failed: %v", err)
	}
}

func TestStorage_Chats(t *testing.T) {
	store := newTestStorage(t)

	chat := models.Chat{
		ID:           "chat1",
		Participants: []string{"a", "b"},
		Status:       models.ChatStatusPending,
		CreatedAt:    time.Now(),
	}
	if err := store.UpsertChat(chat); err != nil {
		t.Fatalf("UpsertChat failed: %v", err)
	}

	got, err := store.GetChat("chat1")
	if err != nil {
		t.Fatalf("GetChat failed: %v", err)
	}
	if len(got.Participants) != 2 || got.Status != models.ChatStatusPending {
		t.Errorf("unexpected chat: %+v", got)
	}

	// FindPrivateChat matches the pair in either order
	if _, err := store.FindPrivateChat("b", "a"); err != nil {
		t.Errorf("FindPrivateChat failed: %v", err)
	}
	if _, err := store.FindPrivateChat("a", "c"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	group := models.Chat{
		ID:           "chat2",
		Participants: []string{"a", "b", "c"},
		IsGroup:      true,
		Status:       models.ChatStatusAccepted,
		CreatedAt:    time.Now(),
	}
	if err := store.UpsertChat(group); err != nil {
		t.Fatalf("UpsertChat failed: %v", err)
	}

	pending, err := store.ListChatsByUser("a", models.ChatStatusPending)
	if err != nil {
		t.Fatalf("ListChatsByUser failed: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "chat1" {
		t.Errorf("expected only chat1 pending, got %+v", pending)
	}

	all, err := store.ListChatsByUser("a", models.ChatStatusPending, models.ChatStatusAccepted)
	if err != nil {
		t.Fatalf("ListChatsByUser failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 chats, got %d", len(all))
	}

	none, err := store.ListChatsByUser("z", models.ChatStatusPending, models.ChatStatusAccepted)
	if err != nil {
		t.Fatalf("ListChatsByUser failed: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected no chats, got %d", len(none))
	}
}

func TestStorage_Messages(t *testing.T) {
	store := newTestStorage(t)

	base := time.Now()
	for i := 0; i < 3; i++ {
		msg := models.Message{
			ID:        []string{"m1", "m2", "m3"}[i],
			ChatID:    "chat1",
			SenderID:  "a",
			Content:   []string{"first", "second", "third"}[i],
			IV:        "iv",
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := store.InsertMessage(msg); err != nil {
			t.Fatalf("InsertMessage failed: %v", err)
		}
	}

	messages, err := store.ListMessages("chat1", 0)
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(messages))
	}
	if messages[0].Content != "first" || messages[2].Content != "third" {
		t.Errorf("messages out of order: %+v", messages)
	}

	limited, err := store.ListMessages("chat1", 2)
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(limited) != 2 || limited[1].Content != "second" {
		t.Errorf("expected first two messages, got %+v", limited)
	}

	updated, err := store.UpdateMessage("m2", func(m *models.Message) {
		m.Content = "edited"
		m.Edited = true
	})
	if err != nil {
		t.Fatalf("UpdateMessage failed: %v", err)
	}
	if !updated.Edited || updated.Content != "edited" {
		t.Errorf("unexpected updated message: %+v", updated)
	}
	got, _ := store.GetMessage("m2")
	if got.Content != "edited" {
		t.Errorf("edit not persisted: %+v", got)
	}

	if err := store.DeleteMessage("m2"); err != nil {
		t.Fatalf("DeleteMessage failed: %v", err)
	}
	if _, err := store.GetMessage("m2"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := store.DeleteMessage("m2"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound deleting twice, got %v", err)
	}

	messages, _ = store.ListMessages("chat1", 0)
	if len(messages) != 2 {
		t.Errorf("expected 2 messages after delete, got %d", len(messages))
	}
}

func TestStorage_DeleteChatCascades(t *testing.T) {
	store := newTestStorage(t)

	chat := models.Chat{
		ID:           "chat1",
		Participants: []string{"a", "b"},
		Status:       models.ChatStatusAccepted,
		CreatedAt:    time.Now(),
	}
	if err := store.UpsertChat(chat); err != nil {
		t.Fatalf("UpsertChat failed: %v", err)
	}
	for _, id := range []string{"m1", "m2"} {
		err := store.InsertMessage(models.Message{
			ID: id, ChatID: "chat1", SenderID: "a", Content: "hi", IV: "iv", CreatedAt: time.Now(),
		})
		if err != nil {
			t.Fatalf("InsertMessage failed: %v", err)
		}
	}

	if err := store.DeleteChat("chat1"); err != nil {
		t.Fatalf("DeleteChat failed: %v", err)
	}

	if _, err := store.GetChat("chat1"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected chat gone, got %v", err)
	}
	messages, err := store.ListMessages("chat1", 0)
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(messages) != 0 {
		t.Errorf("expected no messages after cascade, got %d", len(messages))
	}
	if _, err := store.GetMessage("m1"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected message index cleared, got %v", err)
	}
}

func TestStorage_PushSubscriptions(t *testing.T) {
	store := newTestStorage(t)

	sub := []byte(`{"endpoint":"https://push.example.com/abc"}`)
	if err := store.UpsertPushSubscription("user1", sub); err != nil {
		t.Fatalf("UpsertPushSubscription failed: %v", err)
	}
	got, err := store.GetPushSubscription("user1")
	if err != nil {
		t.Fatalf("GetPushSubscription failed: %v", err)
	}
	if string(got) != string(sub) {
		t.Errorf("unexpected subscription: %s", got)
	}
	if _, err := store.GetPushSubscription("nobody"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
