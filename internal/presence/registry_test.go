package presence

import (
	"slices"
	"testing"
)

func TestRegistry_OnlineOffline(t *testing.T) {
	reg := NewRegistry()

	reg.MarkOnline("user1", "conn1")
	reg.MarkOnline("user2", "conn2")

	connID, ok := reg.Lookup("user1")
	if !ok || connID != "conn1" {
		t.Errorf("expected conn1, got %q ok=%v", connID, ok)
	}

	online := reg.Online()
	slices.Sort(online)
	if !slices.Equal(online, []string{"user1", "user2"}) {
		t.Errorf("unexpected online set: %v", online)
	}

	userID, ok := reg.MarkOffline("conn1")
	if !ok || userID != "user1" {
		t.Errorf("expected user1, got %q ok=%v", userID, ok)
	}
	if _, ok := reg.Lookup("user1"); ok {
		t.Error("user1 still online after MarkOffline")
	}
}

func TestRegistry_NewerConnectionReplacesOlder(t *testing.T) {
	reg := NewRegistry()

	reg.MarkOnline("user1", "conn1")
	reg.MarkOnline("user1", "conn2")

	connID, ok := reg.Lookup("user1")
	if !ok || connID != "conn2" {
		t.Errorf("expected conn2, got %q ok=%v", connID, ok)
	}

	// The stale connection no longer owns the mapping
	if _, ok := reg.MarkOffline("conn1"); ok {
		t.Error("stale conn1 should not remove the mapping")
	}
	if _, ok := reg.Lookup("user1"); !ok {
		t.Error("user1 went offline via a stale connection")
	}

	userID, ok := reg.MarkOffline("conn2")
	if !ok || userID != "user1" {
		t.Errorf("expected user1, got %q ok=%v", userID, ok)
	}
}

func TestRegistry_MarkOfflineUnknownConn(t *testing.T) {
	reg := NewRegistry()
	if _, ok := reg.MarkOffline("ghost"); ok {
		t.Error("expected ok=false for never-registered connection")
	}
}
