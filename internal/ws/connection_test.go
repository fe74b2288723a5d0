package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"molva/internal/chat"
	"molva/internal/models"
)

type mockWS struct {
	readCh  chan ClientEvent
	writeCh chan ServerEvent
	closed  chan struct{}
	once    sync.Once
}

func newMockWS() *mockWS {
	return &mockWS{
		readCh:  make(chan ClientEvent),
		writeCh: make(chan ServerEvent, 10),
		closed:  make(chan struct{}),
	}
}

func (m *mockWS) ReadJSON(v interface{}) error {
	select {
	case ev, ok := <-m.readCh:
		if !ok {
			return errors.New("connection closed")
		}
		*(v.(*ClientEvent)) = ev
		return nil
	case <-m.closed:
		return errors.New("connection closed")
	}
}

func (m *mockWS) WriteJSON(v interface{}) error {
	select {
	case m.writeCh <- v.(ServerEvent):
		return nil
	case <-m.closed:
		return errors.New("connection closed")
	}
}

func (m *mockWS) Close() error {
	m.once.Do(func() { close(m.closed) })
	return nil
}

type mockHub struct {
	fromServer chan ServerEvent
	onlineCh   chan string
	joinCh     chan string
	relayCh    chan string
	sendCh     chan ServerEvent
	unregCh    chan string
}

func newMockHub() *mockHub {
	return &mockHub{
		fromServer: make(chan ServerEvent, 10),
		onlineCh:   make(chan string, 10),
		joinCh:     make(chan string, 10),
		relayCh:    make(chan string, 10),
		sendCh:     make(chan ServerEvent, 10),
		unregCh:    make(chan string, 10),
	}
}

func (h *mockHub) Register(connID string) chan ServerEvent { return h.fromServer }
func (h *mockHub) Unregister(connID string)                { h.unregCh <- connID }
func (h *mockHub) UserOnline(connID, userID string)        { h.onlineCh <- userID }
func (h *mockHub) JoinRoom(connID, chatID string)          { h.joinCh <- chatID }
func (h *mockHub) Relay(connID, event, chatID string, payload any) {
	h.relayCh <- event
}
func (h *mockHub) Send(connID, event string, payload any) {
	h.sendCh <- ServerEvent{Type: event, Data: payload}
}

type mockLifecycle struct {
	sendCh  chan chat.SendRequest
	sendErr error
}

func newMockLifecycle() *mockLifecycle {
	return &mockLifecycle{sendCh: make(chan chat.SendRequest, 10)}
}

func (s *mockLifecycle) Send(_ context.Context, req chat.SendRequest) (models.Message, error) {
	s.sendCh <- req
	if s.sendErr != nil {
		return models.Message{}, s.sendErr
	}
	return models.Message{ID: "m1", ChatID: req.ChatID, Content: req.Content}, nil
}

func (s *mockLifecycle) MarkDelivered(_ context.Context, chatID, messageID string) (models.Message, error) {
	return models.Message{ID: messageID, ChatID: chatID, Delivered: true}, nil
}

func (s *mockLifecycle) MarkRead(_ context.Context, chatID, messageID, readerID string) (models.Message, error) {
	return models.Message{ID: messageID, ChatID: chatID, IsRead: true}, nil
}

func (s *mockLifecycle) Edit(_ context.Context, messageID, newContent, actorID string) (models.Message, error) {
	return models.Message{ID: messageID, Content: newContent, Edited: true}, nil
}

func (s *mockLifecycle) Delete(_ context.Context, messageID, chatID, actorID string) error {
	return nil
}

type mockRelay struct {
	offerCh chan string
}

func (r *mockRelay) RelayCallOffer(chatID string, offer json.RawMessage, callerID string) error {
	r.offerCh <- chatID
	return nil
}

type testConn struct {
	ws      *mockWS
	hub     *mockHub
	service *mockLifecycle
	relay   *mockRelay
	done    chan error
}

func startConnection(t *testing.T) *testConn {
	t.Helper()
	tc := &testConn{
		ws:      newMockWS(),
		hub:     newMockHub(),
		service: newMockLifecycle(),
		relay:   &mockRelay{offerCh: make(chan string, 10)},
		done:    make(chan error, 1),
	}
	conn := NewConnection(tc.hub, tc.service, tc.relay, tc.ws, "conn1", nil)
	go func() { tc.done <- conn.Handle(context.Background()) }()
	return tc
}

func (tc *testConn) send(t *testing.T, ev ClientEvent) {
	t.Helper()
	select {
	case tc.ws.readCh <- ev:
	case <-time.After(time.Second):
		t.Fatal("timed out delivering client event")
	}
}

func (tc *testConn) stop(t *testing.T) {
	t.Helper()
	tc.ws.Close()
	select {
	case <-tc.done:
	case <-time.After(time.Second):
		t.Fatal("connection did not shut down")
	}
	select {
	case <-tc.hub.unregCh:
	case <-time.After(time.Second):
		t.Fatal("connection never unregistered")
	}
}

func TestConnection_Lifecycle(t *testing.T) {
	tc := startConnection(t)

	tc.send(t, ClientEvent{Type: models.EventUserOnline, Data: json.RawMessage(`{"userId":"alice"}`)})
	select {
	case userID := <-tc.hub.onlineCh:
		if userID != "alice" {
			t.Errorf("expected alice online, got %s", userID)
		}
	case <-time.After(time.Second):
		t.Fatal("userOnline never reached the hub")
	}

	tc.send(t, ClientEvent{Type: models.EventJoinRoom, Data: json.RawMessage(`{"chatId":"chat1"}`)})
	select {
	case chatID := <-tc.hub.joinCh:
		if chatID != "chat1" {
			t.Errorf("expected chat1 join, got %s", chatID)
		}
	case <-time.After(time.Second):
		t.Fatal("joinRoom never reached the hub")
	}

	// Hub-originated events reach the socket
	tc.hub.fromServer <- ServerEvent{Type: models.EventReceiveMessage, Data: "hi"}
	select {
	case ev := <-tc.ws.writeCh:
		if ev.Type != models.EventReceiveMessage {
			t.Errorf("unexpected outbound event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("server event never written to the socket")
	}

	tc.stop(t)
}

func TestConnection_Typing(t *testing.T) {
	tc := startConnection(t)

	tc.send(t, ClientEvent{Type: models.EventTyping, Data: json.RawMessage(`{"chatId":"chat1","userId":"alice"}`)})
	select {
	case event := <-tc.hub.relayCh:
		if event != models.EventTyping {
			t.Errorf("expected typing relay, got %s", event)
		}
	case <-time.After(time.Second):
		t.Fatal("typing event never relayed")
	}

	tc.stop(t)
}

func TestConnection_SendMessageAck(t *testing.T) {
	tc := startConnection(t)

	tc.send(t, ClientEvent{
		Type:  models.EventSendMessage,
		AckID: "ack1",
		Data:  json.RawMessage(`{"chatId":"chat1","sender":"alice","content":"c","iv":"iv"}`),
	})

	select {
	case req := <-tc.service.sendCh:
		if req.ChatID != "chat1" || req.SenderID != "alice" || req.OriginConnID != "conn1" {
			t.Errorf("unexpected send request: %+v", req)
		}
	case <-time.After(time.Second):
		t.Fatal("send never reached the service")
	}

	select {
	case ev := <-tc.hub.sendCh:
		if ev.Type != models.EventAck {
			t.Fatalf("expected ack event, got %s", ev.Type)
		}
		ack := ev.Data.(Ack)
		if ack.AckID != "ack1" || !ack.Success {
			t.Errorf("unexpected ack: %+v", ack)
		}
	case <-time.After(time.Second):
		t.Fatal("ack never sent")
	}

	tc.stop(t)
}

func TestConnection_SendMessageErrorAck(t *testing.T) {
	tc := startConnection(t)
	tc.service.sendErr = models.Validationf("message requires either content and iv, or a fileUrl")

	tc.send(t, ClientEvent{
		Type:  models.EventSendMessage,
		AckID: "ack1",
		Data:  json.RawMessage(`{"chatId":"chat1","sender":"alice","content":"c","iv":"iv"}`),
	})

	<-tc.service.sendCh
	select {
	case ev := <-tc.hub.sendCh:
		ack := ev.Data.(Ack)
		if ack.Success {
			t.Error("expected failed ack")
		}
		if ack.Message != "message requires either content and iv, or a fileUrl" {
			t.Errorf("unexpected ack message: %q", ack.Message)
		}
	case <-time.After(time.Second):
		t.Fatal("ack never sent")
	}

	tc.stop(t)
}

func TestConnection_VoiceCallOffer(t *testing.T) {
	tc := startConnection(t)

	tc.send(t, ClientEvent{
		Type:  models.EventVoiceCallOffer,
		AckID: "ack1",
		Data:  json.RawMessage(`{"chatId":"chat1","offer":{"sdp":"v=0"},"caller":"alice"}`),
	})

	select {
	case chatID := <-tc.relay.offerCh:
		if chatID != "chat1" {
			t.Errorf("expected offer for chat1, got %s", chatID)
		}
	case <-time.After(time.Second):
		t.Fatal("offer never relayed")
	}

	select {
	case ev := <-tc.hub.sendCh:
		if ack := ev.Data.(Ack); !ack.Success {
			t.Errorf("expected success ack, got %+v", ack)
		}
	case <-time.After(time.Second):
		t.Fatal("ack never sent")
	}

	tc.stop(t)
}

func TestConnection_WSError(t *testing.T) {
	tc := startConnection(t)

	tc.ws.Close()

	select {
	case err := <-tc.done:
		if err == nil {
			t.Error("expected read error to surface")
		}
	case <-time.After(time.Second):
		t.Fatal("connection did not shut down on read error")
	}
	select {
	case <-tc.hub.unregCh:
	case <-time.After(time.Second):
		t.Fatal("connection never unregistered")
	}
}
