package murmurws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/tj/assert"

	murmurtable "github.com/murmurchat/murmur-backend/murmur-table"
	"github.com/murmurchat/murmur-backend/murmur-ws/messagedao"
)

type fakeRegistry struct {
	connections map[string]string
}

func (f *fakeRegistry) Lookup(_ context.Context, sub string) (string, bool, error) {
	id, ok := f.connections[sub]
	return id, ok, nil
}

type fakeStore struct {
	mu     sync.Mutex
	stored []messagedao.Message
	err    error
}

func (f *fakeStore) Put(_ context.Context, senderSub, receiverSub, messageID string, sender murmurtable.User, timestamp, content, messageType string) (messagedao.Message, error) {
	if f.err != nil {
		return messagedao.Message{}, f.err
	}
	message := messagedao.Message{
		PartitionKey: murmurtable.PairPK(senderSub, receiverSub),
		SortKey:      murmurtable.MessageSK(messageID),
		EntityType:   murmurtable.EntityMessage,
		Timestamp:    timestamp,
		Content:      content,
		MessageType:  messageType,
		User:         sender,
	}
	f.mu.Lock()
	f.stored = append(f.stored, message)
	f.mu.Unlock()
	return message, nil
}

type fakeTransport struct {
	mu    sync.Mutex
	sends map[string][]Frame
}

func (f *fakeTransport) Send(_ context.Context, connectionID string, data []byte) error {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sends == nil {
		f.sends = map[string][]Frame{}
	}
	f.sends[connectionID] = append(f.sends[connectionID], frame)
	return nil
}

func (f *fakeTransport) last(t *testing.T, connectionID string) (string, map[string]interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	frames := f.sends[connectionID]
	assert.NotEmpty(t, frames)
	frame := frames[len(frames)-1]
	var data map[string]interface{}
	assert.Nil(t, json.Unmarshal(frame.Data, &data))
	return frame.Action, data
}

func newTestRouter(registry *fakeRegistry, store *fakeStore, transport *fakeTransport) *Router {
	return &Router{
		Connections: registry,
		Messages:    store,
		Push:        transport,
		Logger:      zerolog.Nop(),
		NewID:       func() string { return "01HV0000000000000000000000" },
		Now:         func() time.Time { return time.Date(2024, 1, 1, 12, 0, 0, 123e6, time.UTC) },
	}
}

func sendBody(data map[string]interface{}) string {
	raw, _ := json.Marshal(map[string]interface{}{"action": ActionSendMessage, "data": data})
	return string(raw)
}

func TestHandleSend(t *testing.T) {
	alice := murmurtable.User{Sub: "a1", Name: "Alice", Email: "alice@example.com"}

	t.Run("persists, pushes, and acks with the same id and timestamp", func(t *testing.T) {
		var (
			registry  = &fakeRegistry{connections: map[string]string{"b1": "conn-b"}}
			store     = &fakeStore{}
			transport = &fakeTransport{}
			router    = newTestRouter(registry, store, transport)
		)

		err := router.HandleSend(context.Background(), alice, "conn-a", sendBody(map[string]interface{}{
			"tempId":      "t1",
			"content":     "hi",
			"messageType": "text",
			"chatType":    "private",
			"userSub":     "b1",
		}))
		assert.Nil(t, err)

		assert.Len(t, store.stored, 1)
		stored := store.stored[0]
		assert.Equal(t, "users#b1|a1", stored.PartitionKey)
		assert.Equal(t, "message#01HV0000000000000000000000", stored.SortKey)
		assert.Equal(t, "2024-01-01T12:00:00.123Z", stored.Timestamp)

		action, ack := transport.last(t, "conn-a")
		assert.Equal(t, ActionMessageStatus, action)
		assert.Equal(t, StatusOk, ack["status"])
		assert.Equal(t, "t1", ack["tempId"])
		assert.Equal(t, stored.Timestamp, ack["timestamp"])
		assert.Equal(t, "message#"+ack["messageId"].(string), stored.SortKey)

		action, push := transport.last(t, "conn-b")
		assert.Equal(t, ActionReceiveMessage, action)
		assert.Equal(t, "hi", push["content"])
		assert.Equal(t, stored.Timestamp, push["timestamp"])
		assert.Equal(t, "a1", push["sender"].(map[string]interface{})["sub"])
	})

	t.Run("self-send is rejected and nothing is written", func(t *testing.T) {
		var (
			registry  = &fakeRegistry{}
			store     = &fakeStore{}
			transport = &fakeTransport{}
			router    = newTestRouter(registry, store, transport)
		)

		err := router.HandleSend(context.Background(), alice, "conn-a", sendBody(map[string]interface{}{
			"tempId":   "t1",
			"content":  "hello me",
			"chatType": "private",
			"userSub":  "a1",
		}))
		assert.Nil(t, err)
		assert.Len(t, store.stored, 0)

		action, data := transport.last(t, "conn-a")
		assert.Equal(t, ActionMessageStatus, action)
		assert.Equal(t, StatusError, data["status"])
		assert.Equal(t, "You can't send a message to yourself", data["message"])
	})

	t.Run("offline recipient still persists and acks ok", func(t *testing.T) {
		var (
			registry  = &fakeRegistry{}
			store     = &fakeStore{}
			transport = &fakeTransport{}
			router    = newTestRouter(registry, store, transport)
		)

		err := router.HandleSend(context.Background(), alice, "conn-a", sendBody(map[string]interface{}{
			"tempId":   "t1",
			"content":  "hi",
			"chatType": "private",
			"userSub":  "b1",
		}))
		assert.Nil(t, err)
		assert.Len(t, store.stored, 1)

		_, ack := transport.last(t, "conn-a")
		assert.Equal(t, StatusOk, ack["status"])
		assert.Len(t, transport.sends, 1)
	})

	t.Run("store failure acks an error", func(t *testing.T) {
		var (
			registry  = &fakeRegistry{connections: map[string]string{"b1": "conn-b"}}
			store     = &fakeStore{err: fmt.Errorf("boom")}
			transport = &fakeTransport{}
			router    = newTestRouter(registry, store, transport)
		)

		err := router.HandleSend(context.Background(), alice, "conn-a", sendBody(map[string]interface{}{
			"tempId":   "t1",
			"content":  "hi",
			"chatType": "private",
			"userSub":  "b1",
		}))
		assert.Nil(t, err)

		_, ack := transport.last(t, "conn-a")
		assert.Equal(t, StatusError, ack["status"])
	})

	t.Run("group chats are not implemented", func(t *testing.T) {
		var (
			store     = &fakeStore{}
			transport = &fakeTransport{}
			router    = newTestRouter(&fakeRegistry{}, store, transport)
		)

		err := router.HandleSend(context.Background(), alice, "conn-a", sendBody(map[string]interface{}{
			"tempId":   "t1",
			"content":  "hi all",
			"chatType": "group",
			"groupId":  "g1",
		}))
		assert.Nil(t, err)
		assert.Len(t, store.stored, 0)

		_, data := transport.last(t, "conn-a")
		assert.Equal(t, StatusError, data["status"])
	})

	t.Run("missing recipient is a validation error", func(t *testing.T) {
		var (
			store     = &fakeStore{}
			transport = &fakeTransport{}
			router    = newTestRouter(&fakeRegistry{}, store, transport)
		)

		err := router.HandleSend(context.Background(), alice, "conn-a", sendBody(map[string]interface{}{
			"tempId":   "t1",
			"content":  "hi",
			"chatType": "private",
		}))
		assert.Nil(t, err)
		assert.Len(t, store.stored, 0)

		_, data := transport.last(t, "conn-a")
		assert.Equal(t, StatusError, data["status"])
		assert.Equal(t, "Request body failed validation", data["message"])
	})

	t.Run("unparseable body reports a parse error", func(t *testing.T) {
		var (
			transport = &fakeTransport{}
			router    = newTestRouter(&fakeRegistry{}, &fakeStore{}, transport)
		)

		err := router.HandleSend(context.Background(), alice, "conn-a", "No body in request")
		assert.Nil(t, err)

		_, data := transport.last(t, "conn-a")
		assert.Equal(t, "Couldn't parse request body", data["message"])
	})

	t.Run("ack is the last frame the sender sees", func(t *testing.T) {
		var (
			registry  = &fakeRegistry{connections: map[string]string{"b1": "conn-b"}}
			transport = &fakeTransport{}
			router    = newTestRouter(registry, &fakeStore{}, transport)
		)

		err := router.HandleSend(context.Background(), alice, "conn-a", sendBody(map[string]interface{}{
			"tempId":   "t1",
			"content":  "hi",
			"chatType": "private",
			"userSub":  "b1",
		}))
		assert.Nil(t, err)

		frames := transport.sends["conn-a"]
		assert.Len(t, frames, 1)
		assert.Equal(t, ActionMessageStatus, frames[len(frames)-1].Action)
	})
}
