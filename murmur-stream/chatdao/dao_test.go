package chatdao

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/savaki/ddb"
	"github.com/tj/assert"

	murmurtable "github.com/murmurchat/murmur-backend/murmur-table"
)

func withTable(t *testing.T, callback func(ctx context.Context, dao *DAO)) {
	var (
		s = session.Must(session.NewSession(aws.NewConfig().
			WithCredentials(credentials.NewStaticCredentials("blah", "blah", "")).
			WithEndpoint("http://localhost:8000").
			WithRegion("us-west-2")))
		api       = dynamodb.New(s)
		client    = ddb.New(api)
		tableName = fmt.Sprintf("table-%v", time.Now().UnixNano())
		table     = client.MustTable(tableName, Chat{})
		dao       = New(api, tableName)
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := table.CreateTableIfNotExists(ctx)
	assert.Nil(t, err)
	defer table.DeleteTableIfExists(ctx)

	callback(ctx, dao)
}

func TestApplyMessage(t *testing.T) {
	var (
		alice = murmurtable.User{Sub: "a1", Name: "Alice", Email: "alice@example.com"}
		bob   = murmurtable.User{Sub: "b1", Name: "Bob", Email: "bob@example.com"}
	)

	event := func(id, content string) MessageEvent {
		return MessageEvent{
			MessageID:   id,
			Timestamp:   murmurtable.Timestamp(time.Now()),
			Content:     content,
			MessageType: murmurtable.MessageTypeText,
			ChatType:    murmurtable.ChatTypePrivate,
			Sender:      alice,
			Receiver:    bob,
		}
	}

	withTable(t, func(ctx context.Context, dao *DAO) {
		t.Run("first message creates both projections", func(t *testing.T) {
			err := dao.ApplyMessage(ctx, event("m1", "hello"))
			assert.Nil(t, err)

			senderSide, err := dao.Get(ctx, alice.Sub, bob.Sub)
			assert.Nil(t, err)
			assert.NotNil(t, senderSide)
			assert.Equal(t, "Bob", senderSide.Title)
			assert.Equal(t, 0, senderSide.UnreadMessages)
			assert.Equal(t, "hello", senderSide.LastMessage.Preview)

			receiverSide, err := dao.Get(ctx, bob.Sub, alice.Sub)
			assert.Nil(t, err)
			assert.NotNil(t, receiverSide)
			assert.Equal(t, "Alice", receiverSide.Title)
			assert.Equal(t, 1, receiverSide.UnreadMessages)
			assert.Equal(t, alice.Sub, receiverSide.LastMessage.UserSub)
		})

		t.Run("second message increments only the receiver", func(t *testing.T) {
			err := dao.ApplyMessage(ctx, event("m2", "still there?"))
			assert.Nil(t, err)

			senderSide, err := dao.Get(ctx, alice.Sub, bob.Sub)
			assert.Nil(t, err)
			assert.Equal(t, 0, senderSide.UnreadMessages)

			receiverSide, err := dao.Get(ctx, bob.Sub, alice.Sub)
			assert.Nil(t, err)
			assert.Equal(t, 2, receiverSide.UnreadMessages)
			assert.Equal(t, "still there?", receiverSide.LastMessage.Preview)
		})

		t.Run("redelivered record is a no-op", func(t *testing.T) {
			err := dao.ApplyMessage(ctx, event("m2", "still there?"))
			assert.Nil(t, err)

			receiverSide, err := dao.Get(ctx, bob.Sub, alice.Sub)
			assert.Nil(t, err)
			assert.Equal(t, 2, receiverSide.UnreadMessages)
		})

		t.Run("long content is truncated in the preview", func(t *testing.T) {
			err := dao.ApplyMessage(ctx, event("m3", strings.Repeat("x", 500)))
			assert.Nil(t, err)

			receiverSide, err := dao.Get(ctx, bob.Sub, alice.Sub)
			assert.Nil(t, err)
			assert.Equal(t, previewRunes, len([]rune(receiverSide.LastMessage.Preview)))
		})

		t.Run("group chats are rejected", func(t *testing.T) {
			e := event("m4", "hello, group")
			e.ChatType = murmurtable.ChatTypeGroup
			err := dao.ApplyMessage(ctx, e)
			assert.Equal(t, murmurtable.ErrNotImplemented, err)
		})
	})
}

func TestMarkRead(t *testing.T) {
	var (
		alice = murmurtable.User{Sub: "a1", Name: "Alice"}
		bob   = murmurtable.User{Sub: "b1", Name: "Bob"}
	)

	withTable(t, func(ctx context.Context, dao *DAO) {
		err := dao.ApplyMessage(ctx, MessageEvent{
			MessageID:   "m1",
			Timestamp:   murmurtable.Timestamp(time.Now()),
			Content:     "hello",
			MessageType: murmurtable.MessageTypeText,
			Sender:      alice,
			Receiver:    bob,
		})
		assert.Nil(t, err)

		t.Run("zeroes the unread counter", func(t *testing.T) {
			err := dao.MarkRead(ctx, bob.Sub, alice.Sub)
			assert.Nil(t, err)

			receiverSide, err := dao.Get(ctx, bob.Sub, alice.Sub)
			assert.Nil(t, err)
			assert.Equal(t, 0, receiverSide.UnreadMessages)
		})

		t.Run("missing projection fails with ErrChatNotFound", func(t *testing.T) {
			err := dao.MarkRead(ctx, bob.Sub, "nobody")
			assert.Equal(t, ErrChatNotFound, err)
		})
	})
}

func TestQueryByOwner(t *testing.T) {
	var (
		alice = murmurtable.User{Sub: "a1", Name: "Alice"}
		bob   = murmurtable.User{Sub: "b1", Name: "Bob"}
		carol = murmurtable.User{Sub: "c1", Name: "Carol"}
	)

	withTable(t, func(ctx context.Context, dao *DAO) {
		base := time.Now()
		err := dao.ApplyMessage(ctx, MessageEvent{
			MessageID: "m1", Timestamp: murmurtable.Timestamp(base),
			Content: "hi bob", MessageType: murmurtable.MessageTypeText,
			Sender: alice, Receiver: bob,
		})
		assert.Nil(t, err)

		err = dao.ApplyMessage(ctx, MessageEvent{
			MessageID: "m2", Timestamp: murmurtable.Timestamp(base.Add(time.Second)),
			Content: "hi alice", MessageType: murmurtable.MessageTypeText,
			Sender: carol, Receiver: alice,
		})
		assert.Nil(t, err)

		chats, err := dao.QueryByOwner(ctx, alice.Sub)
		assert.Nil(t, err)
		assert.Len(t, chats, 2)
		assert.Equal(t, "Carol", chats[0].Title)
		assert.Equal(t, "Bob", chats[1].Title)

		chats, err = dao.QueryByOwner(ctx, "nobody")
		assert.Nil(t, err)
		assert.Len(t, chats, 0)
	})
}
