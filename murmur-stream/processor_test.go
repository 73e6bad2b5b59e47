package murmurstream

import (
	"context"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/rs/zerolog"
	"github.com/tj/assert"

	murmurcli "github.com/murmurchat/murmur-backend/murmur-cli"
	murmurddb "github.com/murmurchat/murmur-backend/murmur-ddb"
	murmuridentity "github.com/murmurchat/murmur-backend/murmur-identity"
	"github.com/murmurchat/murmur-backend/murmur-stream/chatdao"
	murmurtable "github.com/murmurchat/murmur-backend/murmur-table"
)

type fakeResolver struct {
	users map[string]murmurtable.User
}

func (f *fakeResolver) UserBySub(_ context.Context, sub string) (murmurtable.User, error) {
	if user, ok := f.users[sub]; ok {
		return user, nil
	}
	return murmurtable.User{}, murmuridentity.ErrUserNotFound
}

func (f *fakeResolver) UserByEmail(_ context.Context, email string) (murmurtable.User, error) {
	for _, user := range f.users {
		if user.Email == email {
			return user, nil
		}
	}
	return murmurtable.User{}, murmuridentity.ErrUserNotFound
}

type fakeProjections struct {
	applied []chatdao.MessageEvent
	err     error
}

func (f *fakeProjections) ApplyMessage(_ context.Context, event chatdao.MessageEvent) error {
	if f.err != nil {
		return f.err
	}
	f.applied = append(f.applied, event)
	return nil
}

func messageRecord(eventName, pk, sk, senderSub string) murmurddb.Record {
	return murmurddb.Record{
		EventID:   "evt-1",
		EventName: eventName,
		Change: murmurddb.Change{
			SequenceNumber: "seq-1",
			NewImage: map[string]*dynamodb.AttributeValue{
				"partitionKey": {S: aws.String(pk)},
				"sortKey":      {S: aws.String(sk)},
				"entityType":   {S: aws.String(murmurtable.EntityMessage)},
				"timestamp":    {S: aws.String("2024-01-01T12:00:00.123Z")},
				"content":      {S: aws.String("hi")},
				"messageType":  {S: aws.String(murmurtable.MessageTypeText)},
				"user": {M: map[string]*dynamodb.AttributeValue{
					"sub":   {S: aws.String(senderSub)},
					"name":  {S: aws.String("Alice")},
					"email": {S: aws.String("alice@example.com")},
				}},
			},
		},
	}
}

func TestHandleRecord(t *testing.T) {
	var (
		alice    = murmurtable.User{Sub: "a1", Name: "Alice", Email: "alice@example.com"}
		bob      = murmurtable.User{Sub: "b1", Name: "Bobby", Email: "bob@example.com"}
		resolver = &fakeResolver{users: map[string]murmurtable.User{"a1": alice, "b1": bob}}
	)

	newProcessor := func(chats Projections) *Processor {
		return &Processor{
			Resolver: resolver,
			Chats:    chats,
			Logger:   zerolog.Nop(),
		}
	}

	t.Run("message insert fans out with resolved identities", func(t *testing.T) {
		chats := &fakeProjections{}
		err := newProcessor(chats).HandleRecord(context.Background(),
			messageRecord("INSERT", murmurtable.PairPK("a1", "b1"), murmurtable.MessageSK("m1"), "a1"))
		assert.Nil(t, err)
		assert.Len(t, chats.applied, 1)

		event := chats.applied[0]
		assert.Equal(t, "m1", event.MessageID)
		assert.Equal(t, alice, event.Sender)
		assert.Equal(t, bob, event.Receiver)
		assert.Equal(t, "hi", event.Content)
		assert.Equal(t, "2024-01-01T12:00:00.123Z", event.Timestamp)
	})

	t.Run("sender classification follows the embedded sub", func(t *testing.T) {
		chats := &fakeProjections{}
		err := newProcessor(chats).HandleRecord(context.Background(),
			messageRecord("INSERT", murmurtable.PairPK("a1", "b1"), murmurtable.MessageSK("m2"), "b1"))
		assert.Nil(t, err)
		assert.Equal(t, bob, chats.applied[0].Sender)
		assert.Equal(t, alice, chats.applied[0].Receiver)
	})

	t.Run("non-insert records are ignored", func(t *testing.T) {
		chats := &fakeProjections{}
		err := newProcessor(chats).HandleRecord(context.Background(),
			messageRecord("MODIFY", murmurtable.PairPK("a1", "b1"), murmurtable.MessageSK("m1"), "a1"))
		assert.Nil(t, err)
		assert.Len(t, chats.applied, 0)
	})

	t.Run("non-message entities are ignored", func(t *testing.T) {
		chats := &fakeProjections{}
		record := murmurddb.Record{
			EventName: "INSERT",
			Change: murmurddb.Change{
				NewImage: map[string]*dynamodb.AttributeValue{
					"partitionKey": {S: aws.String(murmurtable.UserPK("a1"))},
					"sortKey":      {S: aws.String(murmurtable.SortKeyConnection)},
					"entityType":   {S: aws.String(murmurtable.EntityConnection)},
				},
			},
		}
		err := newProcessor(chats).HandleRecord(context.Background(), record)
		assert.Nil(t, err)
		assert.Len(t, chats.applied, 0)
	})

	t.Run("resolver failure aborts the fan-out", func(t *testing.T) {
		chats := &fakeProjections{}
		err := newProcessor(chats).HandleRecord(context.Background(),
			messageRecord("INSERT", murmurtable.PairPK("a1", "z9"), murmurtable.MessageSK("m1"), "a1"))
		assert.NotNil(t, err)
		assert.Len(t, chats.applied, 0)
	})

	t.Run("projection failure surfaces as a record failure", func(t *testing.T) {
		chats := &fakeProjections{err: fmt.Errorf("boom")}
		err := newProcessor(chats).HandleRecord(context.Background(),
			messageRecord("INSERT", murmurtable.PairPK("a1", "b1"), murmurtable.MessageSK("m1"), "a1"))
		assert.NotNil(t, err)
	})
}

func TestHandleEventBatchFailures(t *testing.T) {
	processor := &Processor{
		Resolver: &fakeResolver{users: map[string]murmurtable.User{"a1": {Sub: "a1"}, "b1": {Sub: "b1"}}},
		Chats:    &fakeProjections{},
		Logger:   zerolog.Nop(),
	}
	handler := murmurddb.NewHandler(murmurcli.Service{Name: "stream-processor", Version: "test"}, processor.HandleRecord)

	good := messageRecord("INSERT", murmurtable.PairPK("a1", "b1"), murmurtable.MessageSK("m1"), "a1")
	bad := messageRecord("INSERT", murmurtable.PairPK("a1", "z9"), murmurtable.MessageSK("m2"), "a1")
	bad.Change.SequenceNumber = "seq-bad"

	response, err := handler.HandleEvent(context.Background(), murmurddb.Event{Records: []murmurddb.Record{good, bad}})
	assert.Nil(t, err)
	assert.Len(t, response.BatchItemFailures, 1)
	assert.Equal(t, "seq-bad", response.BatchItemFailures[0].ItemIdentifier)
}
