package chatdao

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/savaki/ddb"

	murmurtable "github.com/murmurchat/murmur-backend/murmur-table"
)

// ErrChatNotFound is returned when an operation targets a chat the
// caller does not have a projection for.
var ErrChatNotFound = fmt.Errorf("chat not found")

// previewRunes caps the denormalized preview carried on chat lists.
const previewRunes = 128

// DAO provides access to the chat projection records in the chat table.
type DAO struct {
	client    *ddb.DDB
	table     *ddb.Table
	api       dynamodbiface.DynamoDBAPI
	tableName string
}

// New creates a new chats DAO.
func New(api dynamodbiface.DynamoDBAPI, tableName string) *DAO {
	client := ddb.New(api)
	return &DAO{
		client:    client,
		table:     client.MustTable(tableName, Chat{}),
		api:       api,
		tableName: tableName,
	}
}

// Get returns the projection owner keeps for peer, or nil when none
// exists yet.
func (d *DAO) Get(ctx context.Context, ownerSub, peerSub string) (*Chat, error) {
	var chat Chat
	err := d.table.Get(murmurtable.UserPK(ownerSub)).
		Range(murmurtable.ChatSK(peerSub)).
		ScanWithContext(ctx, &chat)
	if err != nil {
		if ddb.IsItemNotFoundError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get chat %v for %v: %w", peerSub, ownerSub, err)
	}
	if chat.SortKey == "" {
		return nil, nil
	}
	return &chat, nil
}

// QueryByOwner returns the owner's chats ordered by recency of their
// latest message, newest first.
func (d *DAO) QueryByOwner(ctx context.Context, ownerSub string) ([]Chat, error) {
	input := dynamodb.QueryInput{
		TableName:              aws.String(d.tableName),
		IndexName:              aws.String(murmurtable.GSI2),
		KeyConditionExpression: aws.String("#pk = :pk and begins_with(#sk, :prefix)"),
		ExpressionAttributeNames: map[string]*string{
			"#pk": aws.String("gsi2PK"),
			"#sk": aws.String("gsi2SK"),
		},
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
			":pk":     {S: aws.String(murmurtable.UserPK(ownerSub))},
			":prefix": {S: aws.String(murmurtable.ChatTimestampSKPrefix())},
		},
		ScanIndexForward: aws.Bool(false),
	}

	var chats []Chat
	for {
		output, err := d.api.QueryWithContext(ctx, &input)
		if err != nil {
			return nil, fmt.Errorf("failed to query chats for %v: %w", ownerSub, err)
		}
		var page []Chat
		if err := dynamodbattribute.UnmarshalListOfMaps(output.Items, &page); err != nil {
			return nil, fmt.Errorf("failed to unmarshal chats for %v: %w", ownerSub, err)
		}
		chats = append(chats, page...)
		if output.LastEvaluatedKey == nil {
			return chats, nil
		}
		input.ExclusiveStartKey = output.LastEvaluatedKey
	}
}

// MarkRead zeroes the unread counter on the projection owner keeps for
// peer. Targeting a projection that does not exist fails with
// ErrChatNotFound rather than creating an empty one.
func (d *DAO) MarkRead(ctx context.Context, ownerSub, peerSub string) error {
	_, err := d.api.UpdateItemWithContext(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]*dynamodb.AttributeValue{
			"partitionKey": {S: aws.String(murmurtable.UserPK(ownerSub))},
			"sortKey":      {S: aws.String(murmurtable.ChatSK(peerSub))},
		},
		UpdateExpression:    aws.String("SET #unread = :zero"),
		ConditionExpression: aws.String("attribute_exists(partitionKey) and attribute_exists(sortKey)"),
		ExpressionAttributeNames: map[string]*string{
			"#unread": aws.String("unreadMessages"),
		},
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
			":zero": {N: aws.String("0")},
		},
	})
	if err != nil {
		var ae awserr.Error
		if errors.As(err, &ae) && ae.Code() == dynamodb.ErrCodeConditionalCheckFailedException {
			return ErrChatNotFound
		}
		return fmt.Errorf("failed to mark chat %v read for %v: %w", peerSub, ownerSub, err)
	}
	return nil
}

// MessageEvent carries the fields of a newly stored message that the
// projections fold in.
type MessageEvent struct {
	MessageID   string
	Timestamp   string
	Content     string
	MessageType string
	ChatType    string
	Sender      murmurtable.User
	Receiver    murmurtable.User
}

// ApplyMessage folds one new message into both participants' chat
// projections in a single transaction: the receiver's unread counter
// increments, the sender's does not, and both sides take the message as
// their new tail. Projections that already recorded this message id are
// left untouched, so a redelivered record is a no-op.
func (d *DAO) ApplyMessage(ctx context.Context, event MessageEvent) error {
	if event.ChatType != "" && event.ChatType != murmurtable.ChatTypePrivate {
		return murmurtable.ErrNotImplemented
	}

	senderSide, err := d.Get(ctx, event.Sender.Sub, event.Receiver.Sub)
	if err != nil {
		return err
	}
	receiverSide, err := d.Get(ctx, event.Receiver.Sub, event.Sender.Sub)
	if err != nil {
		return err
	}

	lastMessage := murmurtable.LastMessage{
		UserName:    event.Sender.Name,
		UserSub:     event.Sender.Sub,
		Timestamp:   event.Timestamp,
		Preview:     preview(event.Content),
		MessageType: event.MessageType,
	}

	applySender := senderSide == nil || senderSide.LastMessageID != event.MessageID
	applyReceiver := receiverSide == nil || receiverSide.LastMessageID != event.MessageID

	senderUnread := 0
	if senderSide != nil {
		senderUnread = senderSide.UnreadMessages
	}
	receiverUnread := 1
	if receiverSide != nil {
		receiverUnread = receiverSide.UnreadMessages + 1
	}

	switch {
	case applySender && applyReceiver:
		_, err = d.client.TransactWriteItemsWithContext(ctx,
			d.table.Put(projection(event.Sender, event.Receiver, senderUnread, lastMessage, event)),
			d.table.Put(projection(event.Receiver, event.Sender, receiverUnread, lastMessage, event)),
		)
	case applySender:
		err = d.table.Put(projection(event.Sender, event.Receiver, senderUnread, lastMessage, event)).RunWithContext(ctx)
	case applyReceiver:
		err = d.table.Put(projection(event.Receiver, event.Sender, receiverUnread, lastMessage, event)).RunWithContext(ctx)
	default:
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to apply message %v to chat projections: %w", event.MessageID, err)
	}
	return nil
}

// projection builds the owner's side of the conversation with peer.
func projection(owner, peer murmurtable.User, unread int, lastMessage murmurtable.LastMessage, event MessageEvent) Chat {
	return Chat{
		PartitionKey:   murmurtable.UserPK(owner.Sub),
		SortKey:        murmurtable.ChatSK(peer.Sub),
		EntityType:     murmurtable.EntityChat,
		GSI2PK:         murmurtable.UserPK(owner.Sub),
		GSI2SK:         murmurtable.ChatTimestampSK(event.Timestamp),
		Title:          peer.Name,
		ChatType:       murmurtable.ChatTypePrivate,
		User:           peer,
		UnreadMessages: unread,
		LastMessage:    lastMessage,
		LastMessageID:  event.MessageID,
	}
}

func preview(content string) string {
	runes := []rune(content)
	if len(runes) <= previewRunes {
		return content
	}
	return string(runes[:previewRunes])
}
