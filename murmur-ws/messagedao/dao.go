package messagedao

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/savaki/ddb"

	murmurtable "github.com/murmurchat/murmur-backend/murmur-table"
)

// DAO provides access to the message records in the chat table.
type DAO struct {
	table     *ddb.Table
	api       dynamodbiface.DynamoDBAPI
	tableName string
}

// New creates a new messages DAO.
func New(api dynamodbiface.DynamoDBAPI, tableName string) *DAO {
	return &DAO{
		table:     ddb.New(api).MustTable(tableName, Message{}),
		api:       api,
		tableName: tableName,
	}
}

// Put stores one message under the pair partition shared by sender and
// receiver.
func (d *DAO) Put(ctx context.Context, senderSub, receiverSub, messageID string, sender murmurtable.User, timestamp, content, messageType string) (Message, error) {
	message := Message{
		PartitionKey: murmurtable.PairPK(senderSub, receiverSub),
		SortKey:      murmurtable.MessageSK(messageID),
		EntityType:   murmurtable.EntityMessage,
		Timestamp:    timestamp,
		Content:      content,
		MessageType:  messageType,
		User:         sender,
	}
	if err := d.table.Put(message).RunWithContext(ctx); err != nil {
		return Message{}, fmt.Errorf("failed to put message %v: %w", message.SortKey, err)
	}
	return message, nil
}

// QueryPage returns up to limit messages from the given pair partition,
// newest first. cursor is the sort key of the last message of the
// previous page, or empty for the first page; nextCursor is empty once
// the partition is exhausted.
func (d *DAO) QueryPage(ctx context.Context, pairPK string, limit int64, cursor string) (messages []Message, nextCursor string, err error) {
	input := dynamodb.QueryInput{
		TableName:              aws.String(d.tableName),
		KeyConditionExpression: aws.String("#pk = :pk and begins_with(#sk, :prefix)"),
		ExpressionAttributeNames: map[string]*string{
			"#pk": aws.String("partitionKey"),
			"#sk": aws.String("sortKey"),
		},
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
			":pk":     {S: aws.String(pairPK)},
			":prefix": {S: aws.String(murmurtable.MessageSKPrefix())},
		},
		ScanIndexForward: aws.Bool(false),
	}
	if limit > 0 {
		input.Limit = aws.Int64(limit)
	}
	if cursor != "" {
		input.ExclusiveStartKey = map[string]*dynamodb.AttributeValue{
			"partitionKey": {S: aws.String(pairPK)},
			"sortKey":      {S: aws.String(cursor)},
		}
	}

	output, err := d.api.QueryWithContext(ctx, &input)
	if err != nil {
		return nil, "", fmt.Errorf("failed to query messages for %v: %w", pairPK, err)
	}

	if err := dynamodbattribute.UnmarshalListOfMaps(output.Items, &messages); err != nil {
		return nil, "", fmt.Errorf("failed to unmarshal messages for %v: %w", pairPK, err)
	}

	if key := output.LastEvaluatedKey; key != nil {
		if sk, ok := key["sortKey"]; ok && sk.S != nil {
			nextCursor = *sk.S
		}
	}
	return messages, nextCursor, nil
}
