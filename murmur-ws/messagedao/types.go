package messagedao

import (
	murmurtable "github.com/murmurchat/murmur-backend/murmur-table"
)

// Message is one stored chat message. The partition key is the pair key
// shared by both participants; the sort key embeds a ULID so messages
// order by send time within the partition.
type Message struct {
	PartitionKey string           `dynamodbav:"partitionKey" ddb:"hash" json:"partitionKey"`
	SortKey      string           `dynamodbav:"sortKey" ddb:"range" json:"sortKey"`
	EntityType   string           `dynamodbav:"entityType" json:"-"`
	Timestamp    string           `dynamodbav:"timestamp" json:"timestamp"`
	Content      string           `dynamodbav:"content" json:"content"`
	MessageType  string           `dynamodbav:"messageType" json:"messageType"`
	User         murmurtable.User `dynamodbav:"user" json:"user"`
}
