package chatdao

import (
	murmurtable "github.com/murmurchat/murmur-backend/murmur-table"
)

// Chat is one owner's view of a conversation. Every conversation keeps
// two of these, one per participant, so title, unread count, and
// ordering stay independent per side. GSI2 orders an owner's chats by
// the timestamp of their latest message.
type Chat struct {
	PartitionKey string `dynamodbav:"partitionKey" ddb:"hash" json:"partitionKey"`
	SortKey      string `dynamodbav:"sortKey" ddb:"range" json:"sortKey"`
	EntityType   string `dynamodbav:"entityType" json:"-"`
	GSI2PK       string `dynamodbav:"gsi2PK" ddb:"gsi_hash:GSI2" json:"-"`
	GSI2SK       string `dynamodbav:"gsi2SK" ddb:"gsi_range:GSI2" json:"-"`

	Title          string                  `dynamodbav:"title" json:"title"`
	ChatType       string                  `dynamodbav:"chatType" json:"chatType"`
	User           murmurtable.User        `dynamodbav:"user" json:"user"`
	UnreadMessages int                     `dynamodbav:"unreadMessages" json:"unreadMessages"`
	LastMessage    murmurtable.LastMessage `dynamodbav:"lastMessage" json:"lastMessage"`

	// LastMessageID records the message most recently folded into this
	// projection, so redelivered change records apply at most once.
	LastMessageID string `dynamodbav:"lastMessageId" json:"-"`
}
