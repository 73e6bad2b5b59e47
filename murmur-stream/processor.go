// Package murmurstream consumes the chat table's change feed and keeps
// the per-user chat projections in step with newly stored messages.
package murmurstream

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/rs/zerolog"

	murmurcli "github.com/murmurchat/murmur-backend/murmur-cli"
	murmurddb "github.com/murmurchat/murmur-backend/murmur-ddb"
	murmuridentity "github.com/murmurchat/murmur-backend/murmur-identity"
	"github.com/murmurchat/murmur-backend/murmur-stream/chatdao"
	murmurtable "github.com/murmurchat/murmur-backend/murmur-table"
	"github.com/murmurchat/murmur-backend/murmur-ws/messagedao"
)

// Projections is the subset of the chats DAO the processor needs.
type Projections interface {
	ApplyMessage(ctx context.Context, event chatdao.MessageEvent) error
}

// Processor fans newly inserted messages out to both participants' chat
// projections.
type Processor struct {
	Resolver murmuridentity.Resolver
	Chats    Projections
	Logger   zerolog.Logger
	Metrics  *murmurcli.Metrics
}

// HandleRecord processes one change record. Only message inserts fan
// out; every other entity or change kind is ignored. A returned error
// marks the record failed so the platform redelivers it.
func (p *Processor) HandleRecord(ctx context.Context, record murmurddb.Record) error {
	if record.EventName != "INSERT" {
		return nil
	}
	if entityType(record) != murmurtable.EntityMessage {
		return nil
	}

	var message messagedao.Message
	if err := murmurddb.ParseItem(record.Change.NewImage, &message); err != nil {
		return fmt.Errorf("unable to parse message from record %v: %w", record.EventID, err)
	}

	subHi, subLo, err := murmurtable.SplitPairPK(message.PartitionKey)
	if err != nil {
		return fmt.Errorf("unable to read participants from record %v: %w", record.EventID, err)
	}
	messageID, err := murmurtable.MessageIDFromSK(message.SortKey)
	if err != nil {
		return fmt.Errorf("unable to read message id from record %v: %w", record.EventID, err)
	}

	// Titles come from the pool rather than the message snapshot, so a
	// rename is reflected the next time either side gets a message. A
	// resolver failure for either participant aborts the whole fan-out.
	userHi, err := p.Resolver.UserBySub(ctx, subHi)
	if err != nil {
		return fmt.Errorf("unable to resolve participant %v: %w", subHi, err)
	}
	userLo, err := p.Resolver.UserBySub(ctx, subLo)
	if err != nil {
		return fmt.Errorf("unable to resolve participant %v: %w", subLo, err)
	}

	var sender, receiver murmurtable.User
	switch message.User.Sub {
	case userHi.Sub:
		sender, receiver = userHi, userLo
	case userLo.Sub:
		sender, receiver = userLo, userHi
	default:
		return fmt.Errorf("message %v sender %v is not a participant of %v", messageID, message.User.Sub, message.PartitionKey)
	}

	err = p.Chats.ApplyMessage(ctx, chatdao.MessageEvent{
		MessageID:   messageID,
		Timestamp:   message.Timestamp,
		Content:     message.Content,
		MessageType: message.MessageType,
		ChatType:    murmurtable.ChatTypePrivate,
		Sender:      sender,
		Receiver:    receiver,
	})
	if err != nil {
		return fmt.Errorf("unable to apply message %v: %w", messageID, err)
	}

	p.Logger.Debug().Str("messageId", messageID).Str("sender", sender.Sub).Msg("applied message to chat projections")
	p.Metrics.Event(ctx, murmurcli.FanOutMetric)
	return nil
}

func entityType(record murmurddb.Record) string {
	image := record.Change.NewImage
	if image == nil {
		image = record.Change.OldImage
	}
	return stringAttr(image, "entityType")
}

func stringAttr(image map[string]*dynamodb.AttributeValue, name string) string {
	if attr, ok := image[name]; ok && attr.S != nil {
		return *attr.S
	}
	return ""
}
