package murmurddb

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodbstreams"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	murmurcli "github.com/murmurchat/murmur-backend/murmur-cli"
)

// Event is a batch of change records delivered by the table's stream.
type Event struct {
	Records []Record `json:"Records"`
}

// Record is a single row-level change.
type Record struct {
	EventID   string `json:"eventID"`
	EventName string `json:"eventName"`
	Change    Change `json:"dynamodb"`
}

// Change carries the before/after images of the row.
type Change struct {
	SequenceNumber string                              `json:"SequenceNumber"`
	NewImage       map[string]*dynamodb.AttributeValue `json:"NewImage,omitempty"`
	OldImage       map[string]*dynamodb.AttributeValue `json:"OldImage,omitempty"`
}

// EventResponse reports the records that could not be processed so the
// platform redelivers only those.
type EventResponse struct {
	BatchItemFailures []BatchItemFailure `json:"batchItemFailures"`
}

type BatchItemFailure struct {
	ItemIdentifier string `json:"itemIdentifier"`
}

// RecordCallback processes one change record. Returning an error marks
// the record failed for redelivery; the rest of the batch continues.
type RecordCallback func(ctx context.Context, record Record) error

type Handler struct {
	service murmurcli.Service
	Logger  zerolog.Logger

	onRecord RecordCallback
}

func NewHandler(service murmurcli.Service, onRecord RecordCallback) *Handler {
	return &Handler{
		service:  service,
		Logger:   murmurcli.Logger(service),
		onRecord: onRecord,
	}
}

// Start runs as a Lambda stream consumer, or in console mode polls the
// table's stream shards directly.
func (h *Handler) Start() error {
	switch {
	case murmurcli.CommonOpts.Console:
		return h.handleRealtime()

	default:
		lambda.Start(h.HandleEvent)
	}
	return nil
}

func (h *Handler) HandleEvent(ctx context.Context, event Event) (EventResponse, error) {
	h.Logger.Trace().Int("count", len(event.Records)).Msg("handling a batch of stream records")

	var response EventResponse
	for _, record := range event.Records {
		if err := h.onRecord(ctx, record); err != nil {
			h.Logger.Error().Err(err).Str("event", record.EventID).Msg("unable to handle record")
			id := record.Change.SequenceNumber
			if id == "" {
				id = record.EventID
			}
			response.BatchItemFailures = append(response.BatchItemFailures, BatchItemFailure{ItemIdentifier: id})
		}
	}
	return response, nil
}

func (h *Handler) handleRealtime() error {
	sess := session.Must(session.NewSession(aws.NewConfig()))
	streams := dynamodbstreams.New(sess)
	ss, err := streams.ListStreams(&dynamodbstreams.ListStreamsInput{
		TableName: aws.String(DDBOpts.TableName),
	})
	if err != nil {
		return fmt.Errorf("unable to list streams for table %v: %w", DDBOpts.TableName, err)
	}
	if len(ss.Streams) != 1 {
		return fmt.Errorf("too few or too many streams (%v) for table %v", len(ss.Streams), DDBOpts.TableName)
	}
	stream := ss.Streams[0]

	var shards []*dynamodbstreams.Shard
	var lastShard *string
	for {
		ss, err := streams.DescribeStream(&dynamodbstreams.DescribeStreamInput{
			StreamArn:             stream.StreamArn,
			ExclusiveStartShardId: lastShard,
		})
		if err != nil {
			return fmt.Errorf("unable to describe stream %v: %w", *stream.StreamArn, err)
		}
		shards = append(shards, ss.StreamDescription.Shards...)
		if ss.StreamDescription.LastEvaluatedShardId == nil {
			break
		}
		lastShard = ss.StreamDescription.LastEvaluatedShardId
	}

	group, ctx := errgroup.WithContext(context.Background())
	group.SetLimit(256)

	h.Logger.Info().Str("tableName", DDBOpts.TableName).Int("shardCount", len(shards)).Msg("responding to stream events")

	for _, shard := range shards {
		shard := shard
		group.Go(func() error {
			it, err := streams.GetShardIteratorWithContext(ctx, &dynamodbstreams.GetShardIteratorInput{
				StreamArn:         stream.StreamArn,
				ShardId:           shard.ShardId,
				ShardIteratorType: aws.String(dynamodbstreams.ShardIteratorTypeTrimHorizon),
			})
			if err != nil {
				return fmt.Errorf("unable to get shard iterator: %w", err)
			}

			for it.ShardIterator != nil {
				records, err := streams.GetRecordsWithContext(ctx, &dynamodbstreams.GetRecordsInput{
					ShardIterator: it.ShardIterator,
				})
				if err != nil {
					return fmt.Errorf("unable to get records: %w", err)
				}
				for _, record := range records.Records {
					// Reserialize to the lambda-shaped record type so console
					// mode and deployed mode share one callback.
					raw, err := json.Marshal(record)
					if err != nil {
						return fmt.Errorf("unable to marshal record: %w", err)
					}
					var r Record
					if err := json.Unmarshal(raw, &r); err != nil {
						return fmt.Errorf("unable to unmarshal record: %w", err)
					}
					if err := h.onRecord(ctx, r); err != nil {
						h.Logger.Error().Err(err).Str("event", r.EventID).Msg("error processing record")
					}
				}
				it.ShardIterator = records.NextShardIterator
			}
			return nil
		})
	}
	return group.Wait()
}

func ParseItem(item map[string]*dynamodb.AttributeValue, v interface{}) error {
	if err := dynamodbattribute.UnmarshalMap(item, v); err != nil {
		return fmt.Errorf("unable to unmarshal item: %w", err)
	}
	return nil
}
