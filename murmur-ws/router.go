package murmurws

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	murmurcli "github.com/murmurchat/murmur-backend/murmur-cli"
	murmurtable "github.com/murmurchat/murmur-backend/murmur-table"
	"github.com/murmurchat/murmur-backend/murmur-ws/messagedao"
)

// ConnectionRegistry is the subset of the connections DAO the router
// needs.
type ConnectionRegistry interface {
	Lookup(ctx context.Context, sub string) (connectionID string, ok bool, err error)
}

// MessageStore is the subset of the messages DAO the router needs.
type MessageStore interface {
	Put(ctx context.Context, senderSub, receiverSub, messageID string, sender murmurtable.User, timestamp, content, messageType string) (messagedao.Message, error)
}

// Router runs the send-message state machine: validate, persist, push
// to the recipient, then ack the sender.
type Router struct {
	Connections ConnectionRegistry
	Messages    MessageStore
	Push        Transport
	Logger      zerolog.Logger
	Metrics     *murmurcli.Metrics

	// NewID and Now are swappable for tests; zero values use ULIDs and
	// the wall clock.
	NewID func() string
	Now   func() time.Time
}

func (r *Router) newID() string {
	if r.NewID != nil {
		return r.NewID()
	}
	return ulid.Make().String()
}

func (r *Router) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// HandleSend processes one inbound send-message frame from the given
// sender. All outcomes, including failures, resolve as a frame pushed
// back over the sender's own connection; the error return covers only
// that final push.
func (r *Router) HandleSend(ctx context.Context, sender murmurtable.User, connectionID, body string) error {
	payload, err := ParseMessagePayload(body)
	if err != nil {
		return r.Push.Send(ctx, connectionID, ErrorStatus(err.Error()))
	}

	if payload.ChatType != murmurtable.ChatTypePrivate {
		return r.Push.Send(ctx, connectionID, ErrorStatus(murmurtable.ErrNotImplemented.Error()))
	}
	if payload.UserSub == "" {
		return r.Push.Send(ctx, connectionID, ErrorStatus(ErrBodyValidation.Error()))
	}
	if payload.UserSub == sender.Sub {
		return r.Push.Send(ctx, connectionID, ErrorStatus(ErrSelfMessage.Error()))
	}

	// The stored record and the recipient push share one id and one
	// timestamp, so the sender's ack matches what readers will see.
	var (
		messageID = r.newID()
		timestamp = murmurtable.Timestamp(r.now())
	)

	// Persistence and recipient delivery are independent: an offline or
	// stale recipient never fails the send, and a failed write never
	// blocks the delivery attempt. They race, and the ack waits on both.
	var (
		wg      sync.WaitGroup
		saveErr error
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		_, saveErr = r.Messages.Put(ctx, sender.Sub, payload.UserSub, messageID, sender, timestamp, payload.Content, payload.MessageType)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		r.pushToRecipient(ctx, sender, payload, messageID, timestamp)
	}()

	wg.Wait()

	if saveErr != nil {
		r.Logger.Error().Err(saveErr).Str("sub", sender.Sub).Msg("unable to save message")
		return r.Push.Send(ctx, connectionID, ErrorStatus("Couldn't save your message"))
	}

	r.Metrics.Event(ctx, murmurcli.MessageSentMetric)
	return r.Push.Send(ctx, connectionID, OkStatus(timestamp, payload.TempID, messageID))
}

// pushToRecipient delivers the message to the recipient's live channel,
// if any. Delivery is best-effort: the message is durable regardless.
func (r *Router) pushToRecipient(ctx context.Context, sender murmurtable.User, payload MessagePayload, messageID, timestamp string) {
	recipientConn, ok, err := r.Connections.Lookup(ctx, payload.UserSub)
	if err != nil {
		r.Logger.Warn().Err(err).Str("sub", payload.UserSub).Msg("unable to look up recipient connection")
		return
	}
	if !ok {
		return
	}

	frame := ReceiveMessage(timestamp, payload.MessageType, payload.ChatType, payload.Content, messageID, sender)
	if err := r.Push.Send(ctx, recipientConn, frame); err != nil {
		if IsGone(err) {
			r.Logger.Debug().Str("sub", payload.UserSub).Msg("recipient connection is gone")
			return
		}
		r.Logger.Warn().Err(err).Str("sub", payload.UserSub).Msg("unable to push to recipient")
	}
}
