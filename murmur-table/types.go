package murmurtable

import (
	"fmt"
	"time"
)

// Chat kinds. Group is reserved by the data model but has no code path;
// operations that receive it must fail with ErrNotImplemented rather
// than falling through to the private behavior.
const (
	ChatTypePrivate = "private"
	ChatTypeGroup   = "group"
)

// Message kinds.
const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"
)

// ErrNotImplemented marks the reserved variants (group chats) that the
// data model carries but no handler implements.
var ErrNotImplemented = fmt.Errorf("not implemented")

// ValidMessageType reports whether kind names a known message kind.
func ValidMessageType(kind string) bool {
	return kind == MessageTypeText || kind == MessageTypeImage
}

// ValidChatType reports whether kind names a known chat kind.
func ValidChatType(kind string) bool {
	return kind == ChatTypePrivate || kind == ChatTypeGroup
}

// User is the principal snapshot embedded in messages and projections.
type User struct {
	Sub   string `dynamodbav:"sub" json:"sub"`
	Name  string `dynamodbav:"name" json:"name"`
	Email string `dynamodbav:"email" json:"email"`
}

// LastMessage is the denormalized tail of a conversation kept on each
// chat projection so chat lists render without reading the messages.
type LastMessage struct {
	UserName    string `dynamodbav:"userName" json:"userName"`
	UserSub     string `dynamodbav:"userSub" json:"userSub"`
	Timestamp   string `dynamodbav:"timestamp" json:"timestamp"`
	Preview     string `dynamodbav:"preview" json:"preview"`
	MessageType string `dynamodbav:"messageType" json:"messageType"`
}

// timestampLayout renders millisecond UTC timestamps; the same string is
// stored on the message and echoed in the sender's ack.
const timestampLayout = "2006-01-02T15:04:05.000Z"

// Timestamp formats t in the canonical wire format.
func Timestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}
