// Package murmurws implements the real-time messaging surface: the
// WebSocket wire protocol, the connect authorizer, the send-message
// router, and the push transport back to connected clients.
package murmurws

import (
	"encoding/json"
	"fmt"

	murmurtable "github.com/murmurchat/murmur-backend/murmur-table"
)

// Frame actions.
const (
	ActionSendMessage    = "send-message"
	ActionMessageStatus  = "message-status"
	ActionReceiveMessage = "receive-message"
)

// Ack statuses.
const (
	StatusOk    = "ok"
	StatusError = "error"
)

// Client-facing payload errors. The strings go out verbatim in
// message-status frames.
var (
	ErrBadRequestBody = fmt.Errorf("Couldn't parse request body")
	ErrBodyValidation = fmt.Errorf("Request body failed validation")
	ErrSelfMessage    = fmt.Errorf("You can't send a message to yourself")
)

// Frame is the envelope of every message crossing the socket.
type Frame struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
}

// MessagePayload is the data of an inbound send-message frame.
type MessagePayload struct {
	TempID      string `json:"tempId"`
	Content     string `json:"content"`
	ImageURL    string `json:"imageUrl,omitempty"`
	MessageType string `json:"messageType,omitempty"`
	ChatType    string `json:"chatType"`
	UserSub     string `json:"userSub,omitempty"`
	GroupID     string `json:"groupId,omitempty"`
}

// ParseMessagePayload decodes the body of a routed send-message frame
// and applies the wire defaults: absent content stays the empty string,
// absent messageType means text.
func ParseMessagePayload(body string) (MessagePayload, error) {
	var frame Frame
	if err := json.Unmarshal([]byte(body), &frame); err != nil {
		return MessagePayload{}, ErrBadRequestBody
	}

	var payload MessagePayload
	if err := json.Unmarshal(frame.Data, &payload); err != nil {
		return MessagePayload{}, ErrBodyValidation
	}
	if payload.MessageType == "" {
		payload.MessageType = murmurtable.MessageTypeText
	}

	if payload.TempID == "" || payload.ChatType == "" {
		return MessagePayload{}, ErrBodyValidation
	}
	if !murmurtable.ValidChatType(payload.ChatType) || !murmurtable.ValidMessageType(payload.MessageType) {
		return MessagePayload{}, ErrBodyValidation
	}
	return payload, nil
}

func marshalFrame(action string, data interface{}) []byte {
	raw, _ := json.Marshal(data)
	b, _ := json.Marshal(Frame{Action: action, Data: raw})
	return b
}

// ErrorStatus builds the message-status frame reporting a failed send.
func ErrorStatus(message string) []byte {
	return marshalFrame(ActionMessageStatus, map[string]string{
		"status":  StatusError,
		"message": message,
	})
}

// OkStatus builds the message-status frame acking a durable send. The
// timestamp and message id match the stored record exactly.
func OkStatus(timestamp, tempID, messageID string) []byte {
	return marshalFrame(ActionMessageStatus, map[string]string{
		"status":    StatusOk,
		"timestamp": timestamp,
		"tempId":    tempID,
		"messageId": messageID,
	})
}

// ReceiveMessage builds the frame pushed to an online recipient.
func ReceiveMessage(timestamp, messageType, chatType, content, messageID string, sender murmurtable.User) []byte {
	return marshalFrame(ActionReceiveMessage, map[string]interface{}{
		"timestamp":   timestamp,
		"messageType": messageType,
		"chatType":    chatType,
		"content":     content,
		"messageId":   messageID,
		"sender":      sender,
	})
}
