// Package murmurtable defines the key layout of the single chat table.
// All entities share one table and are disambiguated by entityType; the
// key builders here are the only place key strings are assembled.
package murmurtable

import (
	"fmt"
	"strings"
)

// Entity kinds stored in the entityType attribute.
const (
	EntityConnection = "connection"
	EntityMessage    = "message"
	EntityChat       = "chat"
)

// Sort key of the singleton connection item under a user partition.
const SortKeyConnection = "connection"

// Index names.
const (
	GSI1 = "GSI1"
	GSI2 = "GSI2"
)

const (
	userPrefix          = "user#"
	pairPrefix          = "users#"
	pairSeparator       = "|"
	messagePrefix       = "message#"
	chatPrefix          = "chat@user#"
	chatTimestampPrefix = "chat-timestamp#"
)

// TableName returns the chat table name for the given environment.
func TableName(env string) string {
	return env + "-murmur-chat"
}

// UserPK returns the partition key of a user's own partition.
func UserPK(sub string) string {
	return userPrefix + sub
}

// SubFromUserPK extracts the sub from a user partition key.
func SubFromUserPK(pk string) (string, error) {
	sub, ok := strings.CutPrefix(pk, userPrefix)
	if !ok || sub == "" {
		return "", fmt.Errorf("not a user partition key: %v", pk)
	}
	return sub, nil
}

// PairPK returns the canonical partition key shared by both participants
// of a private conversation. The two subs are ordered lexicographically
// descending, so either side computes the same key regardless of who
// sends.
func PairPK(subA, subB string) string {
	hi, lo := subA, subB
	if hi < lo {
		hi, lo = lo, hi
	}
	return pairPrefix + hi + pairSeparator + lo
}

// SplitPairPK recovers the two participant subs from a pair partition
// key. Position 0 is the lexicographically larger sub.
func SplitPairPK(pk string) (string, string, error) {
	rest, ok := strings.CutPrefix(pk, pairPrefix)
	if !ok {
		return "", "", fmt.Errorf("not a pair partition key: %v", pk)
	}
	hi, lo, ok := strings.Cut(rest, pairSeparator)
	if !ok || hi == "" || lo == "" {
		return "", "", fmt.Errorf("malformed pair partition key: %v", pk)
	}
	return hi, lo, nil
}

// MessageSK returns the sort key for a message with the given id.
func MessageSK(messageID string) string {
	return messagePrefix + messageID
}

// MessageSKPrefix is the sort key prefix shared by all messages in a
// partition, used for begins_with queries.
func MessageSKPrefix() string {
	return messagePrefix
}

// MessageIDFromSK extracts the message id from a message sort key.
func MessageIDFromSK(sk string) (string, error) {
	id, ok := strings.CutPrefix(sk, messagePrefix)
	if !ok || id == "" {
		return "", fmt.Errorf("not a message sort key: %v", sk)
	}
	return id, nil
}

// ChatSK returns the sort key of the chat projection an owner keeps for
// the given peer.
func ChatSK(peerSub string) string {
	return chatPrefix + peerSub
}

// PeerFromChatSK extracts the peer sub from a chat projection sort key.
func PeerFromChatSK(sk string) (string, error) {
	sub, ok := strings.CutPrefix(sk, chatPrefix)
	if !ok || sub == "" {
		return "", fmt.Errorf("not a chat sort key: %v", sk)
	}
	return sub, nil
}

// ChatTimestampSK returns the GSI2 sort key used to order an owner's
// chat list by recency.
func ChatTimestampSK(timestamp string) string {
	return chatTimestampPrefix + timestamp
}

// ChatTimestampSKPrefix is the GSI2 sort key prefix for chat listings.
func ChatTimestampSKPrefix() string {
	return chatTimestampPrefix
}
