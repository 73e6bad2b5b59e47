package murmurtable

import (
	"testing"
	"time"

	"github.com/tj/assert"
)

func TestPairPK(t *testing.T) {
	t.Run("commutative", func(t *testing.T) {
		assert.Equal(t, PairPK("a1", "b1"), PairPK("b1", "a1"))
	})

	t.Run("larger sub first", func(t *testing.T) {
		assert.Equal(t, "users#b1|a1", PairPK("a1", "b1"))
	})

	t.Run("split round trip", func(t *testing.T) {
		hi, lo, err := SplitPairPK(PairPK("a1", "b1"))
		assert.NoError(t, err)
		assert.Equal(t, "b1", hi)
		assert.Equal(t, "a1", lo)
	})

	t.Run("split rejects foreign keys", func(t *testing.T) {
		_, _, err := SplitPairPK("user#a1")
		assert.Error(t, err)

		_, _, err = SplitPairPK("users#nodivider")
		assert.Error(t, err)
	})
}

func TestUserPK(t *testing.T) {
	assert.Equal(t, "user#a1", UserPK("a1"))

	sub, err := SubFromUserPK(UserPK("a1"))
	assert.NoError(t, err)
	assert.Equal(t, "a1", sub)

	_, err = SubFromUserPK("users#b1|a1")
	assert.Error(t, err)
}

func TestSortKeys(t *testing.T) {
	t.Run("message id round trip", func(t *testing.T) {
		id, err := MessageIDFromSK(MessageSK("01H9ZAP3FQ"))
		assert.NoError(t, err)
		assert.Equal(t, "01H9ZAP3FQ", id)
	})

	t.Run("chat peer round trip", func(t *testing.T) {
		sub, err := PeerFromChatSK(ChatSK("b1"))
		assert.NoError(t, err)
		assert.Equal(t, "b1", sub)
	})

	t.Run("chat sk shape", func(t *testing.T) {
		assert.Equal(t, "chat@user#b1", ChatSK("b1"))
	})

	t.Run("rejects foreign sort keys", func(t *testing.T) {
		_, err := MessageIDFromSK("chat@user#b1")
		assert.Error(t, err)

		_, err = PeerFromChatSK("message#01H9")
		assert.Error(t, err)
	})
}

func TestTimestamp(t *testing.T) {
	at := time.Date(2023, 4, 5, 6, 7, 8, 123*int(time.Millisecond), time.UTC)
	assert.Equal(t, "2023-04-05T06:07:08.123Z", Timestamp(at))
}

func TestKinds(t *testing.T) {
	assert.True(t, ValidMessageType(MessageTypeText))
	assert.True(t, ValidMessageType(MessageTypeImage))
	assert.False(t, ValidMessageType("video"))

	assert.True(t, ValidChatType(ChatTypePrivate))
	assert.True(t, ValidChatType(ChatTypeGroup))
	assert.False(t, ValidChatType("broadcast"))
}
