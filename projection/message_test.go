package projection

import (
	"chatline/contract"
	"chatline/domain"
	"chatline/query"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/timestamppb"
)

var utc = domain.NewNormalizer("", time.UTC)

func TestToMessage_Committed(t *testing.T) {
	req := require.New(t)
	record := contract.Record{ID: "m1", Seq: 7, Fields: map[string]any{
		query.FieldConversationID: "c1",
		query.FieldSender:         "alice@x.io",
		query.FieldText:           "hello",
		query.FieldSentAt:         timestamppb.New(time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)),
	}}

	// When
	message := ToMessage(record, utc)

	// Then
	req.Equal("m1", message.ID)
	req.Equal("c1", message.ConversationID)
	req.Equal("alice@x.io", message.Sender)
	req.Equal("hello", message.Body)
	req.NotNil(message.SentAt)
	req.Equal("3/1/2024, 9:30:00 AM", *message.SentAt)
	req.False(message.Pending())
}

func TestToMessage_Pending_Or_Malformed_Timestamp(t *testing.T) {
	req := require.New(t)

	for _, sentAt := range []any{nil, "2024-03-01", 12, (*timestamppb.Timestamp)(nil)} {
		record := contract.Record{ID: "m1", Fields: map[string]any{
			query.FieldText:   "hello",
			query.FieldSentAt: sentAt,
		}}
		message := ToMessage(record, utc)
		req.Nil(message.SentAt)
		req.True(message.Pending())
	}
}

func TestToMessage_Mistyped_Fields_Become_Zero(t *testing.T) {
	req := require.New(t)
	record := contract.Record{ID: "m1", Fields: map[string]any{
		query.FieldSender: 42,
		query.FieldText:   []any{"not", "text"},
	}}

	message := ToMessage(record, utc)

	req.Equal("m1", message.ID)
	req.Empty(message.Sender)
	req.Empty(message.Body)
	req.Empty(message.ConversationID)
}

func TestToMessages_Keeps_Order(t *testing.T) {
	req := require.New(t)
	records := []contract.Record{
		{ID: "m2", Fields: map[string]any{query.FieldText: "b"}},
		{ID: "m1", Fields: map[string]any{query.FieldText: "a"}},
	}

	messages := ToMessages(records, utc)

	req.Len(messages, 2)
	req.Equal("m2", messages[0].ID)
	req.Equal("m1", messages[1].ID)
}

func TestToConversations_Drops_Malformed(t *testing.T) {
	req := require.New(t)
	records := []contract.Record{
		{ID: "ok", Fields: map[string]any{query.FieldUsers: []any{"alice@x.io", "bob@x.io"}}},
		{ID: "typed", Fields: map[string]any{query.FieldUsers: []string{"alice@x.io", "carol@x.io"}}},
		{ID: "self", Fields: map[string]any{query.FieldUsers: []any{"alice@x.io", "alice@x.io"}}},
		{ID: "three", Fields: map[string]any{query.FieldUsers: []any{"a@x.io", "b@x.io", "c@x.io"}}},
		{ID: "missing", Fields: map[string]any{}},
	}

	conversations := ToConversations(records)

	req.Equal([]domain.Conversation{
		domain.NewConversation("ok", "alice@x.io", "bob@x.io"),
		domain.NewConversation("typed", "alice@x.io", "carol@x.io"),
	}, conversations)
}

func TestToUser(t *testing.T) {
	req := require.New(t)

	user := ToUser(contract.Record{ID: "bob@x.io", Fields: map[string]any{
		query.FieldLastSeen: timestamppb.New(time.Date(2024, 3, 1, 21, 0, 0, 0, time.UTC)),
		query.FieldPhotoURL: "https://cdn.x.io/bob.png",
	}}, utc)
	req.Equal("bob@x.io", user.Email)
	req.Equal("3/1/2024, 9:00:00 PM", *user.LastSeen)
	req.Equal("https://cdn.x.io/bob.png", user.PhotoURL)

	req.Nil(ToUser(contract.Record{ID: "carol@x.io"}, utc).LastSeen)
}
