// Package projection maps raw store records into application models.
// Mapping never fails: missing or mistyped fields become zero values.
package projection

import (
	"chatline/contract"
	"chatline/domain"
	"chatline/query"

	"github.com/samber/lo"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// ToMessage maps a messages record. An uncommitted or malformed sent_at maps to nil.
func ToMessage(record contract.Record, normalizer domain.Normalizer) domain.Message {
	return domain.Message{
		ID:             record.ID,
		ConversationID: stringField(record.Fields, query.FieldConversationID),
		Sender:         stringField(record.Fields, query.FieldSender),
		Body:           stringField(record.Fields, query.FieldText),
		SentAt:         formattedTimestamp(record.Fields, query.FieldSentAt, normalizer),
	}
}

func ToMessages(records []contract.Record, normalizer domain.Normalizer) []domain.Message {
	return lo.Map(records, func(r contract.Record, _ int) domain.Message {
		return ToMessage(r, normalizer)
	})
}

// ToConversation maps a conversations record. It reports false when the
// record does not hold two distinct participants.
func ToConversation(record contract.Record) (domain.Conversation, bool) {
	users := stringSlice(record.Fields, query.FieldUsers)
	if len(users) != 2 || users[0] == users[1] {
		return domain.Conversation{}, false
	}
	return domain.NewConversation(record.ID, users...), true
}

// ToConversations drops malformed conversation records.
func ToConversations(records []contract.Record) []domain.Conversation {
	return lo.FilterMap(records, func(r contract.Record, _ int) (domain.Conversation, bool) {
		return ToConversation(r)
	})
}

// ToUser maps a users record keyed by email.
func ToUser(record contract.Record, normalizer domain.Normalizer) domain.User {
	return domain.User{
		Email:    record.ID,
		LastSeen: formattedTimestamp(record.Fields, query.FieldLastSeen, normalizer),
		PhotoURL: stringField(record.Fields, query.FieldPhotoURL),
	}
}

func stringField(fields map[string]any, name string) string {
	s, _ := fields[name].(string)
	return s
}

func stringSlice(fields map[string]any, name string) []string {
	switch v := fields[name].(type) {
	case []string:
		return v
	case []any:
		return lo.FilterMap(v, func(item any, _ int) (string, bool) {
			s, ok := item.(string)
			return s, ok
		})
	default:
		return nil
	}
}

func formattedTimestamp(fields map[string]any, name string, normalizer domain.Normalizer) *string {
	ts, ok := fields[name].(*timestamppb.Timestamp)
	if !ok || ts == nil {
		return nil
	}
	return lo.ToPtr(normalizer.Format(ts))
}
