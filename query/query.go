// Package query describes store queries declaratively.
// A Query is never executed here: the one-shot fetch and the live subscription
// hand the same descriptor to the store, so both observe the same ordering.
package query

import (
	chaterrors "chatline/errors"
	"cmp"
	"fmt"
	"slices"

	"google.golang.org/protobuf/types/known/timestamppb"
)

const (
	CollectionMessages      = "messages"
	CollectionConversations = "conversations"
	CollectionUsers         = "users"
)

var Collections = []string{CollectionMessages, CollectionConversations, CollectionUsers}

// CheckCollection rejects a name outside the application collections.
func CheckCollection(name string) error {
	if !slices.Contains(Collections, name) {
		return fmt.Errorf("%w: %q", chaterrors.ErrUnknownCollection, name)
	}
	return nil
}

const (
	FieldConversationID = "conversation_id"
	FieldSender         = "user"
	FieldText           = "text"
	FieldSentAt         = "sent_at"
	FieldUsers          = "users"
	FieldLastSeen       = "lastSeen"
	FieldPhotoURL       = "photoURL"
)

type Op string

const (
	OpEqual         Op = "=="
	OpArrayContains Op = "array-contains"
)

type Direction int

const (
	Asc Direction = iota
	Desc
)

type Filter struct {
	Field string
	Op    Op
	Value any
}

type Order struct {
	Field     string
	Direction Direction
}

type Query struct {
	Collection string
	Filters    []Filter
	Orders     []Order
}

// MessagesForConversation selects the messages of one conversation, oldest first.
func MessagesForConversation(conversationID string) Query {
	return Query{
		Collection: CollectionMessages,
		Filters:    []Filter{{Field: FieldConversationID, Op: OpEqual, Value: conversationID}},
		Orders:     []Order{{Field: FieldSentAt, Direction: Asc}},
	}
}

// ConversationsForUser selects every conversation whose participants contain userID.
func ConversationsForUser(userID string) Query {
	return Query{
		Collection: CollectionConversations,
		Filters:    []Filter{{Field: FieldUsers, Op: OpArrayContains, Value: userID}},
	}
}

// Matches reports whether a record's fields satisfy every filter.
func (q Query) Matches(fields map[string]any) bool {
	for _, f := range q.Filters {
		if !f.Matches(fields) {
			return false
		}
	}
	return true
}

func (f Filter) Matches(fields map[string]any) bool {
	v, ok := fields[f.Field]
	if !ok {
		return false
	}
	switch f.Op {
	case OpEqual:
		return equal(v, f.Value)
	case OpArrayContains:
		arr, ok := v.([]any)
		if !ok {
			return false
		}
		return slices.ContainsFunc(arr, func(item any) bool {
			return equal(item, f.Value)
		})
	default:
		return false
	}
}

// Compare orders two records by the query's orders, then by insertion sequence.
func (q Query) Compare(a map[string]any, aSeq uint64, b map[string]any, bSeq uint64) int {
	for _, o := range q.Orders {
		c := compareValues(a[o.Field], b[o.Field])
		if o.Direction == Desc {
			c = -c
		}
		if c != 0 {
			return c
		}
	}
	return cmp.Compare(aSeq, bSeq)
}

// Value ranks follow the document store ordering: null < bool < number < timestamp < string < other.
func rank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case float64, int, int64:
		return 2
	case *timestamppb.Timestamp:
		return 3
	case string:
		return 4
	default:
		return 5
	}
}

func compareValues(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return cmp.Compare(ra, rb)
	}
	switch x := a.(type) {
	case nil:
		return 0
	case bool:
		y := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		default:
			return 1
		}
	case float64, int, int64:
		return cmp.Compare(toFloat(x), toFloat(b))
	case *timestamppb.Timestamp:
		y := b.(*timestamppb.Timestamp)
		if c := cmp.Compare(x.GetSeconds(), y.GetSeconds()); c != 0 {
			return c
		}
		return cmp.Compare(x.GetNanos(), y.GetNanos())
	case string:
		return cmp.Compare(x, b.(string))
	default:
		return 0
	}
}

// equal only holds for scalar values; maps and arrays never match a filter value.
func equal(a, b any) bool {
	return rank(a) < 5 && compareValues(a, b) == 0
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}
