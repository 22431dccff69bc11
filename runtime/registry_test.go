package runtime

import (
	"chatline/contract"
	"chatline/query"
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type Sink struct {
	name string
}

func (s Sink) Consume(ctx context.Context, snapshot contract.Snapshot) error {
	return nil
}

func liveQuery(q query.Query, sink contract.SnapshotSink) contract.LiveQuery {
	return contract.LiveQuery{ID: uuid.NewString(), Query: q, Sink: sink}
}

func TestRegistry_Subscribe_One_Collection_One_Query(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	live := liveQuery(query.MessagesForConversation("c1"), Sink{"a"})

	// Given nothing is watched
	req.Empty(registry.sessions)
	req.Empty(registry.collectionMembers)

	// When a live query subscribes
	registry.Subscribe(live)

	// Then
	req.Len(registry.sessions, 1)
	req.Equal(live, registry.sessions[live.ID])
	req.Len(registry.collectionMembers, 1)
	req.Contains(registry.collectionMembers[query.CollectionMessages], live.ID)
	req.Len(registry.GetForCollection(query.CollectionMessages), 1)
	req.True(registry.Has(live.ID))
	req.Equal(1, registry.Count())
}

func TestRegistry_Subscribe_Multiple_Collections(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	messages := liveQuery(query.MessagesForConversation("c1"), Sink{"a"})
	conversations := liveQuery(query.ConversationsForUser("alice@example.com"), Sink{"b"})

	registry.Subscribe(messages)
	registry.Subscribe(conversations)

	req.Equal(2, registry.Count())
	req.Len(registry.GetForCollection(query.CollectionMessages), 1)
	req.Len(registry.GetForCollection(query.CollectionConversations), 1)
	req.Nil(registry.GetForCollection(query.CollectionUsers))
}

func TestRegistry_Unsubscribe_Last_Query_Drops_Collection(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	live := liveQuery(query.MessagesForConversation("c1"), Sink{"a"})

	// Given a subscribed live query
	registry.Subscribe(live)

	// When it unsubscribes
	registry.Unsubscribe(live.ID)

	// Then nothing is left
	req.Empty(registry.sessions)
	req.Empty(registry.collectionMembers)
	req.Nil(registry.GetForCollection(query.CollectionMessages))
	req.False(registry.Has(live.ID))
	req.Zero(registry.Count())
}

func TestRegistry_Unsubscribe_Keeps_Other_Queries(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	first := liveQuery(query.MessagesForConversation("c1"), Sink{"a"})
	second := liveQuery(query.MessagesForConversation("c2"), Sink{"b"})

	registry.Subscribe(first)
	registry.Subscribe(second)

	// When one unsubscribes, twice
	registry.Unsubscribe(first.ID)
	registry.Unsubscribe(first.ID)

	// Then only the other one is left
	req.Equal(1, registry.Count())
	req.Len(registry.collectionMembers[query.CollectionMessages], 1)
	req.Equal([]contract.LiveQuery{second}, registry.GetForCollection(query.CollectionMessages))
}
