package search

import (
	"chatline/domain"
	"context"
	"log/slog"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func newIndex(t *testing.T) *Index {
	t.Helper()
	index, err := OpenInMemory(slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })
	return index
}

func TestIndex_Search_Restricted_To_Conversations(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	index := newIndex(t)

	// Given messages in two conversations
	for _, m := range []domain.Message{
		{ID: "m1", ConversationID: "c1", Sender: "alice@x.io", Body: "lunch at noon?"},
		{ID: "m2", ConversationID: "c1", Sender: "bob@x.io", Body: "sure, see you"},
		{ID: "m3", ConversationID: "c2", Sender: "carol@x.io", Body: "lunch tomorrow"},
	} {
		req.NoError(index.Index(ctx, m))
	}

	// When searching from c1 only
	hits, err := index.Search(ctx, "lunch", []string{"c1"}, 10)

	// Then
	req.NoError(err)
	req.Len(hits, 1)
	req.Equal("m1", hits[0].MessageID)
	req.Equal("c1", hits[0].ConversationID)
	req.Equal("alice@x.io", hits[0].Sender)
	req.Equal("lunch at noon?", hits[0].Text)
	req.Positive(hits[0].Score)

	// When searching from both
	hits, err = index.Search(ctx, "lunch", []string{"c1", "c2", "c1"}, 10)
	req.NoError(err)
	req.ElementsMatch([]string{"m1", "m3"}, lo.Map(hits, func(h domain.SearchHit, _ int) string { return h.MessageID }))
}

func TestIndex_Search_Empty_Inputs(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	index := newIndex(t)
	req.NoError(index.Index(ctx, domain.Message{ID: "m1", ConversationID: "c1", Body: "hello"}))

	hits, err := index.Search(ctx, "  ", []string{"c1"}, 10)
	req.NoError(err)
	req.Empty(hits)

	hits, err = index.Search(ctx, "hello", nil, 10)
	req.NoError(err)
	req.Empty(hits)
}

func TestIndex_Reindex_Replaces_Document(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	index := newIndex(t)

	req.NoError(index.Index(ctx, domain.Message{ID: "m1", ConversationID: "c1", Body: "first draft"}))
	req.NoError(index.Index(ctx, domain.Message{ID: "m1", ConversationID: "c1", Body: "final words"}))

	hits, err := index.Search(ctx, "draft", []string{"c1"}, 10)
	req.NoError(err)
	req.Empty(hits)
	hits, err = index.Search(ctx, "final", []string{"c1"}, 10)
	req.NoError(err)
	req.Len(hits, 1)
}
