// Package search indexes message text for the sidebar search box.
package search

import (
	"chatline/domain"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/blugelabs/bluge"
	"github.com/samber/lo"
)

const (
	fieldID             = "_id"
	fieldConversationID = "conversation_id"
	fieldSender         = "user"
	fieldText           = "text"
)

// Index is a bluge full-text index over message text.
type Index struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewIndex(writer *bluge.Writer, log *slog.Logger) *Index {
	return &Index{writer: writer, log: log}
}

// OpenInMemory opens an index that lives only as long as the process.
func OpenInMemory(log *slog.Logger) (*Index, error) {
	writer, err := bluge.OpenWriter(bluge.InMemoryOnlyConfig())
	if err != nil {
		return nil, fmt.Errorf("open in-memory index: %w", err)
	}
	return NewIndex(writer, log), nil
}

func (i *Index) Close() error {
	return i.writer.Close()
}

func (i *Index) Index(_ context.Context, message domain.Message) error {
	doc := bluge.NewDocument(message.ID).
		AddField(bluge.NewKeywordField(fieldConversationID, message.ConversationID).StoreValue()).
		AddField(bluge.NewKeywordField(fieldSender, message.Sender).StoreValue()).
		AddField(bluge.NewTextField(fieldText, message.Body).StoreValue())
	if err := i.writer.Update(doc.ID(), doc); err != nil {
		return fmt.Errorf("index message %s: %w", message.ID, err)
	}
	return nil
}

// Search matches term against message text, restricted to the given conversations.
// No conversation means no hit.
func (i *Index) Search(ctx context.Context, term string, conversationIDs []string, limit int) ([]domain.SearchHit, error) {
	term = strings.TrimSpace(term)
	if term == "" || len(conversationIDs) == 0 {
		return nil, nil
	}

	inConversations := bluge.NewBooleanQuery().SetMinShould(1)
	for _, id := range lo.Uniq(conversationIDs) {
		inConversations.AddShould(bluge.NewTermQuery(id).SetField(fieldConversationID))
	}
	q := bluge.NewBooleanQuery().
		AddMust(bluge.NewMatchQuery(term).SetField(fieldText)).
		AddMust(inConversations)

	reader, err := i.writer.Reader()
	if err != nil {
		return nil, fmt.Errorf("open index reader: %w", err)
	}
	defer func() {
		_ = reader.Close()
	}()

	iterator, err := reader.Search(ctx, bluge.NewTopNSearch(limit, q))
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", term, err)
	}

	var hits []domain.SearchHit
	match, err := iterator.Next()
	for err == nil && match != nil {
		hit := domain.SearchHit{Score: match.Score}
		visitErr := match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case fieldID:
				hit.MessageID = string(value)
			case fieldConversationID:
				hit.ConversationID = string(value)
			case fieldSender:
				hit.Sender = string(value)
			case fieldText:
				hit.Text = string(value)
			}
			return true
		})
		if visitErr != nil {
			return nil, fmt.Errorf("read hit: %w", visitErr)
		}
		hits = append(hits, hit)
		match, err = iterator.Next()
	}
	if err != nil {
		return nil, fmt.Errorf("iterate hits: %w", err)
	}
	i.log.Debug("Search done", "term", term, "hits", len(hits))
	return hits, nil
}
