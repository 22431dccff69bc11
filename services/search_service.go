package services

import (
	"chatline/contract"
	"chatline/domain"
	"context"

	"github.com/samber/lo"
)

const defaultSearchLimit = 20

type ISearchService interface {
	Search(ctx context.Context, user, term string, limit int) ([]domain.SearchHit, error)
}

type SearchService struct {
	conversations IConversationService
	index         contract.ISearchIndex
}

func NewSearchService(conversations IConversationService, index contract.ISearchIndex) *SearchService {
	return &SearchService{conversations: conversations, index: index}
}

// Search only looks into the conversations the user takes part in.
func (s *SearchService) Search(ctx context.Context, user, term string, limit int) ([]domain.SearchHit, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	conversations, err := s.conversations.List(ctx, user)
	if err != nil {
		return nil, err
	}
	ids := lo.Map(conversations, func(c domain.Conversation, _ int) string { return c.ID })
	return s.index.Search(ctx, term, ids, limit)
}
