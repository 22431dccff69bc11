package services

import (
	"chatline/contract"
	"chatline/domain"
	chaterrors "chatline/errors"
	"chatline/livesync"
	"chatline/projection"
	"chatline/query"
	"context"
	"fmt"
	"log/slog"
)

type IConversationService interface {
	List(ctx context.Context, user string) ([]domain.Conversation, error)
	Check(ctx context.Context, user, candidate string) error
	Create(ctx context.Context, cmd domain.CreateConversationCommand) (CreateResult, error)
	Open(ctx context.Context, conversationID, user string) (Page, error)
	Recipient(ctx context.Context, conversation domain.Conversation, user string) (domain.Recipient, error)
	Watch(ctx context.Context, user string, oneShot []domain.Conversation) (*livesync.Sync[domain.Conversation], error)
}

// CreateResult reports the outcome of a guarded creation.
// A rejected candidate is not an error: Created is false and Reason says why.
type CreateResult struct {
	Created      bool                `json:"created"`
	Reason       Rejection           `json:"reason,omitempty"`
	Conversation domain.Conversation `json:"conversation"`
}

// Page is what the conversation screen renders before live data arrives.
type Page struct {
	Conversation domain.Conversation `json:"conversation"`
	Title        string              `json:"title"`
	Recipient    domain.Recipient    `json:"recipient"`
	Messages     []domain.Message    `json:"messages"`
}

type ConversationService struct {
	store      contract.IStore
	messages   IMessageService
	guard      ConversationGuard
	normalizer domain.Normalizer
	log        *slog.Logger
}

func NewConversationService(store contract.IStore, messages IMessageService, normalizer domain.Normalizer, log *slog.Logger) *ConversationService {
	return &ConversationService{store: store, messages: messages, normalizer: normalizer, log: log}
}

// List is the one-shot fetch of the user's conversations.
func (s *ConversationService) List(ctx context.Context, user string) ([]domain.Conversation, error) {
	records, err := s.store.Query(ctx, query.ConversationsForUser(user))
	if err != nil {
		return nil, fmt.Errorf("list conversations of %s: %w", user, err)
	}
	return projection.ToConversations(records), nil
}

// Check returns the guard verdict for candidate against the user's conversations.
func (s *ConversationService) Check(ctx context.Context, user, candidate string) error {
	existing, err := s.List(ctx, user)
	if err != nil {
		return err
	}
	return s.guard.Check(user, candidate, existing)
}

// Create issues one conversation write if the guard accepts the recipient.
// The duplicate check always runs against a fresh listing of the user's conversations.
func (s *ConversationService) Create(ctx context.Context, cmd domain.CreateConversationCommand) (CreateResult, error) {
	if cmd.CurrentUser == "" {
		return CreateResult{}, chaterrors.ErrUnauthenticated
	}
	existing, err := s.List(ctx, cmd.CurrentUser)
	if err != nil {
		return CreateResult{}, err
	}
	if err = s.guard.Check(cmd.CurrentUser, cmd.Recipient, existing); err != nil {
		s.log.Debug("Conversation creation rejected", "user", cmd.CurrentUser, "reason", err)
		return CreateResult{Reason: RejectionOf(err)}, nil
	}

	users := []string{cmd.CurrentUser, cmd.Recipient}
	id, err := s.store.Insert(ctx, query.CollectionConversations, map[string]any{
		query.FieldUsers: users,
	})
	if err != nil {
		return CreateResult{}, fmt.Errorf("create conversation with %s: %w", cmd.Recipient, err)
	}
	s.log.Info("Conversation created", "conversation_id", id)
	return CreateResult{Created: true, Conversation: domain.NewConversation(id, users...)}, nil
}

// Open loads the conversation page: metadata, recipient and the one-shot messages.
func (s *ConversationService) Open(ctx context.Context, conversationID, user string) (Page, error) {
	conversation, err := participantConversation(ctx, s.store, conversationID, user)
	if err != nil {
		return Page{}, err
	}
	recipient, err := s.Recipient(ctx, conversation, user)
	if err != nil {
		return Page{}, err
	}
	messages, err := s.messages.Load(ctx, conversationID)
	if err != nil {
		return Page{}, err
	}
	return Page{
		Conversation: conversation,
		Title:        "Conversation with " + recipient.Email,
		Recipient:    recipient,
		Messages:     messages,
	}, nil
}

// Recipient resolves the other participant and its profile when one exists.
func (s *ConversationService) Recipient(ctx context.Context, conversation domain.Conversation, user string) (domain.Recipient, error) {
	email := conversation.Recipient(user)
	record, found, err := s.store.Get(ctx, query.CollectionUsers, email)
	if err != nil {
		return domain.Recipient{}, fmt.Errorf("get recipient %s: %w", email, err)
	}
	if !found {
		return domain.Recipient{Email: email}, nil
	}
	profile := projection.ToUser(record, s.normalizer)
	return domain.Recipient{Email: email, Known: true, LastSeen: profile.LastSeen, PhotoURL: profile.PhotoURL}, nil
}

// Watch mounts a live sync over the user's conversations. The caller must Close it.
func (s *ConversationService) Watch(ctx context.Context, user string, oneShot []domain.Conversation) (*livesync.Sync[domain.Conversation], error) {
	sync := livesync.New(s.store, query.ConversationsForUser(user), projection.ToConversations, oneShot, s.log)
	if err := sync.Start(ctx); err != nil {
		return nil, err
	}
	return sync, nil
}
