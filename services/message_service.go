//go:generate go run go.uber.org/mock/mockgen -source=message_service.go -destination=../mocks/mock_message_service.go -package=mocks
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

	"github.com/samber/lo"
)

type IMessageService interface {
	Load(ctx context.Context, conversationID string) ([]domain.Message, error)
	Send(ctx context.Context, cmd domain.SendMessageCommand) (string, error)
	Watch(ctx context.Context, conversationID string, oneShot []domain.Message) (*livesync.Sync[domain.Message], error)
}

type MessageService struct {
	store      contract.IStore
	index      contract.ISearchIndex
	normalizer domain.Normalizer
	log        *slog.Logger
}

func NewMessageService(store contract.IStore, index contract.ISearchIndex, normalizer domain.Normalizer, log *slog.Logger) *MessageService {
	return &MessageService{store: store, index: index, normalizer: normalizer, log: log}
}

// Load performs the one-shot fetch of a conversation's messages, oldest first.
func (s *MessageService) Load(ctx context.Context, conversationID string) ([]domain.Message, error) {
	records, err := s.store.Query(ctx, query.MessagesForConversation(conversationID))
	if err != nil {
		return nil, fmt.Errorf("load messages of %s: %w", conversationID, err)
	}
	return projection.ToMessages(records, s.normalizer), nil
}

// Send stamps the sender's last seen marker, then stores the message.
// The sender must be a participant of the conversation.
func (s *MessageService) Send(ctx context.Context, cmd domain.SendMessageCommand) (string, error) {
	if cmd.Empty() {
		return "", chaterrors.ErrEmptyMessage
	}
	if _, err := participantConversation(ctx, s.store, cmd.ConversationID, cmd.Sender); err != nil {
		return "", err
	}

	// 1. Last seen, merged so profile fields survive
	if err := s.store.UpsertMerge(ctx, query.CollectionUsers, cmd.Sender, map[string]any{
		query.FieldLastSeen: contract.ServerTimestamp,
	}); err != nil {
		return "", fmt.Errorf("update last seen of %s: %w", cmd.Sender, err)
	}

	// 2. The message itself, timestamped by the store
	id, err := s.store.Insert(ctx, query.CollectionMessages, map[string]any{
		query.FieldConversationID: cmd.ConversationID,
		query.FieldSender:         cmd.Sender,
		query.FieldText:           cmd.Text,
		query.FieldSentAt:         contract.ServerTimestamp,
	})
	if err != nil {
		return "", fmt.Errorf("send message to %s: %w", cmd.ConversationID, err)
	}

	// 3. Search is best effort, the message is already committed
	if s.index != nil {
		message := domain.Message{ID: id, ConversationID: cmd.ConversationID, Sender: cmd.Sender, Body: cmd.Text}
		if err = s.index.Index(ctx, message); err != nil {
			s.log.Warn("Message not indexed", "message_id", id, "error", err)
		}
	}
	return id, nil
}

// Watch mounts a live sync over the conversation's messages.
// The caller owns the returned sync and must Close it.
func (s *MessageService) Watch(ctx context.Context, conversationID string, oneShot []domain.Message) (*livesync.Sync[domain.Message], error) {
	sync := livesync.New(s.store, query.MessagesForConversation(conversationID),
		func(records []contract.Record) []domain.Message {
			return projection.ToMessages(records, s.normalizer)
		}, oneShot, s.log)
	if err := sync.Start(ctx); err != nil {
		return nil, err
	}
	return sync, nil
}

// participantConversation loads a conversation and checks that user takes part in it.
func participantConversation(ctx context.Context, store contract.IStore, conversationID, user string) (domain.Conversation, error) {
	record, found, err := store.Get(ctx, query.CollectionConversations, conversationID)
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("get conversation %s: %w", conversationID, err)
	}
	if !found {
		return domain.Conversation{}, chaterrors.ErrConversationNotFound
	}
	conversation, ok := projection.ToConversation(record)
	if !ok {
		return domain.Conversation{}, chaterrors.ErrConversationNotFound
	}
	if !lo.Contains(conversation.Users, user) {
		return domain.Conversation{}, chaterrors.ErrNotParticipant
	}
	return conversation, nil
}
