package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/askline-dev/askline/internal/docstore"
	"github.com/askline-dev/askline/internal/reconcile"
	"github.com/askline-dev/askline/shared/domain"
	"github.com/askline-dev/askline/shared/errors"
)

// MessagingService covers direct conversations between actor pairs.
type MessagingService interface {
	LookupActorByEmail(ctx context.Context, email domain.Email) (domain.AuthorSnapshot, error)
	EnsureConversation(ctx context.Context, actor *domain.Actor, peerEmail domain.Email) (domain.Conversation, error)
	SendMessage(ctx context.Context, actor *domain.Actor, conversationId domain.ConversationId, text string) (domain.MessageId, error)

	WatchConversations(ctx context.Context, view *reconcile.Manager, actorId domain.ActorId) (*reconcile.Handle, error)
	WatchMessages(ctx context.Context, view *reconcile.Manager, conversationId domain.ConversationId) (*reconcile.Handle, error)
}

type Messaging struct {
	store docstore.Client

	// lastMessageLen truncates the denormalized conversation summary.
	lastMessageLen int
}

var _ MessagingService = (*Messaging)(nil)

func NewMessaging(store docstore.Client, lastMessageLen int) *Messaging {
	if lastMessageLen <= 0 {
		lastMessageLen = 200
	}
	return &Messaging{store: store, lastMessageLen: lastMessageLen}
}

// LookupActorByEmail resolves a peer by exact, case-normalized equality on
// the normalized email field. No fuzzy matching.
func (m *Messaging) LookupActorByEmail(ctx context.Context, email domain.Email) (domain.AuthorSnapshot, error) {
	norm := domain.NormalizeEmail(email)
	docs, err := m.store.List(ctx, docstore.Collection(domain.ColUsers).
		Where("normalizedEmail", docstore.OpEqual, norm))
	if err != nil {
		return domain.AuthorSnapshot{}, err
	}
	if len(docs) == 0 {
		return domain.AuthorSnapshot{}, errors.ErrPeerNotFound
	}
	actor := domain.ActorFromData(docs[0].Id(), docs[0].Data)
	snapshot := actor.Snapshot()
	if snapshot.Email == "" {
		snapshot.Email = email
	}
	return snapshot, nil
}

// EnsureConversation returns the existing conversation whose member set is
// exactly {actor, peer}, creating it when absent.
//
// The lookup-before-create sequence is not transactionally atomic against
// the store: two near-simultaneous calls from the same pair can race and
// create duplicate conversations. Known limitation, left unresolved.
func (m *Messaging) EnsureConversation(ctx context.Context, actor *domain.Actor, peerEmail domain.Email) (domain.Conversation, error) {
	if actor == nil {
		return domain.Conversation{}, errors.ErrNotAuthenticated
	}
	peer, err := m.LookupActorByEmail(ctx, peerEmail)
	if err != nil {
		return domain.Conversation{}, err
	}

	docs, err := m.store.List(ctx, docstore.Collection(domain.ColConversations).
		Where("members", docstore.OpArrayContains, actor.Id))
	if err != nil {
		return domain.Conversation{}, err
	}
	for _, doc := range docs {
		conv := domain.ConversationFromData(doc.Id(), doc.Data)
		if conv.HasExactMembers(actor.Id, peer.Uid) {
			return conv, nil
		}
	}

	now := time.Now().UTC()
	conv := domain.Conversation{
		Members: []domain.ActorId{actor.Id, peer.Uid},
		MembersInfo: map[domain.ActorId]domain.AuthorSnapshot{
			actor.Id: actor.Snapshot(),
			peer.Uid: peer,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	data := conv.ToData()
	data["createdAt"] = docstore.ServerTimestamp()
	data["updatedAt"] = docstore.ServerTimestamp()

	path, err := m.store.Create(ctx, domain.ColConversations, data)
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("failed to create conversation: %w", err)
	}
	conv.Id = lastSegment(path)
	return conv, nil
}

// SendMessage appends an immutable message and refreshes the denormalized
// conversation summary. Empty input is silently skipped.
func (m *Messaging) SendMessage(ctx context.Context, actor *domain.Actor, conversationId domain.ConversationId, text string) (domain.MessageId, error) {
	if actor == nil {
		return "", errors.ErrNotAuthenticated
	}
	body := strings.TrimSpace(text)
	if body == "" {
		return "", nil
	}

	msg := domain.ChatMessage{From: actor.Id, Text: body}
	data := msg.ToData()
	data["createdAt"] = docstore.ServerTimestamp()

	path, err := m.store.Create(ctx, docstore.DocPath(domain.ColConversations, conversationId, domain.SubMessages), data)
	if err != nil {
		return "", fmt.Errorf("failed to send message: %w", err)
	}

	err = m.store.Set(ctx, docstore.DocPath(domain.ColConversations, conversationId), map[string]any{
		"lastMessage": map[string]any{
			"text": domain.Truncate(body, m.lastMessageLen),
			"at":   docstore.ServerTimestamp(),
			"from": actor.Id,
		},
		"updatedAt":     docstore.ServerTimestamp(),
		"activeMembers": docstore.ArrayUnion(actor.Id),
	}, true)
	if err != nil {
		return "", fmt.Errorf("failed to update conversation summary: %w", err)
	}
	return lastSegment(path), nil
}

func (m *Messaging) WatchConversations(ctx context.Context, view *reconcile.Manager, actorId domain.ActorId) (*reconcile.Handle, error) {
	if actorId == "" {
		return nil, errors.ErrNotAuthenticated
	}
	q := docstore.Collection(domain.ColConversations).
		Where("members", docstore.OpArrayContains, actorId).
		Order("updatedAt", true)
	return view.Open(ctx, q)
}

func (m *Messaging) WatchMessages(ctx context.Context, view *reconcile.Manager, conversationId domain.ConversationId) (*reconcile.Handle, error) {
	q := docstore.Collection(docstore.DocPath(domain.ColConversations, conversationId, domain.SubMessages)).
		Order("createdAt", false)
	return view.Open(ctx, q)
}

func ConversationsFromDocs(docs []docstore.Doc) []domain.Conversation {
	out := make([]domain.Conversation, 0, len(docs))
	for _, doc := range docs {
		out = append(out, domain.ConversationFromData(doc.Id(), doc.Data))
	}
	return out
}

func MessagesFromDocs(docs []docstore.Doc) []domain.ChatMessage {
	out := make([]domain.ChatMessage, 0, len(docs))
	for _, doc := range docs {
		out = append(out, domain.MessageFromData(doc.Id(), doc.Data))
	}
	return out
}
