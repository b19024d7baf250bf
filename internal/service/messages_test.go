package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askline-dev/askline/internal/docstore"
	"github.com/askline-dev/askline/internal/docstore/memstore"
	"github.com/askline-dev/askline/internal/reconcile"
	"github.com/askline-dev/askline/shared/domain"
	"github.com/askline-dev/askline/shared/errors"
)

func newTestMessaging(t *testing.T) (*Messaging, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	t.Cleanup(func() { store.Close() })
	return NewMessaging(store, 200), store
}

func seedUser(t *testing.T, store *memstore.Store, id domain.ActorId, email domain.Email, name string) *domain.Actor {
	t.Helper()
	actor := &domain.Actor{
		Id:              id,
		Email:           email,
		NormalizedEmail: domain.NormalizeEmail(email),
		DisplayName:     name,
	}
	data := actor.ToData()
	require.NoError(t, store.Set(context.Background(), docstore.DocPath(domain.ColUsers, id), data, false))
	return actor
}

func TestLookupActorByEmail(t *testing.T) {
	m, store := newTestMessaging(t)
	ctx := context.Background()
	seedUser(t, store, "u2", "Bob@Example.com", "Bob")

	t.Run("exact normalized match", func(t *testing.T) {
		peer, err := m.LookupActorByEmail(ctx, "bob@example.com")
		require.NoError(t, err)
		assert.Equal(t, "u2", peer.Uid)
		assert.Equal(t, "Bob", peer.DisplayName)
	})

	t.Run("case-insensitive input", func(t *testing.T) {
		peer, err := m.LookupActorByEmail(ctx, " BOB@EXAMPLE.COM ")
		require.NoError(t, err)
		assert.Equal(t, "u2", peer.Uid)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := m.LookupActorByEmail(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, errors.ErrPeerNotFound)
	})
}

func TestEnsureConversation(t *testing.T) {
	m, store := newTestMessaging(t)
	ctx := context.Background()

	ann := seedUser(t, store, "u1", "ann@example.com", "Ann")
	seedUser(t, store, "u2", "bob@example.com", "Bob")

	t.Run("requires authentication", func(t *testing.T) {
		_, err := m.EnsureConversation(ctx, nil, "bob@example.com")
		assert.ErrorIs(t, err, errors.ErrNotAuthenticated)
	})

	t.Run("unknown peer", func(t *testing.T) {
		_, err := m.EnsureConversation(ctx, ann, "ghost@example.com")
		assert.ErrorIs(t, err, errors.ErrPeerNotFound)
	})

	conv, err := m.EnsureConversation(ctx, ann, "bob@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, conv.Id)
	assert.ElementsMatch(t, []domain.ActorId{"u1", "u2"}, conv.Members)
	assert.Equal(t, "Bob", conv.MembersInfo["u2"].DisplayName)

	t.Run("repeat call returns the same conversation", func(t *testing.T) {
		again, err := m.EnsureConversation(ctx, ann, "bob@example.com")
		require.NoError(t, err)
		assert.Equal(t, conv.Id, again.Id)

		docs, err := store.List(ctx, docstore.Collection(domain.ColConversations))
		require.NoError(t, err)
		assert.Len(t, docs, 1)
	})
}

func TestSendMessage(t *testing.T) {
	m, store := newTestMessaging(t)
	ctx := context.Background()

	ann := seedUser(t, store, "u1", "ann@example.com", "Ann")
	seedUser(t, store, "u2", "bob@example.com", "Bob")
	conv, err := m.EnsureConversation(ctx, ann, "bob@example.com")
	require.NoError(t, err)

	t.Run("requires authentication", func(t *testing.T) {
		_, err := m.SendMessage(ctx, nil, conv.Id, "hi")
		assert.ErrorIs(t, err, errors.ErrNotAuthenticated)
	})

	t.Run("blank input is skipped silently", func(t *testing.T) {
		id, err := m.SendMessage(ctx, ann, conv.Id, "   \n")
		require.NoError(t, err)
		assert.Empty(t, id)
	})

	t.Run("appends message and refreshes summary", func(t *testing.T) {
		id, err := m.SendMessage(ctx, ann, conv.Id, "hello bob")
		require.NoError(t, err)
		require.NotEmpty(t, id)

		msgDocs, err := store.List(ctx, docstore.Collection(
			docstore.DocPath(domain.ColConversations, conv.Id, domain.SubMessages)))
		require.NoError(t, err)
		require.Len(t, msgDocs, 1)

		doc, err := store.Get(ctx, docstore.DocPath(domain.ColConversations, conv.Id))
		require.NoError(t, err)
		updated := domain.ConversationFromData(doc.Id(), doc.Data)
		require.NotNil(t, updated.LastMessage)
		assert.Equal(t, "hello bob", updated.LastMessage.Text)
		assert.Equal(t, domain.ActorId("u1"), updated.LastMessage.From)
	})

	t.Run("watched messages arrive oldest first, timestamps never regress", func(t *testing.T) {
		view := reconcile.NewManager(store)
		defer view.CancelAll()

		handle, err := m.WatchMessages(ctx, view, conv.Id)
		require.NoError(t, err)

		recv := func() []domain.ChatMessage {
			select {
			case docs, ok := <-handle.Snapshots():
				require.True(t, ok, "snapshot channel closed")
				return MessagesFromDocs(docs)
			case <-time.After(2 * time.Second):
				t.Fatal("timed out waiting for snapshot")
				return nil
			}
		}

		before := len(recv()) // messages sent by earlier subtests
		for _, text := range []string{"first", "second", "third"} {
			_, err := m.SendMessage(ctx, ann, conv.Id, text)
			require.NoError(t, err)
		}

		var last time.Time
		for {
			msgs := recv()
			for i := 1; i < len(msgs); i++ {
				require.False(t, msgs[i].CreatedAt.Before(msgs[i-1].CreatedAt),
					"snapshot out of order at index %d", i)
			}
			if len(msgs) > 0 {
				tail := msgs[len(msgs)-1].CreatedAt
				require.False(t, tail.Before(last), "tail timestamp regressed across snapshots")
				last = tail
			}
			if len(msgs) == before+3 {
				assert.Equal(t, "third", msgs[len(msgs)-1].Text)
				break
			}
		}
	})

	t.Run("summary text is truncated", func(t *testing.T) {
		long := strings.Repeat("x", 500)
		_, err := m.SendMessage(ctx, ann, conv.Id, long)
		require.NoError(t, err)

		doc, err := store.Get(ctx, docstore.DocPath(domain.ColConversations, conv.Id))
		require.NoError(t, err)
		updated := domain.ConversationFromData(doc.Id(), doc.Data)
		require.NotNil(t, updated.LastMessage)
		assert.LessOrEqual(t, len(updated.LastMessage.Text), 200)
	})
}
