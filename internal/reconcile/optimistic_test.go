package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sharederrors "github.com/askline-dev/askline/shared/errors"
)

// likeView is the display state of a single feed item.
type likeView struct {
	Likes int
	Liked bool
}

func TestApplyKeepsSpeculationOnSuccess(t *testing.T) {
	c := NewCoordinator(likeView{Likes: 3, Liked: false})

	err := c.Apply(context.Background(), "q1",
		func(v likeView) likeView { return likeView{Likes: v.Likes + 1, Liked: true} },
		func(ctx context.Context) error { return nil },
	)
	require.NoError(t, err)
	assert.Equal(t, likeView{Likes: 4, Liked: true}, c.State())
}

func TestApplyRollsBackOnFailure(t *testing.T) {
	c := NewCoordinator(likeView{Likes: 3, Liked: false})
	remoteErr := errors.New("rejected")

	err := c.Apply(context.Background(), "q1",
		func(v likeView) likeView { return likeView{Likes: v.Likes + 1, Liked: true} },
		func(ctx context.Context) error { return remoteErr },
	)
	require.ErrorIs(t, err, remoteErr)
	assert.Equal(t, likeView{Likes: 3, Liked: false}, c.State(),
		"displayed state must equal the pre-toggle values exactly")
}

func TestSnapshotSupersedesRollback(t *testing.T) {
	c := NewCoordinator(likeView{Likes: 3, Liked: false})
	remoteErr := errors.New("rejected")

	err := c.Apply(context.Background(), "q1",
		func(v likeView) likeView { return likeView{Likes: v.Likes + 1, Liked: true} },
		func(ctx context.Context) error {
			// Authoritative snapshot arrives while the remote call is in
			// flight; it overwrites the speculation.
			c.SetAuthoritative(likeView{Likes: 7, Liked: false})
			return remoteErr
		},
	)
	require.ErrorIs(t, err, remoteErr)
	assert.Equal(t, likeView{Likes: 7, Liked: false}, c.State(),
		"rollback must not clobber an authoritative snapshot")
}

func TestApplyRejectsConcurrentMutationOnSameEntity(t *testing.T) {
	c := NewCoordinator(likeView{})

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- c.Apply(context.Background(), "q1",
			func(v likeView) likeView { return v },
			func(ctx context.Context) error {
				close(started)
				<-release
				return nil
			},
		)
	}()
	<-started

	assert.True(t, c.Pending("q1"))
	err := c.Apply(context.Background(), "q1",
		func(v likeView) likeView { return v },
		func(ctx context.Context) error { return nil },
	)
	assert.ErrorIs(t, err, sharederrors.ErrMutationPending)

	// A different entity is not blocked.
	err = c.Apply(context.Background(), "q2",
		func(v likeView) likeView { return v },
		func(ctx context.Context) error { return nil },
	)
	assert.NoError(t, err)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, c.Pending("q1"))
}

func TestLikeToggleScenario(t *testing.T) {
	// Actor who never liked the item sees likes=3. Toggle shows 4/liked
	// immediately, the snapshot confirms it, and a second toggle returns
	// to 3/unliked.
	c := NewCoordinator(likeView{Likes: 3, Liked: false})

	toggle := func(v likeView) likeView {
		if v.Liked {
			return likeView{Likes: v.Likes - 1, Liked: false}
		}
		return likeView{Likes: v.Likes + 1, Liked: true}
	}

	require.NoError(t, c.Apply(context.Background(), "q1", toggle, func(ctx context.Context) error { return nil }))
	assert.Equal(t, likeView{Likes: 4, Liked: true}, c.State())

	c.SetAuthoritative(likeView{Likes: 4, Liked: true})

	require.NoError(t, c.Apply(context.Background(), "q1", toggle, func(ctx context.Context) error { return nil }))
	assert.Equal(t, likeView{Likes: 3, Liked: false}, c.State())
}
