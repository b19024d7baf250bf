package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askline-dev/askline/shared/domain"
	"github.com/askline-dev/askline/shared/errors"
)

func TestToggleLikeHandler(t *testing.T) {
	actor := &domain.Actor{Id: "u1", Email: "ann@example.com"}

	t.Run("returns new membership state", func(t *testing.T) {
		posts := &mockPosts{
			ToggleLikeFunc: func(ctx context.Context, id domain.QuestionId, actorId domain.ActorId) (bool, error) {
				assert.Equal(t, "q42", id)
				assert.Equal(t, "u1", actorId)
				return true, nil
			},
		}
		h := newTestHandler(nil, posts)
		r := newRouter(func(r chi.Router) {
			r.Post("/questions/{questionId}/like", withActor(h.ToggleLike, actor))
		})

		rec := serve(r, http.MethodPost, "/questions/q42/like", nil)
		requireStatus(t, rec, http.StatusOK)
		var resp map[string]bool
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp["liked"])
	})

	t.Run("anonymous is rejected", func(t *testing.T) {
		h := newTestHandler(nil, &mockPosts{})
		r := newRouter(func(r chi.Router) {
			r.Post("/questions/{questionId}/like", h.ToggleLike)
		})
		rec := serve(r, http.MethodPost, "/questions/q42/like", nil)
		requireStatus(t, rec, http.StatusUnauthorized)
	})

	t.Run("transient conflict maps to 503", func(t *testing.T) {
		posts := &mockPosts{
			ToggleLikeFunc: func(ctx context.Context, id domain.QuestionId, actorId domain.ActorId) (bool, error) {
				return false, errors.ErrTransient
			},
		}
		h := newTestHandler(nil, posts)
		r := newRouter(func(r chi.Router) {
			r.Post("/questions/{questionId}/like", withActor(h.ToggleLike, actor))
		})
		rec := serve(r, http.MethodPost, "/questions/q42/like", nil)
		requireStatus(t, rec, http.StatusServiceUnavailable)
	})
}

func TestListQuestionsHandler(t *testing.T) {
	questions := []domain.Question{
		{Id: "q1", Title: "newest"},
		{Id: "q2", Title: "older"},
	}

	t.Run("anonymous feed", func(t *testing.T) {
		posts := &mockPosts{
			ListQuestionsFunc: func(ctx context.Context) ([]domain.Question, error) {
				return questions, nil
			},
		}
		h := newTestHandler(nil, posts)
		r := newRouter(func(r chi.Router) {
			r.Get("/questions", h.ListQuestions)
		})
		rec := serve(r, http.MethodGet, "/questions", nil)
		requireStatus(t, rec, http.StatusOK)

		var got []domain.Question
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		require.Len(t, got, 2)
		assert.False(t, got[0].LikedByViewer)
	})

	t.Run("signed-in viewer gets like decoration", func(t *testing.T) {
		actor := &domain.Actor{Id: "u1"}
		posts := &mockPosts{
			ListQuestionsFunc: func(ctx context.Context) ([]domain.Question, error) {
				return append([]domain.Question(nil), questions...), nil
			},
			HasLikedFunc: func(ctx context.Context, id domain.QuestionId, actorId domain.ActorId) (bool, error) {
				return id == "q1", nil
			},
		}
		h := newTestHandler(nil, posts)
		r := newRouter(func(r chi.Router) {
			r.Get("/questions", withActor(h.ListQuestions, actor))
		})
		rec := serve(r, http.MethodGet, "/questions", nil)
		requireStatus(t, rec, http.StatusOK)

		var got []domain.Question
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		require.Len(t, got, 2)
		assert.True(t, got[0].LikedByViewer)
		assert.False(t, got[1].LikedByViewer)
	})
}

func TestAddCommentHandler(t *testing.T) {
	actor := &domain.Actor{Id: "u1"}
	posts := &mockPosts{
		AddCommentFunc: func(ctx context.Context, a *domain.Actor, questionId domain.QuestionId, text string) (domain.CommentId, error) {
			require.NotNil(t, a)
			assert.Equal(t, "q1", questionId)
			assert.Equal(t, "nice question", text)
			return "c1", nil
		},
	}
	h := newTestHandler(nil, posts)
	r := newRouter(func(r chi.Router) {
		r.Post("/questions/{questionId}/comments", withActor(h.AddComment, actor))
	})

	rec := serve(r, http.MethodPost, "/questions/q1/comments", jsonBody(`{"text":"nice question"}`))
	requireStatus(t, rec, http.StatusCreated)

	t.Run("missing text fails validation", func(t *testing.T) {
		rec := serve(r, http.MethodPost, "/questions/q1/comments", jsonBody(`{}`))
		requireStatus(t, rec, http.StatusBadRequest)
	})
}
