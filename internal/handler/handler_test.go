package handler

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/askline-dev/askline/internal/docstore"
	"github.com/askline-dev/askline/internal/identity"
	"github.com/askline-dev/askline/internal/middleware"
	"github.com/askline-dev/askline/internal/reconcile"
	"github.com/askline-dev/askline/internal/service"
	"github.com/askline-dev/askline/shared/config"
	"github.com/askline-dev/askline/shared/domain"
)

// mockPosts implements service.PostsService with overridable functions.
type mockPosts struct {
	CreateQuestionFunc func(ctx context.Context, actor *domain.Actor, draft service.QuestionDraft) (domain.QuestionId, error)
	ToggleLikeFunc     func(ctx context.Context, id domain.QuestionId, actorId domain.ActorId) (bool, error)
	ListQuestionsFunc  func(ctx context.Context) ([]domain.Question, error)
	HasLikedFunc       func(ctx context.Context, id domain.QuestionId, actorId domain.ActorId) (bool, error)
	DeleteQuestionFunc func(ctx context.Context, id domain.QuestionId) error
	AddCommentFunc     func(ctx context.Context, actor *domain.Actor, questionId domain.QuestionId, text string) (domain.CommentId, error)
	DeleteCommentFunc  func(ctx context.Context, actor *domain.Actor, questionId domain.QuestionId, commentId domain.CommentId) error
}

var _ service.PostsService = (*mockPosts)(nil)

func (m *mockPosts) CreateQuestion(ctx context.Context, actor *domain.Actor, draft service.QuestionDraft) (domain.QuestionId, error) {
	return m.CreateQuestionFunc(ctx, actor, draft)
}
func (m *mockPosts) CreateArticle(ctx context.Context, draft service.ArticleDraft) (string, error) {
	panic("not implemented")
}
func (m *mockPosts) ListQuestions(ctx context.Context) ([]domain.Question, error) {
	return m.ListQuestionsFunc(ctx)
}
func (m *mockPosts) DeleteQuestion(ctx context.Context, id domain.QuestionId) error {
	return m.DeleteQuestionFunc(ctx, id)
}
func (m *mockPosts) ToggleLike(ctx context.Context, id domain.QuestionId, actorId domain.ActorId) (bool, error) {
	return m.ToggleLikeFunc(ctx, id, actorId)
}
func (m *mockPosts) HasLiked(ctx context.Context, id domain.QuestionId, actorId domain.ActorId) (bool, error) {
	return m.HasLikedFunc(ctx, id, actorId)
}
func (m *mockPosts) AddComment(ctx context.Context, actor *domain.Actor, questionId domain.QuestionId, text string) (domain.CommentId, error) {
	return m.AddCommentFunc(ctx, actor, questionId, text)
}
func (m *mockPosts) DeleteComment(ctx context.Context, actor *domain.Actor, questionId domain.QuestionId, commentId domain.CommentId) error {
	return m.DeleteCommentFunc(ctx, actor, questionId, commentId)
}
func (m *mockPosts) WatchQuestions(ctx context.Context, view *reconcile.Manager) (*reconcile.Handle, error) {
	panic("not implemented")
}
func (m *mockPosts) WatchComments(ctx context.Context, view *reconcile.Manager, questionId domain.QuestionId) (*reconcile.Handle, error) {
	panic("not implemented")
}
func (m *mockPosts) QuestionsFromDocs(docs []docstore.Doc) []domain.Question {
	panic("not implemented")
}

// mockProvider implements identity.Provider with overridable functions.
type mockProvider struct {
	SignUpFunc           func(ctx context.Context, email, password, displayName string) (identity.Session, error)
	SignInFunc           func(ctx context.Context, email, password string) (identity.Session, error)
	ResolveChallengeFunc func(ctx context.Context, challengeId, code string) (identity.Session, error)
	CurrentActorFunc     func(ctx context.Context, token string) (domain.Actor, time.Time, error)
}

var _ identity.Provider = (*mockProvider)(nil)

func (m *mockProvider) SignUp(ctx context.Context, email, password, displayName string) (identity.Session, error) {
	return m.SignUpFunc(ctx, email, password, displayName)
}
func (m *mockProvider) SignIn(ctx context.Context, email, password string) (identity.Session, error) {
	return m.SignInFunc(ctx, email, password)
}
func (m *mockProvider) ResolveChallenge(ctx context.Context, challengeId, code string) (identity.Session, error) {
	return m.ResolveChallengeFunc(ctx, challengeId, code)
}
func (m *mockProvider) CurrentActor(ctx context.Context, token string) (domain.Actor, time.Time, error) {
	return m.CurrentActorFunc(ctx, token)
}
func (m *mockProvider) SendPasswordReset(ctx context.Context, email string) error {
	panic("not implemented")
}
func (m *mockProvider) StartEnrollment(ctx context.Context, actor *domain.Actor, phoneNumber string) (string, error) {
	panic("not implemented")
}
func (m *mockProvider) VerifyEnrollment(ctx context.Context, actor *domain.Actor, enrollmentId, code, displayName string) error {
	panic("not implemented")
}
func (m *mockProvider) Unenroll(ctx context.Context, actor *domain.Actor, tokenIssuedAt time.Time, factorUid string) error {
	panic("not implemented")
}

// mockProfile implements service.ProfileService; EnsureSelfDoc defaults to
// a no-op because every session-establishing handler invokes it.
type mockProfile struct {
	EnsureSelfDocFunc func(ctx context.Context, actor *domain.Actor) error
}

var _ service.ProfileService = (*mockProfile)(nil)

func (m *mockProfile) Get(ctx context.Context, actorId domain.ActorId) (domain.Actor, error) {
	panic("not implemented")
}
func (m *mockProfile) EnsureSelfDoc(ctx context.Context, actor *domain.Actor) error {
	if m.EnsureSelfDocFunc == nil {
		return nil
	}
	return m.EnsureSelfDocFunc(ctx, actor)
}
func (m *mockProfile) SaveDisplayName(ctx context.Context, actorId domain.ActorId, displayName string) error {
	panic("not implemented")
}
func (m *mockProfile) SetAvatar(ctx context.Context, actorId domain.ActorId, filename string, size int64, data io.Reader) (string, error) {
	panic("not implemented")
}
func (m *mockProfile) MarkPremium(ctx context.Context, actorId domain.ActorId) error {
	panic("not implemented")
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Public.JwtTTL = time.Hour
	cfg.Defaults()
	return cfg
}

func newTestHandler(auth identity.Provider, posts service.PostsService) *Handler {
	return New(auth, posts, nil, &mockProfile{}, nil, testConfig())
}

// serve routes the request through chi so URL params resolve.
func serve(h http.Handler, method, target string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// withActor fakes the auth middleware for handlers that read the actor
// from the request context.
func withActor(next http.HandlerFunc, actor *domain.Actor) http.HandlerFunc {
	provider := &mockProvider{
		CurrentActorFunc: func(ctx context.Context, token string) (domain.Actor, time.Time, error) {
			return *actor, time.Now(), nil
		},
	}
	authMw := middleware.NewAuth(provider)
	return func(w http.ResponseWriter, r *http.Request) {
		r.Header.Set("Authorization", "Bearer test-token")
		authMw.NeedAuth()(next).ServeHTTP(w, r)
	}
}

func jsonBody(s string) io.Reader { return strings.NewReader(s) }

func newRouter(register func(r chi.Router)) *chi.Mux {
	r := chi.NewRouter()
	register(r)
	return r
}

func requireStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	require.Equal(t, want, rec.Code, "body: %s", rec.Body.String())
}
