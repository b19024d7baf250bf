package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/askline-dev/askline/internal/blobstore"
	"github.com/askline-dev/askline/internal/docstore"
	"github.com/askline-dev/askline/internal/reconcile"
	"github.com/askline-dev/askline/shared/domain"
	"github.com/askline-dev/askline/shared/errors"
	"github.com/askline-dev/askline/shared/markdown"
)

// PostsService covers the feed: questions, articles, likes and comments.
type PostsService interface {
	CreateQuestion(ctx context.Context, actor *domain.Actor, draft QuestionDraft) (domain.QuestionId, error)
	CreateArticle(ctx context.Context, draft ArticleDraft) (string, error)
	ListQuestions(ctx context.Context) ([]domain.Question, error)
	DeleteQuestion(ctx context.Context, id domain.QuestionId) error

	ToggleLike(ctx context.Context, id domain.QuestionId, actorId domain.ActorId) (bool, error)
	HasLiked(ctx context.Context, id domain.QuestionId, actorId domain.ActorId) (bool, error)

	AddComment(ctx context.Context, actor *domain.Actor, questionId domain.QuestionId, text string) (domain.CommentId, error)
	DeleteComment(ctx context.Context, actor *domain.Actor, questionId domain.QuestionId, commentId domain.CommentId) error

	WatchQuestions(ctx context.Context, view *reconcile.Manager) (*reconcile.Handle, error)
	WatchComments(ctx context.Context, view *reconcile.Manager, questionId domain.QuestionId) (*reconcile.Handle, error)

	QuestionsFromDocs(docs []docstore.Doc) []domain.Question
}

type Posts struct {
	store    docstore.Client
	media    blobstore.Store
	renderer *markdown.Renderer
}

var _ PostsService = (*Posts)(nil)

func NewPosts(store docstore.Client, media blobstore.Store, renderer *markdown.Renderer) *Posts {
	return &Posts{store: store, media: media, renderer: renderer}
}

// QuestionDraft is the compose form payload as it travels through the
// layers.
type QuestionDraft struct {
	Title string
	Body  string
	Tags  any // comma-separated string or slice; normalized here
	Image *Upload
}

type ArticleDraft struct {
	Title    string
	Abstract string
	Text     string
	Tags     any
	Image    *Upload
}

type Upload struct {
	Filename string
	Data     io.Reader
}

func (p *Posts) CreateQuestion(ctx context.Context, actor *domain.Actor, draft QuestionDraft) (domain.QuestionId, error) {
	title := strings.TrimSpace(draft.Title)
	body := strings.TrimSpace(draft.Body)
	if title == "" || body == "" {
		return "", &errors.ValidationError{Message: "title and body must not be empty"}
	}

	imageURL, err := p.maybeUpload(ctx, draft.Image, "questions")
	if err != nil {
		return "", err
	}

	q := domain.Question{
		Title:     title,
		Body:      body,
		Tags:      domain.NormalizeTags(draft.Tags),
		ImageURL:  imageURL,
	}
	if actor != nil {
		q.Author = actor.Snapshot()
	}
	data := q.ToData()
	data["createdAt"] = docstore.ServerTimestamp()

	path, err := p.store.Create(ctx, domain.ColQuestions, data)
	if err != nil {
		return "", fmt.Errorf("failed to create question: %w", err)
	}
	return lastSegment(path), nil
}

func (p *Posts) CreateArticle(ctx context.Context, draft ArticleDraft) (string, error) {
	title := strings.TrimSpace(draft.Title)
	abstract := strings.TrimSpace(draft.Abstract)
	if title == "" || abstract == "" {
		return "", &errors.ValidationError{Message: "title and abstract must not be empty"}
	}

	imageURL, err := p.maybeUpload(ctx, draft.Image, "articles")
	if err != nil {
		return "", err
	}

	a := domain.Article{
		Title:    title,
		Abstract: abstract,
		Text:     strings.TrimSpace(draft.Text),
		Tags:     domain.NormalizeTags(draft.Tags),
		ImageURL: imageURL,
	}
	data := a.ToData()
	data["createdAt"] = docstore.ServerTimestamp()

	path, err := p.store.Create(ctx, domain.ColArticles, data)
	if err != nil {
		return "", fmt.Errorf("failed to create article: %w", err)
	}
	return lastSegment(path), nil
}

func (p *Posts) ListQuestions(ctx context.Context) ([]domain.Question, error) {
	docs, err := p.store.List(ctx, questionsQuery())
	if err != nil {
		return nil, err
	}
	return p.QuestionsFromDocs(docs), nil
}

// DeleteQuestion removes the item. Any client holding a reference may
// delete; ownership is not checked here.
func (p *Posts) DeleteQuestion(ctx context.Context, id domain.QuestionId) error {
	return p.store.Delete(ctx, docstore.DocPath(domain.ColQuestions, id))
}

// ToggleLike flips the (item, actor) membership and adjusts the likes
// counter in the same atomic unit. The counter and the membership record
// are never mutated independently: a conflicting concurrent toggle makes
// the whole transaction retry, and exhausted retries surface as a
// transient failure with no partial application observable.
func (p *Posts) ToggleLike(ctx context.Context, id domain.QuestionId, actorId domain.ActorId) (bool, error) {
	if actorId == "" {
		return false, errors.ErrNotAuthenticated
	}
	counterPath := docstore.DocPath(domain.ColQuestions, id)
	membershipPath := docstore.DocPath(domain.ColQuestions, id, domain.SubLikes, actorId)

	var nowMember bool
	err := p.store.RunTransaction(ctx, func(tx docstore.Tx) error {
		_, err := tx.Get(membershipPath)
		switch {
		case err == nil:
			tx.Delete(membershipPath)
			tx.Set(counterPath, map[string]any{"likes": docstore.Increment(-1)}, true)
			nowMember = false
		case errors.IsNotFound(err):
			tx.Set(membershipPath, map[string]any{"createdAt": docstore.ServerTimestamp()}, false)
			// merge-set so a counter that has never existed is treated
			// as 0 before the increment
			tx.Set(counterPath, map[string]any{"likes": docstore.Increment(1)}, true)
			nowMember = true
		default:
			return err
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return nowMember, nil
}

func (p *Posts) HasLiked(ctx context.Context, id domain.QuestionId, actorId domain.ActorId) (bool, error) {
	if actorId == "" {
		return false, nil
	}
	_, err := p.store.Get(ctx, docstore.DocPath(domain.ColQuestions, id, domain.SubLikes, actorId))
	if err != nil {
		if errors.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (p *Posts) AddComment(ctx context.Context, actor *domain.Actor, questionId domain.QuestionId, text string) (domain.CommentId, error) {
	if actor == nil {
		return "", errors.ErrNotAuthenticated
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", &errors.ValidationError{Message: "empty comment"}
	}

	c := domain.Comment{Text: text, Author: actor.Snapshot()}
	data := c.ToData()
	data["createdAt"] = docstore.ServerTimestamp()

	path, err := p.store.Create(ctx, docstore.DocPath(domain.ColQuestions, questionId, domain.SubComments), data)
	if err != nil {
		return "", fmt.Errorf("failed to add comment: %w", err)
	}
	return lastSegment(path), nil
}

// DeleteComment removes the actor's own comment. Authorship is compared
// by actor id before the delete is issued; the store does not enforce it.
func (p *Posts) DeleteComment(ctx context.Context, actor *domain.Actor, questionId domain.QuestionId, commentId domain.CommentId) error {
	if actor == nil {
		return errors.ErrNotAuthenticated
	}
	path := docstore.DocPath(domain.ColQuestions, questionId, domain.SubComments, commentId)
	doc, err := p.store.Get(ctx, path)
	if err != nil {
		return err
	}
	comment := domain.CommentFromData(doc.Id(), doc.Data)
	if comment.Author.Uid != actor.Id {
		return errors.ErrPermissionDenied
	}
	return p.store.Delete(ctx, path)
}

func (p *Posts) WatchQuestions(ctx context.Context, view *reconcile.Manager) (*reconcile.Handle, error) {
	return view.Open(ctx, questionsQuery())
}

func (p *Posts) WatchComments(ctx context.Context, view *reconcile.Manager, questionId domain.QuestionId) (*reconcile.Handle, error) {
	q := docstore.Collection(docstore.DocPath(domain.ColQuestions, questionId, domain.SubComments)).
		Order("createdAt", false)
	return view.Open(ctx, q)
}

// QuestionsFromDocs decodes a snapshot, rendering bodies to sanitized
// HTML for display.
func (p *Posts) QuestionsFromDocs(docs []docstore.Doc) []domain.Question {
	out := make([]domain.Question, 0, len(docs))
	for _, doc := range docs {
		q := domain.QuestionFromData(doc.Id(), doc.Data)
		if p.renderer != nil {
			q.BodyHTML = p.renderer.Render(q.Body)
		}
		out = append(out, q)
	}
	return out
}

func CommentsFromDocs(docs []docstore.Doc) []domain.Comment {
	out := make([]domain.Comment, 0, len(docs))
	for _, doc := range docs {
		out = append(out, domain.CommentFromData(doc.Id(), doc.Data))
	}
	return out
}

func questionsQuery() docstore.Query {
	return docstore.Collection(domain.ColQuestions).Order("createdAt", true)
}

func (p *Posts) maybeUpload(ctx context.Context, upload *Upload, folder string) (string, error) {
	if upload == nil {
		return "", nil
	}
	path := fmt.Sprintf("%s/%d_%s", folder, time.Now().UnixMilli(), upload.Filename)
	url, err := p.media.Save(ctx, path, upload.Data)
	if err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}
	return url, nil
}

func lastSegment(path string) string {
	i := strings.LastIndexByte(path, '/')
	return path[i+1:]
}
