package service

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/askline-dev/askline/internal/blobstore"
	"github.com/askline-dev/askline/internal/docstore"
	"github.com/askline-dev/askline/shared/domain"
	"github.com/askline-dev/askline/shared/errors"
	"github.com/askline-dev/askline/shared/validation"
)

// ProfileService manages the actor's own user document and avatar.
type ProfileService interface {
	Get(ctx context.Context, actorId domain.ActorId) (domain.Actor, error)
	EnsureSelfDoc(ctx context.Context, actor *domain.Actor) error
	SaveDisplayName(ctx context.Context, actorId domain.ActorId, displayName string) error
	SetAvatar(ctx context.Context, actorId domain.ActorId, filename string, size int64, data io.Reader) (string, error)
	MarkPremium(ctx context.Context, actorId domain.ActorId) error
}

type Profile struct {
	store docstore.Client
	media blobstore.Store
}

var _ ProfileService = (*Profile)(nil)

func NewProfile(store docstore.Client, media blobstore.Store) *Profile {
	return &Profile{store: store, media: media}
}

func (p *Profile) Get(ctx context.Context, actorId domain.ActorId) (domain.Actor, error) {
	if actorId == "" {
		return domain.Actor{}, errors.ErrNotAuthenticated
	}
	doc, err := p.store.Get(ctx, docstore.DocPath(domain.ColUsers, actorId))
	if err != nil {
		return domain.Actor{}, err
	}
	return domain.ActorFromData(doc.Id(), doc.Data), nil
}

// EnsureSelfDoc upserts the actor's user document so email lookups and
// member snapshots stay current. Creation stamps createdAt once; later
// calls merge over the existing fields.
func (p *Profile) EnsureSelfDoc(ctx context.Context, actor *domain.Actor) error {
	if actor == nil {
		return errors.ErrNotAuthenticated
	}
	path := docstore.DocPath(domain.ColUsers, actor.Id)
	base := map[string]any{
		"email":           actor.Email,
		"normalizedEmail": domain.NormalizeEmail(actor.Email),
		"displayName":     actor.DisplayName,
		"photoURL":        actor.PhotoURL,
		"updatedAt":       docstore.ServerTimestamp(),
	}

	_, err := p.store.Get(ctx, path)
	switch {
	case errors.IsNotFound(err):
		base["createdAt"] = docstore.ServerTimestamp()
		return p.store.Set(ctx, path, base, true)
	case err != nil:
		return err
	default:
		return p.store.Set(ctx, path, base, true)
	}
}

func (p *Profile) SaveDisplayName(ctx context.Context, actorId domain.ActorId, displayName string) error {
	if actorId == "" {
		return errors.ErrNotAuthenticated
	}
	return p.store.Set(ctx, docstore.DocPath(domain.ColUsers, actorId), map[string]any{
		"displayName": strings.TrimSpace(displayName),
		"updatedAt":   docstore.ServerTimestamp(),
	}, true)
}

// SetAvatar validates the image and replaces the actor's single avatar
// slot: delete, upload, then record the new URL on the user document.
func (p *Profile) SetAvatar(ctx context.Context, actorId domain.ActorId, filename string, size int64, data io.Reader) (string, error) {
	if actorId == "" {
		return "", errors.ErrNotAuthenticated
	}
	checked, err := validation.ValidateAvatar(filename, size, data)
	if err != nil {
		return "", err
	}

	slot := fmt.Sprintf("avatars/%s%s", actorId, checked.Extension)
	if err := p.media.Delete(ctx, slot); err != nil {
		return "", err
	}
	url, err := p.media.Save(ctx, slot, checked.Data)
	if err != nil {
		return "", fmt.Errorf("failed to upload avatar: %w", err)
	}

	err = p.store.Set(ctx, docstore.DocPath(domain.ColUsers, actorId), map[string]any{
		"photoURL":  url,
		"updatedAt": docstore.ServerTimestamp(),
	}, true)
	if err != nil {
		return "", err
	}
	return url, nil
}

// MarkPremium flags the plan upgrade after a confirmed payment.
func (p *Profile) MarkPremium(ctx context.Context, actorId domain.ActorId) error {
	if actorId == "" {
		return errors.ErrNotAuthenticated
	}
	return p.store.Set(ctx, docstore.DocPath(domain.ColUsers, actorId), map[string]any{
		"premium":      true,
		"premiumSince": docstore.ServerTimestamp(),
		"updatedAt":    docstore.ServerTimestamp(),
	}, true)
}
