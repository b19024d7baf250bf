package domain

import "time"

// Comment is a child of a question, ordered by creation time ascending.
// Deletable only by its author; the caller checks identity before issuing
// the delete, the store does not enforce it.
type Comment struct {
	Id        CommentId
	Text      string
	Author    AuthorSnapshot
	CreatedAt time.Time
}

func (c *Comment) ToData() map[string]any {
	return map[string]any{
		"text":           c.Text,
		"uid":            c.Author.Uid,
		"authorName":     c.Author.DisplayName,
		"authorEmail":    c.Author.Email,
		"authorPhotoURL": c.Author.PhotoURL,
		"createdAt":      c.CreatedAt,
	}
}

func CommentFromData(id string, data map[string]any) Comment {
	return Comment{
		Id:   id,
		Text: getString(data, "text"),
		Author: AuthorSnapshot{
			Uid:         getString(data, "uid"),
			DisplayName: getString(data, "authorName"),
			Email:       getString(data, "authorEmail"),
			PhotoURL:    getString(data, "authorPhotoURL"),
		},
		CreatedAt: getTime(data, "createdAt"),
	}
}
