package domain

import (
	"time"
)

// Question is a feed item. Likes mirrors the cardinality of the likes
// subcollection whenever no mutation is in flight.
type Question struct {
	Id        QuestionId
	Title     string
	Body      string
	Tags      Tags
	ImageURL  string
	Author    AuthorSnapshot
	CreatedAt time.Time
	Likes     int

	// Derived, client-side only. Populated per viewing actor.
	LikedByViewer bool
	BodyHTML      string
}

// Article is the long-form feed item variant.
type Article struct {
	Id        string
	Title     string
	Abstract  string
	Text      string
	Tags      Tags
	ImageURL  string
	CreatedAt time.Time
}

func (q *Question) ToData() map[string]any {
	return map[string]any{
		"title":          q.Title,
		"body":           q.Body,
		"tags":           q.Tags,
		"imageUrl":       q.ImageURL,
		"likes":          q.Likes,
		"createdAt":      q.CreatedAt,
		"authorUid":      q.Author.Uid,
		"authorEmail":    q.Author.Email,
		"authorName":     q.Author.DisplayName,
		"authorPhotoURL": q.Author.PhotoURL,
	}
}

func QuestionFromData(id string, data map[string]any) Question {
	return Question{
		Id:       id,
		Title:    getString(data, "title"),
		Body:     getString(data, "body"),
		Tags:     NormalizeTags(data["tags"]),
		ImageURL: getString(data, "imageUrl"),
		Author: AuthorSnapshot{
			Uid:         getString(data, "authorUid"),
			Email:       getString(data, "authorEmail"),
			DisplayName: getString(data, "authorName"),
			PhotoURL:    getString(data, "authorPhotoURL"),
		},
		CreatedAt: getTime(data, "createdAt"),
		Likes:     getInt(data, "likes"),
	}
}

func (a *Article) ToData() map[string]any {
	return map[string]any{
		"title":     a.Title,
		"abstract":  a.Abstract,
		"text":      a.Text,
		"tags":      a.Tags,
		"imageUrl":  a.ImageURL,
		"createdAt": a.CreatedAt,
	}
}

func ArticleFromData(id string, data map[string]any) Article {
	return Article{
		Id:        id,
		Title:     getString(data, "title"),
		Abstract:  getString(data, "abstract"),
		Text:      getString(data, "text"),
		Tags:      NormalizeTags(data["tags"]),
		ImageURL:  getString(data, "imageUrl"),
		CreatedAt: getTime(data, "createdAt"),
	}
}
