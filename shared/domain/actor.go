package domain

import (
	"strings"
	"time"
)

// Actor is an authenticated end-user identity as stored in the users
// collection. The client never mutates it outside identity/profile flows.
type Actor struct {
	Id              ActorId
	Email           Email
	NormalizedEmail Email
	DisplayName     string
	PhotoURL        string
	EmailVerified   bool

	Premium          bool
	PremiumSince     time.Time
	EnrolledFactors  []PhoneFactor
	PassHash         string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// PhoneFactor is an enrolled SMS second factor.
type PhoneFactor struct {
	Uid         string
	PhoneNumber string
	DisplayName string
	EnrolledAt  time.Time
}

// AuthorSnapshot is the denormalized author copy embedded into posts,
// comments and conversation member info at creation time. It is never
// live-joined back to the users collection.
type AuthorSnapshot struct {
	Uid         ActorId
	DisplayName string
	Email       Email
	PhotoURL    string
}

func (a *Actor) Snapshot() AuthorSnapshot {
	return AuthorSnapshot{
		Uid:         a.Id,
		DisplayName: a.DisplayName,
		Email:       a.Email,
		PhotoURL:    a.PhotoURL,
	}
}

// NormalizeEmail lowercases and trims for exact-equality lookups.
func NormalizeEmail(email Email) Email {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s AuthorSnapshot) ToData() map[string]any {
	return map[string]any{
		"uid":         s.Uid,
		"displayName": s.DisplayName,
		"email":       s.Email,
		"photoURL":    s.PhotoURL,
	}
}

func SnapshotFromData(data map[string]any) AuthorSnapshot {
	return AuthorSnapshot{
		Uid:         getString(data, "uid"),
		DisplayName: getString(data, "displayName"),
		Email:       getString(data, "email"),
		PhotoURL:    getString(data, "photoURL"),
	}
}

func (a *Actor) ToData() map[string]any {
	factors := make([]any, 0, len(a.EnrolledFactors))
	for _, f := range a.EnrolledFactors {
		factors = append(factors, map[string]any{
			"uid":         f.Uid,
			"phoneNumber": f.PhoneNumber,
			"displayName": f.DisplayName,
			"enrolledAt":  f.EnrolledAt,
		})
	}
	return map[string]any{
		"email":           a.Email,
		"normalizedEmail": a.NormalizedEmail,
		"displayName":     a.DisplayName,
		"photoURL":        a.PhotoURL,
		"emailVerified":   a.EmailVerified,
		"premium":         a.Premium,
		"premiumSince":    a.PremiumSince,
		"enrolledFactors": factors,
		"passHash":        a.PassHash,
		"createdAt":       a.CreatedAt,
		"updatedAt":       a.UpdatedAt,
	}
}

func ActorFromData(id string, data map[string]any) Actor {
	actor := Actor{
		Id:              id,
		Email:           getString(data, "email"),
		NormalizedEmail: getString(data, "normalizedEmail"),
		DisplayName:     getString(data, "displayName"),
		PhotoURL:        getString(data, "photoURL"),
		EmailVerified:   getBool(data, "emailVerified"),
		Premium:         getBool(data, "premium"),
		PremiumSince:    getTime(data, "premiumSince"),
		PassHash:        getString(data, "passHash"),
		CreatedAt:       getTime(data, "createdAt"),
		UpdatedAt:       getTime(data, "updatedAt"),
	}
	if raw, ok := data["enrolledFactors"].([]any); ok {
		for _, rf := range raw {
			if m, ok := rf.(map[string]any); ok {
				actor.EnrolledFactors = append(actor.EnrolledFactors, PhoneFactor{
					Uid:         getString(m, "uid"),
					PhoneNumber: getString(m, "phoneNumber"),
					DisplayName: getString(m, "displayName"),
					EnrolledAt:  getTime(m, "enrolledAt"),
				})
			}
		}
	}
	return actor
}
