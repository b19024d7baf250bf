package domain

import "time"

// Conversation holds exactly two members. At most one conversation should
// exist per unordered member pair; uniqueness is only enforced by a
// lookup-before-create check, so near-simultaneous creates can still race.
type Conversation struct {
	Id          ConversationId
	Members     []ActorId
	MembersInfo map[ActorId]AuthorSnapshot
	LastMessage *LastMessage
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// LastMessage is the denormalized summary used to render conversation
// lists without reading the messages subcollection.
type LastMessage struct {
	Text string
	At   time.Time
	From ActorId
}

// ChatMessage is immutable once created; strictly ordered by CreatedAt.
type ChatMessage struct {
	Id        MessageId
	From      ActorId
	Text      string
	CreatedAt time.Time
}

// HasExactMembers reports whether the conversation's member set is
// exactly {a, b}.
func (c *Conversation) HasExactMembers(a, b ActorId) bool {
	if len(c.Members) != 2 {
		return false
	}
	set := map[ActorId]bool{c.Members[0]: true, c.Members[1]: true}
	return set[a] && set[b] && len(set) == 2
}

func (c *Conversation) ToData() map[string]any {
	info := make(map[string]any, len(c.MembersInfo))
	for uid, s := range c.MembersInfo {
		info[uid] = s.ToData()
	}
	data := map[string]any{
		"members":     c.Members,
		"membersInfo": info,
		"createdAt":   c.CreatedAt,
		"updatedAt":   c.UpdatedAt,
	}
	if c.LastMessage != nil {
		data["lastMessage"] = map[string]any{
			"text": c.LastMessage.Text,
			"at":   c.LastMessage.At,
			"from": c.LastMessage.From,
		}
	} else {
		data["lastMessage"] = nil
	}
	return data
}

func ConversationFromData(id string, data map[string]any) Conversation {
	conv := Conversation{
		Id:        id,
		Members:   getStrings(data, "members"),
		CreatedAt: getTime(data, "createdAt"),
		UpdatedAt: getTime(data, "updatedAt"),
	}
	if info := getMap(data, "membersInfo"); info != nil {
		conv.MembersInfo = make(map[ActorId]AuthorSnapshot, len(info))
		for uid, raw := range info {
			if m, ok := raw.(map[string]any); ok {
				conv.MembersInfo[uid] = SnapshotFromData(m)
			}
		}
	}
	if lm := getMap(data, "lastMessage"); lm != nil {
		conv.LastMessage = &LastMessage{
			Text: getString(lm, "text"),
			At:   getTime(lm, "at"),
			From: getString(lm, "from"),
		}
	}
	return conv
}

func (m *ChatMessage) ToData() map[string]any {
	return map[string]any{
		"from":      m.From,
		"text":      m.Text,
		"createdAt": m.CreatedAt,
	}
}

func MessageFromData(id string, data map[string]any) ChatMessage {
	return ChatMessage{
		Id:        id,
		From:      getString(data, "from"),
		Text:      getString(data, "text"),
		CreatedAt: getTime(data, "createdAt"),
	}
}
