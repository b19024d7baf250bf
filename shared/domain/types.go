package domain

type (
	Email   = string
	ActorId = string

	QuestionId     = string
	CommentId      = string
	ConversationId = string
	MessageId      = string

	Tags = []string
)

// Collection names in the remote document store.
const (
	ColQuestions     = "questions"
	ColArticles      = "articles"
	ColUsers         = "users"
	ColConversations = "conversations"

	SubComments = "comments"
	SubLikes    = "likes"
	SubMessages = "messages"
)
