package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/askline-dev/askline/internal/docstore"
	"github.com/askline-dev/askline/internal/reconcile"
	"github.com/askline-dev/askline/internal/service"
	"github.com/askline-dev/askline/shared/errors"
	"github.com/askline-dev/askline/shared/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Cross-origin policy is enforced by the CORS layer in front of the
	// router; the upgrade itself accepts any origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StreamQuestions pushes the full ordered question feed on every commit
// that affects it.
func (h *Handler) StreamQuestions(w http.ResponseWriter, r *http.Request) {
	h.stream(w, r, func(ctx context.Context, view *reconcile.Manager) (*reconcile.Handle, error) {
		return h.posts.WatchQuestions(ctx, view)
	}, func(docs []docstore.Doc) any {
		return h.posts.QuestionsFromDocs(docs)
	})
}

// StreamComments pushes a question's comment thread, oldest first.
func (h *Handler) StreamComments(w http.ResponseWriter, r *http.Request) {
	questionId := r.URL.Query().Get("questionId")
	if questionId == "" {
		writeErrorAndStatusCode(w, &errors.ErrorWithStatusCode{Message: "questionId query parameter is required", StatusCode: 400})
		return
	}
	h.stream(w, r, func(ctx context.Context, view *reconcile.Manager) (*reconcile.Handle, error) {
		return h.posts.WatchComments(ctx, view, questionId)
	}, func(docs []docstore.Doc) any {
		return service.CommentsFromDocs(docs)
	})
}

// StreamConversations pushes the viewer's conversation list ordered by
// recent activity.
func (h *Handler) StreamConversations(w http.ResponseWriter, r *http.Request) {
	actor := h.actor(r)
	if actor == nil {
		writeErrorAndStatusCode(w, errors.ErrNotAuthenticated)
		return
	}
	h.stream(w, r, func(ctx context.Context, view *reconcile.Manager) (*reconcile.Handle, error) {
		return h.messaging.WatchConversations(ctx, view, actor.Id)
	}, func(docs []docstore.Doc) any {
		return service.ConversationsFromDocs(docs)
	})
}

// StreamMessages pushes a conversation's message history in order.
// Switching the conversationId means opening a fresh socket; each socket
// holds at most one live query per fingerprint, so stale deliveries from
// a previous conversation cannot interleave.
func (h *Handler) StreamMessages(w http.ResponseWriter, r *http.Request) {
	conversationId := r.URL.Query().Get("conversationId")
	if conversationId == "" {
		writeErrorAndStatusCode(w, &errors.ErrorWithStatusCode{Message: "conversationId query parameter is required", StatusCode: 400})
		return
	}
	h.stream(w, r, func(ctx context.Context, view *reconcile.Manager) (*reconcile.Handle, error) {
		return h.messaging.WatchMessages(ctx, view, conversationId)
	}, func(docs []docstore.Doc) any {
		return service.MessagesFromDocs(docs)
	})
}

// stream upgrades the connection, opens the live query and forwards every
// snapshot as one JSON frame until either side goes away.
func (h *Handler) stream(w http.ResponseWriter, r *http.Request,
	open func(ctx context.Context, view *reconcile.Manager) (*reconcile.Handle, error),
	decode func(docs []docstore.Doc) any) {

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	view := h.newView()
	defer view.CancelAll()

	handle, err := open(ctx, view)
	if err != nil {
		logger.Log.Error("failed to open stream", "path", r.URL.Path, "error", err)
		closeWith(conn, websocket.CloseInternalServerErr, "subscription failed")
		return
	}

	// Reader pump. The client never sends data frames; reads exist to
	// notice the peer closing the socket.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				handle.Cancel()
				return
			}
		}
	}()

	for docs := range handle.Snapshots() {
		if err := conn.WriteJSON(decode(docs)); err != nil {
			return
		}
	}
	if err := handle.Err(); err != nil {
		logger.Log.Warn("stream ended", "path", r.URL.Path, "error", err)
		closeWith(conn, websocket.CloseInternalServerErr, "stream failed")
		return
	}
	closeWith(conn, websocket.CloseNormalClosure, "")
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	deadline := time.Now().Add(time.Second)
	conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
}
