// Package router assembles the HTTP route table.
package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/askline-dev/askline/internal/middleware"
	"github.com/askline-dev/askline/internal/setup"
	"github.com/askline-dev/askline/shared/utils"
)

// New configures the router. Rate limits attached with Use apply to every
// endpoint of that group combined.
func New(deps *setup.Dependencies) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.Public.CorsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	h := deps.Handler
	authMw := deps.AuthMiddleware

	r.Get("/healthz", h.Health)
	r.Get("/readyz", h.Ready)
	r.Handle("/metrics", promhttp.Handler())

	// Checkout widget endpoint; carries its own permissive CORS.
	r.HandleFunc("/createPaymentIntent", deps.Payments.CreatePaymentIntent)

	// Media uploads are served back as static files.
	if deps.Config.Public.MediaRoot != "" {
		fileServer := http.StripPrefix("/media/", http.FileServer(http.Dir(deps.Config.Public.MediaRoot)))
		r.Handle("/media/*", fileServer)
	}

	r.Route("/v1", func(v1 chi.Router) {
		v1.Route("/auth", func(auth chi.Router) {
			// Credential endpoints get per-IP throttling against brute force.
			auth.Group(func(g chi.Router) {
				g.Use(middleware.RateLimit(
					middleware.NewIdentityLimiter(1, 5, time.Hour), utils.GetIP))
				g.Post("/register", h.Register)
				g.Post("/login", h.Login)
				g.Post("/mfa/resolve", h.ResolveMfa)
				g.Post("/password_reset", h.PasswordReset)
			})
			auth.Post("/logout", h.Logout)

			auth.Group(func(g chi.Router) {
				g.Use(authMw.NeedAuth())
				g.Get("/me", h.Me)
				g.Post("/mfa/enroll", h.StartMfaEnrollment)
				g.Post("/mfa/enroll/verify", h.VerifyMfaEnrollment)
				g.Post("/mfa/unenroll", h.Unenroll)
			})
		})

		// Feed reads work signed out; the viewer decoration is added when
		// a valid token is present.
		v1.Group(func(g chi.Router) {
			g.Use(authMw.OptionalAuth())
			g.Get("/questions", h.ListQuestions)
			g.Get("/questions/stream", h.StreamQuestions)
			g.Get("/comments/stream", h.StreamComments)
		})

		v1.Group(func(g chi.Router) {
			g.Use(authMw.NeedAuth())
			g.Use(middleware.RateLimit(
				middleware.NewIdentityLimiter(10, 20, time.Hour), middleware.ByActor))

			g.Post("/questions", h.CreateQuestion)
			g.Delete("/questions/{questionId}", h.DeleteQuestion)
			g.Post("/questions/{questionId}/like", h.ToggleLike)
			g.Post("/questions/{questionId}/comments", h.AddComment)
			g.Delete("/questions/{questionId}/comments/{commentId}", h.DeleteComment)

			g.Post("/articles", h.CreateArticle)

			g.Get("/users/lookup", h.LookupPeer)
			g.Post("/conversations", h.EnsureConversation)
			g.Post("/conversations/{conversationId}/messages", h.SendMessage)
			g.Get("/conversations/stream", h.StreamConversations)
			g.Get("/messages/stream", h.StreamMessages)

			g.Put("/me/display_name", h.SaveDisplayName)
			g.Put("/me/avatar", h.SetAvatar)
			g.Post("/me/premium", h.MarkPremium)
		})
	})

	return r
}
