package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/erazemk/menjava/internal/auth"
	"github.com/erazemk/menjava/internal/exchange"
	"github.com/erazemk/menjava/internal/inbox"
	"github.com/erazemk/menjava/internal/messaging"
)

// Deps are the services the HTTP API is built on.
type Deps struct {
	DB          *sql.DB
	Tokens      *auth.Tokens
	Ledger      *exchange.Ledger
	Inbox       *inbox.Aggregator
	Messaging   *messaging.Service
	Realtime    messaging.Realtime
	Log         *slog.Logger
	CORSOrigins []string
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(d Deps) http.Handler {
	if d.Log == nil {
		d.Log = slog.Default()
	}
	if len(d.CORSOrigins) == 0 {
		d.CORSOrigins = []string{"*"}
	}

	authHandler := &AuthHandler{DB: d.DB, Tokens: d.Tokens}
	usersHandler := &UsersHandler{DB: d.DB}
	objectsHandler := &ObjectsHandler{DB: d.DB}
	proposalsHandler := &ProposalsHandler{Ledger: d.Ledger, Inbox: d.Inbox}
	inboxHandler := &InboxHandler{Inbox: d.Inbox}
	linksHandler := &LinksHandler{DB: d.DB}
	conversationsHandler := &ConversationsHandler{
		Messaging: d.Messaging,
		Realtime:  d.Realtime,
		Log:       d.Log,
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Recovery)
	r.Use(LoggingMiddleware(d.Log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: d.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", Health(d.DB))

	r.Route("/api", func(r chi.Router) {
		// Public.
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(d.Tokens, d.DB))

			r.Put("/auth/password", authHandler.ChangePassword)
			r.Post("/auth/logout", authHandler.Logout)

			r.Get("/me", usersHandler.Me)
			r.Put("/me", usersHandler.UpdateMe)
			r.Delete("/me", usersHandler.DeleteMe)
			r.Get("/users/{id}", usersHandler.Get)

			r.Route("/objects", func(r chi.Router) {
				r.Get("/", objectsHandler.List)
				r.Post("/", objectsHandler.Create)
				r.Get("/{id}", objectsHandler.Get)
				r.Put("/{id}", objectsHandler.Update)
				r.Get("/{id}/image", objectsHandler.GetImage)
				r.Put("/{id}/image", objectsHandler.UploadImage)
				r.Get("/{id}/history", objectsHandler.GetHistory)
			})

			r.Route("/proposals", func(r chi.Router) {
				r.Get("/", proposalsHandler.List)
				r.Post("/", proposalsHandler.Create)
				r.Get("/{id}", proposalsHandler.Inspect)
				r.Post("/{id}/accept", proposalsHandler.Accept)
				r.Post("/{id}/decline", proposalsHandler.Decline)
				r.Post("/{id}/cancel", proposalsHandler.Cancel)
			})

			r.Get("/inbox", inboxHandler.Get)

			r.Post("/links", linksHandler.Create)
			r.Post("/links/{id}/accept", linksHandler.Accept)
			r.Post("/links/{id}/reject", linksHandler.Reject)

			r.Route("/conversations", func(r chi.Router) {
				r.Get("/", conversationsHandler.List)
				r.Get("/{peer}/messages", conversationsHandler.History)
				r.Post("/{peer}/messages", conversationsHandler.Send)
				r.Post("/{peer}/typing", conversationsHandler.Typing)
				r.Get("/{peer}/stream", conversationsHandler.Stream)
			})
		})
	})

	return r
}
