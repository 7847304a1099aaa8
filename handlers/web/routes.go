package web

import (
	"maildash/session"
	"maildash/utils"

	"github.com/gofiber/fiber/v2"
	fibersession "github.com/gofiber/fiber/v2/middleware/session"
)

// Handlers bundles every page handler
type Handlers struct {
	Auth     *AuthHandler
	Emails   *EmailHandler
	Drafts   *DraftHandler
	Search   *SearchHandler
	Settings *SettingsHandler
}

// NewHandlers builds the page handlers around one session manager
func NewHandlers(store *fibersession.Store, sessions *session.Manager, log *utils.Logger) *Handlers {
	return &Handlers{
		Auth:     NewAuthHandler(store, sessions, log),
		Emails:   NewEmailHandler(sessions, log),
		Drafts:   NewDraftHandler(sessions, log),
		Search:   NewSearchHandler(sessions, log),
		Settings: NewSettingsHandler(sessions, log),
	}
}

// RegisterPublic mounts the login flow
func (h *Handlers) RegisterPublic(r fiber.Router) {
	r.Get("/login", h.Auth.ShowLogin)
	r.Post("/login", h.Auth.StartLogin)
	r.Get("/login/start", h.Auth.StartLogin)
	// the provider redirect may be registered under either path
	r.Get("/callback", h.Auth.Callback)
	r.Get("/auth/callback", h.Auth.Callback)
	r.Post("/logout", h.Auth.Logout)
}

// Register mounts the pages on r, which must already run the auth middleware
func (h *Handlers) Register(r fiber.Router) {
	r.Get("/", h.Emails.Dashboard)
	r.Get("/emails", h.Emails.Emails)
	r.Get("/emails/:id", h.Emails.Email)
	r.Post("/emails/:id/classify", h.Emails.Classify)
	r.Post("/emails/:id/summary", h.Emails.Summarize)
	r.Post("/emails/:id/agent", h.Emails.Agent)
	r.Get("/emails/:id/reply", h.Drafts.ShowReply)
	r.Post("/emails/:id/reply", h.Drafts.Reply)

	r.Get("/filtered", h.Emails.Filtered)
	r.Post("/filtered/classify", h.Emails.ClassifyAll)
	r.Get("/summaries", h.Emails.Summaries)
	r.Post("/threads/:id/summary", h.Emails.SummarizeThread)

	r.Get("/compose", h.Drafts.ShowCompose)
	r.Post("/compose", h.Drafts.Compose)

	r.Get("/search", h.Search.Search)
	r.Post("/search/index", h.Search.Index)

	r.Get("/settings", h.Settings.ShowSettings)
	r.Post("/settings", h.Settings.UpdateSettings)
	r.Post("/settings/refresh", h.Settings.Refresh)
	r.Post("/settings/token", h.Settings.Token)
}
