package api

import (
	"maildash/session"
	"maildash/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// Handlers bundles every JSON API handler
type Handlers struct {
	Emails        *EmailHandler
	Drafts        *DraftHandler
	Search        *SearchHandler
	Tokens        *TokenHandler
	I18n          *I18nHandler
	Notifications *NotificationHandler
}

// NewHandlers builds the API handlers around one session manager
func NewHandlers(sessions *session.Manager, tr *utils.Translator, notify *NotificationHandler, log *utils.Logger) *Handlers {
	return &Handlers{
		Emails:        NewEmailHandler(sessions, log),
		Drafts:        NewDraftHandler(sessions, log),
		Search:        NewSearchHandler(sessions, log),
		Tokens:        NewTokenHandler(sessions, log),
		I18n:          NewI18nHandler(tr),
		Notifications: notify,
	}
}

// Register mounts the API on r, which must already run the auth middleware
func (h *Handlers) Register(r fiber.Router) {
	r.Get("/emails", h.Emails.ListEmails)
	r.Post("/emails/classify-all", h.Emails.ClassifyAll)
	r.Get("/emails/:id", h.Emails.GetEmail)
	r.Post("/emails/:id/classify", h.Emails.Classify)
	r.Post("/emails/:id/summary", h.Emails.SummarizeEmail)
	r.Get("/threads", h.Emails.Threads)
	r.Post("/threads/:id/summary", h.Emails.SummarizeThread)
	r.Get("/groups", h.Emails.Groups)
	r.Get("/stats", h.Emails.Stats)

	r.Post("/drafts", h.Drafts.Generate)
	r.Post("/drafts/reply", h.Drafts.Reply)

	r.Post("/search/index", h.Search.Index)
	r.Get("/search", h.Search.Search)
	r.Post("/agent/:id", h.Search.Agent)

	r.Get("/token", h.Tokens.Issue)
	r.Get("/i18n/:lang", h.I18n.GetTranslations)

	if h.Notifications != nil {
		r.Get("/notifications", h.Notifications.HandleSSE)
	}
}

// RegisterWebSocket mounts the websocket notification stream on r
func (h *Handlers) RegisterWebSocket(r fiber.Router) {
	if h.Notifications == nil {
		return
	}
	r.Get("/notifications", h.Notifications.Upgrade, websocket.New(h.Notifications.HandleWebSocket))
}
