package api

import (
	"maildash/session"
	"maildash/utils"

	"github.com/gofiber/fiber/v2"
)

// SearchHandler serves semantic search and agent runs
type SearchHandler struct {
	base
}

// NewSearchHandler creates a search handler
func NewSearchHandler(sessions *session.Manager, log *utils.Logger) *SearchHandler {
	return &SearchHandler{base{sessions: sessions, log: log}}
}

// Index rebuilds the semantic index
func (h *SearchHandler) Index(c *fiber.Ctx) error {
	st, sess, err := h.storeFor(c)
	if err != nil {
		return err
	}

	res, err := st.IndexSearch(c.UserContext(), sess.UserID)
	if err != nil {
		return RemoteError("Failed to index emails", err)
	}
	return c.JSON(res)
}

// Search answers ?q= with at most ?k= matches
func (h *SearchHandler) Search(c *fiber.Ctx) error {
	st, sess, err := h.storeFor(c)
	if err != nil {
		return err
	}

	res, err := st.Search(c.UserContext(), sess.UserID, c.Query("q"), queryInt(c, "k", 0))
	if err != nil {
		return RemoteError("Search failed", err)
	}
	return c.JSON(res)
}

// Agent runs the agent on one email
func (h *SearchHandler) Agent(c *fiber.Ctx) error {
	st, sess, err := h.storeFor(c)
	if err != nil {
		return err
	}

	res, err := st.RunAgent(c.UserContext(), c.Params("id"), sess.UserID)
	if err != nil {
		return RemoteError("Agent run failed", err)
	}
	return c.JSON(res)
}
