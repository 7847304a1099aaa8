package web

import (
	"errors"
	"strings"

	"maildash/handlers/api"
	"maildash/models"
	"maildash/session"
	"maildash/store"
	"maildash/utils"

	"github.com/gofiber/fiber/v2"
)

// SearchHandler renders the semantic search page
type SearchHandler struct {
	base
}

// NewSearchHandler creates a search page handler
func NewSearchHandler(sessions *session.Manager, log *utils.Logger) *SearchHandler {
	return &SearchHandler{base{sessions: sessions, log: log}}
}

type searchHit struct {
	Match models.SearchMatch
	Email models.Email
	Found bool
}

// Search runs ?q= when present and shows the last result otherwise
func (h *SearchHandler) Search(c *fiber.Ctx) error {
	st, sess, err := h.storeFor(c)
	if err != nil {
		return err
	}
	if _, err := h.load(c, st, sess.UserID, false); err != nil {
		return api.RemoteError("Failed to load emails", err)
	}

	query := strings.TrimSpace(c.Query("q"))
	data := fiber.Map{"Query": query}

	result := st.SearchResult()
	if _, present := c.Queries()["q"]; present {
		k := c.QueryInt("k", 0)
		res, err := st.Search(c.UserContext(), sess.UserID, query, k)
		switch {
		case errors.Is(err, store.ErrEmptyQuery):
			data["Error"] = utils.T(localizer(c), "search_empty_query")
			return render(c, fiber.StatusBadRequest, "search", data)
		case err != nil:
			return api.RemoteError("Search failed", err)
		}
		result = res
	}

	if result != nil {
		emails := st.Emails()
		hits := make([]searchHit, 0, len(result.Matches))
		for _, m := range result.Matches {
			hit := searchHit{Match: m}
			for _, e := range emails {
				if e.Matches(m.EmailID) {
					hit.Email, hit.Found = e, true
					break
				}
			}
			hits = append(hits, hit)
		}
		data["Result"] = result
		data["Hits"] = hits
		if query == "" {
			data["Query"] = result.Query
		}
	}
	return render(c, fiber.StatusOK, "search", data)
}

// Index rebuilds the semantic index and returns to the search page
func (h *SearchHandler) Index(c *fiber.Ctx) error {
	st, sess, err := h.storeFor(c)
	if err != nil {
		return err
	}
	if _, err := st.IndexSearch(c.UserContext(), sess.UserID); err != nil {
		return api.RemoteError("Failed to index emails", err)
	}
	return back(c, "/search")
}
