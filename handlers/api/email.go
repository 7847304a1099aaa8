package api

import (
	"maildash/models"
	"maildash/session"
	"maildash/utils"

	"github.com/gofiber/fiber/v2"
)

const defaultPageSize = 50

// EmailHandler serves the email list, classification and summaries
type EmailHandler struct {
	base
}

// NewEmailHandler creates an email handler
func NewEmailHandler(sessions *session.Manager, log *utils.Logger) *EmailHandler {
	return &EmailHandler{base{sessions: sessions, log: log}}
}

type emailListResponse struct {
	Emails     []models.Email        `json:"emails"`
	Criteria   models.FilterCriteria `json:"criteria"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"page_size"`
	TotalPages int                   `json:"total_pages"`
	Filtered   int                   `json:"filtered"`
	Total      int                   `json:"total"`
	Synced     bool                  `json:"synced"`
	Stale      bool                  `json:"stale,omitempty"`
	Error      string                `json:"error,omitempty"`
}

// ListEmails loads the mailbox (cached unless ?force=true) and returns one
// page of the filtered view.
func (h *EmailHandler) ListEmails(c *fiber.Ctx) error {
	st, sess, err := h.storeFor(c)
	if err != nil {
		return err
	}

	criteria := models.DefaultCriteria()
	if err := c.QueryParser(&criteria); err != nil {
		return utils.BadRequestError("Invalid filter parameters", err)
	}

	resp := emailListResponse{}
	if err := st.FetchEmails(c.UserContext(), sess.UserID, c.QueryBool("force")); err != nil {
		if !st.Loaded() {
			return RemoteError("Failed to load emails", err)
		}
		// previously loaded emails are still served
		resp.Stale = true
		resp.Error = err.Error()
	}

	filtered := st.ApplyFilters(criteria)
	page := models.Paginate(filtered, queryInt(c, "page", 1), queryInt(c, "page_size", defaultPageSize))

	resp.Emails = page.Emails
	resp.Criteria = st.Criteria()
	resp.Page = page.Page
	resp.PageSize = page.PageSize
	resp.TotalPages = page.TotalPages
	resp.Filtered = page.TotalEmails
	resp.Total = len(st.Emails())
	resp.Synced = st.Synced()
	return c.JSON(resp)
}

// GetEmail returns one loaded email with its sanitised HTML and any cached
// summaries.
func (h *EmailHandler) GetEmail(c *fiber.Ctx) error {
	st, sess, err := h.storeFor(c)
	if err != nil {
		return err
	}
	if err := st.FetchEmails(c.UserContext(), sess.UserID, false); err != nil && !st.Loaded() {
		return RemoteError("Failed to load emails", err)
	}

	email, ok := st.FetchEmail(c.Params("id"))
	if !ok {
		return utils.NotFoundError("Email not found", nil).WithContext("id", c.Params("id"))
	}
	email.HTMLBody = utils.SanitizeHTML(email.HTMLBody)

	summaries := make(map[models.SummaryMode]string)
	for _, mode := range []models.SummaryMode{models.ModeShort, models.ModeDetailed, models.ModeBullet} {
		if text, ok := st.Summary(models.SummaryKey{Target: models.TargetEmail, ID: email.ID, Mode: mode}); ok {
			summaries[mode] = text
		}
	}

	return c.JSON(fiber.Map{
		"email":     email,
		"summaries": summaries,
	})
}

// Classify classifies one email
func (h *EmailHandler) Classify(c *fiber.Ctx) error {
	st, sess, err := h.storeFor(c)
	if err != nil {
		return err
	}

	cls, err := st.FilterEmail(c.UserContext(), c.Params("id"), sess.UserID)
	if err != nil {
		return RemoteError("Failed to classify email", err)
	}
	return c.JSON(fiber.Map{
		"email_id":       c.Params("id"),
		"classification": cls,
	})
}

// ClassifyAll classifies every email of the mailbox
func (h *EmailHandler) ClassifyAll(c *fiber.Ctx) error {
	st, sess, err := h.storeFor(c)
	if err != nil {
		return err
	}

	res, err := st.FilterAllEmails(c.UserContext(), sess.UserID)
	if err != nil {
		return RemoteError("Failed to classify emails", err)
	}
	return c.JSON(fiber.Map{
		"classified_emails": res,
		"count":             len(res),
	})
}

// SummarizeEmail returns the summary of one email in ?mode=
func (h *EmailHandler) SummarizeEmail(c *fiber.Ctx) error {
	st, sess, err := h.storeFor(c)
	if err != nil {
		return err
	}

	mode := models.ParseSummaryMode(c.Query("mode"))
	text, err := st.SummarizeEmail(c.UserContext(), c.Params("id"), sess.UserID, mode)
	if err != nil {
		return RemoteError("Failed to summarize email", err)
	}
	return c.JSON(fiber.Map{
		"email_id": c.Params("id"),
		"mode":     mode,
		"summary":  text,
	})
}

// SummarizeThread returns the summary of one thread in ?mode=
func (h *EmailHandler) SummarizeThread(c *fiber.Ctx) error {
	st, sess, err := h.storeFor(c)
	if err != nil {
		return err
	}

	mode := models.ParseSummaryMode(c.Query("mode"))
	text, err := st.SummarizeThread(c.UserContext(), c.Params("id"), sess.UserID, mode)
	if err != nil {
		return RemoteError("Failed to summarize thread", err)
	}
	return c.JSON(fiber.Map{
		"thread_id": c.Params("id"),
		"mode":      mode,
		"summary":   text,
	})
}

// Groups returns the loaded emails grouped by classification
func (h *EmailHandler) Groups(c *fiber.Ctx) error {
	st, _, err := h.storeFor(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"groups": st.Grouped()})
}

// Threads returns the loaded emails folded into threads
func (h *EmailHandler) Threads(c *fiber.Ctx) error {
	st, _, err := h.storeFor(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"threads": st.Threads()})
}

// Stats returns the dashboard counters and the store status
func (h *EmailHandler) Stats(c *fiber.Ctx) error {
	st, sess, err := h.storeFor(c)
	if err != nil {
		return err
	}

	resp := fiber.Map{
		"user_id": sess.UserID,
		"stats":   st.Stats(),
		"loaded":  st.Loaded(),
		"synced":  st.Synced(),
		"loading": st.Loading(),
	}
	if lastErr := st.Err(); lastErr != nil {
		resp["error"] = lastErr.Error()
	}
	return c.JSON(resp)
}
