package web

import (
	"html/template"
	"strconv"

	"maildash/handlers/api"
	"maildash/models"
	"maildash/session"
	"maildash/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
)

const (
	pageSize     = 25
	recentEmails = 5
)

var summaryModes = []models.SummaryMode{models.ModeShort, models.ModeDetailed, models.ModeBullet}

// EmailHandler renders the dashboard, the email list and the grouped views
type EmailHandler struct {
	base
}

// NewEmailHandler creates an email page handler
func NewEmailHandler(sessions *session.Manager, log *utils.Logger) *EmailHandler {
	return &EmailHandler{base{sessions: sessions, log: log}}
}

// Dashboard renders the counters and the most recent emails
func (h *EmailHandler) Dashboard(c *fiber.Ctx) error {
	st, sess, err := h.storeFor(c)
	if err != nil {
		return err
	}
	notice, err := h.load(c, st, sess.UserID, false)
	if err != nil {
		return api.RemoteError("Failed to load emails", err)
	}

	recent := st.Emails()
	if len(recent) > recentEmails {
		recent = recent[:recentEmails]
	}

	return render(c, fiber.StatusOK, "dashboard", fiber.Map{
		"Stats":  st.Stats(),
		"Recent": recent,
		"Groups": st.Grouped(),
		"Notice": notice,
	})
}

// Emails renders one page of the filtered email list
func (h *EmailHandler) Emails(c *fiber.Ctx) error {
	st, sess, err := h.storeFor(c)
	if err != nil {
		return err
	}
	notice, err := h.load(c, st, sess.UserID, c.QueryBool("force"))
	if err != nil {
		return api.RemoteError("Failed to load emails", err)
	}

	criteria := models.DefaultCriteria()
	if err := c.QueryParser(&criteria); err != nil {
		return utils.BadRequestError("Invalid filter parameters", err)
	}
	filtered := st.ApplyFilters(criteria)

	pageNum, _ := strconv.Atoi(c.Query("page", "1"))
	paged := models.Paginate(filtered, pageNum, pageSize)

	args := fasthttp.AcquireArgs()
	defer fasthttp.ReleaseArgs(args)
	c.Request().URI().QueryArgs().CopyTo(args)
	args.Del("page")
	args.Del("force")

	return render(c, fiber.StatusOK, "emails", fiber.Map{
		"Emails":          paged.Emails,
		"Pagination":      paged,
		"PrevPage":        paged.Page - 1,
		"NextPage":        paged.Page + 1,
		"FilterQuery":     template.URL(args.String()),
		"Criteria":        st.Criteria(),
		"Classifications": models.Classifications,
		"Priorities":      []models.Priority{models.PriorityAll, models.PriorityHigh, models.PriorityMedium, models.PriorityLow},
		"Notice":          notice,
	})
}

// Email renders one email with its cached summaries and agent result
func (h *EmailHandler) Email(c *fiber.Ctx) error {
	st, sess, err := h.storeFor(c)
	if err != nil {
		return err
	}
	if _, err := h.load(c, st, sess.UserID, false); err != nil {
		return api.RemoteError("Failed to load emails", err)
	}

	email, ok := st.FetchEmail(c.Params("id"))
	if !ok {
		return utils.NotFoundError("Email not found", nil).WithContext("id", c.Params("id"))
	}

	summaries := make(map[models.SummaryMode]string)
	threadSummaries := make(map[models.SummaryMode]string)
	for _, mode := range summaryModes {
		if text, ok := st.Summary(models.SummaryKey{Target: models.TargetEmail, ID: email.ID, Mode: mode}); ok {
			summaries[mode] = text
		}
		if email.ThreadID == "" {
			continue
		}
		if text, ok := st.Summary(models.SummaryKey{Target: models.TargetThread, ID: email.ThreadID, Mode: mode}); ok {
			threadSummaries[mode] = text
		}
	}
	agent, _ := st.AgentResult(email.ID)

	return render(c, fiber.StatusOK, "email", fiber.Map{
		"Email":           email,
		"Body":            template.HTML(utils.SanitizeHTML(email.HTMLBody)),
		"Summaries":       summaries,
		"ThreadSummaries": threadSummaries,
		"Modes":           summaryModes,
		"Agent":           agent,
	})
}

// Classify classifies one email and returns to the posting page
func (h *EmailHandler) Classify(c *fiber.Ctx) error {
	st, sess, err := h.storeFor(c)
	if err != nil {
		return err
	}
	if _, err := st.FilterEmail(c.UserContext(), c.Params("id"), sess.UserID); err != nil {
		return api.RemoteError("Failed to classify email", err)
	}
	return back(c, "/emails/"+c.Params("id"))
}

// ClassifyAll classifies the whole mailbox and shows the grouped view
func (h *EmailHandler) ClassifyAll(c *fiber.Ctx) error {
	st, sess, err := h.storeFor(c)
	if err != nil {
		return err
	}
	if _, err := st.FilterAllEmails(c.UserContext(), sess.UserID); err != nil {
		return api.RemoteError("Failed to classify emails", err)
	}
	return back(c, "/filtered")
}

// Summarize requests the summary of one email in the posted mode
func (h *EmailHandler) Summarize(c *fiber.Ctx) error {
	st, sess, err := h.storeFor(c)
	if err != nil {
		return err
	}
	mode := models.ParseSummaryMode(c.FormValue("mode"))
	if _, err := st.SummarizeEmail(c.UserContext(), c.Params("id"), sess.UserID, mode); err != nil {
		return api.RemoteError("Failed to summarize email", err)
	}
	return back(c, "/emails/"+c.Params("id"))
}

// SummarizeThread requests the summary of one thread in the posted mode
func (h *EmailHandler) SummarizeThread(c *fiber.Ctx) error {
	st, sess, err := h.storeFor(c)
	if err != nil {
		return err
	}
	mode := models.ParseSummaryMode(c.FormValue("mode"))
	if _, err := st.SummarizeThread(c.UserContext(), c.Params("id"), sess.UserID, mode); err != nil {
		return api.RemoteError("Failed to summarize thread", err)
	}
	return back(c, "/summaries")
}

// Agent runs the agent on one email
func (h *EmailHandler) Agent(c *fiber.Ctx) error {
	st, sess, err := h.storeFor(c)
	if err != nil {
		return err
	}
	if _, err := st.RunAgent(c.UserContext(), c.Params("id"), sess.UserID); err != nil {
		return api.RemoteError("Agent run failed", err)
	}
	return back(c, "/emails/"+c.Params("id"))
}

// Filtered renders the emails grouped by classification
func (h *EmailHandler) Filtered(c *fiber.Ctx) error {
	st, sess, err := h.storeFor(c)
	if err != nil {
		return err
	}
	notice, err := h.load(c, st, sess.UserID, false)
	if err != nil {
		return api.RemoteError("Failed to load emails", err)
	}

	return render(c, fiber.StatusOK, "filtered", fiber.Map{
		"Groups": st.Grouped(),
		"Stats":  st.Stats(),
		"Notice": notice,
	})
}

type threadView struct {
	Thread    models.EmailThread
	Summaries map[models.SummaryMode]string
}

// Summaries renders every thread with the summaries cached so far
func (h *EmailHandler) Summaries(c *fiber.Ctx) error {
	st, sess, err := h.storeFor(c)
	if err != nil {
		return err
	}
	notice, err := h.load(c, st, sess.UserID, false)
	if err != nil {
		return api.RemoteError("Failed to load emails", err)
	}

	threads := st.Threads()
	views := make([]threadView, 0, len(threads))
	for _, t := range threads {
		v := threadView{Thread: t, Summaries: make(map[models.SummaryMode]string)}
		for _, mode := range summaryModes {
			if text, ok := st.Summary(models.SummaryKey{Target: models.TargetThread, ID: t.ID, Mode: mode}); ok {
				v.Summaries[mode] = text
			}
		}
		views = append(views, v)
	}

	return render(c, fiber.StatusOK, "summaries", fiber.Map{
		"Threads": views,
		"Modes":   summaryModes,
		"Notice":  notice,
	})
}
