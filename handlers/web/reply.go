package web

import (
	"strings"

	"maildash/handlers/api"
	"maildash/models"
	"maildash/session"
	"maildash/utils"

	"github.com/gofiber/fiber/v2"
)

// DraftHandler renders the compose and reply draft pages
type DraftHandler struct {
	base
}

// NewDraftHandler creates a new draft page handler
func NewDraftHandler(sessions *session.Manager, log *utils.Logger) *DraftHandler {
	return &DraftHandler{base{sessions: sessions, log: log}}
}

// ShowCompose renders the draft form with the last generated draft
func (h *DraftHandler) ShowCompose(c *fiber.Ctx) error {
	st, _, err := h.storeFor(c)
	if err != nil {
		return err
	}

	data := fiber.Map{"Request": models.DraftRequest{}}
	if draft, ok := st.LastDraft(); ok && !draft.Reply {
		data["Request"] = draft.Request
		data["Draft"] = draft.Text
	}
	return render(c, fiber.StatusOK, "compose", data)
}

// Compose generates a new draft from the posted form
func (h *DraftHandler) Compose(c *fiber.Ctx) error {
	st, sess, err := h.storeFor(c)
	if err != nil {
		return err
	}

	var req models.DraftRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.BadRequestError("Invalid draft form", err)
	}
	req = trimDraft(req)

	if req.Recipient == "" || req.Context == "" {
		return render(c, fiber.StatusBadRequest, "compose", fiber.Map{
			"Request": req,
			"Error":   utils.T(localizer(c), "draft_missing_fields"),
		})
	}

	text, err := st.GenerateDraftEmail(c.UserContext(), sess.UserID, req)
	if err != nil {
		return api.RemoteError("Failed to generate draft", err)
	}
	return render(c, fiber.StatusOK, "compose", fiber.Map{
		"Request": req,
		"Draft":   text,
	})
}

// ShowReply renders the reply form prefilled from the original email
func (h *DraftHandler) ShowReply(c *fiber.Ctx) error {
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

	data := fiber.Map{
		"Email": email,
		"Request": models.DraftRequest{
			Recipient: email.Sender,
			Subject:   utils.ReplySubject(email.Subject),
			ReplyTo:   email.ID,
		},
	}
	if draft, ok := st.LastDraft(); ok && draft.Reply && draft.Request.ReplyTo == email.ID {
		data["Request"] = draft.Request
		data["Draft"] = draft.Text
	}
	return render(c, fiber.StatusOK, "reply", data)
}

// Reply generates a reply draft for the email in the path
func (h *DraftHandler) Reply(c *fiber.Ctx) error {
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

	var req models.DraftRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.BadRequestError("Invalid reply form", err)
	}
	req = trimDraft(req)
	req.ReplyTo = email.ID
	req = st.ResolveReply(req)

	text, err := st.GenerateReplyDraft(c.UserContext(), sess.UserID, req)
	if err != nil {
		return api.RemoteError("Failed to generate reply", err)
	}
	return render(c, fiber.StatusOK, "reply", fiber.Map{
		"Email":   email,
		"Request": req,
		"Draft":   text,
	})
}

func trimDraft(req models.DraftRequest) models.DraftRequest {
	req.Recipient = strings.TrimSpace(req.Recipient)
	req.Subject = strings.TrimSpace(req.Subject)
	req.Context = strings.TrimSpace(req.Context)
	req.ReplyTo = strings.TrimSpace(req.ReplyTo)
	return req
}
