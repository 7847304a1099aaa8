package api

import (
	"strings"

	"maildash/models"
	"maildash/session"
	"maildash/utils"

	"github.com/gofiber/fiber/v2"
)

// DraftHandler generates new drafts and replies
type DraftHandler struct {
	base
}

// NewDraftHandler creates a draft handler
func NewDraftHandler(sessions *session.Manager, log *utils.Logger) *DraftHandler {
	return &DraftHandler{base{sessions: sessions, log: log}}
}

func parseDraftRequest(c *fiber.Ctx) (models.DraftRequest, error) {
	var req models.DraftRequest
	if err := c.BodyParser(&req); err != nil {
		return req, utils.BadRequestError("Invalid draft request", err)
	}
	req.Recipient = strings.TrimSpace(req.Recipient)
	req.Subject = strings.TrimSpace(req.Subject)
	req.Context = strings.TrimSpace(req.Context)
	req.ReplyTo = strings.TrimSpace(req.ReplyTo)
	return req, nil
}

// Generate writes a new email from recipient, subject and context
func (h *DraftHandler) Generate(c *fiber.Ctx) error {
	st, sess, err := h.storeFor(c)
	if err != nil {
		return err
	}
	req, err := parseDraftRequest(c)
	if err != nil {
		return err
	}
	if req.Recipient == "" || req.Context == "" {
		return utils.BadRequestError("Recipient and context are required", nil)
	}

	text, err := st.GenerateDraftEmail(c.UserContext(), sess.UserID, req)
	if err != nil {
		return RemoteError("Failed to generate draft", err)
	}
	return c.JSON(models.Draft{Request: req, Text: text})
}

// Reply writes a reply. With reply_to set, recipient and subject default
// to the original email's sender and subject.
func (h *DraftHandler) Reply(c *fiber.Ctx) error {
	st, sess, err := h.storeFor(c)
	if err != nil {
		return err
	}
	req, err := parseDraftRequest(c)
	if err != nil {
		return err
	}
	if req.ReplyTo == "" && req.Recipient == "" {
		return utils.BadRequestError("reply_to or recipient is required", nil)
	}

	req = st.ResolveReply(req)
	text, err := st.GenerateReplyDraft(c.UserContext(), sess.UserID, req)
	if err != nil {
		return RemoteError("Failed to generate reply", err)
	}
	return c.JSON(models.Draft{Request: req, Text: text, Reply: true})
}
