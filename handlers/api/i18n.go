package api

import (
	"maildash/utils"

	"github.com/gofiber/fiber/v2"
)

// clientMessages are the ids the dashboard scripts look up at runtime
var clientMessages = []string{
	"notice_classified",
	"notice_summary_ready",
	"notice_draft_ready",
	"notice_index_updated",
	"notice_agent_done",
	"message_error",
	"message_connection_error",
	"email_loading",
	"email_no_messages",
	"search_empty_query",
	"error_404",
	"error_500",
}

// I18nHandler handles i18n-related requests
type I18nHandler struct {
	translator *utils.Translator
}

// NewI18nHandler creates an i18n handler
func NewI18nHandler(tr *utils.Translator) *I18nHandler {
	return &I18nHandler{translator: tr}
}

// GetTranslations returns translations for the client-side JavaScript
func (h *I18nHandler) GetTranslations(c *fiber.Ctx) error {
	lang := c.Params("lang")
	if !utils.IsSupportedLanguage(lang) {
		lang = "en"
	}

	localizer := h.translator.Localizer(lang)
	translations := make(map[string]string, len(clientMessages))
	for _, id := range clientMessages {
		translations[id] = utils.T(localizer, id)
	}

	return c.JSON(fiber.Map{
		"lang":     lang,
		"messages": translations,
	})
}
