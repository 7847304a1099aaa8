package middleware

import (
	"maildash/utils"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/text/language"
)

var supportedTags = []language.Tag{language.English, language.Japanese}

var langMatcher = language.NewMatcher(supportedTags)

// Locale picks the display language from ?lang=, the lang cookie or
// Accept-Language, in that order, and stores "lang" and "localizer" in
// the request locals.
func Locale(tr *utils.Translator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		lang := c.Query("lang")
		if lang != "" && utils.IsSupportedLanguage(lang) {
			c.Cookie(&fiber.Cookie{
				Name:     "lang",
				Value:    lang,
				MaxAge:   365 * 24 * 3600,
				SameSite: fiber.CookieSameSiteLaxMode,
			})
		} else {
			lang = c.Cookies("lang")
		}

		if !utils.IsSupportedLanguage(lang) {
			lang = matchAcceptLanguage(c.Get(fiber.HeaderAcceptLanguage))
		}

		c.Locals("lang", lang)
		c.Locals("localizer", tr.Localizer(lang))

		return c.Next()
	}
}

// matchAcceptLanguage returns the best supported base language for header
func matchAcceptLanguage(header string) string {
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(tags) == 0 {
		return "en"
	}
	_, idx, _ := langMatcher.Match(tags...)
	base, _ := supportedTags[idx].Base()
	return base.String()
}
