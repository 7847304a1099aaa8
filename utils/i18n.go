package utils

import (
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

// SupportedLanguages lists the locales shipped under locales/
var SupportedLanguages = []string{"en", "ja"}

// Translator owns the message bundle for the dashboard
type Translator struct {
	bundle *i18n.Bundle
}

// NewTranslator loads active.<lang>.toml for every supported language from dir.
// A missing locale file is logged and skipped; message ids then render as-is.
func NewTranslator(dir string, log *Logger) *Translator {
	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	for _, lang := range SupportedLanguages {
		path := filepath.Join(dir, "active."+lang+".toml")
		if _, err := bundle.LoadMessageFile(path); err != nil {
			log.Warn("Failed to load %s locale: %v", lang, err)
		}
	}

	return &Translator{bundle: bundle}
}

// IsSupportedLanguage reports whether lang has a locale file
func IsSupportedLanguage(lang string) bool {
	for _, l := range SupportedLanguages {
		if l == lang {
			return true
		}
	}
	return false
}

// Localizer returns a localizer for the specified language
func (t *Translator) Localizer(lang string) *i18n.Localizer {
	if !IsSupportedLanguage(lang) {
		lang = "en"
	}
	return i18n.NewLocalizer(t.bundle, lang)
}

// T translates a message ID
func T(localizer *i18n.Localizer, messageID string) string {
	if localizer == nil {
		return messageID
	}
	msg, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID: messageID,
	})
	if err != nil {
		Log.Debug("Translation error for '%s': %v", messageID, err)
		return messageID
	}
	return msg
}

// TWithData translates a message ID with template data
func TWithData(localizer *i18n.Localizer, messageID string, data map[string]interface{}) string {
	if localizer == nil {
		return messageID
	}
	msg, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    messageID,
		TemplateData: data,
	})
	if err != nil {
		Log.Debug("Translation error for '%s': %v", messageID, err)
		return messageID
	}
	return msg
}

// TPlural translates a message ID with plural support
func TPlural(localizer *i18n.Localizer, messageID string, count int) string {
	if localizer == nil {
		return messageID
	}
	msg, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:   messageID,
		PluralCount: count,
		TemplateData: map[string]interface{}{
			"Count": count,
		},
	})
	if err != nil {
		Log.Debug("Translation error for '%s': %v", messageID, err)
		return messageID
	}
	return msg
}
