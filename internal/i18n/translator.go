// Package i18n localises user-facing problem titles and details.
package i18n

import (
	"embed"
	"fmt"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/pelletier/go-toml/v2"
	"golang.org/x/text/language"
)

//go:embed active.*.toml
var localeFS embed.FS

var catalogs = []string{"active.en.toml", "active.pt-BR.toml"}

// Translator wraps a go-i18n bundle loaded from the embedded catalogs.
type Translator struct {
	bundle  *i18n.Bundle
	matcher language.Matcher
	tags    []language.Tag
}

func NewTranslator() (*Translator, error) {
	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	for _, file := range catalogs {
		if _, err := bundle.LoadMessageFileFS(localeFS, file); err != nil {
			return nil, fmt.Errorf("load %s: %w", file, err)
		}
	}

	// The first tag is the matcher's fallback.
	tags := bundle.LanguageTags()
	return &Translator{
		bundle:  bundle,
		matcher: language.NewMatcher(tags),
		tags:    tags,
	}, nil
}

// Match picks the supported language closest to an Accept-Language header.
func (t *Translator) Match(acceptLanguage string) language.Tag {
	prefs, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(prefs) == 0 {
		return language.English
	}
	_, index, confidence := t.matcher.Match(prefs...)
	if confidence == language.No {
		return language.English
	}
	return t.tags[index]
}

// Localize renders messageID in lang. Unknown IDs fall back to English and
// finally to the ID itself.
func (t *Translator) Localize(lang language.Tag, messageID string, data map[string]any) string {
	localizer := i18n.NewLocalizer(t.bundle, lang.String(), language.English.String())
	msg, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    messageID,
		TemplateData: data,
	})
	if err != nil {
		return messageID
	}
	return msg
}

// Problem returns the localised title and detail for an error code.
func (t *Translator) Problem(lang language.Tag, code string) (title, detail string) {
	title = t.Localize(lang, "title_"+code, nil)
	if title == "title_"+code {
		title = t.Localize(lang, "title_unknown", nil)
	}
	detail = t.Localize(lang, "detail_"+code, nil)
	if detail == "detail_"+code {
		detail = ""
	}
	return title, detail
}
