// Package i18n is a static key lookup for user-facing strings. It has no
// pluralisation or formatting; a missing key renders as the key itself.
package i18n

import (
	"golang.org/x/text/language"

	"github.com/celerix-dev/negmarket/pkg/schema"
)

var tables = map[language.Tag]map[string]string{
	language.English: {
		"nav.marketplace":     "Marketplace",
		"nav.upload":          "Upload Data",
		"nav.dashboard":       "Dashboard",
		"nav.credits":         "Credits",
		"common.need_more":    "You need",
		"common.more_credits": "more credits",
		"common.featured":     "FEATURED",
		"common.downloads":    "Downloads",

		schema.KeyPurchaseSuccess:     "Successfully purchased",
		schema.KeyInsufficientCredits: "Insufficient credits",
		schema.KeyUploadSuccess:       "Experiment submitted successfully for review!",
	},
	language.Turkish: {
		"nav.marketplace":     "Pazar Yeri",
		"nav.upload":          "Veri Yükle",
		"nav.dashboard":       "Panel",
		"nav.credits":         "Krediler",
		"common.need_more":    "İhtiyacınız olan",
		"common.more_credits": "kredi daha",
		"common.featured":     "ÖNE ÇIKAN",
		"common.downloads":    "İndirme",

		schema.KeyPurchaseSuccess:     "Başarıyla satın alındı",
		schema.KeyInsufficientCredits: "Yetersiz kredi",
		schema.KeyUploadSuccess:       "Deney doğrulama için başarıyla gönderildi!",
	},
}

// Catalog resolves message keys for the supported languages. English is the
// fallback.
type Catalog struct {
	matcher   language.Matcher
	supported []language.Tag
}

// New returns a catalog over the built-in tables.
func New() *Catalog {
	supported := []language.Tag{language.English, language.Turkish}
	return &Catalog{
		matcher:   language.NewMatcher(supported),
		supported: supported,
	}
}

// Match picks the best supported language for an Accept-Language header or
// a bare tag such as "tr".
func (c *Catalog) Match(accept string) language.Tag {
	if accept == "" {
		return language.English
	}
	_, idx := language.MatchStrings(c.matcher, accept)
	return c.supported[idx]
}

// Languages lists the supported language tags.
func (c *Catalog) Languages() []string {
	out := make([]string, len(c.supported))
	for i, t := range c.supported {
		out[i] = t.String()
	}
	return out
}

// T translates key in lang.
func (c *Catalog) T(lang language.Tag, key string) string {
	if v, ok := tables[lang][key]; ok {
		return v
	}
	if v, ok := tables[language.English][key]; ok {
		return v
	}
	return key
}

// Render produces the display text of a notification.
func (c *Catalog) Render(lang language.Tag, n schema.Notification) string {
	text := c.T(lang, n.Key)
	if n.Subject != "" {
		text += ` "` + n.Subject + `"`
	}
	return text
}
