// Package i18n provides localized user-facing messages for vault error
// codes. Codes are duplicated as strings to avoid an import cycle with
// the errors package.
package i18n

import (
	"strings"
	"text/template"

	"golang.org/x/text/language"
)

// Catalog maps error codes to localized message templates.
type Catalog struct {
	locale   string
	messages map[string]string
}

// Locale returns the catalog's BCP 47 locale tag.
func (c *Catalog) Locale() string {
	return c.locale
}

// Format renders the message for a code, executing it as a template
// against the provided metadata. Unknown codes and template failures
// fall back to a generic message so formatting never becomes an error
// path of its own.
func (c *Catalog) Format(code string, metadata map[string]string) string {
	msg, ok := c.messages[code]
	if !ok {
		return c.messages[fallbackCode]
	}
	if len(metadata) == 0 || !strings.Contains(msg, "{{") {
		return msg
	}

	tmpl, err := template.New(code).Parse(msg)
	if err != nil {
		return msg
	}
	var out strings.Builder
	if err := tmpl.Execute(&out, metadata); err != nil {
		return msg
	}
	return out.String()
}

var matcher = language.NewMatcher([]language.Tag{
	language.AmericanEnglish,
})

var catalogs = map[language.Tag]*Catalog{
	language.AmericanEnglish: enUSCatalog,
}

// GetCatalog returns the best catalog for the requested locale,
// defaulting to en-US.
func GetCatalog(locale string) *Catalog {
	tag, err := language.Parse(locale)
	if err != nil {
		return enUSCatalog
	}
	matched, _, _ := matcher.Match(tag)
	if catalog, ok := catalogs[matched]; ok {
		return catalog
	}
	return enUSCatalog
}
