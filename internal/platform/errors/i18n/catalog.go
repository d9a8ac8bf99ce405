// Package i18n renders user-facing error messages by locale.
package i18n

import (
	"bytes"
	"sort"
	"strings"
	"sync"
	"text/template"

	"golang.org/x/text/language"
)

// BaseLocale is used when a requested locale has no catalog.
const BaseLocale = "en-US"

// Catalog maps error codes to message templates for a specific locale.
type Catalog struct {
	locale   string
	messages map[string]string
}

var (
	catalogsMu sync.RWMutex
	catalogs   = map[string]*Catalog{
		BaseLocale: NewCatalog(BaseLocale, enUSMessages),
	}
)

// ResolveLocale returns the locale of the catalog that serves locale.
func ResolveLocale(locale string) string {
	return GetCatalog(locale).Locale()
}

// GetCatalog returns the catalog that best matches locale, falling back to
// BaseLocale. Tags are matched with BCP 47 rules, so "fr" and "fr_CA" can be
// served by a fr-FR catalog.
func GetCatalog(locale string) *Catalog {
	requested := strings.TrimSpace(locale)
	catalogsMu.RLock()
	defer catalogsMu.RUnlock()
	if requested == "" {
		return catalogs[BaseLocale]
	}
	if c, ok := catalogs[requested]; ok {
		return c
	}
	tag, err := language.Parse(strings.ReplaceAll(requested, "_", "-"))
	if err != nil {
		return catalogs[BaseLocale]
	}

	// The base locale goes first so a failed match falls back to it.
	keys := []string{BaseLocale}
	for key := range catalogs {
		if key != BaseLocale {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys[1:])
	tags := make([]language.Tag, len(keys))
	for i, key := range keys {
		tags[i] = language.Make(key)
	}
	_, index, confidence := language.NewMatcher(tags).Match(tag)
	if confidence == language.No {
		return catalogs[BaseLocale]
	}
	return catalogs[keys[index]]
}

// RegisterCatalog adds or replaces the catalog for its locale.
func RegisterCatalog(cat *Catalog) {
	catalogsMu.Lock()
	defer catalogsMu.Unlock()
	catalogs[cat.locale] = cat
}

// NewCatalog creates a catalog with a copy of messages.
func NewCatalog(locale string, messages map[string]string) *Catalog {
	cloned := make(map[string]string, len(messages))
	for key, value := range messages {
		cloned[key] = value
	}
	return &Catalog{
		locale:   locale,
		messages: cloned,
	}
}

// Locale returns the locale of this catalog.
func (c *Catalog) Locale() string {
	return c.locale
}

// Has reports whether the catalog holds a template for code.
func (c *Catalog) Has(code string) bool {
	_, ok := c.messages[code]
	return ok
}

// Format renders the template for code with metadata. Unknown codes render
// as the code itself and broken templates render unexpanded.
func (c *Catalog) Format(code string, metadata map[string]string) string {
	tmpl, ok := c.messages[code]
	if !ok {
		return code
	}
	if metadata == nil {
		metadata = map[string]string{}
	}

	t, err := template.New("msg").Parse(tmpl)
	if err != nil {
		return tmpl
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, metadata); err != nil {
		return tmpl
	}
	return buf.String()
}
