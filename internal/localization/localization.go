// Package localization provides user-facing strings in the supported
// languages. Translations are JSON objects of key -> text, one file per
// language named after its code ("en.json").
package localization

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/language"
)

// DefaultLanguage is used when nothing better matches.
const DefaultLanguage = "en"

//go:embed locales/*.json
var bundled embed.FS

// Localizer manages the translations for the application.
type Localizer struct {
	mu           sync.RWMutex
	translations map[string]map[string]string
	tags         []language.Tag
	codes        []string
	matcher      language.Matcher
}

// Bundled returns a Localizer over the translations compiled into the binary.
func Bundled() (*Localizer, error) {
	sub, err := fs.Sub(bundled, "locales")
	if err != nil {
		return nil, err
	}
	return NewLocalizer(sub)
}

// NewLocalizer loads every *.json file at the root of fsys.
func NewLocalizer(fsys fs.FS) (*Localizer, error) {
	l := &Localizer{translations: make(map[string]map[string]string)}

	files, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read localization directory: %w", err)
	}

	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
			continue
		}
		lang := strings.TrimSuffix(file.Name(), ".json")

		data, err := fs.ReadFile(fsys, file.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read localization file %s: %w", file.Name(), err)
		}
		var translations map[string]string
		if err := json.Unmarshal(data, &translations); err != nil {
			return nil, fmt.Errorf("failed to parse localization file %s: %w", file.Name(), err)
		}
		l.translations[lang] = translations
	}

	// the matcher falls back to its first tag, so the default goes first
	codes := make([]string, 0, len(l.translations))
	for code := range l.translations {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool {
		if (codes[i] == DefaultLanguage) != (codes[j] == DefaultLanguage) {
			return codes[i] == DefaultLanguage
		}
		return codes[i] < codes[j]
	})
	for _, code := range codes {
		tag, err := language.Parse(code)
		if err != nil {
			return nil, fmt.Errorf("bad language code %q: %w", code, err)
		}
		l.tags = append(l.tags, tag)
	}
	l.codes = codes
	if len(l.tags) > 0 {
		l.matcher = language.NewMatcher(l.tags)
	}
	return l, nil
}

// Languages returns the loaded language codes, default first.
func (l *Localizer) Languages() []string {
	out := make([]string, len(l.codes))
	copy(out, l.codes)
	return out
}

// Match picks the best loaded language for an Accept-Language header.
func (l *Localizer) Match(acceptLanguage string) string {
	if l.matcher == nil {
		return DefaultLanguage
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return l.codes[0]
	}
	_, idx, conf := l.matcher.Match(tags...)
	if conf == language.No {
		return l.codes[0]
	}
	return l.codes[idx]
}

// GetString returns the localized string for a given key and language.
// If the language or the key is not found, it returns the key itself as a fallback.
func (l *Localizer) GetString(lang, key string) string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if langTranslations, ok := l.translations[lang]; ok {
		if value, ok := langTranslations[key]; ok {
			return value
		}
	}

	// Fallback to a default language if the key is not found in the specified language
	if lang != DefaultLanguage {
		if enTranslations, ok := l.translations[DefaultLanguage]; ok {
			if value, ok := enTranslations[key]; ok {
				return value
			}
		}
	}

	return key
}

// Format is GetString followed by fmt.Sprintf.
func (l *Localizer) Format(lang, key string, args ...interface{}) string {
	return fmt.Sprintf(l.GetString(lang, key), args...)
}
