// Package localization provides the translated strings sent to chat clients.
// Translations are JSON files named by language tag (e.g. "en.json").
package localization

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/language"
)

// DefaultLanguage is the fallback for unknown languages and missing keys.
const DefaultLanguage = "en"

//go:embed locales/*.json
var embedded embed.FS

// Localizer manages the translations for the application.
type Localizer struct {
	mu           sync.RWMutex
	translations map[string]map[string]string
	matcher      language.Matcher
	tags         []string
}

// Embedded returns a Localizer over the translations compiled into the
// binary.
func Embedded() (*Localizer, error) {
	return NewLocalizer(embedded, "locales")
}

// MustDefault is like Embedded but panics if the translations fail to load.
func MustDefault() *Localizer {
	l, err := Embedded()
	if err != nil {
		panic(err)
	}
	return l
}

// NewLocalizer loads every *.json file in dir of fsys.
func NewLocalizer(fsys fs.FS, dir string) (*Localizer, error) {
	l := &Localizer{
		translations: make(map[string]map[string]string),
	}

	files, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read localization directory: %w", err)
	}

	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
			continue
		}

		lang := strings.TrimSuffix(file.Name(), ".json")
		if _, err := language.Parse(lang); err != nil {
			return nil, fmt.Errorf("invalid language tag in file name %s: %w", file.Name(), err)
		}

		data, err := fs.ReadFile(fsys, path.Join(dir, file.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read localization file %s: %w", file.Name(), err)
		}

		var translations map[string]string
		if err := json.Unmarshal(data, &translations); err != nil {
			return nil, fmt.Errorf("failed to parse localization file %s: %w", file.Name(), err)
		}

		l.translations[lang] = translations
	}

	l.buildMatcher()
	return l, nil
}

// buildMatcher orders the default language first so it wins on no match.
func (l *Localizer) buildMatcher() {
	tags := make([]string, 0, len(l.translations))
	for lang := range l.translations {
		if lang != DefaultLanguage {
			tags = append(tags, lang)
		}
	}
	sort.Strings(tags)
	tags = append([]string{DefaultLanguage}, tags...)

	parsed := make([]language.Tag, len(tags))
	for i, t := range tags {
		parsed[i] = language.Make(t)
	}
	l.tags = tags
	l.matcher = language.NewMatcher(parsed)
}

// Match picks the best supported language for an Accept-Language header value.
func (l *Localizer) Match(acceptLanguage string) string {
	if acceptLanguage == "" {
		return DefaultLanguage
	}
	prefs, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(prefs) == 0 {
		return DefaultLanguage
	}
	_, idx, conf := l.matcher.Match(prefs...)
	if conf == language.No {
		return DefaultLanguage
	}
	return l.tags[idx]
}

// GetString returns the localized string for a given key and language.
// Missing entries fall back to English, then to the key itself.
func (l *Localizer) GetString(lang, key string) string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if langTranslations, ok := l.translations[lang]; ok {
		if value, ok := langTranslations[key]; ok {
			return value
		}
	}

	if lang != DefaultLanguage {
		if enTranslations, ok := l.translations[DefaultLanguage]; ok {
			if value, ok := enTranslations[key]; ok {
				return value
			}
		}
	}

	return key
}
