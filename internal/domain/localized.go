package domain

import "fmt"

// DefaultLanguage is used when a caller does not request a specific translation.
const DefaultLanguage = "en"

// LocalizedText maps a language code to the text in that language.
type LocalizedText map[string]string

// In returns the text for lang, falling back to the default language and then
// to any populated translation.
func (t LocalizedText) In(lang string) string {
	if s, ok := t[lang]; ok && s != "" {
		return s
	}
	if s, ok := t[DefaultLanguage]; ok && s != "" {
		return s
	}
	for _, s := range t {
		if s != "" {
			return s
		}
	}
	return ""
}

// Validate requires at least minLanguages non-empty translations.
func (t LocalizedText) Validate(minLanguages int) error {
	populated := 0
	for _, s := range t {
		if s != "" {
			populated++
		}
	}
	if populated < minLanguages {
		return fmt.Errorf("localized text has %d languages, need at least %d", populated, minLanguages)
	}
	return nil
}
