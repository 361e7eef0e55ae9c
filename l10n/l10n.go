// Package l10n produces all user-facing text. Message bundles are plain YAML
// key/value files named by locale; English defaults are compiled in so a
// missing bundle never leaves the bot mute.
package l10n

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

var placeholder = regexp.MustCompile(`{\$(\w+)}`)

// Formatter resolves message keys to localized, parameterized strings.
type Formatter struct {
	locales map[string]map[string]string
	log     zerolog.Logger
}

// New returns a Formatter carrying only the built-in English messages.
func New(log zerolog.Logger) *Formatter {
	return &Formatter{
		locales: map[string]map[string]string{"en": defaults},
		log:     log,
	}
}

// LoadDir merges every `<locale>.yaml` bundle found in dir. A missing
// directory is not an error.
func (f *Formatter) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".yaml") {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		bundle := make(map[string]string)
		if err := yaml.Unmarshal(raw, &bundle); err != nil {
			return err
		}
		locale := strings.TrimSuffix(name, ".yaml")
		if f.locales[locale] == nil {
			f.locales[locale] = make(map[string]string)
		}
		for k, v := range bundle {
			f.locales[locale][k] = v
		}
		f.log.Info().Str("locale", locale).Int("messages", len(bundle)).Msg("loaded locale bundle")
	}
	return nil
}

// Format resolves key in the given locale, falling back to English and
// finally to the key itself, and substitutes {$name} placeholders.
func (f *Formatter) Format(locale, key string, params map[string]string) string {
	msg, ok := f.locales[locale][key]
	if !ok {
		msg, ok = f.locales["en"][key]
	}
	if !ok {
		f.log.Warn().Str("key", key).Str("locale", locale).Msg("unknown message key")
		return key
	}
	return Substitute(msg, params)
}

// Supported reports whether a locale has a bundle.
func (f *Formatter) Supported(locale string) bool {
	_, ok := f.locales[locale]
	return ok
}

// Substitute replaces {$name} placeholders in a template. Unknown
// placeholders are left untouched.
func Substitute(template string, params map[string]string) string {
	return placeholder.ReplaceAllStringFunc(template, func(m string) string {
		name := placeholder.FindStringSubmatch(m)[1]
		if v, ok := params[name]; ok {
			return v
		}
		return m
	})
}
