// Package i18n serves the UI strings for every supported locale. Tables are
// YAML files embedded in the binary; lookups fall back to English and then
// to the key itself.
package i18n

import (
	"embed"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// DefaultLocale is used for unknown locale codes and missing keys.
const DefaultLocale = "en"

const featureDescriptionsKey = "feature_descriptions"

//go:embed locales/*.yaml
var localeFS embed.FS

var supported = []string{"en", "hi", "mr"}

// Translator resolves localized strings.
type Translator interface {
	Locale() string
	T(key string) string
	Format(key string, args ...any) string
	FeatureDescription(column string) string
}

// Catalog is the string table of one locale.
type Catalog struct {
	locale   string
	strings  map[string]string
	features map[string]string
	fallback *Catalog
}

var (
	loadOnce sync.Once
	catalogs map[string]*Catalog
	loadErr  error
)

// Locales returns the supported locale codes, default first.
func Locales() []string {
	out := make([]string, len(supported))
	copy(out, supported)
	return out
}

// IsSupported reports whether code names a bundled locale.
func IsSupported(code string) bool {
	for _, l := range supported {
		if l == code {
			return true
		}
	}
	return false
}

// Load parses the embedded tables. It is safe to call repeatedly.
func Load() error {
	loadOnce.Do(func() {
		catalogs, loadErr = loadCatalogs()
	})
	return loadErr
}

// For returns the catalog for locale, or the English catalog when the code is
// unknown. It panics if the embedded tables are malformed.
func For(locale string) *Catalog {
	if err := Load(); err != nil {
		panic(err)
	}
	if c, ok := catalogs[locale]; ok {
		return c
	}
	return catalogs[DefaultLocale]
}

func loadCatalogs() (map[string]*Catalog, error) {
	out := make(map[string]*Catalog, len(supported))
	for _, locale := range supported {
		data, err := localeFS.ReadFile("locales/" + locale + ".yaml")
		if err != nil {
			return nil, fmt.Errorf("read locale %s: %w", locale, err)
		}
		c, err := parseCatalog(locale, data)
		if err != nil {
			return nil, err
		}
		out[locale] = c
	}
	en := out[DefaultLocale]
	for locale, c := range out {
		if locale != DefaultLocale {
			c.fallback = en
		}
	}
	return out, nil
}

func parseCatalog(locale string, data []byte) (*Catalog, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse locale %s: %w", locale, err)
	}

	c := &Catalog{
		locale:   locale,
		strings:  make(map[string]string, len(raw)),
		features: make(map[string]string),
	}
	for key, v := range raw {
		switch val := v.(type) {
		case string:
			c.strings[key] = val
		case map[string]any:
			if key != featureDescriptionsKey {
				return nil, fmt.Errorf("locale %s: unexpected table %q", locale, key)
			}
			for col, d := range val {
				s, ok := d.(string)
				if !ok {
					return nil, fmt.Errorf("locale %s: description for %q is not a string", locale, col)
				}
				c.features[col] = s
			}
		default:
			return nil, fmt.Errorf("locale %s: key %q has unsupported type %T", locale, key, v)
		}
	}
	return c, nil
}

// Locale returns the catalog's locale code.
func (c *Catalog) Locale() string { return c.locale }

// T returns the string for key.
func (c *Catalog) T(key string) string {
	for cur := c; cur != nil; cur = cur.fallback {
		if s, ok := cur.strings[key]; ok {
			return s
		}
	}
	return key
}

// Format looks up key and fills its placeholders in order. "{}" renders the
// argument with its default format and "{:.Nf}" as a fixed-point number.
func (c *Catalog) Format(key string, args ...any) string {
	return format(c.T(key), args...)
}

// FeatureDescription returns the glossary text for a dataset column.
func (c *Catalog) FeatureDescription(column string) string {
	keys := []string{column, strings.ToLower(column), descriptionKey(column)}
	for cur := c; cur != nil; cur = cur.fallback {
		for _, k := range keys {
			if s, ok := cur.features[k]; ok {
				return s
			}
		}
	}
	return column
}

// Strings returns every resolved key of the catalog, fallbacks included.
func (c *Catalog) Strings() map[string]string {
	out := make(map[string]string)
	for cur := c; cur != nil; cur = cur.fallback {
		for k, v := range cur.strings {
			if _, ok := out[k]; !ok {
				out[k] = v
			}
		}
	}
	return out
}

// FeatureDescriptions returns the glossary keyed as stored in the tables.
func (c *Catalog) FeatureDescriptions() map[string]string {
	out := make(map[string]string)
	for cur := c; cur != nil; cur = cur.fallback {
		for k, v := range cur.features {
			if _, ok := out[k]; !ok {
				out[k] = v
			}
		}
	}
	return out
}

// Keys lists the keys defined directly by this locale, sorted.
func (c *Catalog) Keys() []string {
	keys := make([]string, 0, len(c.strings))
	for k := range c.strings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func descriptionKey(column string) string {
	return strings.ReplaceAll(strings.ToLower(column), " ", "_")
}

var placeholder = regexp.MustCompile(`\{(:\.(\d+)f)?\}`)

func format(tmpl string, args ...any) string {
	i := 0
	return placeholder.ReplaceAllStringFunc(tmpl, func(m string) string {
		if i >= len(args) {
			return m
		}
		arg := args[i]
		i++
		if sub := placeholder.FindStringSubmatch(m); sub[2] != "" {
			return fmt.Sprintf("%."+sub[2]+"f", arg)
		}
		return fmt.Sprint(arg)
	})
}
