// Package i18n holds the translation catalog. A Catalog is built once at
// startup and never mutated, so it is safe to share between requests.
package i18n

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
)

// DefaultLanguage is used when the requested language lacks a key.
const DefaultLanguage = "th"

// SupportedLanguages in preference order.
var SupportedLanguages = []string{"th", "de", "en"}

// Catalog maps language -> key -> text.
type Catalog struct {
	texts map[string]map[string]string
}

// New builds a catalog from in-memory tables. The input is copied.
func New(texts map[string]map[string]string) *Catalog {
	c := &Catalog{texts: make(map[string]map[string]string, len(texts))}
	for lang, table := range texts {
		cp := make(map[string]string, len(table))
		for k, v := range table {
			cp[k] = v
		}
		c.texts[lang] = cp
	}
	return c
}

// Load reads <lang>.json for every supported language from dir. A missing
// file yields an empty table for that language.
func Load(dir string) (*Catalog, error) {
	texts := make(map[string]map[string]string, len(SupportedLanguages))
	for _, lang := range SupportedLanguages {
		path := filepath.Join(dir, lang+".json")
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			texts[lang] = map[string]string{}
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read translations %s: %w", path, err)
		}

		table := map[string]string{}
		if err := json.Unmarshal(data, &table); err != nil {
			return nil, fmt.Errorf("parse translations %s: %w", path, err)
		}
		texts[lang] = table
	}
	return &Catalog{texts: texts}, nil
}

// Supported reports whether lang is one of SupportedLanguages.
func Supported(lang string) bool {
	for _, l := range SupportedLanguages {
		if l == lang {
			return true
		}
	}
	return false
}

// Negotiate picks a language from an explicit choice or an Accept-Language
// header, falling back to DefaultLanguage.
func Negotiate(explicit, acceptLanguage string) string {
	if Supported(explicit) {
		return explicit
	}
	for _, part := range strings.Split(acceptLanguage, ",") {
		tag := strings.TrimSpace(part)
		if i := strings.IndexByte(tag, ';'); i >= 0 {
			tag = tag[:i]
		}
		if i := strings.IndexByte(tag, '-'); i >= 0 {
			tag = tag[:i]
		}
		tag = strings.ToLower(tag)
		if Supported(tag) {
			return tag
		}
	}
	return DefaultLanguage
}

// T translates key into lang. Lookup falls back to DefaultLanguage and then to
// the key itself. {name} placeholders are replaced from args; unknown
// placeholders are left as written.
func (c *Catalog) T(lang, key string, args map[string]string) string {
	text, ok := c.lookup(lang, key)
	if !ok && lang != DefaultLanguage {
		text, ok = c.lookup(DefaultLanguage, key)
	}
	if !ok {
		text = key
	}
	return format(text, args)
}

// Table returns a copy of every key of lang.
func (c *Catalog) Table(lang string) map[string]string {
	out := make(map[string]string, len(c.texts[lang]))
	for k, v := range c.texts[lang] {
		out[k] = v
	}
	return out
}

func (c *Catalog) lookup(lang, key string) (string, bool) {
	if c == nil {
		return "", false
	}
	text, ok := c.texts[lang][key]
	if text == "" {
		return "", false
	}
	return text, ok
}

func format(text string, args map[string]string) string {
	if len(args) == 0 {
		return text
	}
	pairs := make([]string, 0, len(args)*2)
	for k, v := range args {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(text)
}
