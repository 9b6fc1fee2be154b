// Package language holds the catalog of source languages a call can be analyzed in.
package language

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// English is the analysis target language; calls already in English skip translation.
const English = "en"

//go:embed languages.yaml
var defaultCatalogYAML []byte

type Language struct {
	Code         string `yaml:"code" json:"code"`
	Name         string `yaml:"name" json:"name"`
	SpeechLocale string `yaml:"speech_locale" json:"speechLocale"`
}

type Catalog struct {
	byCode map[string]Language
}

type catalogFile struct {
	Languages []Language `yaml:"languages"`
}

// Default returns the embedded catalog. It panics only if the embedded file is
// malformed, which the package tests guard against.
func Default() *Catalog {
	c, err := Parse(defaultCatalogYAML)
	if err != nil {
		panic(fmt.Sprintf("language: embedded catalog is invalid: %v", err))
	}
	return c
}

func Parse(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse language catalog: %w", err)
	}
	if len(f.Languages) == 0 {
		return nil, fmt.Errorf("language catalog is empty")
	}
	c := &Catalog{byCode: make(map[string]Language, len(f.Languages))}
	for _, l := range f.Languages {
		code := strings.ToLower(strings.TrimSpace(l.Code))
		if code == "" || l.Name == "" {
			return nil, fmt.Errorf("language entry %+v is missing code or name", l)
		}
		if _, dup := c.byCode[code]; dup {
			return nil, fmt.Errorf("language %q is listed twice", code)
		}
		l.Code = code
		if l.SpeechLocale == "" {
			l.SpeechLocale = code
		}
		c.byCode[code] = l
	}
	return c, nil
}

func (c *Catalog) Lookup(code string) (Language, bool) {
	l, ok := c.byCode[strings.ToLower(strings.TrimSpace(code))]
	return l, ok
}

func (c *Catalog) IsSupported(code string) bool {
	_, ok := c.Lookup(code)
	return ok
}

// All returns the languages sorted by code.
func (c *Catalog) All() []Language {
	out := make([]Language, 0, len(c.byCode))
	for _, l := range c.byCode {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
