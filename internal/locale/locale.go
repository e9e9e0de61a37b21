// Package locale supplies the active language and country used to stamp and
// filter cached addresses.
package locale

import (
	"fmt"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Provider reports the language and country active for resolution.
type Provider interface {
	// Language is a canonical base language such as "en" or "he", or ""
	// when undetermined.
	Language() string
	// Country is an ISO 3166-1 alpha-2 region code, or "".
	Country() string
}

// Static is a Provider fixed at construction.
type Static struct {
	tag      language.Tag
	language string
	country  string
}

// Parse builds a Static provider from a BCP 47 tag such as "he-IL".
func Parse(tag string) (Static, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return Static{tag: language.Und}, nil
	}

	t, err := language.Parse(strings.ReplaceAll(tag, "_", "-"))
	if err != nil {
		return Static{}, fmt.Errorf("parse locale %q: %w", tag, err)
	}

	s := Static{tag: t}
	if base, conf := t.Base(); conf != language.No && t != language.Und {
		s.language = base.String()
	}
	if region, conf := t.Region(); conf == language.Exact {
		s.country = region.String()
	}
	return s, nil
}

// MustParse is Parse for tags known to be valid.
func MustParse(tag string) Static {
	s, err := Parse(tag)
	if err != nil {
		panic(err)
	}
	return s
}

func (s Static) Language() string { return s.language }
func (s Static) Country() string  { return s.country }

// Tag returns the parsed language tag.
func (s Static) Tag() language.Tag { return s.tag }

// Normalize returns the canonical base language of tag, or "" if tag is
// empty or cannot be parsed.
func Normalize(tag string) string {
	s, err := Parse(tag)
	if err != nil {
		return ""
	}
	return s.Language()
}

// Collator returns a collator ordering labels for lang. Unknown languages
// fall back to the root collation.
func Collator(lang string) *collate.Collator {
	t, err := language.Parse(lang)
	if err != nil || lang == "" {
		t = language.Und
	}
	return collate.New(t, collate.IgnoreCase)
}
