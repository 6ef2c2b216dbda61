// Package locator defines the locator value type used throughout the
// healing engine: a description of how to find a UI element.
package locator

import (
	"fmt"
	"hash/fnv"
	"strings"
)

// Kind identifies the locator strategy.
type Kind string

// Kind values
const (
	ID          Kind = "id"
	Name        Kind = "name"
	CSS         Kind = "css"
	XPath       Kind = "xpath"
	Text        Kind = "text"
	PartialText Kind = "partial_text"
	ClassName   Kind = "class"
	TagName     Kind = "tag"
)

// Locator describes how to find a single UI element.
// Pure value type - comparable, immutable, no behavior beyond
// identity and formatting. Two locators are equal iff kind and
// value match exactly.
type Locator struct {
	Kind  Kind
	Value string
}

// New creates a locator.
func New(kind Kind, value string) Locator {
	return Locator{Kind: kind, Value: value}
}

// kindAliases maps accepted prefixes in "kind=value" strings to kinds.
// Includes the legacy link/partial_link spellings used by Selenium-style
// test suites.
var kindAliases = map[string]Kind{
	"id":           ID,
	"name":         Name,
	"css":          CSS,
	"xpath":        XPath,
	"text":         Text,
	"link":         Text,
	"partial_text": PartialText,
	"partial_link": PartialText,
	"class":        ClassName,
	"tag":          TagName,
}

// Parse parses a "kind=value" locator string (e.g. "id=submit-button",
// "css=.login-form button"). A string without a kind prefix is treated
// as an XPath expression, matching the convention of Selenium-style
// locator strings.
func Parse(s string) (Locator, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Locator{}, fmt.Errorf("empty locator string")
	}

	if idx := strings.Index(s, "="); idx > 0 {
		prefix := strings.ToLower(strings.TrimSpace(s[:idx]))
		if kind, ok := kindAliases[prefix]; ok {
			value := s[idx+1:]
			if value == "" {
				return Locator{}, fmt.Errorf("locator %q has empty value", s)
			}
			return Locator{Kind: kind, Value: value}, nil
		}
	}

	// No recognized prefix - bare XPath
	return Locator{Kind: XPath, Value: s}, nil
}

// MustParse parses a locator string and panics on error. For tests and
// hardcoded locators only.
func MustParse(s string) Locator {
	l, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return l
}

// IsZero returns true if the locator is the zero value.
func (l Locator) IsZero() bool {
	return l.Kind == "" && l.Value == ""
}

// String returns the canonical "kind=value" form.
func (l Locator) String() string {
	if l.IsZero() {
		return ""
	}
	return string(l.Kind) + "=" + l.Value
}

// Fingerprint returns a stable hash string for use as a cache key
// component. Equal locators always produce equal fingerprints.
func (l Locator) Fingerprint() string {
	h := fnv.New64a()
	h.Write([]byte(l.Kind))
	h.Write([]byte{0})
	h.Write([]byte(l.Value))
	return fmt.Sprintf("%016x", h.Sum64())
}
