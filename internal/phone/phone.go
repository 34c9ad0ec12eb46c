// Package phone turns free-form phone cells into dialable numbers and
// tel:/WhatsApp links. Every function is total: garbage in gives a
// placeholder link out, never an error.
package phone

import (
	"net/url"
	"strings"
)

const (
	DefaultCountryCode = "91"

	// Placeholder is returned by the link builders when there is nothing
	// to dial. It keeps an anchor harmless.
	Placeholder = "#"

	localLen = 10
)

type Normalizer struct {
	countryCode string
}

// New returns a Normalizer that prefixes 10-digit local numbers with cc.
// An empty or non-numeric cc falls back to DefaultCountryCode.
func New(cc string) *Normalizer {
	cc = digits(cc)
	if cc == "" {
		cc = DefaultCountryCode
	}
	return &Normalizer{countryCode: cc}
}

func (n *Normalizer) CountryCode() string { return n.countryCode }

// Normalize keeps only digits. Ten digits are a local number and get the
// country code; anything longer is assumed to carry one already; other
// lengths are passed through as-is. ok is false when no digit is left.
func (n *Normalizer) Normalize(raw string) (string, bool) {
	d := digits(raw)
	switch {
	case d == "":
		return "", false
	case len(d) == localLen:
		return n.countryCode + d, true
	default:
		return d, true
	}
}

// TelLink returns "tel:+<number>" or Placeholder.
func (n *Normalizer) TelLink(raw string) string {
	num, ok := n.Normalize(raw)
	if !ok {
		return Placeholder
	}
	return "tel:+" + num
}

// ChatLink returns a wa.me link, with text as the preset message when set.
func (n *Normalizer) ChatLink(raw, text string) string {
	num, ok := n.Normalize(raw)
	if !ok {
		return Placeholder
	}
	link := "https://wa.me/" + num
	if text != "" {
		// wa.me does not read "+" as a space
		link += "?text=" + strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
	}
	return link
}

func digits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}
