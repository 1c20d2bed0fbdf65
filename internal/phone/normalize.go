package phone

import (
	"strings"
)

// Defaults match the local numbering plan the desk is deployed in
// (country code 27, nine-digit national significant numbers).
const (
	DefaultCountryCode       = "27"
	DefaultNationalNumberLen = 9
)

// Normalizer rewrites dial strings into the local leading-zero form.
//
// Rules:
// - all non-digits are stripped
// - "00<cc><nsn>" and "<cc><nsn>" become "0<nsn>"
// - anything else (including a bare local number) is returned as digits only
//
// The rewrite only applies when <nsn> has the configured length and does not
// itself start with 0, which keeps Normalize idempotent.
type Normalizer struct {
	CountryCode       string
	NationalNumberLen int
}

// NewNormalizer returns a Normalizer, falling back to the package defaults
// for empty or invalid settings.
func NewNormalizer(countryCode string, nationalLen int) Normalizer {
	cc := digitsOnly(countryCode)
	if cc == "" || cc[0] == '0' {
		cc = DefaultCountryCode
	}
	if nationalLen <= 0 {
		nationalLen = DefaultNationalNumberLen
	}
	return Normalizer{CountryCode: cc, NationalNumberLen: nationalLen}
}

var defaultNormalizer = NewNormalizer(DefaultCountryCode, DefaultNationalNumberLen)

// Normalize applies the default local numbering plan.
func Normalize(raw string) string { return defaultNormalizer.Normalize(raw) }

// Normalize returns the canonical local form of raw. The empty string means
// raw contained no digits.
func (n Normalizer) Normalize(raw string) string {
	d := digitsOnly(raw)
	if d == "" {
		return ""
	}
	if nsn, ok := n.national(d, "00"+n.CountryCode); ok {
		return "0" + nsn
	}
	if nsn, ok := n.national(d, n.CountryCode); ok {
		return "0" + nsn
	}
	return d
}

// Equal reports whether a and b address the same subscriber.
func (n Normalizer) Equal(a, b string) bool {
	na, nb := n.Normalize(a), n.Normalize(b)
	return na != "" && na == nb
}

func (n Normalizer) national(d, prefix string) (string, bool) {
	if !strings.HasPrefix(d, prefix) {
		return "", false
	}
	nsn := d[len(prefix):]
	if len(nsn) != n.NationalNumberLen || nsn[0] == '0' {
		return "", false
	}
	return nsn, true
}

func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
