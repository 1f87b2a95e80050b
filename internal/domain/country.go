package domain

import (
	"strings"

	"github.com/biter777/countries"
)

// CanonicalCountry maps a free-form country name or ISO code to a display
// name and ISO 3166-1 alpha-2 code. Unrecognized input is returned trimmed
// with an empty code.
func CanonicalCountry(raw string) (name, code string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ""
	}
	cc := countries.ByName(raw)
	if cc == countries.Unknown {
		return raw, ""
	}
	name = cc.String()
	// Drop qualifiers such as "Korea (Republic of)".
	if idx := strings.Index(name, " ("); idx != -1 {
		name = name[:idx]
	}
	return name, cc.Alpha2()
}
