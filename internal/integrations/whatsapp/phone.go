package whatsapp

import "strings"

const countryCode = "994"

var mobileOperatorPrefixes = []string{"10", "50", "51", "55", "60", "70", "77", "99"}

// NormalizePhone converts a local Azerbaijani number into digits-only E.164
// form without "+". Numbers that already carry a country code are kept.
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	digits = strings.TrimPrefix(digits, "00")

	switch {
	case len(digits) == 10 && digits[0] == '0':
		return countryCode + digits[1:]
	case len(digits) == 9 && hasOperatorPrefix(digits):
		return countryCode + digits
	}
	return digits
}

func hasOperatorPrefix(digits string) bool {
	for _, p := range mobileOperatorPrefixes {
		if strings.HasPrefix(digits, p) {
			return true
		}
	}
	return false
}
