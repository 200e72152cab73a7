package response

import (
	"regexp"
	"strconv"
	"strings"
)

// arabicDigits maps Western digits onto Arabic-Indic ones.
var arabicDigits = map[rune]rune{
	'0': '٠', '1': '١', '2': '٢', '3': '٣', '4': '٤',
	'5': '٥', '6': '٦', '7': '٧', '8': '٨', '9': '٩',
}

// arabicGroupSeparator is the Arabic comma used between digit groups.
const arabicGroupSeparator = "،"

// priceMention matches a 4+ digit number (optionally already grouped) next to
// a currency hint in either language.
var priceMention = regexp.MustCompile(`(\d{1,3}(?:,\d{3})+|\d{4,})\s*(EGP|LE|L\.E\.?|egp|pounds?|جنيه(?:\s*مصري)?|ج\.م\.?)`)

// GroupThousands renders n with comma separators: 3000000 → "3,000,000".
func GroupThousands(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var sb strings.Builder
	for i, ch := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			sb.WriteByte(',')
		}
		sb.WriteRune(ch)
	}
	if neg {
		return "-" + sb.String()
	}
	return sb.String()
}

// ArabicNumber renders n with Arabic-Indic digits and Arabic comma grouping:
// 3000000 → "٣،٠٠٠،٠٠٠".
func ArabicNumber(n int64) string {
	grouped := GroupThousands(n)
	var sb strings.Builder
	for _, ch := range grouped {
		if ch == ',' {
			sb.WriteString(arabicGroupSeparator)
			continue
		}
		if ar, ok := arabicDigits[ch]; ok {
			sb.WriteRune(ar)
			continue
		}
		sb.WriteRune(ch)
	}
	return sb.String()
}

// FormatBilingualPrice renders the canonical bilingual form used everywhere a
// price reaches the customer.
func FormatBilingualPrice(amount int64) string {
	return GroupThousands(amount) + " EGP (" + ArabicNumber(amount) + " جنيه)"
}

// RewritePrices replaces every currency-hinted number in text with the
// bilingual form. Numbers that fail to parse are left untouched.
func RewritePrices(text string) string {
	return priceMention.ReplaceAllStringFunc(text, func(match string) string {
		groups := priceMention.FindStringSubmatch(match)
		if groups == nil {
			return match
		}
		raw := strings.ReplaceAll(groups[1], ",", "")
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return match
		}
		return FormatBilingualPrice(n)
	})
}
