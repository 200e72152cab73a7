package dispatcher

import "unicode"

// DetectLanguage classifies a message by Arabic-script ratio over its
// letters: mostly Arabic → "ar", mostly Latin → "en", otherwise "mixed".
// Empty or symbol-only text returns "".
func DetectLanguage(text string) string {
	arabic, letters := 0, 0
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.Is(unicode.Arabic, r) {
			arabic++
		}
	}
	if letters == 0 {
		return ""
	}
	ratio := float64(arabic) / float64(letters)
	switch {
	case ratio >= 0.7:
		return "ar"
	case ratio <= 0.3:
		return "en"
	default:
		return "mixed"
	}
}
