package searchablepdf

import "strings"

var languageCodes = map[string]string{
	"romanian":  "ron",
	"english":   "eng",
	"german":    "deu",
	"italian":   "ita",
	"spanish":   "spa",
	"hungarian": "hun",
	"french":    "fra",
	"ukrainian": "ukr",
}

// LanguageCode maps a language name to its tesseract code, or "" when the
// name is unknown.
func LanguageCode(name string) string {
	return languageCodes[strings.ToLower(strings.TrimSpace(name))]
}
