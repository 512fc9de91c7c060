package scriptgen

import "strings"

// DefaultLanguageCode is used when the requested language is unknown.
const DefaultLanguageCode = "en-US"

// languageCodes maps human-readable language names to the BCP-47 codes the
// synthesis backend expects.
var languageCodes = map[string]string{
	"german":               "de-DE",
	"english (australia)":  "en-AU",
	"english (uk)":         "en-GB",
	"english (india)":      "en-IN",
	"english (us)":         "en-US",
	"english":              "en-US",
	"spanish (us)":         "es-US",
	"spanish":              "es-ES",
	"spanish (spain)":      "es-ES",
	"french":               "fr-FR",
	"french (canada)":      "fr-CA",
	"hindi":                "hi-IN",
	"portuguese":           "pt-BR",
	"arabic":               "ar-XA",
	"indonesian":           "id-ID",
	"italian":              "it-IT",
	"japanese":             "ja-JP",
	"turkish":              "tr-TR",
	"vietnamese":           "vi-VN",
	"bengali":              "bn-IN",
	"gujarati":             "gu-IN",
	"kannada":              "kn-IN",
	"malayalam":            "ml-IN",
	"marathi":              "mr-IN",
	"tamil":                "ta-IN",
	"telugu":               "te-IN",
	"dutch":                "nl-NL",
	"korean":               "ko-KR",
	"mandarin":             "cmn-CN",
	"chinese":              "cmn-CN",
	"polish":               "pl-PL",
	"russian":              "ru-RU",
	"thai":                 "th-TH",
}

// LanguageCode resolves a human-readable language name ("English", "german",
// "Spanish (US)") to its BCP-47 code. Unknown names fall back to
// [DefaultLanguageCode].
func LanguageCode(name string) string {
	if code, ok := languageCodes[strings.ToLower(strings.TrimSpace(name))]; ok {
		return code
	}
	return DefaultLanguageCode
}
