// Package i18n picks a client language from Accept-Language and translates the
// fixed client-facing messages. English is the source language and the fallback.
package i18n

import (
	"golang.org/x/text/language"
)

var supported = []language.Tag{language.English, language.Arabic}

var matcher = language.NewMatcher(supported)

// Match returns the supported language that best fits an Accept-Language value.
// An empty or unparsable value yields English.
func Match(acceptLanguage string) language.Tag {
	if acceptLanguage == "" {
		return language.English
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return language.English
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return language.English
	}
	return supported[idx]
}

// Translate returns msg in lang. Messages without a translation are returned unchanged.
func Translate(lang language.Tag, msg string) string {
	if lang != language.Arabic {
		return msg
	}
	if t, ok := arabic[msg]; ok {
		return t
	}
	return msg
}

// Localize is Translate with the language matched from acceptLanguage.
func Localize(acceptLanguage, msg string) string {
	return Translate(Match(acceptLanguage), msg)
}
