// Package locale gates localized routes and supplies text direction and
// translated strings for the supported locales.
package locale

import (
	"fmt"

	"golang.org/x/text/language"
)

// Code is a supported locale code.
type Code string

const (
	// English is the default locale.
	English Code = "en"
	// Arabic is rendered right-to-left.
	Arabic Code = "ar"
	// Default is used when a request carries no usable locale.
	Default = English
)

// Direction is the text flow orientation of a locale.
type Direction string

const (
	LTR Direction = "ltr"
	RTL Direction = "rtl"
)

var supported = []Code{English, Arabic}

var directions = map[Code]Direction{
	English: LTR,
	Arabic:  RTL,
}

var matcher = language.NewMatcher([]language.Tag{language.English, language.Arabic})

// Supported returns the supported locale codes in display order.
func Supported() []Code {
	out := make([]Code, len(supported))
	copy(out, supported)
	return out
}

// IsValid reports whether candidate is exactly one of the supported codes.
// Matching is case-sensitive and performs no normalization.
func IsValid(candidate string) bool {
	for _, c := range supported {
		if string(c) == candidate {
			return true
		}
	}
	return false
}

// DirectionOf returns the text direction for a supported locale.
// Callers must validate the code first; an unsupported code panics.
func DirectionOf(c Code) Direction {
	d, ok := directions[c]
	if !ok {
		panic(fmt.Sprintf("locale: direction requested for unsupported locale %q", c))
	}
	return d
}

// Other returns the alternate locale, used for the language switcher.
func (c Code) Other() Code {
	if c == Arabic {
		return English
	}
	return Arabic
}

// Detect picks the best supported locale for an Accept-Language header.
func Detect(acceptLanguage string) Code {
	if acceptLanguage == "" {
		return Default
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return Default
	}
	_, index, confidence := matcher.Match(tags...)
	if confidence == language.No {
		return Default
	}
	return supported[index]
}
