// Package profanity cleans player supplied text before the relay stores or
// forwards it.
package profanity

import (
	"regexp"
	"strings"
	"unicode/utf8"

	goaway "github.com/TwiN/go-away"
	"github.com/rs/zerolog/log"
)

const (
	// MaxNameLength bounds display names, in runes.
	MaxNameLength = 12

	// DefaultName replaces an empty display name.
	DefaultName = "Player"

	// GuestName replaces names that were censored.
	GuestName = "Guest"
)

// reservedWords are masked as whole words wherever they appear.
var reservedWords = regexp.MustCompile(`(?i)\b(?:admin|mod|server|system)\b`)

// Filter censors profanity with asterisks.
type Filter struct {
	detector *goaway.ProfanityDetector
}

// NewFilter returns a Filter backed by the default go-away dictionary.
func NewFilter() *Filter {
	return &Filter{detector: goaway.NewProfanityDetector()}
}

// Sanitize returns text with profanities and reserved words masked. It never
// fails: if the detector panics only the reserved words are masked.
func (f *Filter) Sanitize(text string) (clean string) {
	if text == "" {
		return ""
	}
	defer func() {
		if r := recover(); r != nil {
			log.Warn().Interface("panic", r).Msg("profanity filter failed; passing text through")
			clean = maskReserved(text)
		}
	}()
	return maskReserved(f.detector.Censor(text))
}

func maskReserved(text string) string {
	return reservedWords.ReplaceAllStringFunc(text, func(word string) string {
		return strings.Repeat("*", utf8.RuneCountInString(word))
	})
}

// DisplayName turns a requested username into the name the relay will show.
func (f *Filter) DisplayName(requested string) string {
	name := strings.TrimSpace(f.Sanitize(strings.TrimSpace(requested)))
	name = truncate(name, MaxNameLength)
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultName
	}
	if strings.Contains(name, "***") {
		return GuestName
	}
	return name
}

// Truncate shortens s to at most n runes.
func Truncate(s string, n int) string {
	return truncate(s, n)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
