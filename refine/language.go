package refine

import (
	"fmt"
	"strings"
)

// Language is one of the translator's supported languages.
type Language string

const (
	English    Language = "English"
	Swedish    Language = "Swedish"
	Vietnamese Language = "Vietnamese"
)

// Languages lists the supported languages in display order.
var Languages = []Language{English, Swedish, Vietnamese}

var languageCodes = map[Language]string{
	English:    "en",
	Swedish:    "sv",
	Vietnamese: "vi",
}

// Code returns the ISO 639-1 code.
func (l Language) Code() string {
	return languageCodes[l]
}

// String returns the display name.
func (l Language) String() string {
	return string(l)
}

// ParseLanguage accepts a display name or ISO code, case-insensitively.
func ParseLanguage(s string) (Language, error) {
	s = strings.TrimSpace(s)
	for _, l := range Languages {
		if strings.EqualFold(s, string(l)) || strings.EqualFold(s, l.Code()) {
			return l, nil
		}
	}
	return "", fmt.Errorf("unsupported language %q", s)
}

// Others returns every supported language except l.
func (l Language) Others() []Language {
	out := make([]Language, 0, len(Languages)-1)
	for _, other := range Languages {
		if other != l {
			out = append(out, other)
		}
	}
	return out
}
