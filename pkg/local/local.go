package local

import (
	"fmt"
	"strings"
)

type Language string

const (
	Eng = Language("en")
	Rus = Language("ru")
)

// ParseLanguage accepts tags like "ru", "ru_RU.UTF-8" or "en-US" and falls
// back to Eng.
func ParseLanguage(s string) Language {
	tag := strings.ToLower(s)
	if i := strings.IndexAny(tag, "-_."); i >= 0 {
		tag = tag[:i]
	}
	switch Language(tag) {
	case Rus:
		return Rus
	default:
		return Eng
	}
}

type Localization struct {
	language Language
	text     string
}

type TextSet struct {
	Default          string
	translationsText map[Language]string
}

func NewTrans(language Language, text string) Localization {
	return Localization{
		language: language,
		text:     text,
	}
}

func NewSet(defaultText string, localizations ...Localization) TextSet {
	set := TextSet{
		Default:          defaultText,
		translationsText: make(map[Language]string),
	}
	for _, localization := range localizations {
		set.translationsText[localization.language] = localization.text
	}
	return set
}

func (l TextSet) Text(language Language) string {
	if text, ok := l.translationsText[language]; ok {
		return text
	}
	return l.Default
}

func (l TextSet) Format(language Language, a ...any) string {
	return fmt.Sprintf(l.Text(language), a...)
}

// Printer binds a language so call sites don't repeat it.
type Printer struct {
	Language Language
}

func NewPrinter(language Language) Printer {
	return Printer{Language: language}
}

func (p Printer) Text(set TextSet) string {
	return set.Text(p.Language)
}

func (p Printer) Format(set TextSet, a ...any) string {
	return set.Format(p.Language, a...)
}
