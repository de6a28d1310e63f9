package render

import "strings"

// Taken from https://core.telegram.org/bots/api#markdownv2-style.
const mdV2SpecialChars = `\_*[]()~` + "`" + `>#+-=|{}.!`

var mdV2Replacer = newMDV2Replacer()

// EscapeV2 escapes text for Telegram MarkdownV2 outside of entities.
func EscapeV2(input string) string {
	return mdV2Replacer.Replace(input)
}

// escapeLinkURL escapes the URL part of an inline link, where only ')' and '\'
// are special.
func escapeLinkURL(u string) string {
	return strings.NewReplacer(`\`, `\\`, `)`, `\)`).Replace(u)
}

func newMDV2Replacer() *strings.Replacer {
	pairs := make([]string, 0, 2*len(mdV2SpecialChars))
	for _, c := range mdV2SpecialChars {
		pairs = append(pairs, string(c), `\`+string(c))
	}

	return strings.NewReplacer(pairs...)
}
