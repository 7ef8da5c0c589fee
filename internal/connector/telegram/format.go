package telegram

import (
	"regexp"
	"strings"
)

var (
	// Order matters — process code first to avoid conflicts
	reInlineCode = regexp.MustCompile("`([^`]+)`")
	reBold       = regexp.MustCompile(`\*\*(.+?)\*\*`)
	reItalic     = regexp.MustCompile(`\*(.+?)\*`)
	reLink       = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
)

// MarkdownToHTML converts standard Markdown to Telegram's HTML subset.
// Ticket fields are free text typed by users, so everything outside the
// recognized spans is HTML-escaped.
func MarkdownToHTML(md string) string {
	lines := strings.Split(md, "\n")
	for i, line := range lines {
		lines[i] = convertLine(line)
	}
	return strings.Join(lines, "\n")
}

func convertLine(line string) string {
	// Protect inline code spans before escaping the rest.
	type codeSpan struct {
		placeholder string
		html        string
	}
	var spans []codeSpan

	line = reInlineCode.ReplaceAllStringFunc(line, func(match string) string {
		inner := reInlineCode.FindStringSubmatch(match)[1]
		placeholder := "\x00CODE" + string(rune('A'+len(spans))) + "\x00"
		spans = append(spans, codeSpan{
			placeholder: placeholder,
			html:        "<code>" + escapeHTML(inner) + "</code>",
		})
		return placeholder
	})

	line = escapeHTML(line)

	// Bold before italic (** before *)
	line = reBold.ReplaceAllString(line, "<b>$1</b>")
	line = reItalic.ReplaceAllString(line, "<i>$1</i>")
	line = reLink.ReplaceAllString(line, `<a href="$2">$1</a>`)

	for _, s := range spans {
		line = strings.Replace(line, escapeHTML(s.placeholder), s.html, 1)
	}
	return line
}

func escapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

// StripMarkdown removes Markdown formatting, returning plain text. Used as
// the fallback when Telegram rejects the HTML rendering.
func StripMarkdown(md string) string {
	md = reInlineCode.ReplaceAllString(md, "$1")
	md = reBold.ReplaceAllString(md, "$1")
	md = reItalic.ReplaceAllString(md, "$1")
	md = reLink.ReplaceAllString(md, "$1 ($2)")
	return md
}
