package printer

import "strings"

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#39;",
)

// Escape replaces the five HTML-significant characters with entities. Every
// calendar-supplied string goes through it exactly once, when the document
// tree is built.
func Escape(s string) string {
	return htmlEscaper.Replace(s)
}
