package printer

import (
	"embed"
	"fmt"
	"io"
	"strconv"
	"text/template"
)

//go:embed templates/document.html.tmpl
var templateFS embed.FS

// The tree is already escaped, so the serializer must not escape again.
// text/template writes values unchanged.
var documentTemplate = template.Must(
	template.New("document.html.tmpl").
		Funcs(template.FuncMap{
			"px": func(base, scale float64) string {
				return strconv.FormatFloat(base*scale, 'f', -1, 64) + "px"
			},
			"empty": func() string { return EmptyNotice },
		}).
		ParseFS(templateFS, "templates/document.html.tmpl"),
)

// WriteHTML writes doc as a standalone A4 HTML page. Every page of the tree
// starts on a new printed sheet.
func WriteHTML(w io.Writer, doc Document) error {
	if doc.FontScale <= 0 {
		doc.FontScale = 1
	}
	if doc.PageSize == "" {
		doc.PageSize = PageSize
	}
	if err := documentTemplate.Execute(w, doc); err != nil {
		return fmt.Errorf("printer: write html: %w", err)
	}
	return nil
}
