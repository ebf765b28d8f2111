package helpers

import (
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	documentPolicyOnce sync.Once
	documentPolicy     *bluemonday.Policy
)

// DocumentHTMLPolicy keeps the structural markup of a legal document
// (headings, paragraphs, lists, tables, emphasis) and drops scripts, styles,
// media, forms and every attribute except link targets.
func DocumentHTMLPolicy() *bluemonday.Policy {
	documentPolicyOnce.Do(func() {
		p := bluemonday.NewPolicy()
		p.AllowElements("h1", "h2", "h3", "h4", "h5", "h6", "p", "br", "hr",
			"ul", "ol", "li", "dl", "dt", "dd", "blockquote", "pre", "code",
			"strong", "b", "em", "i", "u", "section", "article", "div", "span",
			"table", "thead", "tbody", "tfoot", "tr", "th", "td", "caption")
		p.AllowAttrs("href").OnElements("a")
		p.AllowURLSchemes("http", "https", "mailto")
		p.AllowRelativeURLs(true)
		p.RequireParseableURLs(true)
		documentPolicy = p
	})
	return documentPolicy
}

// SanitizeDocumentHTML cleans s with DocumentHTMLPolicy.
func SanitizeDocumentHTML(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return strings.TrimSpace(DocumentHTMLPolicy().Sanitize(s))
}
