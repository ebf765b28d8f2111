// Package readable reduces a rendered page to its main document as Markdown.
package readable

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/go-shiori/go-readability"
	"github.com/mohammad-safakhou/policylens/internal/helpers"
)

// Document is the readability view of a page.
type Document struct {
	Title       string
	Markdown    string
	TextContent string
}

var mdConverter = converter.NewConverter(
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
		table.NewTablePlugin(),
	),
)

// Extract runs readability over html, sanitises the article markup and converts it to Markdown.
func Extract(html, pageURL string) (Document, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return Document{}, fmt.Errorf("parse url: %w", err)
	}
	article, err := readability.FromReader(strings.NewReader(html), u)
	if err != nil {
		return Document{}, fmt.Errorf("readability: %w", err)
	}
	doc := Document{
		Title:       strings.TrimSpace(article.Title),
		TextContent: strings.TrimSpace(article.TextContent),
	}
	clean := helpers.SanitizeDocumentHTML(article.Content)
	if strings.TrimSpace(clean) == "" {
		return doc, nil
	}
	md, err := mdConverter.ConvertString(clean, converter.WithDomain(pageURL))
	if err != nil {
		return doc, fmt.Errorf("markdown: %w", err)
	}
	doc.Markdown = strings.TrimSpace(md)
	return doc, nil
}

// Content picks the best available body: Markdown, then readability text, then innerText.
func Content(doc Document, innerText string) string {
	if doc.Markdown != "" {
		return doc.Markdown
	}
	if doc.TextContent != "" {
		return doc.TextContent
	}
	return strings.TrimSpace(innerText)
}
