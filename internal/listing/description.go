package listing

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// MaxDescriptionLength is the rune limit applied before the ellipsis marker.
const MaxDescriptionLength = 10000

var (
	whitespacePattern = regexp.MustCompile(`[\s\p{Zs}]+`)
	tagPattern        = regexp.MustCompile(`<[^>]*>`)
)

// CleanDescription strips markup, collapses whitespace and truncates to MaxDescriptionLength runes.
func CleanDescription(raw string) string {
	text := stripHTML(raw)
	text = strings.TrimSpace(whitespacePattern.ReplaceAllString(text, " "))

	if utf8.RuneCountInString(text) > MaxDescriptionLength {
		runes := []rune(text)
		text = strings.TrimSpace(string(runes[:MaxDescriptionLength])) + "..."
	}
	return text
}

func stripHTML(raw string) string {
	if !strings.ContainsAny(raw, "<&") {
		return raw
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return tagPattern.ReplaceAllString(raw, " ")
	}

	doc.Find("script, style, noscript").Remove()
	// block elements would otherwise glue neighbouring words together
	doc.Find("p, div, br, li, tr, td, th, h1, h2, h3, h4, h5, h6, section, article").AppendHtml(" ")

	return doc.Text()
}
