package processor

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Processor extracts text and metadata from fetched HTML pages.
type Processor struct{}

// New creates a new page processor.
func New() *Processor {
	return &Processor{}
}

// ExtractText returns the page's visible text with all whitespace runs,
// including newlines, collapsed into single spaces.
func (p *Processor) ExtractText(htmlContent string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return "", err
	}
	return CollapseWhitespace(doc.Text()), nil
}

// CollapseWhitespace collapses every run of whitespace into one space
// and trims the ends.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// structuredData mirrors the ld+json block forum pages embed.
type structuredData struct {
	MainEntity struct {
		DatePublished string `json:"datePublished"`
	} `json:"mainEntity"`
}

// PublishedDate looks for an application/ld+json script block and
// returns the embedded publication date. The second return reports
// whether the block exists at all; pages without it carry no
// publication metadata and are handled differently by the caller.
func (p *Processor) PublishedDate(htmlContent string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return "", false
	}

	sel := doc.Find(`script[type="application/ld+json"]`)
	if sel.Length() == 0 {
		return "", false
	}

	var data structuredData
	if err := json.Unmarshal([]byte(sel.First().Text()), &data); err != nil {
		return "", true
	}
	return data.MainEntity.DatePublished, true
}

// ExtractTitle extracts the <title> content from HTML.
func (p *Processor) ExtractTitle(htmlContent string) string {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return ""
	}

	var title string
	var findTitle func(*html.Node)
	findTitle = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "title" {
			if n.FirstChild != nil {
				title = n.FirstChild.Data
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			findTitle(c)
		}
	}
	findTitle(doc)

	return strings.TrimSpace(title)
}
