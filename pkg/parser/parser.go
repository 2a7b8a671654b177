// Package parser pulls a readable title and excerpt out of a page for run
// reports.
package parser

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/go-shiori/go-readability"
)

// maxExcerpt bounds the excerpt kept in reports.
const maxExcerpt = 200

// PageInfo is what a report shows about a page besides its counts.
type PageInfo struct {
	Title    string `json:"title,omitempty"`
	SiteName string `json:"site_name,omitempty"`
	Excerpt  string `json:"excerpt,omitempty"`
}

type Parser struct{}

// Describe runs readability over html. Pages readability cannot make sense
// of return an error and an empty PageInfo.
func (p *Parser) Describe(rawURL, html string) (PageInfo, error) {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return PageInfo{}, fmt.Errorf("failed to parse url: %w", err)
	}

	rp := readability.NewParser()
	article, err := rp.Parse(strings.NewReader(html), parsedURL)
	if err != nil {
		return PageInfo{}, fmt.Errorf("failed to read page: %w", err)
	}

	return PageInfo{
		Title:    collapse(article.Title),
		SiteName: collapse(article.SiteName),
		Excerpt:  truncate(collapse(article.Excerpt), maxExcerpt),
	}, nil
}

// collapse folds runs of whitespace into single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
