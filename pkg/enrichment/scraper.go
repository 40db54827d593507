package enrichment

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	userAgent       = "Mozilla/5.0 (compatible; research-agent/1.0)"
	maxContentChars = 6000
)

// scrape downloads one page and reduces it to title, description and body
// paragraphs. Boilerplate elements are stripped before text extraction.
func (p *Pipeline) scrape(ctx context.Context, pageURL string) (title, content string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("fetch %s: status %d", pageURL, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") {
		return "", "", fmt.Errorf("fetch %s: unsupported content type %s", pageURL, ct)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", "", fmt.Errorf("parse %s: %w", pageURL, err)
	}

	return extractPage(doc)
}

func extractPage(doc *goquery.Document) (title, content string, err error) {
	title = strings.TrimSpace(doc.Find("title").First().Text())

	var parts []string
	if desc, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
		desc = strings.TrimSpace(desc)
		if desc != "" {
			parts = append(parts, desc)
		}
	}

	doc.Find("script, style, nav, footer, header, aside").Remove()

	doc.Find("p, li").Each(func(_ int, s *goquery.Selection) {
		text := strings.Join(strings.Fields(s.Text()), " ")
		// Short fragments are menus and captions, not content.
		if len(text) >= 40 {
			parts = append(parts, text)
		}
	})

	content = strings.Join(parts, "\n")
	if len(content) > maxContentChars {
		content = content[:maxContentChars]
	}
	if content == "" {
		return title, "", fmt.Errorf("no extractable text")
	}
	return title, content, nil
}
