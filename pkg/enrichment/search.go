package enrichment

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const searchEndpoint = "https://html.duckduckgo.com/html/"

type searchResult struct {
	Title string
	URL   string
}

// search runs one query against the HTML search endpoint and parses the
// result list.
func (p *Pipeline) search(ctx context.Context, query string) ([]searchResult, error) {
	reqURL := searchEndpoint + "?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse search page: %w", err)
	}
	return parseSearchResults(doc, p.maxResultsPerQuery), nil
}

// parseSearchResults extracts result links from the HTML page. Links are
// redirect URLs carrying the target in the uddg query parameter.
func parseSearchResults(doc *goquery.Document, limit int) []searchResult {
	var results []searchResult
	doc.Find("a.result__a").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, ok := s.Attr("href")
		if !ok {
			return true
		}
		target := resolveRedirect(href)
		if target == "" {
			return true
		}
		results = append(results, searchResult{
			Title: strings.TrimSpace(s.Text()),
			URL:   target,
		})
		return len(results) < limit
	})
	return results
}

func resolveRedirect(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if target := u.Query().Get("uddg"); target != "" {
		if _, err := url.Parse(target); err == nil {
			return target
		}
		return ""
	}
	if u.Scheme == "http" || u.Scheme == "https" {
		return href
	}
	return ""
}
