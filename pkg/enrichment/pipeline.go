package enrichment

import (
	"context"
	"net/http"
	"sync"
	"time"

	"ai-research-be/internal/pkg/logger"
	"ai-research-be/pkg/store"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Pipeline turns a company name into scraped web documents: search per topic,
// then a bounded concurrent scrape of the result pages.
type Pipeline struct {
	client             *http.Client
	cache              *scrapeCache
	logger             logger.ILogger
	maxConcurrent      int
	maxResultsPerQuery int
	perURLTimeout      time.Duration
}

func NewPipeline(rdb *redis.Client, cacheTTL time.Duration, log logger.ILogger) *Pipeline {
	return &Pipeline{
		client:             &http.Client{Timeout: 20 * time.Second},
		cache:              newScrapeCache(rdb, cacheTTL),
		logger:             log,
		maxConcurrent:      4,
		maxResultsPerQuery: 4,
		perURLTimeout:      15 * time.Second,
	}
}

// DefaultTopics are the query angles used when the caller has no specific
// focus to add.
func DefaultTopics(company string) []string {
	return []string{
		company + " company overview business model",
		company + " strategic goals initiatives",
		company + " leadership team executives",
		company + " financials revenue workforce",
		company + " culture hiring careers",
	}
}

// Fetch searches every topic query and scrapes the union of result pages.
// Individual search or scrape failures are logged and skipped; the only hard
// error is context cancellation. A total failure yields an empty slice.
func (p *Pipeline) Fetch(ctx context.Context, company string, topicQueries []string) ([]store.Document, error) {
	if len(topicQueries) == 0 {
		topicQueries = DefaultTopics(company)
	}

	seen := make(map[string]bool)
	var targets []searchResult
	for _, q := range topicQueries {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		results, err := p.search(ctx, q)
		if err != nil {
			p.logger.Warn("Enrichment", "Search query failed", map[string]interface{}{
				"query": q, "error": err.Error(),
			})
			continue
		}
		for _, r := range results {
			if seen[r.URL] {
				continue
			}
			seen[r.URL] = true
			targets = append(targets, r)
		}
	}

	p.logger.Info("Enrichment", "Search phase done", map[string]interface{}{
		"company": company, "queries": len(topicQueries), "pages": len(targets),
	})

	docs := p.scrapeAll(ctx, company, targets)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return docs, nil
}

// scrapeAll fans the page fetches out over a bounded set of workers, each
// page getting its own timeout.
func (p *Pipeline) scrapeAll(ctx context.Context, company string, targets []searchResult) []store.Document {
	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		docs []store.Document
	)
	sem := make(chan struct{}, p.maxConcurrent)

	for _, target := range targets {
		if ctx.Err() != nil {
			break
		}
		target := target
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			doc, ok := p.scrapeOne(ctx, company, target)
			if !ok {
				return
			}
			mu.Lock()
			docs = append(docs, doc)
			mu.Unlock()
		}()
	}

	wg.Wait()
	return docs
}

func (p *Pipeline) scrapeOne(ctx context.Context, company string, target searchResult) (store.Document, bool) {
	if page, hit := p.cache.Get(ctx, target.URL); hit {
		return p.toDocument(company, target, page), true
	}

	scrapeCtx, cancel := context.WithTimeout(ctx, p.perURLTimeout)
	defer cancel()

	title, content, err := p.scrape(scrapeCtx, target.URL)
	if err != nil {
		p.logger.Warn("Enrichment", "Scrape failed", map[string]interface{}{
			"url": target.URL, "error": err.Error(),
		})
		return store.Document{}, false
	}

	page := cachedPage{Title: title, Content: content}
	p.cache.Set(ctx, target.URL, page)
	return p.toDocument(company, target, page), true
}

func (p *Pipeline) toDocument(company string, target searchResult, page cachedPage) store.Document {
	title := page.Title
	if title == "" {
		title = target.Title
	}
	return store.Document{
		ID:         uuid.NewString(),
		Company:    company,
		Title:      title,
		Content:    page.Content,
		SourceType: "web",
		URL:        target.URL,
	}
}
