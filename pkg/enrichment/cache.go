package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/redis/go-redis/v9"
)

// scrapeCache keeps scraped pages in Redis so repeated enrichment rounds for
// the same company do not hammer the same sites. All failures are soft: with
// Redis down the pipeline just scrapes again.
type scrapeCache struct {
	rdb *redis.Client
	ttl time.Duration
}

type cachedPage struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func newScrapeCache(rdb *redis.Client, ttl time.Duration) *scrapeCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &scrapeCache{rdb: rdb, ttl: ttl}
}

func cacheKey(pageURL string) string {
	h := fnv.New64a()
	h.Write([]byte(pageURL))
	return fmt.Sprintf("enrichment:scrape:%x", h.Sum64())
}

func (c *scrapeCache) Get(ctx context.Context, pageURL string) (cachedPage, bool) {
	var page cachedPage
	if c.rdb == nil {
		return page, false
	}
	raw, err := c.rdb.Get(ctx, cacheKey(pageURL)).Result()
	if err != nil {
		return page, false
	}
	if err := json.Unmarshal([]byte(raw), &page); err != nil {
		return page, false
	}
	return page, true
}

func (c *scrapeCache) Set(ctx context.Context, pageURL string, page cachedPage) {
	if c.rdb == nil {
		return
	}
	raw, err := json.Marshal(page)
	if err != nil {
		return
	}
	c.rdb.Set(ctx, cacheKey(pageURL), raw, c.ttl)
}
