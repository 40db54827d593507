package store

import "hash/fnv"

// Document represents a single unit of company content in the research store.
// It is the shape shared between the vector repository, the quality gate and
// the enrichment pipeline.
type Document struct {
	ID         string                 `json:"id"`
	Company    string                 `json:"company"`
	Title      string                 `json:"title"`
	Content    string                 `json:"content"`
	Score      float32                `json:"score"`
	SourceType string                 `json:"source_type"` // "upload" | "web" | "manual"
	URL        string                 `json:"url,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

const dedupePrefixLen = 200

// DedupeKey returns the identity key used to collapse near-duplicate chunks.
// Two documents whose first 200 content characters match are treated as the
// same document regardless of ID or source.
func DedupeKey(content string) uint64 {
	if len(content) > dedupePrefixLen {
		content = content[:dedupePrefixLen]
	}
	h := fnv.New64a()
	h.Write([]byte(content))
	return h.Sum64()
}

// Dedupe collapses a result set by DedupeKey, keeping the first occurrence
// in input order. Calling it on an already-deduped slice is a no-op.
func Dedupe(docs []Document) []Document {
	seen := make(map[uint64]bool, len(docs))
	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		key := DedupeKey(d.Content)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, d)
	}
	return out
}
