package agentdb

import (
	"reflect"
	"sort"

	"go.uber.org/zap"

	"github.com/xkilldash9x/agentdb/api/schemas"
)

// FindSimilar returns up to k past patterns ranked by similarity to the
// given context. The index is over-fetched to compensate for post-filtering,
// so a restrictive filter still tends to fill k slots when matches exist.
// Fewer than k matches is normal and never an error; a non-positive k is a
// benign caller mistake answered with an empty slice.
func (db *Database) FindSimilar(qctx schemas.QueryContext, k int, filter *schemas.QueryFilter) []schemas.QueryResult {
	if k <= 0 {
		return []schemas.QueryResult{}
	}

	vec := db.embedder.Embed(qctx.Action, qctx.Selector, qctx.URL)

	// Over-fetch: filtered-out candidates should not starve the result set.
	fetch := 3 * k
	if k+10 > fetch {
		fetch = k + 10
	}

	db.mu.RLock()
	defer db.mu.RUnlock()

	candidates := db.index.Query(vec, fetch)

	results := make([]schemas.QueryResult, 0, len(candidates))
	for _, c := range candidates {
		pattern, ok := db.patterns[c.ID]
		if !ok {
			// Index and record map are committed together; a miss here
			// means corruption and is worth a loud log, not a panic.
			db.logger.Warn("Vector index returned an id with no stored pattern.", zap.Uint64("id", c.ID))
			continue
		}
		if !matchesFilter(pattern, filter) {
			continue
		}
		results = append(results, schemas.QueryResult{
			Pattern:    pattern,
			Similarity: distanceToSimilarity(c.Distance),
		})
	}

	if filter != nil && filter.MinSimilarity > 0 {
		filtered := results[:0]
		for _, r := range results {
			if r.Similarity >= filter.MinSimilarity {
				filtered = append(filtered, r)
			}
		}
		results = filtered
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].Pattern.ID < results[j].Pattern.ID
	})
	if len(results) > k {
		results = results[:k]
	}
	return results
}

// distanceToSimilarity maps cosine distance [0,2] onto a [0,1] similarity
// score, clamped against float drift at the edges.
func distanceToSimilarity(distance float32) float64 {
	sim := 1 - float64(distance)/2
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}

// matchesFilter applies the metadata-level parts of a query filter.
// MinSimilarity is handled separately because it operates on the derived
// score, not the record.
func matchesFilter(p schemas.ActionPattern, filter *schemas.QueryFilter) bool {
	if filter == nil {
		return true
	}
	if filter.SuccessOnly && !p.Success {
		return false
	}
	for key, want := range filter.MetadataEquals {
		got, ok := p.Metadata[key]
		if !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}
