package agentdb

import (
	"sort"

	"github.com/xkilldash9x/agentdb/api/schemas"
)

// DefaultTopPatterns is how many grouped patterns Statistics reports.
const DefaultTopPatterns = 10

// Statistics summarizes the corpus with DefaultTopPatterns top groups.
func (db *Database) Statistics() schemas.Statistics {
	return db.StatisticsTop(DefaultTopPatterns)
}

// StatisticsTop computes the corpus summary in a single linear pass over the
// record map. Nothing is cached between calls: the corpus is small relative
// to the automations it serves, and recomputing keeps every counter
// trivially consistent with the records.
func (db *Database) StatisticsTop(topN int) schemas.Statistics {
	db.mu.RLock()
	defer db.mu.RUnlock()

	stats := schemas.Statistics{
		TotalActions:        len(db.patterns),
		ActionTypeHistogram: make(map[string]int),
	}

	groups := make(map[string]*schemas.PatternStat)
	successes := 0

	for _, id := range db.order {
		p := db.patterns[id]
		stats.ActionTypeHistogram[p.Action]++
		if p.Success {
			successes++
		}

		key := p.Action + "|" + p.Selector
		g, ok := groups[key]
		if !ok {
			g = &schemas.PatternStat{Action: p.Action, Selector: p.Selector}
			groups[key] = g
		}
		g.Count++
		if p.Success {
			g.Successes++
		}
		if p.Timestamp.After(g.LastSeen) {
			g.LastSeen = p.Timestamp
		}
	}

	// Success rate is defined as 0 for an empty corpus, not NaN.
	if stats.TotalActions > 0 {
		stats.SuccessRate = float64(successes) / float64(stats.TotalActions)
	}

	stats.TopPatterns = rankGroups(groups, topN)
	return stats
}

// rankGroups orders pattern groups by count, ties broken by the most recent
// timestamp, then by group identity for a stable report.
func rankGroups(groups map[string]*schemas.PatternStat, topN int) []schemas.PatternStat {
	ranked := make([]schemas.PatternStat, 0, len(groups))
	for _, g := range groups {
		ranked = append(ranked, *g)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		if !ranked[i].LastSeen.Equal(ranked[j].LastSeen) {
			return ranked[i].LastSeen.After(ranked[j].LastSeen)
		}
		if ranked[i].Action != ranked[j].Action {
			return ranked[i].Action < ranked[j].Action
		}
		return ranked[i].Selector < ranked[j].Selector
	})
	if topN >= 0 && len(ranked) > topN {
		ranked = ranked[:topN]
	}
	return ranked
}
