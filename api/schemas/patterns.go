package schemas

import (
	"time"
)

// -- Pattern Schemas --

// Metadata is the open, string-keyed map attached to every recorded pattern.
// Values may be strings, numbers, bools, or nested maps. The store enforces
// no schema; key conventions (e.g. "fieldType", "engine", "session") are
// each collaborator's concern.
type Metadata map[string]interface{}

// ActionPattern is a single recorded automation event: what was done, where,
// and whether it worked. The id is assigned by the store at insert time and
// never changes.
type ActionPattern struct {
	ID       uint64    `json:"id"`
	Action   string    `json:"action"`
	Selector string    `json:"selector,omitempty"`
	URL      string    `json:"url,omitempty"`
	// Value holds the input that was typed or selected, when it is safe to
	// retain. Collaborators must leave it empty for sensitive fields
	// (passwords, card numbers); it never contributes to the embedding.
	Value     string    `json:"value,omitempty"`
	Success   bool      `json:"success"`
	Timestamp time.Time `json:"timestamp"`
	Metadata  Metadata  `json:"metadata,omitempty"`
}

// StoreInput carries the caller-supplied fields of a pattern about to be
// recorded. ID and Timestamp are filled in by the store.
type StoreInput struct {
	Action   string   `json:"action"`
	Selector string   `json:"selector,omitempty"`
	URL      string   `json:"url,omitempty"`
	Value    string   `json:"value,omitempty"`
	Success  bool     `json:"success"`
	Metadata Metadata `json:"metadata,omitempty"`
}

// QueryContext identifies the action a collaborator is about to attempt.
// Only these three fields feed the embedding.
type QueryContext struct {
	Action   string `json:"action"`
	Selector string `json:"selector,omitempty"`
	URL      string `json:"url,omitempty"`
}

// QueryFilter restricts FindSimilar results after the vector search.
// A nil filter matches everything.
type QueryFilter struct {
	// SuccessOnly drops patterns whose recorded outcome was a failure.
	SuccessOnly bool `json:"success_only,omitempty"`
	// MinSimilarity drops results scoring below this threshold in [0,1].
	MinSimilarity float64 `json:"min_similarity,omitempty"`
	// MetadataEquals requires exact equality on each listed metadata key.
	MetadataEquals map[string]interface{} `json:"metadata_equals,omitempty"`
}

// QueryResult pairs a retrieved pattern with its similarity to the query
// context. Similarity is in [0,1]; 1 means an identical context.
type QueryResult struct {
	Pattern    ActionPattern `json:"pattern"`
	Similarity float64       `json:"similarity"`
}

// -- Statistics Schemas --

// PatternStat summarizes one action+selector group for reporting.
type PatternStat struct {
	Action    string    `json:"action"`
	Selector  string    `json:"selector,omitempty"`
	Count     int       `json:"count"`
	Successes int       `json:"successes"`
	LastSeen  time.Time `json:"last_seen"`
}

// Statistics is a point-in-time summary of the whole corpus, recomputed by a
// single linear pass on every call.
type Statistics struct {
	TotalActions        int            `json:"total_actions"`
	SuccessRate         float64        `json:"success_rate"`
	ActionTypeHistogram map[string]int `json:"action_type_histogram"`
	TopPatterns         []PatternStat  `json:"top_patterns"`
}
