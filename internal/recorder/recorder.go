// Package recorder is the convenience layer automation engines use to talk
// to the pattern store. A Session stamps every record with the engine name
// and a session id, redacts values for sensitive field types before they
// reach the store, and turns raw similarity results into ranked selector
// suggestions.
//
// Everything here is additive over the store's Store/FindSimilar contract;
// the Database itself needs no knowledge of sessions or scoring.
package recorder

import (
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/agentdb/api/schemas"
	"github.com/xkilldash9x/agentdb/internal/agentdb"
)

// Conventional metadata keys stamped by the recorder. Documented, not
// enforced by the store.
const (
	MetadataKeyEngine    = "engine"
	MetadataKeySession   = "session"
	MetadataKeyFieldType = "fieldType"
)

// sensitiveFieldTypes lists field types whose values must never be retained.
// The match is case-insensitive on the whole field type.
var sensitiveFieldTypes = map[string]struct{}{
	"password":     {},
	"new-password": {},
	"cc-number":    {},
	"cc-csc":       {},
	"otp":          {},
	"secret":       {},
	"token":        {},
	"ssn":          {},
}

// IsSensitiveFieldType reports whether values for the given field type must
// be redacted before recording.
func IsSensitiveFieldType(fieldType string) bool {
	_, ok := sensitiveFieldTypes[strings.ToLower(strings.TrimSpace(fieldType))]
	return ok
}

// Session scopes recorded patterns to one automation run.
type Session struct {
	db     *agentdb.Database
	logger *zap.Logger
	id     string
	engine string
}

// NewSession creates a recording session for the named automation engine
// (e.g. "formfiller", "signup-assistant").
func NewSession(db *agentdb.Database, engine string, logger *zap.Logger) *Session {
	return &Session{
		db:     db,
		logger: logger.Named("recorder"),
		id:     uuid.NewString(),
		engine: engine,
	}
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// Record stores one action outcome, stamping session metadata. fieldType may
// be empty; when it names a sensitive field the value is dropped before the
// record leaves this package.
func (s *Session) Record(input schemas.StoreInput, fieldType string) (uint64, error) {
	// Stamp a copy; callers may reuse one metadata map across records.
	metadata := make(schemas.Metadata, len(input.Metadata)+3)
	for k, v := range input.Metadata {
		metadata[k] = v
	}
	metadata[MetadataKeyEngine] = s.engine
	metadata[MetadataKeySession] = s.id
	if fieldType != "" {
		metadata[MetadataKeyFieldType] = fieldType
	}
	input.Metadata = metadata
	if IsSensitiveFieldType(fieldType) && input.Value != "" {
		s.logger.Debug("Redacting sensitive value before recording.",
			zap.String("field_type", fieldType))
		input.Value = ""
	}
	return s.db.Store(input)
}

// RecordSuccess records a successful action.
func (s *Session) RecordSuccess(action, selector, url, value, fieldType string) (uint64, error) {
	return s.Record(schemas.StoreInput{
		Action:   action,
		Selector: selector,
		URL:      url,
		Value:    value,
		Success:  true,
	}, fieldType)
}

// RecordFailure records a failed action with a structured error code.
func (s *Session) RecordFailure(action, selector, url string, code agentdb.ErrorCode, fieldType string) (uint64, error) {
	return s.Record(schemas.StoreInput{
		Action:   action,
		Selector: selector,
		URL:      url,
		Success:  false,
		Metadata: schemas.Metadata{agentdb.MetadataKeyErrorCode: string(code)},
	}, fieldType)
}

// Suggestion is one candidate selector with its aggregated history.
type Suggestion struct {
	Selector   string
	Score      float64
	Similarity float64 // best similarity among the contributing patterns
	Attempts   int
	Successes  int
}

// Suggest returns up to k candidate selectors for the given context, ranked
// by a success-weighted score. Similar past patterns are grouped by
// selector; each group scores bestSimilarity * (0.5 + 0.5*successRate), so a
// selector that always worked outranks an equally similar one that usually
// failed, while an unproven selector is dampened rather than discarded.
// An empty result means the store has nothing relevant yet; callers fall
// back to their own heuristics.
func (s *Session) Suggest(qctx schemas.QueryContext, k int) []Suggestion {
	if k <= 0 {
		return []Suggestion{}
	}

	// Pull a wider net than k selectors, since several results may share one.
	results := s.db.FindSimilar(qctx, 4*k, nil)

	order := make([]string, 0, len(results))
	groups := make(map[string]*Suggestion)
	for _, r := range results {
		sel := r.Pattern.Selector
		if sel == "" {
			continue
		}
		g, ok := groups[sel]
		if !ok {
			g = &Suggestion{Selector: sel}
			groups[sel] = g
			order = append(order, sel)
		}
		g.Attempts++
		if r.Pattern.Success {
			g.Successes++
		}
		if r.Similarity > g.Similarity {
			g.Similarity = r.Similarity
		}
	}

	suggestions := make([]Suggestion, 0, len(groups))
	for _, sel := range order {
		g := groups[sel]
		successRate := float64(g.Successes) / float64(g.Attempts)
		g.Score = g.Similarity * (0.5 + 0.5*successRate)
		suggestions = append(suggestions, *g)
	}
	sortSuggestions(suggestions)
	if len(suggestions) > k {
		suggestions = suggestions[:k]
	}
	return suggestions
}
