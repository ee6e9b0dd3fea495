// Package embedding turns an action context into a fixed-length vector for
// similarity search. The projection is a hashed bag-of-tokens: no model, no
// network, no state. Identical inputs always produce the identical vector,
// across calls and across process restarts.
package embedding

import (
	"hash/fnv"
	"math"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Dimensions is the fixed length of every embedding produced by this
// package. The vector index is built for this dimensionality and cannot
// change it over its lifetime.
const Dimensions = 384

// Embedder maps an action context to a fixed-length float vector.
// Implementations must be deterministic and side-effect free.
type Embedder interface {
	Embed(action, selector, rawURL string) []float32
	Dimensions() int
}

// HashingEmbedder is the default Embedder: field-prefixed tokens hashed into
// a fixed number of buckets, L2-normalized. It deliberately ignores the
// pattern's value field, which must never influence the vector.
type HashingEmbedder struct {
	dims int
}

// NewHashingEmbedder returns a HashingEmbedder producing vectors of the
// standard dimensionality.
func NewHashingEmbedder() *HashingEmbedder {
	return &HashingEmbedder{dims: Dimensions}
}

// Dimensions returns the length of the vectors produced by Embed.
func (e *HashingEmbedder) Dimensions() int { return e.dims }

// Embed projects (action, selector, url) into a normalized vector.
// Tokens are prefixed with their field name so "click" as an action and
// "click" inside a selector land in different buckets.
func (e *HashingEmbedder) Embed(action, selector, rawURL string) []float32 {
	vec := make([]float32, e.dims)

	for _, tok := range tokenize(action) {
		e.accumulate(vec, "action:"+tok, 2.0)
	}

	for _, tok := range tokenize(selector) {
		e.accumulate(vec, "selector:"+tok, 1.5)
	}
	// Character trigrams keep structurally close selectors
	// (#email vs #email-field) near each other.
	for _, tok := range trigrams(selector) {
		e.accumulate(vec, "sel3:"+tok, 0.5)
	}

	host, path := splitURL(rawURL)
	if host != "" {
		e.accumulate(vec, "host:"+host, 1.5)
	}
	for _, tok := range tokenize(path) {
		e.accumulate(vec, "path:"+tok, 0.75)
	}

	normalize(vec)
	return vec
}

// accumulate hashes the token into a bucket and adds a signed weight.
// FNV-1a is stable across platforms, which is what makes the whole
// embedding reproducible.
func (e *HashingEmbedder) accumulate(vec []float32, token string, weight float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(token))
	sum := h.Sum64()

	bucket := int(sum % uint64(e.dims))
	// One hash bit decides the sign, which spreads collisions instead of
	// letting them always reinforce each other.
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	vec[bucket] += weight
}

// normalize scales the vector to unit length. An all-zero context (every
// field empty) gets a fixed basis vector so cosine distance stays defined.
func normalize(vec []float32) {
	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	if sumSq == 0 {
		vec[0] = 1
		return
	}
	inv := float32(1 / math.Sqrt(sumSq))
	for i := range vec {
		vec[i] *= inv
	}
}

// tokenize lowercases the input and splits it on anything that is not a
// letter or digit. Empty input yields no tokens.
func tokenize(s string) []string {
	s = strings.ToLower(s)
	return strings.FieldsFunc(s, func(r rune) bool {
		switch {
		case r >= 'a' && r <= 'z':
			return false
		case r >= '0' && r <= '9':
			return false
		}
		return true
	})
}

// trigrams returns the lowercase character trigrams of s, whitespace removed.
func trigrams(s string) []string {
	s = strings.ToLower(strings.Join(strings.Fields(s), ""))
	if len(s) < 3 {
		return nil
	}
	out := make([]string, 0, len(s)-2)
	for i := 0; i+3 <= len(s); i++ {
		out = append(out, s[i:i+3])
	}
	return out
}

// splitURL reduces a raw URL to its registrable domain (eTLD+1) and path.
// "https://app.site.com/signup?x=1" becomes ("site.com", "/signup"), so the
// same form on different subdomains still embeds close together. Inputs that
// do not parse as URLs are treated as a bare host.
func splitURL(rawURL string) (host, path string) {
	if rawURL == "" {
		return "", ""
	}
	candidate := rawURL
	if !strings.Contains(candidate, "://") {
		candidate = "https://" + candidate
	}
	u, err := url.Parse(candidate)
	if err != nil || u.Hostname() == "" {
		return strings.ToLower(strings.TrimSpace(rawURL)), ""
	}
	host = strings.ToLower(u.Hostname())
	if etld1, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		host = etld1
	}
	return host, u.Path
}
