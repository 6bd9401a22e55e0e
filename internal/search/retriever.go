package search

import (
	"math"
	"sort"
	"strings"
	"sync"
)

// Document is one indexable unit — a policy document or question/answer
// pair, per spec §4.H's abstract Retriever contract.
type Document struct {
	Policy   string
	Section  string
	Question string
	Text     string
}

// Retriever is the abstract backend contract spec §4.H specifies: build
// once, search many times. The concrete index format is opaque to the
// core — only this interface is load-bearing.
type Retriever interface {
	Build(docs []Document) error
	Search(query string, limit int) ([]Hit, error)
	Name() string
}

// Embedder turns text into a fixed-length vector. The real embedding
// model is explicitly out of scope (spec §1's "pluggable"), so this
// interface exists to let a real model process slot in behind the same
// contract as the deterministic fallback embedder this package ships.
type Embedder interface {
	Embed(text string) []float64
	Dim() int
}

// HybridWeight configures the blend between lexical and vector distance
// (spec §4.H: "configurable weight, default 0.5/0.5").
type HybridWeight struct {
	Lexical float64
	Vector  float64
}

// DefaultWeight is the spec-mandated default blend.
var DefaultWeight = HybridWeight{Lexical: 0.5, Vector: 0.5}

// HybridRetriever combines a lexical token-overlap index with a vector
// index behind a pluggable Embedder, min-max normalizing and blending
// their distances before ranking (spec §4.H).
type HybridRetriever struct {
	mu       sync.RWMutex
	embedder Embedder
	weight   HybridWeight
	docs     []Document
	vectors  [][]float64
	postings map[string][]int // token -> doc indices, for the lexical side
}

// NewHybridRetriever constructs a HybridRetriever. embedder must not be
// nil; callers wanting lexical-only behavior should pass weight.Vector=0.
func NewHybridRetriever(embedder Embedder, weight HybridWeight) *HybridRetriever {
	return &HybridRetriever{embedder: embedder, weight: weight}
}

func (h *HybridRetriever) Name() string { return "hybrid" }

// Build indexes docs: tokenizes each for the lexical posting list and
// embeds each for the vector side.
func (h *HybridRetriever) Build(docs []Document) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.docs = docs
	h.vectors = make([][]float64, len(docs))
	h.postings = map[string][]int{}

	for i, d := range docs {
		h.vectors[i] = h.embedder.Embed(d.Text)
		for _, tok := range tokenize(d.Text) {
			h.postings[tok] = appendUnique(h.postings[tok], i)
		}
	}
	return nil
}

// Search returns up to limit hits sorted by ascending blended distance.
func (h *HybridRetriever) Search(query string, limit int) ([]Hit, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.docs) == 0 {
		return nil, nil
	}

	lexDist := h.lexicalDistances(query)
	vecDist := h.vectorDistances(query)

	lexNorm := minMaxNormalize(lexDist)
	vecNorm := minMaxNormalize(vecDist)

	type scored struct {
		idx  int
		dist float64
	}
	scores := make([]scored, len(h.docs))
	for i := range h.docs {
		scores[i] = scored{idx: i, dist: h.weight.Lexical*lexNorm[i] + h.weight.Vector*vecNorm[i]}
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].dist < scores[j].dist })

	if limit > len(scores) {
		limit = len(scores)
	}
	out := make([]Hit, 0, limit)
	for _, s := range scores[:limit] {
		d := h.docs[s.idx]
		out = append(out, Hit{Policy: d.Policy, Section: d.Section, Question: d.Question, Distance: s.dist})
	}
	return out, nil
}

// lexicalDistances scores every doc by inverse token overlap (BM05-lite:
// fewer shared tokens with query -> larger distance). Pure token-overlap
// rather than full BM25 term weighting, since the corpus (a policy set)
// is small enough that idf weighting adds little and the spec only
// requires "a lexical index", not a specific scoring formula.
func (h *HybridRetriever) lexicalDistances(query string) []float64 {
	qTokens := tokenize(query)
	dist := make([]float64, len(h.docs))
	for i := range dist {
		dist[i] = 1.0 // maximal distance by default
	}
	if len(qTokens) == 0 {
		return dist
	}

	matchCount := make([]int, len(h.docs))
	for _, tok := range qTokens {
		for _, idx := range h.postings[tok] {
			matchCount[idx]++
		}
	}
	for i, m := range matchCount {
		overlap := float64(m) / float64(len(qTokens))
		dist[i] = 1.0 - overlap
	}
	return dist
}

func (h *HybridRetriever) vectorDistances(query string) []float64 {
	qVec := h.embedder.Embed(query)
	dist := make([]float64, len(h.vectors))
	for i, v := range h.vectors {
		dist[i] = cosineDistance(qVec, v)
	}
	return dist
}

func cosineDistance(a, b []float64) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 1.0
	}
	cos := dot / (math.Sqrt(na) * math.Sqrt(nb))
	return 1.0 - cos
}

func minMaxNormalize(vals []float64) []float64 {
	if len(vals) == 0 {
		return vals
	}
	min, max := vals[0], vals[0]
	for _, v := range vals {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	out := make([]float64, len(vals))
	if max == min {
		for i := range out {
			out[i] = 0
		}
		return out
	}
	for i, v := range vals {
		out[i] = (v - min) / (max - min)
	}
	return out
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	})
	return fields
}

func appendUnique(s []int, v int) []int {
	for _, x := range s {
		if x == v {
			return s
		}
	}
	return append(s, v)
}
