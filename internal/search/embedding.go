package search

import (
	"hash/fnv"
	"math"
)

// HashEmbedder is the deterministic bag-of-hashed-n-grams Embedder MACF
// ships in-process (spec §4.H: the real embedding model is explicitly
// out of scope and pluggable). It needs no model weights or cold-start
// load, so the Search Service can run standalone; a real model process
// can implement the same Embedder interface and swap in without touching
// HybridRetriever.
type HashEmbedder struct {
	dim int
	n   int // n-gram size
}

// NewHashEmbedder returns a HashEmbedder producing dim-length vectors
// from character n-grams of size n.
func NewHashEmbedder(dim, n int) *HashEmbedder {
	if dim <= 0 {
		dim = 128
	}
	if n <= 0 {
		n = 3
	}
	return &HashEmbedder{dim: dim, n: n}
}

func (e *HashEmbedder) Dim() int { return e.dim }

// Embed hashes every character n-gram of text into a bucket of the output
// vector, accumulating counts, then L2-normalizes. Two strings sharing
// many n-grams land close together under cosine distance.
func (e *HashEmbedder) Embed(text string) []float64 {
	vec := make([]float64, e.dim)
	runes := []rune(text)
	if len(runes) < e.n {
		if len(runes) == 0 {
			return vec
		}
		e.accumulate(vec, string(runes))
	} else {
		for i := 0; i+e.n <= len(runes); i++ {
			gram := string(runes[i : i+e.n])
			e.accumulate(vec, gram)
		}
	}
	normalize(vec)
	return vec
}

func (e *HashEmbedder) accumulate(vec []float64, gram string) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(gram))
	bucket := int(h.Sum32()) % e.dim
	if bucket < 0 {
		bucket += e.dim
	}
	vec[bucket]++
}

func normalize(vec []float64) {
	var sumSq float64
	for _, v := range vec {
		sumSq += v * v
	}
	if sumSq == 0 {
		return
	}
	norm := math.Sqrt(sumSq)
	for i := range vec {
		vec[i] /= norm
	}
}
