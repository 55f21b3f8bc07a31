package recall

import (
	"hash/fnv"
	"math"
	"regexp"
	"strings"
)

// Embedder turns text into a similarity vector. Embeddings from different
// model IDs are never compared against each other.
type Embedder interface {
	ModelID() string
	Embed(text string) []float32
}

const (
	chargramModel = "aiko-chargram-384-v1"
	hashModel     = "aiko-hash-256-v1"
)

var tokenPattern = regexp.MustCompile(`[A-Za-z0-9_\-]+`)

// NewEmbedder resolves an embedder by model name, defaulting to chargram.
func NewEmbedder(name string) Embedder {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case hashModel, "hash", "hash-256":
		return &hashEmbedder{dims: 256, modelID: hashModel}
	default:
		return &chargramEmbedder{dims: 384, modelID: chargramModel}
	}
}

type chargramEmbedder struct {
	dims    int
	modelID string
}

func (e *chargramEmbedder) ModelID() string { return e.modelID }

func (e *chargramEmbedder) Embed(text string) []float32 {
	vec := make([]float32, e.dims)
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return vec
	}
	window := "#" + normalized + "#"
	for i := 0; i+3 <= len(window); i++ {
		gram := window[i : i+3]
		h := fnv.New64a()
		_, _ = h.Write([]byte(gram))
		sum := h.Sum64()
		idx := int(sum % uint64(e.dims))
		vec[idx] += 1
	}
	for _, token := range tokenize(normalized) {
		h := fnv.New64a()
		_, _ = h.Write([]byte("tok:" + token))
		sum := h.Sum64()
		idx := int(sum % uint64(e.dims))
		vec[idx] += 1.25
	}
	normalizeVector(vec)
	return vec
}

type hashEmbedder struct {
	dims    int
	modelID string
}

func (e *hashEmbedder) ModelID() string { return e.modelID }

func (e *hashEmbedder) Embed(text string) []float32 {
	vec := make([]float32, e.dims)
	for _, token := range tokenize(text) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(token))
		sum := h.Sum64()
		idx := int(sum % uint64(e.dims))
		sign := float32(1)
		if sum&1 == 1 {
			sign = -1
		}
		weight := float32(1 + (len(token) / 8))
		vec[idx] += sign * weight
	}
	normalizeVector(vec)
	return vec
}

func tokenize(text string) []string {
	text = strings.ToLower(text)
	matches := tokenPattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return []string{text}
	}
	return matches
}

func normalizeVector(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v * v)
	}
	n := math.Sqrt(sum)
	if n == 0 {
		return
	}
	inv := float32(1.0 / n)
	for i := range vec {
		vec[i] *= inv
	}
}

// cosineSimilarity assumes both vectors are already normalized.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot float64
	for i := 0; i < n; i++ {
		dot += float64(a[i] * b[i])
	}
	return dot
}
