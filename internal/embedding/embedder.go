package embedding

import (
	"context"
	"log/slog"
	"math"

	"github.com/iammorganparry/clive/apps/understanding/internal/models"
)

// FallbackDimension is the size of vectors produced by HashEmbedder.
const FallbackDimension = 384

// Embedder maps text to a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EmbedderFunc adapts a plain function to Embedder.
type EmbedderFunc func(ctx context.Context, text string) ([]float32, error)

func (f EmbedderFunc) Embed(ctx context.Context, text string) ([]float32, error) {
	return f(ctx, text)
}

// L2Normalize scales v to unit length. A zero or non-finite norm yields a
// zero vector of the same length, or of FallbackDimension when v is empty.
func L2Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if math.IsNaN(norm) || math.IsInf(norm, 0) || norm <= 0 {
		if len(v) == 0 {
			return make([]float32, FallbackDimension)
		}
		return make([]float32, len(v))
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// HashEmbedder is a deterministic pseudo-embedding over the UTF-8 bytes of
// the text. It needs no network and is stable across processes.
type HashEmbedder struct {
	Dim int
}

func NewHashEmbedder() HashEmbedder {
	return HashEmbedder{Dim: FallbackDimension}
}

func (h HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	return h.Vector(text), nil
}

// Vector returns the normalised hash embedding of text.
func (h HashEmbedder) Vector(text string) []float32 {
	dim := h.Dim
	if dim <= 0 {
		dim = FallbackDimension
	}
	out := make([]float32, dim)
	if text == "" {
		return out
	}

	const prime uint32 = 16777619
	hash := uint32(2166136261)
	for i, b := range []byte(text) {
		hash = (hash ^ uint32(b)) * prime
		idx := int((uint64(hash) + uint64(i)*31) % uint64(dim))
		out[idx] += float32(float64(b)/255.0*2 - 1)
	}
	return L2Normalize(out)
}

// Fallback embeds with a primary embedder and degrades to the hash
// embedding when the primary fails or returns nothing.
type Fallback struct {
	primary Embedder
	hash    HashEmbedder
	logger  *slog.Logger
}

// NewFallback wraps primary. The hash embedding uses dim so degraded
// vectors match the primary's size; dim <= 0 means FallbackDimension. A
// nil primary always uses the hash embedding.
func NewFallback(primary Embedder, dim int, logger *slog.Logger) *Fallback {
	if logger == nil {
		logger = slog.Default()
	}
	if dim <= 0 {
		dim = FallbackDimension
	}
	return &Fallback{primary: primary, hash: HashEmbedder{Dim: dim}, logger: logger}
}

// Dimension is the length of every vector Embed returns on degradation.
func (f *Fallback) Dimension() int { return f.hash.Dim }

// Embed never fails; degradation is logged.
func (f *Fallback) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return make([]float32, f.hash.Dim), nil
	}
	if f.primary != nil {
		vec, err := f.primary.Embed(ctx, text)
		if err == nil && len(vec) > 0 {
			return L2Normalize(vec), nil
		}
		if err != nil {
			f.logger.Warn("embedding degraded to hash fallback",
				"error", models.Degraded(models.DependencyEmbedding, err))
		}
	}
	return f.hash.Vector(text), nil
}
