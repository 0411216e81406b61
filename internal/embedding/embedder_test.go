package embedding

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func TestHashEmbedder(t *testing.T) {
	h := NewHashEmbedder()

	t.Run("deterministic unit vector", func(t *testing.T) {
		a := h.Vector("finished the quarterly report")
		b := h.Vector("finished the quarterly report")
		require.Len(t, a, FallbackDimension)
		assert.Equal(t, a, b)
		assert.InDelta(t, 1.0, norm(a), 1e-5)
	})

	t.Run("different text differs", func(t *testing.T) {
		assert.NotEqual(t, h.Vector("morning run"), h.Vector("evening swim"))
	})

	t.Run("empty text is zero vector", func(t *testing.T) {
		v := h.Vector("")
		require.Len(t, v, FallbackDimension)
		assert.Zero(t, norm(v))
	})
}

func TestL2Normalize(t *testing.T) {
	tests := []struct {
		name    string
		in      []float32
		wantLen int
		wantNrm float64
	}{
		{name: "scales to unit", in: []float32{3, 4}, wantLen: 2, wantNrm: 1},
		{name: "zero stays zero", in: []float32{0, 0, 0}, wantLen: 3, wantNrm: 0},
		{name: "empty gets fallback dimension", in: nil, wantLen: FallbackDimension, wantNrm: 0},
		{name: "non-finite is zeroed", in: []float32{float32(math.Inf(1)), 1}, wantLen: 2, wantNrm: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := L2Normalize(tt.in)
			assert.Len(t, got, tt.wantLen)
			assert.InDelta(t, tt.wantNrm, norm(got), 1e-6)
		})
	}
}

func TestFallback(t *testing.T) {
	ctx := context.Background()
	failing := EmbedderFunc(func(context.Context, string) ([]float32, error) {
		return nil, errors.New("connection refused")
	})

	t.Run("primary error uses hash embedding", func(t *testing.T) {
		f := NewFallback(failing, 0, nil)
		got, err := f.Embed(ctx, "call mom")
		require.NoError(t, err)
		assert.Equal(t, NewHashEmbedder().Vector("call mom"), got)
	})

	t.Run("primary result is normalised", func(t *testing.T) {
		f := NewFallback(EmbedderFunc(func(context.Context, string) ([]float32, error) {
			return []float32{0, 2}, nil
		}), 2, nil)
		got, err := f.Embed(ctx, "x")
		require.NoError(t, err)
		assert.Equal(t, []float32{0, 1}, got)
	})

	t.Run("nil primary", func(t *testing.T) {
		got, err := NewFallback(nil, 0, nil).Embed(ctx, "")
		require.NoError(t, err)
		assert.Len(t, got, FallbackDimension)
	})

	t.Run("degraded vectors use the configured dimension", func(t *testing.T) {
		f := NewFallback(failing, 768, nil)
		assert.Equal(t, 768, f.Dimension())

		got, err := f.Embed(ctx, "call mom")
		require.NoError(t, err)
		assert.Len(t, got, 768)
		assert.InDelta(t, 1.0, norm(got), 1e-5)

		empty, err := f.Embed(ctx, "")
		require.NoError(t, err)
		assert.Len(t, empty, 768)
	})
}
