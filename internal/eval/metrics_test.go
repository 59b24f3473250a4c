package eval

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrecisionAt(t *testing.T) {
	tests := []struct {
		name   string
		ranked []string
		ideal  []string
		k      int
		want   float64
	}{
		{"hit at rank one", []string{"a", "b"}, []string{"a"}, 1, 1},
		{"hit below cutoff", []string{"x", "a"}, []string{"a"}, 1, 0},
		{"hit within three", []string{"x", "y", "a"}, []string{"a"}, 3, 1},
		{"no results", nil, []string{"a"}, 3, 0},
		{"empty ideal", []string{"a"}, nil, 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PrecisionAt(tt.ranked, tt.ideal, tt.k))
		})
	}
}

func TestNDCGAt_Extremes(t *testing.T) {
	// Given: ideal ids ranked exactly in place
	assert.InDelta(t, 1.0, NDCGAt([]string{"a", "b", "c"}, []string{"a", "b"}, 10), 1e-9)
	assert.InDelta(t, 1.0, NDCGAt([]string{"b", "a"}, []string{"a", "b"}, 10), 1e-9, "order within the ideal set does not matter")

	// Then: no relevant id in the top k scores zero
	assert.Equal(t, 0.0, NDCGAt([]string{"x", "y"}, []string{"a"}, 10))
	assert.Equal(t, 0.0, NDCGAt(nil, []string{"a"}, 10))
	assert.Equal(t, 0.0, NDCGAt([]string{"a"}, nil, 10))
	assert.Equal(t, 0.0, NDCGAt([]string{"a"}, []string{"a"}, 0))
}

func TestNDCGAt_Partial(t *testing.T) {
	// Given: the only relevant id at rank two (zero-based 1)
	got := NDCGAt([]string{"x", "a"}, []string{"a"}, 10)

	// Then: gain 1 discounted by log2(3)
	assert.InDelta(t, 0.6309, got, 1e-4)
}

func TestNDCGAt_DuplicatesCountOnce(t *testing.T) {
	got := NDCGAt([]string{"a", "a"}, []string{"a", "b"}, 10)

	// dcg = 1, idcg = 1 + 1/log2(3)
	assert.InDelta(t, 1/(1+0.6309), got, 1e-3)
}
