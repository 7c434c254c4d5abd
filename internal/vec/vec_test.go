package vec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunkOf_FloorsNegativeCoordinates(t *testing.T) {
	tests := []struct {
		x, z float64
		want Vec2
	}{
		{0, 0, Vec2{0, 0}},
		{63.9, 0, Vec2{0, 0}},
		{64, 0, Vec2{1, 0}},
		{-0.5, 0, Vec2{-1, 0}},
		{-64, -64.01, Vec2{-1, -2}},
		{320, 10, Vec2{5, 0}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ChunkOf(tt.x, tt.z, 64), "ChunkOf(%v, %v)", tt.x, tt.z)
	}
}

func TestVec2_Distances(t *testing.T) {
	a := Vec2{X: 1, Y: -2}
	b := Vec2{X: 4, Y: 2}

	assert.Equal(t, 4, a.Chebyshev(b))
	assert.Equal(t, 7, a.Manhattan(b))
	assert.InDelta(t, 5.0, a.DistanceTo(b), 1e-12)
	assert.Equal(t, Vec2Float{X: 64, Y: -128}, a.Origin(64))
}

func TestVec2_Less(t *testing.T) {
	assert.True(t, Vec2{0, 5}.Less(Vec2{1, 0}))
	assert.True(t, Vec2{1, 0}.Less(Vec2{1, 1}))
	assert.False(t, Vec2{1, 1}.Less(Vec2{1, 1}))
}

func TestVec2_Add(t *testing.T) {
	assert.Equal(t, Vec2{X: -1, Y: 7}, Vec2{X: 2, Y: 3}.Add(Vec2{X: -3, Y: 4}))
	assert.Equal(t, Vec2{X: 5, Y: 5}, Vec2{X: 5, Y: 5}.Add(Vec2{}))
}
