package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBroadcastChildrenCoversEveryRankExactlyOnce(t *testing.T) {
	const size = 8
	const root = 3

	seen := map[int]int{root: 1} // the root "receives" its own broadcast trivially
	var walk func(rank int)
	walk = func(rank int) {
		for _, c := range BroadcastChildren(rank, root, size) {
			seen[c]++
			walk(c)
		}
	}
	walk(root)

	for r := 0; r < size; r++ {
		assert.Equal(t, 1, seen[r], "rank %d should be reached exactly once", r)
	}
}

func TestQuiescenceTreeIsAlwaysRootedAtZero(t *testing.T) {
	assert.Equal(t, -1, QuiescenceParent(0))
	assert.Equal(t, 0, QuiescenceParent(1))
	assert.Equal(t, 0, QuiescenceParent(2))
	assert.Equal(t, 1, QuiescenceParent(3))
	assert.Equal(t, 1, QuiescenceParent(4))

	assert.ElementsMatch(t, []int{1, 2}, QuiescenceChildren(0, 8))
	assert.ElementsMatch(t, []int{3, 4}, QuiescenceChildren(1, 8))
	assert.Empty(t, QuiescenceChildren(7, 8))
}
