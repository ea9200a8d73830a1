package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWindowFor(t *testing.T) {
	cases := []struct {
		position int
		first    int
		last     int
		index    int
	}{
		{position: 1, first: 1, last: 25, index: 0},
		{position: 25, first: 1, last: 25, index: 0},
		{position: 26, first: 26, last: 50, index: 1},
		{position: 47, first: 26, last: 50, index: 1},
		{position: 51, first: 51, last: 75, index: 2},
		{position: 0, first: 1, last: 25, index: 0},
	}
	for _, tc := range cases {
		w := WindowFor(tc.position, 25)
		assert.Equal(t, tc.index, w.Index, "position %d", tc.position)
		assert.Equal(t, tc.first, w.First(), "position %d", tc.position)
		assert.Equal(t, tc.last, w.Last(), "position %d", tc.position)
	}
}

func TestWindowNavigation(t *testing.T) {
	w := WindowFor(47, 25)

	prev, ok := w.Prev()
	assert.True(t, ok)
	assert.Equal(t, 0, prev.Offset)

	_, ok = prev.Prev()
	assert.False(t, ok)

	assert.Equal(t, 50, w.Next().Offset)
}

func TestPaginationNormalize(t *testing.T) {
	p := Pagination{Page: 0, PageSize: 1000}.Normalize()
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, MaxPageSize, p.PageSize)
	assert.Equal(t, 20, Pagination{Page: 3, PageSize: 10}.Offset())

	info := BuildPageInfo(Pagination{Page: 2, PageSize: 10}, 25)
	assert.True(t, info.HasMore)
	info = BuildPageInfo(Pagination{Page: 3, PageSize: 10}, 25)
	assert.False(t, info.HasMore)
}
