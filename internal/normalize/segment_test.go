package normalize_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ragrace/internal/normalize"
)

func TestSegment_IntCoercion(t *testing.T) {
	seg := normalize.Segment{
		"a": "7",
		"b": 3.0,
		"c": "not a number",
		"d": nil,
	}

	n, ok := seg.Int("d", "c", "a")
	assert.True(t, ok)
	assert.Equal(t, 7, n)

	n, ok = seg.Int("b")
	assert.True(t, ok)
	assert.Equal(t, 3, n)

	_, ok = seg.Int("missing")
	assert.False(t, ok)
}

func TestSegment_StringSkipsEmpty(t *testing.T) {
	seg := normalize.Segment{"enriched": "", "embed": "e", "content": "c"}
	assert.Equal(t, "e", seg.String("enriched", "embed", "content"))
	assert.Equal(t, "", seg.String("nope"))
}

func TestSegment_NilSafeNavigation(t *testing.T) {
	var seg normalize.Segment
	_, ok := seg.Object("metadata").Object("page").Int("number")
	assert.False(t, ok)
	assert.Nil(t, seg.List("blocks"))
}

func TestAsSegments_DropsNonObjects(t *testing.T) {
	segs := normalize.AsSegments([]any{"x", map[string]any{"k": 1}, nil})
	assert.Len(t, segs, 1)
}
