package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompilePredicate_MatchesExpression(t *testing.T) {
	pred, err := CompilePredicate[string](`key.startsWith("workflow:42")`)
	require.NoError(t, err)

	assert.True(t, pred("workflow:42:step:a", ""))
	assert.False(t, pred("workflow:7:step:a", ""))
}

func TestCompilePredicate_InvalidExpressionErrors(t *testing.T) {
	_, err := CompilePredicate[string](`key.startsWith(`)
	assert.Error(t, err)
}

func TestCompilePredicate_UsableWithCacheInvalidateMatching(t *testing.T) {
	c := New[string](10, 0, LRU)
	c.Set("workflow:42:step:a", "x")
	c.Set("workflow:42:step:b", "y")
	c.Set("workflow:7:step:a", "z")

	pred, err := CompilePredicate[string](`key.startsWith("workflow:42")`)
	require.NoError(t, err)

	removed := c.InvalidateMatching(pred)
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, c.Size())
}
