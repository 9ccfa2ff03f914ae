package pinterest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeQuery(t *testing.T) {
	assert.Equal(t, "gato fofo", NormalizeQuery("  Gato FOFO \n"))
	assert.Equal(t, "", NormalizeQuery("   "))
}

func TestNewCacheEntry_CursorStartsAtSecond(t *testing.T) {
	now := time.Now()
	single := NewCacheEntry("q", []ResultRecord{{Location: "a"}}, now)
	assert.Equal(t, 0, single.Cursor)

	three := NewCacheEntry("q", []ResultRecord{{Location: "a"}, {Location: "b"}, {Location: "c"}}, now)
	assert.Equal(t, 1, three.Cursor)
	assert.Equal(t, "b", three.Current().Location)
}

func TestCacheEntry_AdvanceWraps(t *testing.T) {
	e := CacheEntry{Results: []ResultRecord{{Location: "a"}, {Location: "b"}}, Cursor: 1}
	e = e.Advance()
	assert.Equal(t, 0, e.Cursor)
	e = e.Advance()
	assert.Equal(t, 1, e.Cursor)
}

func TestCacheEntry_Expired(t *testing.T) {
	now := time.Now()
	e := CacheEntry{CreatedAt: now.Add(-29 * time.Minute)}
	assert.False(t, e.Expired(now, 30*time.Minute))

	e.CreatedAt = now.Add(-30 * time.Minute)
	assert.True(t, e.Expired(now, 30*time.Minute))
}

func TestNamespace_Valid(t *testing.T) {
	assert.True(t, NamespaceImage.Valid())
	assert.True(t, NamespaceGif.Valid())
	assert.False(t, Namespace("video").Valid())
}
