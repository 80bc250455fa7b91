package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BartekS5/bigsitemap/internal/sitemap"
)

type fakeLister map[string][]string

func (f fakeLister) ListFor(source string) ([]sitemap.Artifact, error) {
	if source == "broken" {
		return nil, errors.New("permission denied")
	}
	var out []sitemap.Artifact
	for _, name := range f[source] {
		suffix, ok := sitemap.SuffixFor(name, source)
		if !ok {
			continue
		}
		out = append(out, sitemap.Artifact{Path: name, Source: source, Suffix: suffix})
	}
	return out, nil
}

func TestLastWatermark(t *testing.T) {
	lister := fakeLister{
		"widgets":  {"sitemap_widgets_205.xml", "sitemap_widgets_417.xml", "sitemap_widgets_99.xml.gz"},
		"articles": {"sitemap_articles_5f2b.xml", "sitemap_articles.xml"},
		"mixed":    {"sitemap_mixed_abc.xml", "sitemap_mixed_12.xml"},
		"negative": {"sitemap_negative_-3.xml"},
	}
	tracker := NewResumeTracker(lister)

	tests := []struct {
		source string
		want   interface{}
		ok     bool
	}{
		{"widgets", int64(417), true},
		{"articles", nil, false},
		{"mixed", int64(12), true},
		{"negative", int64(-3), true},
		{"missing", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			key, ok, err := tracker.LastWatermark(tt.source)
			require.NoError(t, err)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, key)
		})
	}

	_, _, err := tracker.LastWatermark("broken")
	assert.Error(t, err)
}

func TestLastWatermarkFromDirectory(t *testing.T) {
	dir := t.TempDir()
	b, err := sitemap.NewBuilder(sitemap.BuilderOptions{Dir: dir, Source: "widgets", Keyed: true})
	require.NoError(t, err)
	for _, k := range []int64{200, 417} {
		_, err := b.Open()
		require.NoError(t, err)
		require.NoError(t, b.Add(sitemap.NewEntry("https://example.com/w", fixedNow, sitemap.Weekly, nil), k))
	}
	_, err = b.Close()
	require.NoError(t, err)

	key, ok, err := NewResumeTracker(sitemap.DirLister{Dir: dir}).LastWatermark("widgets")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(417), key)
}
