package engine

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BartekS5/bigsitemap/internal/sitemap"
	"github.com/BartekS5/bigsitemap/internal/source"
	"github.com/BartekS5/bigsitemap/pkg/models"
)

func newGenerator(t *testing.T, dir string, partial bool) *Generator {
	t.Helper()
	g, err := New(Options{
		Dir:           dir,
		BaseURL:       "https://example.com",
		SitemapURL:    "https://example.com/sitemaps",
		BatchSize:     1000,
		MaxPerFile:    2000,
		PartialUpdate: partial,
		Now:           func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	return g
}

func widgetOptions() SourceOptions {
	return SourceOptions{Entry: EntryOptions{Path: "widgets"}}
}

func dirNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func locations(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var set sitemap.URLSet
	require.NoError(t, xml.Unmarshal(data, &set))
	var out []string
	for _, e := range set.Entries {
		out = append(out, e.Location)
	}
	return out
}

func readIndex(t *testing.T, dir string) []string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, "sitemap_index.xml"))
	require.NoError(t, err)
	var idx sitemap.Index
	require.NoError(t, xml.Unmarshal(data, &idx))
	var out []string
	for _, r := range idx.Refs {
		out = append(out, r.Location)
	}
	return out
}

func TestGenerateWritesFilesAndIndex(t *testing.T) {
	dir := t.TempDir()
	g := newGenerator(t, dir, false)
	src := source.NewMemorySource("widgets", "id", seqRecords(1, 2500)...)
	_, err := g.Add(src, widgetOptions())
	require.NoError(t, err)

	res, err := g.Generate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"sitemap_index.xml", "sitemap_widgets_2000.xml", "sitemap_widgets_2500.xml"}, dirNames(t, dir))
	require.Len(t, res.Sources, 1)
	assert.Equal(t, int64(2500), res.Sources[0].URLs)
	assert.Equal(t, 2, res.Sources[0].Plan.NumFiles())
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, "https://example.com/sitemaps/sitemap_index.xml", res.IndexURL)

	first := locations(t, filepath.Join(dir, "sitemap_widgets_2000.xml"))
	assert.Len(t, first, 2000)
	assert.Equal(t, "https://example.com/widgets/1", first[0])
	assert.Len(t, locations(t, filepath.Join(dir, "sitemap_widgets_2500.xml")), 500)

	assert.Equal(t, []string{
		"https://example.com/sitemaps/sitemap_widgets_2000.xml",
		"https://example.com/sitemaps/sitemap_widgets_2500.xml",
	}, readIndex(t, dir))
}

func TestGenerateEmptySourceWritesEmptyFile(t *testing.T) {
	dir := t.TempDir()
	g := newGenerator(t, dir, false)
	_, err := g.Add(source.NewMemorySource("widgets", "id"), widgetOptions())
	require.NoError(t, err)

	_, err = g.Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"sitemap_index.xml", "sitemap_widgets.xml"}, dirNames(t, dir))
	assert.Empty(t, locations(t, filepath.Join(dir, "sitemap_widgets.xml")))
}

func TestGenerateResumesFromLastFile(t *testing.T) {
	dir := t.TempDir()

	// previous run ended with a file holding keys 400..417
	b, err := sitemap.NewBuilder(sitemap.BuilderOptions{Dir: dir, Source: "widgets", Keyed: true})
	require.NoError(t, err)
	for k := int64(400); k <= 417; k++ {
		require.NoError(t, b.Add(sitemap.NewEntry("https://example.com/widgets/old", fixedNow, sitemap.Weekly, nil), k))
	}
	_, err = b.Close()
	require.NoError(t, err)

	src := source.NewMemorySource("widgets", "id", seqRecords(400, 419)...)
	var firstFilter source.Filter
	src.FetchHook = func(f source.Filter, p source.Page) error {
		if src.Fetches == 1 {
			firstFilter = f
		}
		return nil
	}

	g := newGenerator(t, dir, true)
	_, err = g.Add(src, widgetOptions())
	require.NoError(t, err)
	res, err := g.Generate(context.Background())
	require.NoError(t, err)

	sr := res.Sources[0]
	assert.Equal(t, int64(417), sr.Watermark)
	assert.Equal(t, int64(3), sr.Total)
	assert.Equal(t, []source.Condition{{Field: "id", Op: source.OpGte, Value: int64(417)}}, firstFilter.Conditions)

	assert.Equal(t, []string{
		"https://example.com/widgets/417",
		"https://example.com/widgets/418",
		"https://example.com/widgets/419",
	}, locations(t, filepath.Join(dir, "sitemap_widgets_419.xml")))
	assert.Len(t, locations(t, filepath.Join(dir, "sitemap_widgets_417.xml")), 18, "the boundary file keeps its records")
	assert.Equal(t, []string{"sitemap_index.xml", "sitemap_widgets_417.xml", "sitemap_widgets_419.xml"}, dirNames(t, dir))

	// nothing new: the boundary file is left as it is
	before, err := os.ReadFile(filepath.Join(dir, "sitemap_widgets_419.xml"))
	require.NoError(t, err)

	g = newGenerator(t, dir, true)
	_, err = g.Add(src, widgetOptions())
	require.NoError(t, err)
	res, err = g.Generate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(419), res.Sources[0].Watermark)
	assert.Equal(t, int64(1), res.Sources[0].URLs)
	assert.Empty(t, res.Sources[0].Files)
	after, err := os.ReadFile(filepath.Join(dir, "sitemap_widgets_419.xml"))
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, []string{"sitemap_index.xml", "sitemap_widgets_417.xml", "sitemap_widgets_419.xml"}, dirNames(t, dir))
}

func TestGenerateResumeWithNothingLeftKeepsFiles(t *testing.T) {
	dir := t.TempDir()
	run := func(src *source.MemorySource) *SourceResult {
		g := newGenerator(t, dir, true)
		_, err := g.Add(src, widgetOptions())
		require.NoError(t, err)
		res, err := g.Generate(context.Background())
		require.NoError(t, err)
		return &res.Sources[0]
	}

	run(source.NewMemorySource("widgets", "id", seqRecords(1, 5)...))
	require.Equal(t, []string{"sitemap_index.xml", "sitemap_widgets_5.xml"}, dirNames(t, dir))

	// records 4 and 5 were deleted and nothing newer exists
	sr := run(source.NewMemorySource("widgets", "id", seqRecords(1, 3)...))
	assert.Equal(t, int64(5), sr.Watermark)
	assert.Equal(t, int64(0), sr.Total)
	assert.Empty(t, sr.Files)
	assert.Equal(t, []string{"sitemap_index.xml", "sitemap_widgets_5.xml"}, dirNames(t, dir))
	assert.Equal(t, []string{"https://example.com/sitemaps/sitemap_widgets_5.xml"}, readIndex(t, dir))
}

func TestGeneratePartialWithNonIntegerKeysRegeneratesFully(t *testing.T) {
	start := time.Date(2024, 1, 1, 5, 0, 0, 0, time.UTC)
	timed := func(from, to int) []source.Record {
		var out []source.Record
		for i := from; i <= to; i++ {
			out = append(out, source.Record{Key: start.Add(time.Duration(i) * time.Hour), Param: fmt.Sprintf("event-%d", i)})
		}
		return out
	}
	padded := func(from, to int) []source.Record {
		var out []source.Record
		for i := from; i <= to; i++ {
			out = append(out, source.Record{Key: fmt.Sprintf("%05d", i), Param: fmt.Sprintf("item-%d", i)})
		}
		return out
	}

	tests := []struct {
		name      string
		src       *source.MemorySource
		more      []source.Record
		firstFile string
		lastFile  string
	}{
		{
			name:      "time keys",
			src:       source.NewMemorySource("events", "ts", timed(0, 2)...),
			more:      timed(3, 4),
			firstFile: "sitemap_events_20240101T070000Z.xml",
			lastFile:  "sitemap_events_20240101T090000Z.xml",
		},
		{
			name:      "numeric string keys",
			src:       source.NewMemorySource("items", "code", padded(415, 417)...),
			more:      padded(418, 419),
			firstFile: "sitemap_items_s00417.xml",
			lastFile:  "sitemap_items_s00419.xml",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			run := func() SourceResult {
				g := newGenerator(t, dir, true)
				_, err := g.Add(tt.src, widgetOptions())
				require.NoError(t, err)
				res, err := g.Generate(context.Background())
				require.NoError(t, err)
				return res.Sources[0]
			}

			sr := run()
			require.Len(t, sr.Files, 1)
			assert.Equal(t, tt.firstFile, sr.Files[0].FileName())

			tt.src.Insert(tt.more...)
			sr = run()
			assert.Nil(t, sr.Watermark, "only integer suffixes are resume points")
			assert.Equal(t, int64(5), sr.URLs)
			require.Len(t, sr.Files, 1)
			assert.Equal(t, tt.lastFile, sr.Files[0].FileName())
			assert.Equal(t, []string{tt.firstFile}, sr.Pruned)
			assert.Equal(t, []string{"sitemap_index.xml", tt.lastFile}, dirNames(t, dir))
		})
	}
}

func TestGenerateSkipsWhenLocked(t *testing.T) {
	dir := t.TempDir()
	lockPath := filepath.Join(dir, LockFileName)
	require.NoError(t, os.WriteFile(lockPath, []byte("other-run 1\n"), 0644))

	g := newGenerator(t, dir, false)
	src := source.NewMemorySource("widgets", "id", seqRecords(1, 10)...)
	_, err := g.Add(src, widgetOptions())
	require.NoError(t, err)

	res, err := g.Generate(context.Background())
	assert.ErrorIs(t, err, models.ErrLockContention)
	assert.Nil(t, res)
	assert.Equal(t, []string{LockFileName}, dirNames(t, dir))
	assert.Zero(t, src.Fetches)
}

func TestGenerateAdapterFailureKeepsClosedFiles(t *testing.T) {
	dir := t.TempDir()
	g := newGenerator(t, dir, false)
	src := source.NewMemorySource("widgets", "id", seqRecords(1, 2500)...)
	boom := errors.New("server went away")
	src.FetchHook = func(source.Filter, source.Page) error {
		if src.Fetches == 3 {
			return boom
		}
		return nil
	}
	_, err := g.Add(src, widgetOptions())
	require.NoError(t, err)

	res, err := g.Generate(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrAdapter)
	assert.ErrorIs(t, err, boom)

	var batchErr *models.BatchError
	require.ErrorAs(t, err, &batchErr)
	assert.Equal(t, 2, batchErr.File)
	assert.Equal(t, int64(3), batchErr.Batch)

	assert.Equal(t, []string{"sitemap_widgets_2000.xml"}, dirNames(t, dir), "no temp file, no index, lock released")
	require.Len(t, res.Sources[0].Files, 1)
}

func TestGenerateFullRunPrunesStaleFiles(t *testing.T) {
	dir := t.TempDir()
	touch := func(name string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("<urlset/>"), 0644))
	}
	touch("sitemap_widgets_9999.xml")
	touch("sitemap_widgets.xml")
	touch("sitemap_widgets-archive_3.xml")

	g := newGenerator(t, dir, false)
	_, err := g.Add(source.NewMemorySource("widgets", "id", seqRecords(1, 10)...), widgetOptions())
	require.NoError(t, err)

	res, err := g.Generate(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"sitemap_widgets_9999.xml", "sitemap_widgets.xml"}, res.Sources[0].Pruned)
	assert.Equal(t, []string{"sitemap_index.xml", "sitemap_widgets-archive_3.xml", "sitemap_widgets_10.xml"}, dirNames(t, dir))
}

func TestGenerateUnkeyedSourceAndStaticPages(t *testing.T) {
	dir := t.TempDir()
	g := newGenerator(t, dir, false)

	records := []source.Record{{Param: "a"}, {Param: "b"}, {Param: "c"}}
	_, err := g.Add(source.NewMemorySource("pages", "", records...), SourceOptions{Entry: EntryOptions{Path: "p"}})
	require.NoError(t, err)
	require.NoError(t, g.AddStatic(models.StaticPage{URL: "/"}, models.StaticPage{URL: "/about", ChangeFrequency: "monthly"}))

	res, err := g.Generate(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res.Static)
	assert.Equal(t, int64(2), res.Static.URLs)

	assert.Equal(t, []string{"sitemap_index.xml", "sitemap_pages_1.xml", "sitemap_static_1.xml"}, dirNames(t, dir))
	assert.Equal(t, []string{"https://example.com/p/a", "https://example.com/p/b", "https://example.com/p/c"},
		locations(t, filepath.Join(dir, "sitemap_pages_1.xml")))
	assert.Equal(t, []string{"https://example.com", "https://example.com/about"},
		locations(t, filepath.Join(dir, "sitemap_static_1.xml")))
	assert.Len(t, readIndex(t, dir), 2)
}

func TestGenerateDryRunWritesNothing(t *testing.T) {
	dir := t.TempDir()
	g, err := New(Options{Dir: dir, BaseURL: "https://example.com", DryRun: true, BatchSize: 10, MaxPerFile: 20})
	require.NoError(t, err)
	src := source.NewMemorySource("widgets", "id", seqRecords(1, 45)...)
	_, err = g.Add(src, widgetOptions())
	require.NoError(t, err)

	res, err := g.Generate(context.Background())
	require.NoError(t, err)
	assert.True(t, res.DryRun)
	assert.Equal(t, int64(45), res.Sources[0].URLs)
	assert.Empty(t, res.Index)
	assert.Empty(t, dirNames(t, dir))
	assert.Equal(t, 5, src.Fetches)
}

func TestGeneratorAdd(t *testing.T) {
	g := newGenerator(t, t.TempDir(), true)

	name, err := g.Add(source.NewMemorySource("blog_posts", "id"), widgetOptions())
	require.NoError(t, err)
	assert.Equal(t, "blog-posts", name)

	name, err = g.Add(source.NewMemorySource("blog_posts", "id"), widgetOptions())
	require.NoError(t, err)
	assert.Equal(t, "blog-posts-1", name)

	_, err = g.Add(source.NewMemorySource("pages", ""), widgetOptions())
	assert.ErrorIs(t, err, models.ErrSourceCapability)

	off := false
	_, err = g.Add(source.NewMemorySource("pages", ""), SourceOptions{PartialUpdate: &off})
	assert.NoError(t, err)

	_, err = g.Add(source.NewMemorySource("widgets", "id"), SourceOptions{BatchSize: 5000, MaxPerFile: 1000})
	assert.ErrorIs(t, err, models.ErrConfiguration)

	_, err = g.Add(source.NewMemorySource("static", "id"), SourceOptions{})
	assert.ErrorIs(t, err, models.ErrConfiguration)

	_, err = g.Add(source.NewMemorySource("../etc", "id"), SourceOptions{})
	assert.ErrorIs(t, err, models.ErrConfiguration)

	_, err = New(Options{Dir: t.TempDir(), BatchSize: 1})
	assert.ErrorIs(t, err, models.ErrConfiguration)
	_, err = New(Options{})
	assert.ErrorIs(t, err, models.ErrConfiguration)
}

func TestCleanAndRebuildIndex(t *testing.T) {
	dir := t.TempDir()
	g := newGenerator(t, dir, false)
	_, err := g.Add(source.NewMemorySource("widgets", "id", seqRecords(1, 5)...), widgetOptions())
	require.NoError(t, err)
	_, err = g.Generate(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(dir, "sitemap_index.xml")))
	path, err := g.RebuildIndex()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "sitemap_index.xml"), path)
	assert.Equal(t, []string{"https://example.com/sitemaps/sitemap_widgets_5.xml"}, readIndex(t, dir))

	n, err := g.Clean()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Empty(t, dirNames(t, dir))
}
