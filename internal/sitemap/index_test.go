package sitemap

import (
	"encoding/xml"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteIndex(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "sitemap_widgets_2.xml", "sitemap_widgets_4.xml")
	require.NoError(t, os.WriteFile(filepath.Join(dir, IndexFileName(false)), []byte("stale"), 0644))

	artifacts, err := List(dir)
	require.NoError(t, err)

	path, err := WriteIndex(IndexOptions{Dir: dir, BaseURL: "https://example.com/sitemaps/", Gzip: true}, artifacts)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "sitemap_index.xml.gz"), path)

	_, err = os.Stat(filepath.Join(dir, "sitemap_index.xml"))
	assert.True(t, os.IsNotExist(err), "index with the other compression is removed")

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	data, err := io.ReadAll(gz)
	require.NoError(t, err)

	var idx Index
	require.NoError(t, xml.Unmarshal(data, &idx))
	require.Len(t, idx.Refs, 2)
	assert.Equal(t, "https://example.com/sitemaps/sitemap_widgets_2.xml", idx.Refs[0].Location)
	assert.Equal(t, "https://example.com/sitemaps/sitemap_widgets_4.xml", idx.Refs[1].Location)
	assert.NotEmpty(t, idx.Refs[0].LastModification)
	assert.Contains(t, string(data), `xmlns="http://www.sitemaps.org/schemas/sitemap/0.9"`)
}

func TestFileURL(t *testing.T) {
	u, err := FileURL("https://example.com", "sitemap_index.xml")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/sitemap_index.xml", u)

	_, err = FileURL("://bad", "x.xml")
	assert.Error(t, err)
}

func TestPingerEscapesIndexURL(t *testing.T) {
	var mu sync.Mutex
	var got []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		got = append(got, r.URL.Path+"="+r.URL.Query().Get("sitemap"))
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p, err := NewPinger([]string{srv.URL + "/a?sitemap=%s", srv.URL + "/b?sitemap=%s"})
	require.NoError(t, err)
	require.NoError(t, p.Ping(t.Context(), "https://example.com/sitemap_index.xml?v=1&x=2"))

	sort.Strings(got)
	assert.Equal(t, []string{
		"/a=https://example.com/sitemap_index.xml?v=1&x=2",
		"/b=https://example.com/sitemap_index.xml?v=1&x=2",
	}, got)
}

func TestPingerReportsFailures(t *testing.T) {
	var hits int
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		if r.URL.Path == "/down" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p, err := NewPinger([]string{srv.URL + "/down?u=%s", srv.URL + "/up?u=%s"})
	require.NoError(t, err)
	err = p.Ping(t.Context(), "https://example.com/sitemap_index.xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Equal(t, 2, hits, "a failing engine does not stop the others")
}

func TestValidatePingURL(t *testing.T) {
	assert.NoError(t, ValidatePingURL("https://www.bing.com/ping?siteMap=%s"))
	assert.Error(t, ValidatePingURL("https://www.bing.com/ping"))
	assert.Error(t, ValidatePingURL("https://www.bing.com/ping?a=%s&b=%s"))
	assert.Error(t, ValidatePingURL("%s"))

	p, err := NewPinger(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultPingURLs, p.URLs)

	_, err = url.Parse(DefaultPingURLs[0])
	assert.NoError(t, err)
}
