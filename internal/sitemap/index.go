package sitemap

import (
	"encoding/xml"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// IndexOptions configure the sitemap index.
type IndexOptions struct {
	Dir     string
	BaseURL string // public URL of Dir, e.g. https://example.com/sitemaps
	Gzip    bool
	Indent  bool
}

// FileURL returns the public URL of a file in the output directory.
func FileURL(baseURL, file string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/")
	if err != nil {
		return "", fmt.Errorf("invalid base url %q: %w", baseURL, err)
	}
	return u.JoinPath(file).String(), nil
}

// WriteIndex writes the index referencing artifacts, in the given order, and
// removes an index left behind with the other compression setting. It returns
// the path of the index.
func WriteIndex(opts IndexOptions, artifacts []Artifact) (string, error) {
	root := xml.StartElement{Name: xml.Name{Local: "sitemapindex"}, Attr: SitemapIndexSchema.attrs()}
	f, err := createXMLFile(opts.Dir, opts.Gzip, opts.Indent && !opts.Gzip, root)
	if err != nil {
		return "", err
	}

	for _, a := range artifacts {
		loc, err := FileURL(opts.BaseURL, a.FileName())
		if err != nil {
			f.discard()
			return "", err
		}
		ref := IndexRef{FileReference: FileReference{Location: loc, LastModification: FormatTime(a.ModTime)}}
		if err := f.encode(ref); err != nil {
			f.discard()
			return "", err
		}
	}

	path := filepath.Join(opts.Dir, IndexFileName(opts.Gzip))
	if err := f.finish(path); err != nil {
		return "", err
	}
	stale := filepath.Join(opts.Dir, IndexFileName(!opts.Gzip))
	if err := os.Remove(stale); err != nil && !os.IsNotExist(err) {
		return path, err
	}
	return path, nil
}
