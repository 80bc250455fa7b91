package sitemap

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BartekS5/bigsitemap/pkg/utils"
)

// BuilderOptions configure the sitemap files of one source.
type BuilderOptions struct {
	Dir    string
	Source string
	Gzip   bool
	Indent bool
	// MaxURLs caps the entries of one file; 0 or anything above the protocol
	// limit means MaxURLs.
	MaxURLs int
	// Keyed files are named after the largest key they contain instead of
	// their part index.
	Keyed bool
	// Preserve is the suffix of an existing file that must not be replaced.
	// A part that would take its name is discarded.
	Preserve string
}

// Builder streams the entries of one source into a sequence of sitemap files.
// Every part is written to a temporary file and renamed into place on close,
// so an aborted part never replaces an existing file.
type Builder struct {
	opts   BuilderOptions
	part   int
	cur    *xmlFile
	urls   int
	maxKey interface{}

	artifacts []Artifact
}

func NewBuilder(opts BuilderOptions) (*Builder, error) {
	if opts.Source == "" {
		return nil, fmt.Errorf("sitemap builder needs a source name")
	}
	if opts.MaxURLs <= 0 || opts.MaxURLs > MaxURLs {
		opts.MaxURLs = MaxURLs
	}
	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	return &Builder{opts: opts}, nil
}

// Open finishes the current part, if any, and starts the next one. It returns
// the index of the new part.
func (b *Builder) Open() (int, error) {
	if b.cur != nil {
		if _, err := b.Close(); err != nil {
			return b.part, err
		}
	}
	root := xml.StartElement{Name: xml.Name{Local: "urlset"}, Attr: SitemapSchema.attrs()}
	f, err := createXMLFile(b.opts.Dir, b.opts.Gzip, b.opts.Indent && !b.opts.Gzip, root)
	if err != nil {
		return b.part, err
	}
	b.part++
	b.cur = f
	b.urls = 0
	b.maxKey = nil
	return b.part, nil
}

// Add appends an entry to the current part. A full part is closed and the
// next one opened first.
func (b *Builder) Add(e *Entry, key interface{}) error {
	if b.cur == nil || b.urls >= b.opts.MaxURLs {
		if _, err := b.Open(); err != nil {
			return err
		}
	}
	if err := b.cur.encode(e); err != nil {
		return fmt.Errorf("writing %s: %w", e.Location, err)
	}
	b.urls++
	if key != nil {
		b.maxKey = key
	}
	return nil
}

// Close finishes the current part and returns it. It returns nil when no part
// is open or the part was discarded in favour of a preserved file.
func (b *Builder) Close() (*Artifact, error) {
	if b.cur == nil {
		return nil, nil
	}
	f := b.cur
	b.cur = nil

	name := FileName(b.opts.Source, b.suffix(), b.opts.Gzip)
	path := filepath.Join(b.opts.Dir, name)
	if b.opts.Preserve != "" && b.suffix() == b.opts.Preserve {
		// either compression counts: gzip may have been toggled since
		for _, gz := range []bool{b.opts.Gzip, !b.opts.Gzip} {
			if _, err := os.Stat(filepath.Join(b.opts.Dir, FileName(b.opts.Source, b.suffix(), gz))); err == nil {
				f.discard()
				return nil, nil
			}
		}
	}
	if err := f.finish(path); err != nil {
		return nil, fmt.Errorf("closing %s: %w", name, err)
	}

	a := Artifact{
		Path:   path,
		Source: b.opts.Source,
		Suffix: b.suffix(),
		Part:   b.part,
		URLs:   b.urls,
		Gzip:   b.opts.Gzip,
		Size:   f.size,
	}
	if info, err := os.Stat(path); err == nil {
		a.ModTime = info.ModTime()
	}
	b.artifacts = append(b.artifacts, a)
	return &a, nil
}

// Abort discards the open part. Parts already closed stay on disk.
func (b *Builder) Abort() {
	if b.cur != nil {
		b.cur.discard()
		b.cur = nil
	}
}

// Artifacts returns the parts closed so far.
func (b *Builder) Artifacts() []Artifact {
	return b.artifacts
}

func (b *Builder) suffix() string {
	if b.opts.Keyed {
		return utils.FormatKey(b.maxKey)
	}
	return strconv.Itoa(b.part)
}
