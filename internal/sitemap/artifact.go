package sitemap

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	filePrefix = "sitemap_"
	xmlExt     = ".xml"
	gzExt      = ".gz"

	// IndexName is the base name of the sitemap index file.
	IndexName = "sitemap_index"
	// StaticName is the source name used for static pages.
	StaticName = "static"
)

// Artifact is a sitemap file on disk.
type Artifact struct {
	Path    string
	Source  string
	Suffix  string // max key, part index, or "" for an empty keyed source
	Part    int
	URLs    int
	Gzip    bool
	Size    int64
	ModTime time.Time
}

func (a Artifact) FileName() string {
	return filepath.Base(a.Path)
}

// FileName returns the sitemap file name for a source and suffix.
func FileName(source, suffix string, gzip bool) string {
	name := filePrefix + source
	if suffix != "" {
		name += "_" + suffix
	}
	return name + extension(gzip)
}

// IndexFileName returns the index file name.
func IndexFileName(gzip bool) string {
	return IndexName + extension(gzip)
}

func extension(gzip bool) string {
	if gzip {
		return xmlExt + gzExt
	}
	return xmlExt
}

// trimExt strips .xml or .xml.gz and reports whether the name had either.
func trimExt(file string) (string, bool, bool) {
	if base, ok := strings.CutSuffix(file, xmlExt+gzExt); ok {
		return base, true, true
	}
	if base, ok := strings.CutSuffix(file, xmlExt); ok {
		return base, false, true
	}
	return "", false, false
}

// ParseArtifactName splits a sitemap file name into source and suffix. Suffixes
// never contain an underscore, so the last one separates them. The index file
// is not an artifact.
func ParseArtifactName(file string) (source, suffix string, gzip, ok bool) {
	base, gzip, ok := trimExt(file)
	if !ok || base == IndexName {
		return "", "", false, false
	}
	rest, ok := strings.CutPrefix(base, filePrefix)
	if !ok || rest == "" {
		return "", "", false, false
	}
	if i := strings.LastIndexByte(rest, '_'); i > 0 {
		return rest[:i], rest[i+1:], gzip, true
	}
	return rest, "", gzip, true
}

// SuffixFor returns the suffix of file if it belongs to source. A source name
// that is a prefix of another ("widgets", "widgets_archive") yields suffixes
// containing an underscore for the longer name, which are rejected here.
func SuffixFor(file, source string) (string, bool) {
	base, _, ok := trimExt(file)
	if !ok {
		return "", false
	}
	rest, ok := strings.CutPrefix(base, filePrefix+source)
	if !ok {
		return "", false
	}
	if rest == "" {
		return "", true
	}
	suffix, ok := strings.CutPrefix(rest, "_")
	if !ok || suffix == "" || strings.Contains(suffix, "_") {
		return "", false
	}
	return suffix, true
}

// List returns every sitemap artifact in dir, sorted by file name. A missing
// directory holds no artifacts.
func List(dir string) ([]Artifact, error) {
	return list(dir, func(name string) (string, string, bool) {
		src, suffix, _, ok := ParseArtifactName(name)
		return src, suffix, ok
	})
}

// ListFor returns the artifacts of one source.
func ListFor(dir, source string) ([]Artifact, error) {
	return list(dir, func(name string) (string, string, bool) {
		if base, _, _ := trimExt(name); base == IndexName {
			return "", "", false
		}
		suffix, ok := SuffixFor(name, source)
		return source, suffix, ok
	})
}

func list(dir string, match func(string) (string, string, bool)) ([]Artifact, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}

	var out []Artifact
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		src, suffix, ok := match(e.Name())
		if !ok {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, Artifact{
			Path:    filepath.Join(dir, e.Name()),
			Source:  src,
			Suffix:  suffix,
			Gzip:    strings.HasSuffix(e.Name(), gzExt),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FileName() < out[j].FileName() })
	return out, nil
}

// DirLister lists artifacts from a directory.
type DirLister struct {
	Dir string
}

func (d DirLister) ListFor(source string) ([]Artifact, error) {
	return ListFor(d.Dir, source)
}

// Clean removes every sitemap file and the index from dir and returns the
// number of files removed.
func Clean(dir string) (int, error) {
	artifacts, err := List(dir)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, a := range artifacts {
		if err := os.Remove(a.Path); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("removing %s: %w", a.FileName(), err)
		}
		removed++
	}
	for _, gz := range []bool{false, true} {
		err := os.Remove(filepath.Join(dir, IndexFileName(gz)))
		if err == nil {
			removed++
		} else if !os.IsNotExist(err) {
			return removed, err
		}
	}
	return removed, nil
}
