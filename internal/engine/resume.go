package engine

import (
	"strconv"

	"github.com/BartekS5/bigsitemap/internal/sitemap"
)

// ArtifactLister lists the sitemap files already written for a source.
type ArtifactLister interface {
	ListFor(source string) ([]sitemap.Artifact, error)
}

// ResumeTracker recovers the watermark of a previous run from the names of the
// files it left behind: a keyed source names each file after the largest key
// it holds, so the largest integer suffix is the last key written.
type ResumeTracker struct {
	lister ArtifactLister
}

func NewResumeTracker(lister ArtifactLister) *ResumeTracker {
	return &ResumeTracker{lister: lister}
}

// LastWatermark returns the largest integer suffix among the artifacts of
// source. ok is false when there is none. Non-integer suffixes (string or
// ObjectID keys) cannot be recovered and are ignored.
func (t *ResumeTracker) LastWatermark(source string) (key interface{}, ok bool, err error) {
	artifacts, err := t.lister.ListFor(source)
	if err != nil {
		return nil, false, err
	}

	var best int64
	for _, a := range artifacts {
		n, err := strconv.ParseInt(a.Suffix, 10, 64)
		if err != nil {
			continue
		}
		if !ok || n > best {
			best, ok = n, true
		}
	}
	if !ok {
		return nil, false, nil
	}
	return best, true, nil
}
