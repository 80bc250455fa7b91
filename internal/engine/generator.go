// Package engine plans, paginates and writes the sitemaps of registered
// sources under an exclusive lock on the output directory.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/BartekS5/bigsitemap/internal/sitemap"
	"github.com/BartekS5/bigsitemap/internal/source"
	"github.com/BartekS5/bigsitemap/pkg/logger"
	"github.com/BartekS5/bigsitemap/pkg/models"
	"github.com/BartekS5/bigsitemap/pkg/utils"
)

const (
	DefaultBatchSize  int64 = 1001
	DefaultMaxPerFile int64 = sitemap.MaxURLs
)

var sourceName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9.-]*$`)

// Options configure a Generator.
type Options struct {
	// Dir is the output directory.
	Dir string
	// BaseURL is the site root entries are built from.
	BaseURL string
	// SitemapURL is the public URL of Dir; defaults to BaseURL.
	SitemapURL string

	Gzip          bool
	Indent        bool
	BatchSize     int64
	MaxPerFile    int64
	PartialUpdate bool
	// DryRun counts, plans and paginates every source but writes nothing.
	DryRun bool

	Now func() time.Time
}

// SourceOptions configure one registered source. Zero limits fall back to
// the generator's.
type SourceOptions struct {
	Filter     source.Filter
	Entry      EntryOptions
	BatchSize  int64
	MaxPerFile int64
	// PartialUpdate set to false opts the source out of partial updates.
	PartialUpdate *bool
}

type registration struct {
	src     source.Source
	name    string
	filter  source.Filter
	entry   EntryOptions
	batch   int64
	max     int64
	partial bool
}

// SourceResult reports the work done for one source.
type SourceResult struct {
	Name      string
	Total     int64
	URLs      int64
	Plan      *Plan
	Watermark interface{}
	Files     []sitemap.Artifact
	Pruned    []string
	Duration  time.Duration
}

// Result reports a generation run.
type Result struct {
	RunID    string
	DryRun   bool
	Sources  []SourceResult
	Static   *SourceResult
	Index    string
	IndexURL string
}

// Generator writes the sitemaps of its registered sources.
type Generator struct {
	opts    Options
	sources []*registration
	static  []models.StaticPage
	seen    map[string]int
	tracker *ResumeTracker
}

func New(opts Options) (*Generator, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("%w: output directory is required", models.ErrConfiguration)
	}
	if opts.BatchSize == 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.MaxPerFile == 0 {
		opts.MaxPerFile = DefaultMaxPerFile
	}
	if err := CheckLimits(opts.BatchSize, opts.MaxPerFile); err != nil {
		return nil, err
	}
	if opts.SitemapURL == "" {
		opts.SitemapURL = opts.BaseURL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Generator{
		opts:    opts,
		seen:    make(map[string]int),
		tracker: NewResumeTracker(sitemap.DirLister{Dir: opts.Dir}),
	}, nil
}

// Add registers a source and returns the name its files are written under.
// Underscores become dashes, since file names use them as the separator of
// the suffix. A name registered before gets a "-<n>" suffix.
func (g *Generator) Add(src source.Source, opts SourceOptions) (string, error) {
	partial := g.opts.PartialUpdate && (opts.PartialUpdate == nil || *opts.PartialUpdate)
	if err := source.NewValidator(source.Requirements{PartialUpdate: partial}).ValidateSource(src); err != nil {
		return "", err
	}

	r := &registration{
		src:     src,
		filter:  opts.Filter,
		entry:   opts.Entry,
		batch:   opts.BatchSize,
		max:     opts.MaxPerFile,
		partial: partial,
	}
	if r.batch == 0 {
		r.batch = g.opts.BatchSize
	}
	if r.max == 0 {
		r.max = g.opts.MaxPerFile
	}
	if err := CheckLimits(r.batch, r.max); err != nil {
		return "", fmt.Errorf("source %s: %w", src.Name(), err)
	}
	if err := r.filter.Validate(); err != nil {
		return "", fmt.Errorf("%w: source %s: %v", models.ErrConfiguration, src.Name(), err)
	}
	if r.entry.BaseURL == "" {
		r.entry.BaseURL = g.opts.BaseURL
	}
	if _, err := NewTransformer(r.entry, time.Time{}); err != nil {
		return "", fmt.Errorf("source %s: %w", src.Name(), err)
	}

	name := strings.ReplaceAll(src.Name(), "_", "-")
	if !sourceName.MatchString(name) || name == sitemap.StaticName || name == "index" {
		return "", fmt.Errorf("%w: %q cannot be used as a sitemap name", models.ErrConfiguration, name)
	}
	if n := g.seen[name]; n > 0 {
		r.name = fmt.Sprintf("%s-%d", name, n)
	} else {
		r.name = name
	}
	g.seen[name]++

	g.sources = append(g.sources, r)
	return r.name, nil
}

// AddStatic registers pages written to the static sitemap.
func (g *Generator) AddStatic(pages ...models.StaticPage) error {
	for _, p := range pages {
		if _, err := StaticEntry(g.opts.BaseURL, p, g.opts.Now()); err != nil {
			return err
		}
	}
	g.static = append(g.static, pages...)
	return nil
}

// Generate writes every source, the static pages and the index. A lock held
// by another run yields ErrLockContention before anything is touched. A
// failing source aborts the run: files it already closed stay in place, the
// file it was writing is discarded.
func (g *Generator) Generate(ctx context.Context) (*Result, error) {
	result := &Result{DryRun: g.opts.DryRun}

	if !g.opts.DryRun {
		lock, err := AcquireLock(g.opts.Dir)
		if err != nil {
			if errors.Is(err, models.ErrLockContention) {
				logger.Infof("Generation skipped: %v", err)
			}
			return nil, err
		}
		defer func() {
			if err := lock.Release(); err != nil {
				logger.Errorf("%v", err)
			}
		}()
		result.RunID = lock.RunID
	}

	runStart := g.opts.Now()
	logger.Infof("Starting generation. Sources: %d, Output: %s, Gzip: %v, DryRun: %v",
		len(g.sources), g.opts.Dir, g.opts.Gzip, g.opts.DryRun)

	for _, r := range g.sources {
		res, err := g.generateSource(ctx, r, runStart)
		result.Sources = append(result.Sources, res)
		if err != nil {
			logger.Errorf("Source %s failed: %v", r.name, err)
			return result, err
		}
	}

	if len(g.static) > 0 {
		res, err := g.generateStatic(runStart)
		result.Static = &res
		if err != nil {
			return result, err
		}
	}

	if g.opts.DryRun {
		logger.Info("[DRY RUN] Index not written")
		return result, nil
	}

	path, err := g.writeIndex()
	if err != nil {
		return result, err
	}
	result.Index = path
	result.IndexURL, err = sitemap.FileURL(g.opts.SitemapURL, sitemap.IndexFileName(g.opts.Gzip))
	if err != nil {
		return result, err
	}
	logger.Info("Generation finished successfully.")
	return result, nil
}

func (g *Generator) generateSource(ctx context.Context, r *registration, runStart time.Time) (SourceResult, error) {
	res := SourceResult{Name: r.name}
	started := time.Now()
	pk := source.PrimaryKeyOf(r.src)

	filter := r.filter
	var preserve string
	if r.partial {
		k, ok, err := g.tracker.LastWatermark(r.name)
		if err != nil {
			return res, fmt.Errorf("source %s: resume: %w", r.name, err)
		}
		if ok {
			filter = filter.And(source.Condition{Field: pk, Op: source.OpGte, Value: k})
			preserve = utils.FormatKey(k)
			res.Watermark = k
			logger.Infof("%s: resuming from %s >= %v", r.name, pk, k)
		}
	}

	total, err := r.src.Count(ctx, filter)
	if err != nil {
		return res, fmt.Errorf("source %s: count: %w: %w", r.name, models.ErrAdapter, err)
	}
	if filter.Limit > 0 && filter.Limit < total {
		total = filter.Limit
	}
	res.Total = total

	plan, err := NewPlan(total, r.batch, r.max)
	if err != nil {
		return res, fmt.Errorf("source %s: %w", r.name, err)
	}
	res.Plan = plan
	if total == 0 && res.Watermark != nil {
		// the files of the previous run stay as they are
		logger.Infof("%s: nothing new since %v", r.name, res.Watermark)
		res.Duration = time.Since(started)
		return res, nil
	}
	logger.Infof("%s: %d records, %d batches of %d over %d files", r.name, total, plan.NumBatches, plan.BatchSize, plan.NumFiles())

	tr, err := NewTransformer(r.entry, runStart)
	if err != nil {
		return res, err
	}

	var b *sitemap.Builder
	if !g.opts.DryRun {
		b, err = sitemap.NewBuilder(sitemap.BuilderOptions{
			Dir:      g.opts.Dir,
			Source:   r.name,
			Gzip:     g.opts.Gzip,
			Indent:   g.opts.Indent,
			MaxURLs:  int(min(r.max, sitemap.MaxURLs)),
			Keyed:    pk != "",
			Preserve: preserve,
		})
		if err != nil {
			return res, err
		}
	}

	pag := NewPaginator(r.src, filter, plan, nil)
	for _, f := range plan.Files {
		if b != nil {
			if _, err := b.Open(); err != nil {
				return res, err
			}
		}
		for rec, err := range pag.File(ctx, f) {
			if err != nil {
				if b != nil {
					b.Abort()
					res.Files = b.Artifacts()
				}
				return res, err
			}
			entry, err := tr.Entry(rec)
			if err == nil && b != nil {
				err = b.Add(entry, rec.Key)
			}
			if err != nil {
				if b != nil {
					b.Abort()
					res.Files = b.Artifacts()
				}
				return res, fmt.Errorf("source %s: file %d: %w", r.name, f.Index, err)
			}
			res.URLs++
		}
		if b != nil {
			if _, err := b.Close(); err != nil {
				res.Files = b.Artifacts()
				return res, err
			}
		}

		rate := 0.0
		if d := time.Since(started); d.Seconds() > 0 {
			rate = float64(res.URLs) / d.Seconds()
		}
		logger.Infof("%s: file %d/%d done. Total: %d. Rate: %.2f urls/sec", r.name, f.Index, plan.NumFiles(), res.URLs, rate)
	}

	if b != nil {
		res.Files = b.Artifacts()
		if res.Watermark == nil {
			pruned, err := g.prune(r.name, res.Files)
			res.Pruned = pruned
			if err != nil {
				return res, err
			}
		}
	} else {
		logger.Infof("[DRY RUN] %s: would write %d urls", r.name, res.URLs)
	}
	res.Duration = time.Since(started)
	return res, nil
}

func (g *Generator) generateStatic(runStart time.Time) (SourceResult, error) {
	res := SourceResult{Name: sitemap.StaticName, Total: int64(len(g.static))}
	started := time.Now()

	var b *sitemap.Builder
	if !g.opts.DryRun {
		var err error
		b, err = sitemap.NewBuilder(sitemap.BuilderOptions{
			Dir:     g.opts.Dir,
			Source:  sitemap.StaticName,
			Gzip:    g.opts.Gzip,
			Indent:  g.opts.Indent,
			MaxURLs: int(min(g.opts.MaxPerFile, sitemap.MaxURLs)),
		})
		if err != nil {
			return res, err
		}
	}

	for _, p := range g.static {
		entry, err := StaticEntry(g.opts.BaseURL, p, runStart)
		if err == nil && b != nil {
			err = b.Add(entry, nil)
		}
		if err != nil {
			if b != nil {
				b.Abort()
			}
			return res, err
		}
		res.URLs++
	}
	if b == nil {
		return res, nil
	}
	if _, err := b.Close(); err != nil {
		return res, err
	}
	res.Files = b.Artifacts()
	pruned, err := g.prune(sitemap.StaticName, res.Files)
	res.Pruned = pruned
	res.Duration = time.Since(started)
	logger.Infof("static: %d urls in %d files", res.URLs, len(res.Files))
	return res, err
}

// prune removes the files of a fully regenerated source that this run did
// not rewrite.
func (g *Generator) prune(name string, written []sitemap.Artifact) ([]string, error) {
	keep := make(map[string]bool, len(written))
	for _, a := range written {
		keep[a.FileName()] = true
	}
	existing, err := sitemap.ListFor(g.opts.Dir, name)
	if err != nil {
		return nil, err
	}
	var pruned []string
	for _, a := range existing {
		if keep[a.FileName()] {
			continue
		}
		if err := os.Remove(a.Path); err != nil && !os.IsNotExist(err) {
			return pruned, fmt.Errorf("removing stale %s: %w", a.FileName(), err)
		}
		logger.Debugf("removed stale %s", a.FileName())
		pruned = append(pruned, a.FileName())
	}
	return pruned, nil
}

func (g *Generator) writeIndex() (string, error) {
	artifacts, err := sitemap.List(g.opts.Dir)
	if err != nil {
		return "", err
	}
	path, err := sitemap.WriteIndex(sitemap.IndexOptions{
		Dir:     g.opts.Dir,
		BaseURL: g.opts.SitemapURL,
		Gzip:    g.opts.Gzip,
		Indent:  g.opts.Indent,
	}, artifacts)
	if err != nil {
		return "", fmt.Errorf("writing index: %w", err)
	}
	logger.Infof("Index %s lists %d sitemaps", path, len(artifacts))
	return path, nil
}

// RebuildIndex rewrites the index from the files in the output directory.
func (g *Generator) RebuildIndex() (string, error) {
	lock, err := AcquireLock(g.opts.Dir)
	if err != nil {
		return "", err
	}
	defer lock.Release()
	return g.writeIndex()
}

// Clean removes every sitemap and the index from the output directory.
func (g *Generator) Clean() (int, error) {
	lock, err := AcquireLock(g.opts.Dir)
	if err != nil {
		return 0, err
	}
	defer lock.Release()

	n, err := sitemap.Clean(g.opts.Dir)
	if err != nil {
		return n, err
	}
	logger.Infof("Removed %d sitemap files from %s", n, g.opts.Dir)
	return n, nil
}
