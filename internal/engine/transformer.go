package engine

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/BartekS5/bigsitemap/internal/sitemap"
	"github.com/BartekS5/bigsitemap/internal/source"
	"github.com/BartekS5/bigsitemap/pkg/models"
	"github.com/BartekS5/bigsitemap/pkg/utils"
)

var placeholder = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_.]*)\}`)

// EntryOptions describe how records of one source become sitemap entries.
type EntryOptions struct {
	BaseURL string
	// Path is joined between BaseURL and the record param when Location is empty.
	Path string
	// Location is a URL template. {param} is the record param, any other
	// {name} is the field of that name. Relative results are joined to BaseURL.
	Location        string
	ChangeFrequency string
	Priority        *float64
}

// Transformer turns records into sitemap entries.
type Transformer struct {
	opts     EntryOptions
	freq     sitemap.ChangeFrequency
	runStart time.Time
}

// NewTransformer validates opts. Records without a modification time are
// stamped with runStart.
func NewTransformer(opts EntryOptions, runStart time.Time) (*Transformer, error) {
	freq, err := sitemap.ParseChangeFrequency(opts.ChangeFrequency)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrConfiguration, err)
	}
	if err := checkPriority(opts.Priority); err != nil {
		return nil, err
	}
	if opts.Location == "" && opts.BaseURL == "" {
		return nil, fmt.Errorf("%w: base url or location template required", models.ErrConfiguration)
	}
	if opts.BaseURL != "" {
		if u, err := url.Parse(opts.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("%w: invalid base url %q", models.ErrConfiguration, opts.BaseURL)
		}
	}
	return &Transformer{opts: opts, freq: freq, runStart: runStart}, nil
}

func checkPriority(p *float64) error {
	if p != nil && (*p < 0 || *p > 1) {
		return fmt.Errorf("%w: priority %v outside 0..1", models.ErrConfiguration, *p)
	}
	return nil
}

// Entry builds the sitemap entry of rec.
func (t *Transformer) Entry(rec source.Record) (*sitemap.Entry, error) {
	loc, err := t.location(rec)
	if err != nil {
		return nil, err
	}
	lastMod := t.runStart
	if rec.Modified != nil && !rec.Modified.IsZero() {
		lastMod = *rec.Modified
	}
	return sitemap.NewEntry(loc, lastMod, t.freq, t.opts.Priority), nil
}

func (t *Transformer) location(rec source.Record) (string, error) {
	param := rec.Param
	if param == "" && rec.Key != nil {
		param = source.ParamString(rec.Key)
	}

	if t.opts.Location == "" {
		if param == "" {
			return "", fmt.Errorf("record has no url param")
		}
		return joinURL(t.opts.BaseURL, t.opts.Path, url.PathEscape(param)), nil
	}

	var missing []string
	loc := placeholder.ReplaceAllStringFunc(t.opts.Location, func(m string) string {
		name := m[1 : len(m)-1]
		if name == "param" {
			return url.PathEscape(param)
		}
		v, ok := rec.Fields[name]
		if !ok || v == nil {
			missing = append(missing, name)
			return ""
		}
		return url.PathEscape(source.ParamString(v))
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("location %s: missing fields %s", t.opts.Location, strings.Join(missing, ", "))
	}
	if isAbsolute(loc) || t.opts.BaseURL == "" {
		return loc, nil
	}
	return joinURL(t.opts.BaseURL, loc), nil
}

// StaticEntry builds the entry of a configured static page. Relative URLs are
// joined to baseURL.
func StaticEntry(baseURL string, page models.StaticPage, runStart time.Time) (*sitemap.Entry, error) {
	if page.URL == "" {
		return nil, fmt.Errorf("%w: static page without url", models.ErrConfiguration)
	}
	freq, err := sitemap.ParseChangeFrequency(page.ChangeFrequency)
	if err != nil {
		return nil, fmt.Errorf("%w: static page %s: %v", models.ErrConfiguration, page.URL, err)
	}
	if err := checkPriority(page.Priority); err != nil {
		return nil, err
	}

	lastMod := runStart
	if page.LastMod != "" {
		t, err := utils.ConvertDateTime(page.LastMod)
		if err != nil {
			return nil, fmt.Errorf("%w: static page %s: %v", models.ErrConfiguration, page.URL, err)
		}
		lastMod = *t
	}

	loc := page.URL
	if !isAbsolute(loc) {
		if baseURL == "" {
			return nil, fmt.Errorf("%w: relative static page %s needs a base url", models.ErrConfiguration, page.URL)
		}
		loc = joinURL(baseURL, loc)
	}
	return sitemap.NewEntry(loc, lastMod, freq, page.Priority), nil
}

func isAbsolute(loc string) bool {
	u, err := url.Parse(loc)
	return err == nil && u.Scheme != "" && u.Host != ""
}

func joinURL(base string, parts ...string) string {
	out := strings.TrimRight(base, "/")
	for _, p := range parts {
		if p = strings.Trim(p, "/"); p != "" {
			out += "/" + p
		}
	}
	return out
}
