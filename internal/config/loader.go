package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/BartekS5/bigsitemap/internal/engine"
	"github.com/BartekS5/bigsitemap/internal/sitemap"
	"github.com/BartekS5/bigsitemap/internal/source"
	"github.com/BartekS5/bigsitemap/pkg/models"
	"github.com/BartekS5/bigsitemap/pkg/utils"
)

// LoadSettings reads the settings file at path. The format follows the
// extension: .toml or .json. Defaults are applied but the result is not
// validated, so environment overrides can be applied first.
func LoadSettings(path string) (*models.Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file '%s': %w", path, err)
	}

	var s *models.Settings
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		s = &models.Settings{}
		err = toml.Unmarshal(data, s)
	case ".json":
		s, err = models.LoadSettingsJSON(data)
	default:
		return nil, fmt.Errorf("%w: settings file '%s' must be .toml or .json", models.ErrConfiguration, path)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse settings file '%s': %v", models.ErrConfiguration, path, err)
	}

	ApplyDefaults(s)
	return s, nil
}

// ApplyDefaults fills in unset limits.
func ApplyDefaults(s *models.Settings) {
	if s.BatchSize == 0 {
		s.BatchSize = engine.DefaultBatchSize
	}
	if s.MaxPerFile == 0 {
		s.MaxPerFile = engine.DefaultMaxPerFile
	}
}

// Validate checks the settings as a whole and reports every problem found.
func Validate(s *models.Settings) error {
	var errs []error
	add := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]interface{}{models.ErrConfiguration}, args...)...))
	}

	if u, err := url.Parse(s.BaseURL); s.BaseURL == "" || err != nil || u.Scheme == "" || u.Host == "" {
		add("base_url %q must be an absolute url", s.BaseURL)
	}
	if s.DocumentRoot == "" {
		add("document_root is required")
	}
	if err := engine.CheckLimits(s.BatchSize, s.MaxPerFile); err != nil {
		errs = append(errs, err)
	}
	for _, p := range s.Ping {
		if err := sitemap.ValidatePingURL(p); err != nil {
			add("%v", err)
		}
	}
	if len(s.Sources) == 0 && len(s.Static) == 0 {
		add("no sources or static pages configured")
	}

	for i, m := range s.Sources {
		if err := validateSource(s, m); err != nil {
			errs = append(errs, fmt.Errorf("sources[%d] %s: %w", i, m.Name, err))
		}
	}
	for i, p := range s.Static {
		if _, err := engine.StaticEntry(s.BaseURL, p, time.Now()); err != nil {
			errs = append(errs, fmt.Errorf("static[%d]: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

func validateSource(s *models.Settings, m models.SourceMapping) error {
	if m.Name == "" {
		return fmt.Errorf("%w: name is required", models.ErrConfiguration)
	}
	switch m.Driver {
	case DriverSQLServer, DriverSQLite:
		if m.Table == "" {
			return fmt.Errorf("%w: table is required for driver %s", models.ErrConfiguration, m.Driver)
		}
	case DriverMongo:
		if m.Collection == "" {
			return fmt.Errorf("%w: collection is required for driver %s", models.ErrConfiguration, m.Driver)
		}
	default:
		return fmt.Errorf("%w: unknown driver %q", models.ErrConfiguration, m.Driver)
	}

	for _, col := range []string{m.PrimaryKey, m.ParamColumn, m.LastModColumn} {
		if col == "" {
			continue
		}
		if err := source.ValidateIdentifier(col); err != nil {
			return err
		}
	}
	if m.PrimaryKey == "" && m.ParamColumn == "" && m.Location == "" {
		return fmt.Errorf("%w: primary_key, param_column or location is needed to build urls", models.ErrConfiguration)
	}

	if err := engine.CheckLimits(pick(m.BatchSize, s.BatchSize), pick(m.MaxPerFile, s.MaxPerFile)); err != nil {
		return err
	}
	if _, err := BuildFilter(m); err != nil {
		return err
	}
	_, err := engine.NewTransformer(EntryOptions(s, m), time.Now())
	return err
}

func pick(v, fallback int64) int64 {
	if v != 0 {
		return v
	}
	return fallback
}

// BuildFilter turns the configured conditions and limit of a source into a
// filter.
func BuildFilter(m models.SourceMapping) (source.Filter, error) {
	f := source.Filter{Limit: m.Limit}
	for _, c := range m.Conditions {
		op, err := source.ParseOp(c.Op)
		if err != nil {
			return f, err
		}
		f.Conditions = append(f.Conditions, source.Condition{Field: c.Field, Op: op, Value: utils.NormalizeKey(c.Value)})
	}
	return f, f.Validate()
}

// EntryOptions returns the url settings of a source.
func EntryOptions(s *models.Settings, m models.SourceMapping) engine.EntryOptions {
	path := m.Path
	if path == "" && m.Location == "" {
		path = m.Name
	}
	return engine.EntryOptions{
		BaseURL:         s.BaseURL,
		Path:            path,
		Location:        m.Location,
		ChangeFrequency: m.ChangeFrequency,
		Priority:        m.Priority,
	}
}

// SourceOptions returns the generator options of a source.
func SourceOptions(s *models.Settings, m models.SourceMapping) (engine.SourceOptions, error) {
	filter, err := BuildFilter(m)
	if err != nil {
		return engine.SourceOptions{}, err
	}
	return engine.SourceOptions{
		Filter:        filter,
		Entry:         EntryOptions(s, m),
		BatchSize:     m.BatchSize,
		MaxPerFile:    m.MaxPerFile,
		PartialUpdate: m.PartialUpdate,
	}, nil
}

// OutputDir is where sitemaps are written: document_root joined with path.
func OutputDir(s *models.Settings) string {
	return filepath.Join(s.DocumentRoot, filepath.FromSlash(strings.TrimLeft(s.Path, "/")))
}

// SitemapURL is the public URL of OutputDir.
func SitemapURL(s *models.Settings) string {
	path := strings.Trim(s.Path, "/")
	if path == "" {
		return strings.TrimRight(s.BaseURL, "/")
	}
	return strings.TrimRight(s.BaseURL, "/") + "/" + path
}
