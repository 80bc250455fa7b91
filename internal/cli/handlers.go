package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/BartekS5/bigsitemap/internal/config"
	"github.com/BartekS5/bigsitemap/internal/engine"
	"github.com/BartekS5/bigsitemap/internal/sitemap"
	"github.com/BartekS5/bigsitemap/internal/source"
	"github.com/BartekS5/bigsitemap/pkg/database"
	"github.com/BartekS5/bigsitemap/pkg/logger"
	"github.com/BartekS5/bigsitemap/pkg/models"
)

// loadSettings reads the settings file, applies environment overrides and
// validates the result.
func loadSettings(root *RootOptions) (*models.Settings, *config.Config, error) {
	cfg := config.LoadConfig()

	s, err := config.LoadSettings(root.ConfigFile)
	if err != nil {
		return nil, nil, err
	}
	cfg.Apply(s)

	if err := config.Validate(s); err != nil {
		return nil, nil, fmt.Errorf("invalid settings in %s:\n%w", root.ConfigFile, err)
	}
	return s, cfg, nil
}

func generatorOptions(s *models.Settings, dryRun bool) engine.Options {
	gzip := s.GzipEnabled()
	return engine.Options{
		Dir:           config.OutputDir(s),
		BaseURL:       s.BaseURL,
		SitemapURL:    config.SitemapURL(s),
		Gzip:          gzip,
		Indent:        !gzip,
		BatchSize:     s.BatchSize,
		MaxPerFile:    s.MaxPerFile,
		PartialUpdate: s.PartialUpdate,
		DryRun:        dryRun,
	}
}

// connections opens each database at most once, however many sources use it.
type connections struct {
	cfg    *config.Config
	sql    *sql.DB
	sqlite *sql.DB
	mongo  *mongo.Client
}

func (c *connections) sqlServer() (*sql.DB, error) {
	if c.sql == nil {
		db, err := database.ConnectSQL(c.cfg.SQLConnString)
		if err != nil {
			return nil, err
		}
		c.sql = db
	}
	return c.sql, nil
}

func (c *connections) sqliteDB() (*sql.DB, error) {
	if c.sqlite == nil {
		db, err := database.ConnectSQLite(c.cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		c.sqlite = db
	}
	return c.sqlite, nil
}

func (c *connections) mongoClient() (*mongo.Client, error) {
	if c.mongo == nil {
		client, err := database.ConnectMongo(c.cfg.MongoConnString)
		if err != nil {
			return nil, err
		}
		c.mongo = client
	}
	return c.mongo, nil
}

func (c *connections) Close() {
	if c.sql != nil {
		c.sql.Close()
	}
	if c.sqlite != nil {
		c.sqlite.Close()
	}
	if c.mongo != nil {
		database.DisconnectMongo(c.mongo)
	}
}

func (c *connections) open(m models.SourceMapping) (source.Source, error) {
	if err := c.cfg.Require(m.Driver); err != nil {
		return nil, err
	}
	mapping := source.FieldMapping{
		PrimaryKey:    m.PrimaryKey,
		ParamColumn:   m.ParamColumn,
		LastModColumn: m.LastModColumn,
	}

	switch m.Driver {
	case config.DriverSQLServer:
		db, err := c.sqlServer()
		if err != nil {
			return nil, err
		}
		return source.NewSQLSource(db, source.DialectSQLServer, m.Name, m.Table, mapping)
	case config.DriverSQLite:
		db, err := c.sqliteDB()
		if err != nil {
			return nil, err
		}
		return source.NewSQLSource(db, source.DialectSQLite, m.Name, m.Table, mapping)
	case config.DriverMongo:
		client, err := c.mongoClient()
		if err != nil {
			return nil, err
		}
		return source.NewMongoSource(client, c.cfg.MongoDatabase, m.Collection, m.Name, mapping)
	}
	return nil, fmt.Errorf("%w: unknown driver %q", models.ErrConfiguration, m.Driver)
}

// buildGenerator registers every configured source and static page.
func buildGenerator(s *models.Settings, cfg *config.Config, opts engine.Options) (*engine.Generator, *connections, error) {
	gen, err := engine.New(opts)
	if err != nil {
		return nil, nil, err
	}

	conns := &connections{cfg: cfg}
	for _, m := range s.Sources {
		src, err := conns.open(m)
		if err != nil {
			conns.Close()
			return nil, nil, fmt.Errorf("source %s: %w", m.Name, err)
		}
		so, err := config.SourceOptions(s, m)
		if err != nil {
			conns.Close()
			return nil, nil, fmt.Errorf("source %s: %w", m.Name, err)
		}
		name, err := gen.Add(src, so)
		if err != nil {
			conns.Close()
			return nil, nil, err
		}
		if name != m.Name {
			logger.Infof("Source %s writes files as %s", m.Name, name)
		}
	}
	if err := gen.AddStatic(s.Static...); err != nil {
		conns.Close()
		return nil, nil, err
	}
	return gen, conns, nil
}

func runGenerate(ctx context.Context, root *RootOptions, opts *GenerateOptions) error {
	s, cfg, err := loadSettings(root)
	if err != nil {
		return err
	}
	if opts.Partial {
		s.PartialUpdate = true
	}

	gen, conns, err := buildGenerator(s, cfg, generatorOptions(s, opts.DryRun))
	if err != nil {
		return err
	}
	defer conns.Close()

	if opts.Clean && !opts.DryRun {
		if _, err := gen.Clean(); err != nil {
			return skipOnContention(err)
		}
	}

	fmt.Printf("Generating sitemaps into %s...\n", config.OutputDir(s))
	res, err := gen.Generate(ctx)
	if err != nil {
		return skipOnContention(err)
	}
	printResult(res)

	if opts.Ping && !opts.DryRun {
		pinger, err := sitemap.NewPinger(s.Ping)
		if err != nil {
			return err
		}
		if err := pinger.Ping(ctx, res.IndexURL); err != nil {
			logger.Warnf("Ping failed: %v", err)
		}
	}
	return nil
}

// skipOnContention turns a held lock into a clean exit. Another run is
// already writing the same directory, which is not an error for a cron job.
func skipOnContention(err error) error {
	if errors.Is(err, models.ErrLockContention) {
		fmt.Println("Another generation is running, nothing to do.")
		return nil
	}
	return err
}

func printResult(res *engine.Result) {
	prefix := ""
	if res.DryRun {
		prefix = "[DRY RUN] "
	}
	for _, sr := range res.Sources {
		fmt.Printf("%s%s: %d urls in %d files (%s)\n", prefix, sr.Name, sr.URLs, len(sr.Files), sr.Duration.Round(time.Millisecond))
		if sr.Watermark != nil {
			fmt.Printf("  resumed from key %v\n", sr.Watermark)
		}
		if len(sr.Pruned) > 0 {
			fmt.Printf("  removed %d stale files\n", len(sr.Pruned))
		}
	}
	if res.Static != nil {
		fmt.Printf("%sstatic: %d urls\n", prefix, res.Static.URLs)
	}
	if res.IndexURL != "" {
		fmt.Printf("Index: %s\n", res.IndexURL)
	}
	fmt.Println("Generation finished successfully.")
}

// offlineGenerator builds a generator for commands that only touch the
// output directory, so no database is opened.
func offlineGenerator(root *RootOptions) (*engine.Generator, *models.Settings, error) {
	cfg := config.LoadConfig()
	s, err := config.LoadSettings(root.ConfigFile)
	if err != nil {
		return nil, nil, err
	}
	cfg.Apply(s)
	gen, err := engine.New(generatorOptions(s, false))
	if err != nil {
		return nil, nil, err
	}
	return gen, s, nil
}

func runClean(root *RootOptions) error {
	gen, s, err := offlineGenerator(root)
	if err != nil {
		return err
	}
	n, err := gen.Clean()
	if err != nil {
		return skipOnContention(err)
	}
	fmt.Printf("Removed %d files from %s\n", n, config.OutputDir(s))
	return nil
}

func runIndex(root *RootOptions) error {
	gen, _, err := offlineGenerator(root)
	if err != nil {
		return err
	}
	path, err := gen.RebuildIndex()
	if err != nil {
		return skipOnContention(err)
	}
	fmt.Printf("Index written to %s\n", path)
	return nil
}

func runPing(ctx context.Context, root *RootOptions) error {
	_, s, err := offlineGenerator(root)
	if err != nil {
		return err
	}
	indexURL, err := sitemap.FileURL(config.SitemapURL(s), sitemap.IndexFileName(s.GzipEnabled()))
	if err != nil {
		return err
	}
	pinger, err := sitemap.NewPinger(s.Ping)
	if err != nil {
		return err
	}
	if err := pinger.Ping(ctx, indexURL); err != nil {
		return err
	}
	fmt.Printf("Pinged %d search engines with %s\n", len(pinger.URLs), indexURL)
	return nil
}
