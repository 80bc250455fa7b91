// Package config loads the environment and the sitemap settings file.
package config

import (
	"fmt"
	"os"

	"github.com/BartekS5/bigsitemap/pkg/models"
)

// Drivers a source can be read through.
const (
	DriverSQLServer = "sqlserver"
	DriverSQLite    = "sqlite"
	DriverMongo     = "mongo"
)

// Config holds connection settings, typically loaded from environment
// variables (which should be populated by the .env file in main.go).
type Config struct {
	SQLConnString   string
	SQLitePath      string
	MongoConnString string
	MongoDatabase   string
	BaseURL         string
}

// LoadConfig reads the environment. Connection strings are optional here;
// Require reports the ones a run actually needs.
func LoadConfig() *Config {
	return &Config{
		SQLConnString:   os.Getenv("SQL_CONNECTION_STRING"),
		SQLitePath:      os.Getenv("SQLITE_PATH"),
		MongoConnString: os.Getenv("MONGO_CONNECTION_STRING"),
		MongoDatabase:   os.Getenv("MONGO_DATABASE"),
		BaseURL:         os.Getenv("SITEMAP_BASE_URL"),
	}
}

// Require checks that the connection settings of driver are present.
func (c *Config) Require(driver string) error {
	var missing string
	switch driver {
	case DriverSQLServer:
		if c.SQLConnString == "" {
			missing = "SQL_CONNECTION_STRING"
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			missing = "SQLITE_PATH"
		}
	case DriverMongo:
		if c.MongoConnString == "" {
			missing = "MONGO_CONNECTION_STRING"
		} else if c.MongoDatabase == "" {
			missing = "MONGO_DATABASE"
		}
	default:
		return fmt.Errorf("%w: unknown driver %q", models.ErrConfiguration, driver)
	}
	if missing != "" {
		return fmt.Errorf("%w: %s environment variable not set", models.ErrConfiguration, missing)
	}
	return nil
}

// Apply overrides settings with values from the environment.
func (c *Config) Apply(s *models.Settings) {
	if c.BaseURL != "" {
		s.BaseURL = c.BaseURL
	}
}
