package models

import "encoding/json"

// Settings represents the root of the sitemap settings file.
type Settings struct {
	BaseURL       string          `json:"baseUrl" toml:"base_url"`
	DocumentRoot  string          `json:"documentRoot" toml:"document_root"`
	Path          string          `json:"path" toml:"path"`
	Gzip          *bool           `json:"gzip,omitempty" toml:"gzip,omitempty"`
	BatchSize     int64           `json:"batchSize" toml:"batch_size"`
	MaxPerFile    int64           `json:"maxPerFile" toml:"max_per_file"`
	PartialUpdate bool            `json:"partialUpdate" toml:"partial_update"`
	Ping          []string        `json:"ping,omitempty" toml:"ping,omitempty"`
	Sources       []SourceMapping `json:"sources" toml:"sources"`
	Static        []StaticPage    `json:"static,omitempty" toml:"static,omitempty"`
}

// GzipEnabled reports whether output should be compressed. Compression is on
// unless explicitly disabled.
func (s *Settings) GzipEnabled() bool {
	return s.Gzip == nil || *s.Gzip
}

// SourceMapping describes how one table or collection becomes sitemap entries.
type SourceMapping struct {
	Name            string            `json:"name" toml:"name"`
	Driver          string            `json:"driver" toml:"driver"`
	Table           string            `json:"table,omitempty" toml:"table,omitempty"`
	Collection      string            `json:"collection,omitempty" toml:"collection,omitempty"`
	PrimaryKey      string            `json:"primaryKey,omitempty" toml:"primary_key,omitempty"`
	ParamColumn     string            `json:"paramColumn,omitempty" toml:"param_column,omitempty"`
	LastModColumn   string            `json:"lastModColumn,omitempty" toml:"lastmod_column,omitempty"`
	Location        string            `json:"location,omitempty" toml:"location,omitempty"`
	Path            string            `json:"path,omitempty" toml:"path,omitempty"`
	ChangeFrequency string            `json:"changeFrequency,omitempty" toml:"change_frequency,omitempty"`
	Priority        *float64          `json:"priority,omitempty" toml:"priority,omitempty"`
	BatchSize       int64             `json:"batchSize,omitempty" toml:"batch_size,omitempty"`
	MaxPerFile      int64             `json:"maxPerFile,omitempty" toml:"max_per_file,omitempty"`
	PartialUpdate   *bool             `json:"partialUpdate,omitempty" toml:"partial_update,omitempty"`
	Limit           int64             `json:"limit,omitempty" toml:"limit,omitempty"`
	Conditions      []ConditionConfig `json:"conditions,omitempty" toml:"conditions,omitempty"`
}

// ConditionConfig is a static predicate applied to every query of a source.
type ConditionConfig struct {
	Field string `json:"field" toml:"field"`
	Op    string `json:"op" toml:"op"`
	Value any    `json:"value" toml:"value"`
}

// StaticPage is a fixed URL added to the static sitemap.
type StaticPage struct {
	URL             string   `json:"url" toml:"url"`
	LastMod         string   `json:"lastMod,omitempty" toml:"lastmod,omitempty"`
	ChangeFrequency string   `json:"changeFrequency,omitempty" toml:"change_frequency,omitempty"`
	Priority        *float64 `json:"priority,omitempty" toml:"priority,omitempty"`
}

func LoadSettingsJSON(data []byte) (*Settings, error) {
	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
