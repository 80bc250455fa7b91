// Package sitemap writes sitemaps.org 0.9 documents: capacity-bounded,
// optionally gzip-compressed sitemap files rotated per source, and the
// sitemap index that references them.
package sitemap

import (
	"encoding/xml"
	"fmt"
	"time"
)

// MaxURLs is the protocol limit of entries in one sitemap file.
const MaxURLs = 50000

// Schema represents an XML schema.
type Schema struct {
	Xmlns             string
	XmlnsXsi          string
	XsiSchemaLocation string
}

func (s Schema) attrs() []xml.Attr {
	return []xml.Attr{
		{Name: xml.Name{Local: "xmlns"}, Value: s.Xmlns},
		{Name: xml.Name{Local: "xmlns:xsi"}, Value: s.XmlnsXsi},
		{Name: xml.Name{Local: "xsi:schemaLocation"}, Value: s.XsiSchemaLocation},
	}
}

// SitemapSchema is the XML schema used for sitemaps.
var SitemapSchema = Schema{
	Xmlns:             "http://www.sitemaps.org/schemas/sitemap/0.9",
	XmlnsXsi:          "http://www.w3.org/2001/XMLSchema-instance",
	XsiSchemaLocation: "http://www.sitemaps.org/schemas/sitemap/0.9 http://www.sitemaps.org/schemas/sitemap/0.9/sitemap.xsd",
}

// SitemapIndexSchema is the XML schema used for sitemap indexes.
var SitemapIndexSchema = Schema{
	Xmlns:             "http://www.sitemaps.org/schemas/sitemap/0.9",
	XmlnsXsi:          "http://www.w3.org/2001/XMLSchema-instance",
	XsiSchemaLocation: "http://www.sitemaps.org/schemas/sitemap/0.9 http://www.sitemaps.org/schemas/sitemap/0.9/siteindex.xsd",
}

// ChangeFrequency is an optional attribute for sitemap entries.
type ChangeFrequency string

const (
	Always  ChangeFrequency = "always"
	Hourly  ChangeFrequency = "hourly"
	Daily   ChangeFrequency = "daily"
	Weekly  ChangeFrequency = "weekly"
	Monthly ChangeFrequency = "monthly"
	Yearly  ChangeFrequency = "yearly"
	Never   ChangeFrequency = "never"
)

// ParseChangeFrequency validates a configured frequency. Empty means Weekly.
func ParseChangeFrequency(s string) (ChangeFrequency, error) {
	switch f := ChangeFrequency(s); f {
	case "":
		return Weekly, nil
	case Always, Hourly, Daily, Weekly, Monthly, Yearly, Never:
		return f, nil
	}
	return "", fmt.Errorf("unknown change frequency %q", s)
}

// FileReference is a reference to a file (given by full URL) and the last modification.
type FileReference struct {
	Location         string `xml:"loc"`
	LastModification string `xml:"lastmod,omitempty"`
}

// Entry is a sitemap entry (a url block in the XML file).
type Entry struct {
	XMLName xml.Name `xml:"url"`
	FileReference
	ChangeFrequency ChangeFrequency `xml:"changefreq,omitempty"`
	Priority        *float64        `xml:"priority,omitempty"`
}

// NewEntry builds an entry; a zero lastMod is left out.
func NewEntry(location string, lastMod time.Time, freq ChangeFrequency, priority *float64) *Entry {
	return &Entry{
		FileReference:   FileReference{Location: location, LastModification: FormatTime(lastMod)},
		ChangeFrequency: freq,
		Priority:        priority,
	}
}

// IndexRef is a sitemap block of a sitemap index.
type IndexRef struct {
	XMLName xml.Name `xml:"sitemap"`
	FileReference
}

// FormatTime renders t as a W3C datetime, or "" for the zero time.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// URLSet and Index are the decoded forms of the documents written here.
type URLSet struct {
	XMLName xml.Name `xml:"urlset"`
	Entries []Entry  `xml:"url"`
}

type Index struct {
	XMLName xml.Name   `xml:"sitemapindex"`
	Refs    []IndexRef `xml:"sitemap"`
}
