package sitemap

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/BartekS5/bigsitemap/pkg/logger"
)

// DefaultPingURLs are the search engine endpoints notified when no others are
// configured. %s is replaced with the escaped index URL.
var DefaultPingURLs = []string{
	"https://www.google.com/webmasters/tools/ping?sitemap=%s",
	"https://www.bing.com/webmaster/ping.aspx?siteMap=%s",
}

// Pinger tells search engines that the sitemap index changed. Requests run
// concurrently and are not retried.
type Pinger struct {
	Client *http.Client
	URLs   []string
}

func NewPinger(urls []string) (*Pinger, error) {
	if len(urls) == 0 {
		urls = DefaultPingURLs
	}
	for _, u := range urls {
		if err := ValidatePingURL(u); err != nil {
			return nil, err
		}
	}
	return &Pinger{Client: &http.Client{Timeout: 30 * time.Second}, URLs: urls}, nil
}

// ValidatePingURL checks that template holds exactly one %s and parses as a URL.
func ValidatePingURL(template string) error {
	if strings.Count(template, "%s") != 1 || strings.Count(template, "%") != 1 {
		return fmt.Errorf("ping url %q must contain a single %%s", template)
	}
	if _, err := url.ParseRequestURI(fmt.Sprintf(template, "x")); err != nil {
		return fmt.Errorf("ping url %q: %w", template, err)
	}
	return nil
}

// Ping notifies every engine about indexURL. One failing engine does not
// cancel the others; the first failure is returned once all have finished.
func (p *Pinger) Ping(ctx context.Context, indexURL string) error {
	escaped := url.QueryEscape(indexURL)
	var g errgroup.Group
	for _, tmpl := range p.URLs {
		target := fmt.Sprintf(tmpl, escaped)
		g.Go(func() error {
			if err := p.ping(ctx, target); err != nil {
				logger.Errorf("ping %s failed: %v", target, err)
				return err
			}
			logger.Infof("Pinged %s", target)
			return nil
		})
	}
	return g.Wait()
}

func (p *Pinger) ping(ctx context.Context, target string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ping %s: unexpected status %s", target, resp.Status)
	}
	return nil
}
