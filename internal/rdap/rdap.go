// Package rdap answers whether a domain is still registered by asking the
// RDAP service responsible for its TLD.
package rdap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/benithors/dotgrab/internal/domain"
)

const DefaultBootstrapURL = "https://data.iana.org/rdap/dns.json"

// ErrNoService is returned when the bootstrap registry has no RDAP server for
// the TLD. Callers should treat the answer as unknown.
var ErrNoService = errors.New("no rdap service for tld")

type Options struct {
	BootstrapURL string
	CacheDir     string
	CacheTTL     time.Duration
	Timeout      time.Duration
	Logger       *log.Entry
}

type Client struct {
	opts Options
	http *http.Client
	log  *log.Entry

	mu      sync.Mutex
	servers map[string][]string
}

func NewClient(opts Options) *Client {
	if opts.BootstrapURL == "" {
		opts.BootstrapURL = DefaultBootstrapURL
	}
	if opts.CacheTTL == 0 {
		opts.CacheTTL = 7 * 24 * time.Hour
	}
	if opts.Timeout == 0 {
		opts.Timeout = 8 * time.Second
	}
	if opts.CacheDir == "" {
		if d, err := os.UserCacheDir(); err == nil && d != "" {
			opts.CacheDir = filepath.Join(d, "dotgrab")
		}
	}
	if opts.Logger == nil {
		opts.Logger = log.New().WithField("component", "rdap")
	}
	return &Client{
		opts: opts,
		http: &http.Client{Timeout: opts.Timeout},
		log:  opts.Logger,
	}
}

// Registered reports whether name has an RDAP record. A 404 from every
// server means the name is free; any other non-200 answer is an error.
func (c *Client) Registered(ctx context.Context, name string) (bool, error) {
	_, tld := domain.Split(name)
	if tld == "" {
		return false, fmt.Errorf("rdap: invalid domain %q", name)
	}
	servers, err := c.serversFor(ctx, tld)
	if err != nil {
		return false, err
	}

	var lastErr error
	for _, base := range servers {
		registered, err := c.query(ctx, base, name)
		if err == nil {
			return registered, nil
		}
		c.log.WithError(err).WithField("server", base).Debug("rdap query failed")
		lastErr = err
	}
	return false, lastErr
}

func (c *Client) query(ctx context.Context, base, name string) (bool, error) {
	u := strings.TrimRight(base, "/") + "/domain/" + url.PathEscape(name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("accept", "application/rdap+json, application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 512))

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("rdap %s: http %d", u, resp.StatusCode)
	}
}

func (c *Client) serversFor(ctx context.Context, tld string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.servers == nil {
		m, err := c.loadBootstrap(ctx)
		if err != nil {
			return nil, fmt.Errorf("rdap bootstrap: %w", err)
		}
		c.servers = m
	}
	s := c.servers[strings.ToLower(tld)]
	if len(s) == 0 {
		return nil, fmt.Errorf("%w %q", ErrNoService, tld)
	}
	return s, nil
}

func (c *Client) cachePath() string {
	if c.opts.CacheDir == "" {
		return ""
	}
	return filepath.Join(c.opts.CacheDir, "rdap-dns.json")
}

// loadBootstrap prefers a fresh cache, then the network, then a stale cache.
func (c *Client) loadBootstrap(ctx context.Context) (map[string][]string, error) {
	path := c.cachePath()
	if path != "" {
		if st, err := os.Stat(path); err == nil && time.Since(st.ModTime()) <= c.opts.CacheTTL {
			if m, err := readBootstrap(path); err == nil {
				return m, nil
			}
		}
	}

	body, err := c.fetchBootstrap(ctx)
	if err != nil {
		if path != "" {
			if m, rerr := readBootstrap(path); rerr == nil {
				c.log.WithError(err).Debug("using stale rdap bootstrap")
				return m, nil
			}
		}
		return nil, err
	}
	m, err := parseBootstrap(body)
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := writeCache(path, body); err != nil {
			c.log.WithError(err).Debug("could not cache rdap bootstrap")
		}
	}
	return m, nil
}

func (c *Client) fetchBootstrap(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.BootstrapURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 10<<20))
}

func readBootstrap(path string) (map[string][]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseBootstrap(b)
}

func writeCache(path string, body []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "rdap-dns-*.json")
	if err != nil {
		return err
	}
	_, werr := tmp.Write(body)
	cerr := tmp.Close()
	if werr != nil || cerr != nil {
		_ = os.Remove(tmp.Name())
		return errors.Join(werr, cerr)
	}
	return os.Rename(tmp.Name(), path)
}

type bootstrapJSON struct {
	Services [][][]string `json:"services"`
}

func parseBootstrap(b []byte) (map[string][]string, error) {
	var raw bootstrapJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, err
	}
	m := make(map[string][]string, 2048)
	for _, svc := range raw.Services {
		if len(svc) != 2 {
			continue
		}
		urls := cleanURLs(svc[1])
		for _, tld := range svc[0] {
			tld = strings.ToLower(strings.TrimSpace(tld))
			if tld != "" {
				m[tld] = urls
			}
		}
	}
	return m, nil
}

func cleanURLs(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]struct{}{}
	for _, u := range in {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if _, err := url.Parse(u); err != nil {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
