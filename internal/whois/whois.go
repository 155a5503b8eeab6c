// Package whois is the port-43 fallback for registration prechecks on TLDs
// whose registry runs no RDAP service.
package whois

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/eapache/go-resiliency/retrier"
	log "github.com/sirupsen/logrus"

	"github.com/benithors/dotgrab/internal/domain"
)

const ianaServer = "whois.iana.org"

// ErrAmbiguous means the server answered but the reply matched neither a
// record nor a not-found pattern.
var ErrAmbiguous = errors.New("whois reply ambiguous")

type Options struct {
	Timeout time.Duration
	// MinDelay spaces queries to the same server.
	MinDelay time.Duration
	Retries  int
	Backoff  time.Duration
	Logger   *log.Entry

	// dial is replaced in tests.
	dial func(ctx context.Context, addr string) (net.Conn, error)
}

type Client struct {
	opts  Options
	retry *retrier.Retrier
	log   *log.Entry

	mu      sync.Mutex
	servers map[string]string
	next    map[string]time.Time
}

func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 8 * time.Second
	}
	if opts.MinDelay <= 0 {
		opts.MinDelay = 250 * time.Millisecond
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 250 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = log.New().WithField("component", "whois")
	}
	if opts.dial == nil {
		opts.dial = func(ctx context.Context, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(ctx, "tcp", addr)
		}
	}
	return &Client{
		opts:    opts,
		retry:   retrier.New(retrier.ExponentialBackoff(opts.Retries, opts.Backoff), classifier{}),
		log:     opts.Logger,
		servers: make(map[string]string, 16),
		next:    make(map[string]time.Time, 16),
	}
}

// Registered asks the registry's WHOIS server about name.
func (c *Client) Registered(ctx context.Context, name string) (bool, error) {
	_, tld := domain.Split(name)
	if tld == "" {
		return false, fmt.Errorf("whois: invalid domain %q", name)
	}
	server, err := c.serverFor(ctx, tld)
	if err != nil {
		return false, err
	}
	body, err := c.query(ctx, server, name)
	if err != nil {
		return false, fmt.Errorf("whois %s: %w", server, err)
	}
	registered, pattern, err := classify(name, body)
	if err != nil {
		return false, fmt.Errorf("whois %s: %w", server, err)
	}
	c.log.WithFields(log.Fields{"server": server, "pattern": pattern, "registered": registered}).Debug("whois answer")
	return registered, nil
}

func (c *Client) serverFor(ctx context.Context, tld string) (string, error) {
	tld = strings.ToLower(tld)
	c.mu.Lock()
	s, ok := c.servers[tld]
	c.mu.Unlock()
	if ok {
		return s, nil
	}

	body, err := c.query(ctx, ianaServer, tld)
	if err != nil {
		return "", fmt.Errorf("whois server for %q: %w", tld, err)
	}
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		// e.g. "whois:        whois.nic.fr"
		if !strings.HasPrefix(strings.ToLower(line), "whois:") {
			continue
		}
		fields := strings.Fields(line[len("whois:"):])
		if len(fields) == 0 {
			continue
		}
		c.mu.Lock()
		c.servers[tld] = fields[0]
		c.mu.Unlock()
		return fields[0], nil
	}
	return "", fmt.Errorf("no whois server for tld %q", tld)
}

func (c *Client) query(ctx context.Context, server, q string) (string, error) {
	var body string
	err := c.retry.RunCtx(ctx, func(ctx context.Context) error {
		var err error
		body, err = c.queryOnce(ctx, server, q)
		return err
	})
	return body, err
}

func (c *Client) queryOnce(ctx context.Context, server, q string) (string, error) {
	if err := c.pace(ctx, server); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	conn, err := c.opts.dial(ctx, net.JoinHostPort(server, "43"))
	if err != nil {
		return "", err
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(c.opts.Timeout))

	if _, err := io.WriteString(conn, q+"\r\n"); err != nil {
		return "", err
	}
	b, err := io.ReadAll(io.LimitReader(conn, 1<<20))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// pace waits until server may be queried again.
func (c *Client) pace(ctx context.Context, server string) error {
	c.mu.Lock()
	at := time.Now()
	if n := c.next[server]; at.Before(n) {
		at = n
	}
	c.next[server] = at.Add(c.opts.MinDelay)
	c.mu.Unlock()

	wait := time.Until(at)
	if wait <= 0 {
		return nil
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var notFound = []string{
	"no match for",
	"no data found",
	"no entries found",
	"domain not found",
	"no such domain",
	"status: free",
	"status: available",
	"not found",
}

func classify(name, body string) (registered bool, pattern string, err error) {
	l := strings.ToLower(body)
	for _, p := range notFound {
		if strings.Contains(l, p) {
			return false, p, nil
		}
	}

	re := regexp.MustCompile(`(?im)^\s*domain(?: name)?\s*:\s*` + regexp.QuoteMeta(name) + `\.?\s*$`)
	if re.MatchString(body) {
		return true, "domain record", nil
	}
	if strings.Contains(l, "registrar:") || strings.Contains(l, "creation date:") {
		return true, "record fields", nil
	}
	return false, "", ErrAmbiguous
}

type classifier struct{}

func (classifier) Classify(err error) retrier.Action {
	if err == nil {
		return retrier.Succeed
	}
	if isTransient(err) {
		return retrier.Retry
	}
	return retrier.Fail
}

func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	s := strings.ToLower(err.Error())
	for _, t := range []string{"connection reset", "broken pipe", "unexpected eof", "connection refused"} {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
