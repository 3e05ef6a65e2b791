// Package fetch downloads catalog pages politely: browser-like headers,
// jittered spacing between requests to the same host, a hard per-request
// timeout and bounded retries of transient failures.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"matchastock/internal/metrics"
)

const (
	DefaultTimeout  = 30 * time.Second
	DefaultMinDelay = 2 * time.Second
	DefaultMaxDelay = 4 * time.Second

	// MaxBodySize caps how much of a page is read (10MB).
	MaxBodySize = 10 * 1024 * 1024

	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
)

type Kind int

const (
	KindTimeout Kind = iota + 1
	KindHTTP
	KindNetwork
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindHTTP:
		return "http"
	case KindNetwork:
		return "network"
	}
	return "unknown"
}

var ErrBodyTooLarge = errors.New("response body too large")

// Error is a failed page fetch. Status is set for KindHTTP only.
type Error struct {
	Kind   Kind
	URL    string
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Kind == KindHTTP {
		return fmt.Sprintf("fetch %s: http status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Transient reports whether retrying the request may succeed: timeouts,
// network failures and 5xx responses.
func (e *Error) Transient() bool {
	switch e.Kind {
	case KindTimeout:
		return true
	case KindNetwork:
		return !errors.Is(e.Err, ErrBodyTooLarge)
	case KindHTTP:
		return e.Status >= 500
	}
	return false
}

type Options struct {
	Timeout   time.Duration
	MinDelay  time.Duration
	MaxDelay  time.Duration
	Retries   int
	UserAgent string
	Client    *http.Client
	Logger    *zap.Logger

	// Hooks for tests. Rand returns a value in [0,1).
	Rand  func() float64
	Sleep func(ctx context.Context, d time.Duration) error
	Now   func() time.Time
}

type Fetcher struct {
	client *http.Client
	opts   Options
	log    *zap.Logger

	mu   sync.Mutex
	next map[string]time.Time
}

func New(opts Options) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MinDelay < 0 {
		opts.MinDelay = 0
	}
	if opts.MaxDelay < opts.MinDelay {
		opts.MaxDelay = opts.MinDelay
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Rand == nil {
		opts.Rand = rand.Float64
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepCtx
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{
			Transport: &http.Transport{
				Proxy:           http.ProxyFromEnvironment,
				MaxIdleConns:    20,
				IdleConnTimeout: 90 * time.Second,
			},
		}
	}
	l := opts.Logger
	if l == nil {
		l = zap.NewNop()
	}
	return &Fetcher{client: client, opts: opts, log: l, next: map[string]time.Time{}}
}

// Fetch returns the body of rawURL. Failures are *Error values unless ctx
// itself ended, in which case ctx.Err() is returned.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err == nil && u.Host == "" {
		err = errors.New("missing host")
	}
	if err != nil {
		return "", &Error{Kind: KindNetwork, URL: rawURL, Err: fmt.Errorf("invalid url: %w", err)}
	}

	var last *Error
	for attempt := 0; attempt <= f.opts.Retries; attempt++ {
		if err := f.opts.Sleep(ctx, f.reserve(u.Host)); err != nil {
			return "", err
		}
		body, ferr := f.do(ctx, u)
		if ferr == nil {
			return body, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		last = ferr
		if !ferr.Transient() {
			break
		}
		if attempt < f.opts.Retries {
			f.log.Warn("fetch retry",
				zap.String("url", rawURL),
				zap.Int("attempt", attempt+1),
				zap.Error(ferr),
			)
		}
	}
	return "", last
}

func (f *Fetcher) do(ctx context.Context, u *url.URL) (string, *Error) {
	ctx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	start := f.opts.Now()
	body, ferr := f.get(ctx, u)
	outcome := "ok"
	if ferr != nil {
		outcome = ferr.Kind.String()
		if ferr.Kind == KindHTTP {
			outcome = fmt.Sprintf("http_%dxx", ferr.Status/100)
		}
	}
	metrics.RecordFetch(u.Host, outcome, f.opts.Now().Sub(start).Seconds())
	return body, ferr
}

func (f *Fetcher) get(ctx context.Context, u *url.URL) (string, *Error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", &Error{Kind: KindNetwork, URL: u.String(), Err: err}
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("Upgrade-Insecure-Requests", "1")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", classify(u.String(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		return "", &Error{Kind: KindHTTP, URL: u.String(), Status: resp.StatusCode}
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize+1))
	if err != nil {
		return "", classify(u.String(), err)
	}
	if len(b) > MaxBodySize {
		return "", &Error{Kind: KindNetwork, URL: u.String(), Err: ErrBodyTooLarge}
	}
	return string(b), nil
}

func classify(u string, err error) *Error {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return &Error{Kind: KindTimeout, URL: u, Err: err}
	}
	return &Error{Kind: KindNetwork, URL: u, Err: err}
}

// reserve books the next request slot for host and returns how long the
// caller must wait for it. The first request to a host goes out at once;
// later ones start at least a jittered delay after the previous slot.
func (f *Fetcher) reserve(host string) time.Duration {
	now := f.opts.Now()
	gap := f.opts.MinDelay + time.Duration(f.opts.Rand()*float64(f.opts.MaxDelay-f.opts.MinDelay))

	f.mu.Lock()
	defer f.mu.Unlock()
	start := now
	if next, ok := f.next[host]; ok && next.After(now) {
		start = next
	}
	f.next[host] = start.Add(gap)
	return start.Sub(now)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
