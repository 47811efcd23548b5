package crawl

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/temoto/robotstxt"
	"golang.org/x/sync/singleflight"
)

// maxRobotsBytes bounds the robots.txt body read per host.
const maxRobotsBytes = 512 << 10

// RobotsPolicy answers whether a URL may be fetched according to its host's
// robots.txt. Each host's file is fetched once, the first time the host is
// asked about; concurrent first requests share a single fetch.
//
// A 4xx response allows everything and a 5xx or transport failure disallows
// everything on that host. A Crawl-delay for the user agent slows the host
// down in Limiter.
type RobotsPolicy struct {
	Client    *http.Client
	UserAgent string

	// Limiter, if set, is waited on before each robots.txt request.
	Limiter *HostLimiter

	mu    sync.Mutex
	cache map[string]*robotstxt.RobotsData // scheme://host -> rules
	group singleflight.Group
}

// NewRobotsPolicy creates a RobotsPolicy using client for robots.txt requests.
func NewRobotsPolicy(client *http.Client, userAgent string, limiter *HostLimiter) *RobotsPolicy {
	if client == nil {
		client = http.DefaultClient
	}
	return &RobotsPolicy{
		Client:    client,
		UserAgent: userAgent,
		Limiter:   limiter,
		cache:     make(map[string]*robotstxt.RobotsData),
	}
}

// Allowed reports whether rawURL may be fetched. The returned error
// describes a robots.txt retrieval failure; the decision is still valid.
func (p *RobotsPolicy) Allowed(ctx context.Context, rawURL string) (bool, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false, err
	}
	data, err := p.load(ctx, u.Scheme+"://"+u.Host)
	return data.TestAgent(u.RequestURI(), p.UserAgent), err
}

// Load fetches and caches the robots.txt of the site at origin
// (scheme://host) if it is not cached yet.
func (p *RobotsPolicy) Load(ctx context.Context, origin string) error {
	_, err := p.load(ctx, origin)
	return err
}

func (p *RobotsPolicy) load(ctx context.Context, origin string) (*robotstxt.RobotsData, error) {
	p.mu.Lock()
	data, ok := p.cache[origin]
	p.mu.Unlock()
	if ok {
		return data, nil
	}

	var fetchErr error
	v, _, _ := p.group.Do(origin, func() (any, error) {
		data, err := p.fetch(ctx, origin)
		fetchErr = err
		p.mu.Lock()
		p.cache[origin] = data
		p.mu.Unlock()
		return data, nil
	})
	data, _ = v.(*robotstxt.RobotsData)
	return data, fetchErr
}

// fetch always returns usable rules, falling back to disallow-all on
// transport errors.
func (p *RobotsPolicy) fetch(ctx context.Context, origin string) (*robotstxt.RobotsData, error) {
	disallowAll, _ := robotstxt.FromStatusAndBytes(http.StatusServiceUnavailable, nil)

	if p.Limiter != nil {
		if err := p.Limiter.Wait(ctx, hostOf(origin+"/")); err != nil {
			return disallowAll, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return disallowAll, err
	}
	if p.UserAgent != "" {
		req.Header.Set("User-Agent", p.UserAgent)
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return disallowAll, fmt.Errorf("fetch robots.txt for %s: %w", origin, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBytes))
	if err != nil {
		return disallowAll, fmt.Errorf("read robots.txt for %s: %w", origin, err)
	}

	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		allowAll, _ := robotstxt.FromStatusAndBytes(http.StatusNotFound, nil)
		return allowAll, fmt.Errorf("parse robots.txt for %s: %w", origin, err)
	}
	if p.Limiter != nil {
		if g := data.FindGroup(p.UserAgent); g != nil && g.CrawlDelay > 0 {
			p.Limiter.SlowDown(hostOf(origin+"/"), g.CrawlDelay)
		}
	}
	return data, nil
}
