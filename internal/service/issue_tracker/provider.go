package issue_tracker

import (
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"
	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"
)

type ProviderConfig struct {
	AppID      int64
	PrivateKey []byte
	Token      string // used when no App credentials are set
	APIURL     string // GitHub Enterprise API root; empty for github.com
}

func (c ProviderConfig) appEnabled() bool {
	return c.AppID != 0 && len(c.PrivateKey) > 0
}

type githubProvider struct {
	cfg  ProviderConfig
	base http.RoundTripper

	mu      sync.Mutex
	clients map[int64]*gh.Client
}

// NewGitHubProvider builds trackers on this transport stack:
//  1. httpcache, revalidated on every GET so comment lists are never stale
//  2. go-github-ratelimit (sleeps on secondary rate limits)
//  3. installation token (GitHub App) or personal access token auth
//
// Installation clients are kept so their tokens are reused until expiry.
func NewGitHubProvider(cfg ProviderConfig) (Provider, error) {
	if !cfg.appEnabled() && cfg.Token == "" {
		return nil, fmt.Errorf("github credentials required: app id and private key, or a token")
	}

	cache := httpcache.NewMemoryCacheTransport()
	rateLimited := github_ratelimit.NewClient(revalidate{next: cache})

	return &githubProvider{
		cfg:     cfg,
		base:    rateLimited.Transport,
		clients: make(map[int64]*gh.Client),
	}, nil
}

func (p *githubProvider) ForInstallation(installationID int64) (IssueTracker, error) {
	if !p.cfg.appEnabled() {
		installationID = 0 // one token serves every installation
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if client, ok := p.clients[installationID]; ok {
		return NewGitHubIssueTracker(client), nil
	}

	client, err := p.newClient(installationID)
	if err != nil {
		return nil, err
	}
	p.clients[installationID] = client

	return NewGitHubIssueTracker(client), nil
}

func (p *githubProvider) newClient(installationID int64) (*gh.Client, error) {
	if !p.cfg.appEnabled() {
		client := gh.NewClient(&http.Client{Transport: p.base}).WithAuthToken(p.cfg.Token)
		return withEnterprise(client, p.cfg.APIURL)
	}

	if installationID == 0 {
		return nil, fmt.Errorf("installation id required for github app auth")
	}

	itr, err := ghinstallation.New(p.base, p.cfg.AppID, installationID, p.cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("creating installation transport: %w", err)
	}

	client, err := withEnterprise(gh.NewClient(&http.Client{Transport: itr}), p.cfg.APIURL)
	if err != nil {
		return nil, err
	}
	itr.BaseURL = strings.TrimSuffix(client.BaseURL.String(), "/")

	return client, nil
}

func withEnterprise(client *gh.Client, apiURL string) (*gh.Client, error) {
	if apiURL == "" {
		return client, nil
	}
	client, err := client.WithEnterpriseURLs(apiURL, apiURL)
	if err != nil {
		return nil, fmt.Errorf("configuring github api url: %w", err)
	}
	return client, nil
}

// revalidate asks the cache to confirm GET responses with the server
// (If-None-Match) instead of serving them fresh for GitHub's max-age.
// A 304 does not count against the primary rate limit.
type revalidate struct {
	next http.RoundTripper
}

func (r revalidate) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet {
		return r.next.RoundTrip(req)
	}
	req = req.Clone(req.Context())
	req.Header.Set("Cache-Control", "max-age=0")
	return r.next.RoundTrip(req)
}
