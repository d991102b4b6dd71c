// Package reddit implements lead.Forum over the Reddit OAuth API using the
// application-only (client credentials) grant.
package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/JakeFAU/freelance-lead-finder/internal/lead"
)

const (
	// DefaultBaseURL is the OAuth API host.
	DefaultBaseURL = "https://oauth.reddit.com"
	// DefaultTokenURL issues application-only tokens.
	DefaultTokenURL = "https://www.reddit.com/api/v1/access_token"
	// DefaultLimit is the page size requested per search; only the first page is read.
	DefaultLimit   = 100
	defaultTimeout = 15 * time.Second
	permalinkHost  = "https://www.reddit.com"
	maxErrorBody   = 512
)

// Config captures the parameters required to talk to Reddit.
type Config struct {
	ClientID     string
	ClientSecret string
	UserAgent    string
	BaseURL      string
	TokenURL     string
	Timeout      time.Duration
	Limit        int
}

// Client searches subreddits. It is safe for concurrent use.
type Client struct {
	baseURL string
	limit   int
	http    *http.Client
	tokens  oauth2.TokenSource
}

// New builds a Client. No network calls are made until Authenticate or Search.
func New(cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("reddit client id and secret are required")
	}
	if strings.TrimSpace(cfg.UserAgent) == "" {
		return nil, fmt.Errorf("reddit user agent is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}

	transport := &userAgentTransport{userAgent: cfg.UserAgent, base: http.DefaultTransport}
	tokenHTTP := &http.Client{Timeout: cfg.Timeout, Transport: transport}
	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	tokens := cc.TokenSource(context.WithValue(context.Background(), oauth2.HTTPClient, tokenHTTP))

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		limit:   cfg.Limit,
		tokens:  tokens,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: &oauth2.Transport{Source: tokens, Base: transport},
		},
	}, nil
}

// Authenticate fetches an access token, reusing a cached one while valid.
func (c *Client) Authenticate(_ context.Context) error {
	if _, err := c.tokens.Token(); err != nil {
		return fmt.Errorf("reddit authenticate: %w", err)
	}
	return nil
}

// Search runs a restricted subreddit search and returns the first page of posts.
func (c *Client) Search(ctx context.Context, query lead.SearchQuery) ([]lead.Post, error) {
	if strings.TrimSpace(query.Channel) == "" {
		return nil, fmt.Errorf("channel is required")
	}
	params := url.Values{}
	params.Set("q", query.Keyword)
	params.Set("restrict_sr", "1")
	params.Set("sort", valueOr(query.Sort, "new"))
	params.Set("t", valueOr(query.Window, "week"))
	params.Set("limit", strconv.Itoa(c.limit))
	params.Set("raw_json", "1")
	endpoint := fmt.Sprintf("%s/r/%s/search?%s", c.baseURL, url.PathEscape(query.Channel), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search r/%s: %w", query.Channel, err)
	}
	defer resp.Body.Close() //nolint:errcheck // body fully consumed below

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("search r/%s: unexpected status %d: %s",
			query.Channel, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var payload listing
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode search r/%s: %w", query.Channel, err)
	}
	posts := make([]lead.Post, 0, len(payload.Data.Children))
	for _, child := range payload.Data.Children {
		if child.Kind != "" && child.Kind != "t3" {
			continue
		}
		posts = append(posts, child.Data.toPost(query.Channel))
	}
	return posts, nil
}

type listing struct {
	Data struct {
		Children []struct {
			Kind string   `json:"kind"`
			Data postData `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type postData struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Selftext    string  `json:"selftext"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	Author      string  `json:"author"`
	URL         string  `json:"url"`
	Permalink   string  `json:"permalink"`
	Subreddit   string  `json:"subreddit"`
	CreatedUTC  float64 `json:"created_utc"`
}

func (p postData) toPost(channel string) lead.Post {
	link := p.URL
	if link == "" && p.Permalink != "" {
		link = permalinkHost + p.Permalink
	}
	if p.Subreddit != "" {
		channel = p.Subreddit
	}
	var created time.Time
	if p.CreatedUTC > 0 {
		created = time.Unix(int64(p.CreatedUTC), 0).UTC()
	}
	return lead.Post{
		ID:           p.ID,
		Title:        p.Title,
		Body:         p.Selftext,
		Score:        p.Score,
		CommentCount: p.NumComments,
		Author:       p.Author,
		URL:          link,
		Channel:      channel,
		CreatedAt:    created,
	}
}

type userAgentTransport struct {
	userAgent string
	base      http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set("User-Agent", t.userAgent)
	return t.base.RoundTrip(clone) //nolint:wrapcheck // transport errors are wrapped by http.Client
}

func valueOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
