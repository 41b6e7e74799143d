package forum

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
)

// Config holds forum client configuration.
type Config struct {
	BaseURL     string
	CategoryURL string
	TCookie     string // "_t" session cookie value
	Session     string // "_forum_session" cookie value
	Timeout     time.Duration
	UserAgent   string
}

// Topic is a titled link extracted from the forum category listing.
type Topic struct {
	Title string
	URL   string
}

// Client talks to a session-based forum using browser cookies.
type Client struct {
	baseURL    *url.URL
	category   string
	userAgent  string
	cookies    []*http.Cookie
	httpClient *http.Client
}

// New creates a forum client. Both session cookies must be present;
// there is no anonymous access to the category listing.
func New(config Config) (*Client, error) {
	if config.TCookie == "" {
		return nil, fmt.Errorf("cookie %q is empty", "_t")
	}
	if config.Session == "" {
		return nil, fmt.Errorf("cookie %q is empty", "_forum_session")
	}

	base, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid forum base URL: %w", err)
	}

	if config.Timeout == 0 {
		config.Timeout = 15 * time.Second
	}
	if config.UserAgent == "" {
		config.UserAgent = "course-rag/1.0"
	}

	cookies := []*http.Cookie{
		{Name: "_t", Value: config.TCookie, Domain: base.Hostname(), Path: "/"},
		{Name: "_forum_session", Value: config.Session, Domain: base.Hostname(), Path: "/"},
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	jar.SetCookies(base, cookies)

	return &Client{
		baseURL:   base,
		category:  config.CategoryURL,
		userAgent: config.UserAgent,
		cookies:   cookies,
		httpClient: &http.Client{
			Jar:     jar,
			Timeout: config.Timeout,
		},
	}, nil
}

// Owns reports whether the URL belongs to this forum.
func (c *Client) Owns(pageURL string) bool {
	return strings.HasPrefix(pageURL, c.baseURL.String())
}

// currentSession mirrors the forum's session endpoint response.
type currentSession struct {
	CurrentUser struct {
		Username string `json:"username"`
	} `json:"current_user"`
}

// VerifyAuth checks the session cookies against the forum and returns
// the authenticated username. Callers treat a failure here as fatal.
func (c *Client) VerifyAuth(ctx context.Context) (string, error) {
	endpoint := c.baseURL.JoinPath("session", "current.json").String()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("session check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("authentication failed with status %d", resp.StatusCode)
	}

	var session currentSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return "", fmt.Errorf("failed to decode session response: %w", err)
	}

	slog.Info("authenticated against forum", "username", session.CurrentUser.Username)
	return session.CurrentUser.Username, nil
}

// Topics crawls the configured category listing page and returns its
// titled topic links in document order.
func (c *Client) Topics(ctx context.Context) ([]Topic, error) {
	var topics []Topic

	collector := colly.NewCollector(
		colly.MaxDepth(1),
		colly.UserAgent(c.userAgent),
	)
	collector.SetRequestTimeout(c.httpClient.Timeout)
	if err := collector.SetCookies(c.baseURL.String(), c.cookies); err != nil {
		return nil, fmt.Errorf("failed to set session cookies: %w", err)
	}

	collector.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
		}
	})

	collector.OnHTML("a.title[href]", func(e *colly.HTMLElement) {
		topics = append(topics, Topic{
			Title: strings.TrimSpace(e.Text),
			URL:   e.Request.AbsoluteURL(e.Attr("href")),
		})
	})

	if err := collector.Visit(c.category); err != nil {
		return nil, fmt.Errorf("failed to crawl category listing: %w", err)
	}
	collector.Wait()

	if err := ctx.Err(); err != nil {
		return topics, err
	}

	slog.Debug("crawled category listing", "url", c.category, "topics", len(topics))
	return topics, nil
}

// FetchPage performs an authenticated GET and returns the raw HTML.
func (c *Client) FetchPage(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("fetch %s failed with status %d", pageURL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	return string(body), nil
}
