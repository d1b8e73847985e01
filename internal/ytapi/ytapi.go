// Package ytapi is a thin client for the two read-only YouTube Data API v3
// list operations the collector needs. Responses are handed back as loosely
// typed gabs containers; resolving them into canonical rows is the mapper's
// job, not this package's.
package ytapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/Jeffail/gabs/v2"
	"golang.org/x/time/rate"

	"fknsrs.biz/p/ytmeta/internal/ctxhttpclient"
)

const (
	DefaultBaseURL  = "https://www.googleapis.com"
	DefaultPageSize = 50
)

var (
	// ErrCommentsDisabled is returned when the provider reports that comments
	// are turned off for a video. Terminal for that video this pass, but not
	// fatal.
	ErrCommentsDisabled = fmt.Errorf("ytapi: comments are disabled for this video")
)

// Page is one page of a paginated list result. An empty NextPageToken means
// end of results.
type Page struct {
	Items         []*gabs.Container
	NextPageToken string
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

func WithPageSize(pageSize int) Option {
	return func(c *Client) {
		c.pageSize = pageSize
	}
}

// WithRateLimiter adds a client-side requests-per-second cap, separate from
// the call-count quota.
func WithRateLimiter(limiter *rate.Limiter) Option {
	return func(c *Client) {
		c.limiter = limiter
	}
}

type Client struct {
	apiKey   string
	baseURL  string
	pageSize int
	limiter  *rate.Limiter
}

func NewClient(apiKey string, options ...Option) *Client {
	c := &Client{
		apiKey:   apiKey,
		baseURL:  DefaultBaseURL,
		pageSize: DefaultPageSize,
	}

	for _, option := range options {
		option(c)
	}

	return c
}

// ListChannelActivities fetches one page of a channel's activity feed. An
// empty pageToken requests the first page.
func (c *Client) ListChannelActivities(ctx context.Context, channelID, pageToken string) (*Page, error) {
	q := url.Values{}
	q.Set("part", "snippet,contentDetails")
	q.Set("channelId", channelID)

	page, err := c.list(ctx, "/youtube/v3/activities", q, pageToken)
	if err != nil {
		return nil, fmt.Errorf("ytapi.ListChannelActivities: %w", err)
	}

	return page, nil
}

// ListVideoComments fetches one page of a video's top-level comment threads,
// each with any replies the provider chose to inline.
func (c *Client) ListVideoComments(ctx context.Context, videoID, pageToken string) (*Page, error) {
	q := url.Values{}
	q.Set("part", "snippet,replies")
	q.Set("videoId", videoID)

	page, err := c.list(ctx, "/youtube/v3/commentThreads", q, pageToken)
	if err != nil {
		return nil, fmt.Errorf("ytapi.ListVideoComments: %w", err)
	}

	return page, nil
}

func (c *Client) list(ctx context.Context, path string, q url.Values, pageToken string) (*Page, error) {
	q.Set("key", c.apiKey)
	q.Set("maxResults", strconv.Itoa(c.pageSize))
	if pageToken != "" {
		q.Set("pageToken", pageToken)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("list: rate limiter: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}

	res, err := ctxhttpclient.GetHTTPClient(ctx).Do(req)
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	defer res.Body.Close()

	d, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list: %w", makeStatusError(res.StatusCode, d))
	}

	j, err := gabs.ParseJSON(d)
	if err != nil {
		return nil, fmt.Errorf("list: could not parse response body: %w", err)
	}

	page := &Page{}

	// an absent items key is end-of-stream, not an error
	if j.ExistsP("items") {
		page.Items = j.Path("items").Children()
	}

	if j.ExistsP("nextPageToken") {
		if s, ok := j.Path("nextPageToken").Data().(string); ok {
			page.NextPageToken = s
		}
	}

	return page, nil
}

func makeStatusError(statusCode int, body []byte) error {
	if j, err := gabs.ParseJSON(body); err == nil {
		for _, e := range j.Path("error.errors").Children() {
			if reason, ok := e.Path("reason").Data().(string); ok && reason == "commentsDisabled" {
				return ErrCommentsDisabled
			}
		}

		if message, ok := j.Path("error.message").Data().(string); ok && message != "" {
			return fmt.Errorf("status code %d: %s", statusCode, message)
		}
	}

	return fmt.Errorf("status code %d", statusCode)
}
