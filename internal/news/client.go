// Package news is a read-only client for the crypto news API.
package news

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	defaultBaseURL = "https://min-api.cryptocompare.com"
	defaultLimit   = 6
)

// Article is one news item.
type Article struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	ImageURL    string    `json:"imageUrl"`
	PublishedAt time.Time `json:"publishedAt"`
}

// Config holds news API configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client calls the news REST API.
type Client struct {
	rc *resty.Client
}

// New creates a news client.
func New(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		rc: resty.New().SetBaseURL(baseURL).SetTimeout(timeout),
	}
}

type newsResponse struct {
	Message string `json:"Message"`
	Data    []struct {
		ID          string `json:"id"`
		Title       string `json:"title"`
		Body        string `json:"body"`
		URL         string `json:"url"`
		Source      string `json:"source"`
		ImageURL    string `json:"imageurl"`
		PublishedOn int64  `json:"published_on"`
	} `json:"Data"`
}

// Latest returns the most popular English-language articles.
func (c *Client) Latest(ctx context.Context, limit int) ([]Article, error) {
	if limit <= 0 {
		limit = defaultLimit
	}

	var result newsResponse
	resp, err := c.rc.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"lang":      "EN",
			"sortOrder": "popular",
			"limit":     strconv.Itoa(limit),
		}).
		SetResult(&result).
		Get("/data/v2/news/")
	if err != nil {
		return nil, fmt.Errorf("news API request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("news API returned %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}

	articles := make([]Article, 0, len(result.Data))
	for _, item := range result.Data {
		articles = append(articles, Article{
			ID:          item.ID,
			Title:       item.Title,
			Body:        item.Body,
			URL:         item.URL,
			Source:      item.Source,
			ImageURL:    item.ImageURL,
			PublishedAt: time.Unix(item.PublishedOn, 0).UTC(),
		})
	}
	return articles, nil
}
