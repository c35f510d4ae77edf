// Package market is a read-only client for the hosted market-data API.
package market

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://api.coingecko.com/api/v3"

// The public tier allows roughly 30 calls/minute; stay under it.
const defaultRatePerMinute = 25

// Config holds market API configuration. An empty APIKey falls back to the
// COINGECKO_API_KEY environment variable; the key is optional on the public
// tier.
type Config struct {
	BaseURL       string
	APIKey        string
	RatePerMinute int
	Timeout       time.Duration
}

// Client calls the market-data REST API with a client-side rate limit.
type Client struct {
	rc      *resty.Client
	limiter *rate.Limiter
}

// New creates a market client.
func New(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("COINGECKO_API_KEY")
	}
	perMinute := cfg.RatePerMinute
	if perMinute <= 0 {
		perMinute = defaultRatePerMinute
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	rc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout)
	if apiKey != "" {
		rc.SetHeader("x-cg-demo-api-key", apiKey)
	}

	return &Client{
		rc:      rc,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
	}
}

// MarketsParams selects and pages the coins/markets listing.
type MarketsParams struct {
	// CoinIDs restricts the listing; empty means the full market.
	CoinIDs []string
	// PerPage caps the number of rows; zero lets the API default apply.
	PerPage int
}

// Markets lists coins ordered by market cap descending, priced in USD.
func (c *Client) Markets(ctx context.Context, params MarketsParams) ([]Coin, error) {
	query := map[string]string{
		"vs_currency": "usd",
		"order":       "market_cap_desc",
		"sparkline":   "false",
	}
	if len(params.CoinIDs) > 0 {
		query["ids"] = strings.Join(params.CoinIDs, ",")
	}
	if params.PerPage > 0 {
		query["per_page"] = strconv.Itoa(params.PerPage)
	}

	var coins []Coin
	if err := c.get(ctx, "/coins/markets", query, &coins); err != nil {
		return nil, err
	}
	return coins, nil
}

// MarketChart returns a coin's daily USD price history for the given number
// of days.
func (c *Client) MarketChart(ctx context.Context, coinID string, days int) (*Chart, error) {
	if coinID == "" {
		return nil, fmt.Errorf("coin ID is required")
	}
	if days <= 0 {
		days = 30
	}

	query := map[string]string{
		"vs_currency": "usd",
		"days":        strconv.Itoa(days),
		"interval":    "daily",
	}
	var chart Chart
	if err := c.get(ctx, "/coins/"+coinID+"/market_chart", query, &chart); err != nil {
		return nil, err
	}
	return &chart, nil
}

// Search finds coins matching the query string.
func (c *Client) Search(ctx context.Context, query string) ([]SearchCoin, error) {
	var result struct {
		Coins []SearchCoin `json:"coins"`
	}
	if err := c.get(ctx, "/search", map[string]string{"query": query}, &result); err != nil {
		return nil, err
	}
	return result.Coins, nil
}

// Trending returns the currently trending coins.
func (c *Client) Trending(ctx context.Context) ([]TrendingCoin, error) {
	var result struct {
		Coins []struct {
			Item TrendingCoin `json:"item"`
		} `json:"coins"`
	}
	if err := c.get(ctx, "/search/trending", nil, &result); err != nil {
		return nil, err
	}

	coins := make([]TrendingCoin, 0, len(result.Coins))
	for _, entry := range result.Coins {
		coins = append(coins, entry.Item)
	}
	return coins, nil
}

// SimpleUSDPrice returns the current USD price per coin ID. Unknown IDs are
// absent from the result.
func (c *Client) SimpleUSDPrice(ctx context.Context, coinIDs []string) (map[string]float64, error) {
	if len(coinIDs) == 0 {
		return map[string]float64{}, nil
	}

	query := map[string]string{
		"ids":           strings.Join(coinIDs, ","),
		"vs_currencies": "usd",
	}
	var result map[string]map[string]float64
	if err := c.get(ctx, "/simple/price", query, &result); err != nil {
		return nil, err
	}

	prices := make(map[string]float64, len(result))
	for id, currencies := range result {
		prices[id] = currencies["usd"]
	}
	return prices, nil
}

func (c *Client) get(ctx context.Context, path string, query map[string]string, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	resp, err := c.rc.R().
		SetContext(ctx).
		SetQueryParams(query).
		SetResult(result).
		Get(path)
	if err != nil {
		return fmt.Errorf("market API request: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("market API returned %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	return nil
}
