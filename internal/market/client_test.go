package market

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func newTestMarket(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(Config{BaseURL: server.URL, RatePerMinute: 1000})
}

func TestMarketsParams(t *testing.T) {
	var gotQuery url.Values
	client := newTestMarket(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/coins/markets" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]map[string]any{
			{"id": "bitcoin", "symbol": "btc", "name": "Bitcoin", "current_price": 97000.5},
		})
	}))

	coins, err := client.Markets(context.Background(), MarketsParams{
		CoinIDs: []string{"bitcoin", "ethereum"},
		PerPage: 10,
	})
	if err != nil {
		t.Fatalf("markets: %v", err)
	}
	if gotQuery.Get("vs_currency") != "usd" || gotQuery.Get("order") != "market_cap_desc" {
		t.Fatalf("unexpected query: %v", gotQuery)
	}
	if gotQuery.Get("ids") != "bitcoin,ethereum" || gotQuery.Get("per_page") != "10" {
		t.Fatalf("unexpected selection: %v", gotQuery)
	}
	if len(coins) != 1 || coins[0].ID != "bitcoin" || coins[0].CurrentPrice != 97000.5 {
		t.Fatalf("unexpected coins: %+v", coins)
	}
}

func TestMarketChartDefaults(t *testing.T) {
	var gotQuery url.Values
	client := newTestMarket(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/coins/bitcoin/market_chart" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"prices": [][2]float64{{1738368000000, 96000}, {1738454400000, 97000}},
		})
	}))

	chart, err := client.MarketChart(context.Background(), "bitcoin", 0)
	if err != nil {
		t.Fatalf("market chart: %v", err)
	}
	if gotQuery.Get("days") != "30" || gotQuery.Get("interval") != "daily" {
		t.Fatalf("unexpected query: %v", gotQuery)
	}
	if len(chart.Prices) != 2 || chart.Prices[1][1] != 97000 {
		t.Fatalf("unexpected chart: %+v", chart)
	}

	if _, err := client.MarketChart(context.Background(), "", 30); err == nil {
		t.Fatalf("expected error for empty coin ID")
	}
}

func TestTrendingUnwrapsItems(t *testing.T) {
	client := newTestMarket(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"coins": []map[string]any{
				{"item": map[string]any{"id": "solana", "name": "Solana", "market_cap_rank": 5}},
				{"item": map[string]any{"id": "sui", "name": "Sui", "market_cap_rank": 18}},
			},
		})
	}))

	trending, err := client.Trending(context.Background())
	if err != nil {
		t.Fatalf("trending: %v", err)
	}
	if len(trending) != 2 || trending[0].ID != "solana" || trending[1].MarketCapRank != 18 {
		t.Fatalf("unexpected trending: %+v", trending)
	}
}

func TestSimpleUSDPrice(t *testing.T) {
	client := newTestMarket(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("ids"); got != "bitcoin,ethereum" {
			t.Errorf("unexpected ids %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]map[string]float64{
			"bitcoin":  {"usd": 97000},
			"ethereum": {"usd": 2700.25},
		})
	}))

	prices, err := client.SimpleUSDPrice(context.Background(), []string{"bitcoin", "ethereum"})
	if err != nil {
		t.Fatalf("simple price: %v", err)
	}
	if prices["bitcoin"] != 97000 || prices["ethereum"] != 2700.25 {
		t.Fatalf("unexpected prices: %v", prices)
	}

	empty, err := client.SimpleUSDPrice(context.Background(), nil)
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected empty result without IDs, got %v %v", empty, err)
	}
}

func TestAPIErrorStatus(t *testing.T) {
	client := newTestMarket(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"status":{"error_message":"rate limited"}}`))
	}))

	if _, err := client.Search(context.Background(), "bit"); err == nil {
		t.Fatalf("expected error on 429")
	}
}
