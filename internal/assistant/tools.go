package assistant

import (
	"context"

	"google.golang.org/genai"

	"github.com/crypto-talks/platform/internal/market"
)

// MarketSource is the market-data surface the chat tools resolve against.
type MarketSource interface {
	SimpleUSDPrice(ctx context.Context, coinIDs []string) (map[string]float64, error)
	Trending(ctx context.Context) ([]market.TrendingCoin, error)
	MarketChart(ctx context.Context, coinID string, days int) (*market.Chart, error)
}

func marketTools() []*genai.FunctionDeclaration {
	coinIDParam := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"coin_id": {
				Type:        genai.TypeString,
				Description: "The coin identifier, e.g. \"bitcoin\".",
			},
		},
		Required: []string{"coin_id"},
	}

	return []*genai.FunctionDeclaration{
		{
			Name:        "get_price",
			Description: "Fetch the latest USD price of a cryptocurrency.",
			Parameters:  coinIDParam,
		},
		{
			Name:        "get_trends",
			Description: "Fetch the currently trending coins.",
			Parameters:  &genai.Schema{Type: genai.TypeObject},
		},
		{
			Name:        "get_insights",
			Description: "Fetch coin insights such as market cap and volume.",
			Parameters:  coinIDParam,
		},
	}
}

// callTool resolves one model function call against the market source. Tool
// failures are reported inside the response payload so the model can relay
// them, never as a Go error.
func (a *Assistant) callTool(ctx context.Context, call *genai.FunctionCall) *genai.FunctionResponse {
	resp := &genai.FunctionResponse{ID: call.ID, Name: call.Name}

	switch call.Name {
	case "get_price":
		coinID, ok := call.Args["coin_id"].(string)
		if !ok || coinID == "" {
			resp.Response = errPayload("coin_id is required")
			return resp
		}
		prices, err := a.market.SimpleUSDPrice(ctx, []string{coinID})
		if err != nil {
			resp.Response = errPayload("failed to fetch price for " + coinID + ": " + err.Error())
			return resp
		}
		resp.Response = map[string]any{"coin_id": coinID, "price": prices[coinID]}

	case "get_trends":
		trending, err := a.market.Trending(ctx)
		if err != nil {
			resp.Response = errPayload("failed to fetch trending coins: " + err.Error())
			return resp
		}
		names := make([]string, 0, len(trending))
		for _, coin := range trending {
			names = append(names, coin.Name)
		}
		resp.Response = map[string]any{"trends": names}

	case "get_insights":
		coinID, ok := call.Args["coin_id"].(string)
		if !ok || coinID == "" {
			resp.Response = errPayload("coin_id is required")
			return resp
		}
		chart, err := a.market.MarketChart(ctx, coinID, 30)
		if err != nil || len(chart.MarketCaps) == 0 || len(chart.TotalVolumes) == 0 {
			resp.Response = errPayload("failed to fetch insights for " + coinID)
			return resp
		}
		resp.Response = map[string]any{
			"coin_id":    coinID,
			"market_cap": chart.MarketCaps[len(chart.MarketCaps)-1][1],
			"volume":     chart.TotalVolumes[len(chart.TotalVolumes)-1][1],
		}

	default:
		resp.Response = errPayload("unknown tool " + call.Name)
	}
	return resp
}

func errPayload(msg string) map[string]any {
	return map[string]any{"error": msg}
}
