package portfolio

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
)

// PriceSource supplies current USD prices for coins.
type PriceSource interface {
	SimpleUSDPrice(ctx context.Context, coinIDs []string) (map[string]float64, error)
}

// Position is one valued holding.
type Position struct {
	CoinID string          `json:"coinId"`
	Amount decimal.Decimal `json:"amount"`
	Price  decimal.Decimal `json:"price"`
	Value  decimal.Decimal `json:"value"`
}

// Valuation is the current worth of a user's latest holdings snapshot.
type Valuation struct {
	Currency  string          `json:"currency"`
	Total     decimal.Decimal `json:"total"`
	Positions []Position      `json:"positions"`
}

// Value prices the user's most recent holdings record against current
// market prices. Coins the price source does not know are valued at zero.
func (s *Service) Value(ctx context.Context, userID string, prices PriceSource) (*Valuation, error) {
	records, err := s.Holdings(ctx, userID)
	if err != nil {
		return nil, err
	}

	valuation := &Valuation{Currency: "usd", Total: decimal.Zero, Positions: []Position{}}
	if len(records) == 0 {
		return valuation, nil
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	latest := records[0]
	if len(latest.Holdings) == 0 {
		return valuation, nil
	}

	coinIDs := make([]string, 0, len(latest.Holdings))
	for _, h := range latest.Holdings {
		coinIDs = append(coinIDs, h.CoinID)
	}

	quotes, err := prices.SimpleUSDPrice(ctx, coinIDs)
	if err != nil {
		return nil, &PersistenceError{Op: "price lookup", Cause: err}
	}

	for _, h := range latest.Holdings {
		amount := decimal.NewFromFloat(h.Amount)
		price := decimal.NewFromFloat(quotes[h.CoinID])
		value := amount.Mul(price)
		valuation.Positions = append(valuation.Positions, Position{
			CoinID: h.CoinID,
			Amount: amount,
			Price:  price,
			Value:  value,
		})
		valuation.Total = valuation.Total.Add(value)
	}
	return valuation, nil
}
