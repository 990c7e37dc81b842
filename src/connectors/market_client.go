package connectors

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/nntaoli-project/goex"
	"github.com/nntaoli-project/goex/binance"
	"github.com/shopspring/decimal"

	"tradeclient/src/model"
)

// Quote currencies we know how to split a concatenated pair symbol on.
var knownQuotes = []string{"USDT", "BUSD", "USDC", "USD"}

// MarketClient reads the public Binance spot ticker through goex. It is the
// primary source for the reference price; the feed synthesizes a degraded
// price when it fails.
type MarketClient struct {
	exchange goex.API
}

func NewMarketClient() *MarketClient {
	apiConfig := &goex.APIConfig{
		HttpClient: http.DefaultClient,
		Endpoint:   binance.GLOBAL_API_BASE_URL,
	}
	return &MarketClient{exchange: binance.NewWithConfig(apiConfig)}
}

// LastPrice returns the latest traded price for a concatenated pair symbol
// such as BTCUSDT.
func (m *MarketClient) LastPrice(pair string) (decimal.Decimal, error) {
	currencyPair, err := SplitPair(pair)
	if err != nil {
		return decimal.Zero, err
	}

	ticker, err := m.exchange.GetTicker(currencyPair)
	if err != nil {
		return decimal.Zero, fmt.Errorf("ticker %s: %w: %v", pair, model.ErrNetworkFailure, err)
	}

	return decimal.NewFromFloat(ticker.Last), nil
}

// SplitPair turns BTCUSDT into a goex currency pair.
func SplitPair(pair string) (goex.CurrencyPair, error) {
	symbol := strings.ToUpper(strings.TrimSpace(pair))

	for _, quote := range knownQuotes {
		if strings.HasSuffix(symbol, quote) && len(symbol) > len(quote) {
			base := strings.TrimSuffix(symbol, quote)
			return goex.NewCurrencyPair(
				goex.Currency{Symbol: base},
				goex.Currency{Symbol: quote},
			), nil
		}
	}

	return goex.UNKNOWN_PAIR, fmt.Errorf("unsupported pair symbol %q", pair)
}
