package connectors

import (
	"testing"
)

func TestSplitPair(t *testing.T) {
	tests := []struct {
		pair      string
		wantBase  string
		wantQuote string
	}{
		{"BTCUSDT", "BTC", "USDT"},
		{"ethusdt", "ETH", "USDT"},
		{" SOLUSDT ", "SOL", "USDT"},
		{"XRPBUSD", "XRP", "BUSD"},
		{"ADAUSDC", "ADA", "USDC"},
		{"BTCUSD", "BTC", "USD"},
	}

	for _, tt := range tests {
		t.Run(tt.pair, func(t *testing.T) {
			got, err := SplitPair(tt.pair)
			if err != nil {
				t.Fatalf("split failed: %v", err)
			}
			if got.CurrencyA.Symbol != tt.wantBase || got.CurrencyB.Symbol != tt.wantQuote {
				t.Fatalf("split %s = %s/%s, want %s/%s",
					tt.pair, got.CurrencyA.Symbol, got.CurrencyB.Symbol, tt.wantBase, tt.wantQuote)
			}
		})
	}
}

func TestSplitPairRejectsUnknownQuote(t *testing.T) {
	for _, pair := range []string{"BTCEUR", "USDT", "", "garbage"} {
		if _, err := SplitPair(pair); err == nil {
			t.Fatalf("expected error for %q", pair)
		}
	}
}
