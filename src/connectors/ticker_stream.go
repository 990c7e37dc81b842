package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

// TickerStream subscribes to the exchange miniTicker websocket stream and
// pushes every price update to the callback. The feed keeps polling
// regardless; the stream only tightens the refresh between polls.
type TickerStream struct {
	baseURL string
	timeout time.Duration
}

func NewTickerStream(baseURL string, timeout time.Duration) *TickerStream {
	return &TickerStream{baseURL: strings.TrimRight(baseURL, "/"), timeout: timeout}
}

type miniTickerEvent struct {
	EventType string `json:"e"`
	Symbol    string `json:"s"`
	Close     string `json:"c"`
}

// Run blocks reading the stream for one pair until ctx is cancelled or the
// connection drops. Callers own the reconnect policy.
func (s *TickerStream) Run(ctx context.Context, pair string, onPrice func(decimal.Decimal)) error {
	streamURL := fmt.Sprintf("%s/%s@miniTicker", s.baseURL, strings.ToLower(pair))

	dialer := websocket.Dialer{HandshakeTimeout: s.timeout}
	conn, _, err := dialer.DialContext(ctx, streamURL, nil)
	if err != nil {
		return fmt.Errorf("ws dial %s: %w", streamURL, err)
	}
	defer conn.Close()

	// Unblock the blocking read when ctx is cancelled.
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("ws read: %w", err)
		}

		var event miniTickerEvent
		if err := json.Unmarshal(msg, &event); err != nil {
			logger.WithError(err).Debug("ticker stream: skipping malformed frame")
			continue
		}
		if event.Close == "" {
			continue
		}

		price, err := decimal.NewFromString(event.Close)
		if err != nil || price.IsZero() {
			continue
		}

		onPrice(price)
	}
}
