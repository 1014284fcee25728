package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"cointrader/internal/infra"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

// TradeEvent is one trade from the per-symbol stream.
type TradeEvent struct {
	Symbol   string
	Price    decimal.Decimal
	Quantity decimal.Decimal
	At       time.Time
}

// TradeStream consumes the <symbol>@trade websocket. Every disconnect,
// whether the dial failed or an established connection dropped, consumes
// one reconnect attempt and waits out a linear backoff (attempt * base
// delay) before the next dial. A connection that delivered at least one
// message refills the attempt budget; once the budget is spent on
// consecutive dead connections the stream reports a fatal disconnect on
// Errs and stops.
type TradeStream struct {
	wsURL       string
	symbol      string
	maxAttempts int
	backoff     func(attempt int) time.Duration

	events chan TradeEvent
	errs   chan error

	readTimeout time.Duration
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// NewTradeStream creates a stream for one symbol against the given
// websocket base URL (e.g. wss://stream.binance.com:9443).
func NewTradeStream(wsURL, symbol string) *TradeStream {
	return &TradeStream{
		wsURL:       wsURL,
		symbol:      symbol,
		maxAttempts: 5,
		backoff:     infra.LinearBackoff,
		events:      make(chan TradeEvent, 1024),
		errs:        make(chan error, 1),
		readTimeout: 60 * time.Second,
	}
}

// Events is the stream of parsed trades. Messages are dropped rather
// than blocking the read loop when the consumer falls behind.
func (s *TradeStream) Events() <-chan TradeEvent { return s.events }

// Errs delivers the fatal disconnect after reconnection gives up.
func (s *TradeStream) Errs() <-chan error { return s.errs }

// Start launches the connection loop.
func (s *TradeStream) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.runLoop(ctx)
}

// Stop terminates the stream.
func (s *TradeStream) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *TradeStream) streamURL() string {
	return fmt.Sprintf("%s/ws/%s@trade", s.wsURL, strings.ToLower(s.symbol))
}

func (s *TradeStream) runLoop(ctx context.Context) {
	defer s.wg.Done()
	attempt := 0

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn, err := s.connect(ctx)
		if err == nil {
			var healthy bool
			healthy, err = s.readMessages(ctx, conn)
			conn.Close()
			if healthy {
				// The connection carried traffic; the budget covers
				// consecutive dead connections, not session length.
				attempt = 0
			}
		}
		if ctx.Err() != nil {
			return
		}

		attempt++
		if attempt > s.maxAttempts {
			slog.Error("Trade stream giving up",
				slog.String("symbol", s.symbol), slog.Int("attempts", attempt-1))
			select {
			case s.errs <- fmt.Errorf("trade stream %s: disconnected after %d attempts: %w", s.symbol, attempt-1, err):
			default:
			}
			return
		}

		delay := s.backoff(attempt)
		slog.Warn("Trade stream reconnect",
			slog.String("symbol", s.symbol), slog.Int("attempt", attempt), slog.Duration("delay", delay))
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

func (s *TradeStream) connect(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.streamURL(), nil)
	if err != nil {
		return nil, err
	}
	slog.Info("Trade stream connected", slog.String("symbol", s.symbol))
	return conn, nil
}

// readMessages drains the connection until it drops. healthy reports
// whether at least one message arrived.
func (s *TradeStream) readMessages(ctx context.Context, conn *websocket.Conn) (healthy bool, _ error) {
	for {
		select {
		case <-ctx.Done():
			return healthy, nil
		default:
		}

		conn.SetReadDeadline(time.Now().Add(s.readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			slog.Warn("Trade stream read error",
				slog.String("symbol", s.symbol), slog.Any("error", err))
			return healthy, err
		}
		healthy = true

		event, ok := parseTradeMessage(msg)
		if !ok {
			continue
		}

		select {
		case s.events <- event:
		default:
			// Consumer is behind; drop rather than stall the read loop.
		}
	}
}

func parseTradeMessage(msg []byte) (TradeEvent, bool) {
	var raw tradeEvent
	if err := json.Unmarshal(msg, &raw); err != nil {
		return TradeEvent{}, false
	}
	if raw.Price == "" {
		return TradeEvent{}, false
	}

	price, err := decimal.NewFromString(raw.Price)
	if err != nil {
		return TradeEvent{}, false
	}
	qty := decimal.Zero
	if raw.Quantity != "" {
		if q, err := decimal.NewFromString(raw.Quantity); err == nil {
			qty = q
		}
	}

	return TradeEvent{
		Symbol:   raw.Symbol,
		Price:    price,
		Quantity: qty,
		At:       time.UnixMilli(raw.TradeTime),
	}, true
}
