package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"cointrader/internal/infra/binance"
)

// Quick connectivity probe: REST endpoints plus a short sample of the
// live trade stream. Needs no API keys.
func main() {
	symbol := flag.String("symbol", "BTCUSDT", "symbol to probe")
	restURL := flag.String("rest", "https://api.binance.com", "REST base URL")
	wsURL := flag.String("ws", "wss://stream.binance.com:9443", "websocket base URL")
	flag.Parse()

	fmt.Println("=== cointrader market connectivity check ===")
	fmt.Println()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client := binance.NewClient(binance.ClientConfig{BaseURL: *restURL})

	serverTime, err := client.GetServerTime(ctx)
	if err != nil {
		fail("server time", err)
	}
	fmt.Printf("🕐 Server time:  %s (skew %s)\n",
		serverTime.Format(time.RFC3339), time.Since(serverTime).Round(time.Millisecond))

	price, err := client.GetPrice(ctx, *symbol)
	if err != nil {
		fail("ticker price", err)
	}
	fmt.Printf("📊 %s price:  $%s\n", *symbol, price.String())

	summary, err := client.GetMarketSummary(ctx, *symbol)
	if err != nil {
		fail("24h summary", err)
	}
	fmt.Printf("📈 24h change:  %s%% (volume %s)\n",
		summary.PriceChangePct.StringFixed(2), summary.Volume.String())

	depth, err := client.GetDepth(ctx, *symbol, 10)
	if err != nil {
		fail("order book", err)
	}
	fmt.Printf("📚 Top-10 book: bid vol %s / ask vol %s\n",
		depth.BidVolume().String(), depth.AskVolume().String())

	fmt.Println()
	fmt.Println("Sampling 5 live trades...")
	stream := binance.NewTradeStream(*wsURL, *symbol)
	stream.Start(ctx)
	defer stream.Stop()

	for i := 0; i < 5; i++ {
		select {
		case ev := <-stream.Events():
			fmt.Printf("   %s  %s @ $%s\n",
				ev.At.Format("15:04:05.000"), ev.Quantity.String(), ev.Price.String())
		case err := <-stream.Errs():
			fail("trade stream", err)
		case <-ctx.Done():
			fail("trade stream", ctx.Err())
		}
	}

	fmt.Println()
	fmt.Println("✅ All market data paths reachable")
}

func fail(what string, err error) {
	fmt.Fprintf(os.Stderr, "❌ %s: %v\n", what, err)
	os.Exit(1)
}
