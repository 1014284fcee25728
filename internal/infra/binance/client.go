package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"cointrader/internal/domain"
	"cointrader/internal/infra"

	"github.com/shopspring/decimal"
)

// API endpoints (Binance spot v3).
const (
	endpointTime       = "/api/v3/time"
	endpointPrice      = "/api/v3/ticker/price"
	endpointTicker24h  = "/api/v3/ticker/24hr"
	endpointDepth      = "/api/v3/depth"
	endpointKlines     = "/api/v3/klines"
	endpointOrder      = "/api/v3/order"
	endpointOrderTest  = "/api/v3/order/test"
	endpointAccount    = "/api/v3/account"
	endpointMyTrades   = "/api/v3/myTrades"
	endpointOpenOrders = "/api/v3/openOrders"
)

const defaultRecvWindow = 5000

// ClientConfig configures the REST client.
type ClientConfig struct {
	BaseURL              string
	APIKey               string
	SecretKey            string
	MaxRequestsPerMinute int
	PriceCacheTTL        time.Duration
	// DisablePriceCache turns off the freshness cache; backtest data
	// loading must set it so historical reads never hit live cache.
	DisablePriceCache bool
	HTTPClient        *http.Client
}

type cachedPrice struct {
	price decimal.Decimal
	at    time.Time
}

// Client is the rate-limited signed REST client. Every outbound call
// first passes the sliding-window request limiter, so an exhausted
// budget shows up as latency, never as an error.
type Client struct {
	baseURL    string
	signer     *Signer
	httpClient *http.Client
	limiter    *infra.RequestLimiter
	recvWindow int64

	cacheMu       sync.Mutex
	cacheTTL      time.Duration
	cacheDisabled bool
	priceCache    map[string]cachedPrice
}

// NewClient creates a REST client from config.
func NewClient(cfg ClientConfig) *Client {
	if cfg.MaxRequestsPerMinute <= 0 {
		cfg.MaxRequestsPerMinute = 1200
	}
	if cfg.PriceCacheTTL <= 0 {
		cfg.PriceCacheTTL = time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	return &Client{
		baseURL:       cfg.BaseURL,
		signer:        NewSigner(cfg.APIKey, cfg.SecretKey),
		httpClient:    httpClient,
		limiter:       infra.NewRequestLimiter(cfg.MaxRequestsPerMinute, time.Minute),
		recvWindow:    defaultRecvWindow,
		cacheTTL:      cfg.PriceCacheTTL,
		cacheDisabled: cfg.DisablePriceCache,
		priceCache:    make(map[string]cachedPrice),
	}
}

// Close wipes key material.
func (c *Client) Close() {
	c.signer.Wipe()
}

// GetServerTime returns the exchange clock.
func (c *Client) GetServerTime(ctx context.Context) (time.Time, error) {
	var resp serverTimeResponse
	if err := c.do(ctx, http.MethodGet, endpointTime, nil, false, &resp); err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(resp.ServerTime), nil
}

// TestConnection verifies the endpoint is reachable.
func (c *Client) TestConnection(ctx context.Context) bool {
	_, err := c.GetServerTime(ctx)
	if err != nil {
		slog.Warn("Connection test failed", slog.Any("error", err))
	}
	return err == nil
}

// GetPrice returns the last trade price for symbol. A cached value is
// served while it is younger than the freshness interval; this trades
// staleness for request budget and is disabled for backtesting.
func (c *Client) GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if !c.cacheDisabled {
		c.cacheMu.Lock()
		if entry, ok := c.priceCache[symbol]; ok && time.Since(entry.at) < c.cacheTTL {
			c.cacheMu.Unlock()
			return entry.price, nil
		}
		c.cacheMu.Unlock()
	}

	params := url.Values{"symbol": {symbol}}
	var resp tickerPriceResponse
	if err := c.do(ctx, http.MethodGet, endpointPrice, params, false, &resp); err != nil {
		return decimal.Zero, err
	}

	price, err := parseDecimal(resp.Price, "price")
	if err != nil {
		return decimal.Zero, err
	}

	if !c.cacheDisabled {
		c.cacheMu.Lock()
		c.priceCache[symbol] = cachedPrice{price: price, at: time.Now()}
		c.cacheMu.Unlock()
	}
	return price, nil
}

// GetMarketSummary returns the 24h rolling statistics for symbol.
func (c *Client) GetMarketSummary(ctx context.Context, symbol string) (domain.MarketSummary, error) {
	params := url.Values{"symbol": {symbol}}
	var resp ticker24hResponse
	if err := c.do(ctx, http.MethodGet, endpointTicker24h, params, false, &resp); err != nil {
		return domain.MarketSummary{}, err
	}

	summary := domain.MarketSummary{Symbol: resp.Symbol}
	fields := []struct {
		raw  string
		name string
		dst  *decimal.Decimal
	}{
		{resp.PriceChange, "priceChange", &summary.PriceChange},
		{resp.PriceChangePercent, "priceChangePercent", &summary.PriceChangePct},
		{resp.WeightedAvgPrice, "weightedAvgPrice", &summary.WeightedAvgPrice},
		{resp.HighPrice, "highPrice", &summary.HighPrice},
		{resp.LowPrice, "lowPrice", &summary.LowPrice},
		{resp.Volume, "volume", &summary.Volume},
		{resp.QuoteVolume, "quoteVolume", &summary.QuoteVolume},
	}
	for _, f := range fields {
		v, err := parseDecimal(f.raw, f.name)
		if err != nil {
			return domain.MarketSummary{}, err
		}
		*f.dst = v
	}
	return summary, nil
}

// GetDepth returns the order book limited to the requested levels.
func (c *Client) GetDepth(ctx context.Context, symbol string, levels int) (domain.Depth, error) {
	params := url.Values{
		"symbol": {symbol},
		"limit":  {strconv.Itoa(levels)},
	}
	var resp depthResponse
	if err := c.do(ctx, http.MethodGet, endpointDepth, params, false, &resp); err != nil {
		return domain.Depth{}, err
	}

	depth := domain.Depth{
		Bids: make([]domain.PriceLevel, 0, len(resp.Bids)),
		Asks: make([]domain.PriceLevel, 0, len(resp.Asks)),
	}
	for _, lvl := range resp.Bids {
		parsed, err := parseLevel(lvl)
		if err != nil {
			return domain.Depth{}, err
		}
		depth.Bids = append(depth.Bids, parsed)
	}
	for _, lvl := range resp.Asks {
		parsed, err := parseLevel(lvl)
		if err != nil {
			return domain.Depth{}, err
		}
		depth.Asks = append(depth.Asks, parsed)
	}
	return depth, nil
}

// GetHistoricalCandles loads klines for [start, end]. A zero end time
// leaves the range open-ended.
func (c *Client) GetHistoricalCandles(ctx context.Context, symbol, interval string, start, end time.Time) ([]domain.Candle, error) {
	params := url.Values{
		"symbol":    {symbol},
		"interval":  {interval},
		"startTime": {strconv.FormatInt(start.UnixMilli(), 10)},
	}
	if !end.IsZero() {
		params.Set("endTime", strconv.FormatInt(end.UnixMilli(), 10))
	}
	return c.fetchKlines(ctx, params)
}

// GetKlines loads the most recent limit candles.
func (c *Client) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]domain.Candle, error) {
	params := url.Values{
		"symbol":   {symbol},
		"interval": {interval},
		"limit":    {strconv.Itoa(limit)},
	}
	return c.fetchKlines(ctx, params)
}

func (c *Client) fetchKlines(ctx context.Context, params url.Values) ([]domain.Candle, error) {
	var rows [][]json.RawMessage
	if err := c.do(ctx, http.MethodGet, endpointKlines, params, false, &rows); err != nil {
		return nil, err
	}

	candles := make([]domain.Candle, 0, len(rows))
	for _, row := range rows {
		candle, err := parseKline(row)
		if err != nil {
			return nil, err
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

// PlaceOrder validates the request locally, then submits it signed.
// Validation failures are InvalidRequestError and never reach the
// network; upstream failures are GatewayError. Neither is retried here.
func (c *Client) PlaceOrder(ctx context.Context, req domain.OrderRequest) (*domain.OrderResult, error) {
	if err := validateOrder(req); err != nil {
		return nil, err
	}

	params := url.Values{
		"symbol":   {req.Symbol},
		"side":     {req.Side},
		"type":     {req.Type},
		"quantity": {req.Quantity.String()},
	}
	if req.Type == domain.OrderTypeLimit {
		params.Set("price", req.Price.String())
		params.Set("timeInForce", "GTC")
	}

	endpoint := endpointOrder
	if req.Test {
		endpoint = endpointOrderTest
	}

	var result domain.OrderResult
	if err := c.do(ctx, http.MethodPost, endpoint, params, true, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CancelOrder cancels an open order by exchange ID.
func (c *Client) CancelOrder(ctx context.Context, symbol string, orderID int64) error {
	params := url.Values{
		"symbol":  {symbol},
		"orderId": {strconv.FormatInt(orderID, 10)},
	}
	return c.do(ctx, http.MethodDelete, endpointOrder, params, true, nil)
}

// GetOrder fetches one order's current state.
func (c *Client) GetOrder(ctx context.Context, symbol string, orderID int64) (*domain.OrderResult, error) {
	params := url.Values{
		"symbol":  {symbol},
		"orderId": {strconv.FormatInt(orderID, 10)},
	}
	var result domain.OrderResult
	if err := c.do(ctx, http.MethodGet, endpointOrder, params, true, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetOpenOrders lists unfilled orders for symbol.
func (c *Client) GetOpenOrders(ctx context.Context, symbol string) ([]domain.OrderResult, error) {
	params := url.Values{"symbol": {symbol}}
	var results []domain.OrderResult
	if err := c.do(ctx, http.MethodGet, endpointOpenOrders, params, true, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// GetAccount returns the spot account with all parsed balances.
func (c *Client) GetAccount(ctx context.Context) (Account, error) {
	var resp accountResponse
	if err := c.do(ctx, http.MethodGet, endpointAccount, nil, true, &resp); err != nil {
		return Account{}, err
	}

	account := Account{Balances: make([]AssetBalance, 0, len(resp.Balances))}
	for _, b := range resp.Balances {
		free, err := parseDecimal(b.Free, "free")
		if err != nil {
			return Account{}, err
		}
		locked, err := parseDecimal(b.Locked, "locked")
		if err != nil {
			return Account{}, err
		}
		account.Balances = append(account.Balances, AssetBalance{
			Asset:  b.Asset,
			Free:   free,
			Locked: locked,
			Total:  free.Add(locked),
		})
	}
	return account, nil
}

// GetAssetBalance returns the balance for one asset from the account.
func (c *Client) GetAssetBalance(ctx context.Context, asset string) (AssetBalance, error) {
	account, err := c.GetAccount(ctx)
	if err != nil {
		return AssetBalance{}, err
	}
	for _, b := range account.Balances {
		if b.Asset == asset {
			return b, nil
		}
	}
	return AssetBalance{}, &InvalidRequestError{Reason: "unknown asset " + asset}
}

// GetMyTrades returns the account's fill history for symbol.
func (c *Client) GetMyTrades(ctx context.Context, symbol string, limit int) ([]Trade, error) {
	params := url.Values{
		"symbol": {symbol},
		"limit":  {strconv.Itoa(limit)},
	}
	var trades []Trade
	if err := c.do(ctx, http.MethodGet, endpointMyTrades, params, true, &trades); err != nil {
		return nil, err
	}
	return trades, nil
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, signed bool, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var query string
	if signed {
		if params == nil {
			params = url.Values{}
		}
		params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
		params.Set("recvWindow", strconv.FormatInt(c.recvWindow, 10))
		query = c.signer.SignedQuery(params)
	} else if len(params) > 0 {
		query = params.Encode()
	}

	target := c.baseURL + path
	if query != "" {
		target += "?" + query
	}

	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return &GatewayError{Op: path, Err: err}
	}
	if signed {
		req.Header.Set("X-MBX-APIKEY", c.signer.APIKey())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &GatewayError{Op: path, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &GatewayError{Op: path, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &GatewayError{Op: path, Status: resp.StatusCode, Body: string(body)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &GatewayError{Op: path, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func validateOrder(req domain.OrderRequest) error {
	if !validSymbol(req.Symbol) {
		return &InvalidRequestError{Reason: "invalid symbol format: " + req.Symbol}
	}
	switch req.Type {
	case domain.OrderTypeMarket, domain.OrderTypeLimit:
	default:
		return &InvalidRequestError{Reason: "unknown order type: " + req.Type}
	}
	switch req.Side {
	case domain.OrderSideBuy, domain.OrderSideSell:
	default:
		return &InvalidRequestError{Reason: "unknown order side: " + req.Side}
	}
	if !req.Quantity.IsPositive() {
		return &InvalidRequestError{Reason: "quantity must be positive"}
	}
	if req.Type == domain.OrderTypeLimit && !req.Price.IsPositive() {
		return &InvalidRequestError{Reason: "limit order requires a positive price"}
	}
	return nil
}

func validSymbol(s string) bool {
	if len(s) < 5 {
		return false
	}
	for _, r := range s {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

func parseDecimal(raw, field string) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, &GatewayError{Op: field, Err: fmt.Errorf("malformed %s %q: %w", field, raw, err)}
	}
	return v, nil
}

func parseLevel(lvl [2]string) (domain.PriceLevel, error) {
	price, err := parseDecimal(lvl[0], "depth price")
	if err != nil {
		return domain.PriceLevel{}, err
	}
	qty, err := parseDecimal(lvl[1], "depth quantity")
	if err != nil {
		return domain.PriceLevel{}, err
	}
	return domain.PriceLevel{Price: price, Quantity: qty}, nil
}

// parseKline decodes one kline row:
// [openTime, open, high, low, close, volume, closeTime, ...].
func parseKline(row []json.RawMessage) (domain.Candle, error) {
	if len(row) < 6 {
		return domain.Candle{}, &GatewayError{Op: "klines", Err: fmt.Errorf("short kline row: %d fields", len(row))}
	}

	var openTimeMS int64
	if err := json.Unmarshal(row[0], &openTimeMS); err != nil {
		return domain.Candle{}, &GatewayError{Op: "klines", Err: fmt.Errorf("open time: %w", err)}
	}

	cells := make([]decimal.Decimal, 5)
	names := []string{"open", "high", "low", "close", "volume"}
	for i := 0; i < 5; i++ {
		var raw string
		if err := json.Unmarshal(row[i+1], &raw); err != nil {
			return domain.Candle{}, &GatewayError{Op: "klines", Err: fmt.Errorf("%s: %w", names[i], err)}
		}
		v, err := parseDecimal(raw, names[i])
		if err != nil {
			return domain.Candle{}, err
		}
		cells[i] = v
	}

	return domain.Candle{
		OpenTime: time.UnixMilli(openTimeMS),
		Open:     cells[0],
		High:     cells[1],
		Low:      cells[2],
		Close:    cells[3],
		Volume:   cells[4],
	}, nil
}
