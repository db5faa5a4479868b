package broker

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"algoengine/internal/model"
)

// GenerateToken posts a signed token request. Unauthenticated: used by the
// auth coordinator, never by business code.
func (c *Client) GenerateToken(ctx context.Context, req TokenRequest) (TokenGrant, error) {
	env, err := c.do(ctx, http.MethodPost, "auth.token", req)
	if err != nil {
		return TokenGrant{}, err
	}
	var data tokenData
	if err := decodeData(env, "auth.token", &data); err != nil {
		return TokenGrant{}, err
	}
	if data.AccessToken == "" || data.ExpiresIn <= 0 {
		return TokenGrant{}, fmt.Errorf("broker: token response missing token or expiry")
	}
	return TokenGrant{
		Token:     data.AccessToken,
		ExpiresAt: time.Now().Add(time.Duration(data.ExpiresIn) * time.Second),
	}, nil
}

// GenerateSession performs the interactive TOTP login fallback.
func (c *Client) GenerateSession(ctx context.Context, req SessionRequest) (TokenGrant, error) {
	env, err := c.do(ctx, http.MethodPost, "auth.session", req)
	if err != nil {
		return TokenGrant{}, err
	}
	var data tokenData
	if err := decodeData(env, "auth.session", &data); err != nil {
		return TokenGrant{}, err
	}
	if data.AccessToken == "" || data.ExpiresIn <= 0 {
		return TokenGrant{}, fmt.Errorf("broker: session response missing token or expiry")
	}
	return TokenGrant{
		Token:     data.AccessToken,
		ExpiresAt: time.Now().Add(time.Duration(data.ExpiresIn) * time.Second),
	}, nil
}

// MarginInfo fetches the margin required for a reference trade.
func (c *Client) MarginInfo(ctx context.Context, req MarginRequest) (MarginInfo, error) {
	env, err := c.doAuthed(ctx, http.MethodPost, "margin.info", req)
	if err != nil {
		return MarginInfo{}, err
	}
	var info MarginInfo
	if err := decodeData(env, "margin.info", &info); err != nil {
		return MarginInfo{}, err
	}
	return info, nil
}

// PlaceOrder submits a market order and returns the broker order ID.
func (c *Client) PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error) {
	env, err := c.doAuthed(ctx, http.MethodPost, "order.place", req)
	if err != nil {
		return OrderResult{}, err
	}
	var res OrderResult
	if err := decodeData(env, "order.place", &res); err != nil {
		return OrderResult{}, err
	}
	if res.OrderID == "" {
		return OrderResult{}, fmt.Errorf("broker: order response missing orderId")
	}
	return res, nil
}

// CancelOrder cancels an open order.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	_, err := c.doAuthed(ctx, http.MethodPost, "order.cancel", map[string]string{"orderId": orderID})
	return err
}

// LTP fetches the last traded price for a symbol.
func (c *Client) LTP(ctx context.Context, symbol, exchange string) (LTPData, error) {
	env, err := c.doAuthed(ctx, http.MethodPost, "quote.ltp", map[string]string{
		"symbol":   symbol,
		"exchange": exchange,
	})
	if err != nil {
		return LTPData{}, err
	}
	var data LTPData
	if err := decodeData(env, "quote.ltp", &data); err != nil {
		return LTPData{}, err
	}
	return data, nil
}

// IntradayChart fetches minute ticks for one trading day.
func (c *Client) IntradayChart(ctx context.Context, symbol, exchange string, from, to time.Time) ([]model.Candle, error) {
	return c.chart(ctx, "chart.intraday", symbol, exchange, "ONE_MINUTE", from, to)
}

// DailyHistory fetches daily bars over [from, to].
func (c *Client) DailyHistory(ctx context.Context, symbol, exchange string, from, to time.Time) ([]model.Candle, error) {
	return c.chart(ctx, "chart.historical", symbol, exchange, "ONE_DAY", from, to)
}

func (c *Client) chart(ctx context.Context, route, symbol, exchange, interval string, from, to time.Time) ([]model.Candle, error) {
	env, err := c.doAuthed(ctx, http.MethodPost, route, map[string]any{
		"symbol":   symbol,
		"exchange": exchange,
		"interval": interval,
		"fromDate": from.Format("2006-01-02 15:04"),
		"toDate":   to.Format("2006-01-02 15:04"),
	})
	if err != nil {
		return nil, err
	}
	var data chartData
	if err := decodeData(env, route, &data); err != nil {
		return nil, err
	}

	candles := make([]model.Candle, 0, len(data.Candles))
	for _, row := range data.Candles {
		if len(row) < 6 {
			return nil, fmt.Errorf("broker: malformed chart row (%d fields)", len(row))
		}
		candles = append(candles, model.Candle{
			Date:   time.Unix(int64(row[0]), 0),
			Open:   row[1],
			High:   row[2],
			Low:    row[3],
			Close:  row[4],
			Volume: row[5],
		})
	}
	return candles, nil
}
