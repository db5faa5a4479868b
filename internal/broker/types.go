package broker

import (
	"encoding/json"
	"fmt"
	"time"
)

// envelope is the common broker response wrapper. Every endpoint returns
// {"status": bool, "message": string, "errorcode": string, "data": ...};
// payloads are decoded from Data into typed structs at this boundary and
// never propagated as untyped maps.
type envelope struct {
	Status    bool            `json:"status"`
	Message   string          `json:"message"`
	ErrorCode string          `json:"errorcode"`
	Data      json.RawMessage `json:"data"`
}

// APIError is a broker-level rejection (status=false or HTTP error code).
type APIError struct {
	HTTPStatus int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("broker api error: http=%d code=%s message=%s", e.HTTPStatus, e.Code, e.Message)
}

// Unauthorized reports whether the error is an expired/invalid token (401).
func (e *APIError) Unauthorized() bool {
	return e.HTTPStatus == 401
}

// TokenRequest is the signed token-generation payload: the signature is an
// Ed25519 signature over clientId + epoch-millis.
type TokenRequest struct {
	ClientID  string `json:"clientId"`
	Timestamp int64  `json:"timestamp"` // epoch millis, also the signed nonce
	Signature string `json:"signature"` // base64(Ed25519(clientId+timestamp))
}

// TokenGrant is a freshly issued access token.
type TokenGrant struct {
	Token     string
	ExpiresAt time.Time
}

type tokenData struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int64  `json:"expiresIn"` // seconds
}

// SessionRequest is the interactive login fallback (client code + password +
// TOTP) used when no signing key is configured.
type SessionRequest struct {
	ClientCode string `json:"clientcode"`
	Password   string `json:"password"`
	TOTP       string `json:"totp"`
}

// MarginRequest asks for the margin needed for a reference trade.
type MarginRequest struct {
	Symbol      string  `json:"symbol"`
	Exchange    string  `json:"exchange"`
	Price       float64 `json:"price"`
	Quantity    int64   `json:"quantity"`
	ProductType string  `json:"productType"` // MTF
}

// MarginInfo is the typed margin response for the reference trade.
type MarginInfo struct {
	RequiredMargin float64 `json:"requiredMargin"` // total for the reference qty
	Leverage       float64 `json:"leverage"`
}

// PerShare returns the margin per share for the reference quantity, or 0
// when the broker reported nothing usable (e.g. market closed).
func (m MarginInfo) PerShare(qty int64) float64 {
	if qty <= 0 || m.RequiredMargin <= 0 {
		return 0
	}
	return m.RequiredMargin / float64(qty)
}

// OrderRequest places a market order.
type OrderRequest struct {
	Symbol          string `json:"symbol"`
	Exchange        string `json:"exchange"`
	TransactionType string `json:"transactionType"` // BUY, SELL
	OrderType       string `json:"orderType"`       // MARKET
	ProductType     string `json:"productType"`     // MTF
	Quantity        int64  `json:"quantity"`
	ClientOrderID   string `json:"clientOrderId"`
}

// OrderResult is the broker's acknowledgement of a placed order.
type OrderResult struct {
	OrderID string `json:"orderId"`
	Status  string `json:"orderStatus"`
}

// LTPData is the last-traded-price quote for a symbol.
type LTPData struct {
	Symbol string  `json:"symbol"`
	LTP    float64 `json:"ltp"`
}

// chartData is the wire shape of chart endpoints: rows of
// [epochSeconds, open, high, low, close, volume].
type chartData struct {
	Candles [][]float64 `json:"candles"`
}
