package model

// TechnicalIndicators is the snapshot of indicator values for the latest bar
// of a close-price series. Indicators with insufficient history carry neutral
// defaults (RSI 50, EMA last close, MACD/histogram 0) rather than failing, so
// a scan over the full universe survives one thin symbol.
type TechnicalIndicators struct {
	Close           float64 `json:"close"`
	EMA50           float64 `json:"ema50"`
	EMA20           float64 `json:"ema20"`
	RSI14           float64 `json:"rsi14"`
	RSI14SMA        float64 `json:"rsi14_sma"`
	MACD            float64 `json:"macd"`
	MACDSignal      float64 `json:"macd_signal"`
	Histogram       float64 `json:"histogram"`
	HistogramStreak int     `json:"histogram_streak"` // trailing bars with histogram > 0
}
