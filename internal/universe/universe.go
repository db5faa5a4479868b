// Package universe holds the scan universe: NSE symbols grouped by sector,
// loadable from a JSON file so the list can change without a rebuild.
package universe

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// Universe is the set of symbols the scanner evaluates.
type Universe struct {
	sectors map[string][]string
	symbols []string // deduplicated, sector-sorted
}

type fileFormat struct {
	Sectors map[string][]string `json:"sectors"`
}

// Load reads a universe from a JSON file of the form
// {"sectors": {"IT": ["TCS", "INFY"], ...}}.
func Load(path string) (*Universe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("universe: read %s: %w", path, err)
	}
	var f fileFormat
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("universe: parse %s: %w", path, err)
	}
	if len(f.Sectors) == 0 {
		return nil, fmt.Errorf("universe: %s defines no sectors", path)
	}
	return New(f.Sectors), nil
}

// New builds a universe from sector groupings. Symbols appearing in more
// than one sector are kept once, under the first sector in name order.
func New(sectors map[string][]string) *Universe {
	u := &Universe{sectors: make(map[string][]string, len(sectors))}

	names := make([]string, 0, len(sectors))
	for name := range sectors {
		names = append(names, name)
	}
	sort.Strings(names)

	seen := make(map[string]bool)
	for _, name := range names {
		for _, sym := range sectors[name] {
			if seen[sym] {
				continue
			}
			seen[sym] = true
			u.sectors[name] = append(u.sectors[name], sym)
			u.symbols = append(u.symbols, sym)
		}
	}
	return u
}

// Default returns the built-in NSE universe used when no file is configured.
func Default() *Universe {
	return New(map[string][]string{
		"IT":         {"TCS", "INFY", "WIPRO", "HCLTECH", "TECHM", "LTIM"},
		"BANKING":    {"HDFCBANK", "ICICIBANK", "SBIN", "KOTAKBANK", "AXISBANK", "INDUSINDBK"},
		"AUTO":       {"MARUTI", "TATAMOTORS", "M&M", "BAJAJ-AUTO", "EICHERMOT", "HEROMOTOCO"},
		"PHARMA":     {"SUNPHARMA", "DRREDDY", "CIPLA", "DIVISLAB", "APOLLOHOSP"},
		"ENERGY":     {"RELIANCE", "ONGC", "NTPC", "POWERGRID", "TATAPOWER", "COALINDIA"},
		"FMCG":       {"HINDUNILVR", "ITC", "NESTLEIND", "BRITANNIA", "TATACONSUM"},
		"METALS":     {"TATASTEEL", "JSWSTEEL", "HINDALCO", "VEDL"},
		"FINANCIALS": {"BAJFINANCE", "BAJAJFINSV", "HDFCLIFE", "SBILIFE", "ICICIGI"},
		"INFRA":      {"LT", "ULTRACEMCO", "GRASIM", "ADANIPORTS", "ADANIENT"},
		"CONSUMER":   {"TITAN", "ASIANPAINT", "DMART", "TRENT", "ZOMATO"},
	})
}

// Symbols returns every symbol in a stable order.
func (u *Universe) Symbols() []string {
	out := make([]string, len(u.symbols))
	copy(out, u.symbols)
	return out
}

// Len returns the universe size.
func (u *Universe) Len() int { return len(u.symbols) }

// Sector returns the sector of a symbol, or "" when unknown.
func (u *Universe) Sector(symbol string) string {
	for name, syms := range u.sectors {
		for _, s := range syms {
			if s == symbol {
				return name
			}
		}
	}
	return ""
}

// Batches splits the universe into consecutive batches of at most size
// symbols, preserving the stable order.
func (u *Universe) Batches(size int) [][]string {
	if size <= 0 {
		return [][]string{u.Symbols()}
	}
	var out [][]string
	for start := 0; start < len(u.symbols); start += size {
		end := start + size
		if end > len(u.symbols) {
			end = len(u.symbols)
		}
		batch := make([]string, end-start)
		copy(batch, u.symbols[start:end])
		out = append(out, batch)
	}
	return out
}
