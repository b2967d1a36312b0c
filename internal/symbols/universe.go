package symbols

import (
	"strings"

	"screener/internal/provider"
	"screener/pkg/model"
)

// Board classification by code prefix. The screener covers the Shanghai
// and Shenzhen main boards plus ChiNext; STAR market and Beijing exchange
// listings are excluded (different limit-up regimes).

// IsChiNext reports whether the code is a ChiNext listing (3xxxxx)
func IsChiNext(code string) bool {
	return strings.HasPrefix(code, "3")
}

// IsMainBoard reports whether the code is a Shanghai or Shenzhen main
// board listing (6xxxxx / 0xxxxx)
func IsMainBoard(code string) bool {
	return strings.HasPrefix(code, "6") || strings.HasPrefix(code, "0")
}

// IsSTAR reports whether the code is a STAR market listing (688/689)
func IsSTAR(code string) bool {
	return strings.HasPrefix(code, "688") || strings.HasPrefix(code, "689")
}

// Tradable reports whether a symbol belongs in the scan universe:
// main board or ChiNext, not STAR, and not an ST/delisting name
func Tradable(code, name string) bool {
	if len(code) != 6 {
		return false
	}
	if !IsMainBoard(code) && !IsChiNext(code) {
		return false
	}
	if IsSTAR(code) {
		return false
	}
	if strings.Contains(name, "ST") || strings.Contains(name, "退") {
		return false
	}
	return true
}

// BuildUniverse filters the market snapshot down to the scan universe
// and applies the pre-screen shared by all three detectors: today must
// be bullish (latest above open). This cuts the expensive per-symbol
// history fetches roughly in half.
func BuildUniverse(quotes []provider.Quote) []model.Stock {
	stocks := make([]model.Stock, 0, len(quotes))
	for _, q := range quotes {
		if !Tradable(q.Stock.Code, q.Stock.Name) {
			continue
		}
		if q.Latest <= 0 || q.Open <= 0 || q.Latest <= q.Open {
			continue
		}
		stocks = append(stocks, q.Stock)
	}
	return stocks
}

// FromList builds a universe from explicit symbol codes, bypassing the
// snapshot filters (useful for targeted scans and testing)
func FromList(codes []string) []model.Stock {
	stocks := make([]model.Stock, 0, len(codes))
	for _, code := range codes {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		stocks = append(stocks, model.Stock{Code: code, Name: code})
	}
	return stocks
}
