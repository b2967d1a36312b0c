package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"screener/internal/ratelimit"
	"screener/pkg/model"
)

const (
	eastmoneyQuoteURL = "https://push2.eastmoney.com/api/qt/clist/get"
	eastmoneyKlineURL = "https://push2his.eastmoney.com/api/qt/stock/kline/get"
)

// EastmoneyProvider serves the full-market snapshot and forward-adjusted
// daily klines from the Eastmoney push2 endpoints. No API key required.
type EastmoneyProvider struct {
	client  *http.Client
	limiter *ratelimit.Limiter
	log     zerolog.Logger
}

// NewEastmoneyProvider creates an Eastmoney provider
func NewEastmoneyProvider(perMinute int, log zerolog.Logger) *EastmoneyProvider {
	return &EastmoneyProvider{
		client:  &http.Client{Timeout: 15 * time.Second},
		limiter: ratelimit.NewLimiter("eastmoney", perMinute),
		log:     log.With().Str("provider", "eastmoney").Logger(),
	}
}

func (p *EastmoneyProvider) Name() string { return "eastmoney" }

func (p *EastmoneyProvider) IsAvailable() bool { return true }

func (p *EastmoneyProvider) RateLimit() int { return 300 }

// emNumber tolerates the "-" placeholder Eastmoney uses for suspended
// symbols; ok is false when the field held no number
type emNumber struct {
	val float64
	ok  bool
}

func (n *emNumber) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		n.ok = false
		return nil
	}
	n.val, n.ok = v, true
	return nil
}

type emQuoteResponse struct {
	Data struct {
		Total int `json:"total"`
		Diff  []struct {
			Latest emNumber `json:"f2"`
			Code   string   `json:"f12"`
			Name   string   `json:"f14"`
			Open   emNumber `json:"f17"`
		} `json:"diff"`
	} `json:"data"`
}

// GetQuotes fetches the full A-share realtime snapshot in one request.
// Suspended symbols report "-" for prices and are skipped.
func (p *EastmoneyProvider) GetQuotes(ctx context.Context) ([]Quote, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("pn", "1")
	params.Set("pz", "6000")
	params.Set("po", "1")
	params.Set("np", "1")
	params.Set("fltt", "2")
	params.Set("invt", "2")
	params.Set("fid", "f3")
	// Shanghai + Shenzhen A shares
	params.Set("fs", "m:0+t:6,m:0+t:80,m:1+t:2,m:1+t:23")
	params.Set("fields", "f2,f12,f14,f17")

	body, err := p.get(ctx, eastmoneyQuoteURL+"?"+params.Encode())
	if err != nil {
		return nil, err
	}

	quotes, err := parseQuoteSnapshot(body, p.Name())
	if err != nil {
		return nil, err
	}

	p.log.Debug().Int("quotes", len(quotes)).Msg("fetched market snapshot")
	return quotes, nil
}

// parseQuoteSnapshot decodes the clist payload. Suspended symbols report
// "-" for prices and are skipped.
func parseQuoteSnapshot(body []byte, providerName string) ([]Quote, error) {
	var resp emQuoteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &ProviderError{Provider: providerName, Err: fmt.Errorf("decoding quote snapshot: %w", err)}
	}

	quotes := make([]Quote, 0, len(resp.Data.Diff))
	for _, row := range resp.Data.Diff {
		if !row.Latest.ok || !row.Open.ok {
			continue // suspended, no trade today
		}
		quotes = append(quotes, Quote{
			Stock:  model.Stock{Code: row.Code, Name: row.Name},
			Latest: row.Latest.val,
			Open:   row.Open.val,
		})
	}
	return quotes, nil
}

type emKlineResponse struct {
	Data struct {
		Klines []string `json:"klines"`
	} `json:"data"`
}

// GetDailyBars fetches forward-adjusted daily klines, oldest first
func (p *EastmoneyProvider) GetDailyBars(ctx context.Context, code string, days int) ([]model.Bar, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("secid", secID(code))
	params.Set("klt", "101") // daily
	params.Set("fqt", "1")   // forward adjusted
	params.Set("lmt", strconv.Itoa(days))
	params.Set("end", "20500101")
	params.Set("fields1", "f1,f2,f3,f4,f5,f6")
	params.Set("fields2", "f51,f52,f53,f54,f55,f56")

	body, err := p.get(ctx, eastmoneyKlineURL+"?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var resp emKlineResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("decoding klines for %s: %w", code, err)}
	}

	bars := make([]model.Bar, 0, len(resp.Data.Klines))
	for _, line := range resp.Data.Klines {
		bar, ok := parseKline(line)
		if !ok {
			continue
		}
		bars = append(bars, bar)
	}
	if len(bars) == 0 {
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("no klines for %s", code), Retryable: true}
	}
	return bars, nil
}

// parseKline parses "date,open,close,high,low,volume" (fields2 order)
func parseKline(line string) (model.Bar, bool) {
	parts := strings.Split(line, ",")
	if len(parts) < 6 {
		return model.Bar{}, false
	}
	date, err := time.Parse("2006-01-02", parts[0])
	if err != nil {
		return model.Bar{}, false
	}
	vals := make([]float64, 5)
	for i := 0; i < 5; i++ {
		v, err := strconv.ParseFloat(parts[i+1], 64)
		if err != nil {
			return model.Bar{}, false
		}
		vals[i] = v
	}
	return model.Bar{
		Date:   date,
		Open:   vals[0],
		Close:  vals[1],
		High:   vals[2],
		Low:    vals[3],
		Volume: vals[4],
	}, true
}

func (p *EastmoneyProvider) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: p.Name(), Err: err, Retryable: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		p.limiter.SignalThrottled()
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("throttled (429)"), Retryable: true}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	p.limiter.Reset()
	return io.ReadAll(resp.Body)
}

// secID maps a 6-digit code to Eastmoney's market-prefixed id:
// Shanghai listings (6xxxxx) are market 1, Shenzhen 0
func secID(code string) string {
	if strings.HasPrefix(code, "6") {
		return "1." + code
	}
	return "0." + code
}
