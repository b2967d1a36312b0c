package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"screener/internal/ratelimit"
	"screener/pkg/model"
)

const tencentKlineURL = "https://web.ifzq.gtimg.cn/appstock/app/fqkline/get"

// TencentProvider is the kline fallback used when Eastmoney degrades. It
// only serves daily bars; the market snapshot is not implemented.
type TencentProvider struct {
	client  *http.Client
	limiter *ratelimit.Limiter
	log     zerolog.Logger
}

// NewTencentProvider creates a Tencent kline provider
func NewTencentProvider(perMinute int, log zerolog.Logger) *TencentProvider {
	return &TencentProvider{
		client:  &http.Client{Timeout: 15 * time.Second},
		limiter: ratelimit.NewLimiter("tencent", perMinute),
		log:     log.With().Str("provider", "tencent").Logger(),
	}
}

func (p *TencentProvider) Name() string { return "tencent" }

func (p *TencentProvider) IsAvailable() bool { return true }

func (p *TencentProvider) RateLimit() int { return 120 }

// GetQuotes is not supported by this provider
func (p *TencentProvider) GetQuotes(ctx context.Context) ([]Quote, error) {
	return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("market snapshot not supported")}
}

// GetDailyBars fetches forward-adjusted daily klines, oldest first
func (p *TencentProvider) GetDailyBars(ctx context.Context, code string, days int) ([]model.Bar, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	symbol := tencentSymbol(code)
	rawURL := fmt.Sprintf("%s?param=%s,day,,,%d,qfq", tencentKlineURL, symbol, days)

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

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusTooManyRequests {
			p.limiter.SignalThrottled()
		}
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	p.limiter.Reset()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	// Response shape: {"data":{"<symbol>":{"qfqday":[[date,open,close,high,low,volume,...],...]}}}
	var envelope struct {
		Data map[string]map[string]json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("decoding klines for %s: %w", code, err)}
	}

	series, ok := envelope.Data[symbol]
	if !ok {
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("no data for %s", code)}
	}
	raw, ok := series["qfqday"]
	if !ok {
		raw, ok = series["day"]
	}
	if !ok {
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("no kline rows for %s", code)}
	}

	// Row values arrive as strings: [date, open, close, high, low, volume, ...]
	var rows [][]any
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("decoding kline rows for %s: %w", code, err)}
	}

	bars := make([]model.Bar, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			continue
		}
		dateStr, ok := row[0].(string)
		if !ok {
			continue
		}
		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			continue
		}
		vals := make([]float64, 5)
		valid := true
		for i := 0; i < 5; i++ {
			v, ok := klineField(row[i+1])
			if !ok {
				valid = false
				break
			}
			vals[i] = v
		}
		if !valid {
			continue
		}
		bars = append(bars, model.Bar{
			Date: date, Open: vals[0], Close: vals[1], High: vals[2], Low: vals[3], Volume: vals[4],
		})
	}
	if len(bars) == 0 {
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("no klines for %s", code), Retryable: true}
	}
	return bars, nil
}

// klineField coerces a kline row value, which the endpoint serves as
// either a quoted string or a bare number
func klineField(v any) (float64, bool) {
	switch t := v.(type) {
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	case float64:
		return t, true
	}
	return 0, false
}

// tencentSymbol maps a 6-digit code to the sh/sz prefixed form
func tencentSymbol(code string) string {
	if len(code) > 0 && code[0] == '6' {
		return "sh" + code
	}
	return "sz" + code
}
