package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"

	"screener/internal/ratelimit"
)

const sinaQuoteURL = "http://hq.sinajs.cn/list="

var sinaLineRE = regexp.MustCompile(`hq_str_(\w+)="([^",]+)`)

// SinaNameResolver refreshes display names from the Sina batch quote
// endpoint. Names change after relistings and ST flag updates, so the
// snapshot name is re-resolved for matched symbols after the scan.
type SinaNameResolver struct {
	client    *http.Client
	limiter   *ratelimit.Limiter
	batchSize int
	log       zerolog.Logger
}

// NewSinaNameResolver creates a Sina name resolver
func NewSinaNameResolver(log zerolog.Logger) *SinaNameResolver {
	return &SinaNameResolver{
		client:    &http.Client{Timeout: 10 * time.Second},
		limiter:   ratelimit.NewLimiter("sina", 60),
		batchSize: 100,
		log:       log.With().Str("provider", "sina").Logger(),
	}
}

// GetLatestNames resolves display names for the given codes in batches.
// Codes missing from the response are simply absent from the result map.
func (r *SinaNameResolver) GetLatestNames(ctx context.Context, codes []string) (map[string]string, error) {
	names := make(map[string]string, len(codes))

	for start := 0; start < len(codes); start += r.batchSize {
		end := start + r.batchSize
		if end > len(codes) {
			end = len(codes)
		}

		if err := r.limiter.Wait(ctx); err != nil {
			return names, err
		}
		if err := r.fetchBatch(ctx, codes[start:end], names); err != nil {
			// Partial results are still useful; report the error but
			// keep what was resolved so far
			return names, err
		}
	}
	return names, nil
}

func (r *SinaNameResolver) fetchBatch(ctx context.Context, codes []string, names map[string]string) error {
	prefixed := make([]string, len(codes))
	for i, code := range codes {
		prefixed[i] = sinaSymbol(code)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sinaQuoteURL+strings.Join(prefixed, ","), nil)
	if err != nil {
		return err
	}
	// The endpoint rejects requests without a finance.sina referer
	req.Header.Set("Referer", "http://finance.sina.com.cn")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("sina quote request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("sina quote request: status %d", resp.StatusCode)
	}

	// Payload is GBK encoded
	body, err := io.ReadAll(transform.NewReader(resp.Body, simplifiedchinese.GBK.NewDecoder()))
	if err != nil {
		return fmt.Errorf("decoding sina payload: %w", err)
	}

	for _, line := range strings.Split(string(body), "\n") {
		m := sinaLineRE.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		symbol, name := m[1], m[2]
		if len(symbol) > 2 {
			names[symbol[2:]] = name
		}
	}
	return nil
}

// sinaSymbol maps a 6-digit code to the sh/sz prefixed form
func sinaSymbol(code string) string {
	if strings.HasPrefix(code, "6") {
		return "sh" + code
	}
	return "sz" + code
}
