package marketdata

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
	"golang.org/x/time/rate"

	"spot-perps-arb/internal/config"
)

const birdeyeHistoryPath = "/defi/history_price"

// BirdeyeOptions parameterise the price-history client.
type BirdeyeOptions struct {
	BaseURL     string
	APIKey      string
	Timeout     time.Duration
	MinInterval time.Duration
	Retry       config.RetryConfig
}

// Birdeye fetches bucketed token price history. The public API enforces a
// strict request budget, so every call waits on a shared limiter sized to one
// request per MinInterval across the whole process.
type Birdeye struct {
	opts    BirdeyeOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
	limiter *rate.Limiter
	retry   retrier
}

// NewBirdeye constructs the client.
func NewBirdeye(opts BirdeyeOptions, logger zerolog.Logger) *Birdeye {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	minInterval := opts.MinInterval
	if minInterval <= 0 {
		minInterval = time.Second
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://public-api.birdeye.so"
	}
	log := logger.With().Str("component", "birdeye").Logger()
	return &Birdeye{
		opts:    opts,
		logger:  log,
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		limiter: rate.NewLimiter(rate.Every(minInterval), 1),
		retry:   newRetrier(opts.Retry, log),
	}
}

type birdeyePricePoint struct {
	UnixTime int64   `json:"unixTime"`
	Value    float64 `json:"value"`
}

type birdeyeHistoryResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Items []birdeyePricePoint `json:"items"`
	} `json:"data"`
}

func (b *Birdeye) getHistory(ctx context.Context, query url.Values, out *birdeyeHistoryResponse) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}
	target := b.baseURL + birdeyeHistoryPath + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-chain", "solana")
	if b.opts.APIKey != "" {
		req.Header.Set("X-API-KEY", b.opts.APIKey)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("birdeye api error (%d): %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode birdeye response: %w", err)
	}
	if !out.Success {
		return fmt.Errorf("birdeye api reported failure")
	}
	return nil
}

// PriceHistory returns bucketed prices for a mint over [from, to], or an
// empty slice when the source is unavailable. bucket uses the API's own
// notation ("1H", "4H", ...).
func (b *Birdeye) PriceHistory(ctx context.Context, mint string, from, to time.Time, bucket string) []PricePoint {
	query := url.Values{}
	query.Set("address", mint)
	query.Set("address_type", "token")
	query.Set("type", bucket)
	query.Set("time_from", strconv.FormatInt(from.Unix(), 10))
	query.Set("time_to", strconv.FormatInt(to.Unix(), 10))

	var payload birdeyeHistoryResponse
	err := b.retry.do(ctx, "history_price", func() error {
		payload = birdeyeHistoryResponse{}
		return b.getHistory(ctx, query, &payload)
	})
	if err != nil {
		return nil
	}

	out := make([]PricePoint, 0, len(payload.Data.Items))
	for _, item := range payload.Data.Items {
		if item.UnixTime == 0 {
			continue
		}
		out = append(out, PricePoint{
			Time:  time.Unix(item.UnixTime, 0).UTC(),
			Price: item.Value,
		})
	}
	return out
}

var _ PriceHistorySource = (*Birdeye)(nil)
