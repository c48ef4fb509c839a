package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultEndpoint is the quote endpoint queried each round.
	DefaultEndpoint = "https://data.binance.com/api/v3/avgPrice?symbol=BTCUSDT"

	// DefaultTimeout is the deadline of one quote request.
	DefaultTimeout = 8000 * time.Millisecond

	// maxQuoteSize bounds the response body read.
	maxQuoteSize = 64 << 10
)

// ErrUnexpectedStatus is returned when the endpoint answers with a non-200 status.
var ErrUnexpectedStatus = errors.New("unexpected status")

// Quote is the decoded endpoint response.
type Quote struct {
	Minutes uint8  `json:"mins"`  // Minutes is the averaging window
	Price   string `json:"price"` // Price is the quote, kept as received
}

// QuoteSource fetches the current quote.
type QuoteSource interface {
	Fetch(ctx context.Context) (Quote, error)
}

// HTTPQuoteSource fetches quotes over HTTP with a hard deadline.
type HTTPQuoteSource struct {
	url     string
	timeout time.Duration
	client  *http.Client
}

// NewHTTPQuoteSource creates a source for url. A zero timeout uses DefaultTimeout.
func NewHTTPQuoteSource(url string, timeout time.Duration) *HTTPQuoteSource {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &HTTPQuoteSource{
		url:     url,
		timeout: timeout,
		client:  &http.Client{},
	}
}

// Fetch requests and decodes one quote.
func (s *HTTPQuoteSource) Fetch(ctx context.Context) (Quote, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return Quote{}, fmt.Errorf("build request:\n%w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return Quote{}, fmt.Errorf("fetch quote:\n%w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Quote{}, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxQuoteSize))
	if err != nil {
		return Quote{}, fmt.Errorf("read quote:\n%w", err)
	}

	var q Quote
	if err := json.Unmarshal(body, &q); err != nil {
		return Quote{}, fmt.Errorf("decode quote:\n%w", err)
	}

	return q, nil
}
