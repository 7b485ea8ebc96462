package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sanoj619/SanSM/internal/model"
)

// DefaultNSEBaseURL is the public NSE India site.
const DefaultNSEBaseURL = "https://www.nseindia.com"

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// NSEFetcher implements Fetcher using the NSE India JSON API.
// The API rejects requests that do not carry the session cookies the site
// hands out on its HTML pages, so the client primes a cookie jar first.
type NSEFetcher struct {
	BaseURL string
	Client  *http.Client

	mu     sync.Mutex
	primed bool
}

// NewNSEFetcher creates a new fetcher with optional proxy support.
func NewNSEFetcher(baseURL, proxyURL string, timeout time.Duration) *NSEFetcher {
	if baseURL == "" {
		baseURL = DefaultNSEBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	jar, _ := cookiejar.New(nil)
	return &NSEFetcher{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
			Jar:       jar,
		},
	}
}

func (f *NSEFetcher) Name() string { return "nse" }

func (f *NSEFetcher) FetchInstrument(ctx context.Context, symbol string) (*model.InstrumentSnapshot, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("fetch instrument: empty symbol")
	}
	endpoint := fmt.Sprintf("%s/api/quote-equity?symbol=%s", f.BaseURL, url.QueryEscape(symbol))
	body, err := f.get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("fetch instrument %s: %w", symbol, err)
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("{}")) || bytes.Equal(trimmed, []byte("null")) {
		return nil, fmt.Errorf("fetch instrument %s: %w", symbol, ErrEmptySnapshot)
	}

	var snap model.InstrumentSnapshot
	if err := json.Unmarshal(trimmed, &snap); err != nil {
		return nil, fmt.Errorf("decode instrument %s: %w", symbol, err)
	}
	if snap.Empty() {
		return nil, fmt.Errorf("fetch instrument %s: %w", symbol, ErrEmptySnapshot)
	}
	snap.Raw = append(json.RawMessage(nil), trimmed...)
	return &snap, nil
}

// preOpenResponse is the expected JSON shape of the pre-open market listing.
type preOpenResponse struct {
	Data []struct {
		Metadata struct {
			Symbol string `json:"symbol"`
		} `json:"metadata"`
	} `json:"data"`
}

func (f *NSEFetcher) ListAllSymbols(ctx context.Context) ([]string, error) {
	body, err := f.get(ctx, f.BaseURL+"/api/market-data-pre-open?key=ALL")
	if err != nil {
		return nil, fmt.Errorf("list symbols: %w", err)
	}
	var resp preOpenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode symbol list: %w", err)
	}

	seen := make(map[string]bool, len(resp.Data))
	symbols := make([]string, 0, len(resp.Data))
	for _, d := range resp.Data {
		s := d.Metadata.Symbol
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		symbols = append(symbols, s)
	}
	return symbols, nil
}

// get performs an API request, priming the session first and once more if
// the site rejects the cookies it handed out earlier.
func (f *NSEFetcher) get(ctx context.Context, endpoint string) ([]byte, error) {
	if err := f.prime(ctx, false); err != nil {
		return nil, err
	}
	body, status, err := f.do(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		log.Warn().Int("status", status).Str("endpoint", endpoint).Msg("nse session rejected, re-priming cookies")
		if err := f.prime(ctx, true); err != nil {
			return nil, err
		}
		body, status, err = f.do(ctx, endpoint)
		if err != nil {
			return nil, err
		}
	}
	switch {
	case status == http.StatusNotFound:
		return nil, ErrNotFound
	case status != http.StatusOK:
		return nil, fmt.Errorf("status %d, body: %s", status, truncate(body, 200))
	}
	return body, nil
}

func (f *NSEFetcher) do(ctx context.Context, endpoint string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, err
	}
	setBrowserHeaders(req)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Referer", f.BaseURL+"/")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read body: %w", err)
	}
	return body, resp.StatusCode, nil
}

func (f *NSEFetcher) prime(ctx context.Context, force bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.primed && !force {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.BaseURL+"/", nil)
	if err != nil {
		return err
	}
	setBrowserHeaders(req)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.Client.Do(req)
	if err != nil {
		return fmt.Errorf("prime session: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("prime session: status %d", resp.StatusCode)
	}
	f.primed = true
	return nil
}

func setBrowserHeaders(req *http.Request) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
