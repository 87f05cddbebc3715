package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"peer_valuation/pkg/models"
)

const (
	// DefaultEODHDBaseURL is the base URL for the EODHD API.
	DefaultEODHDBaseURL = "https://eodhd.com/api"

	// DefaultEODHDTimeout is the default HTTP timeout.
	DefaultEODHDTimeout = 30 * time.Second

	// DefaultEODHDRateLimit is the default rate limit (requests per second).
	DefaultEODHDRateLimit = 10
)

// EODHDClient fetches company fundamentals from EODHD.
type EODHDClient struct {
	baseURL    string
	apiKey     string
	exchange   string
	httpClient *http.Client
	logger     arbor.ILogger
	limiter    *rate.Limiter
}

var _ Provider = (*EODHDClient)(nil)

// EODHDOption configures the client.
type EODHDOption func(*EODHDClient)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) EODHDOption {
	return func(c *EODHDClient) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) EODHDOption {
	return func(c *EODHDClient) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a logger.
func WithLogger(logger arbor.ILogger) EODHDOption {
	return func(c *EODHDClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRateLimit sets a custom rate limit.
func WithRateLimit(requestsPerSecond int) EODHDOption {
	return func(c *EODHDClient) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithExchange sets the suffix appended to bare tickers (default "US").
func WithExchange(exchange string) EODHDOption {
	return func(c *EODHDClient) {
		c.exchange = exchange
	}
}

// NewEODHDClient creates a new EODHD API client.
func NewEODHDClient(apiKey string, opts ...EODHDOption) *EODHDClient {
	c := &EODHDClient{
		baseURL:  DefaultEODHDBaseURL,
		apiKey:   apiKey,
		exchange: "US",
		httpClient: &http.Client{
			Timeout: DefaultEODHDTimeout,
		},
		logger:  arbor.NewLogger(),
		limiter: rate.NewLimiter(rate.Limit(DefaultEODHDRateLimit), DefaultEODHDRateLimit),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError represents an error from the EODHD API.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("EODHD API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// Fundamentals is the subset of the EODHD fundamentals document used for valuation.
type Fundamentals struct {
	General *struct {
		Code        string `json:"Code"`
		Name        string `json:"Name"`
		Exchange    string `json:"Exchange"`
		Sector      string `json:"Sector"`
		Industry    string `json:"Industry"`
		Description string `json:"Description"`
		WebURL      string `json:"WebURL"`
	} `json:"General"`
	Highlights *struct {
		EBITDA                    float64 `json:"EBITDA"`
		PERatio                   float64 `json:"PERatio"`
		ProfitMargin              float64 `json:"ProfitMargin"`
		RevenueTTM                float64 `json:"RevenueTTM"`
		QuarterlyRevenueGrowthYOY float64 `json:"QuarterlyRevenueGrowthYOY"`
	} `json:"Highlights"`
	Valuation *struct {
		TrailingPE            float64 `json:"TrailingPE"`
		EnterpriseValue       float64 `json:"EnterpriseValue"`
		EnterpriseValueEbitda float64 `json:"EnterpriseValueEbitda"`
	} `json:"Valuation"`
}

// get performs a GET request to the API.
func (c *EODHDClient) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("eodhd rate limiter: %w", err)
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("api_token", c.apiKey)
	params.Set("fmt", "json")

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.Debug().Str("url", c.baseURL+path).Msg("EODHD API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Endpoint:   path,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// GetFundamentals retrieves the fundamentals document for a symbol ("AAPL.US").
func (c *EODHDClient) GetFundamentals(ctx context.Context, symbol string) (*Fundamentals, error) {
	var result Fundamentals
	if err := c.get(ctx, "/fundamentals/"+url.PathEscape(symbol), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Lookup resolves a ticker through the fundamentals endpoint.
// 404 responses and empty documents map to models.ErrNotFound.
func (c *EODHDClient) Lookup(ctx context.Context, query string) (*models.Company, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("eodhd: no API key configured: %w", models.ErrNotFound)
	}
	symbol := strings.ToUpper(strings.TrimSpace(query))
	if symbol == "" || strings.ContainsAny(symbol, " /") {
		return nil, fmt.Errorf("eodhd: %q is not a ticker: %w", query, models.ErrNotFound)
	}
	if !strings.Contains(symbol, ".") && c.exchange != "" {
		symbol += "." + c.exchange
	}

	f, err := c.GetFundamentals(ctx, symbol)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("eodhd %s: %w", symbol, models.ErrNotFound)
		}
		return nil, err
	}

	company := f.ToCompany()
	if company == nil {
		return nil, fmt.Errorf("eodhd %s: empty fundamentals: %w", symbol, models.ErrNotFound)
	}
	c.logger.Info().Str("symbol", symbol).Str("name", company.Name).Msg("Resolved company from EODHD")
	return company, nil
}

// ToCompany maps fundamentals onto the valuation model. Revenue and earnings are
// converted to millions; missing figures stay nil and the investment profile
// falls back to the standard assumptions.
func (f *Fundamentals) ToCompany() *models.Company {
	if f == nil || f.General == nil || strings.TrimSpace(f.General.Name) == "" {
		return nil
	}
	c := &models.Company{
		Name:        strings.TrimSpace(f.General.Name),
		Ticker:      f.General.Code,
		Description: strings.TrimSpace(f.General.Description),
		Sector:      f.General.Sector,
		Industry:    f.General.Industry,
	}

	if h := f.Highlights; h != nil {
		if h.RevenueTTM > 0 {
			c.RevenueBase = models.Float(h.RevenueTTM / 1e6)
			if h.EBITDA != 0 {
				c.EBITDAMargin = models.Float(h.EBITDA / h.RevenueTTM)
			}
			if h.ProfitMargin != 0 {
				c.Earnings = models.Float(h.ProfitMargin * h.RevenueTTM / 1e6)
			}
		}
		if h.QuarterlyRevenueGrowthYOY != 0 {
			c.RevenueGrowth = models.Float(h.QuarterlyRevenueGrowthYOY)
		}
		if h.PERatio > 0 {
			c.PERatio = models.Float(h.PERatio)
		}
	}
	if v := f.Valuation; v != nil {
		if v.EnterpriseValueEbitda > 0 {
			c.EVEBITDA = models.Float(v.EnterpriseValueEbitda)
		}
		if c.PERatio == nil && v.TrailingPE > 0 {
			c.PERatio = models.Float(v.TrailingPE)
		}
	}

	FillDriverDefaults(c)
	return c
}
