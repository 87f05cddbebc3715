package market

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"

	"peer_valuation/pkg/models"
)

// ProfileScraper fills missing business descriptions from a company profile page.
type ProfileScraper struct {
	// URLTemplate is formatted with the ticker, e.g. "https://example.com/quote/%s/profile".
	URLTemplate string
	// Selector picks the description element. Empty means meta description only.
	Selector   string
	HTTPClient *http.Client
	Logger     arbor.ILogger
}

// NewProfileScraper returns a scraper with a 15s timeout.
func NewProfileScraper(urlTemplate, selector string, logger arbor.ILogger) *ProfileScraper {
	if logger == nil {
		logger = arbor.NewLogger()
	}
	return &ProfileScraper{
		URLTemplate: urlTemplate,
		Selector:    selector,
		HTTPClient:  &http.Client{Timeout: 15 * time.Second},
		Logger:      logger,
	}
}

// Description fetches the profile page for ticker and extracts its summary text.
func (s *ProfileScraper) Description(ctx context.Context, ticker string) (string, error) {
	if s.URLTemplate == "" || strings.TrimSpace(ticker) == "" {
		return "", models.ErrNotFound
	}
	url := fmt.Sprintf(s.URLTemplate, strings.ToUpper(strings.TrimSpace(ticker)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; peer-valuation/1.0)")

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch profile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("profile %s: status %d: %w", ticker, resp.StatusCode, models.ErrNotFound)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to parse profile: %w", err)
	}

	var text string
	if s.Selector != "" {
		text = collapse(doc.Find(s.Selector).First().Text())
	}
	if text == "" {
		if content, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
			text = collapse(content)
		}
	}
	if text == "" {
		if content, ok := doc.Find(`meta[property="og:description"]`).Attr("content"); ok {
			text = collapse(content)
		}
	}
	if text == "" {
		return "", fmt.Errorf("profile %s: no description: %w", ticker, models.ErrNotFound)
	}
	return text, nil
}

// Enrich sets the description on companies that have none. Failures are logged
// and skipped; the number of companies enriched is returned.
func (s *ProfileScraper) Enrich(ctx context.Context, set models.PeerSet) int {
	n := 0
	for _, c := range set {
		if ctx.Err() != nil {
			break
		}
		if c == nil || strings.TrimSpace(c.Description) != "" || c.Ticker == "" {
			continue
		}
		desc, err := s.Description(ctx, c.Ticker)
		if err != nil {
			s.Logger.Debug().Str("ticker", c.Ticker).Err(err).Msg("No profile description")
			continue
		}
		c.Description = desc
		n++
	}
	return n
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
