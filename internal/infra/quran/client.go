// Package quran implements the page-content fetcher against the
// api.quran.com v4 REST API.
package quran

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	domain "khatm_bot/internal/domain/quran"
)

const maxResponseBytes = 2 << 20

// Client fetches mushaf pages over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logrus.Entry
}

var _ domain.Fetcher = (*Client)(nil)

func NewClient(baseURL string, timeout time.Duration, logger *logrus.Entry) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// FetchPage returns the verses on one page with their surah names.
func (c *Client) FetchPage(ctx context.Context, pageNumber int) (*domain.Page, error) {
	if pageNumber < 1 || pageNumber > domain.MushafPages {
		return nil, fmt.Errorf("page %d out of range 1-%d", pageNumber, domain.MushafPages)
	}

	query := url.Values{}
	query.Set("language", "ar")
	query.Set("words", "false")
	query.Set("fields", "text_uthmani,chapter_id")
	query.Set("per_page", "50")
	endpoint := fmt.Sprintf("%s/verses/by_page/%d?%s", c.baseURL, pageNumber, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build page %d request: %w", pageNumber, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch page %d: %w", pageNumber, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch page %d: unexpected status %d", pageNumber, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read page %d: %w", pageNumber, err)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("page %d: invalid JSON response", pageNumber)
	}

	result := gjson.GetBytes(body, "verses")
	if !result.IsArray() {
		return nil, fmt.Errorf("page %d: response has no verses", pageNumber)
	}

	page := &domain.Page{Number: pageNumber}
	result.ForEach(func(_, v gjson.Result) bool {
		page.Verses = append(page.Verses, domain.Verse{
			ID:          v.Get("id").Int(),
			Key:         v.Get("verse_key").String(),
			TextUthmani: v.Get("text_uthmani").String(),
			ChapterID:   int(v.Get("chapter_id").Int()),
		})
		return true
	})
	page.SurahNames = domain.SurahNamesOf(page.Verses)

	c.logger.WithFields(logrus.Fields{"page": pageNumber, "verses": len(page.Verses)}).Debug("Fetched page content")
	return page, nil
}
