package sourceadapter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"scoutengine/internal/domain/entity"
	"scoutengine/internal/resilience/circuitbreaker"
	"scoutengine/internal/resilience/retry"
)

// HTTPAdapter reads an arbitrary web page. Adapted from the teacher's
// internal/infra/fetcher/readability.go (go-shiori/go-readability) with a
// goquery fallback for pages Readability can't parse, matching the
// teacher's scraper-factory fallback pattern
// (internal/infra/scraper/factory.go).
type HTTPAdapter struct {
	client         *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
}

func NewHTTPAdapter(client *http.Client) *HTTPAdapter {
	return &HTTPAdapter{
		client:         client,
		circuitBreaker: circuitbreaker.New(circuitbreaker.WebScraperConfig()),
		retryConfig:    retry.WebScraperConfig(),
	}
}

func (a *HTTPAdapter) Kind() entity.ScoutKind { return entity.ScoutKindHTTP }

// Fetch implements Adapter. cfg keys: url (string). limit is ignored: an
// HTTP scout always reads exactly the one page it names.
func (a *HTTPAdapter) Fetch(ctx context.Context, cfg map[string]any, _ int) ([]entity.Item, error) {
	target, _ := cfg["url"].(string)
	if target == "" {
		return nil, &entity.ConfigurationMissingError{Key: "url"}
	}
	if err := entity.ValidateURL(target); err != nil {
		return nil, err
	}

	var item entity.Item
	retryErr := retry.WithBackoff(ctx, a.retryConfig, func() error {
		cbResult, err := a.circuitBreaker.Execute(func() (interface{}, error) {
			return a.doFetch(ctx, target)
		})
		if err != nil {
			return err
		}
		item = cbResult.(entity.Item)
		return nil
	})
	if retryErr != nil {
		return nil, classifyFetchError(retryErr)
	}
	return []entity.Item{item}, nil
}

func (a *HTTPAdapter) doFetch(ctx context.Context, target string) (entity.Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return entity.Item{}, err
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return entity.Item{}, &entity.TransientNetworkError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return entity.Item{}, &retry.HTTPError{StatusCode: http.StatusNotFound, Message: "page not found"}
	}
	if resp.StatusCode >= 400 {
		return entity.Item{}, &retry.HTTPError{StatusCode: resp.StatusCode, Message: "http fetch failed"}
	}

	parsedURL, err := url.Parse(target)
	if err != nil {
		return entity.Item{}, fmt.Errorf("doFetch: parse url: %w", err)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return entity.Item{}, &entity.TransientNetworkError{Err: err}
	}

	article, rdErr := readability.FromReader(bytes.NewReader(body), parsedURL)
	if rdErr == nil && strings.TrimSpace(article.TextContent) != "" {
		return entity.Item{
			SourceID: "http",
			Title:    article.Title,
			URL:      target,
			Summary:  truncate(article.TextContent, 2000),
		}, nil
	}

	// Readability couldn't extract a usable article body; fall back to a
	// goquery scrape of <title> plus visible paragraph text.
	doc, gqErr := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if gqErr != nil {
		return entity.Item{}, fmt.Errorf("doFetch: readability and goquery both failed: %w / %w", rdErr, gqErr)
	}
	title := doc.Find("title").First().Text()
	var sb strings.Builder
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		sb.WriteString(s.Text())
		sb.WriteString(" ")
	})
	return entity.Item{
		SourceID: "http",
		Title:    strings.TrimSpace(title),
		URL:      target,
		Summary:  truncate(strings.TrimSpace(sb.String()), 2000),
	}, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
