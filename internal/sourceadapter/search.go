package sourceadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"scoutengine/internal/domain/entity"
	"scoutengine/internal/resilience/circuitbreaker"
	"scoutengine/internal/resilience/retry"
)

// SearchQuerySuffixes are the fixed set the Executor cycles through on
// retry (spec.md §4.E.6): "recent developments", "latest updates", "new
// findings", "alternative perspectives on …".
var SearchQuerySuffixes = []string{
	"recent developments",
	"latest updates",
	"new findings",
	"alternative perspectives on",
}

// SearchAdapter is a stateless transform over a generic web-search JSON
// endpoint. New, grounded on original_source's free-form google_search tool
// shape and the teacher's adapter-interface idiom (stateless transform).
// The concrete provider endpoint is configured via cfg["endpoint"]; when
// absent, Fetch returns ConfigurationMissingError rather than guessing a
// default third-party search API (this engine does not bundle API keys for
// any specific search provider).
type SearchAdapter struct {
	client         *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
}

func NewSearchAdapter(client *http.Client) *SearchAdapter {
	return &SearchAdapter{
		client:         client,
		circuitBreaker: circuitbreaker.New(circuitbreaker.DefaultConfig("search-fetch")),
		retryConfig:    retry.FeedFetchConfig(),
	}
}

func (a *SearchAdapter) Kind() entity.ScoutKind { return entity.ScoutKindSearch }

type searchResult struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Snippet string `json:"snippet"`
	} `json:"results"`
}

// Fetch implements Adapter. cfg keys: query (string), endpoint (string,
// base URL of a JSON search API accepting ?q=&limit=).
func (a *SearchAdapter) Fetch(ctx context.Context, cfg map[string]any, limit int) ([]entity.Item, error) {
	query, _ := cfg["query"].(string)
	if query == "" {
		return nil, &entity.ConfigurationMissingError{Key: "query"}
	}
	endpoint, _ := cfg["endpoint"].(string)
	if endpoint == "" {
		return nil, &entity.ConfigurationMissingError{Key: "endpoint"}
	}
	if err := entity.ValidateURL(endpoint); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("q", query)
	if limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", limit))
	}
	target := endpoint + "?" + params.Encode()

	var result searchResult
	retryErr := retry.WithBackoff(ctx, a.retryConfig, func() error {
		cbResult, err := a.circuitBreaker.Execute(func() (interface{}, error) {
			return a.doFetch(ctx, target)
		})
		if err != nil {
			return err
		}
		result = cbResult.(searchResult)
		return nil
	})
	if retryErr != nil {
		return nil, classifyFetchError(retryErr)
	}

	items := make([]entity.Item, 0, len(result.Results))
	for _, r := range result.Results {
		items = append(items, entity.Item{
			SourceID: "search",
			Title:    r.Title,
			URL:      r.URL,
			Summary:  r.Snippet,
		})
		if limit > 0 && len(items) >= limit {
			break
		}
	}
	return items, nil
}

func (a *SearchAdapter) doFetch(ctx context.Context, target string) (searchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return searchResult{}, err
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return searchResult{}, &entity.TransientNetworkError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return searchResult{}, &retry.HTTPError{StatusCode: http.StatusNotFound, Message: "search endpoint not found"}
	}
	if resp.StatusCode >= 400 {
		return searchResult{}, &retry.HTTPError{StatusCode: resp.StatusCode, Message: "search request failed"}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return searchResult{}, &entity.TransientNetworkError{Err: err}
	}
	var result searchResult
	if err := json.Unmarshal(body, &result); err != nil {
		return searchResult{}, fmt.Errorf("doFetch: unmarshal: %w", err)
	}
	return result, nil
}
