package sourceadapter

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"scoutengine/internal/domain/entity"
	"scoutengine/internal/resilience/circuitbreaker"
	"scoutengine/internal/resilience/retry"
)

// MaxDaysBack is the cap the Executor's retry perturbation doubles toward
// (spec.md §4.E.6: "double the days-back window", capped at 90).
const MaxDaysBack = 90

// ArxivAdapter is a stateless transform over the ArXiv Atom export API.
// New, grounded on original_source's tools/arxiv_tool.py: when days_back is
// set, sort by SubmittedDate and scan for the first paper published within
// the window; otherwise sort by Relevance and take the top hit.
type ArxivAdapter struct {
	client         *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
}

func NewArxivAdapter(client *http.Client) *ArxivAdapter {
	return &ArxivAdapter{
		client:         client,
		circuitBreaker: circuitbreaker.New(circuitbreaker.DefaultConfig("arxiv-fetch")),
		retryConfig:    retry.FeedFetchConfig(),
	}
}

func (a *ArxivAdapter) Kind() entity.ScoutKind { return entity.ScoutKindArxiv }

type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID        string `xml:"id"`
	Title     string `xml:"title"`
	Summary   string `xml:"summary"`
	Published string `xml:"published"`
	Authors   []struct {
		Name string `xml:"name"`
	} `xml:"author"`
}

// Fetch implements Adapter. cfg keys: query (string), date_filter
// (today|week|month, translated to a days_back window of 1/7/30).
func (a *ArxivAdapter) Fetch(ctx context.Context, cfg map[string]any, limit int) ([]entity.Item, error) {
	query, _ := cfg["query"].(string)
	if query == "" {
		return nil, &entity.ConfigurationMissingError{Key: "query"}
	}

	daysBack := daysBackFromFilter(cfg["date_filter"])
	if override, ok := cfg["days_back"].(float64); ok {
		daysBack = int(override)
	}

	maxResults := 1
	sortBy := "relevance"
	if daysBack > 0 {
		maxResults = 20
		sortBy = "submittedDate"
	}
	if limit > 0 && limit < maxResults {
		maxResults = limit
	}

	feed, err := a.search(ctx, query, sortBy, maxResults)
	if err != nil {
		return nil, err
	}

	if daysBack <= 0 {
		if len(feed.Entries) == 0 {
			return nil, nil
		}
		return []entity.Item{entryToArxivItem(feed.Entries[0])}, nil
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -daysBack)
	for _, e := range feed.Entries {
		published, err := time.Parse(time.RFC3339, e.Published)
		if err != nil {
			continue
		}
		if !published.Before(cutoff) {
			return []entity.Item{entryToArxivItem(e)}, nil
		}
	}
	return nil, nil
}

func daysBackFromFilter(v any) int {
	filter, _ := v.(string)
	switch filter {
	case "today":
		return 1
	case "week":
		return 7
	case "month":
		return 30
	default:
		return 0
	}
}

// NextDaysBack doubles the window, capped at MaxDaysBack, for the
// Executor's ArXiv retry perturbation.
func NextDaysBack(current int) int {
	if current <= 0 {
		current = 1
	}
	next := current * 2
	if next > MaxDaysBack {
		next = MaxDaysBack
	}
	return next
}

func entryToArxivItem(e atomEntry) entity.Item {
	authors := make([]string, 0, len(e.Authors))
	for _, au := range e.Authors {
		authors = append(authors, au.Name)
	}
	arxivID := e.ID
	if idx := strings.LastIndex(e.ID, "/"); idx >= 0 {
		arxivID = e.ID[idx+1:]
	}
	summary := fmt.Sprintf(
		"Title: %s\nAuthors: %s\nPublished: %s\nArxivID: %s\nURL: %s\nAbstract: %s",
		strings.TrimSpace(e.Title), strings.Join(authors, ", "), e.Published, arxivID, e.ID, strings.TrimSpace(e.Summary),
	)
	return entity.Item{
		SourceID:    "arxiv",
		Title:       strings.TrimSpace(e.Title),
		URL:         e.ID,
		Summary:     summary,
		PublishedAt: e.Published,
		Sources:     []string{e.ID},
	}
}

func (a *ArxivAdapter) search(ctx context.Context, query, sortBy string, maxResults int) (*atomFeed, error) {
	params := url.Values{}
	params.Set("search_query", "all:"+query)
	params.Set("sortBy", sortBy)
	params.Set("sortOrder", "descending")
	params.Set("max_results", strconv.Itoa(maxResults))
	endpoint := "http://export.arxiv.org/api/query?" + params.Encode()

	var feed atomFeed
	retryErr := retry.WithBackoff(ctx, a.retryConfig, func() error {
		cbResult, err := a.circuitBreaker.Execute(func() (interface{}, error) {
			return a.doFetch(ctx, endpoint)
		})
		if err != nil {
			return err
		}
		feed = cbResult.(atomFeed)
		return nil
	})
	if retryErr != nil {
		return nil, classifyFetchError(retryErr)
	}
	return &feed, nil
}

func (a *ArxivAdapter) doFetch(ctx context.Context, endpoint string) (atomFeed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return atomFeed{}, err
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return atomFeed{}, &entity.TransientNetworkError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return atomFeed{}, &retry.HTTPError{StatusCode: resp.StatusCode, Message: "arxiv request failed"}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return atomFeed{}, &entity.TransientNetworkError{Err: err}
	}
	var feed atomFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return atomFeed{}, fmt.Errorf("doFetch: unmarshal: %w", err)
	}
	return feed, nil
}
