package sourceadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"scoutengine/internal/domain/entity"
	"scoutengine/internal/resilience/circuitbreaker"
	"scoutengine/internal/resilience/retry"
)

// redditSortRotation is the listing sort order, rotated by the Executor's retry
// perturbation (spec.md §4.E.6): hot -> new -> top -> rising.
var redditSortRotation = []string{"hot", "new", "top", "rising"}

// RedditAdapter translates (subreddit, sort, limit) into a single public
// JSON endpoint call. New, grounded on original_source's tools/reddit.py;
// HTTP plumbing/backoff grounded on the teacher's retry/circuitbreaker
// packages.
type RedditAdapter struct {
	client         *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
	limiter        *rate.Limiter
}

// NewRedditAdapter constructs a RedditAdapter with a 1 req/s, burst-2 token
// bucket shared across every call from this process (spec.md §4.B
// additions: Reddit's anonymous JSON endpoint is aggressively throttled).
func NewRedditAdapter(client *http.Client) *RedditAdapter {
	return &RedditAdapter{
		client:         client,
		circuitBreaker: circuitbreaker.New(circuitbreaker.DefaultConfig("reddit-fetch")),
		retryConfig:    retry.FeedFetchConfig(),
		limiter:        rate.NewLimiter(rate.Limit(1), 2),
	}
}

func (a *RedditAdapter) Kind() entity.ScoutKind { return entity.ScoutKindReddit }

type redditListing struct {
	Data struct {
		Children []struct {
			Data struct {
				Title       string  `json:"title"`
				Selftext    string  `json:"selftext"`
				URL         string  `json:"url"`
				Permalink   string  `json:"permalink"`
				Score       int     `json:"score"`
				NumComments int     `json:"num_comments"`
				Author      string  `json:"author"`
				CreatedUTC  float64 `json:"created_utc"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// Fetch implements Adapter for a single subreddit/sort pair taken from cfg.
// cfg keys: subreddits ([]string, fetched in order until limit items are
// collected), reddit_sort.
func (a *RedditAdapter) Fetch(ctx context.Context, cfg map[string]any, limit int) ([]entity.Item, error) {
	subreddits := stringSlice(cfg["subreddits"])
	if len(subreddits) == 0 {
		return nil, &entity.ConfigurationMissingError{Key: "subreddits"}
	}
	sort, _ := cfg["reddit_sort"].(string)
	if sort == "" {
		sort = "hot"
	}

	items := make([]entity.Item, 0, limit)
	for _, sub := range subreddits {
		if len(items) >= limit {
			break
		}
		fetched, err := a.fetchSubreddit(ctx, sub, sort, limit-len(items))
		if err != nil {
			return items, err
		}
		items = append(items, fetched...)
	}
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// fetchSubreddit is the original_source's reddit_search: clamp the limit to
// [20,100], strip any r/ or /r/ prefix, hit the public JSON listing.
func (a *RedditAdapter) fetchSubreddit(ctx context.Context, subreddit, sort string, limit int) ([]entity.Item, error) {
	if limit < 20 {
		limit = 20
	} else if limit > 100 {
		limit = 100
	}

	subreddit = strings.TrimPrefix(subreddit, "/r/")
	subreddit = strings.TrimPrefix(subreddit, "r/")

	url := fmt.Sprintf("https://www.reddit.com/r/%s/%s.json?limit=%d", subreddit, sort, limit)

	if err := a.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("fetchSubreddit: rate limiter: %w", err)
	}

	var listing redditListing
	retryErr := retry.WithBackoff(ctx, a.retryConfig, func() error {
		cbResult, err := a.circuitBreaker.Execute(func() (interface{}, error) {
			return a.doFetch(ctx, url)
		})
		if err != nil {
			return err
		}
		listing = cbResult.(redditListing)
		return nil
	})
	if retryErr != nil {
		return nil, classifyFetchError(retryErr)
	}

	items := make([]entity.Item, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		d := child.Data
		content := d.Selftext
		if content == "" {
			content = d.URL
		}
		publishedAt := time.Unix(int64(d.CreatedUTC), 0).UTC().Format(time.RFC3339)
		items = append(items, entity.Item{
			SourceID:    fmt.Sprintf("r/%s", subreddit),
			Title:       d.Title,
			URL:         "https://www.reddit.com" + d.Permalink,
			Summary:     content,
			PublishedAt: publishedAt,
			Metadata: map[string]any{
				"score":        d.Score,
				"num_comments": d.NumComments,
				"author":       d.Author,
			},
		})
	}
	return items, nil
}

func (a *RedditAdapter) doFetch(ctx context.Context, url string) (redditListing, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return redditListing{}, err
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return redditListing{}, &entity.TransientNetworkError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusNotFound:
		return redditListing{}, &retry.HTTPError{StatusCode: http.StatusNotFound, Message: "subreddit not found"}
	case http.StatusTooManyRequests:
		return redditListing{}, &retry.HTTPError{StatusCode: http.StatusTooManyRequests, Message: "rate limit exceeded"}
	}
	if resp.StatusCode >= 400 {
		return redditListing{}, &retry.HTTPError{StatusCode: resp.StatusCode, Message: "reddit request failed: " + strconv.Itoa(resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return redditListing{}, &entity.TransientNetworkError{Err: err}
	}
	var listing redditListing
	if err := json.Unmarshal(body, &listing); err != nil {
		return redditListing{}, fmt.Errorf("doFetch: unmarshal: %w", err)
	}
	return listing, nil
}

// nextSort returns the sort (attempt original index + attempt) mod 4 cycles
// to, per spec.md §4.E.6's Reddit retry perturbation.
func nextSort(currentSort string, attempt int) string {
	idx := 0
	for i, s := range redditSortRotation {
		if s == currentSort {
			idx = i
			break
		}
	}
	return redditSortRotation[(idx+attempt)%len(redditSortRotation)]
}
