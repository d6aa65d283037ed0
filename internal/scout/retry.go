package scout

import (
	"errors"
	"fmt"

	"scoutengine/internal/domain/entity"
	"scoutengine/internal/sourceadapter"
)

// redditHintByAttempt mirrors spec.md §4.E.6's retry-goal hints, aligned
// positionally with sourceadapter's hot->new->top->rising rotation.
var redditHintByAttempt = map[string]string{
	"hot":    "focus on trending",
	"new":    "focus on most recent",
	"top":    "focus on highest rated",
	"rising": "focus on gaining momentum",
}

// perturbation is the result of nextAttempt: the merged config to retry
// with, a goal-text suffix to append, and whether a retry should happen at
// all.
type perturbation struct {
	cfg     RawConfig
	hint    string
	retryOK bool
}

// nextAttempt is the pure function spec.md §9 calls for: "(kind, cfg,
// attempt) -> cfg', termination flag". lastErr's kind decides termination:
// a StructuredOutputFailure always abandons retries regardless of scout
// kind (spec.md §4.E.6: "suppresses further retries regardless").
func nextAttempt(kind entity.ScoutKind, cfg RawConfig, attempt int, lastErr error) perturbation {
	var sof *entity.StructuredOutputFailure
	if errors.As(lastErr, &sof) {
		return perturbation{retryOK: false}
	}

	switch kind {
	case entity.ScoutKindReddit:
		// cfg already carries the previous attempt's sort (nextAttempt is
		// always called with the progressively-updated config, per
		// discoverWithRetry), so each call advances the rotation by
		// exactly one step regardless of the cumulative attempt count.
		// sourceadapter owns the rotation order so the Executor and the
		// adapter never drift apart on what "next sort" means.
		sort := nextSortPublic(cfg.Reddit().Sort, 1)
		next := Merge(cfg, RawConfig{"reddit_sort": sort})
		return perturbation{cfg: next, hint: redditHintByAttempt[sort], retryOK: true}

	case entity.ScoutKindRSS:
		// spec.md §4.E.6: "ask for older entries or different feeds" — the
		// engine has no richer RSS pagination primitive than "read more
		// broadly", so the perturbation is goal-text only; config is
		// unchanged.
		return perturbation{cfg: cfg, hint: "ask for older entries or different feeds", retryOK: true}

	case entity.ScoutKindSearch:
		suffixes := sourceadapter.SearchQuerySuffixes
		suffix := suffixes[(attempt-1)%len(suffixes)]
		sc := cfg.Search()
		next := Merge(cfg, RawConfig{"query": fmt.Sprintf("%s %s", sc.Query, suffix)})
		return perturbation{cfg: next, hint: suffix, retryOK: true}

	case entity.ScoutKindArxiv:
		ac := cfg.Arxiv()
		current := ac.DaysBack
		if current <= 0 {
			current = daysBackFromDateFilter(ac.DateFilter)
		}
		next := sourceadapter.NextDaysBack(current)
		merged := Merge(cfg, RawConfig{"days_back": float64(next)})
		return perturbation{cfg: merged, hint: fmt.Sprintf("expand to the last %d days", next), retryOK: true}

	case entity.ScoutKindHTTP, entity.ScoutKindMeta:
		// spec.md §4.E.6: "no perturbation; retries abandoned immediately".
		return perturbation{retryOK: false}

	default:
		return perturbation{retryOK: false}
	}
}

func daysBackFromDateFilter(filter string) int {
	switch filter {
	case "today":
		return 1
	case "week":
		return 7
	case "month":
		return 30
	default:
		return 1
	}
}

// nextSortPublic re-derives one rotation step of the Reddit sort order.
// sourceadapter keeps the canonical rotation private to the package that
// owns the HTTP call; this walks the same fixed cycle so the Executor's
// retry goal text and the adapter's actual next-call sort never disagree.
func nextSortPublic(sort string, steps int) string {
	order := []string{"hot", "new", "top", "rising"}
	idx := 0
	for i, s := range order {
		if s == sort {
			idx = i
			break
		}
	}
	return order[(idx+steps)%len(order)]
}
