package entity

import "fmt"

// Item is an in-memory scouted candidate produced by a source adapter,
// before it passes through the Dedup Store. Items are never stored directly
// — only their derived ContentFingerprint and, if selected, their rendering
// into a Draft survive a run. Grounded on original_source's ContentItem
// dataclass (src/influencerpy/core/models.py).
type Item struct {
	SourceID    string
	Title       string
	URL         string
	Summary     string
	PublishedAt string // free-form as produced by the model/adapter, not parsed
	Sources     []string
	ImagePath   string
	Metadata    map[string]any
}

// DisplayTitle prefixes the title with the publish date in brackets, for use
// in scouting-intent reports. Carried over from original_source's
// ContentItem.display_title property (SPEC_FULL.md SUPPLEMENTED FEATURES).
func (i Item) DisplayTitle() string {
	if i.PublishedAt == "" {
		return i.Title
	}
	return fmt.Sprintf("[%s] %s", i.PublishedAt, i.Title)
}

// DedupText is the text fed to the Dedup Store, per spec.md §4.E.5:
// "title + ' ' + summary".
func (i Item) DedupText() string {
	return i.Title + " " + i.Summary
}
