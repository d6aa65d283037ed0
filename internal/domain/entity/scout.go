package entity

import (
	"encoding/json"
	"fmt"
	"time"
)

// ScoutKind identifies which source adapter family a Scout draws from.
type ScoutKind string

const (
	ScoutKindRSS    ScoutKind = "rss"
	ScoutKindReddit ScoutKind = "reddit"
	ScoutKindSearch ScoutKind = "search"
	ScoutKindArxiv  ScoutKind = "arxiv"
	ScoutKindHTTP   ScoutKind = "http"
	ScoutKindMeta   ScoutKind = "meta"
)

var validScoutKinds = map[ScoutKind]bool{
	ScoutKindRSS:    true,
	ScoutKindReddit: true,
	ScoutKindSearch: true,
	ScoutKindArxiv:  true,
	ScoutKindHTTP:   true,
	ScoutKindMeta:   true,
}

// ScoutIntent determines whether a run produces a publishable draft or a
// formatted discovery report.
type ScoutIntent string

const (
	IntentScouting   ScoutIntent = "scouting"
	IntentGeneration ScoutIntent = "generation"
)

// Scout is the declarative unit of work: a named, schedulable configuration
// that the Executor turns into a stream of Drafts.
type Scout struct {
	ID             int64
	Name           string
	Kind           ScoutKind
	ConfigJSON     string // opaque JSON blob, shape depends on Kind (see internal/scout/config.go)
	Intent         ScoutIntent
	Instruction    string   // human-visible, user-editable instruction text
	Platforms      []string // generation intent only
	ReviewRequired bool
	CronExpr       string // empty = manual-only
	LastFiredAt    *time.Time
	CreatedAt      time.Time
}

// Validate checks the invariants a Scout must satisfy before it is
// persisted: a non-empty unique name (uniqueness is a repository-level
// constraint, not checked here), a recognised kind, and an intent that
// matches one of the two supported values.
func (s *Scout) Validate() error {
	if s.Name == "" {
		return &ValidationError{Field: "name", Message: "name is required"}
	}
	if !validScoutKinds[s.Kind] {
		return &ValidationError{Field: "kind", Message: fmt.Sprintf("invalid scout kind: %s", s.Kind)}
	}
	if s.Intent != IntentScouting && s.Intent != IntentGeneration {
		return &ValidationError{Field: "intent", Message: fmt.Sprintf("invalid intent: %s", s.Intent)}
	}
	if s.Intent == IntentGeneration && len(s.Platforms) == 0 {
		return &ValidationError{Field: "platforms", Message: "generation intent requires at least one platform"}
	}
	if s.ConfigJSON != "" && !json.Valid([]byte(s.ConfigJSON)) {
		return &ValidationError{Field: "config_json", Message: "config_json must be valid JSON"}
	}
	return nil
}
