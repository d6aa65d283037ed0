package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"scoutengine/internal/domain/entity"
)

func TestRecordScoutRun(t *testing.T) {
	tests := []struct {
		name      string
		scoutName string
		kind      entity.ScoutKind
		status    string
		duration  time.Duration
	}{
		{name: "success", scoutName: "my-rss", kind: entity.ScoutKindRSS, status: "success", duration: 2 * time.Second},
		{name: "empty", scoutName: "my-search", kind: entity.ScoutKindSearch, status: "empty", duration: 500 * time.Millisecond},
		{name: "failed", scoutName: "my-arxiv", kind: entity.ScoutKindArxiv, status: "failed", duration: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				RecordScoutRun(tt.scoutName, tt.kind, tt.status, tt.duration)
			})
		})
	}
}

func TestRecordScoutRetry(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordScoutRetry("my-reddit", entity.ScoutKindReddit)
	})
}

func TestRecordDraftEmitted(t *testing.T) {
	tests := []struct {
		name     string
		intent   entity.ScoutIntent
		platform string
	}{
		{name: "scouting report", intent: entity.IntentScouting, platform: entity.NotifyOnlyPlatform},
		{name: "generation post", intent: entity.IntentGeneration, platform: "discord"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				RecordDraftEmitted(tt.intent, tt.platform)
			})
		})
	}
}

func TestRecordDraftTransition(t *testing.T) {
	for _, status := range []entity.DraftStatus{entity.DraftReviewing, entity.DraftPosted, entity.DraftRejected} {
		assert.NotPanics(t, func() {
			RecordDraftTransition(status)
		})
	}
}

func TestRecordPublishFailure(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordPublishFailure("discord")
	})
}

func TestRecordDedupCheck(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordDedupCheck(true)
		RecordDedupCheck(false)
	})
}

func TestRecordAgentInvocation(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		status   string
		duration time.Duration
	}{
		{name: "anthropic success", provider: "anthropic", status: "success", duration: time.Second},
		{name: "openai structured failure", provider: "openai", status: "structured_output_failure", duration: 3 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				RecordAgentInvocation(tt.provider, tt.status, tt.duration)
			})
		})
	}
}

func TestRecordDBQuery(t *testing.T) {
	tests := []struct {
		name      string
		operation string
		duration  time.Duration
	}{
		{name: "select query", operation: "select_scouts", duration: 10 * time.Millisecond},
		{name: "insert query", operation: "insert_draft", duration: 5 * time.Millisecond},
		{name: "slow query", operation: "complex_join", duration: 500 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				RecordDBQuery(tt.operation, tt.duration)
			})
		})
	}
}

func TestUpdateDBConnectionStats(t *testing.T) {
	tests := []struct {
		name   string
		active int
		idle   int
	}{
		{name: "no connections", active: 0, idle: 0},
		{name: "some active", active: 1, idle: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				UpdateDBConnectionStats(tt.active, tt.idle)
			})
		})
	}
}

func TestMetricsFunctions_AllCallable(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordScoutRun("my-rss", entity.ScoutKindRSS, "success", time.Second)
		RecordScoutRetry("my-rss", entity.ScoutKindRSS)
		RecordDraftEmitted(entity.IntentScouting, entity.NotifyOnlyPlatform)
		RecordDraftTransition(entity.DraftPosted)
		RecordPublishFailure("discord")
		RecordDedupCheck(true)
		RecordAgentInvocation("anthropic", "success", time.Second)
		RecordDBQuery("test_operation", 10*time.Millisecond)
		UpdateDBConnectionStats(1, 0)
	})
}
