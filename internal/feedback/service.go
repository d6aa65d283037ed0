// Package feedback journals human verdicts and runs the calibration
// meta-loop: when a human critiques a generated draft, the scout's
// user-editable instruction text is rewritten by the model to absorb the
// critique. Grounded on original_source's record_feedback /
// apply_calibration_feedback (core/scouts.py), written in the teacher's
// usecase-service idiom of interfaces plus constructor injection.
package feedback

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"scoutengine/internal/agent"
	"scoutengine/internal/domain/entity"
	"scoutengine/internal/repository"
)

// invoker is the narrow Agent Runtime seam the calibration rewrite uses.
type invoker interface {
	Invoke(ctx context.Context, req agent.InvokeRequest) (json.RawMessage, error)
}

// Service records feedback and calibration rows and applies the
// instruction-rewrite meta-loop of spec.md §4.H.
type Service struct {
	scoutRepo       repository.ScoutRepository
	feedbackRepo    repository.FeedbackRepository
	calibrationRepo repository.CalibrationRepository
	runtime         invoker
	logger          *slog.Logger
}

func NewService(
	scoutRepo repository.ScoutRepository,
	feedbackRepo repository.FeedbackRepository,
	calibrationRepo repository.CalibrationRepository,
	runtime invoker,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		scoutRepo:       scoutRepo,
		feedbackRepo:    feedbackRepo,
		calibrationRepo: calibrationRepo,
		runtime:         runtime,
		logger:          logger,
	}
}

// Record journals one human verdict. Append-only: there is no update or
// delete path anywhere in this package.
func (s *Service) Record(ctx context.Context, scoutID int64, itemURL string, action entity.FeedbackAction, note string) error {
	fb := &entity.Feedback{
		ScoutID:   scoutID,
		ItemURL:   itemURL,
		Action:    action,
		Note:      note,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.feedbackRepo.Create(ctx, fb); err != nil {
		return fmt.Errorf("record feedback: %w", err)
	}
	return nil
}

// RecordRefinement handles the calibration side of one refine action: it
// journals a Calibration row pairing the generated draft with the human
// critique, then asks the model to rewrite the scout's instruction to
// absorb it. The Feedback(action=refinement) row itself is the Review
// Bus's to write via Record — this method only owns the calibration loop.
func (s *Service) RecordRefinement(ctx context.Context, sc *entity.Scout, sourceURL, generatedText, humanFeedback string) error {
	cal := &entity.Calibration{
		ScoutID:       sc.ID,
		SourceURL:     sourceURL,
		GeneratedText: generatedText,
		HumanFeedback: humanFeedback,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.calibrationRepo.Create(ctx, cal); err != nil {
		return fmt.Errorf("record calibration: %w", err)
	}

	s.rewriteInstruction(ctx, sc, humanFeedback)
	return nil
}

// CalibrationCount reports how many calibration samples a scout has
// accumulated, the gate an operator (or a future optimisation pass) checks
// before trusting the refined instruction over the original.
func (s *Service) CalibrationCount(ctx context.Context, scoutID int64) (int, error) {
	return s.calibrationRepo.CountByScout(ctx, scoutID)
}

// rewriteInstruction asks the model for a revised instruction and persists
// it. Every failure path keeps the old instruction silently — the original
// swallows rewrite errors outright (apply_calibration_feedback's bare
// except), and spec.md §4.H adopts that behavior verbatim.
func (s *Service) rewriteInstruction(ctx context.Context, sc *entity.Scout, humanFeedback string) {
	if sc.Instruction == "" || s.runtime == nil {
		return
	}

	goal := fmt.Sprintf(
		"Rewrite the following scout instruction to incorporate the human feedback. "+
			"Keep the core goal intact. Return only the new instruction text.\n\n"+
			"CURRENT INSTRUCTION:\n%s\n\nHUMAN FEEDBACK:\n%s",
		sc.Instruction, humanFeedback)

	raw, err := s.runtime.Invoke(ctx, agent.InvokeRequest{
		ScoutName:        sc.Name,
		Kind:             string(sc.Kind),
		Goal:             goal,
		ResultSchemaText: agent.TextSchemaText,
	})
	if err != nil {
		s.logger.Warn("calibration rewrite failed, keeping existing instruction",
			slog.String("scout", sc.Name), slog.Any("error", err))
		return
	}

	newInstruction, err := agent.DecodeText(raw)
	if err != nil || newInstruction == "" {
		s.logger.Warn("calibration rewrite returned unusable text, keeping existing instruction",
			slog.String("scout", sc.Name), slog.Any("error", err))
		return
	}

	sc.Instruction = newInstruction
	if err := s.scoutRepo.Update(ctx, sc); err != nil {
		s.logger.Warn("failed to persist rewritten instruction",
			slog.String("scout", sc.Name), slog.Any("error", err))
	}
}
