// Package progress turns the append-only interaction log into durable
// answer records and on-demand aggregate statistics.
//
// Aggregates are always recomputed from the log rather than kept as
// materialized counters: the log is bounded by one person's usage, and a
// recompute can never drift from the facts.
package progress

import (
	"context"
	"encoding/json"
	"log"
	"math"
	"os"

	"github.com/lexyapp/lexy/internal/catalog"
	"github.com/lexyapp/lexy/internal/store"
	"github.com/lexyapp/lexy/internal/syncq"
)

// Enqueuer is the slice of the sync queue the recorder needs. nil disables
// remote sync entirely (local-only operation).
type Enqueuer interface {
	Enqueue(ctx context.Context, kind string, payload json.RawMessage) error
}

// Stats are the user-facing aggregates derived from the interaction log.
type Stats struct {
	TotalQuestions int     `json:"total_questions"`
	CorrectAnswers int     `json:"correct_answers"`
	Accuracy       float64 `json:"accuracy"` // 0-100, one decimal
	CurrentStreak  int     `json:"current_streak"`
	TotalPoints    int     `json:"total_points"`
}

// Recorder appends answers and computes stats.
type Recorder struct {
	store  *store.Store
	queue  Enqueuer
	logger *log.Logger
}

// NewRecorder creates a Recorder. queue may be nil for local-only use;
// a nil logger defaults to stderr.
func NewRecorder(st *store.Store, queue Enqueuer, logger *log.Logger) *Recorder {
	if logger == nil {
		logger = log.New(os.Stderr, "[progress] ", log.LstdFlags)
	}
	return &Recorder{store: st, queue: queue, logger: logger}
}

// RecordAnswer durably appends one answered exercise and returns the stored
// record. The local append is the operation's source of truth: after it
// succeeds, a matching progress sync task is enqueued best-effort, and an
// enqueue failure is logged but never propagated as a recording failure.
func (r *Recorder) RecordAnswer(ctx context.Context, contentItemID string, correct bool, timeTakenMs int64, pointsEarned, streakAtTime int) (*catalog.InteractionRecord, error) {
	stored, err := r.store.AppendInteraction(ctx, catalog.InteractionRecord{
		ContentItemID: contentItemID,
		Correct:       correct,
		TimeTakenMs:   timeTakenMs,
		PointsEarned:  pointsEarned,
		StreakAtTime:  streakAtTime,
	})
	if err != nil {
		return nil, err
	}

	if r.queue != nil {
		payload, merr := json.Marshal(syncq.ProgressPayload{
			InteractionID: stored.ID,
			ContentItemID: stored.ContentItemID,
			AnsweredAt:    stored.AnsweredAt,
			Correct:       stored.Correct,
			TimeTakenMs:   stored.TimeTakenMs,
			PointsEarned:  stored.PointsEarned,
			StreakAtTime:  stored.StreakAtTime,
		})
		if merr != nil {
			r.logger.Printf("Failed to marshal progress payload for %s: %v", stored.ID, merr)
			return stored, nil
		}
		if qerr := r.queue.Enqueue(ctx, store.TaskKindProgress, payload); qerr != nil {
			r.logger.Printf("Failed to enqueue progress sync for %s: %v", stored.ID, qerr)
		}
	}

	return stored, nil
}

// ComputeStats derives the aggregates from the full interaction log.
// CurrentStreak counts consecutive correct answers scanning newest-first,
// stopping at the first incorrect record or the end of the log.
func (r *Recorder) ComputeStats(ctx context.Context) (Stats, error) {
	records, err := r.store.ListInteractions(ctx, store.InteractionFilter{})
	if err != nil {
		return Stats{}, err
	}

	var stats Stats
	streakDone := false

	// records arrive newest first
	for _, rec := range records {
		stats.TotalQuestions++
		stats.TotalPoints += rec.PointsEarned
		if rec.Correct {
			stats.CorrectAnswers++
			if !streakDone {
				stats.CurrentStreak++
			}
		} else {
			streakDone = true
		}
	}

	if stats.TotalQuestions > 0 {
		raw := float64(stats.CorrectAnswers) / float64(stats.TotalQuestions) * 100
		stats.Accuracy = math.Round(raw*10) / 10
	}

	return stats, nil
}
