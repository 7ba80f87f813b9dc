// Package domain — self-compete competition types.
// A Competition spawns one variant run per configured competitor strategy,
// scores the survivors, and promotes exactly one champion per run.
package domain

import "time"

// CompetitionStatus tracks competition lifecycle.
type CompetitionStatus string

const (
	CompetitionQueued    CompetitionStatus = "QUEUED"
	CompetitionRunning   CompetitionStatus = "RUNNING"
	CompetitionCompleted CompetitionStatus = "COMPLETED"
	CompetitionFailed    CompetitionStatus = "FAILED"
)

// DefaultCompetitors are the four built-in strategy variants.
var DefaultCompetitors = []string{"bold", "data-driven", "storyteller", "contrarian"}

// Competition is a task variant that races N strategies against each other.
type Competition struct {
	ID             string            `json:"id"`
	Tenant         string            `json:"tenant"`
	Content        string            `json:"content"`
	Platforms      []string          `json:"platforms"`
	Priority       int               `json:"priority"`
	Competitors    []string          `json:"competitors"`
	Status         CompetitionStatus `json:"status"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	CompletedAt    time.Time         `json:"completed_at,omitempty"`
}

// VariantRun is one competitor's attempt within a competition.
type VariantRun struct {
	VariantID string      `json:"variant_id"`
	Result    *TaskResult `json:"result,omitempty"`
	Score     float64     `json:"score"`
	Failed    bool        `json:"failed"`
	Error     string      `json:"error,omitempty"`
}

// CompetitionResult is the settled outcome of a competition.
type CompetitionResult struct {
	CompetitionID string       `json:"competition_id"`
	Status        CompetitionStatus `json:"status"`
	Variants      []VariantRun `json:"variants"`
	Champion      string       `json:"champion,omitempty"`
	ChampionScore float64      `json:"champion_score,omitempty"`
	WinRateDelta  float64      `json:"win_rate_delta"`
	Evolved       bool         `json:"evolved"`
	CostMicro     int64        `json:"cost_micro"`
	Tags          FinOpsTags   `json:"tags"`
	Error         string       `json:"error,omitempty"`
}

// SelectChampion picks the highest-scoring non-failed variant.
// Ties break toward the first-submitted variant (lowest index).
// Returns the winner index and the runner-up score, or (-1, 0) when
// every variant failed.
func SelectChampion(variants []VariantRun) (winner int, runnerUp float64) {
	winner = -1
	best := 0.0
	for i, v := range variants {
		if v.Failed {
			continue
		}
		if winner < 0 || v.Score > best {
			if winner >= 0 && best > runnerUp {
				runnerUp = best
			}
			winner = i
			best = v.Score
			continue
		}
		if v.Score > runnerUp {
			runnerUp = v.Score
		}
	}
	return winner, runnerUp
}
