package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lingofin/lingofin-hub/internal/domain/challenge"
	"github.com/lingofin/lingofin-hub/pkg/timeutil"
)

// RefreshChallengeActivityJob reports challenges whose stored IsActive
// snapshot no longer matches the clock. It only reports; the snapshot is
// left as the backend returned it.
type RefreshChallengeActivityJob struct {
	challenges challenge.Gateway
	clock      timeutil.Clock
	logger     *slog.Logger
}

// ActivityDrift is one challenge whose snapshot disagrees with the clock.
type ActivityDrift struct {
	ChallengeID string
	Snapshot    bool
	Live        bool
}

func NewRefreshChallengeActivityJob(challenges challenge.Gateway, clock timeutil.Clock, logger *slog.Logger) *RefreshChallengeActivityJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &RefreshChallengeActivityJob{
		challenges: challenges,
		clock:      timeutil.OrSystem(clock),
		logger:     logger,
	}
}

func (j *RefreshChallengeActivityJob) Name() string { return "refresh_challenge_activity" }

func (j *RefreshChallengeActivityJob) Description() string {
	return "Reports challenges whose active flag disagrees with their dates"
}

func (j *RefreshChallengeActivityJob) Run(ctx context.Context) error {
	drift, err := j.Check(ctx)
	if err != nil {
		return err
	}
	for _, d := range drift {
		j.logger.Warn("challenge activity drift",
			"challenge_id", d.ChallengeID,
			"snapshot", d.Snapshot,
			"live", d.Live,
		)
	}
	j.logger.Info("challenge activity checked", "drifted", len(drift))
	return nil
}

// Check returns the drifted challenges in backend order.
func (j *RefreshChallengeActivityJob) Check(ctx context.Context) ([]ActivityDrift, error) {
	all, err := j.challenges.FetchAllChallenges(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch challenges: %w", err)
	}
	now := j.clock.Now()

	var drift []ActivityDrift
	for i := range all {
		live := all[i].ActiveAt(now)
		if live != all[i].IsActive {
			drift = append(drift, ActivityDrift{ChallengeID: all[i].ID, Snapshot: all[i].IsActive, Live: live})
		}
	}
	return drift, nil
}
