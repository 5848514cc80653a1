package challenge

import "context"

// Gateway - порт челленджей и лидербордов.
type Gateway interface {
	FetchAllChallenges(ctx context.Context) ([]Challenge, error)
	FetchUserChallenges(ctx context.Context, userID string) ([]Challenge, error)
	JoinChallenge(ctx context.Context, challengeID, userID string) (bool, error)
	FetchLeaderboard(ctx context.Context, challengeID string) ([]LeaderboardEntry, error)
	UpdateChallengeScore(ctx context.Context, challengeID, userID string, score int) (bool, error)
}
