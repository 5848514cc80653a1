package challenge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entries(scores ...int) []LeaderboardEntry {
	out := make([]LeaderboardEntry, len(scores))
	for i, s := range scores {
		out[i] = LeaderboardEntry{ID: string(rune('a' + i)), UserID: string(rune('a' + i)), Score: s}
	}
	return out
}

func TestRank_TiesGetDistinctRanksInInputOrder(t *testing.T) {
	in := entries(890, 950, 780, 890)

	ranked := Rank(in)

	require.Len(t, ranked, 4)
	scores := []int{}
	ranks := []int{}
	ids := []string{}
	for _, e := range ranked {
		scores = append(scores, e.Score)
		ranks = append(ranks, e.Rank)
		ids = append(ids, e.UserID)
	}
	assert.Equal(t, []int{950, 890, 890, 780}, scores)
	assert.Equal(t, []int{1, 2, 3, 4}, ranks)
	assert.Equal(t, []string{"b", "a", "d", "c"}, ids)
}

func TestRank_DoesNotMutateInput(t *testing.T) {
	in := entries(10, 30, 20)
	Rank(in)

	assert.Equal(t, 10, in[0].Score)
	assert.Equal(t, 0, in[0].Rank)
}

func TestRank_Empty(t *testing.T) {
	assert.Empty(t, Rank(nil))
	assert.NotNil(t, Rank(nil))
	assert.Empty(t, Rank([]LeaderboardEntry{}))
}

func TestRank_IsIdempotent(t *testing.T) {
	once := Rank(entries(5, 9, 5, 1))
	assert.Equal(t, once, Rank(once))
}

func TestTopAndFind(t *testing.T) {
	ranked := Rank(entries(950, 890, 820, 780, 750))

	top := Top(ranked, 3)
	require.Len(t, top, 3)
	assert.Equal(t, 820, top[2].Score)
	assert.Len(t, Top(ranked, 10), 5)
	assert.Empty(t, Top(ranked, 0))

	e, ok := Find(ranked, "d")
	require.True(t, ok)
	assert.Equal(t, 4, e.Rank)

	_, ok = Find(ranked, "zz")
	assert.False(t, ok)
}

func TestUpsert(t *testing.T) {
	board := entries(100, 200)

	board = Upsert(board, LeaderboardEntry{UserID: "a", Score: 300})
	board = Upsert(board, LeaderboardEntry{UserID: "new", UserName: "New", Score: 50})

	require.Len(t, board, 3)
	assert.Equal(t, 300, board[0].Score)
	ranked := Rank(board)
	assert.Equal(t, "a", ranked[0].UserID)
	assert.Equal(t, "new", ranked[2].UserID)
}
