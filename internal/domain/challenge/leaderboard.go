package challenge

import (
	"slices"
	"sort"
	"time"
)

// LeaderboardEntry - строка лидерборда. Rank присваивает только Rank().
type LeaderboardEntry struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	UserName       string    `json:"user_name"`
	Score          int       `json:"score"`
	Rank           int       `json:"rank"`
	CompletedTasks int       `json:"completed_tasks"`
	TimeSpent      int       `json:"time_spent"` // секунды
	LastUpdated    time.Time `json:"last_updated"`
}

// Rank сортирует записи по убыванию очков (стабильно) и присваивает
// уникальные ранги 1..n по позиции. При равенстве очков порядок входа
// сохраняется, ранги всё равно разные: [950, 890, 890, 780] -> [1, 2, 3, 4].
// Входной срез не изменяется.
func Rank(entries []LeaderboardEntry) []LeaderboardEntry {
	out := slices.Clone(entries)
	if out == nil {
		return []LeaderboardEntry{}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// Top возвращает не более n первых записей уже ранжированного среза.
// Для n <= 0 результат пуст; результат не разделяет память со входом.
func Top(ranked []LeaderboardEntry, n int) []LeaderboardEntry {
	if n <= 0 {
		return []LeaderboardEntry{}
	}
	if n > len(ranked) {
		n = len(ranked)
	}
	return slices.Clone(ranked[:n])
}

// Find ищет запись пользователя userID линейным проходом.
// Второе значение false, если пользователя в лидерборде нет.
func Find(ranked []LeaderboardEntry, userID string) (LeaderboardEntry, bool) {
	for _, e := range ranked {
		if e.UserID == userID {
			return e, true
		}
	}
	return LeaderboardEntry{}, false
}

// Upsert выставляет очки и время обновления записи e.UserID или
// добавляет e в конец, если записи нет. Пустое имя не затирает прежнее.
// Результат не ранжирован: ранги пересчитывает Rank.
func Upsert(entries []LeaderboardEntry, e LeaderboardEntry) []LeaderboardEntry {
	out := slices.Clone(entries)
	for i := range out {
		if out[i].UserID == e.UserID {
			out[i].Score = e.Score
			out[i].LastUpdated = e.LastUpdated
			if e.UserName != "" {
				out[i].UserName = e.UserName
			}
			return out
		}
	}
	return append(out, e)
}
