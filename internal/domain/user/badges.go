package user

import "time"

// BadgeRule выдаёт фиксированный значок, как только Condition для
// прогресса становится истинным.
type BadgeRule struct {
	Badge     Badge
	Condition func(p Progress) bool
}

// BadgeRules проверяются по порядку после каждого изменения прогресса.
type BadgeRules []BadgeRule

// Идентификаторы значков за достижения.
const (
	BadgeFirstLesson  = "badge-first-lesson"
	BadgeTenLessons   = "badge-ten-lessons"
	BadgeFiftyLessons = "badge-fifty-lessons"
	BadgeLevelFive    = "badge-level-5"
	BadgeLevelTen     = "badge-level-10"
	BadgeFirstHour    = "badge-first-hour"
)

// DefaultBadgeRules возвращает стандартный набор значков за уроки,
// уровни и время обучения.
func DefaultBadgeRules() BadgeRules {
	return BadgeRules{
		{
			Badge:     Badge{ID: BadgeFirstLesson, Name: "First Steps", Description: "Completed your first lesson", IconName: "star.fill", Category: BadgeCategoryCompletion},
			Condition: func(p Progress) bool { return p.TotalLessonsCompleted >= 1 },
		},
		{
			Badge:     Badge{ID: BadgeTenLessons, Name: "Dedicated Learner", Description: "Completed 10 lessons", IconName: "book.fill", Category: BadgeCategoryCompletion},
			Condition: func(p Progress) bool { return p.TotalLessonsCompleted >= 10 },
		},
		{
			Badge:     Badge{ID: BadgeFiftyLessons, Name: "Scholar", Description: "Completed 50 lessons", IconName: "graduationcap.fill", Category: BadgeCategoryCompletion},
			Condition: func(p Progress) bool { return p.TotalLessonsCompleted >= 50 },
		},
		{
			Badge:     Badge{ID: BadgeLevelFive, Name: "Rising Linguist", Description: "Reached level 5", IconName: "chart.line.uptrend.xyaxis", Category: BadgeCategoryLanguage},
			Condition: func(p Progress) bool { return p.Level >= 5 },
		},
		{
			Badge:     Badge{ID: BadgeLevelTen, Name: "Financial Polyglot", Description: "Reached level 10", IconName: "globe", Category: BadgeCategoryFinancial},
			Condition: func(p Progress) bool { return p.Level >= 10 },
		},
		{
			Badge:     Badge{ID: BadgeFirstHour, Name: "Hour of Power", Description: "Studied for one hour in total", IconName: "clock.fill", Category: BadgeCategoryLanguage},
			Condition: func(p Progress) bool { return p.TotalTimeSpent >= 3600 },
		},
	}
}

// Apply выдаёт каждый значок, условие которого выполнено и которого у p
// ещё нет. Новые значки получают дату now и возвращаются вторым значением;
// повторный вызов с тем же прогрессом ничего не добавляет.
func (rules BadgeRules) Apply(p Progress, now time.Time) (Progress, []Badge) {
	var earned []Badge
	for _, r := range rules {
		if !r.Condition(p) {
			continue
		}
		b := r.Badge
		b.EarnedDate = now
		var added bool
		if p, added = AwardBadge(p, b); added {
			earned = append(earned, b)
		}
	}
	return p, earned
}
