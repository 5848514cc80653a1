package mock

import (
	"strconv"
	"time"

	"github.com/lingofin/lingofin-hub/internal/domain/challenge"
	"github.com/lingofin/lingofin-hub/internal/domain/community"
	"github.com/lingofin/lingofin-hub/internal/domain/course"
	"github.com/lingofin/lingofin-hub/internal/domain/shared"
	"github.com/lingofin/lingofin-hub/pkg/timeutil"
)

// Seeded ids, stable across runs.
const (
	CourseFrenchBanking   = "course-french-banking"
	CourseSpanishInvest   = "course-spanish-investing"
	CourseGermanFinance   = "course-german-finance"
	CourseEnglishCrypto   = "course-english-crypto"
	ChallengeFrenchTransl = "challenge-french-translation"
	ChallengeSpanishQuiz  = "challenge-spanish-quiz"
	ChallengeGermanBudget = "challenge-german-budget"

	DemoEmail    = "demo@lingofin.app"
	DemoPassword = "demo123"
	DemoName     = "Alex Learner"
)

func lesson(courseID string, order int, title, content string, typ course.LessonType, exercises ...course.Exercise) course.Lesson {
	return course.Lesson{
		ID:        courseID + "-l" + strconv.Itoa(order),
		CourseID:  courseID,
		Title:     title,
		Content:   content,
		Type:      typ,
		Exercises: exercises,
		Duration:  course.DefaultLessonDuration,
		Order:     order,
	}
}

func exercise(id, question, answer string, typ course.ExerciseType, options ...string) course.Exercise {
	return course.Exercise{
		ID:            id,
		Question:      question,
		Type:          typ,
		Options:       options,
		CorrectAnswer: answer,
		Points:        course.DefaultExercisePoints,
	}
}

func seedCourses(now time.Time) []course.Course {
	mk := func(id, title, desc string, lang shared.Language, skill shared.FinancialSkill, diff shared.Difficulty, dur int, popular bool, rating float64, enrolled int, lessons ...course.Lesson) course.Course {
		return course.Course{
			ID:                id,
			Title:             title,
			Description:       desc,
			Language:          lang,
			FinancialSkill:    skill,
			Difficulty:        diff,
			EstimatedDuration: dur,
			Lessons:           lessons,
			IsPopular:         popular,
			Rating:            rating,
			EnrolledCount:     enrolled,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
	}

	return []course.Course{
		mk(CourseFrenchBanking, "French Banking Essentials",
			"Learn essential French vocabulary and phrases for banking and financial services.",
			shared.LanguageFrench, shared.SkillBanking, shared.DifficultyBeginner, 3600, true, 4.8, 1250,
			lesson(CourseFrenchBanking, 1, "Basic Banking Terms", "Learn fundamental banking vocabulary in French.", course.LessonVocabulary,
				exercise("ex-fr-1", "How do you say 'bank account' in French?", "compte bancaire", course.ExerciseTranslation),
				exercise("ex-fr-2", "Which word means 'savings'?", "épargne", course.ExerciseMultipleChoice, "épargne", "dette", "virement"),
			),
			lesson(CourseFrenchBanking, 2, "Opening a Bank Account", "Practice conversations for opening a bank account.", course.LessonConversation),
			lesson(CourseFrenchBanking, 3, "Banking Documents", "Understanding French banking documents and forms.", course.LessonReading),
		),
		mk(CourseSpanishInvest, "Spanish Investment Fundamentals",
			"Master investment terminology and concepts in Spanish.",
			shared.LanguageSpanish, shared.SkillInvesting, shared.DifficultyIntermediate, 5400, true, 4.6, 890,
			lesson(CourseSpanishInvest, 1, "Investment Vocabulary", "Essential investment terms in Spanish.", course.LessonVocabulary,
				exercise("ex-es-1", "Translate 'investment'.", "inversión", course.ExerciseTranslation),
			),
			lesson(CourseSpanishInvest, 2, "Stock Market Basics", "Understanding the stock market in Spanish-speaking countries.", course.LessonFinancialCase),
			lesson(CourseSpanishInvest, 3, "Portfolio Management", "Learn to discuss portfolio strategies in Spanish.", course.LessonConversation),
		),
		mk(CourseGermanFinance, "German Personal Finance",
			"Learn personal finance and budgeting concepts in German.",
			shared.LanguageGerman, shared.SkillBudgeting, shared.DifficultyBeginner, 2700, false, 4.7, 650,
			lesson(CourseGermanFinance, 1, "Budgeting Basics", "Learn budgeting vocabulary in German.", course.LessonVocabulary,
				exercise("ex-de-1", "Translate 'budget'.", "Haushaltsplan", course.ExerciseTranslation),
			),
			lesson(CourseGermanFinance, 2, "Monthly Budget Planning", "Create a monthly budget using German financial terms.", course.LessonFinancialCase),
		),
		mk(CourseEnglishCrypto, "Cryptocurrency in English",
			"Advanced cryptocurrency and blockchain terminology in English.",
			shared.LanguageEnglish, shared.SkillCryptocurrency, shared.DifficultyAdvanced, 7200, false, 4.5, 420,
			lesson(CourseEnglishCrypto, 1, "Blockchain Fundamentals", "Understanding blockchain technology terminology.", course.LessonVocabulary),
			lesson(CourseEnglishCrypto, 2, "Trading Strategies", "Learn advanced trading vocabulary and strategies.", course.LessonFinancialCase),
			lesson(CourseEnglishCrypto, 3, "DeFi Protocols", "Decentralized Finance terminology and concepts.", course.LessonReading),
		),
	}
}

func seedChallenges(now time.Time) []challenge.Challenge {
	params := []challenge.NewParams{
		{
			ID:          ChallengeFrenchTransl,
			Title:       "French Banking Translation",
			Description: "Translate banking documents from English to French",
			Type:        challenge.TypeTranslation,
			Language:    shared.LanguageFrench,
			Skill:       shared.SkillBanking,
			Difficulty:  shared.DifficultyIntermediate,
			StartDate:   now,
			EndDate:     now.AddDate(0, 0, 7),
		},
		{
			ID:          ChallengeSpanishQuiz,
			Title:       "Spanish Investment Quiz",
			Description: "Test your knowledge of investment terms in Spanish",
			Type:        challenge.TypeQuiz,
			Language:    shared.LanguageSpanish,
			Skill:       shared.SkillInvesting,
			Difficulty:  shared.DifficultyBeginner,
			StartDate:   now,
			EndDate:     now.AddDate(0, 0, 5),
		},
		{
			ID:          ChallengeGermanBudget,
			Title:       "German Budget Planning",
			Description: "Create a comprehensive budget plan using German financial terminology",
			Type:        challenge.TypeBudgetingTask,
			Language:    shared.LanguageGerman,
			Skill:       shared.SkillBudgeting,
			Difficulty:  shared.DifficultyIntermediate,
			StartDate:   now.AddDate(0, 0, 2),
			EndDate:     now.AddDate(0, 0, 10),
		},
	}

	out := make([]challenge.Challenge, 0, len(params))
	for _, p := range params {
		p.CreatedBy = "system"
		p.Rewards = []challenge.Reward{{
			ID:          p.ID + "-reward",
			Title:       "Winner",
			Type:        challenge.RewardPoints,
			Value:       500,
			IconName:    "trophy.fill",
			Requirement: "Finish first",
		}}
		c, err := challenge.New(p, now)
		if err != nil {
			panic("mock: invalid seed challenge " + p.ID + ": " + err.Error())
		}
		out = append(out, *c)
	}
	return out
}

func seedLeaderboard(now time.Time) []challenge.LeaderboardEntry {
	rows := []struct {
		id, name string
		score    int
	}{
		{"user-maria-garcia", "Maria Garcia", 950},
		{"user-jean-dupont", "Jean Dupont", 890},
		{"user-hans-mueller", "Hans Mueller", 820},
		{"user-anna-rossi", "Anna Rossi", 780},
		{"user-john-smith", "John Smith", 750},
	}
	out := make([]challenge.LeaderboardEntry, len(rows))
	for i, r := range rows {
		out[i] = challenge.LeaderboardEntry{
			ID:          "entry-" + r.id,
			UserID:      r.id,
			UserName:    r.name,
			Score:       r.score,
			LastUpdated: now,
		}
	}
	return out
}

func seedPosts(now time.Time) []community.Post {
	const (
		sarah  = "user-sarah-johnson"
		carlos = "user-carlos-rodriguez"
		emma   = "user-emma-thompson"
	)
	mk := func(id, author, name, content string, typ community.PostType, lang shared.Language, topic shared.FinancialSkill, age time.Duration, likes ...string) community.Post {
		if likes == nil {
			likes = []string{}
		}
		at := now.Add(-age)
		return community.Post{
			ID:             id,
			AuthorID:       author,
			AuthorName:     name,
			Content:        content,
			Type:           typ,
			Language:       lang,
			FinancialTopic: topic,
			Attachments:    []community.Attachment{},
			Likes:          likes,
			Comments:       []community.Comment{},
			CreatedAt:      at,
			UpdatedAt:      at,
		}
	}
	return []community.Post{
		mk("post-sarah-achievement", sarah, "Sarah Johnson",
			"Just completed the French Banking course! The vocabulary exercises were really helpful. Does anyone have tips for remembering all the technical terms?",
			community.PostAchievement, shared.LanguageFrench, shared.SkillBanking, 2*time.Hour, carlos, emma),
		mk("post-carlos-question", carlos, "Carlos Rodriguez",
			"Can someone help me understand the difference between 'inversión' and 'ahorro' in Spanish financial contexts?",
			community.PostQuestion, shared.LanguageSpanish, shared.SkillInvesting, 5*time.Hour),
		mk("post-emma-tip", emma, "Emma Thompson",
			"Pro tip: When learning German financial vocabulary, try to associate each term with a real-world scenario. It makes memorization much easier!",
			community.PostTip, shared.LanguageGerman, shared.SkillPersonalFinance, 26*time.Hour, sarah),
	}
}

func seedStart(c timeutil.Clock) time.Time {
	return c.Now().Truncate(time.Second)
}
