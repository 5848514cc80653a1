package course

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lingofin/lingofin-hub/internal/domain/shared"
)

func TestStore_EnrollmentIsAProjection(t *testing.T) {
	s := NewStore()
	c1 := sampleCourse()
	c2 := Course{ID: "c2", Title: "Spanish Investment Fundamentals", Language: shared.LanguageSpanish, FinancialSkill: shared.SkillInvesting}

	s.ReplaceCatalog([]Course{c1, c2})
	s.SetEnrollment("u1", []Course{c1})
	require.NoError(t, s.MarkCompleted("u1", "c1", "l2", time.Now()))

	catalog := s.All("u1")
	enrolled := s.Enrolled("u1")
	require.Len(t, catalog, 2)
	require.Len(t, enrolled, 1)

	catLesson, _ := catalog[0].Lesson("l2")
	enrLesson, _ := enrolled[0].Lesson("l2")
	assert.True(t, catLesson.IsCompleted)
	assert.True(t, enrLesson.IsCompleted)
	assert.True(t, s.IsEnrolled("u1", "c1"))
	assert.False(t, s.IsEnrolled("u1", "c2"))
}

func TestStore_CompletionBelongsToOneUser(t *testing.T) {
	s := NewStore()
	s.SetEnrollment("u1", []Course{sampleCourse()})
	s.SetEnrollment("u2", []Course{sampleCourse()})
	require.NoError(t, s.MarkCompleted("u1", "c1", "l1", time.Now()))

	mine, _ := s.View("u1", "c1")
	theirs, _ := s.View("u2", "c1")
	anon, _ := s.View("", "c1")
	assert.InDelta(t, 1.0/3, CompletionPercentage(mine), 1e-9)
	assert.Zero(t, CompletionPercentage(theirs))
	assert.Zero(t, CompletionPercentage(anon))

	_, l, err := s.FindLesson("c1", "l1")
	require.NoError(t, err)
	assert.False(t, l.IsCompleted, "course records carry no completion")
}

func TestStore_ReloadKeepsCompletion(t *testing.T) {
	s := NewStore()
	s.ReplaceCatalog([]Course{sampleCourse()})
	require.NoError(t, s.MarkCompleted("u1", "c1", "l1", time.Now()))

	s.ReplaceCatalog([]Course{sampleCourse()})

	c, ok := s.View("u1", "c1")
	require.True(t, ok)
	l, _ := c.Lesson("l1")
	assert.True(t, l.IsCompleted)
	assert.NotNil(t, l.CompletedAt)
}

func TestStore_SetEnrollmentTakesServerCompletion(t *testing.T) {
	s := NewStore()
	assert.True(t, shared.IsNotFound(s.MarkCompleted("u1", "c1", "l1", time.Now())))

	s.SetEnrollment("u1", []Course{sampleCourse()})
	require.NoError(t, s.MarkCompleted("u1", "c1", "l1", time.Now()))

	server := sampleCourse()
	at := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	server.Lessons[2].MarkCompleted(at) // l2
	s.SetEnrollment("u1", []Course{server})

	c, _ := s.View("u1", "c1")
	l1, _ := c.Lesson("l1")
	l2, _ := c.Lesson("l2")
	assert.False(t, l1.IsCompleted)
	require.True(t, l2.IsCompleted)
	assert.Equal(t, at, *l2.CompletedAt)

	s.Forget("u1")
	assert.False(t, s.IsEnrolled("u1", "c1"))
	c, _ = s.View("u1", "c1")
	assert.Zero(t, CompletionPercentage(c))
}

func TestStore_ReplaceCatalogDropsUnreferenced(t *testing.T) {
	s := NewStore()
	s.ReplaceCatalog([]Course{{ID: "a"}, {ID: "b"}, {ID: "c"}})
	s.SetEnrollment("u1", []Course{{ID: "b"}})

	s.ReplaceCatalog([]Course{{ID: "c"}})

	ids := []string{}
	for _, c := range s.All("") {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"b", "c"}, ids)
}

func TestStore_FindLessonNotFound(t *testing.T) {
	s := NewStore()
	s.Upsert(sampleCourse())

	_, _, err := s.FindLesson("missing", "l1")
	assert.True(t, shared.IsNotFound(err))

	_, _, err = s.FindLesson("c1", "missing")
	assert.True(t, shared.IsNotFound(err))
}

func TestFilterAndSearch(t *testing.T) {
	courses := []Course{
		{ID: "fr", Title: "French Banking Essentials", Language: shared.LanguageFrench, FinancialSkill: shared.SkillBanking, Difficulty: shared.DifficultyBeginner, IsPopular: true, Rating: 4.8},
		{ID: "es", Title: "Spanish Investment Fundamentals", Language: shared.LanguageSpanish, FinancialSkill: shared.SkillInvesting, Difficulty: shared.DifficultyIntermediate, IsPopular: true, Rating: 4.6},
		{ID: "de", Title: "German Personal Finance", Language: shared.LanguageGerman, FinancialSkill: shared.SkillBudgeting, Difficulty: shared.DifficultyBeginner, Rating: 4.7},
	}

	assert.Len(t, FilterCourses(courses, Filter{Difficulty: shared.DifficultyBeginner}), 2)
	assert.Len(t, FilterCourses(courses, Filter{Popular: true, Language: shared.LanguageSpanish}), 1)
	assert.Len(t, FilterCourses(courses, Filter{}), 3)

	assert.Len(t, Search(courses, ""), 3)
	byName := Search(courses, "deutsch")
	require.Len(t, byName, 1)
	assert.Equal(t, "de", byName[0].ID)
	assert.Len(t, Search(courses, "BUDGET"), 1)

	ranked := ByRating(courses)
	assert.Equal(t, "fr", ranked[0].ID)
	assert.Equal(t, "de", ranked[1].ID)
}
