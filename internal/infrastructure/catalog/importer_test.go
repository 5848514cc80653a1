package catalog

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/lingofin/lingofin-hub/internal/domain/course"
	"github.com/lingofin/lingofin-hub/internal/domain/shared"
	"github.com/lingofin/lingofin-hub/pkg/timeutil"
)

var courseHeader = []interface{}{"ID", "Title", "Description", "Language", "Skill", "Difficulty", "Duration", "Popular", "Rating"}

var lessonHeader = []interface{}{"course_id", "id", "order", "title", "type", "content", "duration", "question", "correct_answer", "options", "points", "exercise_type"}

func workbook(t *testing.T, courses, lessons [][]interface{}) *excelize.File {
	t.Helper()
	f := excelize.NewFile()
	t.Cleanup(func() { _ = f.Close() })

	write := func(sheet string, header []interface{}, rows [][]interface{}) {
		_, err := f.NewSheet(sheet)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, "A1", &header))
		for i, r := range rows {
			r := r
			require.NoError(t, f.SetSheetRow(sheet, fmt.Sprintf("A%d", i+2), &r))
		}
	}
	write("Courses", courseHeader, courses)
	write("Lessons", lessonHeader, lessons)
	return f
}

type fakeStore struct {
	saved map[string]course.Course
	fail  map[string]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{saved: map[string]course.Course{}, fail: map[string]error{}}
}

func (s *fakeStore) Upsert(_ context.Context, c course.Course) (bool, error) {
	if err := s.fail[c.ID]; err != nil {
		return false, err
	}
	_, existed := s.saved[c.ID]
	s.saved[c.ID] = c
	return !existed, nil
}

type recorder []shared.Event

func (r *recorder) Publish(e shared.Event) error {
	*r = append(*r, e)
	return nil
}

var now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func sampleCourses() [][]interface{} {
	return [][]interface{}{
		{"fr-bank", "French for Banking", "Accounts and loans", "FR", "banking", "beginner", 1800, "yes", "4.5"},
		{"es-inv", "Spanish Investing", "", "es", "investing", "intermediate", "2400", "", ""},
	}
}

func sampleLessons() [][]interface{} {
	return [][]interface{}{
		{"fr-bank", "fr-2", "2", "Loans", "grammar", "", "600", "Un prêt is...", "a loan", "a loan|a deposit", "10", ""},
		{"fr-bank", "fr-1", "1", "Accounts", "vocabulary", "Le compte", "300", "", "", "", "", ""},
		{"fr-bank", "fr-2", "", "", "", "", "", "Taux d'intérêt", "interest rate", "", "5", "translation"},
		{"es-inv", "es-1", "1", "Acciones", "reading", "", "", "Una acción", "a share", "", "", ""},
	}
}

func TestParse_BuildsSortedCourses(t *testing.T) {
	f := workbook(t, sampleCourses(), sampleLessons())

	courses, result, err := Parse(f, DefaultImportConfig(), timeutil.NewFixedClock(now))
	require.NoError(t, err)
	assert.Empty(t, result.Errors)
	assert.Equal(t, 2, result.TotalProcessed)
	require.Len(t, courses, 2)

	fr := courses[0]
	assert.Equal(t, "fr-bank", fr.ID)
	assert.Equal(t, shared.LanguageFrench, fr.Language)
	assert.Equal(t, 1800, fr.EstimatedDuration)
	assert.True(t, fr.IsPopular)
	assert.InDelta(t, 4.5, fr.Rating, 1e-9)
	assert.Equal(t, now, fr.CreatedAt)

	require.Len(t, fr.Lessons, 2)
	assert.Equal(t, "fr-1", fr.Lessons[0].ID)
	assert.Empty(t, fr.Lessons[0].Exercises)

	loans := fr.Lessons[1]
	assert.Equal(t, "fr-2", loans.ID)
	require.Len(t, loans.Exercises, 2)
	assert.Equal(t, "fr-2-ex1", loans.Exercises[0].ID)
	assert.Equal(t, course.ExerciseMultipleChoice, loans.Exercises[0].Type)
	assert.Equal(t, []string{"a loan", "a deposit"}, loans.Exercises[0].Options)
	assert.Equal(t, "fr-2-ex2", loans.Exercises[1].ID)
	assert.Equal(t, course.ExerciseTranslation, loans.Exercises[1].Type)
	assert.Equal(t, 5, loans.Exercises[1].Points)

	es := courses[1]
	require.Len(t, es.Lessons, 1)
	assert.Equal(t, course.ExerciseFillInBlank, es.Lessons[0].Exercises[0].Type)
	assert.Equal(t, course.DefaultExercisePoints, es.Lessons[0].Exercises[0].Points)
}

func TestParse_BlankPointsUseDefault(t *testing.T) {
	lessons := [][]interface{}{
		{"fr-bank", "fr-1", "1", "Accounts", "vocabulary", "", "", "Le compte", "the account", "", "", ""},
		{"fr-bank", "fr-1", "", "", "", "", "", "La banque", "the bank", "", "0", ""},
		{"fr-bank", "fr-1", "", "", "", "", "", "Le prêt", "the loan", "", "25", ""},
	}
	f := workbook(t, sampleCourses()[:1], lessons)

	courses, result, err := Parse(f, DefaultImportConfig(), timeutil.NewFixedClock(now))
	require.NoError(t, err)
	assert.Empty(t, result.Errors)
	require.Len(t, courses, 1)

	ex := courses[0].Lessons[0].Exercises
	require.Len(t, ex, 3)
	assert.Equal(t, 10, ex[0].Points)
	assert.Equal(t, 0, ex[1].Points, "explicit zero is kept")
	assert.Equal(t, 25, ex[2].Points)
	assert.Equal(t, 10, course.ExerciseScore(ex, map[string]string{ex[0].ID: "The Account"}))
}

func TestParse_ReportsBadRows(t *testing.T) {
	courses := append(sampleCourses(),
		[]interface{}{"xx-1", "Klingon", "", "tlh", "banking", "beginner", "", "", ""},
		[]interface{}{"fr-bank", "Duplicate", "", "fr", "banking", "beginner", "", "", ""},
		[]interface{}{"de-1", "German", "", "de", "taxes", "beginner", "", "", "7"},
	)
	lessons := append(sampleLessons(),
		[]interface{}{"nope", "n-1", "1", "Orphan", "reading", "", "", "", "", "", "", ""},
		[]interface{}{"es-inv", "fr-1", "3", "Stolen", "reading", "", "", "", "", "", "", ""},
		[]interface{}{"es-inv", "es-2", "2", "Bad", "dance", "", "", "", "", "", "", ""},
		[]interface{}{"es-inv", "es-1", "", "", "", "", "", "Sin respuesta", "", "", "", ""},
		[]interface{}{"es-inv", "es-1", "", "", "", "", "", "Negativo", "x", "", "-1", ""},
	)
	f := workbook(t, courses, lessons)

	out, result, err := Parse(f, DefaultImportConfig(), timeutil.NewFixedClock(now))
	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.Equal(t, 5, result.TotalProcessed)
	assert.Equal(t, 3, result.Skipped)
	assert.Len(t, result.Errors, 8)
	assert.Contains(t, result.Errors[0], "Courses row 4")
	assert.Contains(t, result.Errors[1], "duplicate course id")
	assert.Contains(t, result.Errors[3], `unknown course "nope"`)
	assert.Contains(t, result.Errors[4], "already belongs to course fr-bank")

	// Rejected exercises do not reach the lesson.
	assert.Len(t, out[1].Lessons[0].Exercises, 1)
}

func TestParse_MissingSheet(t *testing.T) {
	f := workbook(t, sampleCourses(), sampleLessons())
	_, _, err := Parse(f, ImportConfig{CoursesSheet: "Courses", LessonsSheet: "Missing"}, nil)
	assert.Error(t, err)
}

func TestImport_UpsertsAndPublishes(t *testing.T) {
	store := newFakeStore()
	store.saved["es-inv"] = course.Course{ID: "es-inv"}
	var events recorder
	im := NewImporter(store, ImportConfig{}, Options{Publisher: &events, Clock: timeutil.NewFixedClock(now)})

	f := workbook(t, sampleCourses(), sampleLessons())
	result, err := im.Import(context.Background(), f, "catalog.xlsx")
	require.NoError(t, err)

	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Updated)
	assert.Len(t, store.saved["fr-bank"].Lessons, 2)

	require.Len(t, events, 1)
	ev, ok := events[0].(shared.CatalogImportedEvent)
	require.True(t, ok)
	assert.Equal(t, "catalog.xlsx", ev.Source)
	assert.Equal(t, 2, ev.Processed)
	assert.Equal(t, 1, ev.Created)
}

func TestImport_StoreFailureSkipsCourse(t *testing.T) {
	store := newFakeStore()
	store.fail["fr-bank"] = errors.New("db down")
	im := NewImporter(store, DefaultImportConfig(), Options{})

	result, err := im.Import(context.Background(), workbook(t, sampleCourses(), sampleLessons()), "x")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Skipped)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "db down")
}

func TestImport_DryRunWritesNothing(t *testing.T) {
	store := newFakeStore()
	im := NewImporter(store, ImportConfig{DryRun: true}, Options{})

	buf, err := workbook(t, sampleCourses(), sampleLessons()).WriteToBuffer()
	require.NoError(t, err)

	result, err := im.ImportReader(context.Background(), buf, "upload")
	require.NoError(t, err)
	assert.Equal(t, 2, result.TotalProcessed)
	assert.Zero(t, result.Created)
	assert.Empty(t, store.saved)
}
