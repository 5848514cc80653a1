// Package course содержит каталог курсов, уроков и упражнений, а также
// правила проверки ответов и индекс записей на курсы.
package course

import (
	"encoding/json"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/lingofin/lingofin-hub/internal/domain/shared"
)

// DefaultLessonDuration - время в секундах, засчитываемое за урок
// без заданной длительности.
const DefaultLessonDuration = 300

// DefaultExercisePoints - очки упражнения, у которого они не заданы.
// Применяется и импортом каталога, и декодированием JSON.
const DefaultExercisePoints = 10

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// LessonType - вид урока. Неизвестные значения отклоняются Validate.
type LessonType string

const (
	LessonVocabulary    LessonType = "vocabulary"
	LessonGrammar       LessonType = "grammar"
	LessonConversation  LessonType = "conversation"
	LessonReading       LessonType = "reading"
	LessonListening     LessonType = "listening"
	LessonFinancialCase LessonType = "financial_case"
	LessonQuiz          LessonType = "quiz"
)

// IsValid сообщает, входит ли тип в закрытый перечень видов урока.
func (t LessonType) IsValid() bool {
	switch t {
	case LessonVocabulary, LessonGrammar, LessonConversation, LessonReading,
		LessonListening, LessonFinancialCase, LessonQuiz:
		return true
	}
	return false
}

// ExerciseType - формат упражнения. От него зависит только отображение,
// проверка ответа одинакова для всех форматов.
type ExerciseType string

const (
	ExerciseMultipleChoice ExerciseType = "multiple_choice"
	ExerciseFillInBlank    ExerciseType = "fill_in_blank"
	ExerciseTranslation    ExerciseType = "translation"
	ExerciseMatching       ExerciseType = "matching"
	ExerciseDragAndDrop    ExerciseType = "drag_and_drop"
	ExerciseSpeaking       ExerciseType = "speaking"
	ExerciseListening      ExerciseType = "listening"
)

// IsValid сообщает, входит ли формат в закрытый перечень упражнений.
func (t ExerciseType) IsValid() bool {
	switch t {
	case ExerciseMultipleChoice, ExerciseFillInBlank, ExerciseTranslation, ExerciseMatching,
		ExerciseDragAndDrop, ExerciseSpeaking, ExerciseListening:
		return true
	}
	return false
}

// ══════════════════════════════════════════════════════════════════════════════
// ENTITIES
// ══════════════════════════════════════════════════════════════════════════════

// Course - курс каталога. Уроки упорядочиваются по Order явно
// (SortedLessons) перед показом и проверкой.
type Course struct {
	ID                string                `json:"id"`
	Title             string                `json:"title"`
	Description       string                `json:"description"`
	Language          shared.Language       `json:"language"`
	FinancialSkill    shared.FinancialSkill `json:"financial_skill"`
	Difficulty        shared.Difficulty     `json:"difficulty"`
	EstimatedDuration int                   `json:"estimated_duration"` // секунды
	Lessons           []Lesson              `json:"lessons"`
	ThumbnailURL      string                `json:"thumbnail_url,omitempty"`
	IsPopular         bool                  `json:"is_popular"`
	Rating            float64               `json:"rating"`
	EnrolledCount     int                   `json:"enrolled_count"`
	CreatedAt         time.Time             `json:"created_at"`
	UpdatedAt         time.Time             `json:"updated_at"`
}

// Lesson - урок. IsCompleted и CompletedAt относятся к одному пользователю:
// Store заполняет их только в проекциях View, All и Enrolled.
type Lesson struct {
	ID                string             `json:"id"`
	CourseID          string             `json:"course_id"`
	Title             string             `json:"title"`
	Content           string             `json:"content"`
	Type              LessonType         `json:"type"`
	FinancialScenario *FinancialScenario `json:"financial_scenario,omitempty"`
	Exercises         []Exercise         `json:"exercises"`
	Duration          int                `json:"duration"` // секунды
	Order             int                `json:"order"`
	IsCompleted       bool               `json:"is_completed"`
	CompletedAt       *time.Time         `json:"completed_at,omitempty"`
}

// Exercise - вопрос урока. Points начисляются только за верный ответ;
// отсутствующее в JSON поле points принимается равным DefaultExercisePoints.
type Exercise struct {
	ID            string       `json:"id"`
	Question      string       `json:"question"`
	Type          ExerciseType `json:"type"`
	Options       []string     `json:"options,omitempty"`
	CorrectAnswer string       `json:"correct_answer"`
	Explanation   string       `json:"explanation,omitempty"`
	Points        int          `json:"points"`
	IsCompleted   bool         `json:"is_completed"`
}

// FinancialScenario - учебный финансовый кейс урока со словарём терминов.
type FinancialScenario struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Context     string          `json:"context"`
	Vocabulary  []FinancialTerm `json:"vocabulary"`
	CaseStudy   string          `json:"case_study,omitempty"`
}

// FinancialTerm - термин словаря с переводом и примером употребления.
type FinancialTerm struct {
	Term        string          `json:"term"`
	Translation string          `json:"translation"`
	Definition  string          `json:"definition"`
	Example     string          `json:"example"`
	Language    shared.Language `json:"language"`
}

// UnmarshalJSON подставляет DefaultExercisePoints, если поле points
// отсутствует. Явный ноль сохраняется.
func (e *Exercise) UnmarshalJSON(data []byte) error {
	type plain Exercise
	v := plain{Points: DefaultExercisePoints}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*e = Exercise(v)
	return nil
}

// Validate проверяет идентификатор, название и перечислимые поля курса,
// его уроков и упражнений. Первое нарушение возвращается как
// InvalidArgument с указанием сущности.
func (c *Course) Validate() error {
	const op = "Validate"
	if strings.TrimSpace(c.ID) == "" || strings.TrimSpace(c.Title) == "" {
		return shared.InvalidArgument("course", op, "course id and title are required")
	}
	if !c.Language.IsValid() {
		return shared.InvalidArgument("course", op, "course %s: unknown language %q", c.ID, c.Language)
	}
	if !c.FinancialSkill.IsValid() {
		return shared.InvalidArgument("course", op, "course %s: unknown skill %q", c.ID, c.FinancialSkill)
	}
	if !c.Difficulty.IsValid() {
		return shared.InvalidArgument("course", op, "course %s: unknown difficulty %q", c.ID, c.Difficulty)
	}
	for _, l := range c.Lessons {
		if !l.Type.IsValid() {
			return shared.InvalidArgument("course", op, "lesson %s: unknown type %q", l.ID, l.Type)
		}
		for _, e := range l.Exercises {
			if !e.Type.IsValid() {
				return shared.InvalidArgument("course", op, "exercise %s: unknown type %q", e.ID, e.Type)
			}
		}
	}
	return nil
}

// Clone возвращает глубокую копию курса: уроки, упражнения и их варианты
// ответа не разделяют память с оригиналом.
func (c Course) Clone() Course {
	c.Lessons = slices.Clone(c.Lessons)
	for i := range c.Lessons {
		c.Lessons[i] = c.Lessons[i].Clone()
	}
	return c
}

// Clone возвращает глубокую копию урока, включая отметку времени
// завершения, финансовый сценарий и упражнения.
func (l Lesson) Clone() Lesson {
	if l.CompletedAt != nil {
		t := *l.CompletedAt
		l.CompletedAt = &t
	}
	if l.FinancialScenario != nil {
		s := *l.FinancialScenario
		s.Vocabulary = slices.Clone(s.Vocabulary)
		l.FinancialScenario = &s
	}
	l.Exercises = slices.Clone(l.Exercises)
	for i := range l.Exercises {
		l.Exercises[i].Options = slices.Clone(l.Exercises[i].Options)
	}
	return l
}

// Lesson ищет урок по идентификатору и возвращает указатель на элемент
// c.Lessons. Изменения через указатель видны в курсе.
func (c *Course) Lesson(id string) (*Lesson, bool) {
	for i := range c.Lessons {
		if c.Lessons[i].ID == id {
			return &c.Lessons[i], true
		}
	}
	return nil, false
}

// MarkCompleted ставит флаг завершения и отметку времени now.
// Повторный вызов оставляет флаг и перезаписывает отметку.
func (l *Lesson) MarkCompleted(now time.Time) {
	l.IsCompleted = true
	l.CompletedAt = &now
}

// TimeSpent - секунды, засчитываемые за прохождение урока.
// Для урока без длительности берётся DefaultLessonDuration.
func (l *Lesson) TimeSpent() int {
	if l.Duration <= 0 {
		return DefaultLessonDuration
	}
	return l.Duration
}

// SortLessons упорядочивает уроки по Order на месте.
// При равном Order сохраняется исходный порядок.
func (c *Course) SortLessons() {
	sort.SliceStable(c.Lessons, func(i, j int) bool { return c.Lessons[i].Order < c.Lessons[j].Order })
}

// SortedLessons возвращает копию уроков, упорядоченную по Order.
// Сам курс не изменяется.
func SortedLessons(c Course) []Lesson {
	out := slices.Clone(c.Lessons)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// CompletionPercentage - доля завершённых уроков от 0 до 1.
// Для курса без уроков возвращается 0.
func CompletionPercentage(c Course) float64 {
	if len(c.Lessons) == 0 {
		return 0
	}
	done := 0
	for _, l := range c.Lessons {
		if l.IsCompleted {
			done++
		}
	}
	return float64(done) / float64(len(c.Lessons))
}

// IsFinished сообщает, что в курсе есть уроки и все они завершены.
func IsFinished(c Course) bool {
	return len(c.Lessons) > 0 && CompletionPercentage(c) == 1
}

// ══════════════════════════════════════════════════════════════════════════════
// ANSWERS
// ══════════════════════════════════════════════════════════════════════════════

// CheckAnswer сравнивает ответ без учёта регистра после обрезки пробелов.
// Пунктуация не нормализуется, нечёткое сравнение не применяется.
func CheckAnswer(e Exercise, answer string) bool {
	return strings.EqualFold(strings.TrimSpace(answer), strings.TrimSpace(e.CorrectAnswer))
}

// ExerciseScore суммирует очки упражнений с верным ответом.
// answers индексируется по идентификатору упражнения; упражнения без
// ответа очков не дают.
func ExerciseScore(exercises []Exercise, answers map[string]string) int {
	total := 0
	for _, e := range exercises {
		if a, ok := answers[e.ID]; ok && CheckAnswer(e, a) {
			total += e.Points
		}
	}
	return total
}
