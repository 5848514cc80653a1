package course

import (
	"sort"
	"strings"
	"time"

	"github.com/lingofin/lingofin-hub/internal/domain/shared"
)

// lessonKey адресует урок внутри курса.
type lessonKey struct {
	course, lesson string
}

// Store - единственный источник правды о курсах: одна запись на курс и два
// индекса по пользователю (записи на курсы и завершённые уроки). Каталог и
// список курсов пользователя строятся как проекции поверх них.
//
// Записи курсов не хранят завершение: отметка урока принадлежит конкретному
// пользователю и накладывается при чтении. Store не потокобезопасен.
type Store struct {
	courses    map[string]*Course
	order      []string // порядок каталога, по первому появлению
	enrollment map[string]map[string]struct{}
	completed  map[string]map[lessonKey]time.Time
}

// NewStore создаёт пустое хранилище без курсов, записей и завершений.
func NewStore() *Store {
	return &Store{
		courses:    make(map[string]*Course),
		enrollment: make(map[string]map[string]struct{}),
		completed:  make(map[string]map[lessonKey]time.Time),
	}
}

// Upsert добавляет или заменяет курсы, сохраняя место известных id в
// каталоге. Флаги завершения во входных данных игнорируются.
func (s *Store) Upsert(courses ...Course) {
	for _, c := range courses {
		cp := c.Clone()
		for i := range cp.Lessons {
			cp.Lessons[i].IsCompleted, cp.Lessons[i].CompletedAt = false, nil
		}
		if _, ok := s.courses[c.ID]; !ok {
			s.order = append(s.order, c.ID)
		}
		s.courses[c.ID] = &cp
	}
}

// ReplaceCatalog загружает каталог целиком. Курсы, которых в нём больше нет,
// остаются, пока на них записан хоть один пользователь.
func (s *Store) ReplaceCatalog(courses []Course) {
	keep := make(map[string]bool, len(courses))
	for _, c := range courses {
		keep[c.ID] = true
	}
	for _, ids := range s.enrollment {
		for id := range ids {
			keep[id] = true
		}
	}
	order := s.order[:0]
	for _, id := range s.order {
		if keep[id] {
			order = append(order, id)
		} else {
			delete(s.courses, id)
		}
	}
	s.order = order
	s.Upsert(courses...)
}

// SetEnrollment принимает серверную копию курсов пользователя: обновляет
// записи курсов и заменяет оба индекса пользователя. Завершённые уроки
// берутся из этой копии, локальные отметки, которых сервер не знает,
// сбрасываются.
func (s *Store) SetEnrollment(userID string, courses []Course) {
	s.Upsert(courses...)
	ids := make(map[string]struct{}, len(courses))
	done := make(map[lessonKey]time.Time)
	for _, c := range courses {
		ids[c.ID] = struct{}{}
		for _, l := range c.Lessons {
			if !l.IsCompleted {
				continue
			}
			var at time.Time
			if l.CompletedAt != nil {
				at = *l.CompletedAt
			}
			done[lessonKey{c.ID, l.ID}] = at
		}
	}
	s.enrollment[userID] = ids
	s.completed[userID] = done
}

// MarkCompleted отмечает урок завершённым для пользователя. Повторный вызов
// оставляет отметку и перезаписывает время. Неизвестный курс или урок
// возвращает NotFound.
func (s *Store) MarkCompleted(userID, courseID, lessonID string, at time.Time) error {
	if _, _, err := s.FindLesson(courseID, lessonID); err != nil {
		return err
	}
	done, ok := s.completed[userID]
	if !ok {
		done = make(map[lessonKey]time.Time)
		s.completed[userID] = done
	}
	done[lessonKey{courseID, lessonID}] = at
	return nil
}

// Forget убирает записи и отметки пользователя, например при смене сессии.
func (s *Store) Forget(userID string) {
	delete(s.enrollment, userID)
	delete(s.completed, userID)
}

// FindLesson находит курс и его урок. Возвращаемые записи не содержат
// отметок завершения.
func (s *Store) FindLesson(courseID, lessonID string) (*Course, *Lesson, error) {
	c, ok := s.courses[courseID]
	if !ok {
		return nil, nil, shared.NotFound("course", "FindLesson", "course %s", courseID)
	}
	l, ok := c.Lesson(lessonID)
	if !ok {
		return c, nil, shared.NotFound("course", "FindLesson", "lesson %s in course %s", lessonID, courseID)
	}
	return c, l, nil
}

// View возвращает копию курса глазами пользователя: с его отметками
// завершения. Пустой userID даёт курс без отметок.
func (s *Store) View(userID, courseID string) (Course, bool) {
	c, ok := s.courses[courseID]
	if !ok {
		return Course{}, false
	}
	return s.overlay(userID, c), true
}

func (s *Store) overlay(userID string, c *Course) Course {
	out := c.Clone()
	done := s.completed[userID]
	if len(done) == 0 {
		return out
	}
	for i := range out.Lessons {
		l := &out.Lessons[i]
		if at, ok := done[lessonKey{c.ID, l.ID}]; ok {
			l.MarkCompleted(at)
		}
	}
	return out
}

// All возвращает весь каталог в его порядке с отметками пользователя.
func (s *Store) All(userID string) []Course {
	out := make([]Course, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.overlay(userID, s.courses[id]))
	}
	return out
}

// Enrolled возвращает курсы пользователя в порядке каталога.
func (s *Store) Enrolled(userID string) []Course {
	ids := s.enrollment[userID]
	out := make([]Course, 0, len(ids))
	for _, id := range s.order {
		if _, ok := ids[id]; ok {
			out = append(out, s.overlay(userID, s.courses[id]))
		}
	}
	return out
}

// IsEnrolled сообщает, записан ли пользователь на курс.
func (s *Store) IsEnrolled(userID, courseID string) bool {
	_, ok := s.enrollment[userID][courseID]
	return ok
}

// Len - число курсов в каталоге.
func (s *Store) Len() int { return len(s.order) }

// ══════════════════════════════════════════════════════════════════════════════
// QUERIES
// ══════════════════════════════════════════════════════════════════════════════

// Filter сужает список курсов. Нулевое значение поля не ограничивает выборку.
type Filter struct {
	Language   shared.Language
	Skill      shared.FinancialSkill
	Difficulty shared.Difficulty
	Popular    bool
}

// Match проверяет курс по всем заданным критериям сразу.
func (f Filter) Match(c Course) bool {
	return (f.Language == "" || c.Language == f.Language) &&
		(f.Skill == "" || c.FinancialSkill == f.Skill) &&
		(f.Difficulty == "" || c.Difficulty == f.Difficulty) &&
		(!f.Popular || c.IsPopular)
}

// FilterCourses оставляет курсы, подходящие под фильтр, в исходном порядке.
func FilterCourses(courses []Course, f Filter) []Course {
	out := make([]Course, 0, len(courses))
	for _, c := range courses {
		if f.Match(c) {
			out = append(out, c)
		}
	}
	return out
}

// Search ищет подстроку без учёта регистра в названии, описании и
// отображаемых именах языка и навыка. Пустой запрос возвращает всё.
func Search(courses []Course, query string) []Course {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return courses
	}
	out := make([]Course, 0)
	for _, c := range courses {
		fields := []string{c.Title, c.Description, c.Language.DisplayName(), c.FinancialSkill.DisplayName()}
		for _, f := range fields {
			if strings.Contains(strings.ToLower(f), q) {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// ByRating сортирует копию списка по рейтингу, лучшие первыми. Порядок
// равных сохраняется.
func ByRating(courses []Course) []Course {
	out := append([]Course(nil), courses...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Rating > out[j].Rating })
	return out
}
