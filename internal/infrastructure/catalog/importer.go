// Package catalog imports the course catalog from an Excel workbook.
//
// The workbook has two sheets, each with a header row:
//
//	Courses: id, title, description, language, skill, difficulty, duration, popular, rating
//	Lessons: course_id, id, order, title, type, content, duration, question,
//	         correct_answer, options, points, exercise_type
//
// Headers are matched case-insensitively and may appear in any order.
// Options are separated by "|". Repeating a lesson id on several rows adds
// one exercise per row to that lesson.
package catalog

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/lingofin/lingofin-hub/internal/domain/course"
	"github.com/lingofin/lingofin-hub/internal/domain/shared"
	"github.com/lingofin/lingofin-hub/pkg/logger"
	"github.com/lingofin/lingofin-hub/pkg/timeutil"
)

// CourseStore persists imported courses. created reports an insert.
type CourseStore interface {
	Upsert(ctx context.Context, c course.Course) (created bool, err error)
}

// ImportConfig defines the import configuration.
type ImportConfig struct {
	CoursesSheet string
	LessonsSheet string

	// DryRun parses and validates without writing.
	DryRun bool
}

func DefaultImportConfig() ImportConfig {
	return ImportConfig{
		CoursesSheet: "Courses",
		LessonsSheet: "Lessons",
	}
}

// ImportResult holds the result of an import operation.
type ImportResult struct {
	TotalProcessed int
	Created        int
	Updated        int
	Skipped        int
	Errors         []string
}

type Importer struct {
	store     CourseStore
	cfg       ImportConfig
	publisher shared.EventPublisher
	clock     timeutil.Clock
	log       *logger.Logger
}

type Options struct {
	Publisher shared.EventPublisher
	Clock     timeutil.Clock
	Logger    *logger.Logger
}

func NewImporter(store CourseStore, cfg ImportConfig, opts Options) *Importer {
	def := DefaultImportConfig()
	if cfg.CoursesSheet == "" {
		cfg.CoursesSheet = def.CoursesSheet
	}
	if cfg.LessonsSheet == "" {
		cfg.LessonsSheet = def.LessonsSheet
	}
	if opts.Publisher == nil {
		opts.Publisher = shared.NopPublisher{}
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	return &Importer{
		store:     store,
		cfg:       cfg,
		publisher: opts.Publisher,
		clock:     timeutil.OrSystem(opts.Clock),
		log:       opts.Logger.With(logger.Component("catalog-importer")),
	}
}

// ImportFile imports the workbook at path.
func (im *Importer) ImportFile(ctx context.Context, path string) (*ImportResult, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()
	return im.Import(ctx, f, path)
}

// ImportReader imports a workbook read from r; source names it in logs
// and events.
func (im *Importer) ImportReader(ctx context.Context, r io.Reader, source string) (*ImportResult, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read Excel workbook: %w", err)
	}
	defer f.Close()
	return im.Import(ctx, f, source)
}

// Import parses f and upserts every valid course. Row problems land in
// ImportResult.Errors; only unreadable sheets and context cancellation
// fail the whole import.
func (im *Importer) Import(ctx context.Context, f *excelize.File, source string) (*ImportResult, error) {
	courses, result, err := Parse(f, im.cfg, im.clock)
	if err != nil {
		return nil, err
	}

	if !im.cfg.DryRun {
		for _, c := range courses {
			if err := ctx.Err(); err != nil {
				return result, err
			}
			created, err := im.store.Upsert(ctx, c)
			if err != nil {
				result.Skipped++
				result.Errors = append(result.Errors, fmt.Sprintf("course %s: %v", c.ID, err))
				continue
			}
			if created {
				result.Created++
			} else {
				result.Updated++
			}
		}
	}

	im.log.Info("catalog imported",
		logger.String("source", source),
		logger.Int("processed", result.TotalProcessed),
		logger.Int("created", result.Created),
		logger.Int("updated", result.Updated),
		logger.Int("skipped", result.Skipped),
		logger.Int("errors", len(result.Errors)),
		logger.Bool("dry_run", im.cfg.DryRun),
	)
	event := shared.NewCatalogImportedEvent(source, result.TotalProcessed, result.Created, result.Skipped, len(result.Errors))
	if err := im.publisher.Publish(event); err != nil {
		im.log.Warn("publish catalog event", logger.Err(err))
	}
	return result, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// PARSING
// ══════════════════════════════════════════════════════════════════════════════

// Parse reads and validates the workbook. Courses come back in sheet order
// with lessons sorted by order.
func Parse(f *excelize.File, cfg ImportConfig, clock timeutil.Clock) ([]course.Course, *ImportResult, error) {
	now := timeutil.OrSystem(clock).Now()
	result := &ImportResult{Errors: make([]string, 0)}

	courseRows, err := readSheet(f, cfg.CoursesSheet)
	if err != nil {
		return nil, nil, err
	}
	lessonRows, err := readSheet(f, cfg.LessonsSheet)
	if err != nil {
		return nil, nil, err
	}

	var order []string
	byID := make(map[string]*course.Course)
	for _, r := range courseRows {
		result.TotalProcessed++
		c, err := parseCourse(r)
		if err == nil {
			if _, dup := byID[c.ID]; dup {
				err = fmt.Errorf("duplicate course id %q", c.ID)
			}
		}
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("%s row %d: %v", cfg.CoursesSheet, r.num, err))
			continue
		}
		c.CreatedAt, c.UpdatedAt = now, now
		byID[c.ID] = &c
		order = append(order, c.ID)
	}

	owners := make(map[string]string) // lesson id -> course id
	for _, r := range lessonRows {
		courseID := r.get("course_id")
		c, ok := byID[courseID]
		if !ok {
			result.Errors = append(result.Errors, fmt.Sprintf("%s row %d: unknown course %q", cfg.LessonsSheet, r.num, courseID))
			continue
		}
		if err := addLessonRow(c, r, owners); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s row %d: %v", cfg.LessonsSheet, r.num, err))
		}
	}

	out := make([]course.Course, 0, len(order))
	for _, id := range order {
		c := byID[id]
		c.SortLessons()
		if err := c.Validate(); err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		out = append(out, *c)
	}
	return out, result, nil
}

func parseCourse(r row) (course.Course, error) {
	c := course.Course{
		ID:             r.get("id"),
		Title:          r.get("title"),
		Description:    r.get("description"),
		Language:       shared.Language(strings.ToLower(r.get("language"))),
		FinancialSkill: shared.FinancialSkill(strings.ToLower(r.get("skill"))),
		Difficulty:     shared.Difficulty(strings.ToLower(r.get("difficulty"))),
		Lessons:        []course.Lesson{},
	}
	if c.ID == "" || c.Title == "" {
		return c, fmt.Errorf("id and title are required")
	}
	if !c.Language.IsValid() {
		return c, fmt.Errorf("unknown language %q", c.Language)
	}
	if !c.FinancialSkill.IsValid() {
		return c, fmt.Errorf("unknown skill %q", c.FinancialSkill)
	}
	if !c.Difficulty.IsValid() {
		return c, fmt.Errorf("unknown difficulty %q", c.Difficulty)
	}

	var err error
	if c.EstimatedDuration, err = r.getInt("duration"); err != nil {
		return c, err
	}
	if c.IsPopular, err = r.getBool("popular"); err != nil {
		return c, err
	}
	if c.Rating, err = r.getFloat("rating"); err != nil {
		return c, err
	}
	if c.Rating < 0 || c.Rating > 5 {
		return c, fmt.Errorf("rating %.1f outside 0..5", c.Rating)
	}
	return c, nil
}

func addLessonRow(c *course.Course, r row, owners map[string]string) error {
	id := r.get("id")
	if id == "" {
		return fmt.Errorf("lesson id is required")
	}

	if owner, seen := owners[id]; seen && owner != c.ID {
		return fmt.Errorf("lesson %s already belongs to course %s", id, owner)
	} else if !seen {
		l := course.Lesson{
			ID:        id,
			CourseID:  c.ID,
			Title:     r.get("title"),
			Content:   r.get("content"),
			Type:      course.LessonType(strings.ToLower(r.get("type"))),
			Exercises: []course.Exercise{},
		}
		if !l.Type.IsValid() {
			return fmt.Errorf("lesson %s: unknown type %q", id, l.Type)
		}
		var err error
		if l.Order, err = r.getInt("order"); err != nil {
			return err
		}
		if l.Duration, err = r.getInt("duration"); err != nil {
			return err
		}
		c.Lessons = append(c.Lessons, l)
		owners[id] = c.ID
	}
	lesson, _ := c.Lesson(id)

	question := r.get("question")
	if question == "" {
		return nil
	}
	ex := course.Exercise{
		ID:            fmt.Sprintf("%s-ex%d", id, len(lesson.Exercises)+1),
		Question:      question,
		CorrectAnswer: r.get("correct_answer"),
		Options:       splitOptions(r.get("options")),
		Type:          course.ExerciseType(strings.ToLower(r.get("exercise_type"))),
	}
	if ex.Type == "" {
		ex.Type = course.ExerciseFillInBlank
		if len(ex.Options) > 0 {
			ex.Type = course.ExerciseMultipleChoice
		}
	}
	if !ex.Type.IsValid() {
		return fmt.Errorf("exercise %s: unknown type %q", ex.ID, ex.Type)
	}
	if ex.CorrectAnswer == "" {
		return fmt.Errorf("exercise %s: correct_answer is required", ex.ID)
	}
	points, err := r.getIntOr("points", course.DefaultExercisePoints)
	if err != nil {
		return err
	}
	if points < 0 {
		return fmt.Errorf("exercise %s: negative points", ex.ID)
	}
	ex.Points = points
	lesson.Exercises = append(lesson.Exercises, ex)
	return nil
}

func splitOptions(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, o := range strings.Split(s, "|") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// SHEET ACCESS
// ══════════════════════════════════════════════════════════════════════════════

type row struct {
	num    int // 1-based sheet row
	cells  []string
	header map[string]int
}

func (r row) get(col string) string {
	i, ok := r.header[col]
	if !ok || i >= len(r.cells) {
		return ""
	}
	return strings.TrimSpace(r.cells[i])
}

func (r row) getInt(col string) (int, error) { return r.getIntOr(col, 0) }

// getIntOr returns def for a blank cell.
func (r row) getIntOr(col string, def int) (int, error) {
	v := r.get(col)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		// Numeric cells can come back as "600.0".
		f, ferr := strconv.ParseFloat(v, 64)
		if ferr != nil || f != float64(int(f)) {
			return 0, fmt.Errorf("%s: %q is not an integer", col, v)
		}
		n = int(f)
	}
	return n, nil
}

func (r row) getFloat(col string) (float64, error) {
	v := r.get(col)
	if v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not a number", col, v)
	}
	return f, nil
}

func (r row) getBool(col string) (bool, error) {
	switch strings.ToLower(r.get(col)) {
	case "", "0", "false", "no", "n":
		return false, nil
	case "1", "true", "yes", "y":
		return true, nil
	default:
		return false, fmt.Errorf("%s: %q is not a boolean", col, r.get(col))
	}
}

// readSheet returns the data rows of sheet keyed by its header row. Blank
// rows are dropped.
func readSheet(f *excelize.File, sheet string) ([]row, error) {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows of %s: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %s has no header row", sheet)
	}

	header := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		header[strings.ToLower(strings.TrimSpace(h))] = i
	}

	out := make([]row, 0, len(rows)-1)
	for i, cells := range rows[1:] {
		if blank(cells) {
			continue
		}
		out = append(out, row{num: i + 2, cells: cells, header: header})
	}
	return out, nil
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
