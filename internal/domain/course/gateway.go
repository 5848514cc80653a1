package course

import "context"

// Gateway - порт каталога курсов.
type Gateway interface {
	FetchAllCourses(ctx context.Context) ([]Course, error)
	FetchUserCourses(ctx context.Context, userID string) ([]Course, error)
	Enroll(ctx context.Context, courseID, userID string) (bool, error)
	UpdateLessonProgress(ctx context.Context, lessonID, userID string, completed bool) (bool, error)
}
