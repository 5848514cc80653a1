package community

import "context"

// Gateway - порт ленты сообщества. Отказы бэкенда классифицируются
// через shared.Classify.
type Gateway interface {
	FetchPosts(ctx context.Context) ([]Post, error)
	CreatePost(ctx context.Context, p Post) (Post, error)
	ToggleLike(ctx context.Context, postID, userID string) (bool, error)
	AddComment(ctx context.Context, postID string, c Comment) (Comment, error)
}
