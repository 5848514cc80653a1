package community

import (
	"sort"

	"github.com/lingofin/lingofin-hub/internal/domain/shared"
)

// Feed - упорядоченный список постов; после Replace новые идут первыми.
// Feed не безопасен для конкурентного использования, синхронизацию
// обеспечивает вызывающий.
type Feed struct {
	posts []Post
}

// NewFeed создаёт пустую ленту.
func NewFeed() *Feed {
	return &Feed{posts: []Post{}}
}

// Replace заменяет содержимое копиями posts, отсортированными по CreatedAt
// по убыванию. При равном времени сохраняется порядок входа.
func (f *Feed) Replace(posts []Post) {
	next := make([]Post, len(posts))
	for i, p := range posts {
		next[i] = p.Clone()
	}
	sort.SliceStable(next, func(i, j int) bool { return next[i].CreatedAt.After(next[j].CreatedAt) })
	f.posts = next
}

// Prepend вставляет копию p в начало ленты независимо от её времени.
func (f *Feed) Prepend(p Post) {
	f.posts = append([]Post{p.Clone()}, f.posts...)
}

// Get возвращает указатель на пост ленты с данным ID.
// Изменения через указатель видны в ленте; для чтения используйте Snapshot.
func (f *Feed) Get(id string) (*Post, bool) {
	for i := range f.posts {
		if f.posts[i].ID == id {
			return &f.posts[i], true
		}
	}
	return nil, false
}

// Len - число постов в ленте.
func (f *Feed) Len() int { return len(f.posts) }

// Snapshot возвращает глубокие копии всех постов в порядке ленты.
func (f *Feed) Snapshot() []Post {
	out := make([]Post, len(f.posts))
	for i, p := range f.posts {
		out[i] = p.Clone()
	}
	return out
}

// FilterByType отбирает посты вида t, сохраняя порядок входа.
func FilterByType(posts []Post, t PostType) []Post {
	out := []Post{}
	for _, p := range posts {
		if p.Type == t {
			out = append(out, p)
		}
	}
	return out
}

// FilterByLanguage отбирает посты на языке lang, сохраняя порядок входа.
func FilterByLanguage(posts []Post, lang shared.Language) []Post {
	out := []Post{}
	for _, p := range posts {
		if p.Language == lang {
			out = append(out, p)
		}
	}
	return out
}
