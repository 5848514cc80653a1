// Package community содержит ленту обсуждений: посты, комментарии
// с вложенными ответами и лайки.
package community

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lingofin/lingofin-hub/internal/domain/shared"
)

// PostType - вид поста в ленте.
type PostType string

const (
	PostQuestion      PostType = "question"
	PostTip           PostType = "tip"
	PostAchievement   PostType = "achievement"
	PostDiscussion    PostType = "discussion"
	PostTranslation   PostType = "translation"
	PostFinancialNews PostType = "financial_news"
)

// IsValid сообщает, входит ли вид поста в закрытый перечень.
func (t PostType) IsValid() bool {
	switch t {
	case PostQuestion, PostTip, PostAchievement, PostDiscussion, PostTranslation, PostFinancialNews:
		return true
	}
	return false
}

// AttachmentType - вид вложения поста.
type AttachmentType string

const (
	AttachmentImage    AttachmentType = "image"
	AttachmentDocument AttachmentType = "document"
	AttachmentAudio    AttachmentType = "audio"
	AttachmentVideo    AttachmentType = "video"
	AttachmentLink     AttachmentType = "link"
)

// IsValid сообщает, входит ли вид вложения в закрытый перечень.
func (t AttachmentType) IsValid() bool {
	switch t {
	case AttachmentImage, AttachmentDocument, AttachmentAudio, AttachmentVideo, AttachmentLink:
		return true
	}
	return false
}

// Attachment - файл или ссылка, прикреплённые к посту.
type Attachment struct {
	ID       string         `json:"id"`
	Type     AttachmentType `json:"type"`
	URL      string         `json:"url"`
	Title    string         `json:"title,omitempty"`
	FileSize int64          `json:"file_size,omitempty"`
}

// Post - запись ленты. Likes - множество ID пользователей без повторов,
// Comments - комментарии верхнего уровня.
type Post struct {
	ID             string                `json:"id"`
	AuthorID       string                `json:"author_id"`
	AuthorName     string                `json:"author_name"`
	Content        string                `json:"content"`
	Type           PostType              `json:"type"`
	Language       shared.Language       `json:"language,omitempty"`
	FinancialTopic shared.FinancialSkill `json:"financial_topic,omitempty"`
	Attachments    []Attachment          `json:"attachments"`
	Likes          []string              `json:"likes"`
	Comments       []Comment             `json:"comments"`
	IsReported     bool                  `json:"is_reported"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

// Comment - комментарий к посту. Ответы вкладываются без ограничения
// глубины.
type Comment struct {
	ID         string    `json:"id"`
	AuthorID   string    `json:"author_id"`
	AuthorName string    `json:"author_name"`
	Content    string    `json:"content"`
	Likes      []string  `json:"likes"`
	Replies    []Comment `json:"replies"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewPost собирает черновик поста с новым ID и пустыми лайками,
// комментариями и вложениями. Пустой текст даёт ErrEmptyContent,
// неизвестный вид поста - InvalidArgument.
func NewPost(authorID, authorName, content string, typ PostType, now time.Time) (Post, error) {
	if strings.TrimSpace(content) == "" {
		return Post{}, shared.ErrEmptyContent
	}
	if !typ.IsValid() {
		return Post{}, shared.InvalidArgument("community", "NewPost", "unknown post type %q", typ)
	}
	return Post{
		ID:          uuid.New().String(),
		AuthorID:    authorID,
		AuthorName:  authorName,
		Content:     content,
		Type:        typ,
		Attachments: []Attachment{},
		Likes:       []string{},
		Comments:    []Comment{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// NewComment собирает комментарий с новым ID. Пустой текст
// даёт ErrEmptyContent.
func NewComment(authorID, authorName, content string, now time.Time) (Comment, error) {
	if strings.TrimSpace(content) == "" {
		return Comment{}, shared.ErrEmptyContent
	}
	return Comment{
		ID:         uuid.New().String(),
		AuthorID:   authorID,
		AuthorName: authorName,
		Content:    content,
		Likes:      []string{},
		Replies:    []Comment{},
		CreatedAt:  now,
	}, nil
}

// LikedBy сообщает, есть ли userID среди лайкнувших.
func (p *Post) LikedBy(userID string) bool {
	return slices.Contains(p.Likes, userID)
}

// ToggleLike добавляет или убирает лайк userID и возвращает новое
// состояние. Двойной вызов восстанавливает исходное множество.
func (p *Post) ToggleLike(userID string) bool {
	if i := slices.Index(p.Likes, userID); i >= 0 {
		p.Likes = slices.Delete(p.Likes, i, i+1)
		return false
	}
	p.Likes = append(p.Likes, userID)
	return true
}

// AppendComment добавляет комментарий в конец списка верхнего уровня.
func (p *Post) AppendComment(c Comment) {
	p.Comments = append(p.Comments, c)
}

// RemoveComment удаляет все комментарии верхнего уровня с данным ID.
// Возвращает true, если что-то удалено; ответы не просматриваются.
func (p *Post) RemoveComment(id string) bool {
	before := len(p.Comments)
	p.Comments = slices.DeleteFunc(p.Comments, func(c Comment) bool { return c.ID == id })
	return len(p.Comments) != before
}

// CommentCount считает комментарии вместе со всеми вложенными ответами.
func (p *Post) CommentCount() int {
	return countComments(p.Comments)
}

func countComments(cs []Comment) int {
	n := len(cs)
	for _, c := range cs {
		n += countComments(c.Replies)
	}
	return n
}

// Clone возвращает глубокую копию поста: вложения, лайки и дерево
// комментариев не разделяют память с оригиналом.
func (p Post) Clone() Post {
	p.Attachments = slices.Clone(p.Attachments)
	p.Likes = slices.Clone(p.Likes)
	p.Comments = cloneComments(p.Comments)
	return p
}

func cloneComments(cs []Comment) []Comment {
	if cs == nil {
		return nil
	}
	out := make([]Comment, len(cs))
	for i, c := range cs {
		c.Likes = slices.Clone(c.Likes)
		c.Replies = cloneComments(c.Replies)
		out[i] = c
	}
	return out
}
