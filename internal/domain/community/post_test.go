package community

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lingofin/lingofin-hub/internal/domain/shared"
)

func TestNewPost(t *testing.T) {
	now := time.Now()

	_, err := NewPost("u1", "Ana", "   ", PostTip, now)
	assert.ErrorIs(t, err, shared.ErrEmptyContent)

	_, err = NewPost("u1", "Ana", "hi", "rant", now)
	assert.True(t, shared.IsInvalidArgument(err))

	p, err := NewPost("u1", "Ana", "hi", PostQuestion, now)
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Empty(t, p.Likes)
	assert.Equal(t, now, p.CreatedAt)
}

func TestToggleLike_IsAnInvolution(t *testing.T) {
	p := Post{Likes: []string{"u2", "u3"}}

	assert.True(t, p.ToggleLike("u1"))
	assert.True(t, p.LikedBy("u1"))
	assert.False(t, p.ToggleLike("u1"))
	assert.Equal(t, []string{"u2", "u3"}, p.Likes)

	assert.False(t, p.ToggleLike("u2"))
	assert.True(t, p.ToggleLike("u2"))
	assert.ElementsMatch(t, []string{"u2", "u3"}, p.Likes)
}

func TestCommentsAppendRemoveAndCount(t *testing.T) {
	p := Post{}
	c1 := Comment{ID: "c1", Replies: []Comment{{ID: "r1", Replies: []Comment{{ID: "r2"}}}}}
	c2 := Comment{ID: "c2"}

	p.AppendComment(c1)
	p.AppendComment(c2)
	assert.Equal(t, 4, p.CommentCount())

	assert.True(t, p.RemoveComment("c2"))
	assert.False(t, p.RemoveComment("c2"))
	require.Len(t, p.Comments, 1)
	assert.Equal(t, "c1", p.Comments[0].ID)
}

func TestPostClone_IsDeep(t *testing.T) {
	p := Post{Likes: []string{"u1"}, Comments: []Comment{{ID: "c", Replies: []Comment{{ID: "r"}}}}}
	cp := p.Clone()
	cp.Likes[0] = "x"
	cp.Comments[0].Replies[0].ID = "changed"

	assert.Equal(t, "u1", p.Likes[0])
	assert.Equal(t, "r", p.Comments[0].Replies[0].ID)
}
