package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_MatchesKindThroughWrapping(t *testing.T) {
	err := fmt.Errorf("progression: complete lesson: %w", ErrLessonNotFound)

	assert.True(t, IsNotFound(err))
	assert.False(t, IsInvalidArgument(err))
	assert.ErrorIs(t, err, ErrLessonNotFound)
	assert.Equal(t, "progression: complete lesson: course.FindLesson: lesson not found", err.Error())
}

func TestDomainError_WrapsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := WrapError("dataaccess", "FetchPosts", ErrNetworkOrServiceFailure, "request failed", cause)

	assert.ErrorIs(t, err, cause)
	assert.True(t, IsServiceFailure(err))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		in   error
		is   error
	}{
		{"plain error becomes service failure", errors.New("boom"), ErrNetworkOrServiceFailure},
		{"timeout becomes service failure", ErrTimeout, ErrNetworkOrServiceFailure},
		{"invalid argument is kept", InvalidArgument("x", "y", "bad"), ErrInvalidArgument},
		{"not found is kept", ErrPostNotFound, ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, Classify("dataaccess", "Op", tt.in), tt.is)
		})
	}
	assert.NoError(t, Classify("dataaccess", "Op", nil))
}

func TestServiceFailure_KeepsMessage(t *testing.T) {
	err := ServiceFailure("dataaccess", "ToggleLike", errors.New("server said no"))
	assert.Equal(t, "dataaccess.ToggleLike: server said no", err.Error())
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ServiceFailure("d", "o", errors.New("x"))))
	assert.True(t, IsRetryable(ErrTimeout))
	assert.False(t, IsRetryable(ErrUserNotFound))
	assert.False(t, IsRetryable(ErrInvalidCredentials))
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(errors.New("unknown")))
}
