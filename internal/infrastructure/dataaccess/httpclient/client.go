// Package httpclient implements the data-access port against the LingoFin
// REST API served by cmd/api.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/lingofin/lingofin-hub/internal/application/app"
	"github.com/lingofin/lingofin-hub/internal/domain/challenge"
	"github.com/lingofin/lingofin-hub/internal/domain/community"
	"github.com/lingofin/lingofin-hub/internal/domain/course"
	"github.com/lingofin/lingofin-hub/internal/domain/shared"
	"github.com/lingofin/lingofin-hub/internal/domain/user"
	"github.com/lingofin/lingofin-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains configuration for the REST client.
type Config struct {
	// BaseURL is the API root, e.g. "http://localhost:8080".
	BaseURL string

	// APIKey is sent as a bearer token when set.
	APIKey string

	// Timeout bounds every request.
	Timeout time.Duration

	Logger *logger.Logger

	// Debug logs every request at debug level.
	Debug bool
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// WIRE FORMAT
// ══════════════════════════════════════════════════════════════════════════════

// envelope mirrors the server's {success, data, error, meta} response.
type envelope[T any] struct {
	Success bool      `json:"success"`
	Data    T         `json:"data"`
	Error   *apiError `json:"error,omitempty"`
	Meta    *meta     `json:"meta,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

type meta struct {
	Timestamp  time.Time `json:"timestamp"`
	Version    string    `json:"version,omitempty"`
	TotalCount int       `json:"total_count,omitempty"`
}

type userRef struct {
	UserID string `json:"user_id"`
}

type progressRequest struct {
	UserID    string `json:"user_id"`
	Completed bool   `json:"completed"`
}

type scoreRequest struct {
	UserID string `json:"user_id"`
	Score  int    `json:"score"`
}

type signUpRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type okResult struct {
	OK bool `json:"ok"`
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client talks to the REST API. It implements app.DataAccess.
type Client struct {
	config     Config
	httpClient *http.Client
	log        *logger.Logger
}

var _ app.DataAccess = (*Client)(nil)

func New(config Config) *Client {
	if config.Logger == nil {
		config.Logger = logger.Nop()
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		log:        config.Logger.With(logger.Component("httpclient")),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// COURSES
// ══════════════════════════════════════════════════════════════════════════════

func (c *Client) FetchAllCourses(ctx context.Context) ([]course.Course, error) {
	var out []course.Course
	err := c.do(ctx, "FetchAllCourses", http.MethodGet, "/api/v1/courses", nil, &out)
	return out, err
}

func (c *Client) FetchUserCourses(ctx context.Context, userID string) ([]course.Course, error) {
	var out []course.Course
	err := c.do(ctx, "FetchUserCourses", http.MethodGet, "/api/v1/users/"+url.PathEscape(userID)+"/courses", nil, &out)
	return out, err
}

func (c *Client) Enroll(ctx context.Context, courseID, userID string) (bool, error) {
	var out okResult
	err := c.do(ctx, "Enroll", http.MethodPost, "/api/v1/courses/"+url.PathEscape(courseID)+"/enroll", userRef{UserID: userID}, &out)
	return out.OK, err
}

func (c *Client) UpdateLessonProgress(ctx context.Context, lessonID, userID string, completed bool) (bool, error) {
	var out okResult
	body := progressRequest{UserID: userID, Completed: completed}
	err := c.do(ctx, "UpdateLessonProgress", http.MethodPut, "/api/v1/lessons/"+url.PathEscape(lessonID)+"/progress", body, &out)
	return out.OK, err
}

// ══════════════════════════════════════════════════════════════════════════════
// CHALLENGES
// ══════════════════════════════════════════════════════════════════════════════

func (c *Client) FetchAllChallenges(ctx context.Context) ([]challenge.Challenge, error) {
	var out []challenge.Challenge
	err := c.do(ctx, "FetchAllChallenges", http.MethodGet, "/api/v1/challenges", nil, &out)
	return out, err
}

func (c *Client) FetchUserChallenges(ctx context.Context, userID string) ([]challenge.Challenge, error) {
	var out []challenge.Challenge
	err := c.do(ctx, "FetchUserChallenges", http.MethodGet, "/api/v1/users/"+url.PathEscape(userID)+"/challenges", nil, &out)
	return out, err
}

func (c *Client) JoinChallenge(ctx context.Context, challengeID, userID string) (bool, error) {
	var out okResult
	err := c.do(ctx, "JoinChallenge", http.MethodPost, "/api/v1/challenges/"+url.PathEscape(challengeID)+"/join", userRef{UserID: userID}, &out)
	return out.OK, err
}

func (c *Client) FetchLeaderboard(ctx context.Context, challengeID string) ([]challenge.LeaderboardEntry, error) {
	var out []challenge.LeaderboardEntry
	err := c.do(ctx, "FetchLeaderboard", http.MethodGet, "/api/v1/challenges/"+url.PathEscape(challengeID)+"/leaderboard", nil, &out)
	return out, err
}

func (c *Client) UpdateChallengeScore(ctx context.Context, challengeID, userID string, score int) (bool, error) {
	var out okResult
	body := scoreRequest{UserID: userID, Score: score}
	err := c.do(ctx, "UpdateChallengeScore", http.MethodPut, "/api/v1/challenges/"+url.PathEscape(challengeID)+"/score", body, &out)
	return out.OK, err
}

// ══════════════════════════════════════════════════════════════════════════════
// COMMUNITY
// ══════════════════════════════════════════════════════════════════════════════

func (c *Client) FetchPosts(ctx context.Context) ([]community.Post, error) {
	var out []community.Post
	err := c.do(ctx, "FetchPosts", http.MethodGet, "/api/v1/posts", nil, &out)
	return out, err
}

func (c *Client) CreatePost(ctx context.Context, p community.Post) (community.Post, error) {
	var out community.Post
	err := c.do(ctx, "CreatePost", http.MethodPost, "/api/v1/posts", p, &out)
	return out, err
}

func (c *Client) ToggleLike(ctx context.Context, postID, userID string) (bool, error) {
	var out okResult
	err := c.do(ctx, "ToggleLike", http.MethodPost, "/api/v1/posts/"+url.PathEscape(postID)+"/like", userRef{UserID: userID}, &out)
	return out.OK, err
}

func (c *Client) AddComment(ctx context.Context, postID string, cm community.Comment) (community.Comment, error) {
	var out community.Comment
	err := c.do(ctx, "AddComment", http.MethodPost, "/api/v1/posts/"+url.PathEscape(postID)+"/comments", cm, &out)
	return out, err
}

// ══════════════════════════════════════════════════════════════════════════════
// USERS
// ══════════════════════════════════════════════════════════════════════════════

func (c *Client) SignUp(ctx context.Context, email, name, password string) (*user.User, error) {
	var out user.User
	body := signUpRequest{Email: email, Name: name, Password: password}
	if err := c.do(ctx, "SignUp", http.MethodPost, "/api/v1/auth/signup", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*user.User, error) {
	var out user.User
	body := signInRequest{Email: email, Password: password}
	if err := c.do(ctx, "SignIn", http.MethodPost, "/api/v1/auth/signin", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateProfile(ctx context.Context, u *user.User) (*user.User, error) {
	if u == nil {
		return nil, shared.InvalidArgument("httpclient", "UpdateProfile", "user is nil")
	}
	var out user.User
	if err := c.do(ctx, "UpdateProfile", http.MethodPut, "/api/v1/users/"+url.PathEscape(u.ID), u, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HTTP REQUEST HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// do performs one request and decodes the envelope's data into result.
// Every failure is returned in the shared error taxonomy.
func (c *Client) do(ctx context.Context, op, method, path string, body any, result any) error {
	fullURL := c.config.BaseURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return shared.WrapError("httpclient", op, shared.ErrInvalidArgument, "marshal body", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return shared.WrapError("httpclient", op, shared.ErrInvalidArgument, "create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	if c.config.Debug {
		c.log.Debug("api request", logger.String("method", method), logger.String("path", path))
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return shared.ServiceFailure("httpclient", op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return shared.ServiceFailure("httpclient", op, fmt.Errorf("read response: %w", err))
	}

	if c.config.Debug {
		c.log.Debug("api response",
			logger.Operation(op),
			logger.Int("status", resp.StatusCode),
			logger.Latency(time.Since(start)),
		)
	}

	if resp.StatusCode >= 400 {
		return statusError(op, resp.StatusCode, respBody)
	}

	env := envelope[json.RawMessage]{}
	if err := json.Unmarshal(respBody, &env); err != nil {
		return shared.ServiceFailure("httpclient", op, fmt.Errorf("unmarshal response: %w", err))
	}
	if !env.Success {
		msg := "request rejected"
		if env.Error != nil && env.Error.Message != "" {
			msg = env.Error.Message
		}
		return shared.ServiceFailure("httpclient", op, errors.New(msg))
	}
	if result != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, result); err != nil {
			return shared.ServiceFailure("httpclient", op, fmt.Errorf("unmarshal data: %w", err))
		}
	}
	return nil
}

// statusError maps an HTTP error status onto an error kind, keeping the
// server's message.
func statusError(op string, status int, body []byte) error {
	msg := fmt.Sprintf("api error: status %d", status)
	var env envelope[json.RawMessage]
	if err := json.Unmarshal(body, &env); err == nil && env.Error != nil && env.Error.Message != "" {
		msg = env.Error.Message
	}

	switch {
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return shared.NewDomainError("httpclient", op, shared.ErrInvalidArgument, msg)
	case status == http.StatusNotFound:
		return shared.NewDomainError("httpclient", op, shared.ErrNotFound, msg)
	case status == http.StatusForbidden || status == http.StatusUnauthorized:
		return shared.NewDomainError("httpclient", op, shared.ErrUnauthorized, msg)
	default:
		return shared.ServiceFailure("httpclient", op, errors.New(msg))
	}
}

// IsHealthy checks if the API is reachable.
func (c *Client) IsHealthy(ctx context.Context) bool {
	var status map[string]any
	return c.do(ctx, "Health", http.MethodGet, "/health", nil, &status) == nil
}
