package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/lingofin/lingofin-hub/internal/domain/challenge"
	"github.com/lingofin/lingofin-hub/internal/domain/community"
	"github.com/lingofin/lingofin-hub/internal/domain/course"
	"github.com/lingofin/lingofin-hub/internal/domain/shared"
	"github.com/lingofin/lingofin-hub/internal/domain/user"
	"github.com/lingofin/lingofin-hub/internal/interface/http/handlers"
	"github.com/lingofin/lingofin-hub/pkg/logger"
)

var validate = newValidator()

// newValidator reports fields by their json names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST BODIES
// ══════════════════════════════════════════════════════════════════════════════

type userRef struct {
	UserID string `json:"user_id" validate:"required"`
}

type progressRequest struct {
	UserID    string `json:"user_id" validate:"required"`
	Completed bool   `json:"completed"`
}

type scoreRequest struct {
	UserID string `json:"user_id" validate:"required"`
	Score  int    `json:"score" validate:"gte=0"`
}

type postRequest struct {
	ID             string                 `json:"id"`
	AuthorID       string                 `json:"author_id" validate:"required"`
	AuthorName     string                 `json:"author_name"`
	Content        string                 `json:"content" validate:"required"`
	Type           community.PostType     `json:"type" validate:"required"`
	Language       shared.Language        `json:"language"`
	FinancialTopic shared.FinancialSkill  `json:"financial_topic"`
	Attachments    []community.Attachment `json:"attachments"`
	CreatedAt      time.Time              `json:"created_at"`
}

type commentRequest struct {
	ID         string    `json:"id"`
	AuthorID   string    `json:"author_id" validate:"required"`
	AuthorName string    `json:"author_name"`
	Content    string    `json:"content" validate:"required"`
	CreatedAt  time.Time `json:"created_at"`
}

type signUpRequest struct {
	Email    string `json:"email" validate:"required"`
	Name     string `json:"name"`
	Password string `json:"password" validate:"required"`
}

type signInRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type okResult struct {
	OK bool `json:"ok"`
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Healthy {
			handlers.WriteJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		handlers.WriteJSON(w, http.StatusOK, status)
		return
	}

	handlers.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"uptime":  s.Uptime().String(),
		"version": s.deps.Version,
	})
}

// handleReady handles the readiness probe endpoint.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			handlers.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": status.Message,
			})
			return
		}
	}
	handlers.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleLive(w http.ResponseWriter, _ *http.Request) {
	handlers.WriteJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// COURSE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleListCourses handles GET /api/v1/courses. Optional query parameters:
// language, skill, difficulty, popular and q.
func (s *Server) handleListCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := s.deps.Backend.FetchAllCourses(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	q := r.URL.Query()
	courses = course.FilterCourses(courses, course.Filter{
		Language:   shared.Language(q.Get("language")),
		Skill:      shared.FinancialSkill(q.Get("skill")),
		Difficulty: shared.Difficulty(q.Get("difficulty")),
		Popular:    queryBool(r, "popular"),
	})
	courses = course.Search(courses, q.Get("q"))

	s.writeList(w, r, courses, len(courses))
}

func (s *Server) handleUserCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := s.deps.Backend.FetchUserCourses(r.Context(), mux.Vars(r)["userID"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeList(w, r, courses, len(courses))
}

func (s *Server) handleEnroll(w http.ResponseWriter, r *http.Request) {
	var body userRef
	if !s.decode(w, r, &body) {
		return
	}
	courseID := mux.Vars(r)["courseID"]

	ok, err := s.deps.Backend.Enroll(r.Context(), courseID, body.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if ok {
		s.publish(r.Context(), shared.NewCourseEnrolledEvent(courseID, body.UserID))
	}
	handlers.WriteJSON(w, http.StatusOK, okResult{OK: ok})
}

func (s *Server) handleLessonProgress(w http.ResponseWriter, r *http.Request) {
	var body progressRequest
	if !s.decode(w, r, &body) {
		return
	}

	ok, err := s.deps.Backend.UpdateLessonProgress(r.Context(), mux.Vars(r)["lessonID"], body.UserID, body.Completed)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	handlers.WriteJSON(w, http.StatusOK, okResult{OK: ok})
}

// ══════════════════════════════════════════════════════════════════════════════
// CHALLENGE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleListChallenges(w http.ResponseWriter, r *http.Request) {
	challenges, err := s.deps.Backend.FetchAllChallenges(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeList(w, r, challenges, len(challenges))
}

func (s *Server) handleUserChallenges(w http.ResponseWriter, r *http.Request) {
	challenges, err := s.deps.Backend.FetchUserChallenges(r.Context(), mux.Vars(r)["userID"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeList(w, r, challenges, len(challenges))
}

func (s *Server) handleJoinChallenge(w http.ResponseWriter, r *http.Request) {
	var body userRef
	if !s.decode(w, r, &body) {
		return
	}
	challengeID := mux.Vars(r)["challengeID"]

	ok, err := s.deps.Backend.JoinChallenge(r.Context(), challengeID, body.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if ok {
		s.publish(r.Context(), shared.NewChallengeJoinedEvent(challengeID, body.UserID))
	}
	handlers.WriteJSON(w, http.StatusOK, okResult{OK: ok})
}

// handleLeaderboard handles GET /api/v1/challenges/{challengeID}/leaderboard.
// The ranked board is read through the cache when one is configured; an
// optional limit trims the response, never the cached copy.
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	challengeID := mux.Vars(r)["challengeID"]

	limit, err := queryInt(r, "limit")
	if err != nil || limit < 0 {
		handlers.WriteJSONError(w, http.StatusBadRequest, "invalid_argument", "limit must be a non-negative integer")
		return
	}

	ranked, hit, err := s.rankedLeaderboard(r.Context(), challengeID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if hit {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}

	total := len(ranked)
	if limit > 0 {
		ranked = challenge.Top(ranked, limit)
	}
	s.writeList(w, r, ranked, total)
}

func (s *Server) rankedLeaderboard(ctx context.Context, challengeID string) ([]challenge.LeaderboardEntry, bool, error) {
	log := logger.FromContext(ctx)
	useCache := s.deps.Leaderboards != nil && s.deps.UseCache()

	if useCache {
		entries, err := s.deps.Leaderboards.Get(ctx, challengeID)
		if err == nil {
			return entries, true, nil
		}
		log.Debug("leaderboard cache miss", logger.ChallengeID(challengeID), logger.Err(err))
	}

	entries, err := s.deps.Backend.FetchLeaderboard(ctx, challengeID)
	if err != nil {
		return nil, false, err
	}
	ranked := challenge.Rank(entries)

	if useCache {
		if err := s.deps.Leaderboards.Store(ctx, challengeID, ranked, s.clock.Now()); err != nil {
			log.Warn("failed to cache leaderboard", logger.ChallengeID(challengeID), logger.Err(err))
		}
	}
	return ranked, false, nil
}

func (s *Server) handleUpdateScore(w http.ResponseWriter, r *http.Request) {
	var body scoreRequest
	if !s.decode(w, r, &body) {
		return
	}
	challengeID := mux.Vars(r)["challengeID"]

	ok, err := s.deps.Backend.UpdateChallengeScore(r.Context(), challengeID, body.UserID, body.Score)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if ok {
		s.publish(r.Context(), shared.NewScoreUpdatedEvent(challengeID, body.UserID, body.Score))
	}
	handlers.WriteJSON(w, http.StatusOK, okResult{OK: ok})
}

// ══════════════════════════════════════════════════════════════════════════════
// COMMUNITY HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := s.deps.Backend.FetchPosts(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeList(w, r, posts, len(posts))
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	var body postRequest
	if !s.decode(w, r, &body) {
		return
	}

	created, err := s.deps.Backend.CreatePost(r.Context(), community.Post{
		ID:             body.ID,
		AuthorID:       body.AuthorID,
		AuthorName:     body.AuthorName,
		Content:        body.Content,
		Type:           body.Type,
		Language:       body.Language,
		FinancialTopic: body.FinancialTopic,
		Attachments:    body.Attachments,
		CreatedAt:      body.CreatedAt,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.publish(r.Context(), shared.NewPostCreatedEvent(created.ID, created.AuthorID, string(created.Type), string(created.Language)))
	handlers.WriteJSON(w, http.StatusCreated, created)
}

func (s *Server) handleToggleLike(w http.ResponseWriter, r *http.Request) {
	var body userRef
	if !s.decode(w, r, &body) {
		return
	}
	postID := mux.Vars(r)["postID"]

	ok, err := s.deps.Backend.ToggleLike(r.Context(), postID, body.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if ok {
		s.publish(r.Context(), shared.NewPostLikedEvent(postID, body.UserID, s.likedAfterToggle(r.Context(), postID, body.UserID)))
	}
	handlers.WriteJSON(w, http.StatusOK, okResult{OK: ok})
}

// likedAfterToggle looks the new state up in the feed. A failed lookup
// reports true.
func (s *Server) likedAfterToggle(ctx context.Context, postID, userID string) bool {
	posts, err := s.deps.Backend.FetchPosts(ctx)
	if err != nil {
		logger.FromContext(ctx).Warn("failed to read like state", logger.PostID(postID), logger.Err(err))
		return true
	}
	for i := range posts {
		if posts[i].ID == postID {
			return posts[i].LikedBy(userID)
		}
	}
	return true
}

func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	var body commentRequest
	if !s.decode(w, r, &body) {
		return
	}
	postID := mux.Vars(r)["postID"]

	created, err := s.deps.Backend.AddComment(r.Context(), postID, community.Comment{
		ID:         body.ID,
		AuthorID:   body.AuthorID,
		AuthorName: body.AuthorName,
		Content:    body.Content,
		Likes:      []string{},
		Replies:    []community.Comment{},
		CreatedAt:  body.CreatedAt,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.publish(r.Context(), shared.NewCommentAddedEvent(postID, created.ID, created.AuthorID))
	handlers.WriteJSON(w, http.StatusCreated, created)
}

// ══════════════════════════════════════════════════════════════════════════════
// ACCOUNT HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var body signUpRequest
	if !s.decode(w, r, &body) {
		return
	}

	u, err := s.deps.Backend.SignUp(r.Context(), body.Email, body.Name, body.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	handlers.WriteJSON(w, http.StatusCreated, u)
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var body signInRequest
	if !s.decode(w, r, &body) {
		return
	}

	u, err := s.deps.Backend.SignIn(r.Context(), body.Email, body.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	handlers.WriteJSON(w, http.StatusOK, u)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var body user.User
	if !s.decode(w, r, &body) {
		return
	}

	userID := mux.Vars(r)["userID"]
	if body.ID == "" {
		body.ID = userID
	}
	if body.ID != userID {
		handlers.WriteJSONError(w, http.StatusBadRequest, "invalid_argument", "user id does not match path")
		return
	}

	u, err := s.deps.Backend.UpdateProfile(r.Context(), &body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	handlers.WriteJSON(w, http.StatusOK, u)
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// decode reads and validates a JSON body. It writes the 400 itself and
// reports whether the handler may continue.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		handlers.WriteJSONErrorWithDetails(w, http.StatusBadRequest, "invalid_body", "Request body is not valid JSON", err.Error())
		return false
	}
	if err := validate.Struct(dst); err != nil {
		handlers.WriteJSONError(w, http.StatusBadRequest, "invalid_argument", validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fe.Field()+" is required")
		case "gte":
			msgs = append(msgs, fmt.Sprintf("%s must be >= %s", fe.Field(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}

// writeError maps an error kind onto an HTTP status.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)

	msg := err.Error()
	var de *shared.DomainError
	if errors.As(err, &de) && de.Message != "" {
		msg = de.Message
	}

	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Warn("backend call failed",
			logger.String("path", r.URL.Path),
			logger.Err(err),
		)
	}
	handlers.WriteJSONError(w, status, code, msg)
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, shared.ErrInvalidArgument):
		return http.StatusBadRequest, "invalid_argument"
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, shared.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, shared.ErrAlreadyExists):
		return http.StatusConflict, "already_exists"
	default:
		return http.StatusBadGateway, "service_failure"
	}
}

func (s *Server) writeList(w http.ResponseWriter, r *http.Request, data interface{}, total int) {
	handlers.WriteJSONWithMeta(w, http.StatusOK, data, &handlers.ResponseMeta{TotalCount: total}, getRequestID(r.Context()))
}

// publish never fails the request; the write has already happened.
func (s *Server) publish(ctx context.Context, event shared.Event) {
	if err := s.deps.Publisher.Publish(event); err != nil {
		logger.FromContext(ctx).Warn("failed to publish event",
			logger.String("event_type", string(event.EventType())),
			logger.Err(err),
		)
	}
}

func queryBool(r *http.Request, key string) bool {
	v := strings.ToLower(r.URL.Query().Get(key))
	return v == "true" || v == "1" || v == "yes"
}

// queryInt returns 0 for a missing parameter.
func queryInt(r *http.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
