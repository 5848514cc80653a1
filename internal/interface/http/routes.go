package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/lingofin/lingofin-hub/internal/interface/http/handlers"
)

type route struct {
	method  string
	path    string
	handler http.HandlerFunc
}

func (s *Server) apiRoutes() []route {
	return []route{
		// courses
		{http.MethodGet, "/courses", s.handleListCourses},
		{http.MethodPost, "/courses/{courseID}/enroll", s.handleEnroll},
		{http.MethodPut, "/lessons/{lessonID}/progress", s.handleLessonProgress},
		{http.MethodGet, "/users/{userID}/courses", s.handleUserCourses},

		// challenges
		{http.MethodGet, "/challenges", s.handleListChallenges},
		{http.MethodPost, "/challenges/{challengeID}/join", s.handleJoinChallenge},
		{http.MethodGet, "/challenges/{challengeID}/leaderboard", s.handleLeaderboard},
		{http.MethodPut, "/challenges/{challengeID}/score", s.handleUpdateScore},
		{http.MethodGet, "/users/{userID}/challenges", s.handleUserChallenges},

		// community
		{http.MethodGet, "/posts", s.handleListPosts},
		{http.MethodPost, "/posts", s.handleCreatePost},
		{http.MethodPost, "/posts/{postID}/like", s.handleToggleLike},
		{http.MethodPost, "/posts/{postID}/comments", s.handleAddComment},

		// accounts
		{http.MethodPost, "/auth/signup", s.handleSignUp},
		{http.MethodPost, "/auth/signin", s.handleSignIn},
		{http.MethodPut, "/users/{userID}", s.handleUpdateProfile},
	}
}

func (s *Server) routes(r *mux.Router) {
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		handlers.WriteJSONError(w, http.StatusNotFound, "route_not_found", "No such endpoint")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		handlers.WriteJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
	})

	// Probes stay outside the API key guard.
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/ready", s.handleReady).Methods(http.MethodGet)
	r.HandleFunc("/live", s.handleLive).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	if len(s.config.APIKeys) > 0 {
		api.Use(handlers.NewAPIKeyAuth(s.config.APIKeyHeader, s.config.APIKeys).Middleware)
	}
	for _, rt := range s.apiRoutes() {
		api.HandleFunc(rt.path, rt.handler).Methods(rt.method)
	}
}
