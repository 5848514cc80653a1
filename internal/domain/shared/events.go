package shared

import (
	"encoding/json"
	"time"
)

// EventType names something that happened in the domain.
type EventType string

const (
	// Progress events
	EventLessonCompleted EventType = "lesson.completed"
	EventLevelUp         EventType = "progress.level_up"
	EventBadgeEarned     EventType = "progress.badge_earned"

	// Course events
	EventCourseEnrolled  EventType = "course.enrolled"
	EventCatalogImported EventType = "course.catalog_imported"

	// Challenge events
	EventChallengeJoined   EventType = "challenge.joined"
	EventScoreUpdated      EventType = "challenge.score_updated"
	EventLeaderboardRanked EventType = "leaderboard.ranked"

	// Community events
	EventPostCreated  EventType = "post.created"
	EventPostLiked    EventType = "post.liked"
	EventCommentAdded EventType = "comment.added"

	// Session events
	EventSessionStarted EventType = "session.started"
	EventSessionEnded   EventType = "session.ended"

	// System events
	EventOptimisticReverted EventType = "optimistic.reverted"
)

// Event is implemented by every domain event.
type Event interface {
	EventType() EventType
	OccurredAt() time.Time
	AggregateID() string
	Payload() map[string]interface{}
}

// BaseEvent carries the fields shared by all events.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

func (e BaseEvent) EventType() EventType  { return e.Type }
func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }
func (e BaseEvent) AggregateID() string   { return e.AggregateId }
func (e BaseEvent) Correlation() string   { return e.CorrelationID }

func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// PROGRESS EVENTS
// ═══════════════════════════════════════════════════════════════════════════

// LessonCompletedEvent is emitted when a learner's progress absorbs a lesson.
type LessonCompletedEvent struct {
	BaseEvent
	UserID           string `json:"user_id"`
	LessonsCompleted int    `json:"lessons_completed"`
	TimeSpent        int    `json:"time_spent"`
	PointsEarned     int    `json:"points_earned"`
	TotalPoints      int    `json:"total_points"`
}

func (e LessonCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":           e.UserID,
		"lessons_completed": e.LessonsCompleted,
		"time_spent":        e.TimeSpent,
		"points_earned":     e.PointsEarned,
		"total_points":      e.TotalPoints,
	}
}

func NewLessonCompletedEvent(userID string, lessons, timeSpent, points, total int) LessonCompletedEvent {
	return LessonCompletedEvent{
		BaseEvent:        NewBaseEvent(EventLessonCompleted, userID),
		UserID:           userID,
		LessonsCompleted: lessons,
		TimeSpent:        timeSpent,
		PointsEarned:     points,
		TotalPoints:      total,
	}
}

type LevelUpEvent struct {
	BaseEvent
	UserID   string `json:"user_id"`
	OldLevel int    `json:"old_level"`
	NewLevel int    `json:"new_level"`
	TotalXP  int    `json:"total_xp"`
}

func (e LevelUpEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID,
		"old_level": e.OldLevel,
		"new_level": e.NewLevel,
		"total_xp":  e.TotalXP,
	}
}

func NewLevelUpEvent(userID string, oldLevel, newLevel, totalXP int) LevelUpEvent {
	return LevelUpEvent{
		BaseEvent: NewBaseEvent(EventLevelUp, userID),
		UserID:    userID,
		OldLevel:  oldLevel,
		NewLevel:  newLevel,
		TotalXP:   totalXP,
	}
}

type BadgeEarnedEvent struct {
	BaseEvent
	UserID    string `json:"user_id"`
	BadgeID   string `json:"badge_id"`
	BadgeName string `json:"badge_name"`
	Category  string `json:"category"`
}

func (e BadgeEarnedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":    e.UserID,
		"badge_id":   e.BadgeID,
		"badge_name": e.BadgeName,
		"category":   e.Category,
	}
}

func NewBadgeEarnedEvent(userID, badgeID, badgeName, category string) BadgeEarnedEvent {
	return BadgeEarnedEvent{
		BaseEvent: NewBaseEvent(EventBadgeEarned, userID),
		UserID:    userID,
		BadgeID:   badgeID,
		BadgeName: badgeName,
		Category:  category,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// COURSE EVENTS
// ═══════════════════════════════════════════════════════════════════════════

type CourseEnrolledEvent struct {
	BaseEvent
	UserID   string `json:"user_id"`
	CourseID string `json:"course_id"`
}

func (e CourseEnrolledEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID,
		"course_id": e.CourseID,
	}
}

func NewCourseEnrolledEvent(courseID, userID string) CourseEnrolledEvent {
	return CourseEnrolledEvent{
		BaseEvent: NewBaseEvent(EventCourseEnrolled, courseID),
		UserID:    userID,
		CourseID:  courseID,
	}
}

// CatalogImportedEvent summarizes one spreadsheet import run.
type CatalogImportedEvent struct {
	BaseEvent
	Source    string `json:"source"`
	Processed int    `json:"processed"`
	Created   int    `json:"created"`
	Skipped   int    `json:"skipped"`
	Errors    int    `json:"errors"`
}

func (e CatalogImportedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"source":    e.Source,
		"processed": e.Processed,
		"created":   e.Created,
		"skipped":   e.Skipped,
		"errors":    e.Errors,
	}
}

func NewCatalogImportedEvent(source string, processed, created, skipped, errs int) CatalogImportedEvent {
	return CatalogImportedEvent{
		BaseEvent: NewBaseEvent(EventCatalogImported, source),
		Source:    source,
		Processed: processed,
		Created:   created,
		Skipped:   skipped,
		Errors:    errs,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// CHALLENGE EVENTS
// ═══════════════════════════════════════════════════════════════════════════

type ChallengeJoinedEvent struct {
	BaseEvent
	UserID      string `json:"user_id"`
	ChallengeID string `json:"challenge_id"`
}

func (e ChallengeJoinedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":      e.UserID,
		"challenge_id": e.ChallengeID,
	}
}

func NewChallengeJoinedEvent(challengeID, userID string) ChallengeJoinedEvent {
	return ChallengeJoinedEvent{
		BaseEvent:   NewBaseEvent(EventChallengeJoined, challengeID),
		UserID:      userID,
		ChallengeID: challengeID,
	}
}

type ScoreUpdatedEvent struct {
	BaseEvent
	UserID      string `json:"user_id"`
	ChallengeID string `json:"challenge_id"`
	Score       int    `json:"score"`
}

func (e ScoreUpdatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":      e.UserID,
		"challenge_id": e.ChallengeID,
		"score":        e.Score,
	}
}

func NewScoreUpdatedEvent(challengeID, userID string, score int) ScoreUpdatedEvent {
	return ScoreUpdatedEvent{
		BaseEvent:   NewBaseEvent(EventScoreUpdated, challengeID),
		UserID:      userID,
		ChallengeID: challengeID,
		Score:       score,
	}
}

// LeaderboardRankedEvent is emitted after a challenge leaderboard is re-ranked.
type LeaderboardRankedEvent struct {
	BaseEvent
	ChallengeID string `json:"challenge_id"`
	Entries     int    `json:"entries"`
	LeaderID    string `json:"leader_id,omitempty"`
	TopScore    int    `json:"top_score"`
}

func (e LeaderboardRankedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"challenge_id": e.ChallengeID,
		"entries":      e.Entries,
		"leader_id":    e.LeaderID,
		"top_score":    e.TopScore,
	}
}

func NewLeaderboardRankedEvent(challengeID string, entries int, leaderID string, topScore int) LeaderboardRankedEvent {
	return LeaderboardRankedEvent{
		BaseEvent:   NewBaseEvent(EventLeaderboardRanked, challengeID),
		ChallengeID: challengeID,
		Entries:     entries,
		LeaderID:    leaderID,
		TopScore:    topScore,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// COMMUNITY EVENTS
// ═══════════════════════════════════════════════════════════════════════════

type PostCreatedEvent struct {
	BaseEvent
	AuthorID string `json:"author_id"`
	PostType string `json:"post_type"`
	Language string `json:"language"`
}

func (e PostCreatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"author_id": e.AuthorID,
		"post_type": e.PostType,
		"language":  e.Language,
	}
}

func NewPostCreatedEvent(postID, authorID, postType, language string) PostCreatedEvent {
	return PostCreatedEvent{
		BaseEvent: NewBaseEvent(EventPostCreated, postID),
		AuthorID:  authorID,
		PostType:  postType,
		Language:  language,
	}
}

type PostLikedEvent struct {
	BaseEvent
	UserID string `json:"user_id"`
	Liked  bool   `json:"liked"`
}

func (e PostLikedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id": e.UserID,
		"liked":   e.Liked,
	}
}

func NewPostLikedEvent(postID, userID string, liked bool) PostLikedEvent {
	return PostLikedEvent{
		BaseEvent: NewBaseEvent(EventPostLiked, postID),
		UserID:    userID,
		Liked:     liked,
	}
}

type CommentAddedEvent struct {
	BaseEvent
	CommentID string `json:"comment_id"`
	AuthorID  string `json:"author_id"`
}

func (e CommentAddedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"comment_id": e.CommentID,
		"author_id":  e.AuthorID,
	}
}

func NewCommentAddedEvent(postID, commentID, authorID string) CommentAddedEvent {
	return CommentAddedEvent{
		BaseEvent: NewBaseEvent(EventCommentAdded, postID),
		CommentID: commentID,
		AuthorID:  authorID,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// SESSION EVENTS
// ═══════════════════════════════════════════════════════════════════════════

type SessionEvent struct {
	BaseEvent
	UserID string `json:"user_id"`
	Reason string `json:"reason"` // signup, signin, restore, signout
}

func (e SessionEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id": e.UserID,
		"reason":  e.Reason,
	}
}

func NewSessionStartedEvent(userID, reason string) SessionEvent {
	return SessionEvent{BaseEvent: NewBaseEvent(EventSessionStarted, userID), UserID: userID, Reason: reason}
}

func NewSessionEndedEvent(userID string) SessionEvent {
	return SessionEvent{BaseEvent: NewBaseEvent(EventSessionEnded, userID), UserID: userID, Reason: "signout"}
}

// ═══════════════════════════════════════════════════════════════════════════
// SYSTEM EVENTS
// ═══════════════════════════════════════════════════════════════════════════

// OptimisticRevertedEvent records a local mutation undone after the backend
// rejected it.
type OptimisticRevertedEvent struct {
	BaseEvent
	Command string `json:"command"`
	Reason  string `json:"reason"`
}

func (e OptimisticRevertedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"command": e.Command,
		"reason":  e.Reason,
	}
}

func NewOptimisticRevertedEvent(command, aggregateID, reason string) OptimisticRevertedEvent {
	return OptimisticRevertedEvent{
		BaseEvent: NewBaseEvent(EventOptimisticReverted, aggregateID),
		Command:   command,
		Reason:    reason,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// TRANSPORT
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope is the serialized form of an event.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

type EventHandler func(event Event) error

type EventPublisher interface {
	Publish(event Event) error
}

type EventSubscriber interface {
	Subscribe(eventType EventType, handler EventHandler) error
	SubscribeAll(handler EventHandler) error
}

type EventBus interface {
	EventPublisher
	EventSubscriber
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(Event) error { return nil }
