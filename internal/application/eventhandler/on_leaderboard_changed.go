// Package eventhandler содержит обработчики доменных событий: побочные
// эффекты, которые запускаются после успешной записи в бэкенд.
package eventhandler

import (
	"context"
	"log/slog"
	"time"

	"github.com/lingofin/lingofin-hub/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON LEADERBOARD CHANGED HANDLER
// Сбрасывает кеш рейтинга челленджа, когда меняется счёт участника
// или в челлендж вступает новый участник.
// ═══════════════════════════════════════════════════════════════════════════

// LeaderboardInvalidator удаляет закешированный рейтинг челленджа.
type LeaderboardInvalidator interface {
	Invalidate(ctx context.Context, challengeID string) error
}

// Registrar - то, куда регистрируются обработчики (messaging.Dispatcher).
type Registrar interface {
	Register(eventType shared.EventType, name string, handler shared.EventHandler) error
}

// OnLeaderboardChangedHandler обрабатывает challenge.score_updated и
// challenge.joined. Оба события несут ID челленджа в AggregateID, поэтому
// обработчик работает и с событиями, пришедшими через Redis.
type OnLeaderboardChangedHandler struct {
	cache   LeaderboardInvalidator
	logger  *slog.Logger
	timeout time.Duration
}

func NewOnLeaderboardChangedHandler(cache LeaderboardInvalidator, logger *slog.Logger) *OnLeaderboardChangedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnLeaderboardChangedHandler{
		cache:   cache,
		logger:  logger.With("handler", "on_leaderboard_changed"),
		timeout: 5 * time.Second,
	}
}

// EventTypes - события, на которые подписывается обработчик.
func (h *OnLeaderboardChangedHandler) EventTypes() []shared.EventType {
	return []shared.EventType{shared.EventScoreUpdated, shared.EventChallengeJoined}
}

// Register подписывает обработчик на все его события.
func (h *OnLeaderboardChangedHandler) Register(r Registrar) error {
	for _, t := range h.EventTypes() {
		if err := r.Register(t, "invalidate_leaderboard_cache", h.Handle); err != nil {
			return err
		}
	}
	return nil
}

// Handle реализует shared.EventHandler. Ошибка кеша возвращается, чтобы
// диспетчер повторил попытку.
func (h *OnLeaderboardChangedHandler) Handle(event shared.Event) error {
	challengeID := event.AggregateID()
	if challengeID == "" {
		h.logger.Warn("event without challenge id", "event_type", event.EventType())
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	if err := h.cache.Invalidate(ctx, challengeID); err != nil {
		return err
	}
	h.logger.Debug("leaderboard cache invalidated",
		"challenge_id", challengeID,
		"event_type", event.EventType(),
	)
	return nil
}
