// Package user содержит доменную модель учащегося LingoFin Hub.
//
// Пакет определяет:
//
//   - Сущности: User, Progress, LearningGoal, Badge
//   - Движок прогресса: ApplyLessonCompletion, LevelForXP, AwardBadge
//   - Правила значков: BadgeRules
//   - Порт доступа к данным: Gateway (регистрация, вход, профиль)
//
// # Прогресс
//
// Уровень вычисляется из опыта: level = xp/1000 + 1. Уровень никогда не
// уменьшается, значки только добавляются и уникальны по ID:
//
//	p, err := user.ApplyLessonCompletion(u.Progress, 1, 300, 40)
//	p, earned := user.DefaultBadgeRules().Apply(p, now)
//
// Серии (streak) движком не изменяются.
package user
