package review

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/example/examsrs/internal/logger"
	"github.com/example/examsrs/internal/metrics"
	"github.com/example/examsrs/pkg/models"
)

// weakFocusMinLapses is the lapse count from which a card counts as weak
const weakFocusMinLapses = 3

// Selector picks the cards a learner should review next
type Selector struct {
	store   CardStore
	log     *logger.Logger
	metrics *metrics.Metrics
}

// NewSelector creates a selector over store
func NewSelector(store CardStore, log *logger.Logger, m *metrics.Metrics) *Selector {
	return &Selector{store: store, log: log, metrics: m}
}

// DueCards returns the ids of the learner's cards due at or before now, most
// overdue first with ties broken by id. Suspended cards are never returned.
// limit <= 0 means no limit.
func (s *Selector) DueCards(ctx context.Context, learnerID int64, now time.Time, limit int) ([]int64, error) {
	cards, err := s.due(ctx, learnerID, now)
	if err != nil {
		return nil, err
	}
	return ids(cards, limit), nil
}

func (s *Selector) due(ctx context.Context, learnerID int64, now time.Time) ([]models.Card, error) {
	cards, err := s.store.QueryDue(ctx, learnerID, now, true)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(cards, func(i, j int) bool {
		if !cards[i].NextReviewAt.Equal(cards[j].NextReviewAt) {
			return cards[i].NextReviewAt.Before(cards[j].NextReviewAt)
		}
		return cards[i].ID < cards[j].ID
	})
	return cards, nil
}

// DueForSession returns the next cards for an open session, capped by the
// reviews it has left. A session whose cap has been reached is closed here
// and ErrSessionClosed is returned.
//
// learn sessions draw only New cards and weak_focus sessions only cards with
// repeated lapses, most lapses first. All other types use the due order.
func (s *Selector) DueForSession(ctx context.Context, sessionID uuid.UUID, now time.Time) ([]int64, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsOpen() {
		return nil, fmt.Errorf("session %s: %w", sessionID, models.ErrSessionClosed)
	}

	remaining := session.Remaining()
	if remaining == 0 {
		ended := now
		session.EndedAt = &ended
		if err := s.store.PutSession(ctx, session); err != nil {
			return nil, err
		}
		s.metrics.RecordSessionEnd()
		s.log.Info("session reached its review cap", "session_id", sessionID, "max_reviews", session.MaxReviews)
		return nil, fmt.Errorf("session %s: %w", sessionID, models.ErrSessionClosed)
	}

	cards, err := s.due(ctx, session.LearnerID, now)
	if err != nil {
		return nil, err
	}

	switch session.SessionType {
	case models.SessionLearn:
		cards = filter(cards, func(c models.Card) bool { return c.State == models.StateNew })
	case models.SessionWeakFocus:
		cards = filter(cards, func(c models.Card) bool { return c.LapseCount >= weakFocusMinLapses })
		sort.SliceStable(cards, func(i, j int) bool { return cards[i].LapseCount > cards[j].LapseCount })
	}
	return ids(cards, remaining), nil
}

func filter(cards []models.Card, keep func(models.Card) bool) []models.Card {
	out := cards[:0]
	for _, c := range cards {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}

func ids(cards []models.Card, limit int) []int64 {
	if limit > 0 && len(cards) > limit {
		cards = cards[:limit]
	}
	out := make([]int64, len(cards))
	for i, c := range cards {
		out[i] = c.ID
	}
	return out
}
