package database

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/examsrs/pkg/models"
)

// MemoryStore keeps everything in process memory. It has the same method
// set as Store and is used for tests and DB_TYPE=memory.
type MemoryStore struct {
	mu       sync.Mutex
	nextCard int64
	nextRev  int64
	cards    map[int64]models.Card
	reviews  []models.ReviewHistoryEntry
	leeches  map[int64]models.LeechRecord
	sessions map[uuid.UUID]models.LearningSession
	configs  map[int64]models.AlgorithmConfig
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		cards:    make(map[int64]models.Card),
		leeches:  make(map[int64]models.LeechRecord),
		sessions: make(map[uuid.UUID]models.LearningSession),
		configs:  make(map[int64]models.AlgorithmConfig),
	}
}

func (m *MemoryStore) GetCard(_ context.Context, cardID int64) (models.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	card, ok := m.cards[cardID]
	if !ok {
		return models.Card{}, fmt.Errorf("card %d: %w", cardID, models.ErrCardNotFound)
	}
	return copyCard(card), nil
}

func (m *MemoryStore) GetCardByQuestion(_ context.Context, learnerID, questionID int64) (models.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, card := range m.cards {
		if card.LearnerID == learnerID && card.QuestionID == questionID {
			return copyCard(card), nil
		}
	}
	return models.Card{}, fmt.Errorf("learner %d question %d: %w", learnerID, questionID, models.ErrCardNotFound)
}

func (m *MemoryStore) PutCard(_ context.Context, card models.Card) (models.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if card.ID == 0 {
		for _, existing := range m.cards {
			if existing.LearnerID == card.LearnerID && existing.QuestionID == card.QuestionID {
				return models.Card{}, persistErr("failed to insert card",
					fmt.Errorf("learner %d already holds question %d", card.LearnerID, card.QuestionID))
			}
		}
		m.nextCard++
		card.ID = m.nextCard
	} else if _, ok := m.cards[card.ID]; !ok {
		return models.Card{}, fmt.Errorf("card %d: %w", card.ID, models.ErrCardNotFound)
	}
	m.cards[card.ID] = copyCard(card)
	return copyCard(card), nil
}

func (m *MemoryStore) QueryDue(_ context.Context, learnerID int64, now time.Time, excludeSuspended bool) ([]models.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	due := []models.Card{}
	for _, card := range m.cards {
		if card.LearnerID != learnerID || !card.IsDue(now) {
			continue
		}
		if excludeSuspended {
			if rec, ok := m.leeches[card.ID]; ok && rec.IsSuspended && rec.IsActive() {
				continue
			}
		}
		due = append(due, copyCard(card))
	}
	sort.Slice(due, func(i, j int) bool {
		if !due[i].NextReviewAt.Equal(due[j].NextReviewAt) {
			return due[i].NextReviewAt.Before(due[j].NextReviewAt)
		}
		return due[i].ID < due[j].ID
	})
	return due, nil
}

func (m *MemoryStore) ListCardsByLapses(_ context.Context, learnerID int64, minLapses int) ([]models.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cards := []models.Card{}
	for _, card := range m.cards {
		if card.LearnerID == learnerID && card.LapseCount >= minLapses {
			cards = append(cards, copyCard(card))
		}
	}
	sort.Slice(cards, func(i, j int) bool {
		if cards[i].LapseCount != cards[j].LapseCount {
			return cards[i].LapseCount > cards[j].LapseCount
		}
		return cards[i].ID < cards[j].ID
	})
	return cards, nil
}

func (m *MemoryStore) CountCards(_ context.Context, learnerID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, card := range m.cards {
		if card.LearnerID == learnerID {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) ListLearners(_ context.Context) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[int64]bool)
	learners := []int64{}
	for _, card := range m.cards {
		if !seen[card.LearnerID] {
			seen[card.LearnerID] = true
			learners = append(learners, card.LearnerID)
		}
	}
	sort.Slice(learners, func(i, j int) bool { return learners[i] < learners[j] })
	return learners, nil
}

func (m *MemoryStore) AppendReview(_ context.Context, entry models.ReviewHistoryEntry) (models.ReviewHistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendReview(entry), nil
}

func (m *MemoryStore) appendReview(entry models.ReviewHistoryEntry) models.ReviewHistoryEntry {
	m.nextRev++
	entry.ID = m.nextRev
	m.reviews = append(m.reviews, entry)
	return entry
}

func (m *MemoryStore) GetReviewHistory(_ context.Context, cardID int64) ([]models.ReviewHistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := []models.ReviewHistoryEntry{}
	for i := len(m.reviews) - 1; i >= 0; i-- {
		if m.reviews[i].CardID == cardID {
			entries = append(entries, m.reviews[i])
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].ReviewedAt.After(entries[j].ReviewedAt)
	})
	return entries, nil
}

func (m *MemoryStore) GetSessionReviews(_ context.Context, sessionID uuid.UUID) ([]models.ReviewHistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := []models.ReviewHistoryEntry{}
	for _, e := range m.reviews {
		if e.SessionID.Valid && e.SessionID.UUID == sessionID {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

func (m *MemoryStore) CommitReview(_ context.Context, card models.Card, entry models.ReviewHistoryEntry, session *models.LearningSession) (models.ReviewHistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cards[card.ID]; !ok {
		return models.ReviewHistoryEntry{}, fmt.Errorf("card %d: %w", card.ID, models.ErrCardNotFound)
	}
	if session != nil {
		if _, ok := m.sessions[session.ID]; !ok {
			return models.ReviewHistoryEntry{}, fmt.Errorf("session %s: %w", session.ID, models.ErrSessionNotFound)
		}
		m.sessions[session.ID] = copySession(*session)
	}
	m.cards[card.ID] = copyCard(card)
	return m.appendReview(entry), nil
}

func (m *MemoryStore) GetLeechRecord(_ context.Context, cardID int64) (models.LeechRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.leeches[cardID]
	if !ok {
		return models.LeechRecord{}, fmt.Errorf("card %d: %w", cardID, models.ErrLeechNotFound)
	}
	return copyLeech(rec), nil
}

func (m *MemoryStore) GetOrCreateLeechRecord(_ context.Context, cardID int64, detectedAt time.Time) (models.LeechRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.leeches[cardID]; ok {
		return copyLeech(rec), false, nil
	}
	card, ok := m.cards[cardID]
	if !ok {
		return models.LeechRecord{}, false, fmt.Errorf("card %d: %w", cardID, models.ErrCardNotFound)
	}
	rec := models.LeechRecord{
		CardID:                card.ID,
		LearnerID:             card.LearnerID,
		QuestionID:            card.QuestionID,
		LapseCountAtDetection: card.LapseCount,
		Threshold:             models.DefaultLeechThreshold,
		Severity:              models.SeverityMild,
		DetectedAt:            detectedAt,
	}
	m.leeches[cardID] = rec
	return copyLeech(rec), true, nil
}

func (m *MemoryStore) PutLeechRecord(_ context.Context, rec models.LeechRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leeches[rec.CardID] = copyLeech(rec)
	return nil
}

func (m *MemoryStore) ListLeechRecords(_ context.Context, learnerID int64) ([]models.LeechRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	records := []models.LeechRecord{}
	for _, rec := range m.leeches {
		if rec.LearnerID == learnerID {
			records = append(records, copyLeech(rec))
		}
	}
	sort.Slice(records, func(i, j int) bool {
		if !records[i].DetectedAt.Equal(records[j].DetectedAt) {
			return records[i].DetectedAt.After(records[j].DetectedAt)
		}
		return records[i].CardID < records[j].CardID
	})
	return records, nil
}

func (m *MemoryStore) CommitIntervention(_ context.Context, rec models.LeechRecord, card *models.Card) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if card != nil {
		if _, ok := m.cards[card.ID]; !ok {
			return fmt.Errorf("card %d: %w", card.ID, models.ErrCardNotFound)
		}
		m.cards[card.ID] = copyCard(*card)
	}
	m.leeches[rec.CardID] = copyLeech(rec)
	return nil
}

func (m *MemoryStore) CreateSession(_ context.Context, session models.LearningSession) (models.LearningSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	if _, ok := m.sessions[session.ID]; ok {
		return models.LearningSession{}, persistErr("failed to create session",
			fmt.Errorf("session %s already exists", session.ID))
	}
	m.sessions[session.ID] = copySession(session)
	return copySession(session), nil
}

func (m *MemoryStore) GetSession(_ context.Context, id uuid.UUID) (models.LearningSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[id]
	if !ok {
		return models.LearningSession{}, fmt.Errorf("session %s: %w", id, models.ErrSessionNotFound)
	}
	return copySession(session), nil
}

func (m *MemoryStore) PutSession(_ context.Context, session models.LearningSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[session.ID]; !ok {
		return fmt.Errorf("session %s: %w", session.ID, models.ErrSessionNotFound)
	}
	m.sessions[session.ID] = copySession(session)
	return nil
}

func (m *MemoryStore) GetAlgorithmConfig(_ context.Context, learnerID int64) (models.AlgorithmConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg, ok := m.configs[learnerID]
	if !ok {
		return models.DefaultAlgorithmConfig(learnerID), nil
	}
	return copyConfig(cfg), nil
}

func (m *MemoryStore) PutAlgorithmConfig(_ context.Context, cfg models.AlgorithmConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configs[cfg.LearnerID] = copyConfig(cfg)
	return nil
}

// Close is a no-op
func (m *MemoryStore) Close() error { return nil }

func copyCard(c models.Card) models.Card {
	c.LastReviewedAt = copyTime(c.LastReviewedAt)
	return c
}

func copySession(s models.LearningSession) models.LearningSession {
	s.EndedAt = copyTime(s.EndedAt)
	return s
}

func copyLeech(r models.LeechRecord) models.LeechRecord {
	if r.ActionTaken != nil {
		k := *r.ActionTaken
		r.ActionTaken = &k
	}
	r.ActionAt = copyTime(r.ActionAt)
	r.ResolvedAt = copyTime(r.ResolvedAt)
	return r
}

func copyConfig(c models.AlgorithmConfig) models.AlgorithmConfig {
	if c.LearningSteps != nil {
		c.LearningSteps = append([]time.Duration{}, c.LearningSteps...)
	}
	if c.RelearningSteps != nil {
		c.RelearningSteps = append([]time.Duration{}, c.RelearningSteps...)
	}
	return c
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
