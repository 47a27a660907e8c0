package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/examsrs/internal/database"
	"github.com/example/examsrs/internal/leech"
	"github.com/example/examsrs/internal/logger"
	"github.com/example/examsrs/internal/review"
	"github.com/example/examsrs/pkg/models"
)

type fakeNotifier struct {
	mu        sync.Mutex
	leeches   map[int64][]leech.Analysis
	reminders map[int64]int
	err       error
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{leeches: map[int64][]leech.Analysis{}, reminders: map[int64]int{}}
}

func (n *fakeNotifier) NotifyLeeches(learnerID int64, found []leech.Analysis) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.leeches[learnerID] = append(n.leeches[learnerID], found...)
	return n.err
}

func (n *fakeNotifier) SendReminders(learnerID int64, due int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reminders[learnerID] = due
	return n.err
}

func (n *fakeNotifier) leechCount(learnerID int64) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.leeches[learnerID])
}

func seed(t *testing.T, store *database.MemoryStore, learnerID, questionID int64, lapses int, dueIn time.Duration) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()
	card := models.NewCard(learnerID, questionID, now.Add(-30*24*time.Hour))
	card.State = models.StateReview
	card.LapseCount = lapses
	card.NextReviewAt = now.Add(dueIn)
	card, err := store.PutCard(ctx, card)
	require.NoError(t, err)
	for i := 0; i < lapses; i++ {
		_, err := store.AppendReview(ctx, models.ReviewHistoryEntry{
			CardID: card.ID, LearnerID: learnerID, QuestionID: questionID,
			Rating: models.RatingAgain, ResponseTimeMs: 4000,
			ReviewedAt: now.Add(-time.Duration(lapses-i) * time.Hour),
		})
		require.NoError(t, err)
	}
}

func newScheduler(store *database.MemoryStore, n Notifier, cfg Config) *Scheduler {
	log := logger.Nop()
	return New(store,
		leech.NewDetector(store, nil, log, nil),
		review.NewSelector(store, log, nil),
		n, cfg, log, nil)
}

func TestScanNotifiesPerLearner(t *testing.T) {
	store := database.NewMemoryStore()
	seed(t, store, 1, 1, 9, -time.Hour)
	seed(t, store, 1, 2, 0, -time.Minute)
	seed(t, store, 2, 1, 2, time.Hour)

	n := newFakeNotifier()
	s := newScheduler(store, n, Config{})
	require.NoError(t, s.scan(context.Background()))

	assert.Equal(t, 1, n.leechCount(1))
	assert.Zero(t, n.leechCount(2))
	assert.Equal(t, 2, n.reminders[1])
	_, reminded := n.reminders[2]
	assert.False(t, reminded)

	// active leeches are not reported twice
	require.NoError(t, s.scan(context.Background()))
	assert.Equal(t, 1, n.leechCount(1))
}

func TestRunManualScanUsesThreshold(t *testing.T) {
	store := database.NewMemoryStore()
	seed(t, store, 1, 1, 3, time.Hour)

	n := newFakeNotifier()
	require.NoError(t, newScheduler(store, n, Config{}).RunManualScan(context.Background(), 1))
	assert.Zero(t, n.leechCount(1))

	require.NoError(t, newScheduler(store, n, Config{Threshold: 3}).RunManualScan(context.Background(), 1))
	assert.Equal(t, 1, n.leechCount(1))
}

func TestRunManualScanNotifierError(t *testing.T) {
	store := database.NewMemoryStore()
	seed(t, store, 1, 1, 9, -time.Hour)

	n := newFakeNotifier()
	n.err = errors.New("chat unavailable")
	err := newScheduler(store, n, Config{}).RunManualScan(context.Background(), 1)
	assert.EqualError(t, err, "chat unavailable")
}

func TestStartRunsScan(t *testing.T) {
	store := database.NewMemoryStore()
	seed(t, store, 1, 1, 9, time.Hour)

	n := newFakeNotifier()
	s := newScheduler(store, n, Config{Interval: time.Hour})
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	assert.Eventually(t, func() bool { return n.leechCount(1) == 1 }, 2*time.Second, 10*time.Millisecond)
}
