package review

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/example/examsrs/pkg/models"
)

// CardStore is the persistence the recorder and selector depend on.
// It is implemented by database.Store and database.MemoryStore.
type CardStore interface {
	GetCard(ctx context.Context, cardID int64) (models.Card, error)
	GetCardByQuestion(ctx context.Context, learnerID, questionID int64) (models.Card, error)
	PutCard(ctx context.Context, card models.Card) (models.Card, error)
	QueryDue(ctx context.Context, learnerID int64, now time.Time, excludeSuspended bool) ([]models.Card, error)
	GetAlgorithmConfig(ctx context.Context, learnerID int64) (models.AlgorithmConfig, error)

	// CommitReview stores the card, the history entry and the session
	// counters atomically
	CommitReview(ctx context.Context, card models.Card, entry models.ReviewHistoryEntry, session *models.LearningSession) (models.ReviewHistoryEntry, error)
	GetReviewHistory(ctx context.Context, cardID int64) ([]models.ReviewHistoryEntry, error)

	CreateSession(ctx context.Context, session models.LearningSession) (models.LearningSession, error)
	GetSession(ctx context.Context, id uuid.UUID) (models.LearningSession, error)
	PutSession(ctx context.Context, session models.LearningSession) error
	GetSessionReviews(ctx context.Context, sessionID uuid.UUID) ([]models.ReviewHistoryEntry, error)
}
