package leech

import (
	"context"
	"time"

	"github.com/example/examsrs/pkg/models"
)

// Store is the persistence used by detection, interventions and reports
type Store interface {
	GetCard(ctx context.Context, cardID int64) (models.Card, error)
	ListCardsByLapses(ctx context.Context, learnerID int64, minLapses int) ([]models.Card, error)
	CountCards(ctx context.Context, learnerID int64) (int, error)
	GetReviewHistory(ctx context.Context, cardID int64) ([]models.ReviewHistoryEntry, error)

	GetLeechRecord(ctx context.Context, cardID int64) (models.LeechRecord, error)
	GetOrCreateLeechRecord(ctx context.Context, cardID int64, detectedAt time.Time) (models.LeechRecord, bool, error)
	PutLeechRecord(ctx context.Context, rec models.LeechRecord) error
	ListLeechRecords(ctx context.Context, learnerID int64) ([]models.LeechRecord, error)
	// CommitIntervention stores the record and, when non-nil, the card atomically
	CommitIntervention(ctx context.Context, rec models.LeechRecord, card *models.Card) error
}

// QuestionCatalog resolves question ids to their content
type QuestionCatalog interface {
	GetQuestion(ctx context.Context, questionID int64) (models.Question, error)
}
