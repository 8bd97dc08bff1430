package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"

	"cardledger/internal/model"
)

const postingLogsCollection = "posting_logs"

// PostingLogRepository defines posting log persistence operations.
type PostingLogRepository interface {
	Create(ctx context.Context, log *model.PostingLog) error
	CreateBatch(ctx context.Context, logs []model.PostingLog) error
}

type postingLogRepository struct {
	db *gorm.DB
}

// NewPostingLogRepository creates a new posting log repository.
func NewPostingLogRepository(db *gorm.DB) PostingLogRepository {
	return &postingLogRepository{db: db}
}

// Create creates a new posting log entry.
func (r *postingLogRepository) Create(ctx context.Context, log *model.PostingLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

// CreateBatch creates multiple posting log entries in batches of 100.
func (r *postingLogRepository) CreateBatch(ctx context.Context, logs []model.PostingLog) error {
	if len(logs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(logs, 100).Error
}

type postingLogDocument struct {
	ID           string    `bson:"_id"`
	CardID       string    `bson:"cardId"`
	Owner        string    `bson:"owner"`
	Amount       string    `bson:"amount"`
	Status       string    `bson:"status"`
	ErrorMessage string    `bson:"errorMessage,omitempty"`
	CreatedAt    time.Time `bson:"createdAt"`
}

type mongoPostingLogRepository struct {
	logs *mongo.Collection
}

// NewMongoPostingLogRepository creates a posting log repository backed by MongoDB.
func NewMongoPostingLogRepository(database *mongo.Database) PostingLogRepository {
	return &mongoPostingLogRepository{logs: database.Collection(postingLogsCollection)}
}

func (r *mongoPostingLogRepository) Create(ctx context.Context, log *model.PostingLog) error {
	_, err := r.logs.InsertOne(ctx, toPostingLogDocument(log))
	return err
}

func (r *mongoPostingLogRepository) CreateBatch(ctx context.Context, logs []model.PostingLog) error {
	if len(logs) == 0 {
		return nil
	}
	docs := make([]interface{}, len(logs))
	for i := range logs {
		docs[i] = toPostingLogDocument(&logs[i])
	}
	_, err := r.logs.InsertMany(ctx, docs)
	return err
}

func toPostingLogDocument(log *model.PostingLog) postingLogDocument {
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	return postingLogDocument{
		ID:           log.ID.String(),
		CardID:       log.CardID,
		Owner:        log.Owner,
		Amount:       log.Amount.String(),
		Status:       string(log.Status),
		ErrorMessage: log.ErrorMessage,
		CreatedAt:    log.CreatedAt,
	}
}
