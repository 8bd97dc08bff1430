package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PostingStatus represents the outcome of a posting attempt.
type PostingStatus string

const (
	PostingStatusAccepted PostingStatus = "accepted"
	PostingStatusRejected PostingStatus = "rejected"
)

// PostingLog records one posting attempt, successful or not.
type PostingLog struct {
	ID           uuid.UUID       `json:"id" gorm:"type:char(36);primaryKey"`
	CardID       string          `json:"card_id" gorm:"size:64;not null;index"`
	Owner        string          `json:"owner" gorm:"size:64;not null;index"`
	Amount       decimal.Decimal `json:"amount" gorm:"type:decimal(20,2)"`
	Status       PostingStatus   `json:"status" gorm:"type:varchar(20);not null;index"`
	ErrorMessage string          `json:"error_message,omitempty" gorm:"type:text"`
	CreatedAt    time.Time       `json:"created_at"`
}

// BeforeCreate sets UUID before creating the record.
func (pl *PostingLog) BeforeCreate(tx *gorm.DB) error {
	if pl.ID == uuid.Nil {
		pl.ID = uuid.New()
	}
	return nil
}
