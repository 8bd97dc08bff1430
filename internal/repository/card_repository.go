package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cardledger/internal/model"
)

// CardRepository defines card persistence operations. Every lookup is scoped by owner.
type CardRepository interface {
	// Create persists card and its opening history. When assignOrder is set the
	// card gets the owner's next order value as part of the same write.
	Create(ctx context.Context, card *model.Card, assignOrder bool) error
	NextOrder(ctx context.Context, owner string) (int, error)
	ListByOwner(ctx context.Context, owner string) ([]model.Card, error)
	FindByIDAndOwner(ctx context.Context, id uuid.UUID, owner string) (*model.Card, error)
	// Append atomically adds entry to the history and advances the balance.
	Append(ctx context.Context, id uuid.UUID, owner string, entry model.LedgerEntry) (*model.Card, error)
	Update(ctx context.Context, id uuid.UUID, owner string, patch model.CardPatch, now time.Time) (*model.Card, error)
	Delete(ctx context.Context, id uuid.UUID, owner string) error
}

type cardRepository struct {
	db *gorm.DB
}

// NewCardRepository creates a new card repository.
func NewCardRepository(db *gorm.DB) CardRepository {
	return &cardRepository{db: db}
}

// Create creates a new card with its opening history. Concurrent first
// creates for one owner can deadlock on the order gap lock and are retried.
func (r *cardRepository) Create(ctx context.Context, card *model.Card, assignOrder bool) error {
	return r.withRetry(ctx, func(tx *gorm.DB) error {
		if assignOrder {
			next, err := nextOrder(tx, card.Owner, true)
			if err != nil {
				return err
			}
			card.Order = next
		}
		if err := tx.Create(card).Error; err != nil {
			return err
		}
		return insertOperations(tx, card.ID, 0, card.Operations)
	})
}

// NextOrder returns one more than the owner's highest order value.
func (r *cardRepository) NextOrder(ctx context.Context, owner string) (int, error) {
	return nextOrder(r.db.WithContext(ctx), owner, false)
}

// ListByOwner lists the owner's cards by order, then creation time, then id.
func (r *cardRepository) ListByOwner(ctx context.Context, owner string) ([]model.Card, error) {
	db := r.db.WithContext(ctx)
	var cards []model.Card
	if err := db.Where("owner = ?", owner).
		Order("sort_order ASC, created_at ASC, id ASC").
		Find(&cards).Error; err != nil {
		return nil, err
	}
	if err := loadOperations(db, cards); err != nil {
		return nil, err
	}
	return cards, nil
}

// FindByIDAndOwner finds a card by ID within the owner's cards.
func (r *cardRepository) FindByIDAndOwner(ctx context.Context, id uuid.UUID, owner string) (*model.Card, error) {
	return findCard(r.db.WithContext(ctx), id, owner, false)
}

// Append posts entry under a row lock and a version check.
func (r *cardRepository) Append(ctx context.Context, id uuid.UUID, owner string, entry model.LedgerEntry) (*model.Card, error) {
	var updated *model.Card
	err := r.withRetry(ctx, func(tx *gorm.DB) error {
		card, err := findCard(tx, id, owner, true)
		if err != nil {
			return err
		}
		version := card.Version
		seq := len(card.Operations)
		card.Append(entry)

		if err := insertOperations(tx, card.ID, seq, card.Operations[seq:]); err != nil {
			return err
		}
		if err := saveCard(tx, card, version); err != nil {
			return err
		}
		updated = card
		return nil
	})
	return updated, err
}

// Update applies patch under a row lock and a version check.
func (r *cardRepository) Update(ctx context.Context, id uuid.UUID, owner string, patch model.CardPatch, now time.Time) (*model.Card, error) {
	var updated *model.Card
	err := r.withRetry(ctx, func(tx *gorm.DB) error {
		card, err := findCard(tx, id, owner, true)
		if err != nil {
			return err
		}
		version := card.Version
		seq := len(card.Operations)
		if err := patch.ApplyTo(card, now); err != nil {
			return err
		}

		if patch.ReplacesHistory() {
			if err := tx.Where("card_id = ?", card.ID).Delete(&model.CardOperation{}).Error; err != nil {
				return err
			}
			seq = 0
		}
		if err := insertOperations(tx, card.ID, seq, card.Operations[seq:]); err != nil {
			return err
		}
		if err := saveCard(tx, card, version); err != nil {
			return err
		}
		updated = card
		return nil
	})
	return updated, err
}

// Delete removes the card and its history in one transaction.
func (r *cardRepository) Delete(ctx context.Context, id uuid.UUID, owner string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND owner = ?", id, owner).Delete(&model.Card{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Where("card_id = ?", id).Delete(&model.CardOperation{}).Error
	})
}

// withRetry runs fn in a transaction, retrying when the version check fails
// or the database picked it as a deadlock victim.
func (r *cardRepository) withRetry(ctx context.Context, fn func(tx *gorm.DB) error) error {
	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		err := r.db.WithContext(ctx).Transaction(fn)
		if !isRetryable(err) {
			return err
		}
	}
	return ErrConflict
}

func nextOrder(db *gorm.DB, owner string, lock bool) (int, error) {
	q := db.Model(&model.Card{}).Where("owner = ?", owner)
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var max int
	if err := q.Select("COALESCE(MAX(sort_order), 0)").Row().Scan(&max); err != nil {
		return 0, err
	}
	return max + 1, nil
}

func findCard(db *gorm.DB, id uuid.UUID, owner string, lock bool) (*model.Card, error) {
	q := db.Where("id = ? AND owner = ?", id, owner)
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var card model.Card
	if err := q.First(&card).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	cards := []model.Card{card}
	if err := loadOperations(db, cards); err != nil {
		return nil, err
	}
	return &cards[0], nil
}

func loadOperations(db *gorm.DB, cards []model.Card) error {
	if len(cards) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(cards))
	for i := range cards {
		ids[i] = cards[i].ID
	}

	var rows []model.CardOperation
	if err := db.Where("card_id IN ?", ids).Order("card_id ASC, seq ASC").Find(&rows).Error; err != nil {
		return err
	}
	byCard := make(map[uuid.UUID][]model.LedgerEntry, len(cards))
	for _, row := range rows {
		byCard[row.CardID] = append(byCard[row.CardID], row.LedgerEntry)
	}
	for i := range cards {
		ops := byCard[cards[i].ID]
		if ops == nil {
			ops = []model.LedgerEntry{}
		}
		cards[i].Operations = ops
	}
	return nil
}

func insertOperations(db *gorm.DB, cardID uuid.UUID, firstSeq int, entries []model.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}
	rows := make([]model.CardOperation, len(entries))
	for i, entry := range entries {
		rows[i] = model.CardOperation{CardID: cardID, Seq: firstSeq + i, LedgerEntry: entry}
	}
	return db.Create(&rows).Error
}

// saveCard writes the card columns only if nobody bumped the version since it was read.
func saveCard(db *gorm.DB, card *model.Card, version int64) error {
	card.Version = version + 1
	res := db.Model(&model.Card{}).
		Where("id = ? AND owner = ? AND version = ?", card.ID, card.Owner, version).
		Updates(map[string]interface{}{
			"name":                card.Name,
			"color":               card.Color,
			"balance":             card.Balance,
			"last_op_amount":      card.LastOperation.Amount,
			"last_op_description": card.LastOperation.Description,
			"last_op_date":        card.LastOperation.Date,
			"sort_order":          card.Order,
			"version":             card.Version,
			"updated_at":          card.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}
