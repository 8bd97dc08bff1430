package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// openingDescriptionPrefix prefixes the synthesized first entry of every card.
const openingDescriptionPrefix = "account opened: "

// LedgerEntry is one posted operation. It is never edited once appended.
type LedgerEntry struct {
	Amount      decimal.Decimal `json:"amount" gorm:"type:decimal(20,2);not null"`
	Description string          `json:"description" gorm:"size:255;not null"`
	Date        time.Time       `json:"date" gorm:"not null"`
}

// Card is an owner scoped balance with its posted history.
// Balance always equals the sum of Operations amounts.
type Card struct {
	ID            uuid.UUID       `json:"id" gorm:"type:char(36);primaryKey"`
	Owner         string          `json:"owner" gorm:"size:64;not null;index:idx_cards_owner_order,priority:1"`
	Name          string          `json:"name" gorm:"size:255;not null"`
	Color         string          `json:"color" gorm:"size:64;not null"`
	Balance       decimal.Decimal `json:"balance" gorm:"type:decimal(20,2);not null;default:0"`
	LastOperation LedgerEntry     `json:"lastOperation" gorm:"embedded;embeddedPrefix:last_op_"`
	Operations    []LedgerEntry   `json:"operations" gorm:"-"`
	Order         int             `json:"order" gorm:"column:sort_order;not null;index:idx_cards_owner_order,priority:2"`
	Version       int64           `json:"-" gorm:"not null;default:0"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// BeforeCreate sets UUID before creating the record.
func (c *Card) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// NewCard builds a card whose history holds only the opening entry.
func NewCard(owner, name, color string, initialBalance decimal.Decimal, order int, now time.Time) *Card {
	opening := LedgerEntry{
		Amount:      initialBalance,
		Description: openingDescriptionPrefix + name,
		Date:        now,
	}
	return &Card{
		ID:            uuid.New(),
		Owner:         owner,
		Name:          name,
		Color:         color,
		Balance:       initialBalance,
		LastOperation: opening,
		Operations:    []LedgerEntry{opening},
		Order:         order,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Append posts entry to the card and advances the balance.
func (c *Card) Append(entry LedgerEntry) {
	c.Operations = append(c.Operations, entry)
	c.Balance = c.Balance.Add(entry.Amount)
	c.LastOperation = entry
	c.UpdatedAt = entry.Date
}

// HistoryTotal sums the amounts of all posted entries.
func (c *Card) HistoryTotal() decimal.Decimal {
	total := decimal.Zero
	for _, op := range c.Operations {
		total = total.Add(op.Amount)
	}
	return total
}

// CardOperation is the relational row form of one LedgerEntry.
// Seq keeps the post order of a card's history.
type CardOperation struct {
	ID          uint      `gorm:"primaryKey"`
	CardID      uuid.UUID `gorm:"type:char(36);not null;uniqueIndex:idx_card_operations_card_seq,priority:1"`
	Seq         int       `gorm:"not null;uniqueIndex:idx_card_operations_card_seq,priority:2"`
	LedgerEntry `gorm:"embedded"`
}
